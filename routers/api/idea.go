package api

import (
	"net/http"

	"inflow-server/service"

	"github.com/gin-gonic/gin"
)

// 头脑风暴：niche -> 创意列表。模型输出坏掉时返回空列表而不是 500
func BrainstormIdeas(c *gin.Context) {
	var req struct {
		Niche string `json:"niche" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ideas, err := service.Pipeline.Brainstorm(c.Request.Context(), req.Niche)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "生成创意失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"niche": req.Niche,
		"ideas": ideas,
		"total": len(ideas),
	})
}

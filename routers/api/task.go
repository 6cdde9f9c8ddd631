package api

import (
	"net/http"
	"time"

	"inflow-server/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 任务进度 WebSocket 推送（以数据库为来源：先读取 DB，然后循环轮询
// DB 并推送差异）。进度写回 DB 由队列处理器负责，这里只订阅推送
func TaskProgressWebSocket(c *gin.Context) {
	taskID := c.Param("task_id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "WebSocket升级失败"})
		return
	}
	defer conn.Close()

	// 先从 DB 读取当前任务状态并推送
	t, err := models.GetTaskByID(models.GormDB, taskID)
	if err != nil {
		conn.WriteJSON(map[string]interface{}{"error": "task not found: " + err.Error()})
		return
	}
	_ = conn.WriteJSON(t)

	// 每秒查询一次直到任务进入终态
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	prevStatus := t.Status
	prevProgress := t.Progress
	prevMessage := t.Message

	for range ticker.C {
		cur, err := models.GetTaskByID(models.GormDB, taskID)
		if err != nil {
			// 查询失败继续重试
			continue
		}

		if cur.Status != prevStatus || cur.Progress != prevProgress || cur.Message != prevMessage {
			if err := conn.WriteJSON(cur); err != nil {
				break
			}
			prevStatus = cur.Status
			prevProgress = cur.Progress
			prevMessage = cur.Message
		}

		if cur.Status == models.TaskStatusSuccess || cur.Status == models.TaskStatusFailed {
			// 发送最终状态后关闭连接
			_ = conn.WriteJSON(cur)
			break
		}
	}
}

// 查询任务状态：GET /v1/api/tasks/:task_id
func GetTaskStatus(c *gin.Context) {
	taskID := c.Param("task_id")
	t, err := models.GetTaskByID(models.GormDB, taskID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": t})
}

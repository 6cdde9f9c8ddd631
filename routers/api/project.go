package api

import (
	"net/http"
	"time"

	"inflow-server/models"
	"inflow-server/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 创建项目：用选中的创意生成分镜脚本，项目以 draft 状态落库
func CreateProject(c *gin.Context) {
	var req struct {
		Niche string      `json:"niche" binding:"required"`
		Idea  models.Idea `json:"idea" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := service.Pipeline.ScriptFor(c.Request.Context(), req.Niche, req.Idea)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "生成脚本失败: " + err.Error()})
		return
	}

	// read-modify-write 整列表写回
	list, err := service.Store.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取项目列表失败: " + err.Error()})
		return
	}
	if err := service.Store.Save(models.UpsertProject(list, *project)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存项目失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project":       project,
		"segment_count": len(project.Script),
	})
}

// 项目列表
func ListProjects(c *gin.Context) {
	list, err := service.Store.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取项目列表失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"projects": list,
		"total":    len(list),
	})
}

// 项目详情，附带最近一次 pipeline 任务
func GetProject(c *gin.Context) {
	projectID := c.Param("project_id")

	list, err := service.Store.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取项目列表失败: " + err.Error()})
		return
	}
	idx := models.FindProject(list, projectID)
	if idx < 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + projectID})
		return
	}

	recentTask, err := models.LatestTaskForProject(models.GormDB, projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询最近任务失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project_detail": list[idx],
		"recent_task":    recentTask,
	})
}

// 删除项目
func DeleteProject(c *gin.Context) {
	projectID := c.Param("project_id")

	list, err := service.Store.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取项目列表失败: " + err.Error()})
		return
	}
	if models.FindProject(list, projectID) < 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + projectID})
		return
	}
	if err := service.Store.Save(models.RemoveProject(list, projectID)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除项目失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"deleteAt": time.Now(),
		"message":  "项目已删除",
	})
}

// 触发生产：逐镜生图 + 整片配音。draft 项目可反复触发，已生成的
// 分镜会被跳过（断点续跑）
func ProduceProject(c *gin.Context) {
	projectID := c.Param("project_id")

	list, err := service.Store.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取项目列表失败: " + err.Error()})
		return
	}
	idx := models.FindProject(list, projectID)
	if idx < 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + projectID})
		return
	}
	if len(list[idx].Script) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "项目没有分镜，无法生产"})
		return
	}
	// 状态机只前进：已导出的项目不允许退回 ready
	if list[idx].Status == models.ProjectStatusExported {
		c.JSON(http.StatusBadRequest, gin.H{"error": "项目已导出，不可重新生产"})
		return
	}

	task := models.Task{
		ID:        uuid.NewString(),
		ProjectId: projectID,
		Type:      models.TaskTypeProduce,
		Status:    models.TaskStatusPending,
		Progress:  0,
		Message:   "生产任务已创建，正在生成分镜素材...",
	}
	if err := models.CreateTask(models.GormDB, &task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建生产任务失败: " + err.Error()})
		return
	}
	if err := service.EnqueueTask(service.TypeProduceProject, task.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生产任务入队失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id":    task.ID,
		"project_id": projectID,
		"message":    "生产任务已创建",
	})
}

// 触发导出：仅 ready（或重新导出 exported）项目可用
func ExportProject(c *gin.Context) {
	projectID := c.Param("project_id")

	list, err := service.Store.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取项目列表失败: " + err.Error()})
		return
	}
	idx := models.FindProject(list, projectID)
	if idx < 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + projectID})
		return
	}
	project := list[idx]
	if project.Status != models.ProjectStatusReady && project.Status != models.ProjectStatusExported {
		c.JSON(http.StatusBadRequest, gin.H{"error": "项目状态为 " + project.Status + "，不可导出"})
		return
	}

	task := models.Task{
		ID:        uuid.NewString(),
		ProjectId: projectID,
		Type:      models.TaskTypeExport,
		Status:    models.TaskStatusPending,
		Progress:  0,
		Message:   "导出任务已创建，正在合成视频...",
	}
	if err := models.CreateTask(models.GormDB, &task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建导出任务失败: " + err.Error()})
		return
	}
	if err := service.EnqueueTask(service.TypeExportProject, task.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "导出任务入队失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id":    task.ID,
		"project_id": projectID,
		"message":    "导出任务已创建",
	})
}

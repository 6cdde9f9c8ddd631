package routers

import (
	"inflow-server/routers/api"

	"github.com/gin-gonic/gin"
)

func InitRouter() *gin.Engine {
	r := gin.Default()
	v1 := r.Group("/v1/api")
	{
		v1.POST("/ideas", api.BrainstormIdeas)
		v1.POST("/projects", api.CreateProject)
		v1.GET("/projects", api.ListProjects)
		v1.GET("/projects/:project_id", api.GetProject)
		v1.DELETE("/projects/:project_id", api.DeleteProject)
		v1.POST("/projects/:project_id/produce", api.ProduceProject)
		v1.POST("/projects/:project_id/export", api.ExportProject)
		v1.GET("/tasks/:task_id", api.GetTaskStatus)
	}
	r.GET("/tasks/:task_id/wss", api.TaskProgressWebSocket)
	return r
}

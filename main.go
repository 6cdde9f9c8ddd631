package main

import (
	"inflow-server/config"
	"inflow-server/models"
	"inflow-server/routers"
	"inflow-server/service"

	"github.com/joho/godotenv"
)

func main() {
	// 本地开发用 .env，部署环境直接注入环境变量
	_ = godotenv.Load()

	config.InitConfig()
	config.InitLogger()
	config.Log.Infof("Server starting on port %s", config.AppConfig.Server.Port)

	models.InitDB()
	service.InitQueue()
	service.InitMinIO()
	service.InitPipeline(models.GormDB)

	processor := service.NewProcessor(models.GormDB)
	processor.StartProcessor()

	r := routers.InitRouter()
	r.Run(config.AppConfig.Server.Port)
}

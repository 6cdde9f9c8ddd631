package models

import (
	"database/sql"
	"time"

	"inflow-server/config"

	_ "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *sql.DB
var GormDB *gorm.DB

func InitDB() {
	if config.AppConfig == nil {
		config.Log.Fatal("config.AppConfig is nil, call config.InitConfig first")
	}
	dsn := config.AppConfig.MySQL.DSN
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		config.Log.Fatalf("打开数据库失败: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		config.Log.Fatalf("连接数据库失败: %v", err)
	}

	DB = db
	GormDB, err = gorm.Open(mysql.New(mysql.Config{
		Conn: DB,
	}), &gorm.Config{})
	if err != nil {
		config.Log.Fatalf("GORM 初始化失败: %v", err)
	}

	// 自动建表：task 行 + 项目快照文档
	if err := GormDB.AutoMigrate(&Task{}, &Document{}); err != nil {
		config.Log.Fatalf("自动建表失败: %v", err)
	}

	config.Log.Info("数据库连接成功 (Native SQL + GORM)")
}

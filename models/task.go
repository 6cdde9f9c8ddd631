package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// 任务状态（在系统中统一使用这些状态）
const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusSuccess    = "finished"
	TaskStatusFailed     = "failed"

	// 两种核心任务类型
	TaskTypeProduce = "produce_project" // 分镜生图 + 整片配音
	TaskTypeExport  = "export_video"    // ready 项目 -> webm 成片
)

type Task struct {
	ID         string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectId  string     `json:"projectId"`
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	Progress   int        `json:"progress"`
	Message    string     `json:"message"`
	Result     TaskResult `gorm:"type:json" json:"result"`
	Error      string     `json:"error"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// TaskResult 仅保留最小资源定位信息
type TaskResult struct {
	ResourceType string `json:"resource_type"` // e.g., "audio", "video"
	ResourceUrl  string `json:"resource_url"`
}

// 实现 driver.Valuer 接口: Go Struct -> JSON String (存入数据库)
func (r TaskResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// 实现 sql.Scanner 接口: JSON String -> Go Struct (从数据库读取)
func (r *TaskResult) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", value))
	}
	return json.Unmarshal(bytes, r)
}

func CreateTask(db *gorm.DB, t *Task) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	return db.Create(t).Error
}

func GetTaskByID(db *gorm.DB, taskID string) (*Task, error) {
	var task Task
	if err := db.First(&task, "id = ?", taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// LatestTaskForProject 项目最近一次 pipeline 任务，没有则返回 nil
func LatestTaskForProject(db *gorm.DB, projectID string) (*Task, error) {
	var task Task
	err := db.Where("project_id = ?", projectID).Order("created_at DESC").First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateStatus 更新任务状态与附带字段
func (t *Task) UpdateStatus(db *gorm.DB, status string, result *TaskResult, errMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if result != nil {
		jsonBytes, err := json.Marshal(result)
		if err == nil {
			updates["result"] = jsonBytes
		}
	}
	if errMsg != "" {
		updates["error"] = errMsg
	}
	switch status {
	case TaskStatusProcessing:
		updates["started_at"] = time.Now()
	case TaskStatusSuccess, TaskStatusFailed:
		updates["finished_at"] = time.Now()
	}
	return db.Model(t).Updates(updates).Error
}

// SetProgress 写入进度百分比和当前阶段描述，供轮询/WS 推送
func (t *Task) SetProgress(db *gorm.DB, progress int, message string) error {
	return db.Model(t).Updates(map[string]interface{}{
		"progress":   progress,
		"message":    message,
		"updated_at": time.Now(),
	}).Error
}

// 强制指定表名为 "task"
func (Task) TableName() string {
	return "task"
}

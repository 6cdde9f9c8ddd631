package service

import (
	"encoding/json"
	"fmt"
	"time"

	"inflow-server/config"

	"github.com/hibiken/asynq"
)

const (
	TypeProduceProject = "pipeline:produce"
	TypeExportProject  = "pipeline:export"
)

type PipelinePayload struct {
	TaskID string `json:"task_id"`
}

var QueueClient *asynq.Client

// InitQueue 初始化
func InitQueue() {
	QueueClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.Redis.Addr,
		Password: config.AppConfig.Redis.Password,
	})
}

// EnqueueTask 把 pipeline 任务入队。MaxRetry 置 0：pipeline 不做
// 自动重试，每次重试都是用户主动发起的新任务
func EnqueueTask(taskType, taskID string) error {
	payload, err := json.Marshal(PipelinePayload{TaskID: taskID})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(taskType, payload,
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute), // 生成较慢，设置较长超时
		asynq.Retention(24*time.Hour), // 任务结果在 Redis 保留时间
	)

	info, err := QueueClient.Enqueue(task)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}

	config.Log.Infof("[Queue] Task Enqueued: ID=%s, TaskID=%s", info.ID, taskID)
	return nil
}

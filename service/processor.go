package service

import (
	"context"
	"encoding/json"
	"fmt"

	"inflow-server/config"
	"inflow-server/gateway"
	"inflow-server/models"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

// 包级 pipeline 入口：HTTP 层和队列处理器共用同一套编排器/导出器/存储
var (
	Pipeline *Orchestrator
	Exp      *Exporter
	Store    models.ProjectStore
)

// InitPipeline 组装网关客户端、素材存储、项目快照存储和编排器，
// 在 InitMinIO 之后调用
func InitPipeline(db *gorm.DB) {
	assets := NewMinIOStore()
	Pipeline = NewOrchestrator(gateway.NewClientFromConfig(), assets)
	Exp = NewExporter(assets)
	Store = models.NewDBProjectStore(db)
}

// Processor 消费 pipeline 队列任务
type Processor struct {
	DB *gorm.DB
}

func NewProcessor(db *gorm.DB) *Processor {
	return &Processor{DB: db}
}

// StartProcessor 启动任务消费者。队列并发固定为 1：分镜生图刻意
// 串行（同一时刻只有一个在途网关请求），进度好算，网关负载有界，
// 代价是总时长随分镜数线性增长
func (p *Processor) StartProcessor() {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     config.AppConfig.Redis.Addr,
			Password: config.AppConfig.Redis.Password,
		},
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeProduceProject, p.HandleProduceTask)
	mux.HandleFunc(TypeExportProject, p.HandleExportTask)

	config.Log.Info("Starting Pipeline Processor...")
	go func() {
		if err := srv.Run(mux); err != nil {
			config.Log.Fatalf("could not run server: %v", err)
		}
	}()
}

// HandleProduceTask 生产任务：逐镜生图 + 整片配音。失败时已生成的
// 部分素材照样落库，下一次 Produce 从断点续跑
func (p *Processor) HandleProduceTask(ctx context.Context, t *asynq.Task) error {
	task, project, err := p.loadTaskProject(t)
	if err != nil {
		return err
	}

	config.Log.Infof("Processing Task: %s | Type: %s", task.ID, task.Type)
	if err := task.UpdateStatus(p.DB, models.TaskStatusProcessing, nil, ""); err != nil {
		config.Log.Warnf("UpdateStatus processing failed: %v", err)
	}

	// 进度回调挂在本任务自己的编排器副本上。包级共享实例始终保持
	// 无回调：HTTP 层的 Brainstorm/ScriptFor 与在途任务并发使用它，
	// 不能把别人的进度事件灌进本任务的 task 行
	pipe := *Pipeline
	pipe.Progress = p.progressSink(task)
	produceErr := pipe.Produce(ctx, project)

	// 不管成败，把项目最新状态（含部分素材）写回快照
	if saveErr := p.saveProject(*project); saveErr != nil {
		config.Log.Errorf("写回项目快照失败: %v", saveErr)
		if produceErr == nil {
			produceErr = saveErr
		}
	}

	if produceErr != nil {
		config.Log.Errorf("生产任务失败: %v", produceErr)
		task.UpdateStatus(p.DB, models.TaskStatusFailed, nil, produceErr.Error())
		return nil // 业务失败不重试，重试由用户发起
	}

	result := &models.TaskResult{ResourceType: "audio", ResourceUrl: project.AudioURL}
	task.UpdateStatus(p.DB, models.TaskStatusSuccess, result, "")
	config.Log.Infof("Task %s completed successfully", task.ID)
	return nil
}

// HandleExportTask 导出任务：ready 项目 -> webm 成片
func (p *Processor) HandleExportTask(ctx context.Context, t *asynq.Task) error {
	task, project, err := p.loadTaskProject(t)
	if err != nil {
		return err
	}

	config.Log.Infof("Processing Task: %s | Type: %s", task.ID, task.Type)
	if err := task.UpdateStatus(p.DB, models.TaskStatusProcessing, nil, ""); err != nil {
		config.Log.Warnf("UpdateStatus processing failed: %v", err)
	}

	// 同生产任务：进度回调只挂在本任务的导出器副本上
	exp := *Exp
	exp.Progress = p.progressSink(task)
	videoURL, exportErr := exp.Export(ctx, project)
	if exportErr != nil {
		config.Log.Errorf("导出任务失败: %v", exportErr)
		task.UpdateStatus(p.DB, models.TaskStatusFailed, nil, exportErr.Error())
		return nil
	}

	if err := p.saveProject(*project); err != nil {
		config.Log.Errorf("写回项目快照失败: %v", err)
		task.UpdateStatus(p.DB, models.TaskStatusFailed, nil, err.Error())
		return nil
	}

	result := &models.TaskResult{ResourceType: "video", ResourceUrl: videoURL}
	task.UpdateStatus(p.DB, models.TaskStatusSuccess, result, "")
	config.Log.Infof("Task %s completed successfully", task.ID)
	return nil
}

// loadTaskProject 解 payload、取任务行、从快照里捞出项目
func (p *Processor) loadTaskProject(t *asynq.Task) (*models.Task, *models.Project, error) {
	var payload PipelinePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return nil, nil, fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	task, err := models.GetTaskByID(p.DB, payload.TaskID)
	if err != nil {
		return nil, nil, fmt.Errorf("task not found: %v: %w", err, asynq.SkipRetry)
	}

	list, err := Store.Load()
	if err != nil {
		task.UpdateStatus(p.DB, models.TaskStatusFailed, nil, "读取项目列表失败: "+err.Error())
		return nil, nil, fmt.Errorf("load projects: %v: %w", err, asynq.SkipRetry)
	}
	idx := models.FindProject(list, task.ProjectId)
	if idx < 0 {
		task.UpdateStatus(p.DB, models.TaskStatusFailed, nil, "项目不存在: "+task.ProjectId)
		return nil, nil, fmt.Errorf("project %s not found: %w", task.ProjectId, asynq.SkipRetry)
	}
	project := list[idx]
	return task, &project, nil
}

// saveProject 整列表 read-modify-write 覆盖写回（最后写入者生效）
func (p *Processor) saveProject(project models.Project) error {
	list, err := Store.Load()
	if err != nil {
		return err
	}
	return Store.Save(models.UpsertProject(list, project))
}

// progressSink 把进度事件落到任务行：百分比 + 阶段描述
func (p *Processor) progressSink(task *models.Task) ProgressFunc {
	return func(stage string, completed, total int) {
		pct := 0
		if total > 0 {
			pct = completed * 100 / total
		}
		msg := fmt.Sprintf("%s %d/%d", stage, completed, total)
		if err := task.SetProgress(p.DB, pct, msg); err != nil {
			config.Log.Warnf("写入任务进度失败: %v", err)
		}
	}
}

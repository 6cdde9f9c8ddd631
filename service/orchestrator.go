package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inflow-server/config"
	"inflow-server/gateway"
	"inflow-server/models"

	"github.com/google/uuid"
)

var (
	// 单个分镜生图失败：记录后继续下一镜，项目允许缺图
	ErrAssetGeneration = errors.New("pipeline: segment asset generation failed")
	// 整片配音失败：Produce 整体失败，项目停在 draft，等调用方重试
	ErrAudioGeneration = errors.New("pipeline: audio generation failed")
)

// ProgressFunc 进度事件 (阶段标签, 已完成, 总数)，由展示层自行消费。
// 传 nil 表示不上报
type ProgressFunc func(stage string, completed, total int)

// Orchestrator 按固定顺序驱动三类网关调用：brainstorm -> script ->
// 逐镜生图 + 整片配音。Produce 期间项目对象由编排器独占，调用方
// 不得对同一项目并发发起 Produce
type Orchestrator struct {
	Gateway  gateway.Generator
	Assets   AssetStore
	Progress ProgressFunc
}

func NewOrchestrator(gw gateway.Generator, assets AssetStore) *Orchestrator {
	return &Orchestrator{Gateway: gw, Assets: assets}
}

func (o *Orchestrator) report(stage string, completed, total int) {
	if o.Progress != nil {
		o.Progress(stage, completed, total)
	}
}

// Brainstorm 一次网关调用返回创意列表。模型输出解析失败降级为空列表
// 而不是向上抛错（fail-soft：坏响应表现为"没有创意"，不崩掉调用方）
func (o *Orchestrator) Brainstorm(ctx context.Context, niche string) ([]models.Idea, error) {
	niche = strings.TrimSpace(niche)
	if niche == "" {
		return nil, fmt.Errorf("niche 不能为空")
	}

	o.report(models.StageIdeation, 0, 1)
	ideas, err := o.Gateway.Brainstorm(ctx, niche)
	if errors.Is(err, gateway.ErrParse) {
		config.Log.Warnf("brainstorm 响应解析失败，降级为空列表: %v", err)
		return []models.Idea{}, nil
	}
	if err != nil {
		return nil, err
	}
	o.report(models.StageIdeation, 1, 1)
	return ideas, nil
}

// ScriptFor 一次网关调用生成分镜脚本，构造 draft 状态的新项目。
// 解析失败同样 fail-soft：得到零分镜的项目（允许短暂存在，但永远
// 到不了 ready）
func (o *Orchestrator) ScriptFor(ctx context.Context, niche string, idea models.Idea) (*models.Project, error) {
	o.report(models.StageScripting, 0, 1)
	segments, err := o.Gateway.Script(ctx, idea)
	if errors.Is(err, gateway.ErrParse) {
		config.Log.Warnf("script 响应解析失败，降级为零分镜: %v", err)
		segments = nil
	} else if err != nil {
		return nil, err
	}

	// 网关没给 id 的分镜在这里补全，保证 Visual 能按 id 绑定
	for i := range segments {
		if segments[i].ID == "" {
			segments[i].ID = uuid.NewString()
		}
	}

	now := time.Now()
	project := &models.Project{
		ID:        uuid.NewString(),
		Niche:     niche,
		Idea:      idea,
		Script:    segments,
		Visuals:   []models.Visual{},
		Status:    models.ProjectStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.report(models.StageScripting, 1, 1)
	return project, nil
}

// Produce 核心算法：严格按脚本顺序逐镜生图（同一时刻只有一个在途
// 网关请求），之后把整片旁白一次性送 TTS。规则：
//   - 已带素材的分镜直接跳过，支持断点续跑（幂等）
//   - 单镜失败只记录并继续，项目允许以缺图状态完成
//   - 网关整体不可用（传输/鉴权失败）中止本阶段，项目保持 draft
//   - 配音失败同样致命，项目保持 draft，由调用方重试
//
// 两步都完成后项目进入 ready（个别分镜缺图不阻塞）
func (o *Orchestrator) Produce(ctx context.Context, p *models.Project) error {
	total := len(p.Script)
	if total == 0 {
		return fmt.Errorf("项目 %s 没有分镜，无法生产", p.ID)
	}

	o.report(models.StageGenerating, p.VisualizedCount(), total)

	for i := range p.Script {
		seg := &p.Script[i]
		if p.VisualFor(seg.ID) != nil {
			// 续跑：上一轮已生成过的分镜不再触网
			o.report(models.StageGenerating, i+1, total)
			continue
		}

		data, mime, err := o.Gateway.Image(ctx, seg.VisualPrompt)
		if errors.Is(err, gateway.ErrUnavailable) {
			return fmt.Errorf("生图阶段网关不可用: %w", err)
		}
		if err != nil {
			// 单镜失败不中止整个项目
			config.Log.Warnf("分镜 %s 生图失败（跳过）: %v", seg.ID, fmt.Errorf("%w: %v", ErrAssetGeneration, err))
			o.report(models.StageGenerating, i+1, total)
			continue
		}

		objectName := fmt.Sprintf("projects/%s/segments/%s%s", p.ID, seg.ID, extByMIME(mime))
		assetURL, err := o.Assets.Put(ctx, objectName, data, mime)
		if err != nil {
			config.Log.Warnf("分镜 %s 素材物化失败（跳过）: %v", seg.ID, fmt.Errorf("%w: %v", ErrAssetGeneration, err))
			o.report(models.StageGenerating, i+1, total)
			continue
		}

		p.AttachVisual(models.Visual{URL: assetURL, SegmentID: seg.ID})
		p.UpdatedAt = time.Now()
		o.report(models.StageGenerating, i+1, total)
	}

	// 整片配音：所有分镜旁白按顺序单空格拼接，一次 TTS 调用。
	// 已有配音的项目不重复生成（幂等，audioUrl 不变）
	if p.AudioURL == "" {
		o.report(models.StageVoiceover, 0, 1)
		pcm, err := o.Gateway.Speech(ctx, p.Narration())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAudioGeneration, err)
		}

		wav := WrapPCM(pcm, gateway.SpeechSampleRate)
		objectName := fmt.Sprintf("projects/%s/voiceover.wav", p.ID)
		audioURL, err := o.Assets.Put(ctx, objectName, wav, "audio/wav")
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAudioGeneration, err)
		}
		p.AudioURL = audioURL
		o.report(models.StageVoiceover, 1, 1)
	}

	p.Status = models.ProjectStatusReady
	p.UpdatedAt = time.Now()
	return nil
}

func extByMIME(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

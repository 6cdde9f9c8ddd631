package models

import (
	"strings"
	"time"
)

// 项目状态常量（draft -> ready -> exported，failed 用于向 UI 暴露致命错误）
const (
	ProjectStatusDraft    = "draft"    // 脚本已生成，素材未齐
	ProjectStatusReady    = "ready"    // 分镜素材循环与配音均已完成，可预览/导出
	ProjectStatusExported = "exported" // 已导出成片
	ProjectStatusFailed   = "failed"   // 生成过程出错
)

// pipeline 阶段标签，进度事件和任务 message 统一使用
const (
	StageIdeation   = "ideation"
	StageScripting  = "scripting"
	StageGenerating = "generating"
	StageVoiceover  = "voiceover"
	StageExporting  = "exporting"
)

// Idea 头脑风暴产物，选中后立即用于生成脚本，不单独落库
type Idea struct {
	Title          string `json:"title"`
	Hook           string `json:"hook"`
	Description    string `json:"description"`
	SuggestedNiche string `json:"suggestedNiche"`
}

// Segment 脚本中的一个分镜，顺序在脚本生成时固定，之后只做原地标注
type Segment struct {
	ID            string `json:"id"`
	TimeRange     string `json:"timeRange"`
	VoiceoverText string `json:"voiceoverText"`
	VisualPrompt  string `json:"visualPrompt"`
}

// Visual 已物化的分镜图片，URL 指向对象存储里我们自己持有的字节，
// 不允许是网关侧的临时地址
type Visual struct {
	URL          string `json:"url"`
	SegmentID    string `json:"segmentId"`
	IsGenerating bool   `json:"isGenerating"`
}

// Project 聚合根，独占其 Script 与 Visuals
type Project struct {
	ID        string    `json:"id"`
	Niche     string    `json:"niche"`
	Idea      Idea      `json:"idea"`
	Script    []Segment `json:"script"`
	Visuals   []Visual  `json:"visuals"`
	AudioURL  string    `json:"audioUrl,omitempty"`
	VideoURL  string    `json:"videoUrl,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VisualFor 返回绑定到指定分镜的素材，没有则返回 nil
func (p *Project) VisualFor(segmentID string) *Visual {
	for i := range p.Visuals {
		if p.Visuals[i].SegmentID == segmentID {
			return &p.Visuals[i]
		}
	}
	return nil
}

// AttachVisual 原地标注：同一分镜重复生成时覆盖旧素材，保证
// len(Visuals) 不超过分镜数
func (p *Project) AttachVisual(v Visual) {
	for i := range p.Visuals {
		if p.Visuals[i].SegmentID == v.SegmentID {
			p.Visuals[i] = v
			return
		}
	}
	p.Visuals = append(p.Visuals, v)
}

// VisualizedCount 已带素材的分镜数
func (p *Project) VisualizedCount() int {
	n := 0
	for i := range p.Script {
		if p.VisualFor(p.Script[i].ID) != nil {
			n++
		}
	}
	return n
}

// Narration 按分镜顺序拼接整片旁白，单个空格连接
func (p *Project) Narration() string {
	parts := make([]string, 0, len(p.Script))
	for _, seg := range p.Script {
		text := strings.TrimSpace(seg.VoiceoverText)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// UpsertProject 按 id 替换或追加，保证持久化列表中 id 不重复
func UpsertProject(list []Project, p Project) []Project {
	for i := range list {
		if list[i].ID == p.ID {
			list[i] = p
			return list
		}
	}
	return append(list, p)
}

// FindProject 在列表中按 id 查找，返回索引，未找到返回 -1
func FindProject(list []Project, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// RemoveProject 按 id 删除，保持其余项目顺序不变
func RemoveProject(list []Project, id string) []Project {
	out := list[:0]
	for _, p := range list {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"inflow-server/config"
	"inflow-server/models"
)

// 错误分类：结构化响应解析失败（调用方可降级为空集合）
// 与 网关不可用（网络/鉴权层面失败，整个阶段中止）
var (
	ErrParse       = errors.New("gateway: malformed structured response")
	ErrUnavailable = errors.New("gateway: service unavailable")
)

// Generator 生成网关的能力边界：文本进，结构化 JSON 或媒体字节出
type Generator interface {
	Brainstorm(ctx context.Context, niche string) ([]models.Idea, error)
	Script(ctx context.Context, idea models.Idea) ([]models.Segment, error)
	Image(ctx context.Context, prompt string) ([]byte, string, error)
	Speech(ctx context.Context, text string) ([]byte, error)
}

// Client 包装对远端生成服务的 HTTP 调用
type Client struct {
	TextAPI    string
	ImageAPI   string
	SpeechAPI  string
	APIKey     string
	Model      string
	Voice      string
	HTTPClient *http.Client
}

// 语音能力固定返回 24kHz 单声道 16bit 裸 PCM
const (
	SpeechSampleRate = 24000
	SpeechFormat     = "pcm"
)

// 生图统一使用竖屏 9:16
const (
	ImageWidth  = 720
	ImageHeight = 1280
)

func NewClientFromConfig() *Client {
	cfg := config.AppConfig.Gateway
	return &Client{
		TextAPI:    cfg.TextAPI,
		ImageAPI:   cfg.ImageAPI,
		SpeechAPI:  cfg.SpeechAPI,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Voice:      cfg.Voice,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

const brainstormSystemPrompt = `You are a short-form content strategist. ` +
	`Respond with ONLY a valid JSON array, no markdown, no explanation. ` +
	`Each element: {"title": string, "hook": string, "description": string, "suggestedNiche": string}.`

const scriptSystemPrompt = `You are a short-form video scriptwriter. ` +
	`Respond with ONLY a valid JSON array, no markdown, no explanation. ` +
	`Each element, in playback order: {"id": string, "time": string, "text": string, "visualPrompt": string}.`

// Brainstorm 一次文本调用，返回创意列表。内容解析失败返回 ErrParse
func (c *Client) Brainstorm(ctx context.Context, niche string) ([]models.Idea, error) {
	user := fmt.Sprintf("Generate 5 viral short-video ideas for the niche: %q.", niche)
	content, err := c.complete(ctx, brainstormSystemPrompt, user)
	if err != nil {
		return nil, err
	}
	return decodeIdeas(content)
}

// Script 一次文本调用，返回顺序敏感的分镜草稿
func (c *Client) Script(ctx context.Context, idea models.Idea) ([]models.Segment, error) {
	var sb strings.Builder
	sb.WriteString("Write a 30-60 second video script for this idea.\n")
	sb.WriteString("TITLE: " + idea.Title + "\n")
	sb.WriteString("HOOK: " + idea.Hook + "\n")
	sb.WriteString("DESCRIPTION: " + idea.Description + "\n")
	sb.WriteString("Respond ONLY with the JSON array of segments.")

	content, err := c.complete(ctx, scriptSystemPrompt, sb.String())
	if err != nil {
		return nil, err
	}
	return decodeSegments(content)
}

// Image 生图调用，返回图片字节和 MIME。响应过小视为失败（多半是错误页）
func (c *Client) Image(ctx context.Context, prompt string) ([]byte, string, error) {
	q := url.Values{}
	q.Set("prompt", prompt)
	q.Set("width", strconv.Itoa(ImageWidth))
	q.Set("height", strconv.Itoa(ImageHeight))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ImageAPI+"?"+q.Encode(), nil)
	if err != nil {
		return nil, "", err
	}
	c.authorize(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, "", fmt.Errorf("%w: image status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if len(data) < 100 {
		return nil, "", fmt.Errorf("image response too small (%d bytes)", len(data))
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/png"
	}
	return data, mime, nil
}

// Speech TTS 调用，入参是整片拼接后的旁白，返回裸 PCM 字节，
// 播放前必须用 service.WrapPCM 包上 WAV 头
func (c *Client) Speech(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input":       text,
		"voice":       c.Voice,
		"sample_rate": SpeechSampleRate,
		"format":      SpeechFormat,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.SpeechAPI, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: speech status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech status %d", resp.StatusCode)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("speech returned no audio data")
	}
	return pcm, nil
}

// complete 发送一轮 chat completion，返回 content 文本
func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	reqBody := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.8,
		MaxTokens:   4096,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TextAPI, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: text status %d", ErrUnavailable, resp.StatusCode)
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBytes, &chatResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrParse)
	}
	return chatResp.Choices[0].Message.Content, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
}

type ideaJSON struct {
	Title          string `json:"title"`
	Hook           string `json:"hook"`
	Description    string `json:"description"`
	SuggestedNiche string `json:"suggestedNiche"`
}

type segmentJSON struct {
	ID           string `json:"id"`
	Time         string `json:"time"`
	Text         string `json:"text"`
	VisualPrompt string `json:"visualPrompt"`
}

func decodeIdeas(content string) ([]models.Idea, error) {
	var raw []ideaJSON
	if err := json.Unmarshal([]byte(cleanJSON(content)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	ideas := make([]models.Idea, 0, len(raw))
	for _, r := range raw {
		if r.Title == "" {
			return nil, fmt.Errorf("%w: idea missing title", ErrParse)
		}
		ideas = append(ideas, models.Idea{
			Title:          r.Title,
			Hook:           r.Hook,
			Description:    r.Description,
			SuggestedNiche: r.SuggestedNiche,
		})
	}
	return ideas, nil
}

func decodeSegments(content string) ([]models.Segment, error) {
	var raw []segmentJSON
	if err := json.Unmarshal([]byte(cleanJSON(content)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	// 数组顺序即播放顺序，原样保留
	segments := make([]models.Segment, 0, len(raw))
	for _, r := range raw {
		if r.Text == "" {
			return nil, fmt.Errorf("%w: segment missing text", ErrParse)
		}
		segments = append(segments, models.Segment{
			ID:            r.ID,
			TimeRange:     r.Time,
			VoiceoverText: r.Text,
			VisualPrompt:  r.VisualPrompt,
		})
	}
	return segments, nil
}

// cleanJSON 剥掉模型偶尔包上的 markdown 代码栅栏
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"inflow-server/config"
	"inflow-server/models"
)

// 导出阶段致命错误：不交付任何半成品文件
var ErrEncoding = errors.New("export: encoding failed")

// Exporter 把 ready 项目的分镜素材和配音合成一个可下载的 webm。
// 每张分镜按固定 dwell 秒停留，成片时长 = 分镜数 x dwell，与旁白
// 长度无关——旁白只是混进去并在该时长处截断，不做逐帧对齐。这是
// 沿用的已知限制，不是缺陷修复点
type Exporter struct {
	Assets     AssetStore
	Width      int
	Height     int
	FPS        int
	Dwell      float64
	FFmpegBin  string       // 默认 "ffmpeg"
	WorkDir    string       // 临时目录父路径，默认系统临时目录
	HTTPClient *http.Client // 素材下载客户端，必须带超时（坏图不能无限阻塞）
	Progress   ProgressFunc
}

func NewExporter(assets AssetStore) *Exporter {
	cfg := config.AppConfig.Export
	return &Exporter{
		Assets:     assets,
		Width:      cfg.Width,
		Height:     cfg.Height,
		FPS:        cfg.FPS,
		Dwell:      cfg.DwellSec,
		FFmpegBin:  "ffmpeg",
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Export 合成成片并上传，成功后项目进入 exported 并回填 videoUrl。
// 任何一步失败都会清掉临时状态，项目保持 ready，可直接重试
func (e *Exporter) Export(ctx context.Context, p *models.Project) (string, error) {
	if p.Status != models.ProjectStatusReady && p.Status != models.ProjectStatusExported {
		return "", fmt.Errorf("项目 %s 状态为 %s，不可导出", p.ID, p.Status)
	}
	if p.AudioURL == "" {
		return "", fmt.Errorf("项目 %s 缺少配音，不可导出", p.ID)
	}

	// 工作目录拿不到直接中止，此时还没开始编码
	workDir, err := os.MkdirTemp(e.WorkDir, "inflow-export-")
	if err != nil {
		return "", fmt.Errorf("创建导出工作目录失败: %w", err)
	}
	// 成功失败都清理，保证重试从干净状态开始
	defer os.RemoveAll(workDir)

	// 按分镜顺序下载帧
	var frames []string
	total := 0
	for i := range p.Script {
		if p.VisualFor(p.Script[i].ID) != nil {
			total++
		}
	}
	if total == 0 {
		return "", fmt.Errorf("项目 %s 没有任何分镜素材", p.ID)
	}

	drawn := 0
	for i := range p.Script {
		v := p.VisualFor(p.Script[i].ID)
		if v == nil {
			continue // 生产阶段缺图的分镜直接跳过
		}
		framePath := filepath.Join(workDir, fmt.Sprintf("frame_%03d%s", drawn, extByURL(v.URL)))
		if err := e.download(ctx, v.URL, framePath); err != nil {
			return "", fmt.Errorf("%w: 下载分镜 %s 素材失败: %v", ErrEncoding, p.Script[i].ID, err)
		}
		frames = append(frames, framePath)
		drawn++
		e.reportProgress(drawn, total)
	}

	audioPath := filepath.Join(workDir, "voiceover.wav")
	if err := e.download(ctx, p.AudioURL, audioPath); err != nil {
		return "", fmt.Errorf("%w: 下载配音失败: %v", ErrEncoding, err)
	}

	listPath := filepath.Join(workDir, "frames.txt")
	if err := os.WriteFile(listPath, []byte(buildConcatList(frames, e.Dwell)), 0644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	outPath := filepath.Join(workDir, "output.webm")
	if err := e.encode(ctx, listPath, audioPath, outPath, PlannedDuration(len(frames), e.Dwell)); err != nil {
		return "", err
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	objectName := fmt.Sprintf("projects/%s/%s", p.ID, ExportFileName(p.Idea.Title))
	videoURL, err := e.Assets.Put(ctx, objectName, data, "video/webm")
	if err != nil {
		return "", fmt.Errorf("%w: 上传成片失败: %v", ErrEncoding, err)
	}

	p.VideoURL = videoURL
	p.Status = models.ProjectStatusExported
	p.UpdatedAt = time.Now()
	return videoURL, nil
}

func (e *Exporter) reportProgress(drawn, total int) {
	if e.Progress != nil {
		e.Progress(models.StageExporting, drawn, total)
	}
}

// download 带超时地取回素材字节（客户端超时即坏图保护）
func (e *Exporter) download(ctx context.Context, srcURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return err
	}
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status: %d", resp.StatusCode)
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

// encode 跑 ffmpeg：concat 列表按 dwell 停留出竖屏视频流，混入配音，
// 总时长固定钳在 frames x dwell
func (e *Exporter) encode(ctx context.Context, listPath, audioPath, outPath string, duration float64) error {
	vf := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1",
		e.Width, e.Height, e.Width, e.Height,
	)
	cmd := exec.CommandContext(ctx, e.FFmpegBin, "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-i", audioPath,
		"-c:v", "libvpx-vp9",
		"-c:a", "libopus",
		"-vf", vf,
		"-r", fmt.Sprintf("%d", e.FPS),
		"-pix_fmt", "yuv420p",
		"-t", fmt.Sprintf("%.3f", duration),
		outPath,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: ffmpeg: %v", ErrEncoding, err)
	}
	return nil
}

// buildConcatList 生成 ffmpeg concat demuxer 列表，每帧停留 dwell 秒。
// 末帧需要重复一行 file，否则 demuxer 会忽略最后一个 duration
func buildConcatList(frames []string, dwell float64) string {
	var sb strings.Builder
	for _, f := range frames {
		sb.WriteString(fmt.Sprintf("file '%s'\n", f))
		sb.WriteString(fmt.Sprintf("duration %.3f\n", dwell))
	}
	if len(frames) > 0 {
		sb.WriteString(fmt.Sprintf("file '%s'\n", frames[len(frames)-1]))
	}
	return sb.String()
}

// PlannedDuration 成片时长 = 帧数 x 停留秒数，与配音长度无关
func PlannedDuration(frames int, dwell float64) float64 {
	return float64(frames) * dwell
}

// ExportFileName 由项目标题生成下载文件名，非安全字符替换为下划线
func ExportFileName(title string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(title))
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		sanitized = "untitled"
	}
	return sanitized + "_inflow.webm"
}

func extByURL(assetURL string) string {
	// 预签名 URL 带 query，先剥掉再取扩展名
	clean := assetURL
	if i := strings.IndexByte(clean, '?'); i >= 0 {
		clean = clean[:i]
	}
	switch strings.ToLower(filepath.Ext(clean)) {
	case ".jpg", ".jpeg":
		return ".jpg"
	case ".webp":
		return ".webp"
	default:
		return ".png"
	}
}

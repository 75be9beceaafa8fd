package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"cam-sentinel-ai/internal/config"
)

// Processor 图片缩放与缩略图落盘
type Processor struct {
	maxSubmitWidth int
	thumbnailWidth int
	thumbnailDir   string
}

// NewProcessor 创建图片处理器
func NewProcessor(cfg *config.MediaConfig) *Processor {
	maxSubmitWidth := cfg.MaxSubmitWidth
	if maxSubmitWidth <= 0 {
		maxSubmitWidth = 1280
	}
	thumbnailWidth := cfg.ThumbnailWidth
	if thumbnailWidth <= 0 {
		thumbnailWidth = 320
	}
	return &Processor{
		maxSubmitWidth: maxSubmitWidth,
		thumbnailWidth: thumbnailWidth,
		thumbnailDir:   cfg.ThumbnailDir,
	}
}

// PrepareForSubmit 将帧缩放到提交宽度上限以内，已满足时原样返回
func (p *Processor) PrepareForSubmit(frame []byte) ([]byte, error) {
	return resizeJPEG(frame, p.maxSubmitWidth)
}

// SaveThumbnail 生成事件缩略图并落盘，返回落盘路径
func (p *Processor) SaveThumbnail(eventID string, frame []byte) (string, error) {
	if p.thumbnailDir == "" {
		return "", nil
	}

	thumb, err := resizeJPEG(frame, p.thumbnailWidth)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(p.thumbnailDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create thumbnail dir: %w", err)
	}

	path := filepath.Join(p.thumbnailDir, eventID+".jpg")
	if err := os.WriteFile(path, thumb, 0o644); err != nil {
		return "", fmt.Errorf("failed to write thumbnail: %w", err)
	}
	return path, nil
}

// resizeJPEG 等比缩放到目标宽度，不放大
func resizeJPEG(data []byte, maxWidth int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxWidth {
		return data, nil
	}

	height := bounds.Dy() * maxWidth / bounds.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

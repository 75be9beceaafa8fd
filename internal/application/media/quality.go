package media

import (
	"bytes"
	"context"
	"image"
	"math"
	"sort"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	"cam-sentinel-ai/internal/config"
	"cam-sentinel-ai/pkg/logger"
	"cam-sentinel-ai/pkg/metrics"
)

// FrameScore 单帧质量评分
type FrameScore struct {
	Index int
	// Sharpness Laplacian 方差，越低越模糊
	Sharpness float64
	// Contrast 像素强度标准差，接近零表示近纯色帧
	Contrast float64
	Usable   bool
	// Reason 不可用原因：blur / flat / undecodable
	Reason string
}

// QualityFilter 帧质量过滤器。
// 丢弃模糊与近纯色帧，并保证过滤后至少保留 minCount 帧：
// 不足时按评分从被丢弃的帧中回填最好的几帧。
type QualityFilter struct {
	minCount int
	bypass   bool

	mu                sync.RWMutex
	blurThreshold     float64
	flatnessThreshold float64
}

// NewQualityFilter 创建质量过滤器
func NewQualityFilter(cfg *config.MediaConfig) *QualityFilter {
	blur := cfg.BlurThreshold
	if blur <= 0 {
		blur = 100.0
	}
	flatness := cfg.FlatnessThreshold
	if flatness <= 0 {
		flatness = 10.0
	}
	minCount := cfg.MinUsableFrames
	if minCount <= 0 {
		minCount = 3
	}
	return &QualityFilter{
		blurThreshold:     blur,
		flatnessThreshold: flatness,
		minCount:          minCount,
		bypass:            cfg.BypassQualityFilter,
	}
}

// UpdateThresholds 热更新模糊/平坦度阈值，配置重载时调用
func (f *QualityFilter) UpdateThresholds(blur, flatness float64) {
	f.mu.Lock()
	if blur > 0 {
		f.blurThreshold = blur
	}
	if flatness > 0 {
		f.flatnessThreshold = flatness
	}
	f.mu.Unlock()
}

// Filter 过滤低质量帧。bypass 打开时原样返回输入。
func (f *QualityFilter) Filter(ctx context.Context, frames [][]byte) [][]byte {
	if f.bypass || len(frames) == 0 {
		return frames
	}

	f.mu.RLock()
	blur, flatness := f.blurThreshold, f.flatnessThreshold
	f.mu.RUnlock()

	scores := make([]FrameScore, len(frames))
	for i, frame := range frames {
		scores[i] = score(i, frame, blur, flatness)
	}

	kept := make([][]byte, 0, len(frames))
	discarded := make([]FrameScore, 0)
	for _, s := range scores {
		if s.Usable {
			kept = append(kept, frames[s.Index])
		} else {
			discarded = append(discarded, s)
			metrics.FramesDiscarded.WithLabelValues(s.Reason).Inc()
		}
	}

	if len(discarded) > 0 {
		logger.Debug(ctx, "frames discarded by quality filter",
			"total", len(frames),
			"kept", len(kept),
			"discarded", len(discarded),
		)
	}
	// 全军覆没值得运维看见：回填会兜住数量，但内容质量堪忧
	if len(kept) == 0 {
		logger.Warn(ctx, "all frames below quality thresholds, backfilling best discards",
			"total", len(frames),
			"blur_threshold", blur,
			"flatness_threshold", flatness,
		)
		metrics.FramesAllBelowThreshold.Inc()
	}

	// 不足 minCount 时从丢弃的帧中回填评分最高的，无法解码的不回填
	if len(kept) < f.minCount {
		sort.Slice(discarded, func(i, j int) bool {
			return discarded[i].Sharpness > discarded[j].Sharpness
		})
		for _, s := range discarded {
			if len(kept) >= f.minCount || len(kept) >= len(frames) {
				break
			}
			if s.Reason == "undecodable" {
				continue
			}
			kept = append(kept, frames[s.Index])
		}
	}

	return kept
}

// score 计算单帧评分
func score(index int, frame []byte, blurThreshold, flatnessThreshold float64) FrameScore {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return FrameScore{Index: index, Reason: "undecodable"}
	}

	gray := toGray(img)
	sharpness := laplacianVariance(gray)
	contrast := intensityStdDev(gray)

	s := FrameScore{
		Index:     index,
		Sharpness: sharpness,
		Contrast:  contrast,
	}
	switch {
	case contrast < flatnessThreshold:
		s.Reason = "flat"
	case sharpness < blurThreshold:
		s.Reason = "blur"
	default:
		s.Usable = true
	}
	return s
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}

// laplacianVariance 计算 3x3 Laplacian 卷积结果的方差，经典锐度度量
func laplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	var sum, sumSq float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			center := float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			up := float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y-1).Y)
			down := float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y+1).Y)
			left := float64(gray.GrayAt(bounds.Min.X+x-1, bounds.Min.Y+y).Y)
			right := float64(gray.GrayAt(bounds.Min.X+x+1, bounds.Min.Y+y).Y)

			lap := up + down + left + right - 4*center
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}

// intensityStdDev 计算像素强度标准差
func intensityStdDev(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return 0
	}

	var sum, sumSq float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := float64(gray.GrayAt(x, y).Y)
			sum += v
			sumSq += v * v
		}
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// Package provider 提供 AI 描述提供商客户端
package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"cam-sentinel-ai/internal/config"
	"cam-sentinel-ai/internal/domain/entity"
	apperrors "cam-sentinel-ai/pkg/errors"
)

var tracer = otel.Tracer("provider")

// Input 一次描述请求的媒体输入。
// Video 与 Frames 互斥：视频模式只带 Video，帧模式只带 Frames。
type Input struct {
	Prompt string
	Mode   entity.AnalysisMode
	Video  []byte
	// VideoFormat 视频容器格式（小写扩展名，如 mp4）
	VideoFormat string
	// VideoDuration 片段时长，用于时长上限校验
	VideoDuration time.Duration
	Frames        [][]byte
}

// Capabilities 提供商能力声明
type Capabilities struct {
	// SupportsVideo 是否支持原生视频输入
	SupportsVideo bool
	// MaxVideoBytes 视频输入大小上限，0 表示不限
	MaxVideoBytes int64
	// MaxVideoDuration 视频时长上限，0 表示不限
	MaxVideoDuration time.Duration
	// VideoFormats 支持的视频容器格式，空表示不限
	VideoFormats []string
	// MaxImages 单次请求图片数上限
	MaxImages int
}

// ValidateVideo 在任何网络调用前本地校验视频输入，
// 超限或格式不支持直接返回快速错误，不浪费一次上游调用
func (c Capabilities) ValidateVideo(format string, size int64, duration time.Duration) error {
	if !c.SupportsVideo {
		return apperrors.New(apperrors.CodeProviderUnsupported, "provider does not support video input")
	}
	if c.MaxVideoBytes > 0 && size > c.MaxVideoBytes {
		return apperrors.New(apperrors.CodeProviderError, "video input exceeds size limit")
	}
	if c.MaxVideoDuration > 0 && duration > c.MaxVideoDuration {
		return apperrors.New(apperrors.CodeProviderError, "video input exceeds duration limit")
	}
	if len(c.VideoFormats) > 0 && format != "" {
		supported := false
		for _, f := range c.VideoFormats {
			if f == format {
				supported = true
				break
			}
		}
		if !supported {
			return apperrors.New(apperrors.CodeProviderError, fmt.Sprintf("unsupported video format %q", format))
		}
	}
	return nil
}

// Result 提供商原始返回
type Result struct {
	// Text 模型输出原文，置信度提取在上层完成
	Text string
	// TokensInput / TokensOutput 上游报告的用量，UsageReported 为 false 时无效
	TokensInput   int
	TokensOutput  int
	UsageReported bool
}

// Provider AI 描述提供商接口
type Provider interface {
	Name() string
	Model() string
	Capabilities() Capabilities
	Describe(ctx context.Context, in *Input) (*Result, error)
}

// Factory 按名称惰性构建提供商客户端
type Factory struct {
	config    *config.ProvidersConfig
	providers map[string]Provider
	mu        sync.RWMutex
}

// NewFactory 创建提供商工厂
func NewFactory(cfg *config.ProvidersConfig) *Factory {
	return &Factory{
		config:    cfg,
		providers: make(map[string]Provider),
	}
}

// Get 获取指定名称的提供商，名称为空时返回默认提供商
func (f *Factory) Get(name string) (Provider, error) {
	if name == "" {
		name = f.config.Default
	}

	f.mu.RLock()
	p, ok := f.providers[name]
	f.mu.RUnlock()
	if ok {
		return p, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if p, ok = f.providers[name]; ok {
		return p, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in config", name)
	}

	var err error
	switch providerCfg.Kind {
	case "openai":
		p = NewOpenAI(name, &providerCfg)
	case "gemini":
		p = NewGemini(name, &providerCfg)
	case "ollama":
		p = NewOllama(name, &providerCfg)
	default:
		err = fmt.Errorf("unknown provider kind %q for %s", providerCfg.Kind, name)
	}
	if err != nil {
		return nil, err
	}

	f.providers[name] = p
	return p, nil
}

// Default 返回默认提供商
func (f *Factory) Default() (Provider, error) {
	return f.Get("")
}

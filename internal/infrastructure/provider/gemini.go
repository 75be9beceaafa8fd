package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cam-sentinel-ai/internal/config"
	apperrors "cam-sentinel-ai/pkg/errors"
)

// Gemini Google Gemini generateContent 协议的提供商。
// 唯一支持原生视频输入的变体。
type Gemini struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// 内联视频限制，与上游 inline_data 约束对齐
const (
	geminiMaxVideoBytes    = 20 << 20
	geminiMaxVideoDuration = 2 * time.Minute
)

// geminiVideoFormats 上游接受的视频容器格式
var geminiVideoFormats = []string{"mp4", "mpeg", "mov", "webm"}

// NewGemini 创建 Gemini 客户端
func NewGemini(name string, cfg *config.ProviderConfig) *Gemini {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Gemini{
		name:      name,
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name 返回提供商配置名
func (p *Gemini) Name() string { return p.name }

// Model 返回使用的模型名
func (p *Gemini) Model() string { return p.model }

// Capabilities 返回能力声明
func (p *Gemini) Capabilities() Capabilities {
	return Capabilities{
		SupportsVideo:    true,
		MaxVideoBytes:    geminiMaxVideoBytes,
		MaxVideoDuration: geminiMaxVideoDuration,
		VideoFormats:     geminiVideoFormats,
		MaxImages:        16,
	}
}

// videoMimeType 容器格式到 MIME 类型的映射，未知时按 mp4 处理
func videoMimeType(format string) string {
	switch format {
	case "mov":
		return "video/quicktime"
	case "", "mp4":
		return "video/mp4"
	default:
		return "video/" + format
	}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiRequest struct {
	Contents []struct {
		Parts []geminiPart `json:"parts"`
	} `json:"contents"`
	GenerationConfig *struct {
		MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Describe 对输入媒体生成描述
func (p *Gemini) Describe(ctx context.Context, in *Input) (*Result, error) {
	ctx, span := tracer.Start(ctx, "gemini.Describe",
		trace.WithAttributes(
			attribute.String("provider", p.name),
			attribute.String("model", p.model),
			attribute.Bool("video", len(in.Video) > 0),
			attribute.Int("frames", len(in.Frames)),
		))
	defer span.End()

	parts := []geminiPart{{Text: in.Prompt}}
	if len(in.Video) > 0 {
		if err := p.Capabilities().ValidateVideo(in.VideoFormat, int64(len(in.Video)), in.VideoDuration); err != nil {
			return nil, err
		}
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MimeType: videoMimeType(in.VideoFormat),
				Data:     base64.StdEncoding.EncodeToString(in.Video),
			},
		})
	}
	for _, frame := range in.Frames {
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MimeType: "image/jpeg",
				Data:     base64.StdEncoding.EncodeToString(frame),
			},
		})
	}

	var reqPayload geminiRequest
	reqPayload.Contents = append(reqPayload.Contents, struct {
		Parts []geminiPart `json:"parts"`
	}{Parts: parts})
	if p.maxTokens > 0 {
		reqPayload.GenerationConfig = &struct {
			MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
		}{MaxOutputTokens: p.maxTokens}
	}

	reqBody, err := json.Marshal(&reqPayload)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeProviderError, "failed to marshal request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeProviderError, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeProviderUnavailable, "provider request failed")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
		return nil, apperrors.New(apperrors.CodeProviderUnavailable, fmt.Sprintf("provider unavailable: status=%d", httpResp.StatusCode))
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, apperrors.New(apperrors.CodeProviderError, fmt.Sprintf("provider request failed: status=%d", httpResp.StatusCode))
	}

	var resp geminiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeProviderError, "failed to decode response")
	}
	if resp.Error != nil {
		return nil, apperrors.New(apperrors.CodeProviderError, resp.Error.Message)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, apperrors.New(apperrors.CodeProviderError, "empty response from provider")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	result := &Result{
		Text: sb.String(),
	}
	if resp.UsageMetadata.PromptTokenCount > 0 || resp.UsageMetadata.CandidatesTokenCount > 0 {
		result.TokensInput = resp.UsageMetadata.PromptTokenCount
		result.TokensOutput = resp.UsageMetadata.CandidatesTokenCount
		result.UsageReported = true
	}

	span.SetAttributes(
		attribute.Int("tokens.input", result.TokensInput),
		attribute.Int("tokens.output", result.TokensOutput),
	)
	return result, nil
}

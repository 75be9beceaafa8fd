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

// Ollama 本地 Ollama 视觉模型提供商。
// 只接受单张图片输入，用量由 eval 计数报告。
type Ollama struct {
	name       string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllama 创建 Ollama 客户端
func NewOllama(name string, cfg *config.ProviderConfig) *Ollama {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Ollama{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name 返回提供商配置名
func (p *Ollama) Name() string { return p.name }

// Model 返回使用的模型名
func (p *Ollama) Model() string { return p.model }

// Capabilities 返回能力声明
func (p *Ollama) Capabilities() Capabilities {
	return Capabilities{
		SupportsVideo: false,
		MaxImages:     1,
	}
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// Describe 对输入媒体生成描述
func (p *Ollama) Describe(ctx context.Context, in *Input) (*Result, error) {
	ctx, span := tracer.Start(ctx, "ollama.Describe",
		trace.WithAttributes(
			attribute.String("provider", p.name),
			attribute.String("model", p.model),
		))
	defer span.End()

	if len(in.Video) > 0 {
		return nil, apperrors.New(apperrors.CodeProviderError, "video input is not supported")
	}
	if len(in.Frames) == 0 {
		return nil, apperrors.New(apperrors.CodeProviderError, "no frames to describe")
	}

	// 超出上限时只取首帧
	images := []string{base64.StdEncoding.EncodeToString(in.Frames[0])}

	reqBody, err := json.Marshal(&ollamaRequest{
		Model: p.model,
		Messages: []ollamaMessage{{
			Role:    "user",
			Content: in.Prompt,
			Images:  images,
		}},
		Stream: false,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeProviderError, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(reqBody))
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

	if httpResp.StatusCode >= 500 {
		return nil, apperrors.New(apperrors.CodeProviderUnavailable, fmt.Sprintf("provider unavailable: status=%d", httpResp.StatusCode))
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, apperrors.New(apperrors.CodeProviderError, fmt.Sprintf("provider request failed: status=%d", httpResp.StatusCode))
	}

	var resp ollamaResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeProviderError, "failed to decode response")
	}
	if resp.Error != "" {
		return nil, apperrors.New(apperrors.CodeProviderError, resp.Error)
	}
	if resp.Message.Content == "" {
		return nil, apperrors.New(apperrors.CodeProviderError, "empty response from provider")
	}

	result := &Result{
		Text: resp.Message.Content,
	}
	if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
		result.TokensInput = resp.PromptEvalCount
		result.TokensOutput = resp.EvalCount
		result.UsageReported = true
	}

	span.SetAttributes(
		attribute.Int("tokens.input", result.TokensInput),
		attribute.Int("tokens.output", result.TokensOutput),
	)
	return result, nil
}

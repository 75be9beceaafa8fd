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

// OpenAI 兼容 OpenAI Chat Completions 协议的提供商。
// 不支持原生视频输入。
type OpenAI struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// NewOpenAI 创建 OpenAI 兼容客户端
func NewOpenAI(name string, cfg *config.ProviderConfig) *OpenAI {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAI{
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
func (p *OpenAI) Name() string { return p.name }

// Model 返回使用的模型名
func (p *OpenAI) Model() string { return p.model }

// Capabilities 返回能力声明
func (p *OpenAI) Capabilities() Capabilities {
	return Capabilities{
		SupportsVideo: false,
		MaxImages:     10,
	}
}

type openaiContentPart struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	ImageURL *openaiImageURL  `json:"image_url,omitempty"`
}

type openaiImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type openaiMessage struct {
	Role    string              `json:"role"`
	Content []openaiContentPart `json:"content"`
}

type openaiRequest struct {
	Model     string          `json:"model"`
	Messages  []openaiMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Describe 对输入媒体生成描述
func (p *OpenAI) Describe(ctx context.Context, in *Input) (*Result, error) {
	ctx, span := tracer.Start(ctx, "openai.Describe",
		trace.WithAttributes(
			attribute.String("provider", p.name),
			attribute.String("model", p.model),
			attribute.Int("frames", len(in.Frames)),
		))
	defer span.End()

	if len(in.Video) > 0 {
		return nil, apperrors.New(apperrors.CodeProviderError, "video input is not supported")
	}

	parts := []openaiContentPart{{Type: "text", Text: in.Prompt}}
	for _, frame := range in.Frames {
		parts = append(parts, openaiContentPart{
			Type: "image_url",
			ImageURL: &openaiImageURL{
				URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame),
				Detail: "low",
			},
		})
	}

	reqBody, err := json.Marshal(&openaiRequest{
		Model:     p.model,
		Messages:  []openaiMessage{{Role: "user", Content: parts}},
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeProviderError, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeProviderError, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

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

	var resp openaiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeProviderError, "failed to decode response")
	}
	if resp.Error != nil {
		return nil, apperrors.New(apperrors.CodeProviderError, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.New(apperrors.CodeProviderError, "empty response from provider")
	}

	result := &Result{
		Text: resp.Choices[0].Message.Content,
	}
	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		result.TokensInput = resp.Usage.PromptTokens
		result.TokensOutput = resp.Usage.CompletionTokens
		result.UsageReported = true
	}

	span.SetAttributes(
		attribute.Int("tokens.input", result.TokensInput),
		attribute.Int("tokens.output", result.TokensOutput),
	)
	return result, nil
}

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cam-sentinel-ai/internal/config"
	"cam-sentinel-ai/internal/domain/entity"
	apperrors "cam-sentinel-ai/pkg/errors"
)

func testFactoryConfig(baseURL string) *config.ProvidersConfig {
	return &config.ProvidersConfig{
		Default: "gemini",
		Providers: map[string]config.ProviderConfig{
			"gemini": {Kind: "gemini", Model: "gemini-2.0-flash", BaseURL: baseURL},
			"openai": {Kind: "openai", Model: "gpt-4o-mini", BaseURL: baseURL},
			"broken": {Kind: "carrier-pigeon"},
		},
	}
}

func TestFactoryResolvesDefault(t *testing.T) {
	f := NewFactory(testFactoryConfig("http://localhost"))

	p, err := f.Get("")

	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())
	assert.True(t, p.Capabilities().SupportsVideo)
}

func TestFactoryCachesInstances(t *testing.T) {
	f := NewFactory(testFactoryConfig("http://localhost"))

	first, err := f.Get("openai")
	require.NoError(t, err)
	second, err := f.Get("openai")
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestFactoryUnknownProvider(t *testing.T) {
	f := NewFactory(testFactoryConfig("http://localhost"))

	_, err := f.Get("nonexistent")
	assert.Error(t, err)

	_, err = f.Get("broken")
	assert.Error(t, err)
}

func TestOpenAIDescribe(t *testing.T) {
	var gotReq openaiRequest
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": `{"description": "A person at the door.", "confidence": 85}`}},
			},
			"usage": map[string]int{"prompt_tokens": 900, "completion_tokens": 40},
		})
	}))
	defer server.Close()

	p := NewOpenAI("openai", &config.ProviderConfig{
		Kind:    "openai",
		APIKey:  "sk-test",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
		Timeout: time.Second,
	})

	result, err := p.Describe(context.Background(), &Input{
		Prompt: "Describe the scene.",
		Mode:   entity.ModeMultiFrame,
		Frames: [][]byte{[]byte("frame-1"), []byte("frame-2")},
	})

	require.NoError(t, err)
	assert.Contains(t, result.Text, "A person at the door.")
	assert.True(t, result.UsageReported)
	assert.Equal(t, 900, result.TokensInput)
	assert.Equal(t, 40, result.TokensOutput)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	require.Len(t, gotReq.Messages, 1)
	// 一段提示词加两张低清图
	require.Len(t, gotReq.Messages[0].Content, 3)
	assert.Equal(t, "text", gotReq.Messages[0].Content[0].Type)
	assert.Equal(t, "low", gotReq.Messages[0].Content[1].ImageURL.Detail)
}

func TestOpenAIRejectsVideo(t *testing.T) {
	p := NewOpenAI("openai", &config.ProviderConfig{Kind: "openai", Model: "gpt-4o-mini"})

	_, err := p.Describe(context.Background(), &Input{Video: []byte("mp4")})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProviderError))
}

func TestOpenAIRateLimitIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewOpenAI("openai", &config.ProviderConfig{Kind: "openai", BaseURL: server.URL, Model: "gpt-4o-mini"})

	_, err := p.Describe(context.Background(), &Input{Prompt: "x"})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProviderUnavailable))
}

func TestOpenAIBadRequestIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	p := NewOpenAI("openai", &config.ProviderConfig{Kind: "openai", BaseURL: server.URL, Model: "gpt-4o-mini"})

	_, err := p.Describe(context.Background(), &Input{Prompt: "x"})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProviderError))
}

func TestGeminiDescribeVideo(t *testing.T) {
	var gotReq geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{"parts": []map[string]string{
					{"text": `{"description": "A car `},
					{"text": `pulls in.", "confidence": 78}`},
				}}},
			},
			"usageMetadata": map[string]int{"promptTokenCount": 3000, "candidatesTokenCount": 30},
		})
	}))
	defer server.Close()

	p := NewGemini("gemini", &config.ProviderConfig{
		Kind:    "gemini",
		BaseURL: server.URL,
		Model:   "gemini-2.0-flash",
		Timeout: time.Second,
	})

	result, err := p.Describe(context.Background(), &Input{
		Prompt: "Describe the clip.",
		Mode:   entity.ModeVideoNative,
		Video:  []byte("mp4-bytes"),
	})

	require.NoError(t, err)
	// 多段候选文本拼接
	assert.Contains(t, result.Text, `A car pulls in.`)
	assert.True(t, result.UsageReported)
	assert.Equal(t, 3000, result.TokensInput)

	require.Len(t, gotReq.Contents, 1)
	require.Len(t, gotReq.Contents[0].Parts, 2)
	assert.Equal(t, "video/mp4", gotReq.Contents[0].Parts[1].InlineData.MimeType)
}

func TestGeminiRejectsOversizedVideo(t *testing.T) {
	p := NewGemini("gemini", &config.ProviderConfig{Kind: "gemini", Model: "gemini-2.0-flash"})

	_, err := p.Describe(context.Background(), &Input{Video: make([]byte, geminiMaxVideoBytes+1)})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProviderError))
}

func TestGeminiRejectsUnsupportedVideoFormat(t *testing.T) {
	// 不在能力表里的容器格式在发起请求前就被拦下
	p := NewGemini("gemini", &config.ProviderConfig{Kind: "gemini", Model: "gemini-2.0-flash"})

	_, err := p.Describe(context.Background(), &Input{
		Video:       []byte("wmv-bytes"),
		VideoFormat: "wmv",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProviderError))
}

func TestGeminiRejectsOverlongVideo(t *testing.T) {
	p := NewGemini("gemini", &config.ProviderConfig{Kind: "gemini", Model: "gemini-2.0-flash"})

	_, err := p.Describe(context.Background(), &Input{
		Video:         []byte("mp4-bytes"),
		VideoFormat:   "mp4",
		VideoDuration: geminiMaxVideoDuration + time.Second,
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProviderError))
}

func TestGeminiEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
	}))
	defer server.Close()

	p := NewGemini("gemini", &config.ProviderConfig{Kind: "gemini", BaseURL: server.URL, Model: "gemini-2.0-flash"})

	_, err := p.Describe(context.Background(), &Input{Prompt: "x"})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProviderError))
}

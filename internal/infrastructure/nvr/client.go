// Package nvr 提供上游摄像头/NVR 媒体源客户端
package nvr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cam-sentinel-ai/internal/config"
	apperrors "cam-sentinel-ai/pkg/errors"
)

var tracer = otel.Tracer("nvr")

// Client NVR HTTP 客户端。
// 按 Frigate 风格的接口拉取快照与事件片段：
//
//	GET /api/cameras/{camera}/snapshot.jpg?at=<unix>
//	GET /api/events/{event}/clip.mp4
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient 创建 NVR 客户端
func NewClient(cfg *config.NVRConfig) *Client {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Snapshot 按时间点抓取单帧 JPEG 快照。at 为零值时取最新帧。
func (c *Client) Snapshot(ctx context.Context, cameraID string, at time.Time) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "nvr.Snapshot",
		trace.WithAttributes(attribute.String("camera_id", cameraID)))
	defer span.End()

	url := fmt.Sprintf("%s/api/cameras/%s/snapshot.jpg", c.baseURL, cameraID)
	if !at.IsZero() {
		url = fmt.Sprintf("%s?at=%d", url, at.Unix())
	}

	data, err := c.get(ctx, url)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("bytes", len(data)))
	return data, nil
}

// Clip 抓取事件对应的 MP4 片段
func (c *Client) Clip(ctx context.Context, eventID string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "nvr.Clip",
		trace.WithAttributes(attribute.String("event_id", eventID)))
	defer span.End()

	url := fmt.Sprintf("%s/api/events/%s/clip.mp4", c.baseURL, eventID)
	data, err := c.get(ctx, url)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("bytes", len(data)))
	return data, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMediaFetchFailed, "failed to create media request")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMediaFetchFailed, "media request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.New(apperrors.CodeMediaUnsupported, fmt.Sprintf("media not available: %s", url))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.New(apperrors.CodeMediaFetchFailed, fmt.Sprintf("media request failed: status=%d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMediaFetchFailed, "failed to read media body")
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CodeMediaFetchFailed, "empty media response")
	}
	return data, nil
}

// Package messaging 提供消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishDetection 发布检测事件
func (p *Producer) PublishDetection(ctx context.Context, det *DetectionMessage) (string, error) {
	msg, err := NewMessage(det.EventID, MsgTypeDetection, det.CameraID, det.EventID, det)
	if err != nil {
		return "", err
	}

	msg.SetMetadata("detection_type", det.DetectionType)
	if det.Source != "" {
		msg.SetMetadata("source", det.Source)
	}

	return p.Publish(ctx, StreamEventsDetected, msg)
}

// PublishAnalyzed 发布分析完成通知
func (p *Producer) PublishAnalyzed(ctx context.Context, note *AnalyzedMessage) (string, error) {
	msg, err := NewMessage(note.EventID, MsgTypeAnalyzed, note.CameraID, note.EventID, note)
	if err != nil {
		return "", err
	}

	msg.SetMetadata("analysis_mode", note.AnalysisMode)
	return p.Publish(ctx, StreamEventsAnalyzed, msg)
}

// DetectionMessage 检测事件消息
type DetectionMessage struct {
	EventID       string    `json:"event_id"`
	CameraID      string    `json:"camera_id"`
	Source        string    `json:"source,omitempty"`
	DetectionType string    `json:"detection_type"`
	DetectedAt    time.Time `json:"detected_at"`
	ClipStart     time.Time `json:"clip_start,omitempty"`
	ClipEnd       time.Time `json:"clip_end,omitempty"`
	HasClip       bool      `json:"has_clip"`
	Label         string    `json:"label,omitempty"`
	Score         float64   `json:"score,omitempty"`
}

// AnalyzedMessage 分析完成通知消息
type AnalyzedMessage struct {
	EventID       string   `json:"event_id"`
	CameraID      string   `json:"camera_id"`
	DetectionType string   `json:"detection_type"`
	AnalysisMode  string   `json:"analysis_mode"`
	Description   string   `json:"description"`
	Confidence    *int     `json:"confidence,omitempty"`
	LowConfidence bool     `json:"low_confidence"`
	CostUSD       *float64 `json:"cost_usd,omitempty"`
	MatchedEntity string   `json:"matched_entity,omitempty"`
}

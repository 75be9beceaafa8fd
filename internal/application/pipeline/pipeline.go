package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"cam-sentinel-ai/internal/application/analysis"
	"cam-sentinel-ai/internal/application/match"
	"cam-sentinel-ai/internal/config"
	"cam-sentinel-ai/internal/domain/entity"
	"cam-sentinel-ai/internal/domain/repository"
	"cam-sentinel-ai/internal/infrastructure/messaging"
	"cam-sentinel-ai/pkg/logger"
	"cam-sentinel-ai/pkg/metrics"
)

var tracer = otel.Tracer("pipeline")

// Analyzer 事件分析端口
type Analyzer interface {
	Analyze(ctx context.Context, req *analysis.Request) error
}

// EntityMatcher 实体匹配端口
type EntityMatcher interface {
	Match(ctx context.Context, event *entity.Event) (*match.Result, error)
}

// Notifier 分析完成通知端口
type Notifier interface {
	PublishAnalyzed(ctx context.Context, note *messaging.AnalyzedMessage) (string, error)
}

// EventPipeline 检测事件处理流水线。
// 消费检测流，过滤后为每个事件起一个受限并发的处理协程：
// 建档 → 分析降级链 → 落库 → 实体匹配 → 完成通知。
type EventPipeline struct {
	cameraRepo repository.CameraRepository
	eventRepo  repository.EventRepository
	analyzer   Analyzer
	matcher    EntityMatcher
	notifier   Notifier
	cooldown   *CooldownTracker

	sem *semaphore.Weighted
}

// NewEventPipeline 创建事件流水线
func NewEventPipeline(
	cameraRepo repository.CameraRepository,
	eventRepo repository.EventRepository,
	analyzer Analyzer,
	matcher EntityMatcher,
	notifier Notifier,
	cfg *config.MessagingConfig,
) *EventPipeline {
	maxConcurrent := cfg.MaxConcurrentEvents
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &EventPipeline{
		cameraRepo: cameraRepo,
		eventRepo:  eventRepo,
		analyzer:   analyzer,
		matcher:    matcher,
		notifier:   notifier,
		cooldown:   NewCooldownTracker(),
		sem:        semaphore.NewWeighted(maxConcurrent),
	}
}

// HandleDetection 检测流消息处理器。
// 过滤与事件建档在消费协程内同步完成，建档失败返回错误让消息重投；
// 返回 nil 即确认消息，此后的失败由事件自身的 unavailable 状态兜底。
func (p *EventPipeline) HandleDetection(ctx context.Context, msg *messaging.Message) error {
	ctx, span := tracer.Start(ctx, "pipeline.HandleDetection",
		trace.WithAttributes(attribute.String("message.id", msg.ID)))
	defer span.End()

	var det messaging.DetectionMessage
	if err := msg.UnmarshalPayload(&det); err != nil {
		logger.Error(ctx, "invalid detection payload", err, "message_id", msg.ID)
		return nil
	}

	camera, err := p.cameraRepo.GetByID(ctx, det.CameraID)
	if err != nil {
		return err
	}
	if camera == nil {
		logger.Warn(ctx, "detection for unknown camera", "camera_id", det.CameraID)
		return nil
	}

	if !camera.Enabled {
		logger.Debug(ctx, "camera disabled, dropping detection", "camera_id", camera.ID)
		return nil
	}
	if !camera.EnabledTypes.Contains(entity.DetectionType(det.DetectionType)) {
		logger.Debug(ctx, "detection type not enabled",
			"camera_id", camera.ID,
			"detection_type", det.DetectionType,
		)
		return nil
	}
	if !p.cooldown.Allow(camera.ID, det.DetectionType, time.Duration(camera.CooldownSeconds)*time.Second) {
		logger.Debug(ctx, "detection suppressed by cooldown",
			"camera_id", camera.ID,
			"detection_type", det.DetectionType,
		)
		return nil
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.cooldown.Forget(camera.ID, det.DetectionType)
		return err
	}

	// 确认消息前先把事件落库：存储故障时返回错误让消息留在流里重投，
	// 避免确认后建档失败导致检测丢失
	event := entity.NewEvent(camera.ID, entity.DetectionType(det.DetectionType), det.DetectedAt)
	event.ID = uuid.NewString()
	ctx = logger.WithContext(ctx, logger.EventIDKey, event.ID)
	ctx = logger.WithContext(ctx, logger.CameraIDKey, camera.ID)

	if err := p.eventRepo.Create(ctx, event); err != nil {
		p.sem.Release(1)
		p.cooldown.Forget(camera.ID, det.DetectionType)
		logger.Error(ctx, "failed to create event record", err)
		return err
	}

	metrics.EventsInFlight.Inc()
	go func() {
		defer p.sem.Release(1)
		defer metrics.EventsInFlight.Dec()
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, "event processing panicked", nil,
					"camera_id", camera.ID,
					"panic", r,
				)
			}
		}()

		p.process(ctx, camera, &det, event)
	}()

	return nil
}

// process 已落库事件的分析与后处理
func (p *EventPipeline) process(ctx context.Context, camera *entity.Camera, det *messaging.DetectionMessage, event *entity.Event) {
	ctx, span := tracer.Start(ctx, "pipeline.process",
		trace.WithAttributes(
			attribute.String("camera_id", camera.ID),
			attribute.String("detection_type", det.DetectionType),
		))
	defer span.End()

	req := &analysis.Request{
		Camera:        camera,
		Event:         event,
		SourceEventID: det.EventID,
		ClipStart:     det.ClipStart,
		ClipEnd:       det.ClipEnd,
		HasClip:       det.HasClip && camera.HasClipSource,
	}
	if err := p.analyzer.Analyze(ctx, req); err != nil {
		logger.Error(ctx, "analysis failed", err)
		description := entity.UnavailableDescription
		event.AnalysisMode = entity.ModeUnavailable
		event.Description = &description
	}

	if err := p.eventRepo.Update(ctx, event); err != nil {
		logger.Error(ctx, "failed to persist analysis result", err)
		return
	}

	matchedEntity := p.matchEntity(ctx, event)
	p.notify(ctx, event, matchedEntity)

	logger.Info(ctx, "event processed",
		"mode", event.AnalysisMode,
		"low_confidence", event.LowConfidence,
		"fallbacks", len(event.FallbackReason),
	)
}

// matchEntity 对成功分析的事件做实体关联，失败只记日志
func (p *EventPipeline) matchEntity(ctx context.Context, event *entity.Event) string {
	if event.AnalysisMode == entity.ModeUnavailable || event.AnalysisSkippedReason != nil {
		return ""
	}

	result, err := p.matcher.Match(ctx, event)
	if err != nil {
		logger.Warn(ctx, "entity matching failed", "error", err)
		return ""
	}
	if result == nil {
		return ""
	}
	return result.Entity.ID
}

// notify 发布分析完成通知，发布失败不影响主流程
func (p *EventPipeline) notify(ctx context.Context, event *entity.Event, matchedEntity string) {
	note := &messaging.AnalyzedMessage{
		EventID:       event.ID,
		CameraID:      event.CameraID,
		DetectionType: string(event.DetectionType),
		AnalysisMode:  string(event.AnalysisMode),
		Confidence:    event.Confidence,
		LowConfidence: event.LowConfidence,
		CostUSD:       event.CostUSD,
		MatchedEntity: matchedEntity,
	}
	if event.Description != nil {
		note.Description = *event.Description
	}

	if _, err := p.notifier.PublishAnalyzed(ctx, note); err != nil {
		logger.Warn(ctx, "failed to publish analyzed notification", "event_id", event.ID, "error", err)
	}
}

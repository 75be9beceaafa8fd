package analysis

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cam-sentinel-ai/internal/application/budget"
	"cam-sentinel-ai/internal/application/media"
	"cam-sentinel-ai/internal/config"
	"cam-sentinel-ai/internal/domain/entity"
	"cam-sentinel-ai/internal/domain/service"
	"cam-sentinel-ai/internal/infrastructure/provider"
	apperrors "cam-sentinel-ai/pkg/errors"
	"cam-sentinel-ai/pkg/logger"
	"cam-sentinel-ai/pkg/metrics"
)

var tracer = otel.Tracer("analysis")

// 降级原因
const (
	CauseProviderUnsupported = "provider_unsupported"
	CauseProviderError       = "provider_error"
	CauseProviderUnavailable = "provider_unavailable"
	CauseMediaBusy           = "media_busy"
	CauseMediaFailed         = "media_failed"
	CauseEmptyResponse       = "empty_response"
)

// 预算暂停时的占位描述
const (
	skipDescriptionDaily   = "AI analysis paused: daily budget limit reached"
	skipDescriptionMonthly = "AI analysis paused: monthly budget limit reached"
)

// MediaFetcher 媒体抓取端口
type MediaFetcher interface {
	FetchSnapshot(ctx context.Context, cameraID string, at time.Time) ([]byte, error)
	FetchFrames(ctx context.Context, cameraID string, start, end time.Time, count int) ([][]byte, error)
	FetchClip(ctx context.Context, cameraID, eventID string) ([]byte, error)
}

// FrameFilter 帧质量过滤端口
type FrameFilter interface {
	Filter(ctx context.Context, frames [][]byte) [][]byte
}

// FramePreparer 帧提交前处理与缩略图端口
type FramePreparer interface {
	PrepareForSubmit(frame []byte) ([]byte, error)
	SaveThumbnail(eventID string, frame []byte) (string, error)
}

// ProviderSource 按名称解析提供商
type ProviderSource interface {
	Get(name string) (provider.Provider, error)
}

// BudgetChecker 预算闸门端口
type BudgetChecker interface {
	Check(ctx context.Context) (*budget.Decision, error)
}

// Request 一次事件分析请求
type Request struct {
	Camera *entity.Camera
	Event  *entity.Event
	// SourceEventID 上游 NVR 的事件标识，用于拉取视频片段
	SourceEventID string
	ClipStart     time.Time
	ClipEnd       time.Time
	// HasClip 本次事件是否带片段；为 false 时入口模式压到单帧
	HasClip bool
}

// Orchestrator 事件描述编排器。
// 按 video_native → multi_frame → single_frame → unavailable 的降级链
// 逐级尝试，每次降级在事件上追加 "mode:cause" 记录。
type Orchestrator struct {
	fetcher   MediaFetcher
	filter    FrameFilter
	preparer  FramePreparer
	providers ProviderSource
	budget    BudgetChecker
	usage     service.UsageRecorder

	frameCount          int
	lowConfidenceCutoff int
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	fetcher MediaFetcher,
	filter FrameFilter,
	preparer FramePreparer,
	providers ProviderSource,
	budgetGuard BudgetChecker,
	usage service.UsageRecorder,
	mediaCfg *config.MediaConfig,
	analysisCfg *config.AnalysisConfig,
) *Orchestrator {
	frameCount := mediaCfg.FrameCount
	if frameCount <= 0 {
		frameCount = 6
	}
	cutoff := analysisCfg.LowConfidenceCutoff
	if cutoff <= 0 {
		cutoff = 50
	}
	return &Orchestrator{
		fetcher:             fetcher,
		filter:              filter,
		preparer:            preparer,
		providers:           providers,
		budget:              budgetGuard,
		usage:               usage,
		frameCount:          frameCount,
		lowConfidenceCutoff: cutoff,
	}
}

// attemptResult 单个模式的尝试结果
type attemptResult struct {
	description string
	confidence  *int
	cost        float64
	// thumbFrame 可用于缩略图的帧
	thumbFrame []byte
}

// Analyze 对事件执行完整的分析降级链，结果写回 req.Event
func (o *Orchestrator) Analyze(ctx context.Context, req *Request) error {
	ctx, span := tracer.Start(ctx, "analysis.Analyze",
		trace.WithAttributes(
			attribute.String("event_id", req.Event.ID),
			attribute.String("camera_id", req.Camera.ID),
			attribute.String("detection_type", string(req.Event.DetectionType)),
		))
	defer span.End()

	event := req.Event

	// 预算闸门先于一切付费调用
	decision, err := o.budget.Check(ctx)
	if err != nil {
		// 闸门查询失败时放行，预算保护不应成为单点故障
		logger.Warn(ctx, "budget check failed, allowing analysis", "error", err)
	} else if !decision.Allowed {
		description := skipDescriptionDaily
		if decision.SkipReason == entity.SkipReasonBudgetMonthly {
			description = skipDescriptionMonthly
		}
		event.MarkSkipped(decision.SkipReason, description)
		metrics.AnalysisTotal.WithLabelValues(string(entity.ModeUnavailable), "skipped").Inc()
		span.SetAttributes(attribute.String("skip_reason", decision.SkipReason))
		return nil
	}

	var totalCost float64
	var thumbFrame []byte

	for mode := o.entryMode(req); mode != entity.ModeUnavailable; mode = nextMode(mode) {
		result, cause := o.attempt(ctx, mode, req)
		if result != nil {
			totalCost += result.cost
			event.AnalysisMode = mode
			event.Description = &result.description
			event.SetConfidence(result.confidence, o.lowConfidenceCutoff)
			if totalCost > 0 {
				event.CostUSD = &totalCost
			}
			o.saveThumbnail(ctx, req, result.thumbFrame)

			status := "ok"
			if len(event.FallbackReason) > 0 {
				status = "fallback"
			}
			metrics.AnalysisTotal.WithLabelValues(string(mode), status).Inc()
			span.SetAttributes(
				attribute.String("mode", string(mode)),
				attribute.Float64("cost_usd", totalCost),
			)
			return nil
		}

		event.FallbackReason.Append(mode, cause.reason)
		totalCost += cause.cost
		if cause.thumbFrame != nil {
			thumbFrame = cause.thumbFrame
		}
		metrics.FallbackTransitions.WithLabelValues(string(mode), cause.reason).Inc()
		logger.Warn(ctx, "analysis mode failed, falling back",
			"mode", mode,
			"cause", cause.reason,
		)
	}

	// 降级链耗尽
	description := entity.UnavailableDescription
	event.AnalysisMode = entity.ModeUnavailable
	event.Description = &description
	event.SetConfidence(nil, o.lowConfidenceCutoff)
	if totalCost > 0 {
		event.CostUSD = &totalCost
	}
	o.saveThumbnail(ctx, req, thumbFrame)
	metrics.AnalysisTotal.WithLabelValues(string(entity.ModeUnavailable), "unavailable").Inc()
	return nil
}

// entryMode 计算降级链入口：摄像头偏好之上再受本次事件是否带片段约束
func (o *Orchestrator) entryMode(req *Request) entity.AnalysisMode {
	mode := req.Camera.EntryMode()
	if !req.HasClip && mode != entity.ModeUnavailable {
		return entity.ModeSingleFrame
	}
	return mode
}

// nextMode 降级链只向前推进
func nextMode(mode entity.AnalysisMode) entity.AnalysisMode {
	switch mode {
	case entity.ModeVideoNative:
		return entity.ModeMultiFrame
	case entity.ModeMultiFrame:
		return entity.ModeSingleFrame
	default:
		return entity.ModeUnavailable
	}
}

// attemptFailure 单个模式失败的原因，可能已产生费用
type attemptFailure struct {
	reason     string
	cost       float64
	thumbFrame []byte
}

// attempt 在指定模式下尝试一次完整的抓取-调用-解析
func (o *Orchestrator) attempt(ctx context.Context, mode entity.AnalysisMode, req *Request) (*attemptResult, *attemptFailure) {
	p, err := o.providers.Get(req.Camera.Provider)
	if err != nil {
		return nil, &attemptFailure{reason: CauseProviderError}
	}

	// 能力门槛在任何媒体抓取之前检查，避免白拉一个片段
	if mode == entity.ModeVideoNative && !p.Capabilities().SupportsVideo {
		return nil, &attemptFailure{reason: CauseProviderUnsupported}
	}

	in := &provider.Input{
		Prompt: BuildPrompt(req.Event.DetectionType, mode),
		Mode:   mode,
	}
	var thumbFrame []byte

	switch mode {
	case entity.ModeVideoNative:
		clip, fetchErr := o.fetcher.FetchClip(ctx, req.Camera.ID, req.SourceEventID)
		if fetchErr != nil {
			return nil, &attemptFailure{reason: mediaCause(fetchErr)}
		}
		duration := req.ClipEnd.Sub(req.ClipStart)
		// 大小/时长/格式超出能力声明的片段在本地拦下，不发起网络调用
		if vErr := p.Capabilities().ValidateVideo(media.ClipFormat, int64(len(clip)), duration); vErr != nil {
			return nil, &attemptFailure{reason: CauseMediaFailed}
		}
		in.Video = clip
		in.VideoFormat = media.ClipFormat
		in.VideoDuration = duration

	case entity.ModeMultiFrame:
		raw, fetchErr := o.fetcher.FetchFrames(ctx, req.Camera.ID, req.ClipStart, req.ClipEnd, o.frameCount)
		if fetchErr != nil {
			return nil, &attemptFailure{reason: mediaCause(fetchErr)}
		}
		frames := o.filter.Filter(ctx, raw)
		if len(frames) == 0 {
			return nil, &attemptFailure{reason: CauseMediaFailed}
		}
		if maxImages := p.Capabilities().MaxImages; maxImages > 0 && len(frames) > maxImages {
			frames = frames[:maxImages]
		}
		for _, frame := range frames {
			prepared, prepErr := o.preparer.PrepareForSubmit(frame)
			if prepErr != nil {
				continue
			}
			in.Frames = append(in.Frames, prepared)
		}
		if len(in.Frames) == 0 {
			return nil, &attemptFailure{reason: CauseMediaFailed}
		}
		thumbFrame = frames[0]

	case entity.ModeSingleFrame:
		frame, fetchErr := o.fetcher.FetchSnapshot(ctx, req.Camera.ID, req.Event.Timestamp)
		if fetchErr != nil {
			return nil, &attemptFailure{reason: mediaCause(fetchErr)}
		}
		prepared, prepErr := o.preparer.PrepareForSubmit(frame)
		if prepErr != nil {
			return nil, &attemptFailure{reason: CauseMediaFailed}
		}
		in.Frames = [][]byte{prepared}
		thumbFrame = frame
	}

	start := time.Now()
	result, err := p.Describe(ctx, in)
	duration := time.Since(start)
	if err != nil {
		metrics.ProviderCallTotal.WithLabelValues(p.Name(), string(mode), "error").Inc()
		reason := CauseProviderError
		if apperrors.IsCode(err, apperrors.CodeProviderUnavailable) {
			reason = CauseProviderUnavailable
		}
		return nil, &attemptFailure{reason: reason, thumbFrame: thumbFrame}
	}
	metrics.ProviderCallTotal.WithLabelValues(p.Name(), string(mode), "ok").Inc()
	metrics.ProviderCallDuration.WithLabelValues(p.Name(), string(mode)).Observe(duration.Seconds())

	// 已产生的费用无论解析成败都要入账
	cost, recordErr := o.usage.Record(ctx, service.UsageInput{
		Provider:      p.Name(),
		Model:         p.Model(),
		AnalysisMode:  mode,
		TokensInput:   result.TokensInput,
		TokensOutput:  result.TokensOutput,
		ImageCount:    len(in.Frames),
		UsageReported: result.UsageReported,
		ResponseChars: len(result.Text),
		DurationMs:    int(duration.Milliseconds()),
	})
	if recordErr != nil {
		logger.Warn(ctx, "usage recording failed", "provider", p.Name(), "error", recordErr)
	}

	description, confidence := ExtractDescription(result.Text)
	if description == "" {
		return nil, &attemptFailure{reason: CauseEmptyResponse, cost: cost, thumbFrame: thumbFrame}
	}

	return &attemptResult{
		description: description,
		confidence:  confidence,
		cost:        cost,
		thumbFrame:  thumbFrame,
	}, nil
}

// saveThumbnail 落盘事件缩略图。视频模式没有现成的帧，补抓一张快照。
func (o *Orchestrator) saveThumbnail(ctx context.Context, req *Request, frame []byte) {
	if frame == nil {
		snap, err := o.fetcher.FetchSnapshot(ctx, req.Camera.ID, req.Event.Timestamp)
		if err != nil {
			return
		}
		frame = snap
	}
	path, err := o.preparer.SaveThumbnail(req.Event.ID, frame)
	if err != nil {
		logger.Warn(ctx, "failed to save thumbnail", "event_id", req.Event.ID, "error", err)
		return
	}
	req.Event.ThumbnailPath = path
}

func mediaCause(err error) string {
	if apperrors.IsCode(err, apperrors.CodeMediaBusy) {
		return CauseMediaBusy
	}
	return CauseMediaFailed
}

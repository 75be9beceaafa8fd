// Package media 提供媒体抓取与帧质量处理
package media

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"cam-sentinel-ai/internal/config"
	apperrors "cam-sentinel-ai/pkg/errors"
	"cam-sentinel-ai/pkg/logger"
	"cam-sentinel-ai/pkg/metrics"
)

var tracer = otel.Tracer("media")

// Source 上游媒体源
type Source interface {
	Snapshot(ctx context.Context, cameraID string, at time.Time) ([]byte, error)
	Clip(ctx context.Context, eventID string) ([]byte, error)
}

// Fetcher 带并发上限与重试的媒体抓取器。
// 同一摄像头的并发抓取数受加权信号量约束，槽位等待超时即返回 busy，
// 避免慢源把整个工作池拖死。
type Fetcher struct {
	source Source

	maxPerSource int64
	slotWait     time.Duration
	retryDelay   time.Duration

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

// NewFetcher 创建媒体抓取器
func NewFetcher(source Source, cfg *config.NVRConfig) *Fetcher {
	maxPerSource := cfg.MaxConcurrentPerSource
	if maxPerSource <= 0 {
		maxPerSource = 3
	}
	slotWait := cfg.SlotWaitTimeout
	if slotWait <= 0 {
		slotWait = 5 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}
	return &Fetcher{
		source:       source,
		maxPerSource: maxPerSource,
		slotWait:     slotWait,
		retryDelay:   retryDelay,
		sems:         make(map[string]*semaphore.Weighted),
	}
}

// FetchSnapshot 抓取单帧快照
func (f *Fetcher) FetchSnapshot(ctx context.Context, cameraID string, at time.Time) ([]byte, error) {
	var data []byte
	err := f.withSlot(ctx, cameraID, "snapshot", func(ctx context.Context) error {
		var fetchErr error
		data, fetchErr = f.source.Snapshot(ctx, cameraID, at)
		return fetchErr
	})
	return data, err
}

// FetchFrames 在事件时间窗内均匀抓取多帧快照。
// 窗口为零值时退化为围绕 detectedAt 的逐帧抓取。
func (f *Fetcher) FetchFrames(ctx context.Context, cameraID string, start, end time.Time, count int) ([][]byte, error) {
	if count <= 0 {
		count = 1
	}
	timestamps := spreadTimestamps(start, end, count)

	frames := make([][]byte, 0, count)
	err := f.withSlot(ctx, cameraID, "frames", func(ctx context.Context) error {
		for _, ts := range timestamps {
			data, fetchErr := f.source.Snapshot(ctx, cameraID, ts)
			if fetchErr != nil {
				// 单帧失败不终止整窗抓取
				logger.Warn(ctx, "frame fetch failed", "camera_id", cameraID, "at", ts, "error", fetchErr)
				continue
			}
			frames = append(frames, data)
		}
		if len(frames) == 0 {
			return apperrors.New(apperrors.CodeMediaFetchFailed, "no frames fetched in event window")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frames, nil
}

// ClipFormat NVR 片段接口输出的容器格式
const ClipFormat = "mp4"

// FetchClip 抓取事件视频片段
func (f *Fetcher) FetchClip(ctx context.Context, cameraID, eventID string) ([]byte, error) {
	var data []byte
	err := f.withSlot(ctx, cameraID, "clip", func(ctx context.Context) error {
		var fetchErr error
		data, fetchErr = f.source.Clip(ctx, eventID)
		return fetchErr
	})
	return data, err
}

// withSlot 在摄像头槽位内执行抓取，失败后固定延迟重试一次
func (f *Fetcher) withSlot(ctx context.Context, cameraID, kind string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "media.fetch",
		trace.WithAttributes(
			attribute.String("camera_id", cameraID),
			attribute.String("kind", kind),
		))
	defer span.End()

	sem := f.semFor(cameraID)

	acquireCtx, cancel := context.WithTimeout(ctx, f.slotWait)
	defer cancel()
	if err := sem.Acquire(acquireCtx, 1); err != nil {
		metrics.MediaFetchTotal.WithLabelValues(cameraID, kind, "busy").Inc()
		span.RecordError(err)
		return apperrors.New(apperrors.CodeMediaBusy, "media source is busy")
	}
	defer sem.Release(1)

	start := time.Now()
	err := fn(ctx)
	if err != nil {
		// 失败后固定延迟重试一次，只重试一次
		select {
		case <-ctx.Done():
			metrics.MediaFetchTotal.WithLabelValues(cameraID, kind, "error").Inc()
			span.RecordError(ctx.Err())
			return apperrors.Wrap(ctx.Err(), apperrors.CodeMediaFetchFailed, "media fetch cancelled")
		case <-time.After(f.retryDelay):
		}
		err = fn(ctx)
	}

	metrics.MediaFetchDuration.WithLabelValues(cameraID, kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MediaFetchTotal.WithLabelValues(cameraID, kind, "error").Inc()
		span.RecordError(err)
		return err
	}

	metrics.MediaFetchTotal.WithLabelValues(cameraID, kind, "ok").Inc()
	return nil
}

func (f *Fetcher) semFor(cameraID string) *semaphore.Weighted {
	f.mu.Lock()
	defer f.mu.Unlock()
	sem, ok := f.sems[cameraID]
	if !ok {
		sem = semaphore.NewWeighted(f.maxPerSource)
		f.sems[cameraID] = sem
	}
	return sem
}

// spreadTimestamps 在 [start, end] 内均匀取 count 个时间点
func spreadTimestamps(start, end time.Time, count int) []time.Time {
	if count == 1 || !end.After(start) {
		timestamps := make([]time.Time, count)
		for i := range timestamps {
			timestamps[i] = start
		}
		return timestamps
	}

	window := end.Sub(start)
	step := window / time.Duration(count-1)
	timestamps := make([]time.Time, count)
	for i := 0; i < count; i++ {
		timestamps[i] = start.Add(step * time.Duration(i))
	}
	return timestamps
}

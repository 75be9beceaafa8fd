package media

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cam-sentinel-ai/internal/config"
	apperrors "cam-sentinel-ai/pkg/errors"
)

// fakeSource 可编程的媒体源
type fakeSource struct {
	mu            sync.Mutex
	snapshotCalls int
	clipCalls     int
	failFirst     int // 前 N 次调用返回错误
	block         chan struct{}
	data          []byte
}

func (s *fakeSource) Snapshot(ctx context.Context, cameraID string, at time.Time) ([]byte, error) {
	s.mu.Lock()
	s.snapshotCalls++
	calls := s.snapshotCalls
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if calls <= s.failFirst {
		return nil, apperrors.New(apperrors.CodeMediaFetchFailed, "snapshot failed")
	}
	return s.data, nil
}

func (s *fakeSource) Clip(ctx context.Context, eventID string) ([]byte, error) {
	s.mu.Lock()
	s.clipCalls++
	s.mu.Unlock()
	return s.data, nil
}

func newTestFetcher(source Source, maxPerSource int64, slotWait time.Duration) *Fetcher {
	return NewFetcher(source, &config.NVRConfig{
		MaxConcurrentPerSource: maxPerSource,
		SlotWaitTimeout:        slotWait,
		RetryDelay:             time.Millisecond,
	})
}

func TestFetchSnapshot(t *testing.T) {
	source := &fakeSource{data: []byte("jpeg")}
	f := newTestFetcher(source, 3, time.Second)

	data, err := f.FetchSnapshot(context.Background(), "front_door", time.Now())

	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)
	assert.Equal(t, 1, source.snapshotCalls)
}

func TestFetchSnapshotRetriesOnce(t *testing.T) {
	source := &fakeSource{data: []byte("jpeg"), failFirst: 1}
	f := newTestFetcher(source, 3, time.Second)

	data, err := f.FetchSnapshot(context.Background(), "front_door", time.Now())

	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)
	assert.Equal(t, 2, source.snapshotCalls)
}

func TestFetchSnapshotFailsAfterSingleRetry(t *testing.T) {
	source := &fakeSource{data: []byte("jpeg"), failFirst: 2}
	f := newTestFetcher(source, 3, time.Second)

	_, err := f.FetchSnapshot(context.Background(), "front_door", time.Now())

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeMediaFetchFailed))
	// 一次原始调用加一次重试，不再多
	assert.Equal(t, 2, source.snapshotCalls)
}

func TestFetchBusyWhenSlotsExhausted(t *testing.T) {
	block := make(chan struct{})
	source := &fakeSource{data: []byte("jpeg"), block: block}
	f := newTestFetcher(source, 1, 50*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = f.FetchSnapshot(context.Background(), "front_door", time.Now())
	}()

	// 等第一个请求占住唯一槽位
	require.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return source.snapshotCalls == 1
	}, time.Second, 5*time.Millisecond)

	_, err := f.FetchSnapshot(context.Background(), "front_door", time.Now())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeMediaBusy))

	close(block)
	wg.Wait()
}

func TestFetchSlotsArePerCamera(t *testing.T) {
	block := make(chan struct{})
	source := &fakeSource{data: []byte("jpeg"), block: block}
	f := newTestFetcher(source, 1, 50*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = f.FetchSnapshot(context.Background(), "front_door", time.Now())
	}()

	require.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return source.snapshotCalls == 1
	}, time.Second, 5*time.Millisecond)

	// 其他摄像头不受 front_door 的槽位影响
	done := make(chan error, 1)
	go func() {
		_, err := f.FetchSnapshot(context.Background(), "back_yard", time.Now())
		done <- err
	}()

	require.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return source.snapshotCalls == 2
	}, time.Second, 5*time.Millisecond)

	close(block)
	assert.NoError(t, <-done)
	wg.Wait()
}

func TestFetchFramesToleratesPartialFailures(t *testing.T) {
	source := &fakeSource{data: []byte("jpeg"), failFirst: 2}
	f := newTestFetcher(source, 3, time.Second)

	start := time.Now()
	frames, err := f.FetchFrames(context.Background(), "front_door", start, start.Add(10*time.Second), 6)

	require.NoError(t, err)
	// 前两帧失败被跳过，剩余帧保留
	assert.Len(t, frames, 4)
}

func TestSpreadTimestamps(t *testing.T) {
	start := time.Unix(1000, 0)
	end := start.Add(10 * time.Second)

	timestamps := spreadTimestamps(start, end, 6)

	require.Len(t, timestamps, 6)
	assert.Equal(t, start, timestamps[0])
	assert.Equal(t, end, timestamps[5])
	step := timestamps[1].Sub(timestamps[0])
	assert.Equal(t, 2*time.Second, step)

	// 窗口为零时全部落在 start
	same := spreadTimestamps(start, start, 3)
	require.Len(t, same, 3)
	for _, ts := range same {
		assert.Equal(t, start, ts)
	}
}

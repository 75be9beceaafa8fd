package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cam-sentinel-ai/internal/application/budget"
	"cam-sentinel-ai/internal/config"
	"cam-sentinel-ai/internal/domain/entity"
	"cam-sentinel-ai/internal/domain/service"
	"cam-sentinel-ai/internal/infrastructure/provider"
	apperrors "cam-sentinel-ai/pkg/errors"
)

// fakeFetcher 可编程媒体抓取器
type fakeFetcher struct {
	snapshot    []byte
	snapshotErr error
	frames      [][]byte
	framesErr   error
	clip        []byte
	clipErr     error
}

func (f *fakeFetcher) FetchSnapshot(ctx context.Context, cameraID string, at time.Time) ([]byte, error) {
	return f.snapshot, f.snapshotErr
}

func (f *fakeFetcher) FetchFrames(ctx context.Context, cameraID string, start, end time.Time, count int) ([][]byte, error) {
	return f.frames, f.framesErr
}

func (f *fakeFetcher) FetchClip(ctx context.Context, cameraID, eventID string) ([]byte, error) {
	return f.clip, f.clipErr
}

type passthroughFilter struct{}

func (passthroughFilter) Filter(ctx context.Context, frames [][]byte) [][]byte { return frames }

type fakePreparer struct {
	savedThumb bool
}

func (p *fakePreparer) PrepareForSubmit(frame []byte) ([]byte, error) { return frame, nil }

func (p *fakePreparer) SaveThumbnail(eventID string, frame []byte) (string, error) {
	p.savedThumb = true
	return "data/thumbnails/" + eventID + ".jpg", nil
}

// fakeProvider 可编程提供商，按调用序返回预设响应
type fakeProvider struct {
	caps      provider.Capabilities
	responses []fakeResponse
	calls     int
	lastInput *provider.Input
}

type fakeResponse struct {
	text string
	err  error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Model() string { return "fake-vision" }

func (p *fakeProvider) Capabilities() provider.Capabilities { return p.caps }

func (p *fakeProvider) Describe(ctx context.Context, in *provider.Input) (*provider.Result, error) {
	p.lastInput = in
	resp := p.responses[p.calls%len(p.responses)]
	p.calls++
	if resp.err != nil {
		return nil, resp.err
	}
	return &provider.Result{Text: resp.text, TokensInput: 900, TokensOutput: 40, UsageReported: true}, nil
}

type fakeProviderSource struct {
	p   *fakeProvider
	err error
}

func (s *fakeProviderSource) Get(name string) (provider.Provider, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.p, nil
}

type fakeBudget struct {
	decision *budget.Decision
	err      error
}

func (b *fakeBudget) Check(ctx context.Context) (*budget.Decision, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.decision, nil
}

type fakeUsage struct {
	cost    float64
	records []service.UsageInput
}

func (u *fakeUsage) Record(ctx context.Context, in service.UsageInput) (float64, error) {
	u.records = append(u.records, in)
	return u.cost, nil
}

type orchestratorFixture struct {
	fetcher  *fakeFetcher
	preparer *fakePreparer
	provider *fakeProvider
	budget   *fakeBudget
	usage    *fakeUsage
	o        *Orchestrator
}

func newFixture(p *fakeProvider) *orchestratorFixture {
	f := &orchestratorFixture{
		fetcher: &fakeFetcher{
			snapshot: []byte("snap"),
			frames:   [][]byte{[]byte("f1"), []byte("f2"), []byte("f3")},
			clip:     []byte("clip"),
		},
		preparer: &fakePreparer{},
		provider: p,
		budget:   &fakeBudget{decision: &budget.Decision{Allowed: true}},
		usage:    &fakeUsage{cost: 0.00045},
	}
	f.o = NewOrchestrator(
		f.fetcher,
		passthroughFilter{},
		f.preparer,
		&fakeProviderSource{p: p},
		f.budget,
		f.usage,
		&config.MediaConfig{FrameCount: 3},
		&config.AnalysisConfig{LowConfidenceCutoff: 50},
	)
	return f
}

func clipCamera() *entity.Camera {
	return &entity.Camera{
		ID:            "front_door",
		Name:          "Front Door",
		PreferredMode: entity.ModeVideoNative,
		HasClipSource: true,
		Enabled:       true,
	}
}

func newRequest(camera *entity.Camera) *Request {
	event := entity.NewEvent(camera.ID, entity.DetectionPerson, time.Now())
	event.ID = "evt-1"
	return &Request{
		Camera:        camera,
		Event:         event,
		SourceEventID: "nvr-123",
		ClipStart:     event.Timestamp.Add(-5 * time.Second),
		ClipEnd:       event.Timestamp.Add(5 * time.Second),
		HasClip:       true,
	}
}

func TestAnalyzeVideoNativeSuccess(t *testing.T) {
	p := &fakeProvider{
		caps:      provider.Capabilities{SupportsVideo: true, MaxVideoBytes: 1 << 20, MaxImages: 16},
		responses: []fakeResponse{{text: `{"description": "A person rings the doorbell.", "confidence": 88}`}},
	}
	fx := newFixture(p)
	req := newRequest(clipCamera())

	require.NoError(t, fx.o.Analyze(context.Background(), req))

	event := req.Event
	assert.Equal(t, entity.ModeVideoNative, event.AnalysisMode)
	require.NotNil(t, event.Description)
	assert.Equal(t, "A person rings the doorbell.", *event.Description)
	require.NotNil(t, event.Confidence)
	assert.Equal(t, 88, *event.Confidence)
	assert.False(t, event.LowConfidence)
	assert.Empty(t, event.FallbackReason)
	require.NotNil(t, event.CostUSD)
	assert.InDelta(t, 0.00045, *event.CostUSD, 1e-9)
	assert.Equal(t, []byte("clip"), p.lastInput.Video)
	// 视频模式没有现成帧，缩略图补抓快照
	assert.True(t, fx.preparer.savedThumb)
	assert.Equal(t, "data/thumbnails/evt-1.jpg", event.ThumbnailPath)
}

func TestAnalyzeFallsBackWhenVideoUnsupported(t *testing.T) {
	p := &fakeProvider{
		caps:      provider.Capabilities{SupportsVideo: false, MaxImages: 10},
		responses: []fakeResponse{{text: `{"description": "Two people at the door.", "confidence": 75}`}},
	}
	fx := newFixture(p)
	req := newRequest(clipCamera())

	require.NoError(t, fx.o.Analyze(context.Background(), req))

	event := req.Event
	assert.Equal(t, entity.ModeMultiFrame, event.AnalysisMode)
	assert.Equal(t, entity.FallbackReason{"video_native:provider_unsupported"}, event.FallbackReason)
	require.NotNil(t, event.Description)
	assert.Equal(t, "Two people at the door.", *event.Description)
	assert.Len(t, p.lastInput.Frames, 3)
}

func TestAnalyzeVideoTooLargeFallsBack(t *testing.T) {
	p := &fakeProvider{
		caps:      provider.Capabilities{SupportsVideo: true, MaxVideoBytes: 2, MaxImages: 10},
		responses: []fakeResponse{{text: `{"description": "A dog in the yard.", "confidence": 60}`}},
	}
	fx := newFixture(p)
	req := newRequest(clipCamera())

	require.NoError(t, fx.o.Analyze(context.Background(), req))

	assert.Equal(t, entity.ModeMultiFrame, req.Event.AnalysisMode)
	assert.Equal(t, entity.FallbackReason{"video_native:media_failed"}, req.Event.FallbackReason)
}

func TestAnalyzeVideoFormatUnsupportedFallsBack(t *testing.T) {
	// 能力表只声明 webm，NVR 片段是 mp4，本地直接拦下
	p := &fakeProvider{
		caps:      provider.Capabilities{SupportsVideo: true, VideoFormats: []string{"webm"}, MaxImages: 10},
		responses: []fakeResponse{{text: `{"description": "A cat on the porch.", "confidence": 65}`}},
	}
	fx := newFixture(p)
	req := newRequest(clipCamera())

	require.NoError(t, fx.o.Analyze(context.Background(), req))

	assert.Equal(t, entity.ModeMultiFrame, req.Event.AnalysisMode)
	assert.Equal(t, entity.FallbackReason{"video_native:media_failed"}, req.Event.FallbackReason)
}

func TestAnalyzeVideoTooLongFallsBack(t *testing.T) {
	// 事件窗口 10 秒，超出能力表声明的 5 秒时长上限
	p := &fakeProvider{
		caps:      provider.Capabilities{SupportsVideo: true, MaxVideoDuration: 5 * time.Second, MaxImages: 10},
		responses: []fakeResponse{{text: `{"description": "A delivery truck.", "confidence": 72}`}},
	}
	fx := newFixture(p)
	req := newRequest(clipCamera())

	require.NoError(t, fx.o.Analyze(context.Background(), req))

	assert.Equal(t, entity.ModeMultiFrame, req.Event.AnalysisMode)
	assert.Equal(t, entity.FallbackReason{"video_native:media_failed"}, req.Event.FallbackReason)
}

func TestAnalyzeMediaBusyCause(t *testing.T) {
	p := &fakeProvider{
		caps:      provider.Capabilities{SupportsVideo: true, MaxImages: 10},
		responses: []fakeResponse{{text: `{"description": "A car pulls in.", "confidence": 70}`}},
	}
	fx := newFixture(p)
	fx.fetcher.clipErr = apperrors.New(apperrors.CodeMediaBusy, "media source is busy")
	req := newRequest(clipCamera())

	require.NoError(t, fx.o.Analyze(context.Background(), req))

	assert.Equal(t, entity.ModeMultiFrame, req.Event.AnalysisMode)
	assert.Equal(t, entity.FallbackReason{"video_native:media_busy"}, req.Event.FallbackReason)
}

func TestAnalyzeExhaustedChain(t *testing.T) {
	p := &fakeProvider{
		caps:      provider.Capabilities{SupportsVideo: true, MaxImages: 10},
		responses: []fakeResponse{{err: apperrors.New(apperrors.CodeProviderUnavailable, "rate limited")}},
	}
	fx := newFixture(p)
	req := newRequest(clipCamera())

	require.NoError(t, fx.o.Analyze(context.Background(), req))

	event := req.Event
	assert.Equal(t, entity.ModeUnavailable, event.AnalysisMode)
	require.NotNil(t, event.Description)
	assert.Equal(t, entity.UnavailableDescription, *event.Description)
	assert.Nil(t, event.Confidence)
	assert.False(t, event.LowConfidence)
	assert.Equal(t, entity.FallbackReason{
		"video_native:provider_unavailable",
		"multi_frame:provider_unavailable",
		"single_frame:provider_unavailable",
	}, event.FallbackReason)
}

func TestAnalyzeEmptyResponseStillAccruesCost(t *testing.T) {
	p := &fakeProvider{
		caps:      provider.Capabilities{SupportsVideo: true, MaxImages: 10},
		responses: []fakeResponse{{text: ""}},
	}
	fx := newFixture(p)
	req := newRequest(clipCamera())

	require.NoError(t, fx.o.Analyze(context.Background(), req))

	event := req.Event
	assert.Equal(t, entity.ModeUnavailable, event.AnalysisMode)
	assert.Equal(t, entity.FallbackReason{
		"video_native:empty_response",
		"multi_frame:empty_response",
		"single_frame:empty_response",
	}, event.FallbackReason)
	// 三次空响应各入账一次，费用累计入事件
	assert.Len(t, fx.usage.records, 3)
	require.NotNil(t, event.CostUSD)
	assert.InDelta(t, 3*0.00045, *event.CostUSD, 1e-9)
}

func TestAnalyzeLowConfidence(t *testing.T) {
	p := &fakeProvider{
		caps:      provider.Capabilities{SupportsVideo: true, MaxImages: 10},
		responses: []fakeResponse{{text: `{"description": "Possibly a person in the shadows.", "confidence": 30}`}},
	}
	fx := newFixture(p)
	req := newRequest(clipCamera())

	require.NoError(t, fx.o.Analyze(context.Background(), req))

	require.NotNil(t, req.Event.Confidence)
	assert.Equal(t, 30, *req.Event.Confidence)
	assert.True(t, req.Event.LowConfidence)
}

func TestAnalyzeWithoutClipEntersSingleFrame(t *testing.T) {
	p := &fakeProvider{
		caps:      provider.Capabilities{SupportsVideo: true, MaxImages: 10},
		responses: []fakeResponse{{text: `{"description": "A person at the door.", "confidence": 80}`}},
	}
	fx := newFixture(p)
	req := newRequest(clipCamera())
	req.HasClip = false

	require.NoError(t, fx.o.Analyze(context.Background(), req))

	assert.Equal(t, entity.ModeSingleFrame, req.Event.AnalysisMode)
	assert.Empty(t, req.Event.FallbackReason)
	assert.Len(t, p.lastInput.Frames, 1)
}

func TestAnalyzeSkippedOnDailyBudget(t *testing.T) {
	p := &fakeProvider{caps: provider.Capabilities{SupportsVideo: true}}
	fx := newFixture(p)
	fx.budget.decision = &budget.Decision{Allowed: false, SkipReason: entity.SkipReasonBudgetDaily}
	req := newRequest(clipCamera())

	require.NoError(t, fx.o.Analyze(context.Background(), req))

	event := req.Event
	assert.Equal(t, entity.ModeUnavailable, event.AnalysisMode)
	require.NotNil(t, event.AnalysisSkippedReason)
	assert.Equal(t, entity.SkipReasonBudgetDaily, *event.AnalysisSkippedReason)
	require.NotNil(t, event.Description)
	assert.Equal(t, "AI analysis paused: daily budget limit reached", *event.Description)
	assert.Nil(t, event.CostUSD)
	// 预算跳过不触发任何提供商调用
	assert.Zero(t, p.calls)
}

func TestAnalyzeSkippedOnMonthlyBudget(t *testing.T) {
	p := &fakeProvider{caps: provider.Capabilities{SupportsVideo: true}}
	fx := newFixture(p)
	fx.budget.decision = &budget.Decision{Allowed: false, SkipReason: entity.SkipReasonBudgetMonthly}
	req := newRequest(clipCamera())

	require.NoError(t, fx.o.Analyze(context.Background(), req))

	require.NotNil(t, req.Event.Description)
	assert.Equal(t, "AI analysis paused: monthly budget limit reached", *req.Event.Description)
}

func TestAnalyzeProceedsWhenBudgetCheckFails(t *testing.T) {
	p := &fakeProvider{
		caps:      provider.Capabilities{SupportsVideo: true, MaxImages: 10},
		responses: []fakeResponse{{text: `{"description": "A person walks by.", "confidence": 82}`}},
	}
	fx := newFixture(p)
	fx.budget.err = apperrors.New(apperrors.CodeInternalError, "postgres down")
	req := newRequest(clipCamera())

	require.NoError(t, fx.o.Analyze(context.Background(), req))

	// 预算闸门故障时放行而不是拒绝
	assert.Equal(t, entity.ModeVideoNative, req.Event.AnalysisMode)
	assert.Nil(t, req.Event.AnalysisSkippedReason)
}

func TestAnalyzeFrameCapRespectsProviderLimit(t *testing.T) {
	p := &fakeProvider{
		caps:      provider.Capabilities{SupportsVideo: false, MaxImages: 2},
		responses: []fakeResponse{{text: `{"description": "Kids playing outside.", "confidence": 66}`}},
	}
	fx := newFixture(p)
	req := newRequest(clipCamera())

	require.NoError(t, fx.o.Analyze(context.Background(), req))

	assert.Equal(t, entity.ModeMultiFrame, req.Event.AnalysisMode)
	assert.Len(t, p.lastInput.Frames, 2)
}

package budget

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cam-sentinel-ai/internal/config"
	"cam-sentinel-ai/internal/domain/entity"
	apperrors "cam-sentinel-ai/pkg/errors"
)

func floatPtr(v float64) *float64 { return &v }

// fixedClock 便于测试跨日/跨月行为的可调时钟
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func newTestGuard(repo *fakeUsageRepo, cfg *config.BudgetConfig, clock *fixedClock) *Guard {
	g := NewGuard(repo, cfg)
	if clock != nil {
		g.now = clock.Now
	}
	return g
}

func dayStartKey(t time.Time) string {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
}

func monthStartKey(t time.Time) string {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
}

func TestGuardAllowsWithoutCaps(t *testing.T) {
	repo := &fakeUsageRepo{}
	g := newTestGuard(repo, &config.BudgetConfig{}, nil)

	decision, err := g.Check(context.Background())

	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	// 未配置上限时不应触发任何开销查询
	assert.Zero(t, repo.getCalls)
}

func TestGuardDeniesOnDailyCap(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	repo := &fakeUsageRepo{spend: map[string]float64{
		dayStartKey(now):   1.25,
		monthStartKey(now): 8.0,
	}}
	g := newTestGuard(repo, &config.BudgetConfig{
		DailyCapUSD:   floatPtr(1.0),
		MonthlyCapUSD: floatPtr(20.0),
	}, &fixedClock{now: now})

	decision, err := g.Check(context.Background())

	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, entity.SkipReasonBudgetDaily, decision.SkipReason)
	assert.InDelta(t, 1.25, decision.DailySpend, 1e-9)
}

func TestGuardDeniesOnMonthlyCap(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	repo := &fakeUsageRepo{spend: map[string]float64{
		dayStartKey(now):   0.2,
		monthStartKey(now): 25.0,
	}}
	g := newTestGuard(repo, &config.BudgetConfig{
		DailyCapUSD:   floatPtr(1.0),
		MonthlyCapUSD: floatPtr(20.0),
	}, &fixedClock{now: now})

	decision, err := g.Check(context.Background())

	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, entity.SkipReasonBudgetMonthly, decision.SkipReason)
}

func TestGuardDailyCheckedBeforeMonthly(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	repo := &fakeUsageRepo{spend: map[string]float64{
		dayStartKey(now):   5.0,
		monthStartKey(now): 50.0,
	}}
	g := newTestGuard(repo, &config.BudgetConfig{
		DailyCapUSD:   floatPtr(1.0),
		MonthlyCapUSD: floatPtr(20.0),
	}, &fixedClock{now: now})

	decision, err := g.Check(context.Background())

	require.NoError(t, err)
	assert.Equal(t, entity.SkipReasonBudgetDaily, decision.SkipReason)
}

func TestGuardResetsOnUTCDayRollover(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 8, 28, 23, 59, 0, 0, time.UTC)}
	repo := &fakeUsageRepo{spend: map[string]float64{
		dayStartKey(clock.now):   2.0,
		monthStartKey(clock.now): 2.0,
	}}
	g := newTestGuard(repo, &config.BudgetConfig{
		DailyCapUSD: floatPtr(1.0),
		CacheTTL:    time.Hour, // TTL 远未过期，验证靠周期键作废
	}, clock)

	decision, err := g.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// 跨过 UTC 午夜，新的一天从零开始计
	clock.now = time.Date(2026, 8, 29, 0, 1, 0, 0, time.UTC)
	repo.spend[dayStartKey(clock.now)] = 0
	repo.spend[monthStartKey(clock.now)] = 2.0

	decision, err = g.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Zero(t, decision.DailySpend)
}

func TestGuardCachesWithinTTL(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)}
	repo := &fakeUsageRepo{spend: map[string]float64{}}
	g := newTestGuard(repo, &config.BudgetConfig{
		DailyCapUSD: floatPtr(1.0),
		CacheTTL:    time.Minute,
	}, clock)

	_, err := g.Check(context.Background())
	require.NoError(t, err)
	callsAfterFirst := repo.getCalls

	clock.now = clock.now.Add(10 * time.Second)
	_, err = g.Check(context.Background())
	require.NoError(t, err)

	// TTL 内复用缓存，不再查库
	assert.Equal(t, callsAfterFirst, repo.getCalls)

	clock.now = clock.now.Add(2 * time.Minute)
	_, err = g.Check(context.Background())
	require.NoError(t, err)
	assert.Greater(t, repo.getCalls, callsAfterFirst)
}

func TestGuardUpdateCapsTakesEffect(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	repo := &fakeUsageRepo{spend: map[string]float64{
		dayStartKey(now):   1.5,
		monthStartKey(now): 1.5,
	}}
	g := newTestGuard(repo, &config.BudgetConfig{DailyCapUSD: floatPtr(1.0)}, &fixedClock{now: now})

	decision, err := g.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// 配置热更新放宽日上限后放行
	g.UpdateCaps(floatPtr(5.0), nil)

	decision, err = g.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	// 上限全部移除后不再查库
	g.UpdateCaps(nil, nil)
	callsBefore := repo.getCalls
	decision, err = g.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, callsBefore, repo.getCalls)
}

func TestGuardPropagatesQueryError(t *testing.T) {
	repo := &fakeUsageRepo{spendErr: apperrors.New(apperrors.CodeInternalError, "postgres down")}
	g := newTestGuard(repo, &config.BudgetConfig{DailyCapUSD: floatPtr(1.0)}, nil)

	_, err := g.Check(context.Background())

	assert.Error(t, err)
}

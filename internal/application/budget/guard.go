package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"cam-sentinel-ai/internal/config"
	"cam-sentinel-ai/internal/domain/entity"
	"cam-sentinel-ai/internal/domain/repository"
	"cam-sentinel-ai/pkg/metrics"
)

// Decision 预算闸门判定结果
type Decision struct {
	Allowed bool
	// SkipReason 不允许时的跳过原因：budget-daily / budget-monthly
	SkipReason   string
	DailySpend   float64
	MonthlySpend float64
}

// Guard 预算闸门。
// 开销聚合带 TTL 缓存，过期后经 singleflight 单写者刷新，
// 周期键按 UTC 计算，跨日/跨月时自动作废缓存实现额度重置。
type Guard struct {
	usageRepo repository.UsageRecordRepository

	cacheTTL time.Duration
	now      func() time.Time

	mu         sync.RWMutex
	dailyCap   *float64
	monthlyCap *float64
	cached     spendSnapshot
	sf         singleflight.Group
}

type spendSnapshot struct {
	dayKey       string
	monthKey     string
	dailySpend   float64
	monthlySpend float64
	fetchedAt    time.Time
}

// NewGuard 创建预算闸门
func NewGuard(usageRepo repository.UsageRecordRepository, cfg *config.BudgetConfig) *Guard {
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Second
	}
	return &Guard{
		usageRepo:  usageRepo,
		dailyCap:   cfg.DailyCapUSD,
		monthlyCap: cfg.MonthlyCapUSD,
		cacheTTL:   cacheTTL,
		now:        time.Now,
	}
}

// UpdateCaps 热更新预算上限，配置重载时调用
func (g *Guard) UpdateCaps(dailyCap, monthlyCap *float64) {
	g.mu.Lock()
	g.dailyCap = dailyCap
	g.monthlyCap = monthlyCap
	g.mu.Unlock()
}

// Check 判定当前是否允许继续付费分析。
// 日上限先于月上限检查；未配置的上限视为不限。
func (g *Guard) Check(ctx context.Context) (*Decision, error) {
	ctx, span := tracer.Start(ctx, "budget.Check")
	defer span.End()

	g.mu.RLock()
	dailyCap, monthlyCap := g.dailyCap, g.monthlyCap
	g.mu.RUnlock()

	if dailyCap == nil && monthlyCap == nil {
		return &Decision{Allowed: true}, nil
	}

	snap, err := g.snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	metrics.BudgetSpend.WithLabelValues("daily").Set(snap.dailySpend)
	metrics.BudgetSpend.WithLabelValues("monthly").Set(snap.monthlySpend)

	decision := &Decision{
		Allowed:      true,
		DailySpend:   snap.dailySpend,
		MonthlySpend: snap.monthlySpend,
	}
	if dailyCap != nil && snap.dailySpend >= *dailyCap {
		decision.Allowed = false
		decision.SkipReason = entity.SkipReasonBudgetDaily
		metrics.BudgetSkippedTotal.WithLabelValues("daily").Inc()
	} else if monthlyCap != nil && snap.monthlySpend >= *monthlyCap {
		decision.Allowed = false
		decision.SkipReason = entity.SkipReasonBudgetMonthly
		metrics.BudgetSkippedTotal.WithLabelValues("monthly").Inc()
	}

	span.SetAttributes(
		attribute.Bool("allowed", decision.Allowed),
		attribute.Float64("spend.daily", snap.dailySpend),
		attribute.Float64("spend.monthly", snap.monthlySpend),
	)
	return decision, nil
}

// snapshot 返回开销快照，缓存有效期内直接复用
func (g *Guard) snapshot(ctx context.Context) (spendSnapshot, error) {
	now := g.now().UTC()
	dayKey := now.Format("2006-01-02")
	monthKey := now.Format("2006-01")

	g.mu.RLock()
	cached := g.cached
	g.mu.RUnlock()

	// 周期键变化说明已跨日/跨月，缓存立即作废
	if cached.dayKey == dayKey && cached.monthKey == monthKey &&
		now.Sub(cached.fetchedAt) < g.cacheTTL {
		return cached, nil
	}

	// singleflight 保证并发过期时只有一个查询打到数据库
	v, err, _ := g.sf.Do(dayKey+"/"+monthKey, func() (interface{}, error) {
		return g.refresh(ctx, now, dayKey, monthKey)
	})
	if err != nil {
		return spendSnapshot{}, err
	}
	return v.(spendSnapshot), nil
}

func (g *Guard) refresh(ctx context.Context, now time.Time, dayKey, monthKey string) (spendSnapshot, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := now.Add(time.Second)

	dailySpend, err := g.usageRepo.GetSpend(ctx, dayStart, end)
	if err != nil {
		return spendSnapshot{}, fmt.Errorf("failed to query daily spend: %w", err)
	}
	monthlySpend, err := g.usageRepo.GetSpend(ctx, monthStart, end)
	if err != nil {
		return spendSnapshot{}, fmt.Errorf("failed to query monthly spend: %w", err)
	}

	snap := spendSnapshot{
		dayKey:       dayKey,
		monthKey:     monthKey,
		dailySpend:   dailySpend,
		monthlySpend: monthlySpend,
		fetchedAt:    now,
	}

	g.mu.Lock()
	g.cached = snap
	g.mu.Unlock()
	return snap, nil
}

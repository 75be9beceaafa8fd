// Package budget 提供费用入账与预算闸门
package budget

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cam-sentinel-ai/internal/config"
	"cam-sentinel-ai/internal/domain/entity"
	"cam-sentinel-ai/internal/domain/repository"
	"cam-sentinel-ai/internal/domain/service"
	"cam-sentinel-ai/pkg/logger"
	"cam-sentinel-ai/pkg/metrics"
)

var tracer = otel.Tracer("budget")

// 用量未上报时的保守估算参数。
// 图片按高清档等效 token 计，文本按保守的字符/token 比折算，
// 宁可高估也不让实际开销越过上限。
const (
	estimateImageTokens    = 765
	estimateOutputCharsPer = 3
	estimatePromptTokens   = 120
)

// Accountant 费用入账器。
// 按提供商费率计价并写入使用流水，用量缺失时保守估算并打 is_estimated 标。
type Accountant struct {
	usageRepo repository.UsageRecordRepository

	mu    sync.RWMutex
	rates map[string]config.RateConfig
}

var _ service.UsageRecorder = (*Accountant)(nil)

// NewAccountant 创建费用入账器
func NewAccountant(usageRepo repository.UsageRecordRepository, cfg *config.BudgetConfig) *Accountant {
	return &Accountant{
		usageRepo: usageRepo,
		rates:     cfg.Rates,
	}
}

// UpdateRates 热更新费率表，配置重载时调用
func (a *Accountant) UpdateRates(rates map[string]config.RateConfig) {
	a.mu.Lock()
	a.rates = rates
	a.mu.Unlock()
}

// Record 计价并落库一次提供商调用，返回本次美元开销
func (a *Accountant) Record(ctx context.Context, in service.UsageInput) (float64, error) {
	ctx, span := tracer.Start(ctx, "budget.Record",
		trace.WithAttributes(
			attribute.String("provider", in.Provider),
			attribute.String("mode", string(in.AnalysisMode)),
			attribute.Bool("usage_reported", in.UsageReported),
		))
	defer span.End()

	rate := a.rateFor(in.Provider)

	tokensIn := in.TokensInput
	tokensOut := in.TokensOutput
	estimated := !in.UsageReported
	if estimated {
		tokensIn, tokensOut = estimateTokens(in, rate)
	}

	cost := float64(tokensIn)/1000*rate.InputPer1K + float64(tokensOut)/1000*rate.OutputPer1K

	record := &entity.UsageRecord{
		Provider:     in.Provider,
		Model:        in.Model,
		AnalysisMode: in.AnalysisMode,
		TokensInput:  tokensIn,
		TokensOutput: tokensOut,
		ImageCount:   in.ImageCount,
		IsEstimated:  estimated,
		CostUSD:      cost,
	}
	if err := a.usageRepo.Create(ctx, record); err != nil {
		span.RecordError(err)
		// 入账失败不阻断主流程，费用已知即可
		logger.Error(ctx, "failed to persist usage record", err, "provider", in.Provider)
		return cost, err
	}

	metrics.ProviderTokensUsed.WithLabelValues(in.Provider, "input").Add(float64(tokensIn))
	metrics.ProviderTokensUsed.WithLabelValues(in.Provider, "output").Add(float64(tokensOut))
	span.SetAttributes(attribute.Float64("cost_usd", cost))
	return cost, nil
}

func (a *Accountant) rateFor(provider string) config.RateConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if rate, ok := a.rates[provider]; ok {
		return rate
	}
	// 没有费率表时按零价计，流水仍然保留 token 量
	return config.RateConfig{}
}

// estimateTokens 保守估算一次调用的 token 用量。
// 输入侧 = 固定提示词开销 + 每张图的高清档等效 token；
// 输出侧 = 响应字符数按保守比例折算。
func estimateTokens(in service.UsageInput, rate config.RateConfig) (tokensIn, tokensOut int) {
	imageTokens := rate.ImageTokensHigh
	if imageTokens <= 0 {
		imageTokens = estimateImageTokens
	}

	tokensIn = estimatePromptTokens + in.ImageCount*imageTokens
	if in.ResponseChars > 0 {
		tokensOut = (in.ResponseChars + estimateOutputCharsPer - 1) / estimateOutputCharsPer
	}
	return tokensIn, tokensOut
}

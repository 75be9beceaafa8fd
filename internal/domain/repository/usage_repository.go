// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"cam-sentinel-ai/internal/domain/entity"
)

// UsageAggregate 按日期/提供商/模式聚合的使用量
type UsageAggregate struct {
	Date         string              `json:"date"`
	Provider     string              `json:"provider"`
	AnalysisMode entity.AnalysisMode `json:"analysis_mode"`
	TokensInput  int64               `json:"tokens_input"`
	TokensOutput int64               `json:"tokens_output"`
	CostUSD      float64             `json:"cost_usd"`
	CallCount    int64               `json:"call_count"`
}

type UsageRecordRepository interface {
	Create(ctx context.Context, record *entity.UsageRecord) error
	// GetSpend 统计 [startInclusive, endExclusive) 区间内的美元开销
	GetSpend(ctx context.Context, startInclusive, endExclusive time.Time) (float64, error)
	Aggregate(ctx context.Context, startInclusive, endExclusive time.Time) ([]UsageAggregate, error)
}

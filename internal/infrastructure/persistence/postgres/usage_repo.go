// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"cam-sentinel-ai/internal/domain/entity"
	"cam-sentinel-ai/internal/domain/repository"
)

// UsageRecordRepository 计费流水仓储实现
type UsageRecordRepository struct {
	client *Client
}

// NewUsageRecordRepository 创建计费流水仓储
func NewUsageRecordRepository(client *Client) *UsageRecordRepository {
	return &UsageRecordRepository{client: client}
}

// Create 写入一条流水
func (r *UsageRecordRepository) Create(ctx context.Context, record *entity.UsageRecord) error {
	ctx, span := tracer.Start(ctx, "postgres.UsageRecordRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(record).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create usage record: %w", err)
	}
	return nil
}

// GetSpend 统计区间内的美元开销
func (r *UsageRecordRepository) GetSpend(ctx context.Context, startInclusive, endExclusive time.Time) (float64, error) {
	ctx, span := tracer.Start(ctx, "postgres.UsageRecordRepository.GetSpend")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var total float64
	if err := db.Model(&entity.UsageRecord{}).
		Where("created_at >= ? AND created_at < ?", startInclusive, endExclusive).
		Select("COALESCE(SUM(cost_usd),0)").
		Scan(&total).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get spend: %w", err)
	}
	return total, nil
}

// Aggregate 按日期/提供商/模式聚合区间内的使用量
func (r *UsageRecordRepository) Aggregate(ctx context.Context, startInclusive, endExclusive time.Time) ([]repository.UsageAggregate, error) {
	ctx, span := tracer.Start(ctx, "postgres.UsageRecordRepository.Aggregate")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var rows []repository.UsageAggregate
	if err := db.Model(&entity.UsageRecord{}).
		Select(`to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS date,
			provider,
			analysis_mode,
			COALESCE(SUM(tokens_input),0) AS tokens_input,
			COALESCE(SUM(tokens_output),0) AS tokens_output,
			COALESCE(SUM(cost_usd),0) AS cost_usd,
			COUNT(*) AS call_count`).
		Where("created_at >= ? AND created_at < ?", startInclusive, endExclusive).
		Group("date, provider, analysis_mode").
		Order("date DESC").
		Scan(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}
	return rows, nil
}

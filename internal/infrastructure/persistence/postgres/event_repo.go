// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"cam-sentinel-ai/internal/domain/entity"
	"cam-sentinel-ai/internal/domain/repository"
)

// EventRepository 事件仓储实现
type EventRepository struct {
	client *Client
}

// NewEventRepository 创建事件仓储
func NewEventRepository(client *Client) *EventRepository {
	return &EventRepository{client: client}
}

// Create 创建事件
func (r *EventRepository) Create(ctx context.Context, event *entity.Event) error {
	ctx, span := tracer.Start(ctx, "postgres.EventRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(event).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// Update 更新事件（分析结果回写）
func (r *EventRepository) Update(ctx context.Context, event *entity.Event) error {
	ctx, span := tracer.Start(ctx, "postgres.EventRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(event).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

// GetByID 按主键查询事件
func (r *EventRepository) GetByID(ctx context.Context, id string) (*entity.Event, error) {
	ctx, span := tracer.Start(ctx, "postgres.EventRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var event entity.Event
	if err := db.First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &event, nil
}

// List 按过滤条件查询事件
func (r *EventRepository) List(ctx context.Context, filter repository.EventFilter) ([]*entity.Event, int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.EventRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db).Model(&entity.Event{})

	if filter.CameraID != "" {
		db = db.Where("camera_id = ?", filter.CameraID)
	}
	if filter.DetectionType != "" {
		db = db.Where("detection_type = ?", filter.DetectionType)
	}
	if filter.AnalysisMode != "" {
		db = db.Where("analysis_mode = ?", filter.AnalysisMode)
	}
	if filter.HasFallback != nil {
		if *filter.HasFallback {
			db = db.Where("fallback_reason <> ''")
		} else {
			db = db.Where("fallback_reason = '' OR fallback_reason IS NULL")
		}
	}
	if filter.LowConfidence != nil {
		db = db.Where("low_confidence = ?", *filter.LowConfidence)
	}
	if !filter.Since.IsZero() {
		db = db.Where("timestamp >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		db = db.Where("timestamp < ?", filter.Until)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var events []*entity.Event
	if err := db.Order("timestamp DESC").Limit(limit).Offset(filter.Offset).Find(&events).Error; err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	return events, total, nil
}

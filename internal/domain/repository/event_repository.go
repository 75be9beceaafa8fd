// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"cam-sentinel-ai/internal/domain/entity"
)

// EventFilter 事件查询过滤条件
type EventFilter struct {
	CameraID      string
	DetectionType entity.DetectionType
	AnalysisMode  entity.AnalysisMode
	// HasFallback 为 true 时仅返回带降级记录的事件
	HasFallback *bool
	// LowConfidence 按低置信度标记过滤
	LowConfidence *bool
	Since         time.Time
	Until         time.Time
	Limit         int
	Offset        int
}

type EventRepository interface {
	Create(ctx context.Context, event *entity.Event) error
	Update(ctx context.Context, event *entity.Event) error
	GetByID(ctx context.Context, id string) (*entity.Event, error)
	List(ctx context.Context, filter EventFilter) ([]*entity.Event, int64, error)
}

package dto

import (
	"time"

	"cam-sentinel-ai/internal/domain/entity"
	"cam-sentinel-ai/internal/domain/repository"
)

// ListEventsRequest 事件列表查询参数
type ListEventsRequest struct {
	CameraID      string `form:"camera_id"`
	DetectionType string `form:"detection_type"`
	AnalysisMode  string `form:"analysis_mode"`
	HasFallback   *bool  `form:"has_fallback"`
	LowConfidence *bool  `form:"low_confidence"`
	Since         string `form:"since"`
	Until         string `form:"until"`
	Limit         int    `form:"limit"`
	Offset        int    `form:"offset"`
}

// ToFilter 转换为仓储层过滤条件
func (r *ListEventsRequest) ToFilter() (repository.EventFilter, error) {
	filter := repository.EventFilter{
		CameraID:      r.CameraID,
		DetectionType: entity.DetectionType(r.DetectionType),
		AnalysisMode:  entity.AnalysisMode(r.AnalysisMode),
		HasFallback:   r.HasFallback,
		LowConfidence: r.LowConfidence,
		Limit:         r.Limit,
		Offset:        r.Offset,
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	if r.Since != "" {
		t, err := time.Parse(time.RFC3339, r.Since)
		if err != nil {
			return filter, err
		}
		filter.Since = t
	}
	if r.Until != "" {
		t, err := time.Parse(time.RFC3339, r.Until)
		if err != nil {
			return filter, err
		}
		filter.Until = t
	}
	return filter, nil
}

// EventResponse 事件响应
type EventResponse struct {
	ID                    string    `json:"id"`
	CameraID              string    `json:"camera_id"`
	Timestamp             time.Time `json:"timestamp"`
	DetectionType         string    `json:"detection_type"`
	AnalysisMode          string    `json:"analysis_mode"`
	FallbackReason        []string  `json:"fallback_reason,omitempty"`
	Description           *string   `json:"description,omitempty"`
	Confidence            *int      `json:"confidence,omitempty"`
	LowConfidence         bool      `json:"low_confidence"`
	CostUSD               *float64  `json:"cost_usd,omitempty"`
	AnalysisSkippedReason *string   `json:"analysis_skipped_reason,omitempty"`
	ThumbnailPath         string    `json:"thumbnail_path,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

// FromEvent 转换领域实体为响应
func FromEvent(e *entity.Event) *EventResponse {
	return &EventResponse{
		ID:                    e.ID,
		CameraID:              e.CameraID,
		Timestamp:             e.Timestamp,
		DetectionType:         string(e.DetectionType),
		AnalysisMode:          string(e.AnalysisMode),
		FallbackReason:        e.FallbackReason,
		Description:           e.Description,
		Confidence:            e.Confidence,
		LowConfidence:         e.LowConfidence,
		CostUSD:               e.CostUSD,
		AnalysisSkippedReason: e.AnalysisSkippedReason,
		ThumbnailPath:         e.ThumbnailPath,
		CreatedAt:             e.CreatedAt,
	}
}

// FromEvents 批量转换
func FromEvents(events []*entity.Event) []*EventResponse {
	out := make([]*EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, FromEvent(e))
	}
	return out
}

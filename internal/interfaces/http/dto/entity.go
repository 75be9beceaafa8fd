package dto

import (
	"time"

	"cam-sentinel-ai/internal/domain/entity"
)

// RecognizedEntityResponse 周期性实体响应
type RecognizedEntityResponse struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Name            *string   `json:"name,omitempty"`
	Signature       *string   `json:"signature,omitempty"`
	OccurrenceCount int       `json:"occurrence_count"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	CreatedAt       time.Time `json:"created_at"`
}

// FromRecognizedEntity 转换领域实体为响应
func FromRecognizedEntity(e *entity.RecognizedEntity) *RecognizedEntityResponse {
	return &RecognizedEntityResponse{
		ID:              e.ID,
		Type:            string(e.Type),
		Name:            e.Name,
		Signature:       e.Signature,
		OccurrenceCount: e.OccurrenceCount,
		FirstSeen:       e.FirstSeen,
		LastSeen:        e.LastSeen,
		CreatedAt:       e.CreatedAt,
	}
}

// FromRecognizedEntities 批量转换
func FromRecognizedEntities(entities []*entity.RecognizedEntity) []*RecognizedEntityResponse {
	out := make([]*RecognizedEntityResponse, 0, len(entities))
	for _, e := range entities {
		out = append(out, FromRecognizedEntity(e))
	}
	return out
}

// UpdateEntityRequest 实体更新请求（目前只支持命名）
type UpdateEntityRequest struct {
	Name string `json:"name" binding:"required,max=128"`
}

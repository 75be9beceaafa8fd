package dto

import (
	"time"

	"cam-sentinel-ai/internal/domain/entity"
)

// CameraResponse 摄像头响应
type CameraResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	PreferredMode   string    `json:"preferred_mode"`
	EnabledTypes    []string  `json:"enabled_types,omitempty"`
	HasClipSource   bool      `json:"has_clip_source"`
	Provider        string    `json:"provider,omitempty"`
	CooldownSeconds int       `json:"cooldown_seconds"`
	Enabled         bool      `json:"enabled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// FromCamera 转换领域实体为响应
func FromCamera(c *entity.Camera) *CameraResponse {
	types := make([]string, 0, len(c.EnabledTypes))
	for _, t := range c.EnabledTypes {
		types = append(types, string(t))
	}
	return &CameraResponse{
		ID:              c.ID,
		Name:            c.Name,
		PreferredMode:   string(c.PreferredMode),
		EnabledTypes:    types,
		HasClipSource:   c.HasClipSource,
		Provider:        c.Provider,
		CooldownSeconds: c.CooldownSeconds,
		Enabled:         c.Enabled,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// SaveCameraRequest 摄像头创建/更新请求
type SaveCameraRequest struct {
	ID              string   `json:"id" binding:"required,max=64"`
	Name            string   `json:"name" binding:"required,max=128"`
	PreferredMode   string   `json:"preferred_mode" binding:"omitempty,oneof=video_native multi_frame single_frame"`
	EnabledTypes    []string `json:"enabled_types"`
	HasClipSource   *bool    `json:"has_clip_source"`
	Provider        string   `json:"provider" binding:"omitempty,max=32"`
	CooldownSeconds int      `json:"cooldown_seconds" binding:"omitempty,min=0,max=3600"`
	Enabled         *bool    `json:"enabled"`
}

// ToCamera 转换为领域实体
func (r *SaveCameraRequest) ToCamera() *entity.Camera {
	types := make(entity.DetectionTypes, 0, len(r.EnabledTypes))
	for _, t := range r.EnabledTypes {
		types = append(types, entity.DetectionType(t))
	}

	camera := &entity.Camera{
		ID:              r.ID,
		Name:            r.Name,
		PreferredMode:   entity.AnalysisMode(r.PreferredMode),
		EnabledTypes:    types,
		HasClipSource:   true,
		Provider:        r.Provider,
		CooldownSeconds: r.CooldownSeconds,
		Enabled:         true,
	}
	if r.HasClipSource != nil {
		camera.HasClipSource = *r.HasClipSource
	}
	if r.Enabled != nil {
		camera.Enabled = *r.Enabled
	}
	return camera
}

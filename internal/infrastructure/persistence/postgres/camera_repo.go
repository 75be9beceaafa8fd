// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cam-sentinel-ai/internal/domain/entity"
)

// CameraRepository 摄像头配置仓储实现
type CameraRepository struct {
	client *Client
}

// NewCameraRepository 创建摄像头仓储
func NewCameraRepository(client *Client) *CameraRepository {
	return &CameraRepository{client: client}
}

// GetByID 按标识查询摄像头
func (r *CameraRepository) GetByID(ctx context.Context, id string) (*entity.Camera, error) {
	ctx, span := tracer.Start(ctx, "postgres.CameraRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var camera entity.Camera
	if err := db.First(&camera, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}
	return &camera, nil
}

// List 返回全部摄像头
func (r *CameraRepository) List(ctx context.Context) ([]*entity.Camera, error) {
	ctx, span := tracer.Start(ctx, "postgres.CameraRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var cameras []*entity.Camera
	if err := db.Order("id").Find(&cameras).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list cameras: %w", err)
	}
	return cameras, nil
}

// Save 新建或更新摄像头配置
func (r *CameraRepository) Save(ctx context.Context, camera *entity.Camera) error {
	ctx, span := tracer.Start(ctx, "postgres.CameraRepository.Save")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(camera).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save camera: %w", err)
	}
	return nil
}

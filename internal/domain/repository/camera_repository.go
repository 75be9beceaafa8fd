// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"cam-sentinel-ai/internal/domain/entity"
)

type CameraRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Camera, error)
	List(ctx context.Context) ([]*entity.Camera, error)
	Save(ctx context.Context, camera *entity.Camera) error
}

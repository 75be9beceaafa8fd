// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"cam-sentinel-ai/internal/domain/entity"
)

type RecognizedEntityRepository interface {
	Create(ctx context.Context, e *entity.RecognizedEntity) error
	Update(ctx context.Context, e *entity.RecognizedEntity) error
	GetByID(ctx context.Context, id string) (*entity.RecognizedEntity, error)
	// GetBySignature 按归一化签名查找同类型实体，未命中返回 nil
	GetBySignature(ctx context.Context, entityType entity.RecognizedEntityType, signature string) (*entity.RecognizedEntity, error)
	List(ctx context.Context, entityType entity.RecognizedEntityType, limit, offset int) ([]*entity.RecognizedEntity, int64, error)
	Delete(ctx context.Context, id string) error

	// LinkEvent 建立事件与实体的关联；同一 (event, entity) 重复写入应幂等
	LinkEvent(ctx context.Context, link *entity.EventEntityLink) error
	// GetLinkByEvent 查询事件已有的关联，用于重放幂等
	GetLinkByEvent(ctx context.Context, eventID string) (*entity.EventEntityLink, error)
}

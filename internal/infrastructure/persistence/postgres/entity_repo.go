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

// RecognizedEntityRepository 周期性实体仓储实现
type RecognizedEntityRepository struct {
	client *Client
}

// NewRecognizedEntityRepository 创建周期性实体仓储
func NewRecognizedEntityRepository(client *Client) *RecognizedEntityRepository {
	return &RecognizedEntityRepository{client: client}
}

// Create 创建实体
func (r *RecognizedEntityRepository) Create(ctx context.Context, e *entity.RecognizedEntity) error {
	ctx, span := tracer.Start(ctx, "postgres.RecognizedEntityRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(e).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create recognized entity: %w", err)
	}
	return nil
}

// Update 更新实体（计数、时间、签名补全）
func (r *RecognizedEntityRepository) Update(ctx context.Context, e *entity.RecognizedEntity) error {
	ctx, span := tracer.Start(ctx, "postgres.RecognizedEntityRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(e).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update recognized entity: %w", err)
	}
	return nil
}

// GetByID 按主键查询
func (r *RecognizedEntityRepository) GetByID(ctx context.Context, id string) (*entity.RecognizedEntity, error) {
	ctx, span := tracer.Start(ctx, "postgres.RecognizedEntityRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var e entity.RecognizedEntity
	if err := db.First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get recognized entity: %w", err)
	}
	return &e, nil
}

// GetBySignature 按归一化签名查找同类型实体
func (r *RecognizedEntityRepository) GetBySignature(ctx context.Context, entityType entity.RecognizedEntityType, signature string) (*entity.RecognizedEntity, error) {
	ctx, span := tracer.Start(ctx, "postgres.RecognizedEntityRepository.GetBySignature")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var e entity.RecognizedEntity
	if err := db.First(&e, "type = ? AND signature = ?", entityType, signature).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get entity by signature: %w", err)
	}
	return &e, nil
}

// List 按类型分页查询
func (r *RecognizedEntityRepository) List(ctx context.Context, entityType entity.RecognizedEntityType, limit, offset int) ([]*entity.RecognizedEntity, int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.RecognizedEntityRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db).Model(&entity.RecognizedEntity{})
	if entityType != "" {
		db = db.Where("type = ?", entityType)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("failed to count entities: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}

	var entities []*entity.RecognizedEntity
	if err := db.Order("last_seen DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("failed to list entities: %w", err)
	}
	return entities, total, nil
}

// Delete 手动删除实体及其事件关联
func (r *RecognizedEntityRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.RecognizedEntityRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&entity.EventEntityLink{}, "entity_id = ?", id).Error; err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to delete entity links: %w", err)
		}
		if err := tx.Delete(&entity.RecognizedEntity{}, "id = ?", id).Error; err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to delete entity: %w", err)
		}
		return nil
	})
}

// LinkEvent 建立事件关联；复合主键冲突时忽略，保证重放幂等
func (r *RecognizedEntityRepository) LinkEvent(ctx context.Context, link *entity.EventEntityLink) error {
	ctx, span := tracer.Start(ctx, "postgres.RecognizedEntityRepository.LinkEvent")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(link).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to link event: %w", err)
	}
	return nil
}

// GetLinkByEvent 查询事件已有的实体关联
func (r *RecognizedEntityRepository) GetLinkByEvent(ctx context.Context, eventID string) (*entity.EventEntityLink, error) {
	ctx, span := tracer.Start(ctx, "postgres.RecognizedEntityRepository.GetLinkByEvent")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var link entity.EventEntityLink
	if err := db.First(&link, "event_id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get event link: %w", err)
	}
	return &link, nil
}

// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Repository 实体签名向量仓储
type Repository struct {
	client *Client
}

// NewRepository 创建向量仓储
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// NearestMatch 相似度检索结果
type NearestMatch struct {
	VectorID   string
	EntityID   string
	EntityType string
	Score      float32
}

// EnsureCollection 保证集合与索引存在并加载
func (r *Repository) EnsureCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.EnsureCollection")
	defer span.End()

	collName := r.client.CollectionName(CollectionEntitySignatures)

	has, err := r.client.milvus.HasCollection(ctx, collName)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !has {
		schema := EntitySignaturesSchema()
		schema.CollectionName = collName
		if err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx, err := entity.NewIndexHNSW(
			entity.COSINE,
			r.client.config.HNSWM,
			r.client.config.HNSWEfConstruction,
		)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to build index: %w", err)
		}
		if err := r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return r.client.milvus.LoadCollection(ctx, collName, false)
}

// InsertEmbedding 写入实体签名向量，返回向量主键
func (r *Repository) InsertEmbedding(ctx context.Context, entityID, entityType string, vector []float32) (string, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return "", fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertEmbedding",
		trace.WithAttributes(
			attribute.String("entity_id", entityID),
			attribute.String("entity_type", entityType),
		))
	defer span.End()

	collName := r.client.CollectionName(CollectionEntitySignatures)
	vectorID := uuid.NewString()

	idCol := entity.NewColumnVarChar("id", []string{vectorID})
	vecCol := entity.NewColumnFloatVector("vector", VectorDimension, [][]float32{vector})
	entityCol := entity.NewColumnVarChar("entity_id", []string{entityID})
	typeCol := entity.NewColumnVarChar("entity_type", []string{entityType})

	if _, err := r.client.milvus.Insert(ctx, collName, "", idCol, vecCol, entityCol, typeCol); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to insert embedding: %w", err)
	}
	return vectorID, nil
}

// SearchNearest 按类型检索最相似的实体签名
func (r *Repository) SearchNearest(ctx context.Context, entityType string, vector []float32, topK int) ([]*NearestMatch, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchNearest",
		trace.WithAttributes(
			attribute.String("entity_type", entityType),
			attribute.Int("top_k", topK),
		))
	defer span.End()

	collName := r.client.CollectionName(CollectionEntitySignatures)
	filter := fmt.Sprintf(`entity_type == "%s"`, entityType)

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		filter,
		[]string{"id", "entity_id", "entity_type"},
		[]entity.Vector{entity.FloatVector(vector)},
		"vector",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var matches []*NearestMatch
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			m := &NearestMatch{
				Score: result.Scores[i],
			}
			if idCol, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
				m.VectorID = idCol.Data()[i]
			}
			if entityCol, ok := result.Fields.GetColumn("entity_id").(*entity.ColumnVarChar); ok {
				m.EntityID = entityCol.Data()[i]
			}
			if typeCol, ok := result.Fields.GetColumn("entity_type").(*entity.ColumnVarChar); ok {
				m.EntityType = typeCol.Data()[i]
			}
			matches = append(matches, m)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(matches)))
	return matches, nil
}

// DeleteByEntity 删除某实体的全部签名向量（实体被人工删除时调用）
func (r *Repository) DeleteByEntity(ctx context.Context, entityID string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteByEntity",
		trace.WithAttributes(attribute.String("entity_id", entityID)))
	defer span.End()

	collName := r.client.CollectionName(CollectionEntitySignatures)
	expr := fmt.Sprintf(`entity_id == "%s"`, entityID)
	if err := r.client.milvus.Delete(ctx, collName, "", expr); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete embeddings: %w", err)
	}
	return nil
}

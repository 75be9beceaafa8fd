package match

import (
	"context"

	"cam-sentinel-ai/internal/infrastructure/persistence/milvus"
)

// milvusIndex 将 Milvus 仓储适配为 VectorIndex 端口
type milvusIndex struct {
	repo *milvus.Repository
}

// NewMilvusIndex 创建基于 Milvus 的向量检索端口
func NewMilvusIndex(repo *milvus.Repository) VectorIndex {
	return &milvusIndex{repo: repo}
}

func (m *milvusIndex) InsertEmbedding(ctx context.Context, entityID, entityType string, vector []float32) (string, error) {
	return m.repo.InsertEmbedding(ctx, entityID, entityType, vector)
}

func (m *milvusIndex) SearchNearest(ctx context.Context, entityType string, vector []float32, topK int) ([]*NearestMatch, error) {
	hits, err := m.repo.SearchNearest(ctx, entityType, vector, topK)
	if err != nil {
		return nil, err
	}
	matches := make([]*NearestMatch, 0, len(hits))
	for _, h := range hits {
		matches = append(matches, &NearestMatch{
			VectorID:   h.VectorID,
			EntityID:   h.EntityID,
			EntityType: h.EntityType,
			Score:      float64(h.Score),
		})
	}
	return matches, nil
}

package match

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cam-sentinel-ai/internal/config"
	"cam-sentinel-ai/internal/domain/entity"
	"cam-sentinel-ai/internal/domain/repository"
	"cam-sentinel-ai/pkg/logger"
	"cam-sentinel-ai/pkg/metrics"
)

var tracer = otel.Tracer("match")

// Embedder 文本向量化端口
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex 向量检索端口
type VectorIndex interface {
	InsertEmbedding(ctx context.Context, entityID, entityType string, vector []float32) (string, error)
	SearchNearest(ctx context.Context, entityType string, vector []float32, topK int) ([]*NearestMatch, error)
}

// NearestMatch 向量检索命中
type NearestMatch struct {
	VectorID   string
	EntityID   string
	EntityType string
	Score      float64
}

// Result 一次匹配的结果
type Result struct {
	Entity *entity.RecognizedEntity
	// Created 本次是否新建了实体
	Created bool
	// Similarity 命中时的相似度，签名精确命中记为 1
	Similarity float64
}

// Matcher 周期性实体匹配器。
// 车辆优先走签名精确匹配，未命中再做向量近邻检索，
// 相似度不达标则新建实体。事件重放时通过已有关联保证幂等。
type Matcher struct {
	entityRepo repository.RecognizedEntityRepository
	embedder   Embedder
	index      VectorIndex

	mu        sync.RWMutex
	threshold float64
	now       func() time.Time
}

// NewMatcher 创建实体匹配器
func NewMatcher(
	entityRepo repository.RecognizedEntityRepository,
	embedder Embedder,
	index VectorIndex,
	cfg *config.MatchingConfig,
) *Matcher {
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 {
		threshold = 0.75
	}
	return &Matcher{
		entityRepo: entityRepo,
		embedder:   embedder,
		index:      index,
		threshold:  threshold,
		now:        time.Now,
	}
}

// UpdateThreshold 热更新相似度阈值，配置重载时调用
func (m *Matcher) UpdateThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	m.threshold = threshold
	m.mu.Unlock()
}

// Match 将事件关联到既有或新建的实体。
// 只有 person / vehicle 检测参与匹配，其余类型返回 nil。
func (m *Matcher) Match(ctx context.Context, event *entity.Event) (*Result, error) {
	entityType, ok := matchableType(event.DetectionType)
	if !ok || event.Description == nil {
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "match.Match",
		trace.WithAttributes(
			attribute.String("event_id", event.ID),
			attribute.String("entity_type", string(entityType)),
		))
	defer span.End()

	// 重放幂等：事件已有关联时直接返回既有实体
	if link, err := m.entityRepo.GetLinkByEvent(ctx, event.ID); err == nil && link != nil {
		existing, getErr := m.entityRepo.GetByID(ctx, link.EntityID)
		if getErr != nil {
			return nil, getErr
		}
		if existing != nil {
			return &Result{Entity: existing, Similarity: link.Similarity}, nil
		}
	}

	description := *event.Description

	// 车辆先走签名精确匹配，比向量检索更便宜也更稳定
	signature := ""
	if entityType == entity.RecognizedVehicle {
		signature = ExtractVehicleSignature(description)
		if signature != "" {
			existing, err := m.entityRepo.GetBySignature(ctx, entityType, signature)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				metrics.EntityMatchTotal.WithLabelValues(string(entityType), "signature").Inc()
				return m.attach(ctx, event, existing, 1.0)
			}
		}
	}

	vector, err := m.embedder.EmbedOne(ctx, description)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	matches, err := m.index.SearchNearest(ctx, string(entityType), vector, 1)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	m.mu.RLock()
	threshold := m.threshold
	m.mu.RUnlock()

	if len(matches) > 0 && matches[0].Score >= threshold {
		existing, getErr := m.entityRepo.GetByID(ctx, matches[0].EntityID)
		if getErr != nil {
			return nil, getErr
		}
		// 向量库可能残留已删除实体的条目，未找到时按未命中继续
		if existing != nil {
			// 向量命中后顺手补写签名，后续同车直接走精确匹配
			existing.RefineSignature(signature)
			metrics.EntityMatchTotal.WithLabelValues(string(entityType), "embedding").Inc()
			return m.attach(ctx, event, existing, matches[0].Score)
		}
	}

	// 新实体
	created := entity.NewRecognizedEntity(entityType, event.Timestamp)
	created.RefineSignature(signature)
	if err := m.entityRepo.Create(ctx, created); err != nil {
		return nil, err
	}

	vectorID, err := m.index.InsertEmbedding(ctx, created.ID, string(entityType), vector)
	if err != nil {
		// 向量写入失败不回滚实体，下次出现时再建索引
		logger.Warn(ctx, "failed to index entity embedding", "entity_id", created.ID, "error", err)
	} else {
		created.VectorID = vectorID
	}

	metrics.EntityMatchTotal.WithLabelValues(string(entityType), "created").Inc()
	result, err := m.attach(ctx, event, created, 0)
	if result != nil {
		result.Created = true
	}
	return result, err
}

// attach 建立事件关联并刷新实体出现统计
func (m *Matcher) attach(ctx context.Context, event *entity.Event, e *entity.RecognizedEntity, similarity float64) (*Result, error) {
	link := &entity.EventEntityLink{
		EventID:    event.ID,
		EntityID:   e.ID,
		Similarity: similarity,
	}
	if err := m.entityRepo.LinkEvent(ctx, link); err != nil {
		return nil, err
	}

	e.RecordSighting(event.Timestamp)
	if err := m.entityRepo.Update(ctx, e); err != nil {
		return nil, err
	}

	return &Result{Entity: e, Similarity: similarity}, nil
}

func matchableType(dt entity.DetectionType) (entity.RecognizedEntityType, bool) {
	switch dt {
	case entity.DetectionPerson:
		return entity.RecognizedPerson, true
	case entity.DetectionVehicle:
		return entity.RecognizedVehicle, true
	default:
		return "", false
	}
}

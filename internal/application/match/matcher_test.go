package match

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cam-sentinel-ai/internal/config"
	"cam-sentinel-ai/internal/domain/entity"
	apperrors "cam-sentinel-ai/pkg/errors"
)

// fakeEntityRepo 内存版实体仓储
type fakeEntityRepo struct {
	entities map[string]*entity.RecognizedEntity
	links    map[string]*entity.EventEntityLink // key: eventID
	nextID   int
	updates  int
}

func newFakeEntityRepo() *fakeEntityRepo {
	return &fakeEntityRepo{
		entities: make(map[string]*entity.RecognizedEntity),
		links:    make(map[string]*entity.EventEntityLink),
	}
}

func (r *fakeEntityRepo) Create(ctx context.Context, e *entity.RecognizedEntity) error {
	r.nextID++
	e.ID = "ent-" + strconv.Itoa(r.nextID)
	r.entities[e.ID] = e
	return nil
}

func (r *fakeEntityRepo) Update(ctx context.Context, e *entity.RecognizedEntity) error {
	r.updates++
	r.entities[e.ID] = e
	return nil
}

func (r *fakeEntityRepo) GetByID(ctx context.Context, id string) (*entity.RecognizedEntity, error) {
	return r.entities[id], nil
}

func (r *fakeEntityRepo) GetBySignature(ctx context.Context, entityType entity.RecognizedEntityType, signature string) (*entity.RecognizedEntity, error) {
	for _, e := range r.entities {
		if e.Type == entityType && e.Signature != nil && *e.Signature == signature {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeEntityRepo) List(ctx context.Context, entityType entity.RecognizedEntityType, limit, offset int) ([]*entity.RecognizedEntity, int64, error) {
	return nil, 0, nil
}

func (r *fakeEntityRepo) Delete(ctx context.Context, id string) error {
	delete(r.entities, id)
	return nil
}

func (r *fakeEntityRepo) LinkEvent(ctx context.Context, link *entity.EventEntityLink) error {
	r.links[link.EventID] = link
	return nil
}

func (r *fakeEntityRepo) GetLinkByEvent(ctx context.Context, eventID string) (*entity.EventEntityLink, error) {
	return r.links[eventID], nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (e *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vector, nil
}

type fakeIndex struct {
	hits      []*NearestMatch
	searchErr error
	insertErr error
	inserted  int
}

func (i *fakeIndex) InsertEmbedding(ctx context.Context, entityID, entityType string, vector []float32) (string, error) {
	if i.insertErr != nil {
		return "", i.insertErr
	}
	i.inserted++
	return "vec-" + entityID, nil
}

func (i *fakeIndex) SearchNearest(ctx context.Context, entityType string, vector []float32, topK int) ([]*NearestMatch, error) {
	if i.searchErr != nil {
		return nil, i.searchErr
	}
	return i.hits, nil
}

func newTestMatcher(repo *fakeEntityRepo, embedder *fakeEmbedder, index *fakeIndex) *Matcher {
	return NewMatcher(repo, embedder, index, &config.MatchingConfig{SimilarityThreshold: 0.75})
}

func vehicleEvent(id, description string) *entity.Event {
	event := entity.NewEvent("driveway", entity.DetectionVehicle, time.Now())
	event.ID = id
	event.Description = &description
	return event
}

func personEvent(id, description string) *entity.Event {
	event := entity.NewEvent("front_door", entity.DetectionPerson, time.Now())
	event.ID = id
	event.Description = &description
	return event
}

func TestMatchSkipsNonMatchableTypes(t *testing.T) {
	repo := newFakeEntityRepo()
	m := newTestMatcher(repo, &fakeEmbedder{}, &fakeIndex{})

	event := entity.NewEvent("porch", entity.DetectionPackage, time.Now())
	desc := "A package on the doormat."
	event.ID = "evt-1"
	event.Description = &desc

	result, err := m.Match(context.Background(), event)

	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Empty(t, repo.links)
}

func TestMatchSkipsWithoutDescription(t *testing.T) {
	m := newTestMatcher(newFakeEntityRepo(), &fakeEmbedder{}, &fakeIndex{})

	event := entity.NewEvent("front_door", entity.DetectionPerson, time.Now())
	event.ID = "evt-1"

	result, err := m.Match(context.Background(), event)

	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestMatchCreatesNewEntity(t *testing.T) {
	repo := newFakeEntityRepo()
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	index := &fakeIndex{}
	m := newTestMatcher(repo, embedder, index)

	result, err := m.Match(context.Background(), personEvent("evt-1", "A tall person in a red jacket."))

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Created)
	assert.Zero(t, result.Similarity)
	assert.Equal(t, entity.RecognizedPerson, result.Entity.Type)
	assert.Equal(t, 1, result.Entity.OccurrenceCount)
	assert.Equal(t, "vec-"+result.Entity.ID, result.Entity.VectorID)
	assert.Equal(t, 1, index.inserted)
	require.Contains(t, repo.links, "evt-1")
}

func TestMatchVehicleBySignature(t *testing.T) {
	repo := newFakeEntityRepo()
	signature := "white-toyota-camry"
	known := entity.NewRecognizedEntity(entity.RecognizedVehicle, time.Now().Add(-24*time.Hour))
	known.Signature = &signature
	require.NoError(t, repo.Create(context.Background(), known))

	embedder := &fakeEmbedder{vector: []float32{0.1}}
	m := newTestMatcher(repo, embedder, &fakeIndex{})

	result, err := m.Match(context.Background(), vehicleEvent("evt-2", "A white Toyota Camry pulls into the driveway."))

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Created)
	assert.Equal(t, known.ID, result.Entity.ID)
	assert.Equal(t, 1.0, result.Similarity)
	// 签名命中后不再走向量化
	assert.Zero(t, embedder.calls)
}

func TestMatchByEmbeddingSimilarity(t *testing.T) {
	repo := newFakeEntityRepo()
	known := entity.NewRecognizedEntity(entity.RecognizedPerson, time.Now().Add(-48*time.Hour))
	require.NoError(t, repo.Create(context.Background(), known))

	index := &fakeIndex{hits: []*NearestMatch{{
		VectorID: "vec-1",
		EntityID: known.ID,
		Score:    0.88,
	}}}
	m := newTestMatcher(repo, &fakeEmbedder{vector: []float32{0.1}}, index)

	result, err := m.Match(context.Background(), personEvent("evt-3", "The same tall person in a red jacket."))

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Created)
	assert.Equal(t, known.ID, result.Entity.ID)
	assert.InDelta(t, 0.88, result.Similarity, 1e-9)
	assert.Equal(t, 1, result.Entity.OccurrenceCount)
}

func TestMatchBelowThresholdCreatesEntity(t *testing.T) {
	repo := newFakeEntityRepo()
	known := entity.NewRecognizedEntity(entity.RecognizedPerson, time.Now())
	require.NoError(t, repo.Create(context.Background(), known))

	index := &fakeIndex{hits: []*NearestMatch{{EntityID: known.ID, Score: 0.5}}}
	m := newTestMatcher(repo, &fakeEmbedder{vector: []float32{0.1}}, index)

	result, err := m.Match(context.Background(), personEvent("evt-4", "A short person with an umbrella."))

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Created)
	assert.NotEqual(t, known.ID, result.Entity.ID)
}

func TestMatchEmbeddingHitRefinesVehicleSignature(t *testing.T) {
	repo := newFakeEntityRepo()
	known := entity.NewRecognizedEntity(entity.RecognizedVehicle, time.Now())
	require.NoError(t, repo.Create(context.Background(), known))

	index := &fakeIndex{hits: []*NearestMatch{{EntityID: known.ID, Score: 0.9}}}
	m := newTestMatcher(repo, &fakeEmbedder{vector: []float32{0.1}}, index)

	// 签名在库里不存在，向量命中后补写
	result, err := m.Match(context.Background(), vehicleEvent("evt-5", "A blue Subaru Outback stops at the curb."))

	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotNil(t, result.Entity.Signature)
	assert.Equal(t, "blue-subaru-outback", *result.Entity.Signature)
}

func TestMatchIsIdempotentOnReplay(t *testing.T) {
	repo := newFakeEntityRepo()
	index := &fakeIndex{}
	m := newTestMatcher(repo, &fakeEmbedder{vector: []float32{0.1}}, index)

	event := personEvent("evt-6", "A person waters the plants.")

	first, err := m.Match(context.Background(), event)
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := m.Match(context.Background(), event)
	require.NoError(t, err)
	require.NotNil(t, second)

	// 重放不新建实体也不重复计数
	assert.False(t, second.Created)
	assert.Equal(t, first.Entity.ID, second.Entity.ID)
	assert.Equal(t, 1, second.Entity.OccurrenceCount)
	assert.Len(t, repo.entities, 1)
}

func TestMatchStaleVectorHitFallsThroughToCreate(t *testing.T) {
	repo := newFakeEntityRepo()
	// 向量库残留了已删除实体的条目
	index := &fakeIndex{hits: []*NearestMatch{{EntityID: "gone", Score: 0.95}}}
	m := newTestMatcher(repo, &fakeEmbedder{vector: []float32{0.1}}, index)

	result, err := m.Match(context.Background(), personEvent("evt-7", "A jogger passes by."))

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Created)
}

func TestMatchSurvivesIndexInsertFailure(t *testing.T) {
	repo := newFakeEntityRepo()
	index := &fakeIndex{insertErr: apperrors.New(apperrors.CodeInternalError, "milvus down")}
	m := newTestMatcher(repo, &fakeEmbedder{vector: []float32{0.1}}, index)

	result, err := m.Match(context.Background(), personEvent("evt-8", "A person checks the mailbox."))

	// 向量写入失败不回滚实体
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Created)
	assert.Empty(t, result.Entity.VectorID)
	require.Contains(t, repo.links, "evt-8")
}

func TestMatchPropagatesEmbedderError(t *testing.T) {
	m := newTestMatcher(newFakeEntityRepo(), &fakeEmbedder{err: apperrors.New(apperrors.CodeInternalError, "embed down")}, &fakeIndex{})

	_, err := m.Match(context.Background(), personEvent("evt-9", "A person at the gate."))

	assert.Error(t, err)
}

package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/examind/internal/corpus"
	"github.com/fyrsmithlabs/examind/internal/vectorstore"
)

// fakeStore is an in-memory Store for builder tests.
type fakeStore struct {
	collections map[string]*fakeCollection
	aliases     map[string]string
	upsertErr   error
	upsertSizes []int
}

type fakeCollection struct {
	vectorSize int
	points     map[string]vectorstore.Point
	indexes    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		collections: make(map[string]*fakeCollection),
		aliases:     make(map[string]string),
	}
}

func (f *fakeStore) resolve(name string) (*fakeCollection, bool) {
	if target, ok := f.aliases[name]; ok {
		name = target
	}
	c, ok := f.collections[name]
	return c, ok
}

func (f *fakeStore) CreateCollection(_ context.Context, name string, vectorSize int) error {
	f.collections[name] = &fakeCollection{
		vectorSize: vectorSize,
		points:     make(map[string]vectorstore.Point),
	}
	return nil
}

func (f *fakeStore) DeleteCollection(_ context.Context, name string) error {
	delete(f.collections, name)
	return nil
}

func (f *fakeStore) CollectionExists(_ context.Context, name string) (bool, error) {
	_, ok := f.resolve(name)
	return ok, nil
}

func (f *fakeStore) ListCollections(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(f.collections))
	for name := range f.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeStore) GetCollectionInfo(_ context.Context, name string) (*vectorstore.CollectionInfo, error) {
	c, ok := f.resolve(name)
	if !ok {
		return nil, vectorstore.ErrCollectionNotFound
	}
	return &vectorstore.CollectionInfo{
		Name:       name,
		PointCount: len(c.points),
		VectorSize: c.vectorSize,
	}, nil
}

func (f *fakeStore) CreateKeywordIndexes(_ context.Context, name string, fields ...string) error {
	c, ok := f.resolve(name)
	if !ok {
		return vectorstore.ErrCollectionNotFound
	}
	c.indexes = append(c.indexes, fields...)
	return nil
}

func (f *fakeStore) Upsert(_ context.Context, name string, points []vectorstore.Point) error {
	f.upsertSizes = append(f.upsertSizes, len(points))
	if f.upsertErr != nil {
		return f.upsertErr
	}
	c, ok := f.resolve(name)
	if !ok {
		return vectorstore.ErrCollectionNotFound
	}
	for _, p := range points {
		c.points[p.ID] = p
	}
	return nil
}

func (f *fakeStore) Search(_ context.Context, _ string, _ []float32, _ int, _ map[string]string) ([]vectorstore.ScoredPoint, error) {
	return nil, nil
}

func (f *fakeStore) ScrollPayloads(_ context.Context, name string, _ ...string) ([]map[string]interface{}, error) {
	c, ok := f.resolve(name)
	if !ok {
		return nil, vectorstore.ErrCollectionNotFound
	}
	var payloads []map[string]interface{}
	for id, p := range c.points {
		payload := make(map[string]interface{}, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		payload[FieldChunkID] = id
		payloads = append(payloads, payload)
	}
	return payloads, nil
}

func (f *fakeStore) SwapAlias(_ context.Context, alias, target string) error {
	f.aliases[alias] = target
	return nil
}

func (f *fakeStore) Close() error { return nil }

// fakeEmbedder produces fixed-size vectors and can fail on demand.
type fakeEmbedder struct {
	dim        int
	failOn     string
	inputs     []string
	queries    []string
	batchSizes []int
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	for _, t := range texts {
		if f.failOn != "" && strings.Contains(t, f.failOn) {
			return nil, errors.New("embedding backend unavailable")
		}
	}
	f.batchSizes = append(f.batchSizes, len(texts))
	f.inputs = append(f.inputs, texts...)
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, f.dim)
		vectors[i][0] = float32(len(texts[i]))
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	v := make([]float32, f.dim)
	v[0] = float32(len(text))
	return v, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }
func (f *fakeEmbedder) Close() error   { return nil }

func testChunk(id, header, content string) corpus.Chunk {
	return corpus.Chunk{
		ChunkID:       id,
		SectionHeader: header,
		Content:       content,
		Summary:       "summary of " + header,
		Metadata: corpus.Metadata{
			ChapterNum:  "1",
			SectionNum:  "1.2.3",
			Title:       "Phishing",
			ContentType: corpus.ContentTypeVideo,
			WordCount:   len(strings.Fields(content)),
		},
		TimestampRange: "00:00-02:15",
	}
}

func TestEmbeddingInput(t *testing.T) {
	got := EmbeddingInput("Header", "Summary", "Content body")
	assert.Equal(t, "Header\nSummary\nContent body", got)
}

func TestBuildIndexesAllChunks(t *testing.T) {
	store := newFakeStore()
	emb := &fakeEmbedder{dim: 4}
	b := NewBuilder(store, emb, nil, Config{})

	chunks := []corpus.Chunk{
		testChunk("1.2.3_chunk_1", "Phishing Basics", "Phishing is a social engineering attack."),
		testChunk("1.2.3_chunk_2", "Spear Phishing", "Spear phishing targets specific individuals."),
	}

	report, err := b.Build(context.Background(), "study_chunks", chunks, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)
	assert.Zero(t, report.Skipped)
	assert.Zero(t, report.Failed)

	coll := store.collections["study_chunks"]
	require.NotNil(t, coll)
	assert.Equal(t, 4, coll.vectorSize)
	assert.ElementsMatch(t, FilterableFields, coll.indexes)
	require.Len(t, coll.points, 2)

	p := coll.points["1.2.3_chunk_1"]
	assert.Equal(t, "Phishing is a social engineering attack.", p.Payload[FieldContent])
	assert.Equal(t, "summary of Phishing Basics", p.Payload[FieldSummary])
	assert.Equal(t, "1", p.Payload[FieldChapterNum])
	assert.Equal(t, "video", p.Payload[FieldContentType])
	assert.Equal(t, "00:00-02:15", p.Payload[FieldTimestampRange])

	// Embedding inputs are header, summary and content joined by newlines.
	require.Len(t, emb.inputs, 2)
	assert.Equal(t,
		"Phishing Basics\nsummary of Phishing Basics\nPhishing is a social engineering attack.",
		emb.inputs[0])
}

func TestBuildSummaryFallback(t *testing.T) {
	store := newFakeStore()
	emb := &fakeEmbedder{dim: 4}
	b := NewBuilder(store, emb, nil, Config{SummaryFallbackWords: 3})

	c := testChunk("1.2.3_chunk_1", "Header", "one two three four five")
	c.Summary = ""

	_, err := b.Build(context.Background(), "study_chunks", []corpus.Chunk{c}, false)
	require.NoError(t, err)

	p := store.collections["study_chunks"].points["1.2.3_chunk_1"]
	assert.Equal(t, "one two three", p.Payload[FieldSummary])
}

func TestBuildRejectsEmptyChunks(t *testing.T) {
	store := newFakeStore()
	b := NewBuilder(store, &fakeEmbedder{dim: 4}, nil, Config{})

	_, err := b.Build(context.Background(), "study_chunks", []corpus.Chunk{
		{ChunkID: "1.2.3_chunk_1", Content: "   "},
	}, false)
	require.ErrorIs(t, err, ErrEmptyChunk)
	assert.Empty(t, store.collections, "no store call before validation")
}

func TestBuildEmptyInput(t *testing.T) {
	b := NewBuilder(newFakeStore(), &fakeEmbedder{dim: 4}, nil, Config{})
	_, err := b.Build(context.Background(), "study_chunks", nil, false)
	require.ErrorIs(t, err, ErrNoChunks)
}

func TestBuildDimensionMismatch(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.CreateCollection(context.Background(), "study_chunks", 1536))

	b := NewBuilder(store, &fakeEmbedder{dim: 4}, nil, Config{})
	_, err := b.Build(context.Background(), "study_chunks",
		[]corpus.Chunk{testChunk("1.2.3_chunk_1", "H", "body")}, false)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestBuildRejectsConflictingDuplicates(t *testing.T) {
	b := NewBuilder(newFakeStore(), &fakeEmbedder{dim: 4}, nil, Config{})

	chunks := []corpus.Chunk{
		testChunk("1.2.3_chunk_1", "H", "first body"),
		testChunk("1.2.3_chunk_1", "H", "different body"),
	}
	_, err := b.Build(context.Background(), "study_chunks", chunks, false)
	require.ErrorIs(t, err, ErrChunkConflict)
}

func TestBuildDeduplicatesIdenticalChunks(t *testing.T) {
	store := newFakeStore()
	b := NewBuilder(store, &fakeEmbedder{dim: 4}, nil, Config{})

	chunks := []corpus.Chunk{
		testChunk("1.2.3_chunk_1", "H", "same body"),
		testChunk("1.2.3_chunk_1", "H", "same body"),
	}
	report, err := b.Build(context.Background(), "study_chunks", chunks, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
}

func TestBuildResumeSkipsIndexed(t *testing.T) {
	store := newFakeStore()
	emb := &fakeEmbedder{dim: 4}
	b := NewBuilder(store, emb, nil, Config{})

	first := []corpus.Chunk{testChunk("1.2.3_chunk_1", "H", "already indexed body")}
	_, err := b.Build(context.Background(), "study_chunks", first, false)
	require.NoError(t, err)

	both := []corpus.Chunk{
		testChunk("1.2.3_chunk_1", "H", "already indexed body"),
		testChunk("1.2.3_chunk_2", "H2", "new body"),
	}
	report, err := b.Build(context.Background(), "study_chunks", both, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Indexed)
	assert.Len(t, store.collections["study_chunks"].points, 2)
}

func TestBuildResumeConflictIsFatal(t *testing.T) {
	store := newFakeStore()
	b := NewBuilder(store, &fakeEmbedder{dim: 4}, nil, Config{})

	_, err := b.Build(context.Background(), "study_chunks",
		[]corpus.Chunk{testChunk("1.2.3_chunk_1", "H", "stored body")}, false)
	require.NoError(t, err)

	_, err = b.Build(context.Background(), "study_chunks",
		[]corpus.Chunk{testChunk("1.2.3_chunk_1", "H", "changed body")}, true)
	require.ErrorIs(t, err, ErrChunkConflict)
}

func TestBuildReportsFailedBatches(t *testing.T) {
	store := newFakeStore()
	emb := &fakeEmbedder{dim: 4, failOn: "poison"}
	b := NewBuilder(store, emb, nil, Config{EmbedBatchSize: 1, UploadBatchSize: 1})

	chunks := []corpus.Chunk{
		testChunk("1.2.3_chunk_1", "H", "good body"),
		testChunk("1.2.3_chunk_2", "H2", "poison body"),
		testChunk("1.2.3_chunk_3", "H3", "another good body"),
	}
	report, err := b.Build(context.Background(), "study_chunks", chunks, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"1.2.3_chunk_2"}, report.FailedIDs)
}

func TestBuildBatchSizesAreIndependent(t *testing.T) {
	store := newFakeStore()
	emb := &fakeEmbedder{dim: 4}
	b := NewBuilder(store, emb, nil, Config{EmbedBatchSize: 4, UploadBatchSize: 2})

	chunks := make([]corpus.Chunk, 8)
	for i := range chunks {
		chunks[i] = testChunk(
			fmt.Sprintf("1.2.3_chunk_%d", i+1), "H",
			fmt.Sprintf("body number %d", i+1))
	}

	report, err := b.Build(context.Background(), "study_chunks", chunks, false)
	require.NoError(t, err)
	assert.Equal(t, 8, report.Indexed)
	assert.Zero(t, report.Failed)

	assert.Equal(t, []int{4, 4}, emb.batchSizes)
	assert.Equal(t, []int{2, 2, 2, 2}, store.upsertSizes)
}

func TestBuildFailedUploadCountsUploadBatchOnly(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = errors.New("qdrant unavailable")
	emb := &fakeEmbedder{dim: 4}
	b := NewBuilder(store, emb, nil, Config{EmbedBatchSize: 4, UploadBatchSize: 2})

	chunks := []corpus.Chunk{
		testChunk("1.2.3_chunk_1", "H", "first body"),
		testChunk("1.2.3_chunk_2", "H", "second body"),
		testChunk("1.2.3_chunk_3", "H", "third body"),
	}
	report, err := b.Build(context.Background(), "study_chunks", chunks, false)
	require.NoError(t, err)
	assert.Zero(t, report.Indexed)
	assert.Equal(t, 3, report.Failed)
	assert.Equal(t,
		[]string{"1.2.3_chunk_1", "1.2.3_chunk_2", "1.2.3_chunk_3"},
		report.FailedIDs)

	// Embedding succeeded once for all three chunks; only uploads failed.
	assert.Equal(t, []int{3}, emb.batchSizes)
	assert.Equal(t, []int{2, 1}, store.upsertSizes)
}

func TestRebuildSwapsAliasAndDropsOldVersions(t *testing.T) {
	store := newFakeStore()
	// Simulate a previous rebuild.
	require.NoError(t, store.CreateCollection(context.Background(), "study_chunks_v100", 4))
	store.aliases["study_chunks"] = "study_chunks_v100"

	b := NewBuilder(store, &fakeEmbedder{dim: 4}, nil, Config{})
	report, err := b.Rebuild(context.Background(), "study_chunks",
		[]corpus.Chunk{testChunk("1.2.3_chunk_1", "H", "body")})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)

	target := store.aliases["study_chunks"]
	require.True(t, strings.HasPrefix(target, "study_chunks_v"))
	assert.NotEqual(t, "study_chunks_v100", target)

	_, oldExists := store.collections["study_chunks_v100"]
	assert.False(t, oldExists, "superseded collection should be dropped")
	_, newExists := store.collections[target]
	assert.True(t, newExists)
}

func TestRebuildDoesNotSwapOnFailure(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = fmt.Errorf("disk full")

	b := NewBuilder(store, &fakeEmbedder{dim: 4}, nil, Config{})
	_, err := b.Rebuild(context.Background(), "study_chunks",
		[]corpus.Chunk{testChunk("1.2.3_chunk_1", "H", "body")})
	require.Error(t, err)
	assert.Empty(t, store.aliases)
}

package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/examind/internal/index"
	"github.com/fyrsmithlabs/examind/internal/vectorstore"
)

// scriptedBackend doubles as embedding provider and vector store: each query
// text gets a distinct vector, and Search resolves that vector back to the
// scripted results for the query.
type scriptedBackend struct {
	mu      sync.Mutex
	ordinal map[string]int
	byOrd   []string
	results map[string][]vectorstore.ScoredPoint
}

func newScriptedBackend() *scriptedBackend {
	return &scriptedBackend{
		ordinal: make(map[string]int),
		results: make(map[string][]vectorstore.ScoredPoint),
	}
}

func (s *scriptedBackend) script(query string, points ...vectorstore.ScoredPoint) {
	s.results[query] = points
}

func (s *scriptedBackend) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ord, ok := s.ordinal[text]
	if !ok {
		ord = len(s.byOrd)
		s.ordinal[text] = ord
		s.byOrd = append(s.byOrd, text)
	}
	return []float32{float32(ord + 1)}, nil
}

func (s *scriptedBackend) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *scriptedBackend) Dimension() int { return 1 }
func (s *scriptedBackend) Close() error   { return nil }

func (s *scriptedBackend) Search(_ context.Context, _ string, vector []float32, topK int, filters map[string]string) ([]vectorstore.ScoredPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ord := int(vector[0]) - 1
	if ord < 0 || ord >= len(s.byOrd) {
		return nil, fmt.Errorf("unknown query vector")
	}
	if filters["chapter_num"] == "99" {
		return nil, nil
	}
	points := s.results[s.byOrd[ord]]
	if len(points) > topK {
		points = points[:topK]
	}
	return points, nil
}

func (s *scriptedBackend) CreateCollection(context.Context, string, int) error { return nil }
func (s *scriptedBackend) DeleteCollection(context.Context, string) error      { return nil }
func (s *scriptedBackend) CollectionExists(context.Context, string) (bool, error) {
	return true, nil
}
func (s *scriptedBackend) ListCollections(context.Context) ([]string, error) { return nil, nil }
func (s *scriptedBackend) GetCollectionInfo(context.Context, string) (*vectorstore.CollectionInfo, error) {
	return nil, nil
}
func (s *scriptedBackend) CreateKeywordIndexes(context.Context, string, ...string) error { return nil }
func (s *scriptedBackend) Upsert(context.Context, string, []vectorstore.Point) error     { return nil }
func (s *scriptedBackend) ScrollPayloads(context.Context, string, ...string) ([]map[string]interface{}, error) {
	return nil, nil
}
func (s *scriptedBackend) SwapAlias(context.Context, string, string) error { return nil }

func point(id string, score float32) vectorstore.ScoredPoint {
	return vectorstore.ScoredPoint{
		ID:    id,
		Score: score,
		Payload: map[string]interface{}{
			index.FieldSectionHeader: "Header " + id,
			index.FieldContent:       "Content " + id,
			index.FieldSummary:       "Summary " + id,
			index.FieldChapterNum:    "1",
		},
	}
}

func newTestEngine(backend *scriptedBackend, cfg Config) *Engine {
	return NewEngine(backend, backend, nil, cfg)
}

func TestRetrieveValidation(t *testing.T) {
	e := newTestEngine(newScriptedBackend(), Config{})

	_, err := e.Retrieve(context.Background(), "   ", 5, nil)
	require.ErrorIs(t, err, ErrEmptyQuery)

	_, err = e.Retrieve(context.Background(), "phishing", 0, nil)
	require.ErrorIs(t, err, ErrInvalidK)
}

func TestRetrieveOrdersByScoreThenChunkID(t *testing.T) {
	backend := newScriptedBackend()
	backend.script("phishing",
		point("2.1.1_chunk_2", 0.8),
		point("2.1.1_chunk_1", 0.8),
		point("1.2.3_chunk_1", 0.9),
	)

	e := newTestEngine(backend, Config{})
	got, err := e.Retrieve(context.Background(), "phishing", 5, nil)
	require.NoError(t, err)

	var ids []string
	for _, ev := range got {
		ids = append(ids, ev.ChunkID)
	}
	assert.Equal(t, []string{"1.2.3_chunk_1", "2.1.1_chunk_1", "2.1.1_chunk_2"}, ids)

	// Scores are non-increasing in list order.
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i].Score, got[i-1].Score)
	}
}

func TestRetrieveUnknownFilterReturnsEmpty(t *testing.T) {
	backend := newScriptedBackend()
	backend.script("phishing", point("1.2.3_chunk_1", 0.9))

	e := newTestEngine(backend, Config{})
	got, err := e.Retrieve(context.Background(), "phishing", 5, map[string]string{"chapter_num": "99"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieveForScenarioMergesWithMaxScore(t *testing.T) {
	backend := newScriptedBackend()
	backend.script("breach scenario which option",
		point("shared", 0.70),
		point("main_only", 0.60),
	)
	backend.script("incident response team",
		point("shared", 0.90), // higher than main-query score, must win
		point("a_only", 0.50),
	)
	backend.script("penetration testing",
		point("b_only", 0.65),
	)

	e := newTestEngine(backend, Config{})
	got, err := e.RetrieveForScenario(context.Background(),
		"breach scenario", "which option",
		map[string]string{
			"A": "incident response team",
			"B": "penetration testing",
		}, nil)
	require.NoError(t, err)

	byID := make(map[string]Evidence)
	seen := make(map[string]int)
	for _, ev := range got {
		byID[ev.ChunkID] = ev
		seen[ev.ChunkID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "duplicate chunk %s", id)
	}

	// Chunk present in main and option queries keeps its maximum score.
	assert.InDelta(t, 0.90, byID["shared"].Score, 1e-6)
	assert.Equal(t, "shared", got[0].ChunkID)

	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i].Score, got[i-1].Score)
	}
}

func TestRetrieveForScenarioTieBreaksByFirstSeenQuery(t *testing.T) {
	backend := newScriptedBackend()
	backend.script("scenario question", point("from_main", 0.80))
	backend.script("option a text", point("from_option", 0.80))

	e := newTestEngine(backend, Config{})
	got, err := e.RetrieveForScenario(context.Background(),
		"scenario", "question",
		map[string]string{"A": "option a text"}, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Equal scores: the main query runs first, so its chunk ranks first.
	assert.Equal(t, "from_main", got[0].ChunkID)
	assert.Equal(t, "from_option", got[1].ChunkID)
}

func TestRetrieveForScenarioCapsEvidence(t *testing.T) {
	backend := newScriptedBackend()

	var mainPoints []vectorstore.ScoredPoint
	for i := 0; i < 7; i++ {
		mainPoints = append(mainPoints, point(fmt.Sprintf("main_%d", i), 0.9-float32(i)*0.01))
	}
	backend.script("scenario question", mainPoints...)

	options := make(map[string]string)
	for _, label := range []string{"A", "B", "C", "D"} {
		text := "option " + label
		options[label] = text
		backend.script(text,
			point("opt_"+label+"_1", 0.7),
			point("opt_"+label+"_2", 0.6),
			point("opt_"+label+"_3", 0.5),
		)
	}

	e := newTestEngine(backend, Config{})
	got, err := e.RetrieveForScenario(context.Background(), "scenario", "question", options, nil)
	require.NoError(t, err)
	assert.Len(t, got, 12)
}

func TestRetrieveForScenarioDeterministic(t *testing.T) {
	backend := newScriptedBackend()
	backend.script("scenario question", point("m1", 0.8), point("m2", 0.8))
	backend.script("option a", point("a1", 0.8), point("m2", 0.75))
	backend.script("option b", point("b1", 0.8))

	e := newTestEngine(backend, Config{})
	opts := map[string]string{"A": "option a", "B": "option b"}

	first, err := e.RetrieveForScenario(context.Background(), "scenario", "question", opts, nil)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.RetrieveForScenario(context.Background(), "scenario", "question", opts, nil)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRetrieveForScenarioEmptyInputs(t *testing.T) {
	e := newTestEngine(newScriptedBackend(), Config{})
	_, err := e.RetrieveForScenario(context.Background(), "  ", "", nil, nil)
	require.ErrorIs(t, err, ErrEmptyQuery)
}

// reverseReranker reverses candidate order so tests can tell reranked output
// from vector order.
type reverseReranker struct {
	calls int
}

func (r *reverseReranker) Rerank(_ context.Context, _ string, evidence []Evidence, topK int) ([]Evidence, error) {
	r.calls++
	out := make([]Evidence, len(evidence))
	for i, ev := range evidence {
		out[len(evidence)-1-i] = ev
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func TestRetrieveWithReranking(t *testing.T) {
	backend := newScriptedBackend()
	backend.script("phishing",
		point("c1", 0.9),
		point("c2", 0.8),
		point("c3", 0.7),
		point("c4", 0.6),
	)

	e := newTestEngine(backend, Config{})
	r := &reverseReranker{}

	got, err := e.RetrieveWithReranking(context.Background(), "phishing", 2, 4, nil, r)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Reranker saw all four candidates and reversed them.
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, "c4", got[0].ChunkID)
	assert.Equal(t, "c3", got[1].ChunkID)
}

func TestRetrieveWithRerankingSkipsSmallCandidateSets(t *testing.T) {
	backend := newScriptedBackend()
	backend.script("phishing", point("c1", 0.9), point("c2", 0.8))

	e := newTestEngine(backend, Config{})
	r := &reverseReranker{}

	got, err := e.RetrieveWithReranking(context.Background(), "phishing", 5, 10, nil, r)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 0, r.calls, "no reranking needed when candidates fit in k")
	assert.Equal(t, "c1", got[0].ChunkID)
}

func TestRetrieveWithRerankingNilReranker(t *testing.T) {
	backend := newScriptedBackend()
	backend.script("phishing", point("c1", 0.9), point("c2", 0.8), point("c3", 0.7))

	e := newTestEngine(backend, Config{})
	got, err := e.RetrieveWithReranking(context.Background(), "phishing", 2, 3, nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ChunkID)
}

func TestAssembleContext(t *testing.T) {
	evidence := []Evidence{
		{
			SectionHeader: "Phishing Attacks",
			Content:       "Phishing is a social engineering attack.",
			Summary:       "Fraudulent communications steal credentials.",
		},
		{
			SectionHeader: "Types of Phishing",
			Content:       "Spear phishing targets specific individuals.",
			Summary:       "Targeted phishing variants.",
		},
	}

	got := AssembleContext(evidence)

	want := "\n<document>\nPhishing Attacks\n\nText:\nPhishing is a social engineering attack.\n\nSummary:\nFraudulent communications steal credentials.\n</document>\n" +
		"\n<document>\nTypes of Phishing\n\nText:\nSpear phishing targets specific individuals.\n\nSummary:\nTargeted phishing variants.\n</document>\n"
	assert.Equal(t, want, got)

	assert.Equal(t, 2, strings.Count(got, "<document>"))
	assert.Empty(t, AssembleContext(nil))
}

// Package retrieval executes semantic search against the chunk index and
// assembles bounded evidence contexts.
//
// Scenario questions use multi-query retrieval: one query for the scenario
// plus question, one per candidate option. Option phrasing competes for
// semantic weight with the longer scenario text in a combined query, so
// per-option queries guarantee every option dedicated supporting evidence
// before ranking.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/examind/internal/embeddings"
	"github.com/fyrsmithlabs/examind/internal/index"
	"github.com/fyrsmithlabs/examind/internal/logging"
	"github.com/fyrsmithlabs/examind/internal/vectorstore"
)

// Sentinel errors for retrieval operations.
var (
	// ErrEmptyQuery is returned before any provider call when the query is
	// empty or whitespace.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidK indicates a non-positive result count.
	ErrInvalidK = errors.New("result count must be positive")
)

// Evidence is one ranked retrieval result. Score is the raw similarity
// returned by the vector store, unmodified by the engine.
type Evidence struct {
	ChunkID        string  `json:"chunk_id"`
	Score          float32 `json:"score"`
	SectionHeader  string  `json:"section_header"`
	Content        string  `json:"content"`
	Summary        string  `json:"summary"`
	ChapterNum     string  `json:"chapter_num"`
	SectionNum     string  `json:"section_num"`
	Title          string  `json:"title"`
	ContentType    string  `json:"content_type"`
	TimestampRange string  `json:"timestamp_range,omitempty"`
}

// Config holds retrieval tuning knobs.
type Config struct {
	// Collection is the read alias queried by the engine.
	Collection string `koanf:"collection"`

	// KMain is the result count for the combined scenario+question query.
	// Default: 7
	KMain int `koanf:"k_main"`

	// KOption is the result count for each per-option query. Default: 3
	KOption int `koanf:"k_option"`

	// MaxEvidence caps the merged scenario evidence list, bounding the
	// reasoning context independent of option count. Default: 12
	MaxEvidence int `koanf:"max_evidence"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "study_chunks"
	}
	if c.KMain == 0 {
		c.KMain = 7
	}
	if c.KOption == 0 {
		c.KOption = 3
	}
	if c.MaxEvidence == 0 {
		c.MaxEvidence = 12
	}
}

// Engine runs retrieval against an injected store and embedding provider.
type Engine struct {
	store    vectorstore.Store
	embedder embeddings.Provider
	log      *logging.Logger
	config   Config
}

// NewEngine creates a retrieval engine. A nil logger disables logging.
func NewEngine(store vectorstore.Store, embedder embeddings.Provider, log *logging.Logger, config Config) *Engine {
	config.ApplyDefaults()
	if log == nil {
		log = logging.NewNop()
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		log:      log.Named("retrieval"),
		config:   config,
	}
}

// Retrieve runs a single-query search and returns up to k evidence items
// ordered by descending score, ties broken by chunk ID ascending.
//
// A filter value absent from the corpus yields an empty list, not an error.
func (e *Engine) Retrieve(ctx context.Context, query string, k int, filters map[string]string) ([]Evidence, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}

	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	points, err := e.store.Search(ctx, e.config.Collection, vector, k, filters)
	if err != nil {
		return nil, fmt.Errorf("searching collection: %w", err)
	}

	evidence := make([]Evidence, len(points))
	for i, p := range points {
		evidence[i] = evidenceFromPoint(p)
	}
	sortEvidence(evidence)

	e.log.Debug(ctx, "retrieved evidence",
		zap.String("query", query),
		zap.Int("k", k),
		zap.Int("results", len(evidence)))
	return evidence, nil
}

// RetrieveForScenario runs the multi-query expansion for a scenario
// question: one combined scenario+question query followed by one query per
// option, iterated in label order.
//
// Results are merged by chunk ID keeping the maximum observed score, sorted
// by score descending with ties broken by first-seen query order then chunk
// ID, and capped at MaxEvidence. Re-running against an unchanged index is
// deterministic.
func (e *Engine) RetrieveForScenario(ctx context.Context, scenario, question string, options map[string]string, filters map[string]string) ([]Evidence, error) {
	main := strings.TrimSpace(scenario + " " + question)
	if main == "" {
		return nil, ErrEmptyQuery
	}

	queries := []scenarioQuery{{text: main, k: e.config.KMain}}
	for _, label := range sortedLabels(options) {
		text := strings.TrimSpace(options[label])
		if text == "" {
			continue
		}
		queries = append(queries, scenarioQuery{text: text, k: e.config.KOption})
	}

	// Option queries have no ordering dependency between themselves; only
	// the merge is order-sensitive, and it runs over the indexed results.
	results := make([][]Evidence, len(queries))
	errs := make([]error, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q scenarioQuery) {
			defer wg.Done()
			results[i], errs[i] = e.Retrieve(ctx, q.text, q.k, filters)
		}(i, q)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	merged := mergeEvidence(results)
	if len(merged) > e.config.MaxEvidence {
		merged = merged[:e.config.MaxEvidence]
	}

	e.log.Debug(ctx, "scenario retrieval complete",
		zap.Int("queries", len(queries)),
		zap.Int("evidence", len(merged)))
	return merged, nil
}

type scenarioQuery struct {
	text string
	k    int
}

// Reranker reorders evidence by relevance to a query, returning at most topK
// items. Implementations never mutate the evidence scores.
type Reranker interface {
	Rerank(ctx context.Context, query string, evidence []Evidence, topK int) ([]Evidence, error)
}

// RetrieveWithReranking runs two-stage retrieval: fetch initialK candidates
// by vector similarity, then let the reranker pick the top k. An initialK at
// or below k degenerates to plain retrieval.
func (e *Engine) RetrieveWithReranking(ctx context.Context, query string, k, initialK int, filters map[string]string, r Reranker) ([]Evidence, error) {
	if initialK < k {
		initialK = k
	}

	candidates, err := e.Retrieve(ctx, query, initialK, filters)
	if err != nil {
		return nil, err
	}
	if r == nil || len(candidates) <= k {
		if len(candidates) > k {
			candidates = candidates[:k]
		}
		return candidates, nil
	}

	reranked, err := r.Rerank(ctx, query, candidates, k)
	if err != nil {
		return nil, fmt.Errorf("reranking evidence: %w", err)
	}

	e.log.Debug(ctx, "reranked evidence",
		zap.Int("candidates", len(candidates)),
		zap.Int("kept", len(reranked)))
	return reranked, nil
}

// mergeEvidence deduplicates per-query result lists by chunk ID, keeping the
// maximum score. A chunk relevant to both the scenario and an option is
// genuinely more relevant and must rank accordingly.
func mergeEvidence(results [][]Evidence) []Evidence {
	type ranked struct {
		evidence  Evidence
		firstSeen int
	}

	byID := make(map[string]*ranked)
	var order []*ranked
	for queryOrd, list := range results {
		for _, ev := range list {
			existing, ok := byID[ev.ChunkID]
			if !ok {
				r := &ranked{evidence: ev, firstSeen: queryOrd}
				byID[ev.ChunkID] = r
				order = append(order, r)
				continue
			}
			if ev.Score > existing.evidence.Score {
				existing.evidence.Score = ev.Score
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.evidence.Score != b.evidence.Score {
			return a.evidence.Score > b.evidence.Score
		}
		if a.firstSeen != b.firstSeen {
			return a.firstSeen < b.firstSeen
		}
		return a.evidence.ChunkID < b.evidence.ChunkID
	})

	merged := make([]Evidence, len(order))
	for i, r := range order {
		merged[i] = r.evidence
	}
	return merged
}

// sortEvidence orders by score descending, chunk ID ascending on ties.
func sortEvidence(evidence []Evidence) {
	sort.SliceStable(evidence, func(i, j int) bool {
		if evidence[i].Score != evidence[j].Score {
			return evidence[i].Score > evidence[j].Score
		}
		return evidence[i].ChunkID < evidence[j].ChunkID
	})
}

// sortedLabels returns option labels in ascending order.
func sortedLabels(options map[string]string) []string {
	labels := make([]string, 0, len(options))
	for label := range options {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// AssembleContext renders evidence into self-contained document blocks in
// ranked order. Items are never clipped; context size is bounded by the
// evidence cap, not by truncating text.
func AssembleContext(evidence []Evidence) string {
	var sb strings.Builder
	for _, ev := range evidence {
		sb.WriteString("\n<document>\n")
		sb.WriteString(ev.SectionHeader)
		sb.WriteString("\n\nText:\n")
		sb.WriteString(ev.Content)
		sb.WriteString("\n\nSummary:\n")
		sb.WriteString(ev.Summary)
		sb.WriteString("\n</document>\n")
	}
	return sb.String()
}

// evidenceFromPoint maps a stored payload onto an Evidence item.
func evidenceFromPoint(p vectorstore.ScoredPoint) Evidence {
	return Evidence{
		ChunkID:        p.ID,
		Score:          p.Score,
		SectionHeader:  payloadString(p.Payload, index.FieldSectionHeader),
		Content:        payloadString(p.Payload, index.FieldContent),
		Summary:        payloadString(p.Payload, index.FieldSummary),
		ChapterNum:     payloadString(p.Payload, index.FieldChapterNum),
		SectionNum:     payloadString(p.Payload, index.FieldSectionNum),
		Title:          payloadString(p.Payload, index.FieldTitle),
		ContentType:    payloadString(p.Payload, index.FieldContentType),
		TimestampRange: payloadString(p.Payload, index.FieldTimestampRange),
	}
}

func payloadString(payload map[string]interface{}, key string) string {
	s, _ := payload[key].(string)
	return s
}

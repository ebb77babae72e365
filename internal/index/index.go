// Package index builds the summary-augmented vector index from normalized
// corpus chunks.
//
// Each chunk is embedded over a composed input (section header, summary,
// content) while the stored payload keeps the fields separate, so retrieval
// can render content and summary independently of what was embedded.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/examind/internal/corpus"
	"github.com/fyrsmithlabs/examind/internal/embeddings"
	"github.com/fyrsmithlabs/examind/internal/logging"
	"github.com/fyrsmithlabs/examind/internal/vectorstore"
)

// Sentinel errors for index builds.
var (
	// ErrNoChunks indicates an empty build input.
	ErrNoChunks = errors.New("no chunks to index")

	// ErrDimensionMismatch is returned when the embedding dimension does not
	// match the existing collection's vector size. Continuing would corrupt
	// search results, so the build aborts.
	ErrDimensionMismatch = errors.New("embedding dimension does not match collection")

	// ErrChunkConflict is returned when the same chunk ID carries different
	// content, either within one build input or against the stored index.
	ErrChunkConflict = errors.New("conflicting content for chunk ID")

	// ErrEmptyChunk indicates a chunk with a missing ID or blank content.
	// Rejected before any embedding or store call.
	ErrEmptyChunk = errors.New("chunk has empty ID or content")
)

// Payload field names stored with every point. ChapterNum, SectionNum and
// ContentType are registered as keyword indexes for filtered retrieval.
const (
	FieldChunkID        = "chunk_id"
	FieldContent        = "content"
	FieldSummary        = "summary"
	FieldSectionHeader  = "section_header"
	FieldChapterNum     = "chapter_num"
	FieldSectionNum     = "section_num"
	FieldTitle          = "title"
	FieldContentType    = "content_type"
	FieldWordCount      = "word_count"
	FieldTimestampRange = "timestamp_range"
)

// FilterableFields lists the payload fields registered as keyword indexes.
var FilterableFields = []string{FieldChapterNum, FieldSectionNum, FieldContentType}

// Config holds tuning knobs for index builds.
type Config struct {
	// EmbedBatchSize is the number of chunks embedded per API call.
	// Default: 64
	EmbedBatchSize int `koanf:"embed_batch_size"`

	// UploadBatchSize is the number of points upserted per store call.
	// Default: 128
	UploadBatchSize int `koanf:"upload_batch_size"`

	// SummaryFallbackWords caps the truncated-content summary used when a
	// chunk arrives without one. Default: 50
	SummaryFallbackWords int `koanf:"summary_fallback_words"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.EmbedBatchSize == 0 {
		c.EmbedBatchSize = 64
	}
	if c.UploadBatchSize == 0 {
		c.UploadBatchSize = 128
	}
	if c.SummaryFallbackWords == 0 {
		c.SummaryFallbackWords = 50
	}
}

// BuildReport summarizes the outcome of a build. Failed batches do not abort
// the build; their chunk IDs are reported so a resumed run can retry them.
type BuildReport struct {
	Collection string   `json:"collection"`
	Indexed    int      `json:"indexed"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	FailedIDs  []string `json:"failed_ids,omitempty"`
}

// EmbeddingInput composes the text that gets embedded for a chunk: section
// header, summary and content joined by single newlines. The composition is
// part of the index contract; changing it invalidates stored vectors.
func EmbeddingInput(header, summary, content string) string {
	return header + "\n" + summary + "\n" + content
}

// Builder drives index construction against a vector store.
type Builder struct {
	store    vectorstore.Store
	embedder embeddings.Provider
	log      *logging.Logger
	config   Config
}

// NewBuilder creates a Builder. A nil logger disables logging.
func NewBuilder(store vectorstore.Store, embedder embeddings.Provider, log *logging.Logger, config Config) *Builder {
	config.ApplyDefaults()
	if log == nil {
		log = logging.NewNop()
	}
	return &Builder{
		store:    store,
		embedder: embedder,
		log:      log.Named("index"),
		config:   config,
	}
}

// Build indexes chunks into the named collection, creating it if needed.
//
// With resume enabled, chunks already present in the collection are skipped
// by chunk ID; a stored chunk whose content differs from the input is a
// fatal conflict. Duplicate IDs within the input are deduplicated when their
// content matches and rejected otherwise.
func (b *Builder) Build(ctx context.Context, collection string, chunks []corpus.Chunk, resume bool) (*BuildReport, error) {
	ctx = logging.ContextWithCollection(ctx, collection)

	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	chunks, err := dedupeChunks(chunks)
	if err != nil {
		return nil, err
	}

	if err := b.ensureCollection(ctx, collection); err != nil {
		return nil, err
	}

	report := &BuildReport{Collection: collection}

	if resume {
		chunks, err = b.filterIndexed(ctx, collection, chunks, report)
		if err != nil {
			return nil, err
		}
		if len(chunks) == 0 {
			b.log.Info(ctx, "all chunks already indexed", zap.Int("skipped", report.Skipped))
			return report, nil
		}
	}

	// Embed and upload batch sizes are independent: chunks are embedded in
	// EmbedBatchSize requests, and the resulting points are upserted in
	// UploadBatchSize slices. Failures are accounted at the granularity of
	// the call that failed.
	for start := 0; start < len(chunks); start += b.config.EmbedBatchSize {
		end := start + b.config.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		points, err := b.embedBatch(ctx, batch)
		if err != nil {
			report.Failed += len(batch)
			for _, c := range batch {
				report.FailedIDs = append(report.FailedIDs, c.ChunkID)
			}
			b.log.Error(ctx, "embed batch failed",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			continue
		}

		for us := 0; us < len(points); us += b.config.UploadBatchSize {
			ue := us + b.config.UploadBatchSize
			if ue > len(points) {
				ue = len(points)
			}

			if err := b.store.Upsert(ctx, collection, points[us:ue]); err != nil {
				report.Failed += ue - us
				for _, c := range batch[us:ue] {
					report.FailedIDs = append(report.FailedIDs, c.ChunkID)
				}
				b.log.Error(ctx, "upload batch failed",
					zap.Int("batch_start", start+us),
					zap.Int("batch_size", ue-us),
					zap.Error(err))
				continue
			}
			report.Indexed += ue - us
		}
	}

	b.log.Info(ctx, "build complete",
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

// Rebuild builds a fresh versioned collection and atomically swaps the read
// alias onto it. Readers keep hitting the old collection until the swap;
// superseded versions are dropped afterward.
func (b *Builder) Rebuild(ctx context.Context, alias string, chunks []corpus.Chunk) (*BuildReport, error) {
	versioned := fmt.Sprintf("%s_v%d", alias, time.Now().Unix())

	report, err := b.Build(ctx, versioned, chunks, false)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", versioned, err)
	}
	if report.Failed > 0 {
		// Do not swap readers onto a partial index.
		return report, fmt.Errorf("rebuild of %s left %d chunks unindexed", versioned, report.Failed)
	}

	if err := b.store.SwapAlias(ctx, alias, versioned); err != nil {
		return report, fmt.Errorf("swapping alias: %w", err)
	}
	b.log.Info(ctx, "alias swapped",
		zap.String("alias", alias),
		zap.String("target", versioned))

	if err := b.dropSuperseded(ctx, alias, versioned); err != nil {
		// Old versions only waste space; the swap already succeeded.
		b.log.Warn(ctx, "dropping superseded collections failed", zap.Error(err))
	}

	return report, nil
}

// ensureCollection creates the collection and its keyword indexes when
// missing, and verifies the vector size when present.
func (b *Builder) ensureCollection(ctx context.Context, collection string) error {
	exists, err := b.store.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("checking collection: %w", err)
	}

	dim := b.embedder.Dimension()
	if !exists {
		if err := b.store.CreateCollection(ctx, collection, dim); err != nil {
			return fmt.Errorf("creating collection: %w", err)
		}
		if err := b.store.CreateKeywordIndexes(ctx, collection, FilterableFields...); err != nil {
			return fmt.Errorf("creating keyword indexes: %w", err)
		}
		b.log.Info(ctx, "collection created", zap.Int("vector_size", dim))
		return nil
	}

	info, err := b.store.GetCollectionInfo(ctx, collection)
	if err != nil {
		return fmt.Errorf("reading collection info: %w", err)
	}
	if info.VectorSize != 0 && info.VectorSize != dim {
		return fmt.Errorf("%w: collection has %d, embedder produces %d",
			ErrDimensionMismatch, info.VectorSize, dim)
	}
	return nil
}

// filterIndexed drops chunks already stored in the collection, comparing
// content for any chunk ID that matches.
func (b *Builder) filterIndexed(ctx context.Context, collection string, chunks []corpus.Chunk, report *BuildReport) ([]corpus.Chunk, error) {
	payloads, err := b.store.ScrollPayloads(ctx, collection, FieldChunkID, FieldContent)
	if err != nil {
		return nil, fmt.Errorf("listing indexed chunks: %w", err)
	}

	stored := make(map[string]string, len(payloads))
	for _, p := range payloads {
		id, _ := p[FieldChunkID].(string)
		content, _ := p[FieldContent].(string)
		if id != "" {
			stored[id] = content
		}
	}

	remaining := chunks[:0]
	for _, c := range chunks {
		content, ok := stored[c.ChunkID]
		if !ok {
			remaining = append(remaining, c)
			continue
		}
		if content != c.Content {
			return nil, fmt.Errorf("%w: %s differs from stored copy", ErrChunkConflict, c.ChunkID)
		}
		report.Skipped++
	}
	return remaining, nil
}

// embedBatch embeds one batch of chunks and returns the points to upsert.
func (b *Builder) embedBatch(ctx context.Context, batch []corpus.Chunk) ([]vectorstore.Point, error) {
	texts := make([]string, len(batch))
	summaries := make([]string, len(batch))
	for i, c := range batch {
		summaries[i] = b.summaryFor(c)
		texts[i] = EmbeddingInput(c.SectionHeader, summaries[i], c.Content)
	}

	vectors, err := b.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vectors), len(batch))
	}

	points := make([]vectorstore.Point, len(batch))
	for i, c := range batch {
		points[i] = vectorstore.Point{
			ID:      c.ChunkID,
			Vector:  vectors[i],
			Payload: chunkPayload(c, summaries[i]),
		}
	}
	return points, nil
}

// summaryFor returns the chunk's summary, falling back to truncated content
// when no summary was attached.
func (b *Builder) summaryFor(c corpus.Chunk) string {
	if c.Summary != "" {
		return c.Summary
	}
	words := strings.Fields(c.Content)
	if len(words) > b.config.SummaryFallbackWords {
		words = words[:b.config.SummaryFallbackWords]
	}
	return strings.Join(words, " ")
}

// dropSuperseded deletes older versioned collections left behind by
// previous rebuilds of the same alias.
func (b *Builder) dropSuperseded(ctx context.Context, alias, current string) error {
	names, err := b.store.ListCollections(ctx)
	if err != nil {
		return err
	}
	prefix := alias + "_v"
	for _, name := range names {
		if name == current || !strings.HasPrefix(name, prefix) {
			continue
		}
		if err := b.store.DeleteCollection(ctx, name); err != nil {
			return err
		}
		b.log.Info(ctx, "dropped superseded collection", zap.String("name", name))
	}
	return nil
}

// chunkPayload builds the stored payload for a chunk. The chunk ID itself is
// attached by the store.
func chunkPayload(c corpus.Chunk, summary string) map[string]interface{} {
	return map[string]interface{}{
		FieldContent:        c.Content,
		FieldSummary:        summary,
		FieldSectionHeader:  c.SectionHeader,
		FieldChapterNum:     c.Metadata.ChapterNum,
		FieldSectionNum:     c.Metadata.SectionNum,
		FieldTitle:          c.Metadata.Title,
		FieldContentType:    string(c.Metadata.ContentType),
		FieldWordCount:      int64(c.Metadata.WordCount),
		FieldTimestampRange: c.TimestampRange,
	}
}

// dedupeChunks validates chunks, removes exact duplicates and rejects
// conflicting ones.
func dedupeChunks(chunks []corpus.Chunk) ([]corpus.Chunk, error) {
	seen := make(map[string]string, len(chunks))
	out := make([]corpus.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.ChunkID == "" || strings.TrimSpace(c.Content) == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptyChunk, c.ChunkID)
		}
		if content, ok := seen[c.ChunkID]; ok {
			if content != c.Content {
				return nil, fmt.Errorf("%w: %s appears twice with different content", ErrChunkConflict, c.ChunkID)
			}
			continue
		}
		seen[c.ChunkID] = c.Content
		out = append(out, c)
	}
	return out, nil
}

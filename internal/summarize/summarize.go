// Package summarize attaches retrieval-oriented summaries to corpus chunks
// before indexing.
//
// The LLM summarizer produces the summaries that get embedded; the
// extractive summarizer is the no-provider fallback so index builds never
// block on a summarization backend.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/examind/internal/corpus"
	"github.com/fyrsmithlabs/examind/internal/llm"
	"github.com/fyrsmithlabs/examind/internal/logging"
)

// Summarizer produces a short retrieval-oriented summary for one chunk.
type Summarizer interface {
	Summarize(ctx context.Context, chunk corpus.Chunk) (string, error)
}

// Stats accumulates counts across a summarization run.
type Stats struct {
	Summarized int
	FellBack   int
}

// LLMSummarizer generates summaries with a completion model.
type LLMSummarizer struct {
	client llm.Client

	// CorpusContext is a one-paragraph description of the knowledge base,
	// included in every prompt to anchor terminology.
	CorpusContext string
}

// NewLLMSummarizer creates an LLMSummarizer.
func NewLLMSummarizer(client llm.Client, corpusContext string) *LLMSummarizer {
	return &LLMSummarizer{
		client:        client,
		CorpusContext: corpusContext,
	}
}

// Summarize asks the model for a 2-3 sentence summary of the chunk content.
// Very short chunks are returned as-is; a summary of them would not be
// shorter.
func (s *LLMSummarizer) Summarize(ctx context.Context, chunk corpus.Chunk) (string, error) {
	if chunk.WordCount() < 30 {
		return chunk.Content, nil
	}

	prompt := fmt.Sprintf(`You are tasked with creating a concise summary of training content.

Knowledge base context:
%s

Document context:
- Chapter %s: %s
- Content type: %s
- Section: %s

Content to summarize:
%s

Create a 2-3 sentence summary that:
1. Captures the key concepts and definitions
2. Is optimized for semantic search and retrieval
3. Is precise and direct - every word counts

Provide ONLY the summary. No preamble or explanations.`,
		s.CorpusContext,
		chunk.Metadata.ChapterNum, chunk.Metadata.Title,
		chunk.Metadata.ContentType, chunk.SectionHeader,
		chunk.Content)

	summary, err := s.client.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("summarizing chunk %s: %w", chunk.ChunkID, err)
	}
	return strings.TrimSpace(summary), nil
}

var _ Summarizer = (*LLMSummarizer)(nil)

// Attacher fills in chunk summaries, falling back to extractive summaries
// when the primary summarizer fails. Chunks that already carry a summary are
// left untouched.
type Attacher struct {
	primary  Summarizer
	fallback Summarizer
	log      *logging.Logger
	stats    Stats
}

// NewAttacher creates an Attacher. A nil primary uses the extractive
// summarizer for everything; a nil logger disables logging.
func NewAttacher(primary Summarizer, log *logging.Logger) *Attacher {
	fallback := NewExtractiveSummarizer()
	if primary == nil {
		primary = fallback
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Attacher{
		primary:  primary,
		fallback: fallback,
		log:      log.Named("summarize"),
	}
}

// Attach returns a copy of chunks with summaries populated.
func (a *Attacher) Attach(ctx context.Context, chunks []corpus.Chunk) ([]corpus.Chunk, error) {
	out := make([]corpus.Chunk, len(chunks))
	for i, chunk := range chunks {
		out[i] = chunk
		if chunk.Summary != "" {
			continue
		}

		summary, err := a.primary.Summarize(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.log.Warn(ctx, "primary summarizer failed, using extractive fallback",
				zap.String("chunk_id", chunk.ChunkID),
				zap.Error(err))
			summary, err = a.fallback.Summarize(ctx, chunk)
			if err != nil {
				return nil, fmt.Errorf("fallback summarization for %s: %w", chunk.ChunkID, err)
			}
			a.stats.FellBack++
		}
		out[i].Summary = summary
		a.stats.Summarized++
	}
	return out, nil
}

// Stats returns counts accumulated since construction.
func (a *Attacher) Stats() Stats {
	return a.stats
}

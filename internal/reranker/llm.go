package reranker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/examind/internal/llm"
	"github.com/fyrsmithlabs/examind/internal/logging"
	"github.com/fyrsmithlabs/examind/internal/retrieval"
)

// LLMReranker asks a language model to pick the most relevant evidence items
// by index. Only section headers and summaries are sent, keeping the prompt
// small regardless of chunk sizes.
//
// Reranking is best-effort: a provider failure or an unparseable selection
// falls back to the vector-score ordering rather than failing the request.
type LLMReranker struct {
	client llm.Client
	log    *logging.Logger
}

// NewLLMReranker creates an LLMReranker. A nil logger disables logging.
func NewLLMReranker(client llm.Client, log *logging.Logger) *LLMReranker {
	if log == nil {
		log = logging.NewNop()
	}
	return &LLMReranker{
		client: client,
		log:    log.Named("reranker"),
	}
}

// Rerank returns the topK evidence items the model judged most relevant, in
// the model's relevance order. Indices outside the list and duplicates are
// ignored; if fewer than topK valid indices come back, the remainder is
// filled from the original ordering.
func (r *LLMReranker) Rerank(ctx context.Context, query string, evidence []retrieval.Evidence, topK int) ([]retrieval.Evidence, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if topK <= 0 {
		topK = len(evidence)
	}
	if len(evidence) == 0 {
		return []retrieval.Evidence{}, nil
	}
	if len(evidence) <= topK {
		out := make([]retrieval.Evidence, len(evidence))
		copy(out, evidence)
		return out, nil
	}

	prompt := rerankPrompt(query, evidence, topK)

	response, err := r.client.Complete(ctx, prompt)
	if err != nil {
		r.log.Warn(ctx, "rerank completion failed, keeping vector order", zap.Error(err))
		return evidence[:topK], nil
	}

	indices := parseIndices(response, len(evidence))
	if len(indices) == 0 {
		r.log.Warn(ctx, "rerank selection unparseable, keeping vector order",
			zap.String("response", response))
		return evidence[:topK], nil
	}

	picked := make(map[int]bool, topK)
	out := make([]retrieval.Evidence, 0, topK)
	for _, idx := range indices {
		if len(out) == topK {
			break
		}
		if picked[idx] {
			continue
		}
		picked[idx] = true
		out = append(out, evidence[idx])
	}

	// Fill from the original order when the model returned too few indices.
	for idx := 0; len(out) < topK && idx < len(evidence); idx++ {
		if !picked[idx] {
			picked[idx] = true
			out = append(out, evidence[idx])
		}
	}
	return out, nil
}

// Close is a no-op; the underlying client is owned by the caller.
func (r *LLMReranker) Close() error {
	return nil
}

// rerankPrompt builds the listwise selection prompt.
func rerankPrompt(query string, evidence []retrieval.Evidence, topK int) string {
	var summaries []string
	for i, ev := range evidence {
		summaries = append(summaries, fmt.Sprintf("[%d] Section: %s\nSummary: %s", i, ev.SectionHeader, ev.Summary))
	}

	return fmt.Sprintf(`Query: %s

You are given %d documents, each with an index number [0-%d] in square brackets.

Your task: Select the %d MOST relevant documents that would best help answer the query.

Consider:
- Direct relevance to the query topic
- Information completeness
- Accuracy and specificity
- Complementary information (avoid redundancy)

<documents>
%s
</documents>

Output ONLY the indices of the %d most relevant documents, in order of relevance (most relevant first).
Format: comma-separated numbers, no spaces, inside XML tags.

<relevant_indices>`,
		query, len(evidence), len(evidence)-1, topK,
		strings.Join(summaries, "\n\n"), topK)
}

// parseIndices extracts in-range indices from the model's selection text.
// Tags and malformed entries are tolerated.
func parseIndices(response string, n int) []int {
	response = strings.TrimSpace(response)
	if start := strings.Index(response, "<relevant_indices>"); start >= 0 {
		response = response[start+len("<relevant_indices>"):]
	}
	if end := strings.Index(response, "</relevant_indices>"); end >= 0 {
		response = response[:end]
	}

	var indices []int
	for _, part := range strings.Split(response, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if idx >= 0 && idx < n {
			indices = append(indices, idx)
		}
	}
	return indices
}

var _ Reranker = (*LLMReranker)(nil)

package reranker

import (
	"context"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/examind/internal/retrieval"
)

// OverlapReranker reorders evidence by combining the vector similarity score
// with lexical term overlap between the query and chunk content. It needs no
// external calls, so it serves as the default and as the fallback when the
// LLM reranker is unavailable.
type OverlapReranker struct{}

// NewOverlapReranker creates a new OverlapReranker.
func NewOverlapReranker() *OverlapReranker {
	return &OverlapReranker{}
}

// Rerank scores each evidence item as 50% original score plus 50% query term
// overlap, sorts descending and returns the top K. Ties keep the incoming
// order, which is already deterministic.
func (r *OverlapReranker) Rerank(ctx context.Context, query string, evidence []retrieval.Evidence, topK int) ([]retrieval.Evidence, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if topK <= 0 {
		topK = len(evidence)
	}
	if len(evidence) == 0 {
		return []retrieval.Evidence{}, nil
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		// Nothing to compare against, keep the vector ranking.
		if topK > len(evidence) {
			topK = len(evidence)
		}
		out := make([]retrieval.Evidence, topK)
		copy(out, evidence)
		return out, nil
	}

	type scored struct {
		evidence retrieval.Evidence
		combined float32
	}

	scoredList := make([]scored, len(evidence))
	for i, ev := range evidence {
		overlap := termOverlap(queryTokens, tokenize(ev.Content))
		scoredList[i] = scored{
			evidence: ev,
			combined: 0.5*ev.Score + 0.5*overlap,
		}
	}

	sort.SliceStable(scoredList, func(i, j int) bool {
		return scoredList[i].combined > scoredList[j].combined
	})

	if topK > len(scoredList) {
		topK = len(scoredList)
	}
	out := make([]retrieval.Evidence, topK)
	for i := 0; i < topK; i++ {
		out[i] = scoredList[i].evidence
	}
	return out, nil
}

// Close is a no-op; the reranker holds no resources.
func (r *OverlapReranker) Close() error {
	return nil
}

// tokenize splits text into lowercase terms, filtering out stopwords and
// tokens shorter than three characters.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !isAlphanumeric(r)
	})

	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !isStopword(token) && len(token) > 2 {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

func isStopword(token string) bool {
	return stopwords[token]
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true, "this": true,
	"that": true, "these": true, "those": true, "i": true, "you": true, "he": true,
	"she": true, "it": true, "we": true, "they": true, "what": true, "which": true,
	"who": true, "when": true, "where": true, "why": true, "how": true,
}

// termOverlap returns the fraction of unique query tokens present in the
// document tokens, between 0.0 and 1.0.
func termOverlap(queryTokens, docTokens []string) float32 {
	if len(queryTokens) == 0 {
		return 0.0
	}

	docTokenSet := make(map[string]bool, len(docTokens))
	for _, token := range docTokens {
		docTokenSet[token] = true
	}

	matchCount := 0
	counted := make(map[string]bool, len(queryTokens))
	for _, queryToken := range queryTokens {
		if docTokenSet[queryToken] && !counted[queryToken] {
			matchCount++
			counted[queryToken] = true
		}
	}

	// Count unique query tokens once so duplicates don't inflate the ratio.
	unique := 0
	seen := make(map[string]bool, len(queryTokens))
	for _, token := range queryTokens {
		if !seen[token] {
			seen[token] = true
			unique++
		}
	}
	return float32(matchCount) / float32(unique)
}

var _ Reranker = (*OverlapReranker)(nil)

// Package reranker provides evidence re-ranking for improving retrieval
// quality before context assembly.
package reranker

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/examind/internal/retrieval"
)

// ErrNilContext is returned when a nil context is passed to Rerank.
var ErrNilContext = errors.New("context cannot be nil")

// Reranker reorders an evidence list by query relevance.
type Reranker interface {
	// Rerank returns the topK most relevant evidence items for the query.
	// Vector-store scores are never mutated; relevance is conveyed purely
	// by list order.
	Rerank(ctx context.Context, query string, evidence []retrieval.Evidence, topK int) ([]retrieval.Evidence, error)

	// Close releases any resources held by the reranker.
	Close() error
}

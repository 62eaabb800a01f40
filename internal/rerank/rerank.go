// Package rerank provides second-pass scoring of retrieved candidates
// against the rewritten question, selecting the most relevant subset.
package rerank

import (
	"context"

	"github.com/willowhealth/medchatd/internal/conversation"
)

// DefaultTopN is the default size of the reranked document set.
const DefaultTopN = 4

// Reranker scores documents against a question and returns the top topN by
// descending score. When fewer than topN documents exist, all are returned
// in scored order. Ties are broken by original position so the operation is
// deterministic given deterministic scores.
type Reranker interface {
	Rerank(ctx context.Context, question string, docs []conversation.Document, topN int) ([]conversation.Document, error)
}

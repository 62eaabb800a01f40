package vectorstore

import (
	"context"

	"github.com/willowhealth/medchatd/internal/conversation"
	"github.com/willowhealth/medchatd/internal/retrieval"
)

// RetrievalIndex adapts a Store to the retrieval strategies' Index
// interface, converting search hits to conversation documents.
type RetrievalIndex struct {
	store Store
}

// NewRetrievalIndex wraps a Store for use by the retrieval strategies.
func NewRetrievalIndex(store Store) *RetrievalIndex {
	return &RetrievalIndex{store: store}
}

// Query performs unfiltered similarity search.
func (r *RetrievalIndex) Query(ctx context.Context, text string, k int) ([]conversation.Document, error) {
	results, err := r.store.Search(ctx, text, k)
	if err != nil {
		return nil, err
	}
	return toDocuments(results), nil
}

// QueryWithFilters performs similarity search restricted by exact-match
// metadata filters.
func (r *RetrievalIndex) QueryWithFilters(ctx context.Context, text string, k int, filters map[string]interface{}) ([]conversation.Document, error) {
	results, err := r.store.SearchWithFilters(ctx, text, k, filters)
	if err != nil {
		return nil, err
	}
	return toDocuments(results), nil
}

func toDocuments(results []SearchResult) []conversation.Document {
	docs := make([]conversation.Document, len(results))
	for i, r := range results {
		docs[i] = conversation.Document{
			Content:  r.Content,
			Metadata: r.Metadata,
		}
	}
	return docs
}

// Ensure RetrievalIndex implements retrieval.Index.
var _ retrieval.Index = (*RetrievalIndex)(nil)

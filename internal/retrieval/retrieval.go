// Package retrieval implements the fused document-retrieval stage: two
// independent strategies run concurrently against the vector index and their
// results are merged and deduplicated by exact content text.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/willowhealth/medchatd/internal/conversation"
)

var retrievalTracer = otel.Tracer("medchatd.retrieval")

// ErrInvalidConfig indicates invalid retrieval configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Index is the vector index contract retrieval requires. Implementations
// must tolerate an empty or untrained index by returning no results, and must
// be safe for concurrent queries.
type Index interface {
	// Query performs similarity search and returns up to k documents.
	Query(ctx context.Context, text string, k int) ([]conversation.Document, error)

	// QueryWithFilters performs similarity search restricted to documents
	// whose metadata matches all filter conditions.
	QueryWithFilters(ctx context.Context, text string, k int, filters map[string]interface{}) ([]conversation.Document, error)
}

// Strategy is one retrieval approach over the index. Both fused strategies
// implement it, which keeps the fusion logic independent of how each
// strategy finds its candidates.
type Strategy interface {
	Retrieve(ctx context.Context, question string) ([]conversation.Document, error)
}

// Fusion runs the multi-query and self-query strategies concurrently and
// merges their results. The join is a hard synchronization barrier: no
// partial result is combined with an in-flight one, and a failure in either
// strategy fails the whole stage.
type Fusion struct {
	multi  Strategy
	selfQ  Strategy
	logger *zap.Logger
}

// NewFusion creates a Fusion over the two strategies.
func NewFusion(multi, selfQuery Strategy, logger *zap.Logger) (*Fusion, error) {
	if multi == nil || selfQuery == nil {
		return nil, fmt.Errorf("%w: both strategies are required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fusion{multi: multi, selfQ: selfQuery, logger: logger}, nil
}

// Retrieve executes both strategies and returns the deduplicated union,
// multi-query results first, insertion order preserved. An empty union is a
// valid result.
func (f *Fusion) Retrieve(ctx context.Context, question string) ([]conversation.Document, error) {
	ctx, span := retrievalTracer.Start(ctx, "Fusion.Retrieve")
	defer span.End()

	// Cancel the sibling strategy as soon as one fails; its result would be
	// discarded anyway.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		multiDocs []conversation.Document
		selfDocs  []conversation.Document
		multiErr  error
		selfErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		multiDocs, multiErr = f.multi.Retrieve(ctx, question)
		if multiErr != nil {
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		selfDocs, selfErr = f.selfQ.Retrieve(ctx, question)
		if selfErr != nil {
			cancel()
		}
	}()
	wg.Wait()

	if multiErr != nil {
		span.RecordError(multiErr)
		return nil, fmt.Errorf("multi-query retrieval: %w", multiErr)
	}
	if selfErr != nil {
		span.RecordError(selfErr)
		return nil, fmt.Errorf("self-query retrieval: %w", selfErr)
	}

	merged := Dedupe(append(multiDocs, selfDocs...))

	span.SetAttributes(
		attribute.Int("multi_query_results", len(multiDocs)),
		attribute.Int("self_query_results", len(selfDocs)),
		attribute.Int("unique_results", len(merged)),
	)
	f.logger.Debug("fused retrieval results",
		zap.Int("multi_query", len(multiDocs)),
		zap.Int("self_query", len(selfDocs)),
		zap.Int("unique", len(merged)),
	)

	return merged, nil
}

// Dedupe removes documents whose exact content text was already seen,
// keeping the first occurrence and preserving insertion order. Metadata is
// not part of document identity.
func Dedupe(docs []conversation.Document) []conversation.Document {
	seen := make(map[string]struct{}, len(docs))
	unique := make([]conversation.Document, 0, len(docs))
	for _, doc := range docs {
		if _, ok := seen[doc.Content]; ok {
			continue
		}
		seen[doc.Content] = struct{}{}
		unique = append(unique, doc)
	}
	return unique
}

// Package vectorstore provides vector storage for the medicines corpus.
//
// Two backends are supported: chromem (embedded, persisted to disk, no
// external service) and qdrant (external server, reached through the
// langchaingo qdrant store). Both store one collection of page chunks and
// answer similarity queries with optional exact-match metadata filters.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Document is a corpus chunk to be stored.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Content is the chunk text.
	Content string

	// Metadata contains the filterable page attributes
	// (med_name, document_description, page_description, url).
	Metadata map[string]interface{}
}

// SearchResult is one similarity search hit.
type SearchResult struct {
	// ID is the document identifier.
	ID string

	// Content is the chunk text.
	Content string

	// Score is the similarity score (higher = more similar).
	Score float32

	// Metadata contains the document metadata.
	Metadata map[string]interface{}
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for vector storage operations.
//
// Filters are exact-match conditions on document metadata; only documents
// matching ALL conditions are returned. A store with no documents returns
// empty results, not an error.
type Store interface {
	// AddDocuments embeds and stores documents, returning their IDs.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search returns up to k documents similar to the query, ordered by
	// similarity (highest first).
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)

	// SearchWithFilters is Search restricted to documents whose metadata
	// matches every filter condition.
	SearchWithFilters(ctx context.Context, query string, k int, filters map[string]interface{}) ([]SearchResult, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close releases store resources.
	Close() error
}

package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/tmc/langchaingo/vectorstores/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var qdrantTracer = otel.Tracer("medchatd.vectorstore.qdrant")

// QdrantConfig holds configuration for the external Qdrant backend.
type QdrantConfig struct {
	// URL is the Qdrant REST endpoint, e.g. "http://localhost:6333".
	URL string

	// APIKey is the optional Qdrant API key.
	APIKey string

	// Collection is the collection name. Default: "nhs_medicines"
	Collection string

	// VectorSize is the embedding dimension, used when the collection has
	// to be created. Default: 1536 (text-embedding-3-small)
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "nhs_medicines"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 1536
	}
}

// Validate validates the configuration.
func (c *QdrantConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: qdrant URL is required", ErrInvalidConfig)
	}
	if _, err := url.Parse(c.URL); err != nil {
		return fmt.Errorf("%w: invalid qdrant URL: %v", ErrInvalidConfig, err)
	}
	return nil
}

// QdrantStore implements Store against an external Qdrant server through the
// langchaingo qdrant store. Collection management and counting go through
// Qdrant's REST API directly since langchaingo does not expose them.
type QdrantStore struct {
	store   qdrant.Store
	config  QdrantConfig
	baseURL *url.URL
	httpc   *http.Client
	logger  *zap.Logger
}

// NewQdrantStore connects to Qdrant and ensures the collection exists.
func NewQdrantStore(cfg QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid qdrant URL: %v", ErrInvalidConfig, err)
	}

	s := &QdrantStore{
		config:  cfg,
		baseURL: base,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}

	if err := s.ensureCollection(context.Background()); err != nil {
		return nil, err
	}

	opts := []qdrant.Option{
		qdrant.WithURL(*base),
		qdrant.WithCollectionName(cfg.Collection),
		qdrant.WithEmbedder(embedder),
	}
	if cfg.APIKey != "" {
		opts = append(opts, qdrant.WithAPIKey(cfg.APIKey))
	}

	store, err := qdrant.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating qdrant store: %w", err)
	}
	s.store = store

	logger.Info("qdrant store initialized",
		zap.String("url", cfg.URL),
		zap.String("collection", cfg.Collection),
	)

	return s, nil
}

// AddDocuments embeds and stores documents.
func (s *QdrantStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.AddDocuments")
	defer span.End()

	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	lcDocs := make([]schema.Document, len(docs))
	for i, doc := range docs {
		lcDocs[i] = schema.Document{
			PageContent: doc.Content,
			Metadata:    doc.Metadata,
		}
	}

	ids, err := s.store.AddDocuments(ctx, lcDocs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("added documents to qdrant",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(docs)),
	)

	return ids, nil
}

// Search performs similarity search.
func (s *QdrantStore) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	return s.SearchWithFilters(ctx, query, k, nil)
}

// SearchWithFilters performs similarity search with exact-match metadata
// filters, expressed as a Qdrant must-match filter.
func (s *QdrantStore) SearchWithFilters(ctx context.Context, query string, k int, filters map[string]interface{}) ([]SearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.SearchWithFilters")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("k", k),
		attribute.Int("filter_count", len(filters)),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	var opts []vectorstores.Option
	if len(filters) > 0 {
		opts = append(opts, vectorstores.WithFilters(qdrantFilter(filters)))
	}

	docs, err := s.store.SimilaritySearch(ctx, query, k, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", s.config.Collection, err)
	}

	results := make([]SearchResult, len(docs))
	for i, doc := range docs {
		results[i] = SearchResult{
			Content:  doc.PageContent,
			Score:    doc.Score,
			Metadata: doc.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")

	return results, nil
}

// qdrantFilter builds the Qdrant filter clause: every condition must match
// exactly.
func qdrantFilter(filters map[string]interface{}) map[string]interface{} {
	must := make([]map[string]interface{}, 0, len(filters))
	for key, value := range filters {
		must = append(must, map[string]interface{}{
			"key":   key,
			"match": map[string]interface{}{"value": value},
		})
	}
	return map[string]interface{}{"must": must}
}

// Count returns the number of stored points via the REST API.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	body, err := s.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/count", s.config.Collection),
		map[string]interface{}{"exact": true})
	if err != nil {
		return 0, err
	}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decoding count response: %w", err)
	}
	return resp.Result.Count, nil
}

// Close closes the store.
func (s *QdrantStore) Close() error {
	s.logger.Info("qdrant store closed")
	return nil
}

// ensureCollection creates the collection if it does not exist yet.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	_, err := s.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("/collections/%s", s.config.Collection), nil)
	if err == nil {
		return nil
	}

	_, err = s.doRequest(ctx, http.MethodPut,
		fmt.Sprintf("/collections/%s", s.config.Collection),
		map[string]interface{}{
			"vectors": map[string]interface{}{
				"size":     s.config.VectorSize,
				"distance": "Cosine",
			},
		})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}

	s.logger.Info("created qdrant collection",
		zap.String("collection", s.config.Collection),
		zap.Int("vector_size", s.config.VectorSize),
	)
	return nil
}

func (s *QdrantStore) doRequest(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var body *bytes.Buffer
	if payload != nil {
		body = &bytes.Buffer{}
		if err := json.NewEncoder(body).Encode(payload); err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
	} else {
		body = bytes.NewBuffer(nil)
	}

	endpoint := s.baseURL.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("api-key", s.config.APIKey)
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}

// Ensure QdrantStore implements Store.
var _ Store = (*QdrantStore)(nil)

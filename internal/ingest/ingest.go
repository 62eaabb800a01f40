package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/willowhealth/medchatd/internal/vectorstore"
)

var ingestTracer = otel.Tracer("medchatd.ingest")

// Chunking parameters for the medicines pages.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 64

	// addBatchSize bounds the number of chunks embedded per store call.
	addBatchSize = 64
)

// Config holds ingestion configuration.
type Config struct {
	// ChunkSize is the maximum chunk length in characters.
	// Default: DefaultChunkSize
	ChunkSize int

	// ChunkOverlap is the overlap between adjacent chunks.
	// Default: DefaultChunkOverlap
	ChunkOverlap int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = DefaultChunkOverlap
	}
}

// Ingestor splits corpus pages into chunks and writes them to the vector
// store. Each chunk inherits its page's metadata so attribute filters keep
// working after splitting.
type Ingestor struct {
	store    vectorstore.Store
	splitter textsplitter.RecursiveCharacter
	logger   *zap.Logger
}

// New creates an Ingestor.
func New(cfg Config, store vectorstore.Store, logger *zap.Logger) (*Ingestor, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.ChunkSize),
		textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
	)

	return &Ingestor{
		store:    store,
		splitter: splitter,
		logger:   logger,
	}, nil
}

// Run ingests every corpus file in the directory and returns the number of
// chunks written.
func (i *Ingestor) Run(ctx context.Context, dir string) (int, error) {
	ctx, span := ingestTracer.Start(ctx, "Ingestor.Run")
	defer span.End()

	span.SetAttributes(attribute.String("corpus_dir", dir))

	pages, err := LoadDir(dir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	i.logger.Info("loaded corpus pages", zap.Int("pages", len(pages)))

	docs, err := i.chunk(pages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	written := 0
	for start := 0; start < len(docs); start += addBatchSize {
		end := start + addBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		if _, err := i.store.AddDocuments(ctx, docs[start:end]); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return written, fmt.Errorf("adding chunk batch: %w", err)
		}
		written += end - start
	}

	span.SetAttributes(
		attribute.Int("pages", len(pages)),
		attribute.Int("chunks", written),
	)
	span.SetStatus(codes.Ok, "success")

	i.logger.Info("corpus ingested",
		zap.Int("pages", len(pages)),
		zap.Int("chunks", written),
	)

	return written, nil
}

// chunk splits pages into store documents with fresh IDs.
func (i *Ingestor) chunk(pages []Page) ([]vectorstore.Document, error) {
	var docs []vectorstore.Document
	for _, page := range pages {
		chunks, err := i.splitter.SplitText(page.Content)
		if err != nil {
			return nil, fmt.Errorf("splitting page: %w", err)
		}
		for _, chunk := range chunks {
			docs = append(docs, vectorstore.Document{
				ID:       uuid.NewString(),
				Content:  chunk,
				Metadata: page.Metadata,
			})
		}
	}
	return docs, nil
}

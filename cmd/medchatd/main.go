// Medchatd is the NHS medicines question-answering daemon.
//
// It serves a conversational HTTP API over a retrieval-augmented pipeline:
// a relevance gate, query rewriting, fused vector retrieval over the
// scraped NHS medicines corpus, reranking and grounded answer generation.
//
// Usage:
//
//	# Start with defaults (embedded chromem store)
//	medchatd
//
//	# Start with a config file
//	medchatd -config /etc/medchatd/config.yaml
//
//	# Configure via environment
//	SERVER_ADDR=:9000 LLM_API_KEY=sk-... medchatd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/willowhealth/medchatd/internal/answer"
	"github.com/willowhealth/medchatd/internal/config"
	"github.com/willowhealth/medchatd/internal/embeddings"
	"github.com/willowhealth/medchatd/internal/gate"
	"github.com/willowhealth/medchatd/internal/httpapi"
	"github.com/willowhealth/medchatd/internal/llm"
	"github.com/willowhealth/medchatd/internal/logging"
	"github.com/willowhealth/medchatd/internal/rerank"
	"github.com/willowhealth/medchatd/internal/retrieval"
	"github.com/willowhealth/medchatd/internal/rewrite"
	"github.com/willowhealth/medchatd/internal/vectorstore"
	"github.com/willowhealth/medchatd/internal/workflow"

	"github.com/prometheus/client_golang/prometheus"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("medchatd %s (commit %s, built %s)\n", version, gitCommit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// run wires the pipeline and blocks until the context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logging.Sync(logger)

	logger.Info("starting medchatd",
		zap.String("version", version),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("llm_model", cfg.LLM.Model),
	)

	// LLM client shared by the gate, rewriter and both generators.
	generator, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey.Value(),
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout.Duration(),
	})
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		APIKey:  cfg.Embeddings.APIKey.Value(),
	})
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}

	store, err := vectorstore.NewStore(cfg.VectorStore.Provider,
		vectorstore.ChromemConfig{
			Path:       cfg.Chromem.Path,
			Compress:   cfg.Chromem.Compress,
			Collection: cfg.Chromem.Collection,
		},
		vectorstore.QdrantConfig{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey.Value(),
			Collection: cfg.Qdrant.Collection,
			VectorSize: cfg.Qdrant.VectorSize,
		},
		embedder, logger)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	defer store.Close()

	index := vectorstore.NewRetrievalIndex(store)

	multiQuery, err := retrieval.NewMultiQuery(generator, index, retrieval.MultiQueryConfig{
		ParaphraseCount: cfg.Retrieval.MultiQueryCount,
		PerQueryK:       cfg.Retrieval.PerQueryK,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating multi-query strategy: %w", err)
	}

	selfQuery, err := retrieval.NewSelfQuery(generator, index, retrieval.SelfQueryConfig{
		K: cfg.Retrieval.SelfQueryK,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating self-query strategy: %w", err)
	}

	fusion, err := retrieval.NewFusion(multiQuery, selfQuery, logger)
	if err != nil {
		return fmt.Errorf("creating retrieval fusion: %w", err)
	}

	classifier, err := gate.NewLLMClassifier(generator, logger)
	if err != nil {
		return fmt.Errorf("creating relevance classifier: %w", err)
	}

	rewriter, err := rewrite.New(generator, logger)
	if err != nil {
		return fmt.Errorf("creating query rewriter: %w", err)
	}

	synthesizer, err := answer.NewSynthesizer(generator, logger)
	if err != nil {
		return fmt.Errorf("creating answer synthesizer: %w", err)
	}

	rejecter, err := answer.NewRejecter(generator, logger)
	if err != nil {
		return fmt.Errorf("creating rejection handler: %w", err)
	}

	orchestrator, err := workflow.New(
		workflow.Config{RerankTopN: cfg.Retrieval.RerankTopN},
		classifier,
		rewriter,
		fusion,
		rerank.NewLexical(logger),
		synthesizer,
		rejecter,
		logger,
	)
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	server, err := httpapi.NewServer(
		orchestrator,
		httpapi.NewMetrics(prometheus.DefaultRegisterer),
		logger,
		httpapi.Config{Addr: cfg.Server.Addr},
	)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/willowhealth/medchatd/internal/config"
	"github.com/willowhealth/medchatd/internal/embeddings"
	"github.com/willowhealth/medchatd/internal/ingest"
	"github.com/willowhealth/medchatd/internal/logging"
	"github.com/willowhealth/medchatd/internal/vectorstore"
)

var (
	ingestConfigPath string
	ingestCorpusDir  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest the medicines corpus into the vector store",
	Long: `Ingest loads the scraped NHS medicines corpus (a directory of JSON
page files), splits pages into chunks and writes them to the configured
vector store.

Examples:
  # Ingest using the configured corpus directory
  medctl ingest --config /etc/medchatd/config.yaml

  # Ingest a specific directory
  medctl ingest --corpus ./corpus`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestConfigPath, "config", "", "path to YAML config file")
	ingestCmd.Flags().StringVar(&ingestCorpusDir, "corpus", "", "corpus directory (overrides config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(ingestConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	dir := cfg.Corpus.Dir
	if ingestCorpusDir != "" {
		dir = ingestCorpusDir
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: "console",
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logging.Sync(logger)

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

	ingestor, err := ingest.New(ingest.Config{}, store, logger)
	if err != nil {
		return fmt.Errorf("creating ingestor: %w", err)
	}

	written, err := ingestor.Run(cmd.Context(), dir)
	if err != nil {
		return fmt.Errorf("ingesting corpus: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d chunks from %s\n", written, dir)
	return nil
}

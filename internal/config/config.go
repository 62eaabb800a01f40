// Package config provides configuration loading for medchatd.
package config

import (
	"fmt"
	"time"
)

// Config is the full daemon configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	LLM         LLMConfig         `koanf:"llm"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Chromem     ChromemConfig     `koanf:"chromem"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Corpus      CorpusConfig      `koanf:"corpus"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string   `koanf:"addr"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LLMConfig configures the chat completion client used by the relevance
// gate, rewriter and answer generation.
type LLMConfig struct {
	BaseURL     string   `koanf:"base_url"`
	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	Temperature float64  `koanf:"temperature"`
	Timeout     Duration `koanf:"timeout"`
}

// EmbeddingsConfig configures the embedding client.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant" (external).
	Provider string `koanf:"provider"`
}

// ChromemConfig configures the embedded chromem-go backend.
type ChromemConfig struct {
	Path       string `koanf:"path"`
	Compress   bool   `koanf:"compress"`
	Collection string `koanf:"collection"`
}

// QdrantConfig configures the external Qdrant backend.
type QdrantConfig struct {
	URL        string `koanf:"url"`
	APIKey     Secret `koanf:"api_key"`
	Collection string `koanf:"collection"`
	VectorSize int    `koanf:"vector_size"`
}

// RetrievalConfig tunes the retrieval and ranking stages.
type RetrievalConfig struct {
	// MultiQueryCount is the number of paraphrases for multi-query expansion.
	MultiQueryCount int `koanf:"multi_query_count"`
	// PerQueryK is the number of candidates fetched per paraphrase.
	PerQueryK int `koanf:"per_query_k"`
	// SelfQueryK is the number of candidates fetched by the self-query
	// strategy.
	SelfQueryK int `koanf:"self_query_k"`
	// RerankTopN is the size of the final ranked document set.
	RerankTopN int `koanf:"rerank_top_n"`
}

// CorpusConfig locates the scraped medicines corpus.
type CorpusConfig struct {
	Dir string `koanf:"dir"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `koanf:"level"`
	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(60 * time.Second)
	}

	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "text-embedding-3-small"
	}
	if cfg.Embeddings.APIKey == "" {
		cfg.Embeddings.APIKey = cfg.LLM.APIKey
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.Chromem.Path == "" {
		cfg.Chromem.Path = "~/.local/share/medchatd/vectorstore"
	}
	if cfg.Chromem.Collection == "" {
		cfg.Chromem.Collection = "nhs_medicines"
	}
	if cfg.Qdrant.URL == "" {
		cfg.Qdrant.URL = "http://localhost:6333"
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = "nhs_medicines"
	}
	if cfg.Qdrant.VectorSize == 0 {
		cfg.Qdrant.VectorSize = 1536
	}

	if cfg.Retrieval.MultiQueryCount == 0 {
		cfg.Retrieval.MultiQueryCount = 3
	}
	if cfg.Retrieval.PerQueryK == 0 {
		cfg.Retrieval.PerQueryK = 4
	}
	if cfg.Retrieval.SelfQueryK == 0 {
		cfg.Retrieval.SelfQueryK = 4
	}
	if cfg.Retrieval.RerankTopN == 0 {
		cfg.Retrieval.RerankTopN = 4
	}

	if cfg.Corpus.Dir == "" {
		cfg.Corpus.Dir = "./corpus"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature must be between 0 and 2, got %v", c.LLM.Temperature)
	}

	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", c.VectorStore.Provider)
	}

	if c.Retrieval.MultiQueryCount < 0 {
		return fmt.Errorf("retrieval multi_query_count cannot be negative")
	}
	if c.Retrieval.PerQueryK <= 0 {
		return fmt.Errorf("retrieval per_query_k must be positive")
	}
	if c.Retrieval.SelfQueryK <= 0 {
		return fmt.Errorf("retrieval self_query_k must be positive")
	}
	if c.Retrieval.RerankTopN <= 0 {
		return fmt.Errorf("retrieval rerank_top_n must be positive")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported logging format: %s (supported: json, console)", c.Logging.Format)
	}

	return nil
}

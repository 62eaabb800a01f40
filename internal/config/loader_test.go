package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "nhs_medicines", cfg.Chromem.Collection)
	assert.Equal(t, 3, cfg.Retrieval.MultiQueryCount)
	assert.Equal(t, 4, cfg.Retrieval.PerQueryK)
	assert.Equal(t, 4, cfg.Retrieval.SelfQueryK)
	assert.Equal(t, 4, cfg.Retrieval.RerankTopN)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: ":9000"
  shutdown_timeout: 5s
llm:
  model: gpt-4o
  temperature: 0.2
  api_key: sk-test
vectorstore:
  provider: qdrant
qdrant:
  url: http://qdrant:6333
retrieval:
  rerank_top_n: 6
logging:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey.Value())
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, "http://qdrant:6333", cfg.Qdrant.URL)
	assert.Equal(t, 6, cfg.Retrieval.RerankTopN)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	// Unset fields still get defaults.
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, "nhs_medicines", cfg.Qdrant.Collection)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: ":9000"
`)
	t.Setenv("SERVER_ADDR", ":7000")
	t.Setenv("LLM_API_KEY", "sk-env")
	t.Setenv("RETRIEVAL_RERANK_TOP_N", "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey.Value())
	assert.Equal(t, 8, cfg.Retrieval.RerankTopN)
}

func TestEnvToKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SERVER_ADDR", "server.addr"},
		{"LLM_BASE_URL", "llm.base_url"},
		{"RETRIEVAL_RERANK_TOP_N", "retrieval.rerank_top_n"},
		{"VECTORSTORE_PROVIDER", "vectorstore.provider"},
		{"CHROMEM_PATH", "chromem.path"},
		{"PATH", ""},
		{"HOME", ""},
		{"XDG_DATA_HOME", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, envToKey(tt.in), tt.in)
	}
}

func TestLoadRejectsInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9000\"\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad provider", func(c *Config) { c.VectorStore.Provider = "pinecone" }},
		{"bad temperature", func(c *Config) { c.LLM.Temperature = 3 }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"zero top n", func(c *Config) { c.Retrieval.RerankTopN = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.Error(t, d.UnmarshalText([]byte("-5s")))
	require.Error(t, d.UnmarshalText([]byte("not-a-duration")))
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("sk-very-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "sk-very-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(data))

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}

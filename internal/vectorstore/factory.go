package vectorstore

import (
	"fmt"

	"go.uber.org/zap"
)

// NewStore creates a Store for the named provider.
//
//   - "chromem" (default): embedded chromem-go store, no external service
//   - "qdrant": external Qdrant server
func NewStore(provider string, chromemCfg ChromemConfig, qdrantCfg QdrantConfig, embedder Embedder, logger *zap.Logger) (Store, error) {
	switch provider {
	case "chromem", "":
		return NewChromemStore(chromemCfg, embedder, logger)
	case "qdrant":
		return NewQdrantStore(qdrantCfg, embedder, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q (supported: chromem, qdrant)", ErrInvalidConfig, provider)
	}
}

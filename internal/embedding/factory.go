package embedding

import (
	"fmt"

	"google.golang.org/genai"

	"github.com/futureecho/futureecho/internal/config"
)

// New builds the configured Embedder, wrapped in a cache when a size is set.
func New(cfg config.GeminiConfig, client *genai.Client) (Embedder, error) {
	var e Embedder
	switch cfg.EmbeddingProvider {
	case "gemini", "":
		if client == nil {
			return nil, fmt.Errorf("gemini embedding provider requires a client")
		}
		e = NewGemini(client.Models, cfg.EmbeddingModel, cfg.EmbeddingDimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}

	if cfg.EmbeddingCacheSize <= 0 {
		return e, nil
	}
	return NewCached(e, cfg.EmbeddingCacheSize)
}

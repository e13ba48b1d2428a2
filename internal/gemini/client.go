package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/futureecho/futureecho/internal/config"
)

// NewClient creates the genai client shared by the embedding gateway and the generator.
func NewClient(ctx context.Context, cfg config.GeminiConfig) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	slog.Info("gemini client ready", "chat_model", cfg.ChatModel, "embedding_model", cfg.EmbeddingModel)
	return client, nil
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}

	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	if c.Gemini.APIKey == "" {
		errs = append(errs, "GEMINI_API_KEY is required")
	}
	if c.Gemini.EmbeddingDimension <= 0 {
		errs = append(errs, fmt.Sprintf("GEMINI_EMBEDDING_DIMENSION must be positive, got %d", c.Gemini.EmbeddingDimension))
	}

	if c.Memory.TopK < 1 {
		errs = append(errs, fmt.Sprintf("MEMORY_TOP_K must be at least 1, got %d", c.Memory.TopK))
	}
	if c.Memory.MinSimilarity < -1 || c.Memory.MinSimilarity >= 1 {
		errs = append(errs, fmt.Sprintf("MEMORY_MIN_SIMILARITY must be in [-1, 1), got %g", c.Memory.MinSimilarity))
	}
	if c.Chat.HistoryLimit < 0 {
		errs = append(errs, fmt.Sprintf("CHAT_HISTORY_LIMIT must not be negative, got %d", c.Chat.HistoryLimit))
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// NATS is optional: warn only
	if c.NATS.URL == "" {
		slog.Warn("NATS_URL is empty; memory indexing runs in-process only")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/futureecho/futureecho/internal/metrics"
)

// EmbedAPI is the subset of *genai.Models used here.
type EmbedAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Gemini embeds text with a Gemini embedding model.
type Gemini struct {
	api   EmbedAPI
	model string
	dim   int
}

func NewGemini(api EmbedAPI, model string, dim int) *Gemini {
	return &Gemini{api: api, model: model, dim: dim}
}

func (g *Gemini) Dimension() int { return g.dim }

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := int32(g.dim)
	resp, err := g.api.EmbedContent(ctx, g.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: no embeddings in response", ErrUnavailable)
	}

	vec := resp.Embeddings[0].Values
	if err := checkVector(vec, g.dim); err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("ok").Inc()
	return vec, nil
}

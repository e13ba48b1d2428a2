package generation

import (
	"context"
	"fmt"
	"iter"

	"google.golang.org/genai"
)

// StreamAPI is the subset of *genai.Models used here.
type StreamAPI interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

const streamBuffer = 16

// Gemini streams replies from a Gemini chat model.
type Gemini struct {
	api   StreamAPI
	model string
}

func NewGemini(api StreamAPI, model string) *Gemini {
	return &Gemini{api: api, model: model}
}

func (g *Gemini) Stream(ctx context.Context, req Request) <-chan Chunk {
	out := make(chan Chunk, streamBuffer)

	go func() {
		defer close(out)

		send := func(c Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var config *genai.GenerateContentConfig
		if req.SystemInstruction != "" {
			config = &genai.GenerateContentConfig{
				SystemInstruction: genai.NewContentFromText(req.SystemInstruction, ""),
			}
		}

		for resp, err := range g.api.GenerateContentStream(ctx, g.model, toContents(req.History, req.Message), config) {
			if err != nil {
				send(Chunk{Err: fmt.Errorf("streaming from %s: %w", g.model, err)})
				return
			}
			if resp == nil {
				continue
			}
			if text := resp.Text(); text != "" {
				if !send(Chunk{Text: text}) {
					return
				}
			}
		}

		if err := ctx.Err(); err != nil {
			send(Chunk{Err: err})
			return
		}
		send(Chunk{Done: true})
	}()

	return out
}

// toContents maps history plus the new message onto genai contents, merging
// consecutive turns of the same role.
func toContents(history []Turn, message string) []*genai.Content {
	turns := append(history[:len(history):len(history)], Turn{Role: RoleUser, Text: message})

	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		if t.Text == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if t.Role == RoleAssistant {
			role = genai.RoleModel
		}
		if n := len(contents); n > 0 && contents[n-1].Role == string(role) {
			contents[n-1].Parts = append(contents[n-1].Parts, genai.NewPartFromText(t.Text))
			continue
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	return contents
}

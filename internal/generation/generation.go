// Package generation streams model replies for a chat turn.
package generation

import "context"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role Role
	Text string
}

type Request struct {
	SystemInstruction string
	History           []Turn
	Message           string
}

// Chunk is one element of a reply stream. A stream ends with exactly one
// chunk carrying Done or Err, after which the channel is closed.
type Chunk struct {
	Text string
	Done bool
	Err  error
}

type Generator interface {
	// Stream starts generation. Cancelling ctx stops it; the channel is closed either way.
	Stream(ctx context.Context, req Request) <-chan Chunk
}

package nats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
)

// ConsumerManager handles durable consumer creation and retrieval.
type ConsumerManager struct {
	js jetstream.JetStream
}

// NewConsumerManager creates a new ConsumerManager.
func NewConsumerManager(js jetstream.JetStream) *ConsumerManager {
	return &ConsumerManager{js: js}
}

// ConsumerOption adjusts the durable consumer config before it is created.
type ConsumerOption func(*jetstream.ConsumerConfig)

// WithMaxDeliver caps redeliveries of a message that keeps being Nak'ed.
func WithMaxDeliver(n int) ConsumerOption {
	return func(c *jetstream.ConsumerConfig) { c.MaxDeliver = n }
}

// EnsureConsumer creates or updates a durable consumer on the given stream.
func (cm *ConsumerManager) EnsureConsumer(ctx context.Context, stream, name, filterSubject string, opts ...ConsumerOption) (jetstream.Consumer, error) {
	cfg := jetstream.ConsumerConfig{
		Durable:       name,
		FilterSubject: filterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	consumer, err := cm.js.CreateOrUpdateConsumer(ctx, stream, cfg)
	if err != nil {
		return nil, fmt.Errorf("ensuring consumer %s on %s: %w", name, stream, err)
	}
	return consumer, nil
}

// FetchLoop pulls batches from consumer and hands each message to handle
// until ctx is cancelled. handle owns acking.
func FetchLoop(ctx context.Context, consumer jetstream.Consumer, name string, handle func(context.Context, jetstream.Msg)) {
	for {
		if ctx.Err() != nil {
			return
		}

		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Debug("consumer fetch", "consumer", name, "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			handle(ctx, msg)
		}
		if err := msgs.Error(); err != nil && ctx.Err() == nil {
			slog.Debug("consumer batch", "consumer", name, "error", err)
		}
	}
}

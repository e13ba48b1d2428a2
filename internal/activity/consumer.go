package activity

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	inats "github.com/futureecho/futureecho/internal/nats"
)

const consumerName = "activity-persister"

// Consumer persists activity events published on JetStream.
type Consumer struct {
	repo        Inserter
	consumerMgr *inats.ConsumerManager
}

func NewConsumer(repo Inserter, consumerMgr *inats.ConsumerManager) *Consumer {
	return &Consumer{repo: repo, consumerMgr: consumerMgr}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, inats.StreamEvents, consumerName, inats.SubjectActivityEvent)
	if err != nil {
		return err
	}

	slog.Info("activity consumer started", "consumer", consumerName)
	inats.FetchLoop(ctx, consumer, consumerName, func(ctx context.Context, msg jetstream.Msg) {
		c.handle(ctx, msg)
	})
	return nil
}

// ackable is the part of jetstream.Msg the handler needs.
type ackable interface {
	Data() []byte
	Ack() error
	Nak() error
	Term() error
}

func (c *Consumer) handle(ctx context.Context, msg ackable) {
	var event Event
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		slog.Error("activity consumer: unmarshaling event", "error", err)
		_ = msg.Term()
		return
	}

	if err := c.repo.Insert(ctx, toEntry(event)); err != nil {
		slog.Error("activity consumer: persisting event", "error", err, "type", event.Type)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()
	slog.Debug("activity consumer: persisted event", "type", event.Type, "owner_id", event.OwnerID)
}

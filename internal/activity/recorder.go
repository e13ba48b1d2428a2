package activity

import (
	"context"
	"log/slog"
	"time"

	inats "github.com/futureecho/futureecho/internal/nats"
)

// Recorder accepts events from producers. Recording never fails the caller.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Publisher is satisfied by *inats.Publisher.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Inserter is satisfied by *Repository.
type Inserter interface {
	Insert(ctx context.Context, e *Entry) error
}

// StreamRecorder publishes to JetStream when a publisher is configured and
// otherwise, or on publish failure, writes straight to the database.
type StreamRecorder struct {
	pub  Publisher
	repo Inserter
}

func NewStreamRecorder(pub Publisher, repo Inserter) *StreamRecorder {
	return &StreamRecorder{pub: pub, repo: repo}
}

func (r *StreamRecorder) Record(ctx context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	// Events are often recorded after the request context is gone.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if r.pub != nil {
		err := r.pub.Publish(ctx, inats.SubjectActivityEvent, e)
		if err == nil {
			return
		}
		slog.Warn("activity: publish failed, writing directly", "error", err, "type", e.Type)
	}

	if r.repo == nil {
		return
	}
	if err := r.repo.Insert(ctx, toEntry(e)); err != nil {
		slog.Error("activity: persisting event", "error", err, "type", e.Type, "owner_id", e.OwnerID)
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Record(context.Context, Event) {}

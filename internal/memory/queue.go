package memory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/futureecho/futureecho/internal/activity"
	inats "github.com/futureecho/futureecho/internal/nats"
)

// Publisher is satisfied by *inats.Publisher.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// QueueIndexer hands jobs to JetStream so they survive a restart of this
// process. If the publish fails the job runs on the fallback indexer instead.
type QueueIndexer struct {
	pub      Publisher
	fallback Indexer
}

func NewQueueIndexer(pub Publisher, fallback Indexer) *QueueIndexer {
	return &QueueIndexer{pub: pub, fallback: fallback}
}

func (q *QueueIndexer) Index(ctx context.Context, job Job) {
	job.Op = OpUpsert
	q.enqueue(ctx, job)
}

func (q *QueueIndexer) Remove(ctx context.Context, job Job) {
	job.Op = OpDelete
	q.enqueue(ctx, job)
}

func (q *QueueIndexer) enqueue(ctx context.Context, job Job) {
	if job.RequestedAt.IsZero() {
		job.RequestedAt = time.Now().UTC()
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := q.pub.Publish(pubCtx, inats.SubjectMemoryIndex, job); err != nil {
		slog.Warn("memory: queueing index job failed, running locally", "error", err, "op", job.Op)
		if job.Op == OpDelete {
			q.fallback.Remove(ctx, job)
		} else {
			q.fallback.Index(ctx, job)
		}
	}
}

const indexConsumerName = "memory-indexer"

// IndexConsumer applies queued index jobs to the store.
type IndexConsumer struct {
	store       Applier
	recorder    activity.Recorder
	consumerMgr *inats.ConsumerManager
	timeout     time.Duration
}

func NewIndexConsumer(store Applier, recorder activity.Recorder, consumerMgr *inats.ConsumerManager, timeout time.Duration) *IndexConsumer {
	if recorder == nil {
		recorder = activity.Discard{}
	}
	return &IndexConsumer{store: store, recorder: recorder, consumerMgr: consumerMgr, timeout: timeout}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *IndexConsumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, inats.StreamMemory, indexConsumerName, inats.SubjectMemoryIndex,
		inats.WithMaxDeliver(5))
	if err != nil {
		return err
	}

	slog.Info("memory index consumer started", "consumer", indexConsumerName)
	inats.FetchLoop(ctx, consumer, indexConsumerName, func(ctx context.Context, msg jetstream.Msg) {
		c.handle(ctx, msg)
	})
	return nil
}

type ackable interface {
	Data() []byte
	Ack() error
	NakWithDelay(delay time.Duration) error
	Term() error
}

func (c *IndexConsumer) handle(ctx context.Context, msg ackable) {
	var job Job
	if err := json.Unmarshal(msg.Data(), &job); err != nil {
		slog.Error("memory consumer: unmarshaling job", "error", err)
		_ = msg.Term()
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := applyJob(jobCtx, c.store, c.recorder, job)
	switch {
	case err == nil:
		_ = msg.Ack()
	case errors.Is(err, ErrEmptyText), errors.Is(err, ErrUnknownOp):
		_ = msg.Term()
	default:
		// Embedding or storage may recover; JetStream redelivers up to MaxDeliver.
		_ = msg.NakWithDelay(10 * time.Second)
	}
}

package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/futureecho/futureecho/internal/activity"
	"github.com/futureecho/futureecho/internal/metrics"
)

// Indexer keeps memory records in sync with source writes without making the
// write wait. Implementations log failures and never return them.
type Indexer interface {
	Index(ctx context.Context, job Job)
	Remove(ctx context.Context, job Job)
}

// Applier is satisfied by *Store.
type Applier interface {
	Apply(ctx context.Context, job Job) error
}

// LocalIndexer applies jobs on a bounded set of goroutines in this process.
type LocalIndexer struct {
	store    Applier
	recorder activity.Recorder
	sem      chan struct{}
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewLocalIndexer(store Applier, recorder activity.Recorder, workers int, timeout time.Duration) *LocalIndexer {
	if workers < 1 {
		workers = 1
	}
	if recorder == nil {
		recorder = activity.Discard{}
	}
	return &LocalIndexer{
		store:    store,
		recorder: recorder,
		sem:      make(chan struct{}, workers),
		timeout:  timeout,
	}
}

func (l *LocalIndexer) Index(ctx context.Context, job Job) {
	job.Op = OpUpsert
	l.submit(ctx, job)
}

func (l *LocalIndexer) Remove(ctx context.Context, job Job) {
	job.Op = OpDelete
	l.submit(ctx, job)
}

func (l *LocalIndexer) submit(ctx context.Context, job Job) {
	if job.RequestedAt.IsZero() {
		job.RequestedAt = time.Now().UTC()
	}

	// The originating request is usually finished before the job runs.
	ctx = context.WithoutCancel(ctx)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.sem <- struct{}{}
		defer func() { <-l.sem }()

		ctx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()
		applyJob(ctx, l.store, l.recorder, job)
	}()
}

// Wait blocks until every submitted job has finished.
func (l *LocalIndexer) Wait() {
	l.wg.Wait()
}

// applyJob runs job and reports the outcome through logs, metrics and activity.
func applyJob(ctx context.Context, store Applier, recorder activity.Recorder, job Job) error {
	err := store.Apply(ctx, job)
	if err != nil {
		metrics.IndexJobsTotal.WithLabelValues(string(job.Op), "error").Inc()
		slog.Error("memory: index job failed",
			"error", err,
			"op", job.Op,
			"owner_id", job.Key.OwnerID,
			"source_type", job.Key.SourceType,
			"source_id", job.Key.SourceID,
		)
		if !errors.Is(err, ErrEmptyText) {
			recorder.Record(ctx, activity.Event{
				OwnerID:      job.Key.OwnerID,
				Type:         activity.TypeMemoryIndexFailed,
				Severity:     activity.SeverityWarn,
				ResourceType: job.Key.SourceType,
				ResourceID:   job.Key.SourceID.String(),
				Details:      err.Error(),
			})
		}
		return err
	}

	metrics.IndexJobsTotal.WithLabelValues(string(job.Op), "ok").Inc()
	eventType := activity.TypeMemoryIndexed
	if job.Op == OpDelete {
		eventType = activity.TypeMemoryRemoved
	}
	recorder.Record(ctx, activity.Event{
		OwnerID:      job.Key.OwnerID,
		Type:         eventType,
		Severity:     activity.SeverityInfo,
		ResourceType: job.Key.SourceType,
		ResourceID:   job.Key.SourceID.String(),
	})
	return nil
}

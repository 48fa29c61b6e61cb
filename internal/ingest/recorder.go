// Package ingest classifies observations off the request path and writes the
// resulting records to every configured sink.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/ichi-a/geo-shock/internal/classify"
	"github.com/ichi-a/geo-shock/internal/metrics"
)

// Classifier turns an observation into a record.
type Classifier interface {
	Classify(ctx context.Context, req classify.Request) classify.Record
}

// Sink stores records. Postgres and the Kafka mirror both implement it.
type Sink interface {
	Name() string
	Insert(ctx context.Context, r classify.Record) error
}

// Options tune the queue.
type Options struct {
	QueueSize int
	Timeout   time.Duration
}

// Recorder is the fire-and-forget entry point used by the tracker and the
// edge ingestion endpoint.
type Recorder struct {
	classifier Classifier
	sinks      []Sink
	queue      chan classify.Request
	timeout    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Recorder. Call Work from one or more goroutines to drain it.
func New(classifier Classifier, sinks []Sink, opts Options, logger *slog.Logger) *Recorder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Recorder{
		classifier: classifier,
		sinks:      sinks,
		queue:      make(chan classify.Request, opts.QueueSize),
		timeout:    opts.Timeout,
		logger:     logger,
		now:        time.Now,
	}
}

// Record enqueues req and returns immediately. A full queue drops the
// observation.
func (r *Recorder) Record(req classify.Request) {
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = r.now()
	}
	select {
	case r.queue <- req:
	default:
		metrics.IngestDropped.Inc()
		r.logger.Warn("ingest: queue full, dropping observation", "path", req.Path)
	}
}

// Work drains the queue until ctx is cancelled.
func (r *Recorder) Work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-r.queue:
			r.process(ctx, req)
		}
	}
}

// Pending reports how many observations are waiting.
func (r *Recorder) Pending() int {
	return len(r.queue)
}

func (r *Recorder) process(ctx context.Context, req classify.Request) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rec := r.classifier.Classify(ctx, req)
	for _, s := range r.sinks {
		if err := s.Insert(ctx, rec); err != nil {
			metrics.SinkWrites.WithLabelValues(s.Name(), "error").Inc()
			r.logger.Error("ingest: sink write failed", "sink", s.Name(), "ip_hash", rec.Fingerprint, "err", err)
			continue
		}
		metrics.SinkWrites.WithLabelValues(s.Name(), "ok").Inc()
	}
}

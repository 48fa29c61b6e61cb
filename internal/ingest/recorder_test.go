package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ichi-a/geo-shock/internal/classify"
)

type stubClassifier struct{}

func (stubClassifier) Classify(_ context.Context, req classify.Request) classify.Record {
	return classify.Record{Fingerprint: "fp-" + req.Addr, Path: req.Path, Timestamp: req.ReceivedAt}
}

type memSink struct {
	name string
	err  error

	mu   sync.Mutex
	recs []classify.Record
}

func (s *memSink) Name() string { return s.name }

func (s *memSink) Insert(_ context.Context, r classify.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, r)
	return s.err
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

func TestRecorderWritesEverySink(t *testing.T) {
	good := &memSink{name: "good"}
	bad := &memSink{name: "bad", err: errors.New("boom")}
	rec := New(stubClassifier{}, []Sink{bad, good}, Options{QueueSize: 8}, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Work(ctx)

	rec.Record(classify.Request{Addr: "203.0.113.5", Path: "/a"})
	rec.Record(classify.Request{Addr: "203.0.113.6", Path: "/b"})

	require.Eventually(t, func() bool { return good.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, bad.count(), "a failing sink must not stop later sinks")
	assert.Equal(t, "fp-203.0.113.5", good.recs[0].Fingerprint)
	assert.False(t, good.recs[0].Timestamp.IsZero(), "receive time is stamped on enqueue")
}

func TestRecorderDropsWhenFull(t *testing.T) {
	sink := &memSink{name: "mem"}
	rec := New(stubClassifier{}, []Sink{sink}, Options{QueueSize: 1}, slog.New(slog.DiscardHandler))

	rec.Record(classify.Request{Path: "/1"})
	rec.Record(classify.Request{Path: "/2"})
	assert.Equal(t, 1, rec.Pending())
}

func TestRecorderKeepsReceiveTime(t *testing.T) {
	sink := &memSink{name: "mem"}
	rec := New(stubClassifier{}, []Sink{sink}, Options{}, slog.New(slog.DiscardHandler))
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	rec.Record(classify.Request{Path: "/x", ReceivedAt: at})
	rec.process(context.Background(), <-rec.queue)

	require.Equal(t, 1, sink.count())
	assert.Equal(t, at, sink.recs[0].Timestamp)
}

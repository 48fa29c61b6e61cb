package session

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ichi-a/geo-shock/internal/classify"
	"github.com/ichi-a/geo-shock/internal/db"
)

type fakeSource struct {
	records []classify.Record
	skipped int
	since   time.Time
	err     error
}

func (f *fakeSource) Query(_ context.Context, since time.Time, _ db.Filter) ([]classify.Record, int, error) {
	f.since = since
	return f.records, f.skipped, f.err
}

func testOptions() Options {
	return Options{
		Lookback:      7 * 24 * time.Hour,
		Gap:           30 * time.Minute,
		BatchGap:      time.Minute,
		LinkThreshold: 0.4,
		Links:         map[string][]string{"/": {"/articles"}},
	}
}

func sampleRecords() []classify.Record {
	probe := rec("scanner", 0, "/wp-login.php")
	probe.Malicious = true
	trap := rec("scraper", 2*time.Hour, "/hidden-trap/c3")
	trap.TrapHit = true
	return []classify.Record{
		probe,
		rec("reader", time.Hour, "/"),
		rec("reader", time.Hour+5*time.Minute, "/articles"),
		trap,
		rec("scraper", 2*time.Hour+10*time.Second, "/a"),
		rec("scraper", 2*time.Hour+20*time.Second, "/b"),
	}
}

func TestAnalyzerReport(t *testing.T) {
	src := &fakeSource{records: sampleRecords()}
	a := NewAnalyzer(src, testOptions(), slog.New(slog.DiscardHandler))
	now := t0.Add(3 * time.Hour)
	a.now = func() time.Time { return now }

	r, err := a.Report(context.Background())
	require.NoError(t, err)

	assert.Equal(t, now.Add(-7*24*time.Hour), src.since)
	assert.Equal(t, now, r.GeneratedAt)
	require.Len(t, r.Sessions, 3)
	assert.Equal(t, "scraper", r.Sessions[0].Fingerprint)
	assert.Equal(t, Batch, r.Sessions[0].Pattern)
	assert.Equal(t, LinkFollow, r.Sessions[1].Pattern)
	assert.Equal(t, Malicious, r.Sessions[2].Pattern)

	assert.Equal(t, 1, r.PatternCounts[Batch])
	assert.Equal(t, 1, r.PatternCounts[LinkFollow])
	assert.Equal(t, 1, r.PatternCounts[Malicious])
	assert.Equal(t, 0, r.PatternCounts[Wandering])
	assert.Equal(t, 1, r.MaliciousSessions)
	assert.Equal(t, 1, r.TrapSessions)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	a := NewAnalyzer(&fakeSource{}, testOptions(), slog.New(slog.DiscardHandler))
	records := sampleRecords()

	first := a.Analyze(records)
	second := a.Analyze(records)
	assert.Equal(t, first, second)
}

func TestAnalyzerReportQueryError(t *testing.T) {
	a := NewAnalyzer(&fakeSource{err: errors.New("down")}, testOptions(), slog.New(slog.DiscardHandler))
	_, err := a.Report(context.Background())
	assert.Error(t, err)
}

func TestAnalyzeEmpty(t *testing.T) {
	a := NewAnalyzer(&fakeSource{}, testOptions(), slog.New(slog.DiscardHandler))
	r := a.Analyze(nil)
	assert.NotNil(t, r.Sessions)
	assert.Empty(t, r.Sessions)
}

func TestAnalyzerReportCountsUndecodableRows(t *testing.T) {
	records := append(sampleRecords(), classify.Record{Path: "/no-visitor"})
	a := NewAnalyzer(&fakeSource{records: records, skipped: 2}, testOptions(), slog.New(slog.DiscardHandler))
	a.now = func() time.Time { return t0.Add(3 * time.Hour) }

	r, err := a.Report(context.Background())
	require.NoError(t, err)
	assert.Len(t, r.Sessions, 3)
	assert.Equal(t, 3, r.SkippedRecords, "undecodable rows plus records without a visitor")
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ichi-a/geo-shock/internal/classify"
	"github.com/ichi-a/geo-shock/internal/db"
	"github.com/ichi-a/geo-shock/internal/metrics"
)

// Source reads stored records along with a count of stored rows it could
// not decode. Results may come back in any order.
type Source interface {
	Query(ctx context.Context, since time.Time, f db.Filter) ([]classify.Record, int, error)
}

// Options configure an Analyzer.
type Options struct {
	Lookback      time.Duration
	Gap           time.Duration
	BatchGap      time.Duration
	LinkThreshold float64
	Links         map[string][]string
}

// Report is the crawler-behavior view over the lookback window.
type Report struct {
	GeneratedAt       time.Time       `json:"generated_at"`
	Since             time.Time       `json:"since"`
	Sessions          []Session       `json:"sessions"`
	PatternCounts     map[Pattern]int `json:"pattern_counts"`
	MaliciousSessions int             `json:"malicious_sessions"`
	TrapSessions      int             `json:"honeypot_sessions"`
	SkippedRecords    int             `json:"skipped_records"`
}

// Analyzer turns stored records into a session report.
type Analyzer struct {
	source     Source
	builder    Builder
	classifier Classifier
	lookback   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewAnalyzer wires a record source to the session builder and classifier.
func NewAnalyzer(source Source, opts Options, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		source:  source,
		builder: Builder{Gap: opts.Gap},
		classifier: Classifier{
			BatchGap:      opts.BatchGap,
			LinkThreshold: opts.LinkThreshold,
			Links:         NewLinkGraph(opts.Links),
		},
		lookback: opts.Lookback,
		logger:   logger,
		now:      time.Now,
	}
}

// Report queries the lookback window and analyzes it.
func (a *Analyzer) Report(ctx context.Context) (*Report, error) {
	now := a.now()
	since := now.Add(-a.lookback)
	records, unreadable, err := a.source.Query(ctx, since, db.Filter{})
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	if unreadable > 0 {
		a.logger.Warn("session: dropped undecodable records", "count", unreadable)
	}
	r := a.Analyze(records)
	r.SkippedRecords += unreadable
	r.GeneratedAt = now
	r.Since = since
	return r, nil
}

// Analyze builds and classifies sessions from records already in hand. The
// result depends only on the records.
func (a *Analyzer) Analyze(records []classify.Record) *Report {
	sessions, skipped := a.builder.Build(records)
	if skipped > 0 {
		a.logger.Warn("session: skipped unusable records", "count", skipped)
	}

	r := &Report{
		Sessions:       sessions,
		PatternCounts:  make(map[Pattern]int, len(Patterns)),
		SkippedRecords: skipped,
	}
	for _, p := range Patterns {
		r.PatternCounts[p] = 0
	}
	for i := range r.Sessions {
		s := &r.Sessions[i]
		s.Pattern = a.classifier.Classify(s.Paths, s.Timestamps, s.Malicious)
		r.PatternCounts[s.Pattern]++
		metrics.SessionsBuilt.WithLabelValues(string(s.Pattern)).Inc()
		if s.Malicious {
			r.MaliciousSessions++
		}
		if s.TrapHits > 0 {
			r.TrapSessions++
		}
	}
	if r.Sessions == nil {
		r.Sessions = []Session{}
	}
	return r
}

package classify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ichi-a/geo-shock/internal/fingerprint"
	"github.com/ichi-a/geo-shock/internal/metrics"
)

// Verifier confirms a claimed crawler identity for an address. Implementations
// must be bounded in time and answer false on any failure.
type Verifier interface {
	Supports(identity string) bool
	Verify(ctx context.Context, identity, addr string) bool
}

// Pipeline combines the agent, origin and path classifiers and the optional
// identity verifier into a single per-request decision:
// agent match → origin corroboration → malicious path override → verification.
type Pipeline struct {
	version  int
	agents   *AgentClassifier
	origins  *OriginTable
	paths    *PathClassifier
	verifier Verifier
	salt     string
	logger   *slog.Logger
	now      func() time.Time
}

// NewPipeline compiles rules into a pipeline. verifier may be nil.
func NewPipeline(rules *Rules, salt string, verifier Verifier, logger *slog.Logger) (*Pipeline, error) {
	agents, err := NewAgentClassifier(rules.Agents)
	if err != nil {
		return nil, err
	}
	paths, err := NewPathClassifier(rules.Paths, rules.Traps)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		version:  rules.Version,
		agents:   agents,
		origins:  NewOriginTable(rules.Origins),
		paths:    paths,
		verifier: verifier,
		salt:     salt,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Origins exposes the origin table for reporting.
func (p *Pipeline) Origins() *OriginTable {
	return p.origins
}

// Classify produces a best-effort record for req. It never fails: missing
// fields simply leave the record unclassified.
func (p *Pipeline) Classify(ctx context.Context, req Request) Record {
	addr := strings.TrimSpace(req.Addr)
	if addr == "" {
		addr = fingerprint.Unknown
	}

	rec := Record{
		ID:          uuid.New(),
		Timestamp:   req.ReceivedAt,
		Fingerprint: fingerprint.Hash(addr, p.salt),
		UserAgent:   req.UserAgent,
		Path:        req.Path,
		OriginID:    NormalizeASN(req.OriginID),
		Headers:     req.Headers,
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = p.now()
	}

	if label, ok := p.agents.Classify(req.UserAgent); ok {
		rec.Label = label
		rec.Confidence = rec.Confidence.Raise(IdentityMatch)
	}

	origin, known := p.origins.Lookup(rec.OriginID)
	if known && origin.Corroborates() {
		rec.Confidence = rec.Confidence.Raise(OriginCorroborated)
		if !rec.Classified() {
			rec.Label = "Unverified/" + origin.Org
		}
	}

	rec.TrapHit = req.TrapHit || p.paths.IsTrap(req.Path)

	if category, bad := p.paths.Classify(req.Path); bad {
		rec.Malicious = true
		rec.Label = category
		if known {
			rec.Label = fmt.Sprintf("%s-%s", origin.Org, category)
		}
		rec.Confidence = rec.Confidence.Raise(Verified)
	}

	if !rec.Malicious && p.verifier != nil && p.verifier.Supports(rec.Label) && net.ParseIP(addr) != nil {
		if p.verifier.Verify(ctx, rec.Label, addr) {
			rec.Confidence = rec.Confidence.Raise(Verified)
		}
	}

	metrics.RequestsClassified.WithLabelValues(metricLabel(rec), rec.Confidence.String()).Inc()
	p.logger.Debug("classify: request classified",
		"fingerprint", rec.Fingerprint,
		"label", rec.Label,
		"confidence", int(rec.Confidence),
		"malicious", rec.Malicious,
		"rules_version", p.version,
	)
	return rec
}

// metricLabel keeps label cardinality bounded: composed malicious labels and
// origin fallbacks collapse into their families.
func metricLabel(rec Record) string {
	switch {
	case !rec.Classified():
		return "none"
	case rec.Malicious:
		return "malicious"
	case strings.HasPrefix(rec.Label, "Unverified/"):
		return "unverified_origin"
	}
	return rec.Label
}

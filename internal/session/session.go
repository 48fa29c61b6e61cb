// Package session rebuilds visitor sessions from stored request records and
// labels each with a browsing pattern.
package session

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/ichi-a/geo-shock/internal/classify"
)

// Session is a maximal run of one visitor's requests with no gap above the
// builder's threshold. Sessions are derived on read and never stored.
type Session struct {
	Fingerprint     string      `json:"ip_hash"`
	Label           string      `json:"bot_type,omitempty"`
	OriginID        string      `json:"asn,omitempty"`
	UserAgent       string      `json:"ua,omitempty"`
	Paths           []string    `json:"paths"`
	Timestamps      []time.Time `json:"timestamps"`
	Pattern         Pattern     `json:"pattern"`
	Malicious       bool        `json:"is_malicious"`
	TrapHits        int         `json:"honeypot_hits"`
	DurationMinutes int         `json:"duration_min"`
}

// First returns the session's earliest timestamp.
func (s Session) First() time.Time { return s.Timestamps[0] }

// Last returns the session's latest timestamp.
func (s Session) Last() time.Time { return s.Timestamps[len(s.Timestamps)-1] }

// Builder groups records into sessions.
type Builder struct {
	Gap time.Duration
}

// Build splits records into sessions per fingerprint. Records without a
// timestamp or fingerprint cannot be placed and are skipped; the second return
// value counts them. Sessions come back most recent activity first.
func (b Builder) Build(records []classify.Record) ([]Session, int) {
	skipped := 0
	byVisitor := make(map[string][]classify.Record)
	for _, r := range records {
		if r.Timestamp.IsZero() || r.Fingerprint == "" {
			skipped++
			continue
		}
		byVisitor[r.Fingerprint] = append(byVisitor[r.Fingerprint], r)
	}

	var sessions []Session
	for _, recs := range byVisitor {
		slices.SortStableFunc(recs, func(a, b classify.Record) int {
			if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
				return c
			}
			return cmp.Compare(a.ID.String(), b.ID.String())
		})

		start := 0
		for i := 1; i <= len(recs); i++ {
			if i < len(recs) && recs[i].Timestamp.Sub(recs[i-1].Timestamp) <= b.Gap {
				continue
			}
			sessions = append(sessions, newSession(recs[start:i]))
			start = i
		}
	}

	slices.SortFunc(sessions, func(a, b Session) int {
		if c := b.Last().Compare(a.Last()); c != 0 {
			return c
		}
		return cmp.Compare(a.Fingerprint, b.Fingerprint)
	})
	return sessions, skipped
}

func newSession(recs []classify.Record) Session {
	first := recs[0]
	s := Session{
		Fingerprint: first.Fingerprint,
		Label:       first.Label,
		OriginID:    first.OriginID,
		UserAgent:   first.UserAgent,
		Paths:       make([]string, 0, len(recs)),
		Timestamps:  make([]time.Time, 0, len(recs)),
	}
	for _, r := range recs {
		s.Paths = append(s.Paths, r.Path)
		s.Timestamps = append(s.Timestamps, r.Timestamp)
		s.Malicious = s.Malicious || r.Malicious
		if r.TrapHit {
			s.TrapHits++
		}
	}
	s.DurationMinutes = int(math.Round(s.Last().Sub(s.First()).Minutes()))
	return s
}

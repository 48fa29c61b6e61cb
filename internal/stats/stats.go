// Package stats computes the public aggregates and the admin level counts.
package stats

import (
	"sort"
	"time"

	"github.com/ichi-a/geo-shock/internal/classify"
)

// HumanLabel stands in for records without a bot label.
const HumanLabel = "Human/Unknown"

// OriginCount is one row of the per-network breakdown.
type OriginCount struct {
	ASN      string `json:"asn"`
	Org      string `json:"org,omitempty"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Summary aggregates one reporting window.
type Summary struct {
	Since        time.Time      `json:"since"`
	BotCounts    map[string]int `json:"bot_counts"`
	Origins      []OriginCount  `json:"asn_counts"`
	HoneypotHits int            `json:"honeypot_hits"`
	TotalBots    int            `json:"total_bots"`
	Total        int            `json:"total"`
}

// Summarize counts records at or after since. Origins are ordered by count
// descending, then ASN.
func Summarize(records []classify.Record, since time.Time, origins *classify.OriginTable) Summary {
	s := Summary{Since: since, BotCounts: map[string]int{}}
	byASN := map[string]int{}
	for _, r := range records {
		if r.Timestamp.Before(since) {
			continue
		}
		s.Total++
		label := r.Label
		if label == "" {
			label = HumanLabel
		} else {
			s.TotalBots++
		}
		s.BotCounts[label]++
		if r.OriginID != "" {
			byASN[classify.NormalizeASN(r.OriginID)]++
		}
		if r.TrapHit {
			s.HoneypotHits++
		}
	}

	s.Origins = make([]OriginCount, 0, len(byASN))
	for asn, n := range byASN {
		oc := OriginCount{ASN: asn, Category: Category(classify.TrustOther), Count: n}
		if o, ok := origins.Lookup(asn); ok {
			oc.Org = o.Org
			oc.Category = Category(o.Trust)
		}
		s.Origins = append(s.Origins, oc)
	}
	sort.Slice(s.Origins, func(i, j int) bool {
		if s.Origins[i].Count != s.Origins[j].Count {
			return s.Origins[i].Count > s.Origins[j].Count
		}
		return s.Origins[i].ASN < s.Origins[j].ASN
	})
	return s
}

// Category is the public name of a trust class.
func Category(t classify.Trust) string {
	switch t {
	case classify.TrustCrawler:
		return "ai"
	case classify.TrustCloud:
		return "cloud"
	case classify.TrustScraper:
		return "scraper"
	default:
		return "other"
	}
}

// WeekStart is midnight of the Sunday on or before now, in now's location.
func WeekStart(now time.Time) time.Time {
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// MonthStart is midnight on the first of now's month.
func MonthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// Levels are the admin log-view counters.
type Levels struct {
	Total         int                         `json:"total"`
	ConfirmedBots int                         `json:"confirmed_bots"`
	Unknown       int                         `json:"unknown"`
	HoneypotHits  int                         `json:"honeypot_hits"`
	ByLevel       map[classify.Confidence]int `json:"by_level"`
	BotCounts     map[string]int              `json:"bot_counts"`
}

// CountLevels tallies records by confidence and label.
func CountLevels(records []classify.Record) Levels {
	l := Levels{ByLevel: map[classify.Confidence]int{}, BotCounts: map[string]int{}}
	for c := classify.Unclassified; c <= classify.Verified; c++ {
		l.ByLevel[c] = 0
	}
	for _, r := range records {
		l.Total++
		l.ByLevel[r.Confidence]++
		label := r.Label
		if label == "" {
			label = HumanLabel
		}
		l.BotCounts[label]++
		if r.TrapHit {
			l.HoneypotHits++
		}
		if r.Confidence >= classify.IdentityMatch {
			l.ConfirmedBots++
		} else {
			l.Unknown++
		}
	}
	return l
}

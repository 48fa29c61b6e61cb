package session

import (
	"strings"
	"time"
)

// Pattern is the browsing behavior of one session.
type Pattern string

const (
	Malicious  Pattern = "MALICIOUS"
	Single     Pattern = "SINGLE"
	Batch      Pattern = "BATCH"
	LinkFollow Pattern = "LINK_FOLLOW"
	Sequential Pattern = "SEQUENTIAL"
	Wandering  Pattern = "WANDERING"
)

// Patterns lists every pattern in decision order.
var Patterns = []Pattern{Malicious, Single, Batch, LinkFollow, Sequential, Wandering}

const rootSection = "root"

// Classifier assigns patterns. Rules are checked in a fixed order and the
// first one that fires decides.
type Classifier struct {
	BatchGap      time.Duration // gaps below this count as rapid-fire
	LinkThreshold float64       // share of transitions that must follow links
	Links         LinkGraph
}

// Classify labels a session from its time-ordered paths and timestamps.
func (c Classifier) Classify(paths []string, times []time.Time, malicious bool) Pattern {
	if malicious {
		return Malicious
	}
	if len(paths) <= 1 {
		return Single
	}

	rapid := 0
	for i := 1; i < len(times); i++ {
		if times[i].Sub(times[i-1]) < c.BatchGap {
			rapid++
		}
	}
	if rapid >= 2 {
		return Batch
	}

	followed := 0
	for i := 1; i < len(paths); i++ {
		if c.Links.Has(paths[i-1], paths[i]) {
			followed++
		}
	}
	if followed > 0 && float64(followed)/float64(len(paths)-1) > c.LinkThreshold {
		return LinkFollow
	}

	sections := make(map[string]struct{})
	for _, p := range paths {
		sections[Section(p)] = struct{}{}
	}
	switch {
	case len(sections) <= 2 && len(paths) >= 3:
		return Sequential
	case len(sections) >= 3:
		return Wandering
	}
	return Sequential
}

// Section returns the first path segment, or "root" for the site root.
func Section(path string) string {
	path = stripQuery(path)
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return rootSection
	}
	return path
}

func stripQuery(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}

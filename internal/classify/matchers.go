package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// compileFold compiles a rule pattern case-insensitively.
func compileFold(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`(?i)` + pattern)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", pattern, err)
	}
	return re, nil
}

type agentMatcher struct {
	re    *regexp.Regexp
	label string
}

// AgentClassifier maps a user-agent string to a canonical bot label.
// Rules are tried in order and the first match wins.
type AgentClassifier struct {
	rules []agentMatcher
}

// NewAgentClassifier compiles the given rules, keeping their order.
func NewAgentClassifier(rules []AgentRule) (*AgentClassifier, error) {
	c := &AgentClassifier{rules: make([]agentMatcher, 0, len(rules))}
	for _, r := range rules {
		re, err := compileFold(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("agent rule %s: %w", r.Label, err)
		}
		c.rules = append(c.rules, agentMatcher{re: re, label: r.Label})
	}
	return c, nil
}

// Classify returns the label of the first matching rule.
func (c *AgentClassifier) Classify(ua string) (string, bool) {
	ua = strings.TrimSpace(ua)
	for _, r := range c.rules {
		if r.re.MatchString(ua) {
			return r.label, true
		}
	}
	return "", false
}

type pathMatcher struct {
	re       *regexp.Regexp
	category string
}

// PathClassifier flags request paths that look like attack or recon probes,
// and recognizes concealed trap links.
type PathClassifier struct {
	rules []pathMatcher
	traps []string
}

// NewPathClassifier compiles the path rules and lower-cases the trap markers.
func NewPathClassifier(rules []PathRule, traps []string) (*PathClassifier, error) {
	c := &PathClassifier{rules: make([]pathMatcher, 0, len(rules))}
	for _, r := range rules {
		re, err := compileFold(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("path rule %s: %w", r.Category, err)
		}
		c.rules = append(c.rules, pathMatcher{re: re, category: r.Category})
	}
	for _, t := range traps {
		if t != "" {
			c.traps = append(c.traps, strings.ToLower(t))
		}
	}
	return c, nil
}

// Classify returns the category of the first rule matching path.
func (c *PathClassifier) Classify(path string) (string, bool) {
	for _, r := range c.rules {
		if r.re.MatchString(path) {
			return r.category, true
		}
	}
	return "", false
}

// IsTrap reports whether path contains one of the trap markers.
func (c *PathClassifier) IsTrap(path string) bool {
	lp := strings.ToLower(path)
	for _, t := range c.traps {
		if strings.Contains(lp, t) {
			return true
		}
	}
	return false
}

// OriginTable resolves autonomous-system numbers to organizations.
type OriginTable struct {
	byASN map[string]Origin
}

// NewOriginTable indexes origins by normalized ASN. Later rows win on duplicates.
func NewOriginTable(origins []Origin) *OriginTable {
	t := &OriginTable{byASN: make(map[string]Origin, len(origins))}
	for _, o := range origins {
		key := NormalizeASN(o.ASN)
		if key == "" {
			continue
		}
		o.ASN = key
		if o.Trust == "" {
			o.Trust = TrustOther
		}
		t.byASN[key] = o
	}
	return t
}

// Lookup returns the origin for id, which may carry an "AS" prefix.
func (t *OriginTable) Lookup(id string) (Origin, bool) {
	o, ok := t.byASN[NormalizeASN(id)]
	return o, ok
}

// Corroborates reports whether traffic from o lends weight to a bot claim.
func (o Origin) Corroborates() bool {
	return o.Trust != "" && o.Trust != TrustOther
}

// NormalizeASN trims whitespace and a leading "AS" (any case).
func NormalizeASN(id string) string {
	id = strings.TrimSpace(id)
	if len(id) >= 2 && strings.EqualFold(id[:2], "as") {
		id = id[2:]
	}
	return strings.TrimSpace(id)
}

package session

import "strings"

// LinkGraph records which pages link to which.
type LinkGraph map[string]map[string]struct{}

// NewLinkGraph builds a graph from an adjacency list.
func NewLinkGraph(adj map[string][]string) LinkGraph {
	g := make(LinkGraph, len(adj))
	for from, targets := range adj {
		set := make(map[string]struct{}, len(targets))
		for _, to := range targets {
			set[normalizePath(to)] = struct{}{}
		}
		g[normalizePath(from)] = set
	}
	return g
}

// Has reports whether from links to to. Query strings and trailing slashes
// are ignored.
func (g LinkGraph) Has(from, to string) bool {
	targets, ok := g[normalizePath(from)]
	if !ok {
		return false
	}
	_, ok = targets[normalizePath(to)]
	return ok
}

func normalizePath(p string) string {
	p = stripQuery(p)
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

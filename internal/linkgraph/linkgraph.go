// Package linkgraph extracts the site's internal link structure so session
// analysis can tell link-following crawlers from the rest.
package linkgraph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"
)

const maxPageBytes = 10 << 20

// Extract returns the same-host paths linked from the page at pageURL, sorted
// and without duplicates. Links into excluded path prefixes (trap pages) and
// links back to the page itself are dropped.
func Extract(r io.Reader, pageURL *url.URL, exclude []string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	self := cleanPath(pageURL.Path)
	seen := map[string]struct{}{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		target := pageURL.ResolveReference(ref)
		if target.Scheme != "http" && target.Scheme != "https" {
			return
		}
		if !strings.EqualFold(target.Host, pageURL.Host) {
			return
		}
		p := cleanPath(target.Path)
		if p == self || excluded(p, exclude) {
			return
		}
		seen[p] = struct{}{}
	})

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func excluded(p string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(p+"/", m) {
			return true
		}
	}
	return false
}

// Crawler fetches a fixed list of pages from one site.
type Crawler struct {
	client  *http.Client
	exclude []string
	logger  *slog.Logger
}

// NewCrawler creates a Crawler. exclude lists trap markers to leave out.
func NewCrawler(exclude []string, logger *slog.Logger) *Crawler {
	return &Crawler{
		client:  &http.Client{Timeout: 15 * time.Second},
		exclude: exclude,
		logger:  logger,
	}
}

// Build fetches every page under base and returns the adjacency map keyed by
// page path. Pages that fail to load are logged and left out.
func (c *Crawler) Build(ctx context.Context, base *url.URL, pages []string) (map[string][]string, error) {
	graph := make(map[string][]string, len(pages))
	for _, page := range pages {
		ref, err := url.Parse(page)
		if err != nil {
			return nil, fmt.Errorf("parse page %q: %w", page, err)
		}
		pageURL := base.ResolveReference(ref)
		links, err := c.fetch(ctx, pageURL)
		if err != nil {
			c.logger.Warn("linkgraph: fetch failed", "page", pageURL.String(), "err", err)
			continue
		}
		graph[cleanPath(pageURL.Path)] = links
	}
	return graph, nil
}

func (c *Crawler) fetch(ctx context.Context, pageURL *url.URL) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return Extract(io.LimitReader(resp.Body, maxPageBytes), resp.Request.URL, c.exclude)
}

// WriteYAML writes graph as a rules overlay with a single links section.
func WriteYAML(w io.Writer, graph map[string][]string) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(struct {
		Links map[string][]string `yaml:"links"`
	}{graph}); err != nil {
		return fmt.Errorf("encode link graph: %w", err)
	}
	return enc.Close()
}

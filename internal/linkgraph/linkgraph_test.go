package linkgraph

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ichi-a/geo-shock/internal/classify"
)

const page = `<html><body>
<a href="/articles">Articles</a>
<a href="/articles/">Articles again</a>
<a href="what-is-geo">Relative</a>
<a href="https://other.example/x">Elsewhere</a>
<a href="mailto:a@b.c">Mail</a>
<a href="/hidden-trap/">Trap</a>
<a href="/articles/what-is-aeo?ref=nav#top">Query</a>
<a href="/articles/ldo">Self</a>
</body></html>`

func TestExtract(t *testing.T) {
	pageURL, _ := url.Parse("https://geo.example/articles/ldo")
	links, err := Extract(strings.NewReader(page), pageURL, []string{"/hidden-trap/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/articles", "/articles/what-is-aeo", "/articles/what-is-geo"}, links)
}

func TestCrawlerBuildAndWrite(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `<a href="/articles">a</a><a href="/terms">t</a>`)
	})
	mux.HandleFunc("/articles", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `<a href="/articles/what-is-geo">g</a><a href="/">home</a>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	base, _ := url.Parse(srv.URL)
	c := NewCrawler(nil, slog.New(slog.DiscardHandler))
	graph, err := c.Build(context.Background(), base, []string{"/", "/articles", "/missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"/":         {"/articles", "/terms"},
		"/articles": {"/", "/articles/what-is-geo"},
	}, graph)

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, graph))

	path := filepath.Join(t.TempDir(), "links.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	rules, err := classify.LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, graph, rules.Links)
	assert.NotEmpty(t, rules.Agents, "other sections keep their defaults")
}

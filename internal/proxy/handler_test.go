package proxy

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyForwards(t *testing.T) {
	var seen *http.Request
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, "hello "+r.URL.Path)
	}))
	defer upstream.Close()

	h, err := NewHandler(upstream.URL+"/base/", slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "http://geo.example/articles?x=1", nil)
	req.Header.Set("X-Real-IP", "198.51.100.9")
	req.Header.Set("Accept-Language", "ja")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-Upstream"))
	assert.Equal(t, "hello /base/articles", rec.Body.String())

	require.NotNil(t, seen)
	assert.Equal(t, "x=1", seen.URL.RawQuery)
	assert.Equal(t, "geo.example", seen.Host)
	assert.Equal(t, "198.51.100.9", seen.Header.Get("X-Forwarded-For"))
	assert.Equal(t, "ja", seen.Header.Get("Accept-Language"))
}

func TestProxyDoesNotFollowRedirects(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer upstream.Close()

	h, err := NewHandler(upstream.URL, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/old", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/elsewhere", rec.Header().Get("Location"))
}

func TestProxyUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	h, err := NewHandler(url, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestNewHandlerRejectsRelative(t *testing.T) {
	_, err := NewHandler("content:3000", slog.New(slog.DiscardHandler))
	assert.Error(t, err)
	_, err = NewHandler("/just/a/path", slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}

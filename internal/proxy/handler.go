// Package proxy forwards tracked page requests to the content site.
package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ichi-a/geo-shock/internal/tracker"
)

var hopHeaders = map[string]bool{
	"host":              true,
	"connection":        true,
	"transfer-encoding": true,
	"content-length":    true,
	"keep-alive":        true,
	"upgrade":           true,
}

// Handler forwards every request it receives to one upstream origin.
type Handler struct {
	upstream *url.URL
	client   *http.Client
	logger   *slog.Logger
}

// NewHandler parses upstream (scheme and host, optional base path).
func NewHandler(upstream string, logger *slog.Logger) (*Handler, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("parse upstream: %q is not an absolute http(s) URL", upstream)
	}
	return &Handler{
		upstream: u,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
			// Redirects go back to the visitor untouched.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}, nil
}

// ServeHTTP proxies r and streams the upstream response back.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := *h.upstream
	target.Path = strings.TrimSuffix(h.upstream.Path, "/") + r.URL.Path
	target.RawQuery = r.URL.RawQuery

	proxyReq, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		jsonError(w, "failed to create upstream request", http.StatusBadGateway)
		return
	}
	proxyReq.ContentLength = r.ContentLength

	for key, values := range r.Header {
		if hopHeaders[strings.ToLower(key)] {
			continue
		}
		for _, v := range values {
			proxyReq.Header.Add(key, v)
		}
	}
	proxyReq.Host = r.Host
	proxyReq.Header.Set("X-Forwarded-For", tracker.ClientAddr(r))
	proxyReq.Header.Set("X-Forwarded-Host", r.Host)
	if r.TLS != nil {
		proxyReq.Header.Set("X-Forwarded-Proto", "https")
	} else {
		proxyReq.Header.Set("X-Forwarded-Proto", "http")
	}

	resp, err := h.client.Do(proxyReq)
	if err != nil {
		h.logger.Warn("proxy: upstream unreachable", "upstream", h.upstream.Host, "err", err)
		jsonError(w, "could not reach upstream", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if hopHeaders[strings.ToLower(key)] {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

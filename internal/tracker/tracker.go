// Package tracker observes page requests and hands them to the recorder
// without delaying the response.
package tracker

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ichi-a/geo-shock/internal/classify"
	"github.com/ichi-a/geo-shock/internal/fingerprint"
	"github.com/ichi-a/geo-shock/internal/netguard"
)

// ASNHeader carries the client's autonomous-system number when the edge
// provides it.
const ASNHeader = "X-Vercel-IP-AS-Number"

// CapturedHeaders are copied into the record, keyed in lower case.
var CapturedHeaders = []string{
	"accept",
	"accept-language",
	"accept-encoding",
	"referer",
	"sec-ch-ua",
	"sec-fetch-site",
	"x-vercel-ip-as-number",
	"x-vercel-ip-country",
	"cache-control",
}

// Recorder accepts observations. It must not block.
type Recorder interface {
	Record(req classify.Request)
}

// ASNSource resolves an address to an ASN, or "" when unknown.
type ASNSource interface {
	Lookup(addr string) string
}

// Options configure the middleware.
type Options struct {
	Skip  []string
	Traps []string
	ASN   ASNSource
}

// Tracker is the observation middleware.
type Tracker struct {
	recorder Recorder
	skip     []string
	traps    []string
	asn      ASNSource
	now      func() time.Time
}

// New creates a Tracker feeding recorder.
func New(recorder Recorder, opts Options) *Tracker {
	return &Tracker{
		recorder: recorder,
		skip:     opts.Skip,
		traps:    opts.Traps,
		asn:      opts.ASN,
		now:      time.Now,
	}
}

// Middleware records the request, then serves it.
func (t *Tracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.skipped(r.URL.Path) {
			t.recorder.Record(t.observe(r))
		}
		next.ServeHTTP(w, r)
	})
}

func (t *Tracker) skipped(path string) bool {
	for _, p := range t.skip {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (t *Tracker) observe(r *http.Request) classify.Request {
	addr := ClientAddr(r)
	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	origin := strings.TrimSpace(r.Header.Get(ASNHeader))
	if origin == "" && t.asn != nil && netguard.IsPublic(addr) {
		origin = t.asn.Lookup(addr)
	}

	return classify.Request{
		Addr:       addr,
		UserAgent:  r.UserAgent(),
		Path:       path,
		OriginID:   origin,
		TrapHit:    t.isTrap(r.URL.Path),
		Headers:    captureHeaders(r.Header),
		ReceivedAt: t.now(),
	}
}

func (t *Tracker) isTrap(path string) bool {
	for _, m := range t.traps {
		if strings.Contains(path, m) {
			return true
		}
	}
	return false
}

// ClientAddr returns the first X-Forwarded-For entry, then X-Real-IP, then
// the connection's remote host, then "unknown".
func ClientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}
	return fingerprint.Unknown
}

func captureHeaders(h http.Header) map[string]string {
	out := make(map[string]string)
	for _, name := range CapturedHeaders {
		if v := h.Get(name); v != "" {
			out[name] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

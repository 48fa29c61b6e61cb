package handlers

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/ichi-a/geo-shock/internal/classify"
	"github.com/ichi-a/geo-shock/internal/ratelimit"
	"github.com/ichi-a/geo-shock/internal/tracker"
)

const maxLogBody = 64 << 10

// IngestHandler accepts observations posted by an edge middleware.
type IngestHandler struct {
	recorder tracker.Recorder
	limiter  *ratelimit.Limiter
	key      ratelimit.KeyFunc
	traps    []string
	logger   *slog.Logger
}

// NewIngestHandler creates an IngestHandler. limiter may be nil. key picks the
// rate-limit bucket and defaults to PeerAddr.
func NewIngestHandler(recorder tracker.Recorder, limiter *ratelimit.Limiter, key ratelimit.KeyFunc, traps []string, logger *slog.Logger) *IngestHandler {
	if key == nil {
		key = PeerAddr
	}
	return &IngestHandler{recorder: recorder, limiter: limiter, key: key, traps: traps, logger: logger}
}

// PeerAddr is the host of the connection's remote address. Forwarding
// headers are ignored.
func PeerAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ClientKey returns the rate-limit key function. Forwarding headers are only
// honored when the server sits behind a trusted proxy.
func ClientKey(trustProxy bool) ratelimit.KeyFunc {
	if trustProxy {
		return tracker.ClientAddr
	}
	return PeerAddr
}

type logRequest struct {
	IP         string            `json:"ip"`
	UA         string            `json:"ua"`
	Path       string            `json:"path"`
	ASN        *string           `json:"asn"`
	IsHoneypot bool              `json:"is_honeypot"`
	Headers    map[string]string `json:"headers_json"`
}

// Log handles POST /api/log.
func (h *IngestHandler) Log(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.limiter != nil && h.limiter.Check(w, r, "log:"+h.key(r)) {
		return
	}

	var body logRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLogBody)).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.IP) == "" || body.Path == "" {
		jsonError(w, "missing required fields", http.StatusBadRequest)
		return
	}

	req := classify.Request{
		Addr:      strings.TrimSpace(body.IP),
		UserAgent: body.UA,
		Path:      body.Path,
		TrapHit:   body.IsHoneypot || h.isTrap(body.Path),
		Headers:   body.Headers,
	}
	if body.ASN != nil {
		req.OriginID = *body.ASN
	}
	h.recorder.Record(req)
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

func (h *IngestHandler) isTrap(path string) bool {
	for _, m := range h.traps {
		if strings.Contains(path, m) {
			return true
		}
	}
	return false
}

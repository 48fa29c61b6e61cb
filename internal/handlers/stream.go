package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ichi-a/geo-shock/internal/sse"
)

const streamHydrate = 20

// StreamHandler serves the live access-log stream as server-sent events.
type StreamHandler struct {
	hub       *sse.Hub
	store     Store
	keepalive time.Duration
	logger    *slog.Logger
}

// NewStreamHandler creates a StreamHandler.
func NewStreamHandler(hub *sse.Hub, store Store, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, store: store, keepalive: 30 * time.Second, logger: logger}
}

// HandleSSE handles GET /api/admin/stream. It sends recent records oldest
// first, then live events with periodic keepalives.
func (sh *StreamHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, cancel := sh.hub.Subscribe(sse.TopicLogs)
	defer cancel()

	recent, err := sh.store.Recent(r.Context(), streamHydrate)
	if err != nil {
		sh.logger.Warn("stream: load recent logs failed", "err", err)
	}
	for i := len(recent) - 1; i >= 0; i-- {
		data, _ := json.Marshal(recent[i])
		fmt.Fprintf(w, "event: log\ndata: %s\n\n", data)
	}
	flusher.Flush()

	keepalive := time.NewTicker(sh.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

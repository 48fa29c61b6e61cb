package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger checks a backing service.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Ping handles GET /ping. It answers pong while the database is reachable and
// 503 otherwise.
func Ping(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			logger.Warn("handlers: database ping failed", "err", err)
			jsonError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("pong"))
	}
}

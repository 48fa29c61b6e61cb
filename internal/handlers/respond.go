// Package handlers holds the HTTP API: edge ingestion, public stats and the
// admin views.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ichi-a/geo-shock/internal/classify"
	"github.com/ichi-a/geo-shock/internal/db"
)

// Store is the read side of the access log.
type Store interface {
	Query(ctx context.Context, since time.Time, f db.Filter) ([]classify.Record, int, error)
	Recent(ctx context.Context, limit int) ([]classify.Record, error)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ichi-a/geo-shock/internal/classify"
	"github.com/ichi-a/geo-shock/internal/db"
	"github.com/ichi-a/geo-shock/internal/stats"
)

// StatsHandler serves the public aggregates. Raw records are never exposed.
type StatsHandler struct {
	store   Store
	origins *classify.OriginTable
	loc     *time.Location
	logger  *slog.Logger
	now     func() time.Time
}

// NewStatsHandler creates a StatsHandler. Windows start at midnight in loc.
func NewStatsHandler(store Store, origins *classify.OriginTable, loc *time.Location, logger *slog.Logger) *StatsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &StatsHandler{store: store, origins: origins, loc: loc, logger: logger, now: time.Now}
}

type statsResponse struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Week        stats.Summary `json:"week"`
	Month       stats.Summary `json:"month"`
}

// Stats handles GET /api/stats.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	now := h.now().In(h.loc)
	week, month := stats.WeekStart(now), stats.MonthStart(now)
	since := month
	if week.Before(since) {
		since = week
	}

	records, skipped, err := h.store.Query(r.Context(), since, db.Filter{})
	if err != nil {
		h.logger.Error("handlers: load stats failed", "err", err)
		jsonError(w, "failed to load stats", http.StatusInternalServerError)
		return
	}
	if skipped > 0 {
		h.logger.Warn("handlers: stats skipped malformed records", "count", skipped)
	}
	writeJSON(w, http.StatusOK, statsResponse{
		GeneratedAt: now,
		Week:        stats.Summarize(records, week, h.origins),
		Month:       stats.Summarize(records, month, h.origins),
	})
}

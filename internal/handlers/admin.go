package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ichi-a/geo-shock/internal/classify"
	"github.com/ichi-a/geo-shock/internal/session"
	"github.com/ichi-a/geo-shock/internal/stats"
)

const (
	defaultLogLimit = 300
	maxLogLimit     = 1000
)

// Reporter builds the crawler session report.
type Reporter interface {
	Report(ctx context.Context) (*session.Report, error)
}

// AdminHandler serves the token-guarded views.
type AdminHandler struct {
	store    Store
	reporter Reporter
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(store Store, reporter Reporter, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{store: store, reporter: reporter, logger: logger}
}

// Crawlers handles GET /api/admin/crawlers.
func (h *AdminHandler) Crawlers(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.Report(r.Context())
	if err != nil {
		h.logger.Error("handlers: crawler report failed", "err", err)
		jsonError(w, "failed to build report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type logsResponse struct {
	Logs   []classify.Record `json:"logs"`
	Counts stats.Levels      `json:"counts"`
}

// Logs handles GET /api/admin/logs?limit=N.
func (h *AdminHandler) Logs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxLogLimit)
	}

	logs, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("handlers: load recent logs failed", "err", err)
		jsonError(w, "failed to load logs", http.StatusInternalServerError)
		return
	}
	if logs == nil {
		logs = []classify.Record{}
	}
	writeJSON(w, http.StatusOK, logsResponse{Logs: logs, Counts: stats.CountLevels(logs)})
}

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"medquiz-engine/internal/app"
)

// QueryHandler serves the read-only consumer surface: the ranked
// leaderboard and per-user stats. It never mutates anything.
type QueryHandler struct {
	service *app.QuizService
	logger  *slog.Logger
}

func NewQueryHandler(service *app.QuizService, logger *slog.Logger) *QueryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryHandler{service: service, logger: logger}
}

// ServeLeaderboard writes the current ranking as JSON.
func (h *QueryHandler) ServeLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context())
	if err != nil {
		h.logger.Warn("leaderboard read failed", "err", err)
		http.Error(w, "leaderboard unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, lb)
}

// ServeStats writes one user's cumulative stats as JSON.
func (h *QueryHandler) ServeStats(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	// A user with no completed sessions gets zeroed stats, not a 404.
	stats, err := h.service.UserStats(r.Context(), userID)
	if err != nil {
		h.logger.Warn("stats read failed", "userId", userID, "err", err)
		http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, stats)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

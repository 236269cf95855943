package aggregator

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/analytics"
)

const (
	defaultHistoryLimit = 24
	maxHistoryLimit     = 500
)

// SnapshotLister is the read side of Store.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, limit int) ([]analytics.Stats, error)
}

// HistoryHandler serves GET /api/v1/analytics/history?limit=, newest
// snapshot first.
func HistoryHandler(lister SnapshotLister) http.HandlerFunc {
	logger := slog.Default().With("component", "analytics-history")
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultHistoryLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"}, logger)
				return
			}
			limit = min(n, maxHistoryLimit)
		}

		snapshots, err := lister.ListSnapshots(r.Context(), limit)
		if err != nil {
			logger.Error("listing snapshots failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load snapshots"}, logger)
			return
		}
		if snapshots == nil {
			snapshots = []analytics.Stats{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"snapshots": snapshots}, logger)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}

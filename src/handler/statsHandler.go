package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"signalauditor/src/model"
	"signalauditor/src/repository"

	logger "github.com/sirupsen/logrus"
)

type statsProvider interface {
	AggregateStats(ctx context.Context, days int) (*repository.Stats, error)
}

type recentLister interface {
	FindRecent(ctx context.Context, limit int) ([]model.SignalRecord, error)
}

// StatsHandler returns the aggregate statistics snapshot. Open records and
// windows without data render as nulls rather than erroring.
func StatsHandler(repo statsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 30
		if daysParam := r.URL.Query().Get("days"); daysParam != "" {
			parsed, err := strconv.Atoi(daysParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid days", http.StatusBadRequest)
				return
			}
			days = parsed
		}

		stats, err := repo.AggregateStats(r.Context(), days)
		if err != nil {
			logger.WithError(err).Error("failed to compute aggregate stats")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, stats)
	}
}

// RecentSignalsHandler lists the latest records, newest first. Still-open
// records appear with null outcome and pnl fields.
func RecentSignalsHandler(repo recentLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		recs, err := repo.FindRecent(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to list recent signals")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []model.SignalRecord{}
		}

		writeJSON(w, recs)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

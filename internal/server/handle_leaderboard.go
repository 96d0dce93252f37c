package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/playperu/dailyset/internal/cache"
	"github.com/playperu/dailyset/internal/dailyset"
	"github.com/playperu/dailyset/internal/game"
	"github.com/playperu/dailyset/internal/leaderboard"
	"github.com/playperu/dailyset/internal/metrics"
	"github.com/playperu/dailyset/internal/token"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

func handleLeaderboard(logger *slog.Logger, ranker *leaderboard.Ranker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		date, err := dailyset.NormalizeDate(q.Get("date"), timeNow())
		if err != nil {
			writeErr(w, r, logger, err)
			return
		}

		limit := defaultLeaderboardLimit
		if raw := q.Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 1 || limit > maxLeaderboardLimit {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxLeaderboardLimit))
				return
			}
		}

		leaders, err := ranker.Rank(r.Context(), date, limit)
		if err != nil {
			writeErr(w, r, logger, err)
			return
		}
		if leaders == nil {
			leaders = []dailyset.Standing{}
		}
		writeJSON(w, http.StatusOK, LeaderboardResponse{Date: date, Leaders: leaders})
	}
}

func handleComplete(logger *slog.Logger, games *game.Manager, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CompleteRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := games.RecordDirect(r.Context(), req.Username, req.Date, req.Seconds); err != nil {
			writeErr(w, r, logger, err)
			return
		}
		m.Completions.Inc()
		writeJSON(w, http.StatusOK, StatusOKResponse{Status: "ok"})
	}
}

func handleStatus(logger *slog.Logger, games *game.Manager, signer *token.Signer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, ok := cookiePlayer(r, signer)
		if !ok {
			writeJSON(w, http.StatusOK, game.Status{Date: dailyset.Today(timeNow())})
			return
		}
		st, err := games.Status(r.Context(), playerID)
		if err != nil {
			writeErr(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleFoundSets(logger *slog.Logger, games *game.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		username, err := dailyset.NormalizeUsername(q.Get("username"))
		if err != nil {
			writeErr(w, r, logger, err)
			return
		}
		date, err := dailyset.NormalizeDate(q.Get("date"), timeNow())
		if err != nil {
			writeErr(w, r, logger, err)
			return
		}

		sets, err := games.FoundTriples(r.Context(), username, date)
		if err != nil {
			writeErr(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, FoundSetsResponse{Username: username, Date: date, Sets: sets})
	}
}

func handleCacheStats(caches map[string]metrics.StatsFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := make(map[string]cache.Stats, len(caches))
		for name, stats := range caches {
			out[name] = stats()
		}
		writeJSON(w, http.StatusOK, CacheStatsResponse{CacheStats: out, Status: "ok"})
	}
}

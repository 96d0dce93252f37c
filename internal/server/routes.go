package server

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/dailyset/internal/game"
	"github.com/playperu/dailyset/internal/leaderboard"
	"github.com/playperu/dailyset/internal/metrics"
	"github.com/playperu/dailyset/internal/token"
)

var timeNow = time.Now

// Limits are the per-client request budgets of the write and ranking
// endpoints.
type Limits struct {
	Submit      Limit
	Complete    Limit
	Leaderboard Limit
	FoundSets   Limit
}

// DefaultLimits are the budgets used in production.
var DefaultLimits = Limits{
	Submit:      Limit{Requests: 10, Window: time.Minute},
	Complete:    Limit{Requests: 10, Window: time.Minute},
	Leaderboard: Limit{Requests: 20, Window: time.Minute},
	FoundSets:   Limit{Requests: 30, Window: time.Minute},
}

// API is everything the game endpoints need.
type API struct {
	Logger       *slog.Logger
	Games        *game.Manager
	Signer       *token.Signer
	Ranker       *leaderboard.Ranker
	Metrics      *metrics.Metrics
	Caches       map[string]metrics.StatsFunc
	CookieSecure bool
	Limits       Limits

	// Events streams live events to clients that cannot use websockets.
	Events http.HandlerFunc

	// StaticDir, when set, serves a built frontend for unmatched paths.
	StaticDir string
}

// Routes registers the game API, the OpenAPI document and its UI.
func (a API) Routes(r chi.Router) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Daily Set API", "/openapi.json", "/docs"))

	r.Route("/api", func(r chi.Router) {
		r.Get("/daily", handleDaily(a.Logger, a.Games))
		r.Post("/start_session", handleStartSession(a.Logger, a.Games, a.Metrics, a.CookieSecure))
		r.With(rateLimited(a.Limits.Submit)).Post("/submit_set", handleSubmitSet(a.Logger, a.Games, a.Metrics))
		r.Post("/rotate_session/{sessionID}", handleRotateSession(a.Logger, a.Signer, a.CookieSecure))
		r.With(rateLimited(a.Limits.Complete)).Post("/complete", handleComplete(a.Logger, a.Games, a.Metrics))
		r.With(rateLimited(a.Limits.Leaderboard)).Get("/leaderboard", handleLeaderboard(a.Logger, a.Ranker))
		r.Get("/status", handleStatus(a.Logger, a.Games, a.Signer))
		r.Get("/session", handleCurrentSession(a.Logger, a.Games, a.Signer))
		r.With(rateLimited(a.Limits.FoundSets)).Get("/found_sets", handleFoundSets(a.Logger, a.Games))
		r.Get("/cache/stats", handleCacheStats(a.Caches))
		if a.Events != nil {
			r.Get("/events", a.Events)
		}
		r.NotFound(notFoundJSON)
	})

	if a.StaticDir != "" {
		if info, err := os.Stat(a.StaticDir); err == nil && info.IsDir() {
			a.Logger.Info("serving frontend", "dir", a.StaticDir)
			r.NotFound(handleSPA(a.StaticDir))
		}
	}
}

// notFoundJSON keeps unknown API paths from falling through to the frontend.
func notFoundJSON(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

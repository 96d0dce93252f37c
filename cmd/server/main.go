package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/dailyset/internal/cache"
	"github.com/playperu/dailyset/internal/config"
	"github.com/playperu/dailyset/internal/dailyset"
	"github.com/playperu/dailyset/internal/database"
	"github.com/playperu/dailyset/internal/events"
	"github.com/playperu/dailyset/internal/game"
	"github.com/playperu/dailyset/internal/handler/health"
	"github.com/playperu/dailyset/internal/handler/live"
	"github.com/playperu/dailyset/internal/leaderboard"
	"github.com/playperu/dailyset/internal/metrics"
	"github.com/playperu/dailyset/internal/migrations"
	"github.com/playperu/dailyset/internal/server"
	"github.com/playperu/dailyset/internal/store"
	"github.com/playperu/dailyset/internal/token"
)

const eventLeaders = 5

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	version, _ := migrations.Version(ctx, db)
	logger.Info("connected to sqlite", "path", cfg.DBPath, "schema_version", version)
	st := store.NewSQLite(db)

	// --- Caches ---
	boardCache := cache.New[dailyset.Board]()
	rankCache := cache.New[[]dailyset.Standing]()
	sweeper := cache.NewSweeper(logger, cfg.CacheSweepInterval, map[string]cache.Sweepable{
		"boards":      boardCache,
		"leaderboard": rankCache,
	})
	stats := map[string]metrics.StatsFunc{
		"boards":      boardCache.Stats,
		"leaderboard": rankCache.Stats,
	}

	signer := token.NewSigner(logger, cfg.SessionSecret, st, st)
	ranker := leaderboard.NewRanker(st, rankCache, cfg.LeaderboardTTL)

	// --- Events ---
	hub := events.NewHub(logger, cfg.ListenerInterval, enrichCompletion(logger, st, ranker))
	var publisher events.Publisher = hub
	checks := map[string]health.Checker{"sqlite": health.CheckFunc(st.Ping)}

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("dailyset"))
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer nc.Drain()

		bridge := events.NewNATSBridge(logger, nc, hub)
		if _, err := bridge.Subscribe(); err != nil {
			return fmt.Errorf("subscribing to nats: %w", err)
		}
		publisher = events.Fanout{hub, bridge}
		checks["nats"] = health.CheckFunc(func(context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("nats status %s", nc.Status())
			}
			return nil
		})
		logger.Info("connected to nats", "url", nc.ConnectedUrlRedacted())
	}

	// --- Game ---
	boards := game.NewBoards(logger, boardCache, cfg.BoardTTL)
	boards.Warm(dailyset.DateRange(time.Now(), cfg.WarmDaysBehind, cfg.WarmDaysAhead))

	games := game.NewManager(logger, game.Config{SessionTTL: cfg.SessionTTL}, st, boards, signer, ranker, publisher)
	m := metrics.New(stats, hub.Len)
	streams := live.NewHandler(logger, hub)

	limits := server.DefaultLimits
	if !cfg.Production() {
		limits = server.Limits{}
	}
	api := server.API{
		Logger:       logger,
		Games:        games,
		Signer:       signer,
		Ranker:       ranker,
		Metrics:      m,
		Caches:       stats,
		CookieSecure: cfg.CookieSecure,
		Limits:       limits,
		Events:       streams.Stream,
		StaticDir:    cfg.StaticDir,
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, func(r chi.Router) {
		r.Get("/healthz", health.Live)
		r.Mount("/readyz", health.NewHandler(logger, checks).Routes())
		r.Handle("/metrics", m.Handler())
		r.Mount("/ws", streams.Routes())
		api.Routes(r)
	}, m.Middleware)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

// enrichCompletion attaches the player's name and the current top of the
// leaderboard to completion events.
func enrichCompletion(logger *slog.Logger, st *store.SQLite, ranker *leaderboard.Ranker) events.EnrichFunc {
	return func(ctx context.Context, ev events.Completion) events.Completion {
		if p, err := st.Player(ctx, ev.PlayerID); err == nil {
			ev.Username = &p.Username
		}
		leaders, err := ranker.Rank(ctx, ev.Day, eventLeaders)
		if err != nil {
			logger.Warn("ranking for completion event", "date", ev.Day, "error", err)
			return ev
		}
		ev.Leaders = leaders
		return ev
	}
}

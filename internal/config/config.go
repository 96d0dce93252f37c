// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/playperu/dailyset/internal/token"
)

type Config struct {
	HTTPAddr    string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath      string     `env:"DB_PATH" envDefault:"data/dailyset.db"`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	Environment string     `env:"ENVIRONMENT" envDefault:"development"`
	StaticDir   string     `env:"STATIC_DIR" envDefault:"web/dist"`

	SessionSecret string `env:"SESSION_SECRET" envDefault:"dev-secret-change-me"`
	CookieSecure  bool   `env:"COOKIE_SECURE" envDefault:"false"`

	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"60m"`
	BoardTTL           time.Duration `env:"BOARD_TTL" envDefault:"24h"`
	LeaderboardTTL     time.Duration `env:"LEADERBOARD_TTL" envDefault:"5m"`
	CacheSweepInterval time.Duration `env:"CACHE_SWEEP_INTERVAL" envDefault:"1m"`
	WarmDaysAhead      int           `env:"WARM_DAYS_AHEAD" envDefault:"7"`
	WarmDaysBehind     int           `env:"WARM_DAYS_BEHIND" envDefault:"3"`

	// NATSURL enables the cross-instance event relay when set.
	NATSURL          string        `env:"NATS_URL"`
	ListenerInterval time.Duration `env:"LISTENER_INTERVAL" envDefault:"450ms"`
}

// Load reads an optional .env file from the working directory, then the
// environment. Variables already set win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Production() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	var errs []error
	if c.Production() && c.SessionSecret == token.DevSecret {
		errs = append(errs, errors.New("SESSION_SECRET must be set in production"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET must not be empty"))
	}
	for name, d := range map[string]time.Duration{
		"SESSION_TTL":          c.SessionTTL,
		"BOARD_TTL":            c.BoardTTL,
		"LEADERBOARD_TTL":      c.LeaderboardTTL,
		"CACHE_SWEEP_INTERVAL": c.CacheSweepInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.ListenerInterval < 0 {
		errs = append(errs, fmt.Errorf("LISTENER_INTERVAL must not be negative, got %s", c.ListenerInterval))
	}
	if c.WarmDaysAhead < 0 || c.WarmDaysBehind < 0 {
		errs = append(errs, errors.New("WARM_DAYS_AHEAD and WARM_DAYS_BEHIND must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

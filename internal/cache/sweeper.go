package cache

import (
	"context"
	"log/slog"
	"time"
)

type Sweepable interface {
	CleanupExpired() int
}

// Sweeper periodically removes expired entries from a set of named caches.
type Sweeper struct {
	caches   map[string]Sweepable
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(logger *slog.Logger, interval time.Duration, caches map[string]Sweepable) *Sweeper {
	return &Sweeper{caches: caches, interval: interval, logger: logger}
}

// Sweep runs one pass over every cache and returns the total removed.
func (s *Sweeper) Sweep() int {
	total := 0
	for name, c := range s.caches {
		if n := c.CleanupExpired(); n > 0 {
			s.logger.Debug("cache sweep", "cache", name, "removed", n)
			total += n
		}
	}
	return total
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.Sweep()
		}
	}
}

package game

import (
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/playperu/dailyset/internal/cache"
	"github.com/playperu/dailyset/internal/dailyset"
)

// BoardKey is the cache key of the board for date.
func BoardKey(date string) string {
	return "daily_board:" + date
}

// Boards serves daily boards through a TTL cache. Concurrent misses for the
// same date share one generation.
type Boards struct {
	cache  *cache.Cache[dailyset.Board]
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

func NewBoards(logger *slog.Logger, c *cache.Cache[dailyset.Board], ttl time.Duration) *Boards {
	return &Boards{cache: c, ttl: ttl, logger: logger}
}

// Get returns a copy of the board for date, generating and caching it on a
// miss.
func (b *Boards) Get(date string) dailyset.Board {
	if board, ok := b.cache.Get(BoardKey(date)); ok {
		return board.Clone()
	}
	v, _, _ := b.group.Do(date, func() (any, error) {
		board := dailyset.GenerateBoard(date)
		b.cache.Set(BoardKey(date), board, b.ttl)
		return board, nil
	})
	return v.(dailyset.Board).Clone()
}

// Warm generates and caches every date that is not cached yet.
func (b *Boards) Warm(dates []string) int {
	warmed := 0
	for _, d := range dates {
		if _, ok := b.cache.Get(BoardKey(d)); ok {
			continue
		}
		b.cache.Set(BoardKey(d), dailyset.GenerateBoard(d), b.ttl)
		warmed++
	}
	b.logger.Info("board cache warmed", "dates", len(dates), "generated", warmed)
	return warmed
}

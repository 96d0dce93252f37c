// Package leaderboard ranks a date's completions by skill-adjusted time.
package leaderboard

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/playperu/dailyset/internal/cache"
	"github.com/playperu/dailyset/internal/dailyset"
)

// TripleDiscount is the multiplier earned by each triple beyond the first.
const TripleDiscount = 0.88

// Store provides the per-date aggregates the ranking is built from.
type Store interface {
	BestCompletions(ctx context.Context, date string) ([]dailyset.BestCompletion, error)
	TripleCounts(ctx context.Context, date string) (map[int64]int, error)
}

// CacheKey is the cache key of the full ranking for date.
func CacheKey(date string) string {
	return "leaderboard:" + date
}

// EffectiveSeconds discounts best by 12% per triple found beyond the first.
func EffectiveSeconds(best, triplesFound int) float64 {
	extra := max(0, triplesFound-1)
	v := float64(best) * math.Pow(TripleDiscount, float64(extra))
	return math.Round(v*1e6) / 1e6
}

// Sort orders standings by effective seconds, then best seconds, then the
// earlier completion.
func Sort(s []dailyset.Standing) {
	sort.SliceStable(s, func(i, j int) bool {
		a, b := s[i], s[j]
		if a.EffectiveSeconds != b.EffectiveSeconds {
			return a.EffectiveSeconds < b.EffectiveSeconds
		}
		if a.BestSeconds != b.BestSeconds {
			return a.BestSeconds < b.BestSeconds
		}
		return a.CompletedAt.Before(b.CompletedAt)
	})
}

// Build turns aggregates into a sorted ranking.
func Build(best []dailyset.BestCompletion, triples map[int64]int) []dailyset.Standing {
	out := make([]dailyset.Standing, 0, len(best))
	for _, b := range best {
		n := triples[b.PlayerID]
		out = append(out, dailyset.Standing{
			PlayerID:         b.PlayerID,
			Username:         b.Username,
			BestSeconds:      b.Seconds,
			CompletedAt:      b.CompletedAt,
			TriplesFound:     n,
			EffectiveSeconds: EffectiveSeconds(b.Seconds, n),
		})
	}
	Sort(out)
	return out
}

// Ranker computes rankings on demand and keeps the full ranking for each
// date in a short-lived cache.
type Ranker struct {
	store Store
	cache *cache.Cache[[]dailyset.Standing]
	ttl   time.Duration

	// gens counts invalidations per date. A ranking loaded before an
	// invalidation is returned but never cached.
	mu   sync.Mutex
	gens map[string]uint64
}

func NewRanker(store Store, c *cache.Cache[[]dailyset.Standing], ttl time.Duration) *Ranker {
	return &Ranker{store: store, cache: c, ttl: ttl, gens: make(map[string]uint64)}
}

// Rank returns the ranking for date truncated to limit; limit <= 0 returns
// all of it.
func (r *Ranker) Rank(ctx context.Context, date string, limit int) ([]dailyset.Standing, error) {
	all, err := r.full(ctx, date)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return append([]dailyset.Standing(nil), all...), nil
}

// Placement returns the 1-based position of playerID in the ranking for
// date, and that player's standing. ok is false when the player has no
// completion on date.
func (r *Ranker) Placement(ctx context.Context, date string, playerID int64) (place int, s dailyset.Standing, ok bool, err error) {
	all, err := r.full(ctx, date)
	if err != nil {
		return 0, dailyset.Standing{}, false, err
	}
	for i, st := range all {
		if st.PlayerID == playerID {
			return i + 1, st, true, nil
		}
	}
	return 0, dailyset.Standing{}, false, nil
}

// Invalidate drops the cached ranking for date.
func (r *Ranker) Invalidate(date string) {
	r.mu.Lock()
	r.gens[date]++
	r.cache.Delete(CacheKey(date))
	r.mu.Unlock()
}

func (r *Ranker) generation(date string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gens[date]
}

func (r *Ranker) full(ctx context.Context, date string) ([]dailyset.Standing, error) {
	if s, ok := r.cache.Get(CacheKey(date)); ok {
		return s, nil
	}
	gen := r.generation(date)
	best, err := r.store.BestCompletions(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("loading best completions: %w", err)
	}
	triples, err := r.store.TripleCounts(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("counting found triples: %w", err)
	}
	all := Build(best, triples)

	r.mu.Lock()
	if r.gens[date] == gen {
		r.cache.Set(CacheKey(date), all, r.ttl)
	}
	r.mu.Unlock()
	return all, nil
}

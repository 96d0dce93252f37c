package cache

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache() (*Cache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)}
	return New[string](WithClock(clock.Now)), clock
}

func TestGetSetExpiry(t *testing.T) {
	c, clock := newTestCache()

	c.Set("k", "v", time.Second)
	if got, ok := c.Get("k"); !ok || got != "v" {
		t.Fatalf("Get = %q, %v; want v, true", got, ok)
	}

	clock.Advance(1100 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after ttl")
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Evictions != 1 || st.Sets != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.HitRate != 50 {
		t.Errorf("hit rate = %v, want 50", st.HitRate)
	}
	if st.Size != 0 {
		t.Errorf("size = %d, want 0", st.Size)
	}
}

func TestCleanupExpired(t *testing.T) {
	c, clock := newTestCache()

	c.Set("short", "a", time.Second)
	c.Set("long", "b", time.Hour)
	clock.Advance(1100 * time.Millisecond)

	if n := c.CleanupExpired(); n != 1 {
		t.Fatalf("removed = %d, want 1", n)
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("long-lived entry was removed")
	}
	if st := c.Stats(); st.Evictions != 1 || st.Size != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestDeleteAndClear(t *testing.T) {
	c, _ := newTestCache()

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)

	if !c.Delete("a") {
		t.Error("Delete(a) = false, want true")
	}
	if c.Delete("a") {
		t.Error("second Delete(a) = true, want false")
	}

	c.Clear()
	st := c.Stats()
	if st.Size != 0 || st.Evictions != 1 {
		t.Errorf("stats after clear = %+v", st)
	}
	if st.HitRate != 0 {
		t.Errorf("hit rate with no reads = %v, want 0", st.HitRate)
	}
}

func TestSweeper(t *testing.T) {
	boards, clock := newTestCache()
	leaders := New[int](WithClock(clock.Now))

	boards.Set("daily_board:2025-09-01", "x", time.Hour)
	leaders.Set("leaderboard:2025-09-01", 1, time.Minute)
	clock.Advance(2 * time.Minute)

	s := NewSweeper(slog.Default(), time.Millisecond, map[string]Sweepable{
		"boards":  boards,
		"leaders": leaders,
	})
	if n := s.Sweep(); n != 1 {
		t.Errorf("swept = %d, want 1", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Errorf("Run on cancelled ctx = %v", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := newTestCache()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("k", "v", time.Minute)
				c.Get("k")
				c.CleanupExpired()
			}
		}()
	}
	wg.Wait()

	if st := c.Stats(); st.Sets != 800 || st.Hits+st.Misses != 800 {
		t.Errorf("stats = %+v", st)
	}
}

package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdle = 10 * time.Minute

// Limit allows Requests per Window from each client address. A zero Limit
// disables limiting.
type Limit struct {
	Requests int
	Window   time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipLimiter struct {
	mu       sync.Mutex
	limit    Limit
	visitors map[string]*visitor
	now      func() time.Time
}

func newIPLimiter(l Limit) *ipLimiter {
	return &ipLimiter{limit: l, visitors: make(map[string]*visitor), now: time.Now}
}

func (l *ipLimiter) allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[addr]
	if !ok {
		if len(l.visitors) > 10_000 {
			for k, old := range l.visitors {
				if now.Sub(old.lastSeen) > limiterIdle {
					delete(l.visitors, k)
				}
			}
		}
		every := l.limit.Window / time.Duration(l.limit.Requests)
		v = &visitor{limiter: rate.NewLimiter(rate.Every(every), l.limit.Requests)}
		l.visitors[addr] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// rateLimited rejects callers over l with 429. It relies on
// middleware.RealIP having set RemoteAddr.
func rateLimited(l Limit) func(http.Handler) http.Handler {
	if l.Requests <= 0 || l.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	lim := newIPLimiter(l)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.allow(clientAddr(r)) {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

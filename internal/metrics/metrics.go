// Package metrics exposes service counters and cache statistics in the
// Prometheus text format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/playperu/dailyset/internal/cache"
)

// StatsFunc returns a snapshot of one cache.
type StatsFunc func() cache.Stats

type Metrics struct {
	registry *prometheus.Registry

	Submissions     *prometheus.CounterVec
	SessionsStarted *prometheus.CounterVec
	Completions     prometheus.Counter
	Listeners       prometheus.GaugeFunc
	requests        *prometheus.HistogramVec
}

// New registers the service metrics, process and Go runtime collectors and
// one set of cache series per entry of caches.
func New(caches map[string]StatsFunc, listeners func() int) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dailyset",
			Name:      "submissions_total",
			Help:      "Triple submissions by outcome.",
		}, []string{"result"}),
		SessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dailyset",
			Name:      "sessions_started_total",
			Help:      "Sessions handed out, split into new and resumed.",
		}, []string{"kind"}),
		Completions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dailyset",
			Name:      "completions_total",
			Help:      "Recorded completions.",
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dailyset",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if listeners == nil {
		listeners = func() int { return 0 }
	}
	m.Listeners = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "dailyset",
		Name:      "listeners",
		Help:      "Connected live listeners.",
	}, func() float64 { return float64(listeners()) })

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Submissions,
		m.SessionsStarted,
		m.Completions,
		m.Listeners,
		m.requests,
		&cacheCollector{caches: caches},
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware observes request latency labelled by the matched chi route
// pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

var (
	cacheHits      = prometheus.NewDesc("dailyset_cache_hits_total", "Cache hits.", []string{"cache"}, nil)
	cacheMisses    = prometheus.NewDesc("dailyset_cache_misses_total", "Cache misses.", []string{"cache"}, nil)
	cacheSets      = prometheus.NewDesc("dailyset_cache_sets_total", "Cache writes.", []string{"cache"}, nil)
	cacheEvictions = prometheus.NewDesc("dailyset_cache_evictions_total", "Entries removed by expiry or clearing.", []string{"cache"}, nil)
	cacheSize      = prometheus.NewDesc("dailyset_cache_entries", "Entries currently held.", []string{"cache"}, nil)
)

// cacheCollector reads cache statistics at scrape time.
type cacheCollector struct {
	caches map[string]StatsFunc
}

func (c *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- cacheHits
	ch <- cacheMisses
	ch <- cacheSets
	ch <- cacheEvictions
	ch <- cacheSize
}

func (c *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	for name, stats := range c.caches {
		s := stats()
		ch <- prometheus.MustNewConstMetric(cacheHits, prometheus.CounterValue, float64(s.Hits), name)
		ch <- prometheus.MustNewConstMetric(cacheMisses, prometheus.CounterValue, float64(s.Misses), name)
		ch <- prometheus.MustNewConstMetric(cacheSets, prometheus.CounterValue, float64(s.Sets), name)
		ch <- prometheus.MustNewConstMetric(cacheEvictions, prometheus.CounterValue, float64(s.Evictions), name)
		ch <- prometheus.MustNewConstMetric(cacheSize, prometheus.GaugeValue, float64(s.Size), name)
	}
}

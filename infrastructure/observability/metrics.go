package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Business metrics
	Freezes              *prometheus.CounterVec
	DraftWrites          *prometheus.CounterVec
	ReservationConflicts *prometheus.CounterVec
	Rollbacks            *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewCollector creates a new metrics collector with the given namespace.
// Each collector owns its registry so tests can build as many as they like.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Freezes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "draft_freezes_total",
				Help:      "Drafts frozen, by reason and outcome",
			},
			[]string{"reason", "outcome"},
		),
		DraftWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "draft_writes_total",
				Help:      "Accepted draft writes, by mode",
			},
			[]string{"mode"},
		),
		ReservationConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservation_conflicts_total",
				Help:      "Callers rejected by a reservation held by someone else",
			},
			[]string{"operation"},
		),
		Rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollbacks_total",
				Help:      "Memo rollbacks",
			},
			[]string{"forced"},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "content_cache_hits_total",
				Help:      "Total number of content cache hits",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "content_cache_misses_total",
				Help:      "Total number of content cache misses",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Freezes,
		c.DraftWrites,
		c.ReservationConflicts,
		c.Rollbacks,
		c.CacheHits,
		c.CacheMisses,
	)

	return c
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// FreezeRecorded counts a freeze by reason and outcome
func (c *Collector) FreezeRecorded(reason, outcome string) {
	c.Freezes.WithLabelValues(reason, outcome).Inc()
}

// DraftWritten counts a draft write
func (c *Collector) DraftWritten(inPlace bool) {
	mode := "replaced"
	if inPlace {
		mode = "in_place"
	}
	c.DraftWrites.WithLabelValues(mode).Inc()
}

// ReservationConflict counts a caller rejected by a reservation
func (c *Collector) ReservationConflict(operation string) {
	c.ReservationConflicts.WithLabelValues(operation).Inc()
}

// RollbackRecorded counts a rollback
func (c *Collector) RollbackRecorded(forced bool) {
	c.Rollbacks.WithLabelValues(strconv.FormatBool(forced)).Inc()
}

// CacheLookup counts a content cache hit or miss
func (c *Collector) CacheLookup(hit bool) {
	if hit {
		c.CacheHits.Inc()
		return
	}
	c.CacheMisses.Inc()
}

// HTTPMiddleware records request counts and latency per route pattern
func (c *Collector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_BusinessCounters(t *testing.T) {
	c := NewCollector("memo_test")

	c.FreezeRecorded("editor_changed", "revision")
	c.FreezeRecorded("editor_changed", "revision")
	c.FreezeRecorded("content_loss", "duplicate")
	c.DraftWritten(true)
	c.ReservationConflict("reserve")
	c.RollbackRecorded(true)
	c.CacheLookup(true)
	c.CacheLookup(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Freezes.WithLabelValues("editor_changed", "revision")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Freezes.WithLabelValues("content_loss", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DraftWrites.WithLabelValues("in_place")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ReservationConflicts.WithLabelValues("reserve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Rollbacks.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheMisses))
}

func TestCollector_HTTPMiddlewareAndHandler(t *testing.T) {
	c := NewCollector("memo_http")

	r := chi.NewRouter()
	r.Use(c.HTTPMiddleware)
	r.Get("/memos/{memoID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", c.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/memos/abc", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/memos/{memoID}", "404")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "memo_http_http_requests_total"))
}

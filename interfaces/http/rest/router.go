package rest

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"path-backend/infrastructure/observability"
	"path-backend/interfaces/http/rest/handlers"
	"path-backend/interfaces/http/rest/middleware"
	"path-backend/pkg/common"
	pkgerrors "path-backend/pkg/errors"
)

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// RouterConfig holds the optional parts of the router
type RouterConfig struct {
	AllowedOrigins []string
	Auth           middleware.AuthConfig
	// Metrics enables request metrics and the /metrics endpoint when set
	Metrics     *observability.Collector
	ReadyChecks map[string]ReadinessCheck
}

// Router creates and configures the HTTP router
type Router struct {
	memos     *handlers.MemoHandler
	revisions *handlers.RevisionHandler
	errors    *pkgerrors.ErrorHandler
	config    RouterConfig
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	memos *handlers.MemoHandler,
	revisions *handlers.RevisionHandler,
	errorHandler *pkgerrors.ErrorHandler,
	config RouterConfig,
	logger *zap.Logger,
) *Router {
	return &Router{
		memos:     memos,
		revisions: revisions,
		errors:    errorHandler,
		config:    config,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errors.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.config.Metrics != nil {
		router.Use(rt.config.Metrics.HTTPMiddleware)
	}

	if len(rt.config.AllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.config.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", handlers.ReserveCodeHeader},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.config.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.config.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.config.Auth))

		r.Route("/points/{pointID}/memos", func(r chi.Router) {
			r.Post("/", rt.memos.CreateMemo)
			r.Get("/", rt.memos.ListMemosByPoint)
		})

		r.Route("/memos/{memoID}", func(r chi.Router) {
			r.Get("/", rt.memos.GetMemo)
			r.Put("/draft", rt.memos.UpdateDraft)
			r.Patch("/title", rt.memos.UpdateTitle)
			r.Patch("/external", rt.memos.ChangeExternalMarker)
			r.Put("/point", rt.memos.MoveMemo)
			r.Post("/reserve", rt.memos.Reserve)
			r.Delete("/reserve", rt.memos.CancelReserve)
			r.Get("/revisions", rt.revisions.ListRevisions)
			r.Post("/revisions/{revisionID}/rollback", rt.revisions.Rollback)
		})

		r.Get("/contents/{contentID}", rt.revisions.GetRevisionContent)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck runs every registered dependency check
func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(rt.config.ReadyChecks))
	for name := range rt.config.ReadyChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := rt.config.ReadyChecks[name](ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	common.RespondJSON(w, status, map[string]interface{}{"status": state, "checks": checks})
}

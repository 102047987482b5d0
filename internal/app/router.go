package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/articlegen/articlegen/internal/articles"
	"github.com/articlegen/articlegen/internal/auth"
	"github.com/articlegen/articlegen/internal/chat"
	"github.com/articlegen/articlegen/internal/observability"
	"github.com/articlegen/articlegen/internal/platform/httpx"
	"github.com/articlegen/articlegen/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AuthHandler     *auth.Handler
	AuthMiddleware  *auth.Middleware
	ArticlesService *articles.Service
	BulkJobsHandler *jobs.BulkJobsHandler
	ChatHandler     *chat.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	timeout := RequestTimeout(params.Config)
	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.With(timeout).Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.ArticlesService != nil {
			var requireAuth func(http.Handler) http.Handler
			if params.AuthMiddleware != nil {
				requireAuth = params.AuthMiddleware.Require
			}
			generateLimit := GenerateRateLimit(params.Config)
			handler := articles.NewHandler(params.Logger, params.ArticlesService, articles.HandlerConfig{
				RequireAuth:   requireAuth,
				GenerateLimit: generateLimit,
				Timeout:       timeout,
			})
			r.Route("/articles", func(r chi.Router) {
				handler.MountRoutes(r)
				if params.BulkJobsHandler != nil && requireAuth != nil {
					r.With(requireAuth, timeout).Route("/bulk-generate/jobs", params.BulkJobsHandler.LimitCreate(generateLimit).MountRoutes)
				}
			})
		}
		if params.ChatHandler != nil {
			r.With(timeout).Route("/chat", params.ChatHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	return r
}

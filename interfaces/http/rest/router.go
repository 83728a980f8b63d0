package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/anmolarora1/em/interfaces/http/rest/handlers"
	"github.com/anmolarora1/em/interfaces/http/rest/middleware"
	"github.com/anmolarora1/em/pkg/auth"
	"github.com/anmolarora1/em/pkg/common"
)

// Readiness reports whether the graph has loaded
type Readiness interface {
	IsLoaded() bool
	Stats() (thoughts, contexts int)
}

// Options select the optional parts of the router
type Options struct {
	EnableCORS     bool
	AllowedOrigins []string

	// Metrics, when set, serves /metrics and wraps every request
	Metrics MetricsHandler

	// Validator, when set, protects /api/v1. Without it the API is unauthenticated and
	// sessions cannot be started.
	Validator middleware.TokenValidator

	// IPRateLimit and UserRateLimit are requests per minute
	IPRateLimit   int
	UserRateLimit int
}

// MetricsHandler serves Prometheus metrics and instruments requests
type MetricsHandler interface {
	Handler() http.Handler
	HTTPMiddleware(next http.Handler) http.Handler
}

// Router creates and configures the HTTP router
type Router struct {
	thoughts  *handlers.ThoughtHandler
	sessions  *handlers.SessionHandler
	readiness Readiness
	opts      Options
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	thoughts *handlers.ThoughtHandler,
	sessions *handlers.SessionHandler,
	readiness Readiness,
	opts Options,
	logger *zap.Logger,
) *Router {
	if opts.IPRateLimit <= 0 {
		opts.IPRateLimit = 600
	}
	if opts.UserRateLimit <= 0 {
		opts.UserRateLimit = 1200
	}
	return &Router{
		thoughts:  thoughts,
		sessions:  sessions,
		readiness: readiness,
		opts:      opts,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	router.Use(chimiddleware.Timeout(60 * time.Second))
	if rt.opts.Metrics != nil {
		router.Use(rt.opts.Metrics.HTTPMiddleware)
	}

	if rt.opts.EnableCORS {
		origins := rt.opts.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.opts.Metrics != nil {
		router.Handle("/metrics", rt.opts.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/session/token", rt.sessions.IssueToken)

		r.Group(func(r chi.Router) {
			if rt.opts.Validator != nil {
				r.Use(middleware.Authenticate(
					rt.opts.Validator,
					auth.NewIPRateLimiter(rt.opts.IPRateLimit),
					auth.NewUserRateLimiter(rt.opts.UserRateLimit),
					rt.logger,
				))
			}

			r.Route("/thoughts", func(r chi.Router) {
				r.Get("/", rt.thoughts.ListChildren)
				r.Post("/", rt.thoughts.CreateThought)
				r.Put("/", rt.thoughts.EditThought)
				r.Delete("/", rt.thoughts.DeleteThought)
				r.Post("/move", rt.thoughts.MoveThought)
				r.Post("/bump", rt.thoughts.BumpDown)
				r.Post("/move-down", rt.thoughts.MoveDown)
				r.Post("/move-up", rt.thoughts.MoveUp)
				r.Post("/subcategorize", rt.thoughts.SubCategorize)
			})
			r.Get("/lexemes/{value}", rt.thoughts.GetLexeme)
			r.Post("/import", rt.thoughts.Import)
			r.Get("/tree", rt.thoughts.GetTree)
			r.Get("/settings/{name}", rt.thoughts.GetSetting)

			r.Get("/session", rt.sessions.GetSession)
			r.Post("/session/login", rt.sessions.Login)
			r.Post("/session/logout", rt.sessions.Logout)

			r.Get("/notifications", rt.sessions.ListNotifications)
			r.Delete("/notifications", rt.sessions.DismissNotifications)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.Respond(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck reports ready once the local store has been loaded into the graph
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if !rt.readiness.IsLoaded() {
		common.Respond(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	thoughts, contexts := rt.readiness.Stats()
	common.Respond(w, http.StatusOK, map[string]interface{}{
		"status":   "ready",
		"thoughts": thoughts,
		"contexts": contexts,
	})
}

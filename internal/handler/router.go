// Package handler provides the HTTP API of the Inkwell blog server.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Router wires handlers and middleware into one http.Handler.
type Router struct {
	users          *UserHandler
	categories     *CategoryHandler
	posts          *PostHandler
	comments       *CommentHandler
	media          *MediaHandler
	health         http.Handler
	metrics        http.Handler
	metricsPath    string
	instrument     func(http.Handler) http.Handler
	authMiddleware func(http.Handler) http.Handler
	requestTimeout time.Duration
	maxBodySize    int64
	logger         zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	UserHandler     *UserHandler
	CategoryHandler *CategoryHandler
	PostHandler     *PostHandler
	CommentHandler  *CommentHandler
	MediaHandler    *MediaHandler
	HealthHandler   http.Handler

	// MetricsHandler is mounted at MetricsPath when set.
	MetricsHandler http.Handler
	MetricsPath    string

	// Instrument wraps every request, typically with HTTP metrics.
	Instrument     func(http.Handler) http.Handler
	AuthMiddleware func(http.Handler) http.Handler

	RequestTimeout time.Duration
	MaxBodySize    int64
	Logger         zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	metricsPath := config.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	return &Router{
		users:          config.UserHandler,
		categories:     config.CategoryHandler,
		posts:          config.PostHandler,
		comments:       config.CommentHandler,
		media:          config.MediaHandler,
		health:         config.HealthHandler,
		metrics:        config.MetricsHandler,
		metricsPath:    metricsPath,
		instrument:     config.Instrument,
		authMiddleware: config.AuthMiddleware,
		requestTimeout: config.RequestTimeout,
		maxBodySize:    config.MaxBodySize,
		logger:         config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.accessLog)
	r.Use(middleware.Recoverer)
	if rt.instrument != nil {
		r.Use(rt.instrument)
	}

	if rt.health != nil {
		r.Method(http.MethodGet, "/health", rt.health)
	}
	if rt.metrics != nil {
		r.Method(http.MethodGet, rt.metricsPath, rt.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if rt.requestTimeout > 0 {
			r.Use(middleware.Timeout(rt.requestTimeout))
		}
		if rt.maxBodySize > 0 {
			r.Use(rt.limitBody)
		}
		if rt.authMiddleware != nil {
			r.Use(rt.authMiddleware)
		}

		if rt.users != nil {
			r.Route("/auth", rt.users.RegisterAuthRoutes)
			r.Route("/users", rt.users.RegisterUserRoutes)
		}
		if rt.categories != nil {
			r.Route("/categories", rt.categories.RegisterRoutes)
		}
		if rt.posts != nil {
			r.Route("/posts", rt.posts.RegisterRoutes)
		}
		if rt.comments != nil {
			r.Route("/comments", rt.comments.RegisterRoutes)
		}
		if rt.media != nil {
			r.Route("/media", rt.media.RegisterRoutes)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]APIError{"error": {
			Code:    "NOT_FOUND",
			Message: "no route for " + r.Method + " " + r.URL.Path,
		}})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]APIError{"error": {
			Code:    "METHOD_NOT_ALLOWED",
			Message: r.Method + " is not allowed on " + r.URL.Path,
		}})
	})
	return r
}

func (rt *Router) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, rt.maxBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// accessLog logs one line per request.
func (rt *Router) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		event := rt.logger.Debug()
		if status >= http.StatusInternalServerError {
			event = rt.logger.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

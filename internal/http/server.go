package http

import (
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"parkadmin/app/internal/auth"
	"parkadmin/app/internal/content"
	"parkadmin/app/internal/metrics"
	"parkadmin/app/internal/users"
)

const apiPrefix = "/api/v1"

var installErrorFormat sync.Once

// Options configures the HTTP server wiring.
type Options struct {
	Content        content.Service
	Users          users.Service
	Verifier       auth.Verifier
	Logger         *logrus.Logger
	SentryHub      *sentry.Hub
	Recorder       metrics.Recorder
	MetricsHandler stdhttp.Handler
	CORSOrigins    []string
	RateLimiter    RateLimiterSettings
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Server wires the HTTP transport layer via Huma on a chi router.
type Server struct {
	api         huma.API
	router      chi.Router
	content     content.Service
	users       users.Service
	verifier    auth.Verifier
	logger      *logrus.Logger
	sentry      *sentry.Hub
	recorder    metrics.Recorder
	rateLimiter *RateLimiter
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Content == nil {
		return nil, eris.New("content service is required")
	}
	if opts.Users == nil {
		return nil, eris.New("users service is required")
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		return nil, eris.New("rate limiter burst must be greater than zero")
	}
	if settings.RequestsPerSecond <= 0 {
		return nil, eris.New("rate limiter requests per second must be greater than zero")
	}
	if settings.ClientTTL <= 0 {
		return nil, eris.New("rate limiter client TTL must be greater than zero")
	}

	installErrorFormat.Do(func() { huma.NewError = newAPIError })

	router := chi.NewMux()
	router.Use(corsMiddleware(opts.CORSOrigins))

	config := huma.DefaultConfig("Park Admin API", "1.0.0")
	api := humachi.New(router, config)

	srv := &Server{
		api:         api,
		router:      router,
		content:     opts.Content,
		users:       opts.Users,
		verifier:    opts.Verifier,
		logger:      opts.Logger,
		sentry:      opts.SentryHub,
		recorder:    metrics.OrNop(opts.Recorder),
		rateLimiter: NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL),
	}

	if opts.MetricsHandler != nil {
		router.Handle("/metrics", opts.MetricsHandler)
	}

	srv.registerMiddlewares()
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.router
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.rateLimitMiddleware(),
		s.loggingMiddleware(),
		s.authMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.registerHealthRoute()
	s.registerHighlightRoutes()
	s.registerPressReleaseRoutes()
	s.registerSubscriberRoutes()
	s.registerCategoryRoutes()
	s.registerUserRoutes()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.router.ServeHTTP(w, r)
}

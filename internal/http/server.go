// Package http assembles the gateway HTTP server: the admission-control
// middleware chain in front of the upstream reverse proxy.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	authDomain "github.com/allisson/gatekeeper/internal/auth/domain"
	authService "github.com/allisson/gatekeeper/internal/auth/service"
	"github.com/allisson/gatekeeper/internal/config"
	gateDomain "github.com/allisson/gatekeeper/internal/gate/domain"
	gateHTTP "github.com/allisson/gatekeeper/internal/gate/http"
	"github.com/allisson/gatekeeper/internal/httputil"
	"github.com/allisson/gatekeeper/internal/metrics"
	"github.com/allisson/gatekeeper/internal/proxy"
	"github.com/allisson/gatekeeper/internal/ratelimit"
)

// Dependencies holds the components the server wires into its middleware chain.
type Dependencies struct {
	TokenService  authService.TokenService
	Limiter       *ratelimit.Limiter
	Policies      authDomain.RolePolicies
	Classifier    *gateDomain.Classifier
	ActionMapper  *gateDomain.ActionMapper
	Upstream      *proxy.Upstream
	Recorder      *metrics.AdmissionRecorder
	MeterProvider metric.MeterProvider
}

// Server represents the gateway HTTP server.
type Server struct {
	config *config.Config
	logger *slog.Logger
	deps   Dependencies
	router *gin.Engine
	server *http.Server
}

// NewServer creates a new gateway server. The router is built lazily on Start
// (or explicitly via SetupRouter in tests).
func NewServer(cfg *config.Config, logger *slog.Logger, deps Dependencies) *Server {
	return &Server{
		config: cfg,
		logger: logger,
		deps:   deps,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: cfg.UpstreamTimeout + 5*time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter builds the Gin engine with the full admission chain.
//
// Chain order matters: classification runs before any check so unprotected
// paths skip the gate entirely, rate limiting runs before authentication so a
// credential-stuffing flood burns its request budget before it burns CPU on
// verification, and authorization assumes authentication already populated the
// verified claims.
func (s *Server) SetupRouter() *gin.Engine {
	gin.SetMode(s.config.GetGinMode())

	router := gin.New()

	// Only honor X-Forwarded-For from explicitly trusted proxies; client IP is
	// a rate-limit key, so spoofing it must not be possible.
	if trusted := s.config.TrustedProxyList(); len(trusted) > 0 {
		_ = router.SetTrustedProxies(trusted)
	} else {
		_ = router.SetTrustedProxies(nil)
	}

	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(
		s.config.CORSEnabled,
		s.config.CORSAllowOrigins,
		s.logger,
	); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if s.deps.MeterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(s.deps.MeterProvider, s.config.MetricsNamespace))
	}

	router.Use(gateHTTP.SecurityHeadersMiddleware())
	router.Use(gateHTTP.ClassifyMiddleware(s.deps.Classifier))

	if s.config.LoginRateLimitEnabled {
		router.Use(gateHTTP.LoginRateLimitMiddleware(
			s.config.LoginPath,
			s.config.LoginRateLimitRequestsPerSec,
			s.config.LoginRateLimitBurst,
			s.logger,
		))
	}

	if s.config.RateLimitEnabled && s.deps.Limiter != nil {
		router.Use(gateHTTP.RateLimitMiddleware(
			s.deps.Limiter,
			s.deps.TokenService,
			s.config.SessionCookieName,
			s.deps.Recorder,
			s.logger,
		))
	}

	router.Use(gateHTTP.AuthenticationMiddleware(
		s.deps.TokenService,
		s.config.SessionCookieName,
		s.config.LoginPath,
		s.deps.Recorder,
		s.logger,
	))
	router.Use(gateHTTP.AuthorizationMiddleware(
		s.deps.Policies,
		s.deps.ActionMapper,
		s.deps.Recorder,
		s.logger,
	))

	// The gateway owns exactly one path; everything else belongs upstream.
	router.GET("/healthz", s.healthHandler)

	if s.deps.Upstream != nil {
		router.NoRoute(s.deps.Upstream.Handler())
	}

	s.router = router
	return router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	if s.router == nil {
		s.SetupRouter()
	}
	return s.router
}

// healthHandler reports gateway liveness. Served by the gateway itself, never
// proxied, so probes work while the upstream is down.
func (s *Server) healthHandler(c *gin.Context) {
	httputil.MakeJSONResponse(c.Writer, http.StatusOK, map[string]string{"status": "healthy"})
}

// Start starts the gateway HTTP server.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		s.SetupRouter()
	}
	s.server.Handler = s.router

	s.logger.Info("starting gateway server",
		slog.String("addr", s.server.Addr),
		slog.Any("protected_prefixes", s.config.ProtectedPrefixes()),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the gateway HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gateway server")
	return s.server.Shutdown(ctx)
}

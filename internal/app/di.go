// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"

	authDomain "github.com/allisson/gatekeeper/internal/auth/domain"
	authService "github.com/allisson/gatekeeper/internal/auth/service"
	"github.com/allisson/gatekeeper/internal/config"
	gateDomain "github.com/allisson/gatekeeper/internal/gate/domain"
	"github.com/allisson/gatekeeper/internal/http"
	"github.com/allisson/gatekeeper/internal/metrics"
	"github.com/allisson/gatekeeper/internal/proxy"
	"github.com/allisson/gatekeeper/internal/ratelimit"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger      *slog.Logger
	redisClient redis.UniversalClient

	// Core components
	secretResolver  authService.SecretResolver
	tokenService    authService.TokenService
	policies        authDomain.RolePolicies
	classifier      *gateDomain.Classifier
	actionMapper    *gateDomain.ActionMapper
	limiterStore    ratelimit.Store
	memoryStore     *ratelimit.MemoryStore
	limiter         *ratelimit.Limiter
	upstream        *proxy.Upstream
	metricsProvider *metrics.Provider
	recorder        *metrics.AdmissionRecorder

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	redisClientInit     sync.Once
	tokenServiceInit    sync.Once
	policiesInit        sync.Once
	classifierInit      sync.Once
	actionMapperInit    sync.Once
	limiterStoreInit    sync.Once
	limiterInit         sync.Once
	upstreamInit        sync.Once
	metricsProviderInit sync.Once
	recorderInit        sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// RedisClient returns the redis client used by the shared window store.
func (c *Container) RedisClient() redis.UniversalClient {
	c.redisClientInit.Do(func() {
		c.redisClient = redis.NewClient(&redis.Options{
			Addr:     c.config.RedisAddr,
			Password: c.config.RedisPassword,
			DB:       c.config.RedisDB,
		})
	})
	return c.redisClient
}

// TokenService returns the credential verifier. Resolving the signing secret
// may call out to a KMS, hence the context.
func (c *Container) TokenService(ctx context.Context) (authService.TokenService, error) {
	c.tokenServiceInit.Do(func() {
		tokenService, err := c.initTokenService(ctx)
		if err != nil {
			c.initErrors["tokenService"] = err
			return
		}
		c.tokenService = tokenService
	})
	if storedErr, exists := c.initErrors["tokenService"]; exists {
		return nil, storedErr
	}
	return c.tokenService, nil
}

// RolePolicies returns the role to capability-set table.
func (c *Container) RolePolicies() (authDomain.RolePolicies, error) {
	c.policiesInit.Do(func() {
		policies, err := c.initRolePolicies()
		if err != nil {
			c.initErrors["policies"] = err
			return
		}
		c.policies = policies
	})
	if storedErr, exists := c.initErrors["policies"]; exists {
		return nil, storedErr
	}
	return c.policies, nil
}

// Classifier returns the route classifier.
func (c *Container) Classifier() *gateDomain.Classifier {
	c.classifierInit.Do(func() {
		c.classifier = gateDomain.NewClassifier(
			c.config.ProtectedPrefixes(),
			c.config.APIPathPrefix,
		)
	})
	return c.classifier
}

// ActionMapper returns the request-to-capability mapper.
func (c *Container) ActionMapper() *gateDomain.ActionMapper {
	c.actionMapperInit.Do(func() {
		c.actionMapper = gateDomain.NewActionMapper(c.config.AdminPrefixes())
	})
	return c.actionMapper
}

// LimiterStore returns the sliding-window store selected by configuration.
func (c *Container) LimiterStore() (ratelimit.Store, error) {
	c.limiterStoreInit.Do(func() {
		store, err := c.initLimiterStore()
		if err != nil {
			c.initErrors["limiterStore"] = err
			return
		}
		c.limiterStore = store
	})
	if storedErr, exists := c.initErrors["limiterStore"]; exists {
		return nil, storedErr
	}
	return c.limiterStore, nil
}

// Limiter returns the sliding-window limiter.
func (c *Container) Limiter() (*ratelimit.Limiter, error) {
	c.limiterInit.Do(func() {
		store, err := c.LimiterStore()
		if err != nil {
			c.initErrors["limiter"] = err
			return
		}
		c.limiter = ratelimit.NewLimiter(store, c.Logger())
	})
	if storedErr, exists := c.initErrors["limiter"]; exists {
		return nil, storedErr
	}
	return c.limiter, nil
}

// Upstream returns the reverse proxy to the admin application.
func (c *Container) Upstream() (*proxy.Upstream, error) {
	c.upstreamInit.Do(func() {
		upstream, err := proxy.NewUpstream(
			c.config.UpstreamURL,
			c.config.UpstreamTimeout,
			c.Logger(),
		)
		if err != nil {
			c.initErrors["upstream"] = fmt.Errorf("failed to create upstream proxy: %w", err)
			return
		}
		c.upstream = upstream
	})
	if storedErr, exists := c.initErrors["upstream"]; exists {
		return nil, storedErr
	}
	return c.upstream, nil
}

// MetricsProvider returns the metrics provider instance.
// Returns nil if metrics are disabled in configuration.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = fmt.Errorf("failed to create metrics provider: %w", err)
			return
		}
		c.metricsProvider = provider
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// AdmissionRecorder returns the admission decision recorder.
// Returns nil (a valid no-op recorder) if metrics are disabled.
func (c *Container) AdmissionRecorder() (*metrics.AdmissionRecorder, error) {
	c.recorderInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["recorder"] = err
			return
		}
		if provider == nil {
			return
		}
		recorder, err := metrics.NewAdmissionRecorder(
			provider.MeterProvider(),
			c.config.MetricsNamespace,
		)
		if err != nil {
			c.initErrors["recorder"] = fmt.Errorf("failed to create admission recorder: %w", err)
			return
		}
		c.recorder = recorder
	})
	if storedErr, exists := c.initErrors["recorder"]; exists {
		return nil, storedErr
	}
	return c.recorder, nil
}

// HTTPServer returns the gateway HTTP server instance.
func (c *Container) HTTPServer(ctx context.Context) (*http.Server, error) {
	c.httpServerInit.Do(func() {
		server, err := c.initHTTPServer(ctx)
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		c.httpServer = server
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics HTTP server instance.
// Returns nil if metrics are disabled in configuration.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = err
			return
		}
		if provider == nil {
			return
		}
		c.metricsServer = http.NewMetricsServer(
			c.config.ServerHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// StartJanitor starts the in-memory store's eviction sweeps. No-op when the
// window store is redis-backed; sweeps stop when the context is cancelled.
func (c *Container) StartJanitor(ctx context.Context) {
	c.mu.Lock()
	store := c.memoryStore
	c.mu.Unlock()

	if store != nil {
		store.StartJanitor(ctx)
	}
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("redis close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initTokenService resolves the signing secret and creates the verifier.
func (c *Container) initTokenService(ctx context.Context) (authService.TokenService, error) {
	if c.secretResolver == nil {
		if c.config.KMSKeyURI != "" {
			c.secretResolver = authService.NewKMSSecretResolver(
				c.config.KMSKeyURI,
				c.config.SigningSecretEncrypted,
			)
		} else {
			c.secretResolver = authService.NewStaticSecretResolver(c.config.SigningSecret)
		}
	}

	secret, err := c.secretResolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve signing secret: %w", err)
	}

	tokenService, err := authService.NewTokenService(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	return tokenService, nil
}

// initRolePolicies loads the role policy table from configuration or defaults.
func (c *Container) initRolePolicies() (authDomain.RolePolicies, error) {
	if c.config.RolePoliciesJSON == "" {
		return authDomain.DefaultRolePolicies(), nil
	}

	policies, err := authDomain.ParseRolePolicies(c.config.RolePoliciesJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to parse role policies: %w", err)
	}

	return policies, nil
}

// initLimiterStore creates the sliding-window store selected by configuration.
func (c *Container) initLimiterStore() (ratelimit.Store, error) {
	switch c.config.RateLimitStore {
	case "redis":
		return ratelimit.NewRedisStore(
			c.RedisClient(),
			c.config.RateLimitWindow,
			c.config.RateLimitCeiling,
		), nil
	case "memory":
		store := ratelimit.NewMemoryStore(c.config.RateLimitWindow, c.config.RateLimitCeiling)
		c.mu.Lock()
		c.memoryStore = store
		c.mu.Unlock()
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported rate limit store: %s", c.config.RateLimitStore)
	}
}

// initHTTPServer creates the gateway HTTP server with all its dependencies.
func (c *Container) initHTTPServer(ctx context.Context) (*http.Server, error) {
	logger := c.Logger()

	tokenService, err := c.TokenService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get token service for http server: %w", err)
	}

	policies, err := c.RolePolicies()
	if err != nil {
		return nil, fmt.Errorf("failed to get role policies for http server: %w", err)
	}

	upstream, err := c.Upstream()
	if err != nil {
		return nil, fmt.Errorf("failed to get upstream for http server: %w", err)
	}

	recorder, err := c.AdmissionRecorder()
	if err != nil {
		return nil, fmt.Errorf("failed to get admission recorder for http server: %w", err)
	}

	deps := http.Dependencies{
		TokenService: tokenService,
		Policies:     policies,
		Classifier:   c.Classifier(),
		ActionMapper: c.ActionMapper(),
		Upstream:     upstream,
		Recorder:     recorder,
	}

	if c.config.RateLimitEnabled {
		limiter, err := c.Limiter()
		if err != nil {
			return nil, fmt.Errorf("failed to get limiter for http server: %w", err)
		}
		deps.Limiter = limiter
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}
	if provider != nil {
		deps.MeterProvider = provider.MeterProvider()
	}

	return http.NewServer(c.config, logger, deps), nil
}

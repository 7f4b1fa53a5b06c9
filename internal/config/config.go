// Package config provides application configuration through environment variables.
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"

	apperrors "github.com/allisson/gatekeeper/internal/errors"
)

// weakSecrets are signing secrets that must never survive config validation.
// The value "change-me" is the historical hardcoded fallback; tolerating it
// would let a misconfigured deployment verify tokens anyone can forge.
var weakSecrets = []string{
	"change-me",
	"changeme",
	"secret",
	"default",
	"your-secret-key",
}

// minSigningSecretLength is the minimum accepted signing secret length in bytes.
const minSigningSecretLength = 32

// Config holds all application configuration.
type Config struct {
	// ServerHost is the host address the server will bind to.
	ServerHost string
	// ServerPort is the port number the server will listen on.
	ServerPort int

	// UpstreamURL is the base URL of the admin application behind the gateway.
	UpstreamURL string
	// UpstreamTimeout is the per-request timeout for upstream responses.
	UpstreamTimeout time.Duration

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string

	// SigningSecret is the symmetric secret used to verify credentials.
	// Required unless KMSKeyURI is set.
	SigningSecret string
	// KMSKeyURI selects a KMS keeper used to decrypt SigningSecretEncrypted
	// at startup (e.g., "gcpkms://...", "hashivault://...", "base64key://...").
	KMSKeyURI string
	// SigningSecretEncrypted is the base64 KMS-wrapped signing secret.
	SigningSecretEncrypted string
	// SessionCookieName is the cookie carrying the admin session token.
	SessionCookieName string
	// AuthTokenExpiration is the duration after which an issued token expires.
	AuthTokenExpiration time.Duration
	// LoginPath is the login entry point unauthenticated browser requests are
	// redirected to.
	LoginPath string

	// ProtectedPathPrefixes is a comma-separated list of protected path prefixes.
	ProtectedPathPrefixes string
	// APIPathPrefix marks paths whose rejections are structured JSON.
	APIPathPrefix string
	// AdminPathPrefixes is a comma-separated list of paths demanding the
	// manage_admins capability.
	AdminPathPrefixes string
	// RolePoliciesJSON overrides the built-in role policy table when non-empty.
	RolePoliciesJSON string

	// RateLimitEnabled indicates whether sliding-window rate limiting is enabled.
	RateLimitEnabled bool
	// RateLimitWindow is the sliding-window duration.
	RateLimitWindow time.Duration
	// RateLimitCeiling is the maximum number of requests per window per client key.
	RateLimitCeiling int
	// RateLimitStore selects the window store backend: "memory" or "redis".
	RateLimitStore string

	// RedisAddr is the redis address used when RateLimitStore is "redis".
	RedisAddr string
	// RedisPassword is the redis password (empty for none).
	RedisPassword string
	// RedisDB is the redis database number.
	RedisDB int

	// LoginRateLimitEnabled indicates whether the per-IP login throttle is enabled.
	LoginRateLimitEnabled bool
	// LoginRateLimitRequestsPerSec is the sustained login attempt rate per IP.
	LoginRateLimitRequestsPerSec float64
	// LoginRateLimitBurst is the login throttle burst size per IP.
	LoginRateLimitBurst int

	// CORSEnabled indicates whether CORS is enabled.
	CORSEnabled bool
	// CORSAllowOrigins is a comma-separated list of allowed origins for CORS.
	CORSAllowOrigins string

	// MetricsEnabled indicates whether metrics collection is enabled.
	MetricsEnabled bool
	// MetricsNamespace is the namespace for the application metrics.
	MetricsNamespace string
	// MetricsPort is the port number for the metrics server.
	MetricsPort int

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Forwarded-For values are trusted for client IP resolution.
	TrustedProxies string
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	// Try to load .env file recursively
	loadDotEnv()

	return &Config{
		// Server configuration
		ServerHost: env.GetString("SERVER_HOST", "0.0.0.0"),
		ServerPort: env.GetInt("SERVER_PORT", 8080),

		// Upstream configuration
		UpstreamURL:     env.GetString("UPSTREAM_URL", ""),
		UpstreamTimeout: env.GetDuration("UPSTREAM_TIMEOUT_SECONDS", 30, time.Second),

		// Logging
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		// Auth
		SigningSecret:          env.GetString("SIGNING_SECRET", ""),
		KMSKeyURI:              env.GetString("KMS_KEY_URI", ""),
		SigningSecretEncrypted: env.GetString("SIGNING_SECRET_ENCRYPTED", ""),
		SessionCookieName:      env.GetString("SESSION_COOKIE_NAME", "admin_session"),
		AuthTokenExpiration:    env.GetDuration("AUTH_TOKEN_EXPIRATION_SECONDS", 14400, time.Second),
		LoginPath:              env.GetString("LOGIN_PATH", "/login"),

		// Route classification
		ProtectedPathPrefixes: env.GetString(
			"PROTECTED_PATH_PREFIXES",
			"/dashboard,/merchants,/riders,/finance,/api",
		),
		APIPathPrefix:     env.GetString("API_PATH_PREFIX", "/api"),
		AdminPathPrefixes: env.GetString("ADMIN_PATH_PREFIXES", "/api/admins"),
		RolePoliciesJSON:  env.GetString("ROLE_POLICIES_JSON", ""),

		// Rate Limiting (protected paths, sliding window)
		RateLimitEnabled: env.GetBool("RATE_LIMIT_ENABLED", true),
		RateLimitWindow:  env.GetDuration("RATE_LIMIT_WINDOW_MS", 60000, time.Millisecond),
		RateLimitCeiling: env.GetInt("RATE_LIMIT_CEILING", 100),
		RateLimitStore:   env.GetString("RATE_LIMIT_STORE", "memory"),

		// Redis (shared window store)
		RedisAddr:     env.GetString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: env.GetString("REDIS_PASSWORD", ""),
		RedisDB:       env.GetInt("REDIS_DB", 0),

		// Rate Limiting for the login entry point (IP-based, unauthenticated)
		LoginRateLimitEnabled:        env.GetBool("LOGIN_RATE_LIMIT_ENABLED", true),
		LoginRateLimitRequestsPerSec: env.GetFloat64("LOGIN_RATE_LIMIT_REQUESTS_PER_SEC", 5.0),
		LoginRateLimitBurst:          env.GetInt("LOGIN_RATE_LIMIT_BURST", 10),

		// CORS
		CORSEnabled:      env.GetBool("CORS_ENABLED", false),
		CORSAllowOrigins: env.GetString("CORS_ALLOW_ORIGINS", ""),

		// Metrics
		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "gatekeeper"),
		MetricsPort:      env.GetInt("METRICS_PORT", 8081),

		// Proxy trust
		TrustedProxies: env.GetString("TRUSTED_PROXIES", ""),
	}
}

// Validate checks the configuration for unsafe or inconsistent values.
// Returns ErrConfiguration-wrapped errors; callers must treat any error as
// fatal at process start.
func (c *Config) Validate() error {
	if err := c.validateSigningSecret(); err != nil {
		return err
	}

	if c.UpstreamURL == "" {
		return apperrors.Wrap(apperrors.ErrConfiguration, "UPSTREAM_URL is required")
	}
	parsed, err := url.Parse(c.UpstreamURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return apperrors.Wrap(apperrors.ErrConfiguration, "UPSTREAM_URL must be an absolute URL")
	}

	if c.RateLimitWindow <= 0 {
		return apperrors.Wrap(apperrors.ErrConfiguration, "RATE_LIMIT_WINDOW_MS must be positive")
	}
	if c.RateLimitCeiling <= 0 {
		return apperrors.Wrap(apperrors.ErrConfiguration, "RATE_LIMIT_CEILING must be positive")
	}

	switch c.RateLimitStore {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return apperrors.Wrap(
				apperrors.ErrConfiguration,
				"REDIS_ADDR is required when RATE_LIMIT_STORE is redis",
			)
		}
	default:
		return apperrors.Wrap(
			apperrors.ErrConfiguration,
			"RATE_LIMIT_STORE must be either memory or redis",
		)
	}

	if len(c.ProtectedPrefixes()) == 0 {
		return apperrors.Wrap(apperrors.ErrConfiguration, "PROTECTED_PATH_PREFIXES must not be empty")
	}

	if !strings.HasPrefix(c.LoginPath, "/") {
		return apperrors.Wrap(apperrors.ErrConfiguration, "LOGIN_PATH must be an absolute path")
	}

	return nil
}

// validateSigningSecret enforces the fail-closed secret policy: a plain secret
// must be present, long enough, and not a known-weak value. When the secret
// arrives KMS-wrapped, decryption failures surface at startup instead.
func (c *Config) validateSigningSecret() error {
	if c.KMSKeyURI != "" {
		if c.SigningSecretEncrypted == "" {
			return apperrors.Wrap(
				apperrors.ErrConfiguration,
				"SIGNING_SECRET_ENCRYPTED is required when KMS_KEY_URI is set",
			)
		}
		return nil
	}

	if c.SigningSecret == "" {
		return apperrors.Wrap(apperrors.ErrConfiguration, "SIGNING_SECRET is required")
	}
	if len(c.SigningSecret) < minSigningSecretLength {
		return apperrors.Wrap(
			apperrors.ErrConfiguration,
			"SIGNING_SECRET must be at least 32 characters",
		)
	}
	for _, weak := range weakSecrets {
		if strings.EqualFold(c.SigningSecret, weak) {
			return apperrors.Wrap(apperrors.ErrConfiguration, "SIGNING_SECRET is a known-weak value")
		}
	}

	return nil
}

// ProtectedPrefixes returns the parsed protected path prefix list.
func (c *Config) ProtectedPrefixes() []string {
	return splitAndTrim(c.ProtectedPathPrefixes)
}

// AdminPrefixes returns the parsed admin-management path prefix list.
func (c *Config) AdminPrefixes() []string {
	return splitAndTrim(c.AdminPathPrefixes)
}

// TrustedProxyList returns the parsed trusted proxy list.
func (c *Config) TrustedProxyList() []string {
	return splitAndTrim(c.TrustedProxies)
}

// GetGinMode returns the appropriate Gin mode based on log level.
func (c *Config) GetGinMode() string {
	switch c.LogLevel {
	case "debug":
		return "debug"
	case "info", "warn", "error":
		return "release"
	default:
		return "release"
	}
}

// splitAndTrim parses a comma-separated list and trims whitespace.
func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	// Search for .env file recursively up the directory tree
	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			// .env file found, load it
			_ = godotenv.Load(envPath)
			return
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root directory
			break
		}
		dir = parent
	}
}

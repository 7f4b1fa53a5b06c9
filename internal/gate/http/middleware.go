package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	authDomain "github.com/allisson/gatekeeper/internal/auth/domain"
	authService "github.com/allisson/gatekeeper/internal/auth/service"
	apperrors "github.com/allisson/gatekeeper/internal/errors"
	gateDomain "github.com/allisson/gatekeeper/internal/gate/domain"
	"github.com/allisson/gatekeeper/internal/httputil"
	"github.com/allisson/gatekeeper/internal/metrics"
)

// DefaultSessionCookie is the cookie carrying the admin session token on
// browser-rendered routes.
const DefaultSessionCookie = "admin_session"

// SecurityHeadersMiddleware attaches the baseline security response headers.
// Headers are set before any other middleware runs, so every outcome
// (forward, redirect, or rejection) carries them.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// ClassifyMiddleware classifies the request path once and stores the result
// for the rest of the chain. Unprotected paths skip every subsequent check.
func ClassifyMiddleware(classifier *gateDomain.Classifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(routeClassGinKey, classifier.Classify(c.Request.URL.Path))
		c.Next()
	}
}

// AuthenticationMiddleware verifies the request credential on protected paths.
//
// The credential is taken from the Authorization header ("Bearer <token>",
// case-insensitive) or, failing that, from the admin session cookie. Browser
// paths with a missing or invalid credential are redirected to the login entry
// point; API paths receive a structured 401.
//
// On success the verified claims are stored in the request context and the
// inbound identity headers are replaced, so downstream handlers can trust
// X-Auth-Subject and X-Auth-Role unconditionally.
func AuthenticationMiddleware(
	tokenService authService.TokenService,
	cookieName string,
	loginPath string,
	recorder *metrics.AdmissionRecorder,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		class := routeClass(c)
		if !class.Protected {
			c.Next()
			return
		}

		result := resolveCredential(c, tokenService, cookieName)
		if result.Err != nil || result.Claims == nil {
			err := result.Err
			if err == nil {
				err = authDomain.ErrNoCredential
			}

			recorder.Record(c.Request.Context(), metrics.DecisionUnauthenticated)

			if class.API {
				logger.Debug("authentication failed",
					slog.String("path", c.Request.URL.Path),
					slog.Any("error", err))
				httputil.HandleErrorGin(c, err, logger)
				c.Abort()
				return
			}

			logger.Debug("redirecting unauthenticated browser request",
				slog.String("path", c.Request.URL.Path))
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}

		claims := result.Claims

		// Never trust inbound identity headers.
		c.Request.Header.Set("X-Auth-Subject", claims.Subject)
		c.Request.Header.Set("X-Auth-Role", string(claims.Role))

		c.Request = c.Request.WithContext(WithClaims(c.Request.Context(), claims))

		logger.Debug("authentication successful",
			slog.String("subject", claims.Subject),
			slog.String("role", string(claims.Role)))

		c.Next()
	}
}

// AuthorizationMiddleware checks that the authenticated role's capability set
// permits the capability the request demands. MUST run after
// AuthenticationMiddleware on protected paths.
func AuthorizationMiddleware(
	policies authDomain.RolePolicies,
	mapper *gateDomain.ActionMapper,
	recorder *metrics.AdmissionRecorder,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		class := routeClass(c)
		if !class.Protected {
			recorder.Record(c.Request.Context(), metrics.DecisionForwarded)
			c.Next()
			return
		}

		claims, ok := GetClaims(c.Request.Context())
		if !ok || claims == nil {
			// Authentication middleware not run; refuse rather than guess.
			logger.Error("authorization failed: no verified claims in context")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		capability := mapper.CapabilityFor(c.Request.Method, c.Request.URL.Path)
		if !policies.IsAllowed(claims.Role, capability) {
			logger.Debug("authorization failed: insufficient permissions",
				slog.String("subject", claims.Subject),
				slog.String("role", string(claims.Role)),
				slog.String("path", c.Request.URL.Path),
				slog.String("capability", string(capability)))
			recorder.Record(c.Request.Context(), metrics.DecisionForbidden)
			httputil.HandleErrorGin(c, apperrors.Wrap(
				apperrors.ErrForbidden,
				fmt.Sprintf("role %s lacks capability %s", claims.Role, capability),
			), logger)
			c.Abort()
			return
		}

		recorder.Record(c.Request.Context(), metrics.DecisionForwarded)
		c.Next()
	}
}

// routeClass returns the classification stored by ClassifyMiddleware.
// A missing entry classifies as protected API, failing closed.
func routeClass(c *gin.Context) gateDomain.RouteClass {
	if value, ok := c.Get(routeClassGinKey); ok {
		if class, ok := value.(gateDomain.RouteClass); ok {
			return class
		}
	}
	return gateDomain.RouteClass{Protected: true, API: true}
}

// resolveCredential extracts and verifies the request credential, caching the
// result in the gin context so rate limiting and authentication share one
// verification.
func resolveCredential(
	c *gin.Context,
	tokenService authService.TokenService,
	cookieName string,
) credentialResult {
	if value, ok := c.Get(credentialGinKey); ok {
		if cached, ok := value.(credentialResult); ok {
			return cached
		}
	}

	result := credentialResult{}
	if token := extractToken(c, cookieName); token != "" {
		claims, err := tokenService.Verify(token)
		result = credentialResult{Claims: claims, Err: err}
	}

	c.Set(credentialGinKey, result)
	return result
}

// extractToken returns the bearer credential from the Authorization header or
// the session cookie. The header wins when both are present.
func extractToken(c *gin.Context, cookieName string) string {
	const bearerPrefix = "bearer "

	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > len(bearerPrefix) &&
		strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return authHeader[len(bearerPrefix):]
	}

	if cookie, err := c.Cookie(cookieName); err == nil {
		return cookie
	}

	return ""
}

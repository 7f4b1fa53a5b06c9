package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	authService "github.com/allisson/gatekeeper/internal/auth/service"
	apperrors "github.com/allisson/gatekeeper/internal/errors"
	"github.com/allisson/gatekeeper/internal/httputil"
	"github.com/allisson/gatekeeper/internal/metrics"
	"github.com/allisson/gatekeeper/internal/ratelimit"
)

// RateLimitMiddleware enforces the sliding-window request ceiling on protected
// paths. Runs before authentication so a flood of garbage credentials still
// burns the client's budget, not CPU on downstream checks.
//
// Client key policy: the authenticated subject when the request carries a
// verifiable credential, otherwise the client IP. Keying by subject keeps one
// user behind many IPs inside a single budget, while NATed users without
// credentials share an IP budget only until they log in.
//
// Returns 429 with a structured body when the ceiling is hit; rejected
// requests do not mutate the recorded window.
func RateLimitMiddleware(
	limiter *ratelimit.Limiter,
	tokenService authService.TokenService,
	cookieName string,
	recorder *metrics.AdmissionRecorder,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		class := routeClass(c)
		if !class.Protected {
			c.Next()
			return
		}

		clientKey := c.ClientIP()
		if result := resolveCredential(c, tokenService, cookieName); result.Err == nil && result.Claims != nil {
			clientKey = "sub:" + result.Claims.Subject
		}

		if !limiter.Admit(c.Request.Context(), clientKey) {
			logger.Debug("rate limit exceeded",
				slog.String("client_key", clientKey),
				slog.String("path", c.Request.URL.Path))
			recorder.Record(c.Request.Context(), metrics.DecisionRateLimited)
			httputil.HandleErrorGin(c, apperrors.ErrRateLimited, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}

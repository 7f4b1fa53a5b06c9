package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Limiter decides whether a client's request is admitted under the sliding
// window. It wraps a Store with the failure policy: when the store errors
// (e.g. redis unreachable), the limiter fails open and admits, on the grounds
// that rate limiting is advisory while availability of the admin surface is
// not. The error is logged so operators notice the degraded state.
type Limiter struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewLimiter creates a Limiter on top of a Store.
func NewLimiter(store Store, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, logger: logger, now: time.Now}
}

// Admit returns true when the request identified by clientKey is within the
// configured ceiling for the current window.
func (l *Limiter) Admit(ctx context.Context, clientKey string) bool {
	admitted, err := l.store.Admit(ctx, clientKey, l.now())
	if err != nil {
		l.logger.Error("rate limit store failed, admitting request",
			slog.String("client_key", clientKey),
			slog.Any("error", err),
		)
		return true
	}
	return admitted
}

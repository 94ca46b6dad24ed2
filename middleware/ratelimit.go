package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/hedeqiang/tokenwatch/notify"
)

// RateLimit paces deliveries to stay under a provider's send quota.
// Deliveries wait for a token instead of being dropped.
type RateLimit struct {
	limiter *rate.Limiter
}

// NewRateLimit creates a middleware allowing perSecond deliveries per second
// with bursts of burst. A non-positive perSecond disables pacing.
func NewRateLimit(perSecond float64, burst int) *RateLimit {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimit{limiter: rate.NewLimiter(limit, burst)}
}

// Wrap decorates the handler with rate limiting.
func (r *RateLimit) Wrap(next Handler) Handler {
	return func(ctx context.Context, n notify.Notification) error {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limit: %w", notify.ErrDispatch, err)
		}
		return next(ctx, n)
	}
}

package services

import (
	"context"
	"fmt"

	"service-auction/internal/domain"
	"service-auction/pkg/logger"
)

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// checkRateLimit fails open: a broken limiter must not stop bidding.
func checkRateLimit(ctx context.Context, limiter domain.RateLimiter, log logger.Logger, key string) error {
	if limiter == nil {
		return nil
	}
	ok, err := limiter.Allow(ctx, key)
	if err != nil {
		log.Warn("Rate limiter unavailable, allowing request", "key", key, "error", err)
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, key)
	}
	return nil
}

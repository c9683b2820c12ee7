package translator

import (
	"context"

	"golang.org/x/time/rate"
)

// DefaultRateLimit is the default provider QPS.
const DefaultRateLimit = 5

// RateLimiter bounds outbound provider calls across all passes.
type RateLimiter struct {
	limiter *rate.Limiter
}

func NewRateLimiter(qps int) *RateLimiter {
	if qps <= 0 {
		qps = DefaultRateLimit
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(qps), qps), // burst = qps
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

func (r *RateLimiter) Limit() int {
	return int(r.limiter.Limit())
}

package chainadapter

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateLimiter is a token-bucket limiter with continuous (non-tick) refill,
// matching the original RPC throttle: a real-valued token count topped up
// proportionally to elapsed wall time rather than on a fixed tick.
type RateLimiter struct {
	mu             sync.Mutex
	maxTokens      float64
	tokens         float64
	refillRate     float64
	refillInterval time.Duration
	lastRefill     time.Time
	log            *zap.SugaredLogger
}

func NewRateLimiter(maxTokens int, refillRate float64, refillInterval time.Duration, log *zap.SugaredLogger) *RateLimiter {
	return &RateLimiter{
		maxTokens:      float64(maxTokens),
		tokens:         float64(maxTokens),
		refillRate:     refillRate,
		refillInterval: refillInterval,
		lastRefill:     time.Now(),
		log:            log,
	}
}

func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefill)
	refillCount := (elapsed.Seconds() / r.refillInterval.Seconds()) * r.refillRate
	if refillCount > 0 {
		r.tokens = math.Min(r.maxTokens, r.tokens+refillCount)
		r.lastRefill = now
	}
}

// Acquire takes `tokens` tokens from the bucket, waiting up to maxWait if
// the bucket is currently short, per the original acquire(wait=True) path.
func (r *RateLimiter) Acquire(ctx context.Context, tokens float64, maxWait time.Duration) bool {
	r.mu.Lock()
	r.refill()
	if r.tokens >= tokens {
		r.tokens -= tokens
		r.mu.Unlock()
		return true
	}

	waitSeconds := (tokens - r.tokens) * r.refillInterval.Seconds() / r.refillRate
	waitDuration := time.Duration(waitSeconds * float64(time.Second))
	if waitDuration > maxWait {
		r.log.Warnw("rate limit exceeded, wait time beyond max", "wait_seconds", waitSeconds, "max_wait_seconds", maxWait.Seconds())
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()

	r.log.Infow("rate limit hit, waiting for tokens", "wait_seconds", waitSeconds)
	select {
	case <-time.After(waitDuration):
	case <-ctx.Done():
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	if r.tokens >= tokens {
		r.tokens -= tokens
		return true
	}
	return false
}

// Execute runs fn under the limiter, retrying with exponential backoff when
// fn's error classifies as ErrRateLimited, matching
// execute_with_rate_limit's 429 retry loop.
func (r *RateLimiter) Execute(ctx context.Context, retryCount int, backoffFactor float64, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= retryCount; attempt++ {
		if !r.Acquire(ctx, 1, 30*time.Second) {
			return newChainError(ErrRateLimited, "rate limit exceeded and maximum wait time reached", nil)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		ce := ClassifyError(err)
		if ce.Kind != ErrRateLimited {
			return err
		}

		if attempt < retryCount {
			wait := time.Duration(math.Pow(backoffFactor, float64(attempt)) * float64(time.Second))
			r.log.Warnw("rate limit (429) hit, retrying", "wait_seconds", wait.Seconds(), "attempt", attempt+1, "retry_count", retryCount)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		r.log.Errorw("rate limit (429) hit, max retries exceeded", "retry_count", retryCount)
	}
	return lastErr
}

package potlai

import (
	"context"
	"sync"
	"time"
)

// RateLimiter paces outgoing requests with a token bucket.
type RateLimiter struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	RequestsPerMinute int // Maximum requests per minute (default 60)
	BurstSize         int // Maximum burst size (default: same as RPM)
}

// NewRateLimiter creates a new rate limiter with a full bucket.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rpm := float64(cfg.RequestsPerMinute)
	if rpm <= 0 {
		rpm = 60
	}

	burst := float64(cfg.BurstSize)
	if burst <= 0 {
		burst = rpm
	}

	return &RateLimiter{
		tokens:     burst,
		maxTokens:  burst,
		refillRate: rpm / 60.0,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait := r.reserve()
		if wait == 0 {
			return nil
		}
		if err := sleepContext(ctx, wait); err != nil {
			return err
		}
	}
}

// TryAcquire takes a token without blocking.
func (r *RateLimiter) TryAcquire() bool {
	return r.reserve() == 0
}

// reserve takes a token and returns 0, or returns how long until one is due.
func (r *RateLimiter) reserve() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens >= 1 {
		r.tokens--
		return 0
	}
	missing := 1 - r.tokens
	if wait := time.Duration(missing / r.refillRate * float64(time.Second)); wait > time.Millisecond {
		return wait
	}
	return time.Millisecond
}

// refill adds tokens for the elapsed time. Callers hold r.mu.
func (r *RateLimiter) refill() {
	now := r.now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.lastRefill = now

	r.tokens += elapsed * r.refillRate
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
}

// Available returns the current number of available tokens.
func (r *RateLimiter) Available() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	return r.tokens
}

// RateLimitedClient paces a CompletionClient on the client side so fewer
// requests are rejected by the backend.
type RateLimitedClient struct {
	client  CompletionClient
	limiter *RateLimiter
}

// NewRateLimitedClient wraps client with a token bucket limiter.
func NewRateLimitedClient(client CompletionClient, cfg RateLimitConfig) *RateLimitedClient {
	return &RateLimitedClient{
		client:  client,
		limiter: NewRateLimiter(cfg),
	}
}

// Complete implements CompletionClient.
func (c *RateLimitedClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{
			Message: "rate limit wait cancelled",
			Cause:   err,
			Kind:    KindFatal,
		}
	}
	return c.client.Complete(ctx, req)
}

// Limiter returns the underlying rate limiter for inspection.
func (c *RateLimitedClient) Limiter() *RateLimiter {
	return c.limiter
}

var _ CompletionClient = (*RateLimitedClient)(nil)

package potlai

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	MaxAttempts int           // Total attempts including the first (default 3)
	BaseDelay   time.Duration // Delay before retrying non rate-limit failures; 0 retries immediately
	MaxDelay    time.Duration // Upper bound for the exponential delay
	Cooldown    *Cooldown     // Shared rate-limit cooldown (optional)

	// OnRetry is called before every repeated attempt.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns three attempts with immediate retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		MaxDelay:    30 * time.Second,
	}
}

// RetryFunc is a function that can be retried.
type RetryFunc[T any] func(ctx context.Context) (T, error)

// WithRetry runs fn until it succeeds, fails with a non-retryable error, or
// runs out of attempts. Rate-limited attempts go through cfg.Cooldown before
// the next try; every attempt first waits for a running cooldown to end.
// The last error is returned unwrapped.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn RetryFunc[T]) (T, error) {
	var lastErr error
	var zero T

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if cfg.Cooldown != nil {
			if err := cfg.Cooldown.Wait(ctx); err != nil {
				return zero, err
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == attempts {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		if IsRateLimited(err) && cfg.Cooldown != nil {
			if err := cfg.Cooldown.Trigger(ctx); err != nil {
				return zero, err
			}
			continue
		}

		if cfg.BaseDelay > 0 {
			delay := cfg.BaseDelay * time.Duration(1<<(attempt-1))
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			if err := sleepContext(ctx, delay); err != nil {
				return zero, err
			}
		}
	}

	return zero, lastErr
}

// Cooldown is the rate-limit backoff shared by every attempt of an
// orchestrator. At most one cooldown sleep runs at a time: callers that hit a
// rate limit while one is running wait for it instead of sleeping again.
type Cooldown struct {
	period time.Duration
	sleep  func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	run    *cooldownRun // non-nil while a cooldown runs
	sleeps atomic.Int64
}

// cooldownRun is one cooldown window. cut is set before done closes when the
// sleeping caller gave up before until.
type cooldownRun struct {
	done  chan struct{}
	until time.Time
	cut   bool
}

// NewCooldown creates a cooldown of the given period.
func NewCooldown(period time.Duration) *Cooldown {
	return &Cooldown{period: period, sleep: sleepContext}
}

// Trigger starts a cooldown, or joins the one already running, and returns
// once it is over.
func (c *Cooldown) Trigger(ctx context.Context) error {
	c.mu.Lock()
	if run := c.run; run != nil {
		c.mu.Unlock()
		return c.join(ctx, run)
	}
	run := &cooldownRun{done: make(chan struct{}), until: time.Now().Add(c.period)}
	c.run = run
	c.mu.Unlock()

	c.sleeps.Add(1)
	err := c.sleep(ctx, c.period)

	c.mu.Lock()
	c.run = nil
	run.cut = err != nil
	c.mu.Unlock()
	close(run.done)
	return err
}

// Wait blocks while a cooldown is running.
func (c *Cooldown) Wait(ctx context.Context) error {
	c.mu.Lock()
	run := c.run
	c.mu.Unlock()
	if run == nil {
		return nil
	}
	return c.join(ctx, run)
}

// join waits for run to end. When its sleeper was cancelled early, the
// joiner sleeps out the rest of the window on its own context.
func (c *Cooldown) join(ctx context.Context, run *cooldownRun) error {
	select {
	case <-run.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if !run.cut {
		return nil
	}
	if rest := time.Until(run.until); rest > 0 {
		return c.sleep(ctx, rest)
	}
	return nil
}

// Active reports whether a cooldown is running.
func (c *Cooldown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run != nil
}

// Sleeps returns how many cooldown sleeps have started.
func (c *Cooldown) Sleeps() int64 {
	return c.sleeps.Load()
}

// Period returns the cooldown length.
func (c *Cooldown) Period() time.Duration {
	return c.period
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package apierr

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Default retry parameters used by every external call in the pipeline.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultJitter      = 0.2
)

// RetryPolicy describes exponential backoff with bounded jitter.
//
// Invalid values are normalized before use:
//   - MaxAttempts < 1 becomes 1 (single attempt)
//   - BaseDelay <= 0 becomes 1ms
//   - MaxDelay <= 0 becomes BaseDelay
//   - Jitter outside [0, 1] is clamped
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the fraction of each delay that is randomized.
	// 0.2 means the actual wait lies in [0.8*d, 1.2*d].
	Jitter float64

	// rand returns a value in [0, 1). Tests override it through export_test.go.
	rand func() float64
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Jitter:      DefaultJitter,
	}
}

func (p *RetryPolicy) normalize() {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = p.BaseDelay
	}
	p.Jitter = min(max(p.Jitter, 0), 1)
	if p.rand == nil {
		p.rand = rand.Float64
	}
}

// Delay returns the wait before the given retry (1-based), jitter included.
func (p RetryPolicy) Delay(retry int) time.Duration {
	p.normalize()
	d := p.BaseDelay
	for i := 1; i < retry && d < p.MaxDelay; i++ {
		d *= 2
	}
	d = min(d, p.MaxDelay)
	if p.Jitter == 0 {
		return d
	}
	// Spread uniformly over [d*(1-j), d*(1+j)).
	spread := float64(d) * p.Jitter
	return time.Duration(float64(d) - spread + 2*spread*p.rand())
}

// Do runs fn until it succeeds, shouldRetry rejects the error, the attempts
// run out, or ctx is done. The error of the last attempt is wrapped when
// attempts are exhausted.
func Do[T any](
	ctx context.Context,
	p RetryPolicy,
	fn func(context.Context) (T, error),
	shouldRetry func(error) bool,
) (T, error) {
	p.normalize()

	var zero T
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(p.Delay(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !shouldRetry(lastErr) {
			return zero, lastErr
		}
	}

	return zero, fmt.Errorf("giving up after %d attempts: %w", p.MaxAttempts, lastErr)
}

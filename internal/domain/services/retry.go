package services

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig configures a Retryer.
type RetryConfig struct {
	// MaxAttempts counts the first attempt too. Default: 3
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Default: 1s
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between retries. Default: 30s
	MaxBackoff time.Duration

	// Jitter in [0,1]; 0.1 means ±10%. Default: 0
	Jitter float64

	// RetryIf decides whether an error is retried. Nil retries everything.
	RetryIf func(error) bool
}

// DefaultRetryConfig returns three attempts starting at one second.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Retryer runs operations with exponential backoff. The delay doubles after
// every failed attempt.
type Retryer struct {
	config RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryer creates a Retryer, filling zero fields with defaults.
func NewRetryer(config RetryConfig) *Retryer {
	def := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = def.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = def.MaxBackoff
	}
	if config.Jitter < 0 || config.Jitter > 1 {
		config.Jitter = 0
	}
	return &Retryer{config: config, sleep: sleepContext}
}

// RetryResult describes a finished retry loop.
type RetryResult struct {
	Attempts int
	LastErr  error
}

// Do runs op until it succeeds, the attempts are exhausted, RetryIf rejects
// the error, or ctx is done.
func (r *Retryer) Do(ctx context.Context, op func(ctx context.Context) error) RetryResult {
	var lastErr error
	backoff := r.config.InitialBackoff

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return RetryResult{Attempts: attempt}
		}
		if r.config.RetryIf != nil && !r.config.RetryIf(lastErr) {
			return RetryResult{Attempts: attempt, LastErr: lastErr}
		}
		if attempt == r.config.MaxAttempts {
			break
		}

		if err := r.sleep(ctx, r.addJitter(backoff)); err != nil {
			return RetryResult{Attempts: attempt, LastErr: err}
		}

		backoff *= 2
		if backoff > r.config.MaxBackoff {
			backoff = r.config.MaxBackoff
		}
	}

	return RetryResult{Attempts: r.config.MaxAttempts, LastErr: lastErr}
}

// DoWithResult is Do for operations that return a value.
func DoWithResult[T any](ctx context.Context, r *Retryer, op func(ctx context.Context) (T, error)) (T, RetryResult) {
	var out T
	res := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, res
}

func (r *Retryer) addJitter(d time.Duration) time.Duration {
	if r.config.Jitter == 0 {
		return d
	}
	jitterRange := float64(d) * r.config.Jitter
	jitter := (rand.Float64()*2 - 1) * jitterRange
	return time.Duration(float64(d) + jitter)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

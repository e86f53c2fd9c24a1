// Package retry provides the uniform asynchronous retry-with-backoff helper
// used throughout this module (divergence review, arbiter escalation, flow
// step recovery), grounded on the original async_retry utility's parameters
// and built on cenkalti/backoff/v5.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/go-hclog"
)

// Options configures a retry attempt. Zero-value Options falls back to the
// defaults below, matching async_retry's (retries=3, base_delay=0.5,
// backoff=2.0, jitter=0.1).
type Options struct {
	MaxRetries          int
	BaseDelay           time.Duration
	Multiplier          float64
	RandomizationFactor float64
	Logger              hclog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2.0
	}
	if o.RandomizationFactor <= 0 {
		o.RandomizationFactor = 0.1
	}
	if o.Logger == nil {
		o.Logger = hclog.NewNullLogger()
	}
	return o
}

// Operation is a unit of retryable work producing a result of type T.
type Operation[T any] func(ctx context.Context) (T, error)

// Do executes op, retrying on error with exponential backoff and jitter
// until it succeeds or MaxRetries+1 attempts (the first attempt plus
// MaxRetries retries) have failed. The wait before the first retry is
// BaseDelay and each later wait is Multiplier times the previous one; every
// wait is randomized by cenkalti/backoff's symmetric jitter, so it falls
// anywhere within ±RandomizationFactor of that nominal delay, below it as
// well as above.
func Do[T any](ctx context.Context, opts Options, name string, op Operation[T]) (T, error) {
	opts = opts.withDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = opts.BaseDelay
	bo.Multiplier = opts.Multiplier
	bo.RandomizationFactor = opts.RandomizationFactor

	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		result, err := op(ctx)
		if err != nil {
			opts.Logger.Warn("retry attempt failed", "operation", name, "attempt", attempt, "error", err)
			return result, err
		}
		return result, nil
	}

	result, err := backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(opts.MaxRetries+1)),
	)
	if err != nil {
		opts.Logger.Error("retry exhausted", "operation", name, "attempts", attempt, "error", err)
	}
	return result, err
}

package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/smallbiznis/autotrade/internal/config"
	"github.com/smallbiznis/autotrade/pkg/db"
	"go.uber.org/fx"
)

var Module = fx.Module("db.retry",
	fx.Provide(NewPolicy),
)

// NewPolicy builds the repository retry policy from DATABASE_RETRY_MAX.
func NewPolicy(cfg config.Config) Policy {
	return DefaultPolicy(cfg.DBRetryMax)
}

// Policy bounds how often a repository call is retried.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Retryable       func(error) bool
}

func DefaultPolicy(maxAttempts int) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		Retryable:       db.IsTransientErr,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts run out
// or ctx is done. The last error from fn is returned.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	retryable := policy.Retryable
	if retryable == nil {
		retryable = db.IsTransientErr
	}

	exp := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		exp.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		exp.MaxInterval = policy.MaxInterval
	}
	exp.MaxElapsedTime = 0

	var b backoff.BackOff = backoff.WithMaxRetries(exp, uint64(policy.MaxAttempts-1))
	b = backoff.WithContext(b, ctx)

	return backoff.Retry(func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

// Value is Do for calls that return a result.
func Value[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, policy, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

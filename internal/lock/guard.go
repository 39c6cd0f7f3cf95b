package lock

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DefaultTTL         = 10 * time.Second
	DefaultWaitTimeout = 5 * time.Second
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

// Guard serializes critical sections across instances. A Guard without a
// Locker runs the section directly, which is what a single instance needs.
type Guard struct {
	locker      *Locker
	log         *zap.Logger
	ttl         time.Duration
	waitTimeout time.Duration
}

func NewGuard(locker *Locker, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{
		locker:      locker,
		log:         log.Named("lock"),
		ttl:         DefaultTTL,
		waitTimeout: DefaultWaitTimeout,
	}
}

func (g *Guard) Enabled() bool {
	return g != nil && g.locker != nil
}

func (g *Guard) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if !g.Enabled() {
		return fn(ctx)
	}
	return g.WithLockTTL(ctx, key, g.ttl, fn)
}

// WithLockTTL is WithLock for sections that may outlive the default TTL.
func (g *Guard) WithLockTTL(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	if !g.Enabled() {
		return fn(ctx)
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.waitTimeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 0

	var token string
	err := backoff.Retry(func() error {
		t, ok, err := g.locker.TryLock(waitCtx, key, ttl)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return ErrLockTimeout
		}
		token = t
		return nil
	}, backoff.WithContext(b, waitCtx))
	if err != nil {
		if errors.Is(err, ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) {
			g.log.Warn("lock wait timed out", zap.String("key", key))
			return ErrLockTimeout
		}
		return err
	}

	defer func() {
		// released on a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := g.locker.Release(releaseCtx, key, token); err != nil {
			g.log.Warn("lock release failed", zap.String("key", key), zap.Error(err))
		}
	}()

	return fn(ctx)
}

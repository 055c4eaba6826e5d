package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Locker implements shared.Locker on top of redislock.
type Locker struct {
	client *redislock.Client
	logger *slog.Logger
}

// NewLocker wraps a redis client.
func NewLocker(rdb redis.UniversalClient, logger *slog.Logger) *Locker {
	return &Locker{client: redislock.New(rdb), logger: logger}
}

// Acquire obtains key for ttl without retrying. A held key yields
// shared.ErrLockNotObtained.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, shared.ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return func() {
		// Release with a fresh context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) && l.logger != nil {
			l.logger.Warn("release lock", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}

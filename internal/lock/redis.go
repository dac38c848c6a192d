// Package lock provides a Redis-backed mutual exclusion lock keyed by string.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNotAcquired is returned when the lock is still held by another owner
// after the configured wait.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker acquires named locks.
type Locker interface {
	// Acquire blocks until the lock for key is held, the wait elapses or ctx is done.
	Acquire(ctx context.Context, key string) (Lock, error)
}

// Lock is a held lock.
type Lock interface {
	// Release frees the lock if it is still owned by the caller.
	Release(ctx context.Context) error
}

// releaseScript deletes the key only if it still holds the owner's token,
// so an expired lock re-acquired by someone else is never released.
var releaseScript = redis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`)

const retryInterval = 25 * time.Millisecond

// RedisLocker implements Locker with SET NX PX and a compare-and-delete release.
type RedisLocker struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	wait      time.Duration
	logger    zerolog.Logger
}

// NewRedisLocker creates a locker whose keys live under namespace.
// ttl bounds how long a crashed owner can block others; wait bounds how long
// Acquire retries before returning ErrNotAcquired.
func NewRedisLocker(client *redis.Client, namespace string, ttl, wait time.Duration, logger zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
		wait:      wait,
		logger:    logger.With().Str("component", "redis-locker").Logger(),
	}
}

// Key returns the Redis key used for name.
func (l *RedisLocker) Key(name string) string {
	return fmt.Sprintf("%s:lock:%s", l.namespace, name)
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, name string) (Lock, error) {
	key := l.Key(name)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			l.logger.Error().Err(err).Str("key", key).Msg("failed to acquire lock")
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			l.logger.Debug().Str("key", key).Msg("lock acquired")
			return &redisLock{client: l.client, key: key, token: token, logger: l.logger}, nil
		}

		if !time.Now().Before(deadline) {
			l.logger.Debug().Str("key", key).Dur("wait", l.wait).Msg("lock wait elapsed")
			return nil, ErrNotAcquired
		}

		timer := time.NewTimer(retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

type redisLock struct {
	client *redis.Client
	key    string
	token  string
	logger zerolog.Logger
}

// Release implements Lock.
func (l *redisLock) Release(ctx context.Context) error {
	deleted, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		l.logger.Error().Err(err).Str("key", l.key).Msg("failed to release lock")
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}

	if deleted == 0 {
		l.logger.Warn().Str("key", l.key).Msg("lock expired before release")
	}
	return nil
}

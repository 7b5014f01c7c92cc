package lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockTTL       = 5 * time.Second
	retryInterval = 50 * time.Millisecond
)

// RedisLocker implements Locker on top of Redis SET NX with a TTL, so a
// crashed holder cannot wedge a user forever.
type RedisLocker struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisLocker creates a Redis-backed locker.
func NewRedisLocker(client *redis.Client, log *slog.Logger) *RedisLocker {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLocker{client: client, log: log}
}

// Acquire polls SET NX until the lock is granted or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	for {
		acquired, err := l.client.SetNX(ctx, key, 1, lockTTL).Result()
		if err != nil {
			l.log.Error("failed to acquire lock", slog.String("key", key), slog.Any("error", err))
			return nil, err
		}

		if acquired {
			return func() { l.release(key) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

func (l *RedisLocker) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := l.client.Del(ctx, key).Err(); err != nil {
		l.log.Error("failed to release lock", slog.String("key", key), slog.Any("error", err))
	}
}

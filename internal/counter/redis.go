package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend is a pooled alternative to RESPClient built on go-redis
type RedisBackend struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewRedisBackend creates a RedisBackend from a parsed remote config
func NewRedisBackend(cfg RESPConfig) *RedisBackend {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRESPTimeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		MaxRetries:   -1,
	})
	return NewRedisBackendWithClient(client, cfg.Timeout)
}

// NewRedisBackendWithClient wraps an existing client
func NewRedisBackendWithClient(client redis.UniversalClient, timeout time.Duration) *RedisBackend {
	if timeout <= 0 {
		timeout = defaultRESPTimeout
	}
	return &RedisBackend{client: client, timeout: timeout}
}

// Increment uses INCR then PEXPIRE on the first hit of a window
func (b *RedisBackend) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	count, err := b.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if count == 1 {
		if err := b.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	return count, nil
}

// Close releases the connection pool
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

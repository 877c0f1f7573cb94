package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/textgate/textgate/pkg/config"
	"github.com/textgate/textgate/pkg/errors"
)

// RedisClient wraps the Redis client with additional functionality
type RedisClient struct {
	client *redis.Client
	config *config.RedisConfig
}

// NewRedisClient creates a new Redis client. The connection is not probed
// here; callers decide when to ping so that an unreachable store can be
// handled as degraded service instead of a construction failure.
func NewRedisClient(cfg *config.RedisConfig) (*RedisClient, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("Redis configuration is required")
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,

		// Connection timeouts
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		// Pool timeouts
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,

		// Retry configuration
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	}

	return &RedisClient{
		client: redis.NewClient(opts),
		config: cfg,
	}, nil
}

// NewRedisClientFromAddr creates a client for a bare host:port address.
// Used by tests and by hosts that manage their own configuration.
func NewRedisClientFromAddr(addr string) *RedisClient {
	return &RedisClient{
		client: redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 2 * time.Second}),
	}
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Ping checks the Redis connection health
func (r *RedisClient) Ping(ctx context.Context) error {
	if r.client == nil {
		return errors.NewInternalError("Redis client is nil")
	}

	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.NewExternalError("redis", "Redis ping failed").WithCause(err)
	}

	return nil
}

// Client returns the underlying Redis client
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// Stats returns Redis connection pool statistics
func (r *RedisClient) Stats() *redis.PoolStats {
	return r.client.PoolStats()
}

// Keys returns all keys matching the pattern
func (r *RedisClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, errors.NewExternalError("redis", "failed to get Redis keys").WithCause(err)
	}
	return keys, nil
}

// Exists checks if keys exist
func (r *RedisClient) Exists(ctx context.Context, keys ...string) (int64, error) {
	count, err := r.client.Exists(ctx, keys...).Result()
	if err != nil {
		return 0, errors.NewExternalError("redis", "failed to check key existence").WithCause(err)
	}
	return count, nil
}

// Del deletes keys
func (r *RedisClient) Del(ctx context.Context, keys ...string) (int64, error) {
	count, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, errors.NewExternalError("redis", "failed to delete keys").WithCause(err)
	}
	return count, nil
}

// Set sets a key-value pair with optional expiration
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := r.client.Set(ctx, key, value, expiration).Err(); err != nil {
		return errors.NewExternalError("redis", "failed to set Redis key").WithCause(err)
	}
	return nil
}

// Get gets a value by key
func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", errors.NewNotFoundError("key")
		}
		return "", errors.NewExternalError("redis", "failed to get Redis key").WithCause(err)
	}
	return val, nil
}

// Expire sets a timeout on a key
func (r *RedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	if err := r.client.Expire(ctx, key, expiration).Err(); err != nil {
		return errors.NewExternalError("redis", "failed to set Redis key expiration").WithCause(err)
	}
	return nil
}

// TTL returns the time to live of a key
func (r *RedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, errors.NewExternalError("redis", "failed to get Redis key TTL").WithCause(err)
	}
	return ttl, nil
}

// DBSize returns the number of keys in the current database
func (r *RedisClient) DBSize(ctx context.Context) (int64, error) {
	size, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return 0, errors.NewExternalError("redis", "failed to get Redis database size").WithCause(err)
	}
	return size, nil
}

// Info returns a section of the Redis INFO output
func (r *RedisClient) Info(ctx context.Context, section ...string) (string, error) {
	info, err := r.client.Info(ctx, section...).Result()
	if err != nil {
		return "", errors.NewExternalError("redis", "failed to get Redis info").WithCause(err)
	}
	return info, nil
}

// FlushDB flushes the current database (use with caution)
func (r *RedisClient) FlushDB(ctx context.Context) error {
	if err := r.client.FlushDB(ctx).Err(); err != nil {
		return errors.NewExternalError("redis", "failed to flush Redis database").WithCause(err)
	}
	return nil
}

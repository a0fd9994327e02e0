// Package redis wraps go-redis/v9 for the ranked-result cache: string
// get/set with TTL, non-blocking pattern invalidation and a pool-aware
// health check.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/resilience"
)

const scanBatch = 200

type Client struct {
	rdb *redis.Client
}

// NewClient connects and pings, retrying briefly. Cache reads sit on the
// request path, so socket timeouts are kept short.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address not configured")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	err := resilience.Retry(ctx, "redis-ping", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx).Err()
	})
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// FlushByPattern removes every key matching the glob pattern with UNLINK,
// so large invalidations do not block the server. It returns the number of
// keys removed.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var removed int64
	iter := c.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for {
		more := iter.Next(ctx)
		if more {
			batch = append(batch, iter.Val())
		}
		if len(batch) == scanBatch || (!more && len(batch) > 0) {
			n, err := c.rdb.Unlink(ctx, batch...).Result()
			if err != nil {
				return removed, fmt.Errorf("unlinking %d keys: %w", len(batch), err)
			}
			removed += n
			batch = batch[:0]
		}
		if !more {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scanning pattern %s: %w", pattern, err)
	}
	return removed, nil
}

// IsNilError reports whether err is a Redis nil (key-not-found) error.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// HealthCheck pings Redis and reports pool usage. The cache is optional, so
// a failed ping degrades rather than downs the service.
func (c *Client) HealthCheck() health.Check {
	ping := health.PingCheck(c.Ping, true)
	return func(ctx context.Context) health.ComponentHealth {
		result := ping(ctx)
		if result.Status == health.StatusUp {
			st := c.rdb.PoolStats()
			result.Message = fmt.Sprintf("pool %d/%d idle, %d timeouts", st.IdleConns, st.TotalConns, st.Timeouts)
		}
		return result
	}
}

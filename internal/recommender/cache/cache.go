// Package cache stores ranked results in Redis, collapsing concurrent
// computations of the same key and bypassing Redis while it is failing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/ranker"
	pkgredis "github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/resilience"
)

const keyPrefix = "rank:"

// Backend is the subset of the Redis client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one ranking request. Namespace separates results computed
// over different corpora or weightings.
type Key struct {
	Namespace string
	Mode      string
	Args      []string
	K         int
}

// String returns the Redis key. Set arguments are order-insensitive and
// prompt text is case- and whitespace-insensitive.
func (k Key) String() string {
	args := make([]string, len(k.Args))
	copy(args, k.Args)
	switch k.Mode {
	case "set":
		sort.Strings(args)
		args = dedupeSorted(args)
	case "prompt":
		for i, a := range args {
			args[i] = strings.Join(strings.Fields(strings.ToLower(a)), " ")
		}
	}
	raw := fmt.Sprintf("%s|%s|%s|k=%d", k.Namespace, k.Mode, strings.Join(args, "\x1f"), k.K)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func dedupeSorted(s []string) []string {
	out := s[:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}

type ResultCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(backend Backend, ttl time.Duration) *ResultCache {
	return &ResultCache{
		backend: backend,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("result-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     15 * time.Second,
		}),
		logger: slog.Default().With("component", "result-cache"),
	}
}

func (c *ResultCache) get(ctx context.Context, key string) ([]ranker.ScoredDoc, bool) {
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	if data == "" {
		c.misses.Add(1)
		return nil, false
	}
	var result []ranker.ScoredDoc
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return result, true
}

func (c *ResultCache) set(ctx context.Context, key string, result []ranker.ScoredDoc) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for key or computes, stores and
// returns it. Concurrent callers with the same key share one computation.
// The returned slice is shared and must not be modified.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	key Key,
	computeFn func() ([]ranker.ScoredDoc, error),
) ([]ranker.ScoredDoc, bool, error) {
	redisKey := key.String()
	if result, ok := c.get(ctx, redisKey); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(redisKey, func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.set(ctx, redisKey, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]ranker.ScoredDoc), false, nil
}

// Invalidate deletes every cached result.
func (c *ResultCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Available reports whether the cache is currently reaching Redis.
func (c *ResultCache) Available() bool {
	return c.breaker.GetState() != resilience.StateOpen
}

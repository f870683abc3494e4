// Package infra provides concrete infrastructure adapters. Today that is a
// single optional Redis mirror for the host-resource snapshot: same-host
// only, used so a second process (or a restarted one) can read the last
// sample without waiting out a full sampler tick.
package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache is the narrow interface the device sampler depends on. A
// Redis-backed implementation and a no-op implementation both satisfy it,
// so callers never branch on whether caching is enabled.
type SnapshotCache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// GoRedisAdapter wraps go-redis v9 as a SnapshotCache.
type GoRedisAdapter struct {
	rdb *redis.Client
}

// NewGoRedisAdapter connects to Redis and verifies connectivity with a
// ping. The caller decides whether a connection failure should fall back to
// NoCache or abort startup.
func NewGoRedisAdapter(addr, password string, db int) (*GoRedisAdapter, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", addr, err)
	}

	slog.Info("redis connected", "addr", addr, "db", db)
	return &GoRedisAdapter{rdb: rdb}, nil
}

func (a *GoRedisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return a.rdb.Set(ctx, key, value, ttl).Err()
}

func (a *GoRedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := a.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return val, err
}

func (a *GoRedisAdapter) Close() error {
	return a.rdb.Close()
}

// NoCache is the disabled-Redis fallback: every Get misses, every Set is a
// silent no-op.
type NoCache struct{}

func (NoCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (NoCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, fmt.Errorf("key not found: %s", key)
}

func (NoCache) Close() error { return nil }

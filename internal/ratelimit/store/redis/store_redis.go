// Package redis implements the fixed-window counter store on redis, for
// deployments running more than one server instance. Counters are plain INCR
// keys whose TTL marks the window boundary; redis expiry replaces the sweep.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "kopguard:ratelimit:"

// CounterStore keeps fixed-window counters in redis.
type CounterStore struct {
	client *goredis.Client
}

func NewCounterStore(client *goredis.Client) *CounterStore {
	return &CounterStore{client: client}
}

// Increment bumps the counter for key, starting the TTL when the window
// opens. INCR and EXPIRE run in one pipeline round trip.
func (s *CounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	rkey := keyPrefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, rkey)
	// NX keeps the original window boundary once set.
	pipe.ExpireNX(ctx, rkey, window)
	ttl := pipe.TTL(ctx, rkey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("increment %s: %w", key, err)
	}

	hits := incr.Val()
	resetAt := time.Now().Add(ttl.Val())
	return hits, resetAt, nil
}

// Peek reads the live counter for key without mutating it.
func (s *CounterStore) Peek(ctx context.Context, key string) (int64, time.Time, bool, error) {
	rkey := keyPrefix + key

	pipe := s.client.Pipeline()
	get := pipe.Get(ctx, rkey)
	ttl := pipe.TTL(ctx, rkey)
	if _, err := pipe.Exec(ctx); err != nil {
		if err == goredis.Nil {
			return 0, time.Time{}, false, nil
		}
		return 0, time.Time{}, false, fmt.Errorf("peek %s: %w", key, err)
	}

	hits, err := get.Int64()
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("peek %s: %w", key, err)
	}
	return hits, time.Now().Add(ttl.Val()), true, nil
}

// Reset drops the counter for key unconditionally.
func (s *CounterStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset %s: %w", key, err)
	}
	return nil
}

// Sweep is a no-op: redis reclaims expired counters through key TTLs.
func (s *CounterStore) Sweep(context.Context) (int, error) {
	return 0, nil
}

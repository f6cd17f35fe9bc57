//go:build integration

package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	rlredis "kopguard/internal/ratelimit/store/redis"
	"kopguard/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *rlredis.CounterStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = rlredis.NewCounterStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestIncrementCounts() {
	ctx := context.Background()

	for want := int64(1); want <= 4; want++ {
		hits, resetAt, err := s.store.Increment(ctx, "auth:203.0.113.9", time.Minute)
		s.Require().NoError(err)
		s.Equal(want, hits)
		s.WithinDuration(time.Now().Add(time.Minute), resetAt, 5*time.Second)
	}
}

func (s *RedisStoreSuite) TestWindowBoundaryIsStable() {
	ctx := context.Background()

	_, first, err := s.store.Increment(ctx, "k", time.Minute)
	s.Require().NoError(err)

	time.Sleep(1100 * time.Millisecond)

	_, second, err := s.store.Increment(ctx, "k", time.Minute)
	s.Require().NoError(err)
	s.WithinDuration(first, second, 2*time.Second, "later hits must not extend the TTL")
}

func (s *RedisStoreSuite) TestExpiredCounterStartsOver() {
	ctx := context.Background()

	for range 3 {
		_, _, err := s.store.Increment(ctx, "k", time.Second)
		s.Require().NoError(err)
	}

	time.Sleep(1500 * time.Millisecond)

	hits, _, err := s.store.Increment(ctx, "k", time.Second)
	s.Require().NoError(err)
	s.Equal(int64(1), hits)
}

func (s *RedisStoreSuite) TestPeekAndReset() {
	ctx := context.Background()

	_, _, found, err := s.store.Peek(ctx, "k")
	s.Require().NoError(err)
	s.False(found)

	_, _, err = s.store.Increment(ctx, "k", time.Minute)
	s.Require().NoError(err)
	_, _, err = s.store.Increment(ctx, "k", time.Minute)
	s.Require().NoError(err)

	hits, _, found, err := s.store.Peek(ctx, "k")
	s.Require().NoError(err)
	s.True(found)
	s.Equal(int64(2), hits)

	s.Require().NoError(s.store.Reset(ctx, "k"))

	hits, _, err = s.store.Increment(ctx, "k", time.Minute)
	s.Require().NoError(err)
	s.Equal(int64(1), hits)
}

func (s *RedisStoreSuite) TestConcurrentIncrementsAreAtomic() {
	ctx := context.Background()

	const goroutines = 20
	const perGoroutine = 25

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				_, _, err := s.store.Increment(ctx, "shared", time.Hour)
				s.NoError(err)
			}
		}()
	}
	wg.Wait()

	hits, _, found, err := s.store.Peek(ctx, "shared")
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(int64(goroutines*perGoroutine), hits)
}

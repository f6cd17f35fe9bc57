package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementCountsWithinWindow(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryCounterStore()

	hits, resetAt, err := store.Increment(ctx, "auth:203.0.113.9", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits)
	assert.WithinDuration(t, time.Now().Add(time.Minute), resetAt, 2*time.Second)

	for want := int64(2); want <= 4; want++ {
		hits, _, err = store.Increment(ctx, "auth:203.0.113.9", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, hits)
	}
}

func TestWindowResetAtIsStable(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryCounterStore()

	_, first, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	_, second, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)

	assert.Equal(t, first, second, "later hits must not slide the window")
}

func TestExpiredWindowReplacedLazily(t *testing.T) {
	ctx := context.Background()
	current := time.Now()
	store := NewInMemoryCounterStore().WithClock(func() time.Time { return current })

	for range 3 {
		_, _, err := store.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
	}

	current = current.Add(61 * time.Second)

	hits, _, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits, "expired window starts over")
}

func TestKeysAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryCounterStore()

	for range 5 {
		_, _, err := store.Increment(ctx, "auth:203.0.113.9", time.Minute)
		require.NoError(t, err)
	}

	hits, _, err := store.Increment(ctx, "auth:198.51.100.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits)
}

func TestPeekDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	current := time.Now()
	store := NewInMemoryCounterStore().WithClock(func() time.Time { return current })

	hits, _, found, err := store.Peek(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, hits)

	_, resetAt, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)

	hits, gotReset, found, err := store.Peek(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, resetAt, gotReset)

	// An expired window reads as absent but stays until Sweep.
	current = current.Add(2 * time.Minute)
	_, _, found, err = store.Peek(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, store.Len())
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryCounterStore()

	for range 3 {
		_, _, err := store.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
	}
	require.NoError(t, store.Reset(ctx, "k"))

	hits, _, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits)

	// Resetting a missing key is a no-op.
	assert.NoError(t, store.Reset(ctx, "missing"))
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	current := time.Now()
	store := NewInMemoryCounterStore().WithClock(func() time.Time { return current })

	_, _, err := store.Increment(ctx, "short", time.Minute)
	require.NoError(t, err)
	_, _, err = store.Increment(ctx, "long", time.Hour)
	require.NoError(t, err)

	current = current.Add(5 * time.Minute)

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())

	_, _, found, err := store.Peek(ctx, "long")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryCounterStore()

	const goroutines = 16
	const perGoroutine = 50

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				_, _, err := store.Increment(ctx, "shared", time.Hour)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	hits, _, found, err := store.Peek(ctx, "shared")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(goroutines*perGoroutine), hits)
}

package automod

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryWindowPrunes(t *testing.T) {
	store, err := NewMemoryWindowStore(10, 0)
	require.NoError(t, err)
	ctx := context.Background()
	tf := 5 * time.Second

	for i, want := range []int{1, 2, 3} {
		n, err := store.Observe(ctx, "k", t0.Add(time.Duration(i)*time.Second), tf)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	// t0 and t0+1s are exactly 5s or more old
	n, err := store.Observe(ctx, "k", t0.Add(6*time.Second), tf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryWindowIsBounded(t *testing.T) {
	store, err := NewMemoryWindowStore(10, 6)
	require.NoError(t, err)
	ctx := context.Background()

	var n int
	for i := 0; i < 100; i++ {
		n, err = store.Observe(ctx, "k", t0, time.Minute)
		require.NoError(t, err)
	}
	assert.Equal(t, 6, n)

	w, ok := store.windows.Peek("k")
	require.True(t, ok)
	assert.Len(t, w.stamps, 6)
}

func TestMemoryWindowEvictsLeastRecent(t *testing.T) {
	store, err := NewMemoryWindowStore(2, 6)
	require.NoError(t, err)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		_, err := store.Observe(ctx, k, t0, time.Minute)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.Len())
	_, ok := store.windows.Peek("a")
	assert.False(t, ok)
}

func TestMemoryWindowSweep(t *testing.T) {
	store, err := NewMemoryWindowStore(10, 6)
	require.NoError(t, err)
	ctx := context.Background()
	tf := 5 * time.Second

	_, err = store.Observe(ctx, "old", t0, tf)
	require.NoError(t, err)
	_, err = store.Observe(ctx, "fresh", t0.Add(4*time.Second), tf)
	require.NoError(t, err)

	removed := store.Sweep(t0.Add(5*time.Second), tf)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())

	n, err := store.Observe(ctx, "fresh", t0.Add(5*time.Second), tf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryWindowSweptBeforeObserveLocks(t *testing.T) {
	store, err := NewMemoryWindowStore(10, 6)
	require.NoError(t, err)
	ctx := context.Background()
	tf := 5 * time.Second

	// Observe fetched the window, then Sweep dropped it before Observe locked it
	stale := store.get("k")
	assert.Equal(t, 1, store.Sweep(t0, tf))
	assert.True(t, stale.removed)

	_, ok := store.observe(stale, t0, tf)
	assert.False(t, ok, "a swept window must not take new stamps")

	n, err := store.Observe(ctx, "k", t0, tf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = store.Observe(ctx, "k", t0.Add(time.Second), tf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryWindowSweepAndObserveConcurrently(t *testing.T) {
	store, err := NewMemoryWindowStore(100, 0)
	require.NoError(t, err)
	ctx := context.Background()

	done := make(chan struct{})
	var sweeps sync.WaitGroup
	sweeps.Add(1)
	go func() {
		defer sweeps.Done()
		for {
			select {
			case <-done:
				return
			default:
				store.Sweep(t0, time.Minute)
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Observe(ctx, "k", t0, time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	close(done)
	sweeps.Wait()

	// no stamp is lost: a window holding stamps is never swept
	n, err := store.Observe(ctx, "k", t0, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 51, n)
}

func TestMemoryWindowConcurrent(t *testing.T) {
	store, err := NewMemoryWindowStore(100, 0)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Observe(ctx, "k", t0, time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := store.Observe(ctx, "k", t0, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 51, n)
}

func TestRedisWindowStore(t *testing.T) {
	url := os.Getenv("WARDEN_TEST_REDIS_URL")
	if url == "" {
		t.Skip("live test, set WARDEN_TEST_REDIS_URL to run against redis")
	}
	store, err := NewRedisWindowStore(url, 6)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	key := "test/" + time.Now().Format(time.RFC3339Nano)
	tf := 5 * time.Second
	base := time.Now()
	defer store.Client.Del(ctx, redisWindowPrefix+key)

	for i := 1; i <= 3; i++ {
		n, err := store.Observe(ctx, key, base.Add(time.Duration(i)*time.Second), tf)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	n, err := store.Observe(ctx, key, base.Add(7*time.Second), tf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for i := 0; i < 10; i++ {
		n, err = store.Observe(ctx, key, base.Add(7*time.Second), tf)
		require.NoError(t, err)
	}
	assert.Equal(t, 6, n)
}

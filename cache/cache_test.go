package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	c := New[string](10*time.Second, clock)

	c.Set("k", "v")
	value, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestGetExpiresAtTTL(t *testing.T) {
	current := time.Unix(1000, 0)
	clock := func() time.Time { return current }
	c := New[string](10*time.Second, clock)

	c.Set("k", "v")
	current = current.Add(9 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	current = current.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestPurgeRemovesExpiredOnly(t *testing.T) {
	current := time.Unix(1000, 0)
	clock := func() time.Time { return current }
	c := New[int](5*time.Second, clock)

	c.Set("expires", 1)
	current = current.Add(6 * time.Second)
	c.Set("fresh", 2)

	c.Purge()
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("fresh")
	assert.True(t, ok)
}

func TestGetOrFetchDoesNotCacheErrors(t *testing.T) {
	c := New[int](time.Minute, nil)
	var calls int32
	fetch := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, errors.New("upstream down")
	}

	_, err := c.GetOrFetch(context.Background(), "k", fetch)
	assert.Error(t, err)
	_, err = c.GetOrFetch(context.Background(), "k", fetch)
	assert.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrFetchCachesSuccess(t *testing.T) {
	c := New[int](time.Minute, nil)
	var calls int32
	fetch := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	}

	v1, err := c.GetOrFetch(context.Background(), "k", fetch)
	require.NoError(t, err)
	v2, err := c.GetOrFetch(context.Background(), "k", fetch)
	require.NoError(t, err)

	assert.Equal(t, 42, v1)
	assert.Equal(t, 42, v2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrFetchCoalescesConcurrentMisses(t *testing.T) {
	c := New[int](time.Minute, nil)
	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 7, nil
	}

	const n = 5
	results := make(chan int, n)
	for i := 0; i < n; i++ {
		go func() {
			v, err := c.GetOrFetch(context.Background(), "k", fetch)
			require.NoError(t, err)
			results <- v
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)

	for i := 0; i < n; i++ {
		assert.Equal(t, 7, <-results)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

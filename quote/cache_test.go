// Copyright (c) 2025 BVK Chaitanya

package quote

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheHitAndExpiry(t *testing.T) {
	t.Parallel()

	var ncalls atomic.Int32
	upstream := FetcherFunc(func(ctx context.Context, symbol string) (float64, error) {
		ncalls.Add(1)
		return 100, nil
	})

	now := time.Unix(1700000000, 0)
	c := NewCache(upstream, 5*time.Second)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		price, err := c.Fetch(ctx, "BTC")
		require.NoError(t, err)
		require.Equal(t, 100.0, price)
	}
	require.EqualValues(t, 1, ncalls.Load())

	now = now.Add(6 * time.Second)
	_, err := c.Fetch(ctx, "BTC")
	require.NoError(t, err)
	require.EqualValues(t, 2, ncalls.Load())
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	var ncalls atomic.Int32
	upstream := FetcherFunc(func(ctx context.Context, symbol string) (float64, error) {
		ncalls.Add(1)
		return 0, fmt.Errorf("timeout: %w", ErrTransport)
	})
	c := NewCache(upstream, time.Minute)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := c.Fetch(ctx, "ETH")
		require.ErrorIs(t, err, ErrTransport)
	}
	require.EqualValues(t, 2, ncalls.Load())
}

func TestCacheCollapsesConcurrentMisses(t *testing.T) {
	t.Parallel()

	const nclients = 8

	started := make(chan struct{})
	release := make(chan struct{})
	var ncalls atomic.Int32
	upstream := FetcherFunc(func(ctx context.Context, symbol string) (float64, error) {
		if ncalls.Add(1) == 1 {
			close(started)
		}
		<-release
		return 42, nil
	})
	// A long ttl makes any caller that misses the shared call hit the cache,
	// so upstream is called exactly once either way.
	c := NewCache(upstream, time.Minute)

	prices := make(chan float64, nclients)
	fetch := func() {
		price, err := c.Fetch(context.Background(), "DOGE")
		require.NoError(t, err)
		prices <- price
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		fetch()
	}()
	<-started

	var running sync.WaitGroup
	for i := 1; i < nclients; i++ {
		wg.Add(1)
		running.Add(1)
		go func() {
			defer wg.Done()
			running.Done()
			fetch()
		}()
	}
	running.Wait()
	// Let the callers reach the in-flight call while upstream is blocked.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(prices)

	n := 0
	for price := range prices {
		require.Equal(t, 42.0, price)
		n++
	}
	require.Equal(t, nclients, n)
	require.EqualValues(t, 1, ncalls.Load())
}

func TestCacheCancelDoesNotFailOtherWaiters(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	upstream := FetcherFunc(func(ctx context.Context, symbol string) (float64, error) {
		close(started)
		select {
		case <-release:
			return 99, nil
		case <-ctx.Done():
			return 0, context.Cause(ctx)
		}
	})
	c := NewCache(upstream, time.Minute)

	actx, acancel := context.WithCancel(context.Background())
	aerr := make(chan error, 1)
	go func() {
		_, err := c.Fetch(actx, "BTC")
		aerr <- err
	}()
	<-started

	type result struct {
		price float64
		err   error
	}
	bres := make(chan result, 1)
	go func() {
		price, err := c.Fetch(context.Background(), "BTC")
		bres <- result{price, err}
	}()

	acancel()
	require.ErrorIs(t, <-aerr, context.Canceled)

	close(release)
	res := <-bres
	require.NoError(t, res.err)
	require.Equal(t, 99.0, res.price)
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	require.False(t, IsTransient(nil))
	require.False(t, IsTransient(fmt.Errorf("x: %w", ErrSymbolNotFound)))
	require.True(t, IsTransient(ErrRateLimited))
	require.True(t, IsTransient(fmt.Errorf("y: %w", ErrTransport)))
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/taskdeck/internal/cache"
	"github.com/taibuivan/taskdeck/internal/platform/constants"
	"github.com/taibuivan/taskdeck/pkg/query"
)

// counter returns a fetcher that counts calls and yields the call number.
func counter(calls *atomic.Int32) func(context.Context) (int, error) {
	return func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}
}

/*
TestRead_FreshHit serves the second read from cache.
*/
func TestRead_FreshHit(t *testing.T) {
	c := cache.New(cache.Options{})
	key := cache.ItemKey(constants.KindTask, 1)
	var calls atomic.Int32

	first, err := cache.Read(context.Background(), c, key, counter(&calls))
	require.NoError(t, err)
	second, err := cache.Read(context.Background(), c, key, counter(&calls))
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, int32(1), calls.Load())

	entry, ok := c.Peek(key)
	require.True(t, ok)
	assert.Equal(t, cache.StateFresh, entry.State)
}

/*
TestRead_ConcurrentDedup collapses N concurrent reads into one fetch.
*/
func TestRead_ConcurrentDedup(t *testing.T) {
	c := cache.New(cache.Options{})
	key := cache.ListKey(constants.KindTasks, nil)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) ([]string, error) {
		calls.Add(1)
		<-release
		return []string{"a", "b"}, nil
	}

	const readers = 32
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
		results = make([][]string, readers)
	)
	started.Add(readers)
	for i := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			value, err := cache.Read(context.Background(), c, key, fetch)
			assert.NoError(t, err)
			results[i] = value
		}()
	}
	started.Wait()

	require.Eventually(t, func() bool {
		entry, ok := c.Peek(key)
		return ok && entry.State == cache.StateInFlight
	}, time.Second, time.Millisecond)

	// Give the remaining goroutines a moment to join the flight
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, value := range results {
		assert.Equal(t, []string{"a", "b"}, value)
	}
}

/*
TestRead_DistinctKeysIndependent fetches each key separately.
*/
func TestRead_DistinctKeysIndependent(t *testing.T) {
	c := cache.New(cache.Options{})
	var calls atomic.Int32

	_, err := cache.Read(context.Background(), c, cache.ItemKey(constants.KindTask, 1), counter(&calls))
	require.NoError(t, err)
	_, err = cache.Read(context.Background(), c, cache.ItemKey(constants.KindTask, 2), counter(&calls))
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

/*
TestRead_FailureLeavesNothing stores no entry when the fetch fails.
*/
func TestRead_FailureLeavesNothing(t *testing.T) {
	c := cache.New(cache.Options{})
	key := cache.ItemKey(constants.KindTask, 1)
	boom := errors.New("boom")

	_, err := cache.Read(context.Background(), c, key, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	_, ok := c.Peek(key)
	assert.False(t, ok)

	var calls atomic.Int32
	value, err := cache.Read(context.Background(), c, key, counter(&calls))
	require.NoError(t, err)
	assert.Equal(t, 1, value)
}

/*
TestInvalidate_RefetchOnNextRead marks entries STALE lazily.
*/
func TestInvalidate_RefetchOnNextRead(t *testing.T) {
	c := cache.New(cache.Options{})
	list := cache.ListKey(constants.KindTasks, query.New().Set("status", "TODO"))
	item := cache.ItemKey(constants.KindTask, 7)
	other := cache.ItemKey(constants.KindTask, 8)
	users := cache.ListKey(constants.KindUsers, nil)

	var calls atomic.Int32
	for _, key := range []cache.Key{list, item, other, users} {
		_, err := cache.Read(context.Background(), c, key, counter(&calls))
		require.NoError(t, err)
	}
	require.Equal(t, int32(4), calls.Load())

	touched := c.Invalidate(cache.Any(cache.MatchKind(constants.KindTasks), cache.Exact(item)))
	assert.Equal(t, 2, touched)
	assert.Equal(t, int32(4), calls.Load(), "invalidation never refetches eagerly")

	entry, ok := c.Peek(item)
	require.True(t, ok)
	assert.Equal(t, cache.StateStale, entry.State)

	for _, key := range []cache.Key{list, item, other, users} {
		_, err := cache.Read(context.Background(), c, key, counter(&calls))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(6), calls.Load(), "only the invalidated keys fetched again")
}

/*
TestListKey_EmptyParamsCollapse treats {status: ""} and {} as one key.
*/
func TestListKey_EmptyParamsCollapse(t *testing.T) {
	assert.Equal(t,
		cache.ListKey(constants.KindTasks, query.New()),
		cache.ListKey(constants.KindTasks, query.New().Set("status", "")),
	)
	assert.Equal(t, cache.ListKey(constants.KindTasks, nil), cache.ListKey(constants.KindTasks, query.New()))
	assert.NotEqual(t,
		cache.ListKey(constants.KindTasks, query.New()),
		cache.ListKey(constants.KindTasks, query.New().Set("status", "TODO")),
	)
	assert.Equal(t, "task:7", cache.ItemKey(constants.KindTask, 7).String())
}

/*
TestRead_AbandonedCallerStillPopulates keeps the detached fetch running.
*/
func TestRead_AbandonedCallerStillPopulates(t *testing.T) {
	c := cache.New(cache.Options{})
	key := cache.ItemKey(constants.KindTask, 1)

	release := make(chan struct{})
	var fetchCtxErr atomic.Value
	fetch := func(ctx context.Context) (string, error) {
		<-release
		if ctx.Err() != nil {
			fetchCtxErr.Store(ctx.Err())
		}
		return "value", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.Read(ctx, c, key, fetch)
		done <- err
	}()

	require.Eventually(t, func() bool {
		entry, ok := c.Peek(key)
		return ok && entry.State == cache.StateInFlight
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		entry, ok := c.Peek(key)
		return ok && entry.State == cache.StateFresh
	}, time.Second, time.Millisecond)

	assert.Nil(t, fetchCtxErr.Load(), "the shared fetch is not cancelled with its first caller")

	var calls atomic.Int32
	value, err := cache.Read(context.Background(), c, key, func(context.Context) (string, error) {
		calls.Add(1)
		return "other", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "value", value)
	assert.Equal(t, int32(0), calls.Load())
}

/*
TestInvalidate_DuringFlight stores the late result as STALE.
*/
func TestInvalidate_DuringFlight(t *testing.T) {
	c := cache.New(cache.Options{})
	key := cache.ItemKey(constants.KindTask, 1)

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		value, err := cache.Read(context.Background(), c, key, func(context.Context) (string, error) {
			<-release
			return "before-write", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "before-write", value)
	}()

	require.Eventually(t, func() bool {
		entry, ok := c.Peek(key)
		return ok && entry.State == cache.StateInFlight
	}, time.Second, time.Millisecond)

	c.Invalidate(cache.Exact(key))
	close(release)
	<-done

	entry, ok := c.Peek(key)
	require.True(t, ok)
	assert.Equal(t, cache.StateStale, entry.State)

	value, err := cache.Read(context.Background(), c, key, func(context.Context) (string, error) {
		return "after-write", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "after-write", value)
}

/*
TestPurge drops entries and the results of running fetches.
*/
func TestPurge(t *testing.T) {
	c := cache.New(cache.Options{})
	stored := cache.ItemKey(constants.KindTask, 1)
	running := cache.ItemKey(constants.KindTask, 2)

	var calls atomic.Int32
	_, err := cache.Read(context.Background(), c, stored, counter(&calls))
	require.NoError(t, err)

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cache.Read(context.Background(), c, running, func(context.Context) (int, error) {
			<-release
			return 99, nil
		})
	}()
	require.Eventually(t, func() bool {
		_, ok := c.Peek(running)
		return ok
	}, time.Second, time.Millisecond)

	c.Purge()
	close(release)
	<-done

	assert.Equal(t, 0, c.Len())
}

/*
TestFreshFor expires entries by age.
*/
func TestFreshFor(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	c := cache.New(cache.Options{FreshFor: time.Minute, Now: clock})
	key := cache.ItemKey(constants.KindTask, 1)
	var calls atomic.Int32

	_, _ = cache.Read(context.Background(), c, key, counter(&calls))
	_, _ = cache.Read(context.Background(), c, key, counter(&calls))
	assert.Equal(t, int32(1), calls.Load())

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	_, _ = cache.Read(context.Background(), c, key, counter(&calls))
	assert.Equal(t, int32(2), calls.Load())
}

/*
TestRead_TypeMismatch reports a key reused with another type.
*/
func TestRead_TypeMismatch(t *testing.T) {
	c := cache.New(cache.Options{})
	key := cache.ItemKey(constants.KindTask, 1)

	_, err := cache.Read(context.Background(), c, key, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	_, err = cache.Read(context.Background(), c, key, func(context.Context) (string, error) { return "x", nil })
	assert.ErrorContains(t, err, "holds int")
}

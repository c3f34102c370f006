package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/projecthub/internal/domain"
)

func newTestCache(api ProjectAPI) (*ProjectCache, *clockwork.FakeClock, *MemoryCredentials) {
	clock := clockwork.NewFakeClock()
	creds := NewMemoryCredentials("token")
	return NewProjectCache(api, creds, CacheOptions{Clock: clock}), clock, creds
}

func TestProjectCache_LoadWithoutCredentialIsNoop(t *testing.T) {
	api := &fakeAPI{}
	api.set(project("a"))
	cache, _, creds := newTestCache(api)
	creds.Clear()

	require.NoError(t, cache.Load(context.Background(), true))
	assert.Equal(t, int32(0), api.listCalls.Load())
	assert.Empty(t, cache.Projects())
}

func TestProjectCache_FreshnessLaw(t *testing.T) {
	api := &fakeAPI{}
	api.set(project("a"))
	cache, clock, _ := newTestCache(api)

	assert.True(t, cache.IsStale(), "never fetched")
	assert.Nil(t, cache.LastFetched())

	require.NoError(t, cache.Load(context.Background(), false))
	assert.False(t, cache.IsStale())

	clock.Advance(StaleAfter)
	assert.False(t, cache.IsStale(), "exactly five minutes is still fresh")

	clock.Advance(time.Second)
	assert.True(t, cache.IsStale())

	require.NoError(t, cache.Load(context.Background(), false))
	assert.Equal(t, int32(2), api.listCalls.Load())
	assert.False(t, cache.IsStale())
}

func TestProjectCache_CacheHitShortCircuits(t *testing.T) {
	api := &fakeAPI{}
	api.set(project("a"), project("b"))
	cache, clock, _ := newTestCache(api)

	require.NoError(t, cache.Load(context.Background(), false))
	clock.Advance(time.Minute)
	require.NoError(t, cache.Load(context.Background(), false))
	require.NoError(t, cache.Load(context.Background(), false))

	assert.Equal(t, int32(1), api.listCalls.Load())
	assert.Equal(t, []string{"a", "b"}, names(cache.Projects()))

	require.NoError(t, cache.Load(context.Background(), true))
	assert.Equal(t, int32(2), api.listCalls.Load())
}

func TestProjectCache_ConcurrentLoadsShareOneFetch(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	api.set(project("a"))
	cache, _, _ := newTestCache(api)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cache.Load(context.Background(), false); err != nil {
				failures.Add(1)
			}
		}()
	}

	require.Eventually(t, func() bool { return api.listCalls.Load() == 1 }, time.Second, time.Millisecond)
	close(api.gate)
	wg.Wait()

	assert.Equal(t, int32(1), api.listCalls.Load())
	assert.Equal(t, int32(0), failures.Load())
	assert.Equal(t, []string{"a"}, names(cache.Projects()))
}

func TestProjectCache_ForcedLoadDuringFetchRunsOneFollowUp(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	api.set(project("a"))
	cache, _, _ := newTestCache(api)

	first := make(chan error, 1)
	go func() { first <- cache.Load(context.Background(), false) }()
	require.Eventually(t, func() bool { return api.listCalls.Load() == 1 }, time.Second, time.Millisecond)

	forced := make(chan error, 1)
	go func() { forced <- cache.Load(context.Background(), true) }()
	require.Eventually(t, func() bool {
		cache.mu.Lock()
		defer cache.mu.Unlock()
		return cache.loading != nil && cache.loading.dirty
	}, time.Second, time.Millisecond)

	api.set(project("b"), project("a"))
	api.gate <- struct{}{}
	require.Eventually(t, func() bool { return api.listCalls.Load() == 2 }, time.Second, time.Millisecond)
	api.gate <- struct{}{}

	require.NoError(t, <-first)
	require.NoError(t, <-forced)
	assert.Equal(t, int32(2), api.listCalls.Load())
	assert.Equal(t, []string{"b", "a"}, names(cache.Projects()))
}

func TestProjectCache_FetchOlderThanWriteIsDiscarded(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{}, 2)}
	api.set(project("a"))
	cache, _, _ := newTestCache(api)

	done := make(chan error, 1)
	go func() { done <- cache.Load(context.Background(), true) }()
	require.Eventually(t, func() bool { return api.listCalls.Load() == 1 }, time.Second, time.Millisecond)

	// the in-flight fetch snapshotted the list before this create
	_, err := cache.Create(context.Background(), domain.ProjectCreate{Name: "new"})
	require.NoError(t, err)

	api.gate <- struct{}{}
	api.gate <- struct{}{}
	require.NoError(t, <-done)

	assert.Equal(t, int32(2), api.listCalls.Load())
	assert.Equal(t, []string{"new", "a"}, names(cache.Projects()))
}

func TestProjectCache_CreatePrependsWithoutReload(t *testing.T) {
	api := &fakeAPI{}
	api.set(project("a"), project("b"))
	cache, clock, _ := newTestCache(api)
	require.NoError(t, cache.Load(context.Background(), false))

	clock.Advance(time.Minute)
	created, err := cache.Create(context.Background(), domain.ProjectCreate{Name: "c"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), api.listCalls.Load())
	assert.Equal(t, []string{"c", "a", "b"}, names(cache.Projects()))
	assert.Equal(t, created.ID, cache.Projects()[0].ID)
	assert.Equal(t, clock.Now(), *cache.LastFetched())
}

func TestProjectCache_CreateThenDeleteOrdering(t *testing.T) {
	api := &fakeAPI{}
	api.set(project("x"))
	cache, _, _ := newTestCache(api)
	ctx := context.Background()
	require.NoError(t, cache.Load(ctx, false))

	a, err := cache.Create(ctx, domain.ProjectCreate{Name: "A"})
	require.NoError(t, err)
	_, err = cache.Create(ctx, domain.ProjectCreate{Name: "B"})
	require.NoError(t, err)
	require.NoError(t, cache.Delete(ctx, a.ID))

	assert.Equal(t, []string{"B", "x"}, names(cache.Projects()))
}

func TestProjectCache_UpdateReplacesInPlace(t *testing.T) {
	api := &fakeAPI{}
	a, b, c := project("a"), project("b"), project("c")
	api.set(a, b, c)
	cache, _, _ := newTestCache(api)
	ctx := context.Background()
	require.NoError(t, cache.Load(ctx, false))

	name := "B2"
	_, err := cache.Update(ctx, b.ID, domain.ProjectUpdate{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "B2", "c"}, names(cache.Projects()))
}

func TestProjectCache_Unauthorized(t *testing.T) {
	api := &fakeAPI{listErr: ErrUnauthorized}
	clock := clockwork.NewFakeClock()
	creds := NewMemoryCredentials("expired")

	var signedOut atomic.Int32
	cache := NewProjectCache(api, creds, CacheOptions{
		Clock:         clock,
		OnAuthFailure: func() { signedOut.Add(1) },
	})

	err := cache.Load(context.Background(), true)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "", creds.Token())
	assert.Equal(t, int32(1), signedOut.Load())

	// with credentials gone, loads are no-ops
	require.NoError(t, cache.Load(context.Background(), true))
	assert.Equal(t, int32(1), api.listCalls.Load())
}

func TestProjectCache_APIErrorLeavesCacheUntouched(t *testing.T) {
	api := &fakeAPI{}
	api.set(project("a"))
	cache, _, creds := newTestCache(api)
	require.NoError(t, cache.Load(context.Background(), false))

	api.writeErr = &APIError{Status: 403, Message: "Access denied to this project"}
	_, err := cache.Create(context.Background(), domain.ProjectCreate{Name: "b"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Access denied to this project", apiErr.Message)
	assert.Equal(t, []string{"a"}, names(cache.Projects()))
	assert.Equal(t, "token", creds.Token())
}

func TestProjectCache_ApplyAndClear(t *testing.T) {
	api := &fakeAPI{}
	a, b := project("a"), project("b")
	api.set(a, b)
	cache, _, _ := newTestCache(api)
	require.NoError(t, cache.Load(context.Background(), false))

	renamed := b
	renamed.Name = "b2"
	assert.True(t, cache.ApplyUpsert(renamed))
	assert.False(t, cache.ApplyUpsert(project("c")))
	assert.Equal(t, []string{"c", "a", "b2"}, names(cache.Projects()))

	assert.True(t, cache.ApplyRemove(a.ID))
	assert.False(t, cache.ApplyRemove(a.ID))
	assert.Equal(t, []string{"c", "b2"}, names(cache.Projects()))

	cache.Clear()
	assert.Empty(t, cache.Projects())
	assert.True(t, cache.IsStale())
}

func TestProjectCache_RunNotifiesWhenStalenessFlips(t *testing.T) {
	api := &fakeAPI{}
	api.set(project("a"))
	cache, clock, _ := newTestCache(api)
	require.NoError(t, cache.Load(context.Background(), false))

	var changes atomic.Int32
	unsubscribe := cache.OnChange(func() { changes.Add(1) })
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cache.Run(ctx)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(StaleCheckInterval)
	assert.Never(t, func() bool { return changes.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.Advance(StaleAfter)
	assert.Eventually(t, func() bool { return changes.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, cache.IsStale())
}

func TestProjectCache_OnChangeUnsubscribe(t *testing.T) {
	api := &fakeAPI{}
	cache, _, _ := newTestCache(api)

	var calls int
	unsubscribe := cache.OnChange(func() { calls++ })
	cache.ApplyUpsert(project("a"))
	unsubscribe()
	unsubscribe()
	cache.ApplyUpsert(project("b"))

	assert.Equal(t, 1, calls)
}

func waitDirty(t *testing.T, cache *ProjectCache) {
	t.Helper()
	require.Eventually(t, func() bool {
		cache.mu.Lock()
		defer cache.mu.Unlock()
		return cache.loading != nil && cache.loading.dirty
	}, time.Second, time.Millisecond)
}

func TestProjectCache_ForcedLoadsDuringEveryAttemptConverge(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	cache, _, _ := newTestCache(api)
	ctx := context.Background()

	leader := make(chan error, 1)
	go func() { leader <- cache.Load(ctx, true) }()

	followers := make(chan error, 3)
	for i, name := range []string{"v1", "v2", "v3"} {
		require.Eventually(t, func() bool { return api.listCalls.Load() == int32(i+1) }, time.Second, time.Millisecond)

		// the server moved on and an event asked for a reload mid-fetch
		api.set(project(name))
		go func() { followers <- cache.Load(ctx, true) }()
		waitDirty(t, cache)
		api.gate <- struct{}{}
	}

	require.Eventually(t, func() bool { return api.listCalls.Load() == 4 }, time.Second, time.Millisecond)
	api.gate <- struct{}{}

	require.NoError(t, <-leader)
	for i := 0; i < 3; i++ {
		require.NoError(t, <-followers)
	}
	assert.Equal(t, []string{"v3"}, names(cache.Projects()))
	assert.Equal(t, int32(4), api.listCalls.Load())
	assert.False(t, cache.Loading())
	assert.False(t, cache.IsStale())
}

func TestProjectCache_WritesOvertakingEveryAttemptLeaveListStale(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	api.set(project("a"))
	cache, _, _ := newTestCache(api)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- cache.Load(ctx, true) }()

	for i := 1; i <= maxLoadAttempts; i++ {
		require.Eventually(t, func() bool { return api.listCalls.Load() == int32(i) }, time.Second, time.Millisecond)
		_, err := cache.Create(ctx, domain.ProjectCreate{Name: "new"})
		require.NoError(t, err)
		api.gate <- struct{}{}
	}

	assert.ErrorIs(t, <-done, ErrLoadSuperseded)
	assert.True(t, cache.IsStale())
	assert.Nil(t, cache.LastFetched())
	assert.Len(t, cache.Projects(), maxLoadAttempts)

	// the next load is not served from the stale list
	go func() { api.gate <- struct{}{} }()
	require.NoError(t, cache.Load(ctx, false))
	assert.Equal(t, int32(maxLoadAttempts+1), api.listCalls.Load())
	assert.Equal(t, names(api.snapshot()), names(cache.Projects()))
	assert.False(t, cache.IsStale())
}

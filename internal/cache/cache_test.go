package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

var testPolicy = Policy{StaleAfter: 10 * time.Minute, EvictAfter: 24 * time.Hour}

func newMemoryCache(clock *fakeClock) *Cache {
	return New("test", NewMemoryBackend(16), testPolicy, WithClock(clock.Now))
}

func TestGetOrLoadServesFreshHitWithoutLoading(t *testing.T) {
	c := newMemoryCache(newFakeClock())
	ctx := context.Background()

	var calls int32
	load := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "summary", nil
	}

	first, err := c.GetOrLoad(ctx, "k", Policy{}, load)
	require.NoError(t, err)
	second, err := c.GetOrLoad(ctx, "k", Policy{}, load)
	require.NoError(t, err)

	assert.Equal(t, "summary", first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrLoadCoalescesConcurrentCallers(t *testing.T) {
	c := newMemoryCache(newFakeClock())
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	load := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "shared", nil
	}

	const callers = 8
	results := make([]string, callers)
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			v, err := c.GetOrLoad(ctx, "k", Policy{}, load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, "shared", v)
	}
}

func TestGetOrLoadRefreshesStaleEntry(t *testing.T) {
	clock := newFakeClock()
	c := newMemoryCache(clock)
	ctx := context.Background()

	n := 0
	load := func(context.Context) (string, error) {
		n++
		if n == 1 {
			return "v1", nil
		}
		return "v2", nil
	}

	v, err := c.GetOrLoad(ctx, "k", Policy{}, load)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	clock.Advance(9 * time.Minute)
	v, err = c.GetOrLoad(ctx, "k", Policy{}, load)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	clock.Advance(2 * time.Minute)
	v, err = c.GetOrLoad(ctx, "k", Policy{}, load)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
	assert.Equal(t, 2, n)
}

func TestGetOrLoadKeepsPreviousEntryOnFailure(t *testing.T) {
	clock := newFakeClock()
	c := newMemoryCache(clock)
	ctx := context.Background()

	_, err := c.GetOrLoad(ctx, "k", Policy{}, func(context.Context) (string, error) { return "good", nil })
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)
	boom := errors.New("upstream down")
	_, err = c.GetOrLoad(ctx, "k", Policy{}, func(context.Context) (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)

	entry, ok, err := c.Peek(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "good", entry.Value)
}

func TestGetOrLoadNeverStoresFailures(t *testing.T) {
	c := newMemoryCache(newFakeClock())
	ctx := context.Background()

	_, err := c.GetOrLoad(ctx, "k", Policy{}, func(context.Context) (string, error) { return "", errors.New("nope") })
	require.Error(t, err)

	_, ok, err := c.Peek(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := c.GetOrLoad(ctx, "k", Policy{}, func(context.Context) (string, error) { return "recovered", nil })
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
}

func TestGetOrLoadEvictsAfterIdleWindow(t *testing.T) {
	clock := newFakeClock()
	c := newMemoryCache(clock)
	ctx := context.Background()
	policy := Policy{StaleAfter: time.Hour, EvictAfter: 2 * time.Hour}

	_, err := c.GetOrLoad(ctx, "k", policy, func(context.Context) (string, error) { return "v", nil })
	require.NoError(t, err)

	// An access inside the window restarts it.
	clock.Advance(90 * time.Minute)
	_, ok, err := c.Peek(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(90 * time.Minute)
	_, ok, err = c.Peek(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(2 * time.Hour)
	_, ok, err = c.Peek(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetOrLoadCallerCancellationDoesNotAbortSharedLoad(t *testing.T) {
	c := newMemoryCache(newFakeClock())

	release := make(chan struct{})
	loadErr := make(chan error, 1)
	load := func(ctx context.Context) (string, error) {
		<-release
		loadErr <- ctx.Err()
		return "late", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.GetOrLoad(ctx, "k", Policy{}, load)
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	close(release)
	assert.NoError(t, <-loadErr)

	require.Eventually(t, func() bool {
		entry, ok, _ := c.Peek(context.Background(), "k")
		return ok && entry.Value == "late"
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryBackendCapacity(t *testing.T) {
	b := NewMemoryBackend(2)
	ctx := context.Background()
	now := time.Now()
	entry := Entry{Value: "v", CreatedAt: now, AccessedAt: now, EvictAfter: time.Hour}

	require.NoError(t, b.Put(ctx, "a", entry))
	require.NoError(t, b.Put(ctx, "b", entry))
	_, _, _ = b.Get(ctx, "a", now, 0)
	require.NoError(t, b.Put(ctx, "c", entry))

	assert.Equal(t, 2, b.Len())
	_, ok, _ := b.Get(ctx, "b", now, 0)
	assert.False(t, ok)
	_, ok, _ = b.Get(ctx, "a", now, 0)
	assert.True(t, ok)
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := newFakeClock()
	c := New("redis-test", NewRedisBackend(client, ""), Policy{StaleAfter: time.Minute, EvictAfter: time.Hour}, WithClock(clock.Now))
	ctx := context.Background()

	var calls int32
	load := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "from-redis", nil
	}

	v, err := c.GetOrLoad(ctx, "k", Policy{}, load)
	require.NoError(t, err)
	assert.Equal(t, "from-redis", v)
	assert.True(t, mr.Exists("cache:k"))
	assert.Equal(t, time.Hour, mr.TTL("cache:k"))

	v, err = c.GetOrLoad(ctx, "k", Policy{}, load)
	require.NoError(t, err)
	assert.Equal(t, "from-redis", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Reads restart the TTL.
	mr.FastForward(30 * time.Minute)
	_, ok, err := c.Peek(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Hour, mr.TTL("cache:k"))

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.Peek(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Ping(ctx))
}

func TestGetOrLoadJSON(t *testing.T) {
	c := newMemoryCache(newFakeClock())
	type payload struct {
		Names []string `json:"names"`
	}

	calls := 0
	load := func(context.Context) (payload, error) {
		calls++
		return payload{Names: []string{"aave", "lido"}}, nil
	}

	got, err := GetOrLoadJSON(context.Background(), c, "json", Policy{}, load)
	require.NoError(t, err)
	again, err := GetOrLoadJSON(context.Background(), c, "json", Policy{}, load)
	require.NoError(t, err)

	assert.Equal(t, []string{"aave", "lido"}, got.Names)
	assert.Equal(t, got, again)
	assert.Equal(t, 1, calls)
}

// hookBackend runs afterFirstGet once, after the first Get has read the store.
type hookBackend struct {
	Backend
	gets          int32
	afterFirstGet func()
}

func (h *hookBackend) Get(ctx context.Context, key string, now time.Time, evictAfter time.Duration) (Entry, bool, error) {
	entry, ok, err := h.Backend.Get(ctx, key, now, evictAfter)
	if atomic.AddInt32(&h.gets, 1) == 1 && h.afterFirstGet != nil {
		h.afterFirstGet()
	}
	return entry, ok, err
}

func TestGetOrLoadSkipsLoadStoredAfterMissedRead(t *testing.T) {
	clock := newFakeClock()
	backend := &hookBackend{Backend: NewMemoryBackend(16)}
	c := New("race", backend, testPolicy, WithClock(clock.Now))
	ctx := context.Background()

	var calls int32
	load := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "once", nil
	}

	// The first caller has seen a miss; another caller completes a full load
	// before the first one joins the group.
	backend.afterFirstGet = func() {
		v, err := c.GetOrLoad(ctx, "k", Policy{}, load)
		require.NoError(t, err)
		require.Equal(t, "once", v)
	}

	v, err := c.GetOrLoad(ctx, "k", Policy{}, load)
	require.NoError(t, err)
	assert.Equal(t, "once", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrLoadAppliesCallerStaleWindowToExistingEntry(t *testing.T) {
	clock := newFakeClock()
	c := newMemoryCache(clock)
	ctx := context.Background()

	var calls int32
	load := func(context.Context) (string, error) {
		return fmt.Sprintf("v%d", atomic.AddInt32(&calls, 1)), nil
	}

	v, err := c.GetOrLoad(ctx, "k", Policy{}, load)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	clock.Advance(5 * time.Minute)
	v, err = c.GetOrLoad(ctx, "k", Policy{}, load)
	require.NoError(t, err)
	assert.Equal(t, "v1", v, "inside the default window")

	v, err = c.GetOrLoad(ctx, "k", Policy{StaleAfter: time.Minute}, load)
	require.NoError(t, err)
	assert.Equal(t, "v2", v, "a shorter caller window refreshes")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrLoadAppliesCallerEvictWindowOnAccess(t *testing.T) {
	clock := newFakeClock()
	c := newMemoryCache(clock)
	ctx := context.Background()
	load := func(context.Context) (string, error) { return "v", nil }

	_, err := c.GetOrLoad(ctx, "k", Policy{}, load)
	require.NoError(t, err)

	_, err = c.GetOrLoad(ctx, "k", Policy{EvictAfter: time.Hour}, load)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, ok, err := c.Peek(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "the last access set a one hour window")
}

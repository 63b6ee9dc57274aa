package cache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/product-copy/internal/cache"
	"github.com/JakeFAU/product-copy/internal/product"
	"github.com/JakeFAU/product-copy/internal/storage/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

const key = product.URL("https://www.leonardo.vn/ao-thun")

func newStore(t *testing.T, snap cache.Snapshotter, clock *fakeClock) *cache.Store {
	t.Helper()
	store, err := cache.New(snap, cache.Config{TTL: cache.DefaultTTL}, clock, nil)
	require.NoError(t, err)
	return store
}

func TestNewValidatesDependencies(t *testing.T) {
	t.Parallel()

	_, err := cache.New(nil, cache.Config{}, &fakeClock{}, nil)
	require.Error(t, err)
	_, err = cache.New(memory.NewSnapshotter(), cache.Config{}, nil, nil)
	require.Error(t, err)
}

func TestGetHonoursTTL(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	store := newStore(t, memory.NewSnapshotter(), clock)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, key, "Tên sản phẩm: Áo Thun"))

	clock.Set(start.Add(cache.DefaultTTL - time.Second))
	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Tên sản phẩm: Áo Thun", got)

	clock.Set(start.Add(cache.DefaultTTL))
	_, ok, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "entry at exactly TTL must be treated as absent")

	clock.Set(start.Add(cache.DefaultTTL + time.Second))
	_, ok, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpiredEntriesAreNotPurged(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	snap := memory.NewSnapshotter()
	store := newStore(t, snap, clock)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, key, "old"))
	clock.Set(start.Add(48 * time.Hour))
	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	raw, err := snap.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, raw, key)
}

func TestPutOverwritesAndRefreshesTimestamp(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	store := newStore(t, memory.NewSnapshotter(), clock)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, key, "first"))
	clock.Set(start.Add(20 * time.Hour))
	require.NoError(t, store.Put(ctx, key, "second"))

	clock.Set(start.Add(30 * time.Hour))
	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", got)
}

func TestGetNeverStored(t *testing.T) {
	t.Parallel()

	store := newStore(t, memory.NewSnapshotter(), &fakeClock{now: time.Now()})
	_, ok, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnreadableSnapshot(t *testing.T) {
	t.Parallel()

	snap := &flakySnapshotter{loadErr: errors.New("corrupt snapshot")}
	store := newStore(t, snap, &fakeClock{now: time.Now()})
	ctx := context.Background()

	_, ok, err := store.Get(ctx, key)
	require.ErrorIs(t, err, product.ErrCacheUnavailable)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, key, "fresh"))
	assert.Equal(t, "fresh", snap.saved[key].Payload)
	assert.Len(t, snap.saved, 1)
}

func TestSaveFailureIsCacheUnavailable(t *testing.T) {
	t.Parallel()

	snap := &flakySnapshotter{saveErr: errors.New("disk full")}
	store := newStore(t, snap, &fakeClock{now: time.Now()})

	err := store.Put(context.Background(), key, "x")
	require.ErrorIs(t, err, product.ErrCacheUnavailable)
}

func TestConcurrentPutsDoNotLoseUpdates(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	store := newStore(t, memory.NewSnapshotter(), clock)
	ctx := context.Background()

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := product.URL(fmt.Sprintf("https://www.leonardo.vn/p/%d", i))
			assert.NoError(t, store.Put(ctx, k, fmt.Sprintf("product %d", i)))
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		k := product.URL(fmt.Sprintf("https://www.leonardo.vn/p/%d", i))
		got, ok, err := store.Get(ctx, k)
		require.NoError(t, err)
		require.Truef(t, ok, "missing %s", k)
		assert.Equal(t, fmt.Sprintf("product %d", i), got)
	}
}

func TestCodecRoundTripAndTolerance(t *testing.T) {
	t.Parallel()

	empty, err := cache.Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	withExtras, err := cache.Decode([]byte(`{"version":2,"entries":{"https://www.leonardo.vn/a":{"payload":"A","stored_at":"2026-01-01T00:00:00Z","etag":"x"}},"meta":{}}`))
	require.NoError(t, err)
	assert.Equal(t, "A", withExtras["https://www.leonardo.vn/a"].Payload)

	_, err = cache.Decode([]byte("not json"))
	require.Error(t, err)

	data, err := cache.Encode(nil)
	require.NoError(t, err)
	decoded, err := cache.Decode(data)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

type flakySnapshotter struct {
	loadErr error
	saveErr error
	saved   cache.Snapshot
}

func (f *flakySnapshotter) Load(context.Context) (cache.Snapshot, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.saved, nil
}

func (f *flakySnapshotter) Save(_ context.Context, snap cache.Snapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = snap
	return nil
}

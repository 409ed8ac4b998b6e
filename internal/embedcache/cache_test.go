package embedcache

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/searchforge/searchforge/internal/degrade"
	"github.com/searchforge/searchforge/internal/model"
)

// flakyStore wraps a real store and fails selected operations.
type flakyStore struct {
	Store
	failGet bool
	failSet bool
}

func (f *flakyStore) Get(ctx context.Context, hash string, now int64) (*model.CacheEntry, bool, error) {
	if f.failGet {
		return nil, false, errors.New("backend exploded")
	}
	return f.Store.Get(ctx, hash, now)
}

func (f *flakyStore) Set(ctx context.Context, entry *model.CacheEntry) error {
	if f.failSet {
		return errors.New("backend exploded")
	}
	return f.Store.Set(ctx, entry)
}

// countingStore records maintenance calls.
type countingStore struct {
	Store
	purgeCalls int
	evictCalls int
	evictMax   int64
}

func (c *countingStore) PurgeExpired(ctx context.Context, now int64) (int64, error) {
	c.purgeCalls++
	return 1, nil
}

func (c *countingStore) EvictOverCapacity(ctx context.Context, max int64) (int64, error) {
	c.evictCalls++
	c.evictMax = max
	return 0, nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestCacheSetGetRoundTrip(t *testing.T) {
	now := time.Unix(1000, 0)
	cache := NewCache(NewMemoryStore(16, 0), Config{TTL: time.Hour}, WithClock(fixedClock(now)))
	ctx := context.Background()

	key := Key("m", "1", "some text")
	require.NoError(t, cache.Set(ctx, key, []float32{0.5, 0.25}))

	vec, ok := cache.Get(ctx, key)
	require.True(t, ok)
	require.Equal(t, []float32{0.5, 0.25}, vec)

	_, ok = cache.Get(ctx, "0000")
	require.False(t, ok)
}

func TestCacheSetStampsExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	store := NewMemoryStore(16, 0)
	cache := NewCache(store, Config{TTL: time.Minute}, WithClock(fixedClock(now)))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k1", []float32{1}))

	entry, ok, err := store.Get(ctx, "k1", now.Unix())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, now.Unix()+60, entry.ExpiresAt)
	require.Equal(t, now.Unix(), entry.CreatedAt)
}

func TestCacheSetWithTTLOverride(t *testing.T) {
	now := time.Unix(1000, 0)
	store := NewMemoryStore(16, 0)
	cache := NewCache(store, Config{TTL: time.Hour}, WithClock(fixedClock(now)))
	ctx := context.Background()

	require.NoError(t, cache.SetWithTTL(ctx, "k1", []float32{1}, 10*time.Second))
	entry, _, err := store.Get(ctx, "k1", now.Unix())
	require.NoError(t, err)
	require.Equal(t, now.Unix()+10, entry.ExpiresAt)

	// Zero TTL means no expiry.
	require.NoError(t, cache.SetWithTTL(ctx, "k2", []float32{1}, 0))
	entry, _, err = store.Get(ctx, "k2", now.Unix())
	require.NoError(t, err)
	require.Zero(t, entry.ExpiresAt)
}

func TestCacheRejectsInvalidVectors(t *testing.T) {
	cache := NewCache(NewMemoryStore(16, 0), Config{})
	ctx := context.Background()

	require.Error(t, cache.Set(ctx, "k", nil))
	require.Error(t, cache.Set(ctx, "k", []float32{}))
	require.Error(t, cache.Set(ctx, "k", []float32{float32(math.NaN())}))
	require.Error(t, cache.Set(ctx, "k", []float32{float32(math.Inf(1))}))
	require.Error(t, cache.Set(ctx, "k", make([]float32, MaxDims+1)))

	require.NoError(t, cache.Set(ctx, "k", make([]float32, MaxDims)))
}

func TestCacheGetDegradesToMiss(t *testing.T) {
	cache := NewCache(&flakyStore{Store: NewMemoryStore(16, 0), failGet: true}, Config{})
	vec, ok := cache.Get(context.Background(), "k")
	require.False(t, ok)
	require.Nil(t, vec)
}

func TestCacheSetReturnsTypedEvent(t *testing.T) {
	cache := NewCache(&flakyStore{Store: NewMemoryStore(16, 0), failSet: true}, Config{})
	err := cache.Set(context.Background(), "k", []float32{1})
	require.Error(t, err)

	var ev *degrade.Event
	require.ErrorAs(t, err, &ev)
	require.Equal(t, degrade.KindCacheDegraded, ev.Kind)
}

func TestCacheMaintain(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore(16, 0)}
	cache := NewCache(store, Config{MaxEntries: 100})

	require.NoError(t, cache.Maintain(context.Background()))
	require.Equal(t, 1, store.purgeCalls)
	require.Equal(t, 1, store.evictCalls)
	require.Equal(t, int64(100), store.evictMax)
}

func TestCacheMaintainSkipsEvictionWithoutCapacity(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore(16, 0)}
	cache := NewCache(store, Config{})

	require.NoError(t, cache.Maintain(context.Background()))
	require.Equal(t, 1, store.purgeCalls)
	require.Zero(t, store.evictCalls)
}

func TestCacheProbabilisticMaintenanceOnSet(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore(16, 0)}
	cache := NewCache(store, Config{CleanupProbability: 0.01}, WithRand(func() float64 { return 0.001 }))
	require.NoError(t, cache.Set(context.Background(), "k", []float32{1}))
	require.Equal(t, 1, store.purgeCalls)

	quiet := &countingStore{Store: NewMemoryStore(16, 0)}
	cache = NewCache(quiet, Config{CleanupProbability: 0.01}, WithRand(func() float64 { return 0.5 }))
	require.NoError(t, cache.Set(context.Background(), "k", []float32{1}))
	require.Zero(t, quiet.purgeCalls)
}

func TestCacheGetMultiBestEffort(t *testing.T) {
	cache := NewCache(NewMemoryStore(16, 0), Config{})
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k1", []float32{1}))
	require.NoError(t, cache.Set(ctx, "k2", []float32{2}))

	found := cache.GetMulti(ctx, []string{"k1", "missing", "k2"})
	require.Len(t, found, 2)
	require.Equal(t, []float32{1}, found["k1"])
	require.Equal(t, []float32{2}, found["k2"])
}

func TestCacheSetMultiReportsFailures(t *testing.T) {
	cache := NewCache(NewMemoryStore(16, 0), Config{})
	stored, failed := cache.SetMulti(context.Background(), map[string][]float32{
		"good": {1, 2},
		"bad":  {},
	})
	require.Equal(t, 1, stored)
	require.Equal(t, []string{"bad"}, failed)
}

func TestCacheInvalidate(t *testing.T) {
	cache := NewCache(NewMemoryStore(16, 0), Config{})
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k1", []float32{1}))
	require.NoError(t, cache.Invalidate(ctx, "k1"))
	_, ok := cache.Get(ctx, "k1")
	require.False(t, ok)
}

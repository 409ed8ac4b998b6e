package embedcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/searchforge/searchforge/internal/model"
)

func TestMemoryStoreGetSet(t *testing.T) {
	store := NewMemoryStore(16, time.Hour)
	ctx := context.Background()
	now := time.Now().Unix()

	_, ok, err := store.Get(ctx, "missing", now)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, &model.CacheEntry{
		Hash:      "k1",
		Vector:    []float32{0.1, 0.2},
		CreatedAt: now,
		HitCount:  1,
	}))

	entry, ok, err := store.Get(ctx, "k1", now+1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{0.1, 0.2}, entry.Vector)
	require.Equal(t, now+1, entry.LastAccessed)
	require.Equal(t, int64(2), entry.HitCount)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(16, time.Hour)
	ctx := context.Background()
	now := time.Now().Unix()

	require.NoError(t, store.Set(ctx, &model.CacheEntry{
		Hash:      "k1",
		Vector:    []float32{1},
		CreatedAt: now,
		ExpiresAt: now + 10,
	}))

	_, ok, err := store.Get(ctx, "k1", now+5)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = store.Get(ctx, "k1", now+10)
	require.NoError(t, err)
	require.False(t, ok)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestMemoryStoreReSetKeepsHitCountAndCreation(t *testing.T) {
	store := NewMemoryStore(16, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, &model.CacheEntry{Hash: "k1", Vector: []float32{1}, CreatedAt: 100, HitCount: 1}))
	require.NoError(t, store.Set(ctx, &model.CacheEntry{Hash: "k1", Vector: []float32{2}, CreatedAt: 200, HitCount: 1}))

	entry, ok, err := store.Get(ctx, "k1", 300)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{2}, entry.Vector)
	require.Equal(t, int64(100), entry.CreatedAt)
	// Re-set counted as a hit, then the get itself.
	require.Equal(t, int64(3), entry.HitCount)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore(16, time.Hour)
	ctx := context.Background()

	src := []float32{1, 2, 3}
	require.NoError(t, store.Set(ctx, &model.CacheEntry{Hash: "k1", Vector: src}))
	src[0] = 99

	entry, ok, err := store.Get(ctx, "k1", 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{1, 2, 3}, entry.Vector)

	entry.Vector[1] = 99
	again, _, err := store.Get(ctx, "k1", 2)
	require.NoError(t, err)
	require.Equal(t, float32(2), again.Vector[1])
}

func TestMemoryStoreDeleteAndClear(t *testing.T) {
	store := NewMemoryStore(16, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, &model.CacheEntry{Hash: "k1", Vector: []float32{1}}))
	require.NoError(t, store.Set(ctx, &model.CacheEntry{Hash: "k2", Vector: []float32{2}}))

	require.NoError(t, store.Delete(ctx, "k1"))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	require.NoError(t, store.Clear(ctx))
	count, err = store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore(16, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, &model.CacheEntry{Hash: "k1", Vector: []float32{1}, HitCount: 1}))
	_, _, err := store.Get(ctx, "k1", 1)
	require.NoError(t, err)
	_, _, err = store.Get(ctx, "k1", 2)
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Entries)
	require.Equal(t, int64(3), stats.TotalHit)
}

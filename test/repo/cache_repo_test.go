package repo_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/searchforge/searchforge/internal/model"
	"github.com/searchforge/searchforge/internal/repo"
	"github.com/searchforge/searchforge/test/testutil"
)

func hashOf(seed string) string {
	return strings.Repeat(seed, 64/len(seed))
}

func TestCacheRepoGetSet(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cache, err := repo.NewCacheRepo(db, false)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, hashOf("0"), 1000)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Set(ctx, &model.CacheEntry{
		Hash:         hashOf("a"),
		Vector:       []float32{0.1, 0.2, 0.3},
		CreatedAt:    1000,
		LastAccessed: 1000,
		ExpiresAt:    2000,
	}))

	entry, ok, err := cache.Get(ctx, hashOf("a"), 1500)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, entry.Vector)
	require.Equal(t, int64(1000), entry.CreatedAt)
	require.Equal(t, int64(1500), entry.LastAccessed)
	require.Equal(t, int64(2), entry.HitCount)

	// Each read bumps the counter.
	entry, ok, err = cache.Get(ctx, hashOf("a"), 1600)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(3), entry.HitCount)
}

func TestCacheRepoExpiry(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cache, err := repo.NewCacheRepo(db, false)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &model.CacheEntry{
		Hash: hashOf("a"), Vector: []float32{1}, CreatedAt: 1000, LastAccessed: 1000, ExpiresAt: 2000,
	}))
	require.NoError(t, cache.Set(ctx, &model.CacheEntry{
		Hash: hashOf("b"), Vector: []float32{2}, CreatedAt: 1000, LastAccessed: 1000,
	}))

	// Past expiry: miss.
	_, ok, err := cache.Get(ctx, hashOf("a"), 2000)
	require.NoError(t, err)
	require.False(t, ok)

	// expires_at = 0 never expires.
	_, ok, err = cache.Get(ctx, hashOf("b"), 999999)
	require.NoError(t, err)
	require.True(t, ok)

	purged, err := cache.PurgeExpired(ctx, 2000)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)

	count, err := cache.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestCacheRepoUpsertIncrementsHitCount(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cache, err := repo.NewCacheRepo(db, false)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &model.CacheEntry{
		Hash: hashOf("a"), Vector: []float32{1}, CreatedAt: 1000, LastAccessed: 1000,
	}))
	require.NoError(t, cache.Set(ctx, &model.CacheEntry{
		Hash: hashOf("a"), Vector: []float32{1, 2}, CreatedAt: 1500, LastAccessed: 1500,
	}))

	entry, ok, err := cache.Get(ctx, hashOf("a"), 1600)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{1, 2}, entry.Vector)
	// Rewrite counted as a hit, then the read.
	require.Equal(t, int64(3), entry.HitCount)
	// Creation stamp survives the rewrite.
	require.Equal(t, int64(1000), entry.CreatedAt)
}

func TestCacheRepoEvictOverCapacity(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cache, err := repo.NewCacheRepo(db, false)
	require.NoError(t, err)
	ctx := context.Background()

	// cold is the oldest access, warm newer, hot newest.
	require.NoError(t, cache.Set(ctx, &model.CacheEntry{Hash: hashOf("a"), Vector: []float32{1}, LastAccessed: 100}))
	require.NoError(t, cache.Set(ctx, &model.CacheEntry{Hash: hashOf("b"), Vector: []float32{2}, LastAccessed: 200}))
	require.NoError(t, cache.Set(ctx, &model.CacheEntry{Hash: hashOf("c"), Vector: []float32{3}, LastAccessed: 300}))

	evicted, err := cache.EvictOverCapacity(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int64(1), evicted)

	_, ok, err := cache.Get(ctx, hashOf("a"), 400)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = cache.Get(ctx, hashOf("c"), 400)
	require.NoError(t, err)
	require.True(t, ok)

	// Already under capacity: nothing to do.
	evicted, err = cache.EvictOverCapacity(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, evicted)
}

func TestCacheRepoCompressionRoundTrip(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cache, err := repo.NewCacheRepo(db, true)
	require.NoError(t, err)
	ctx := context.Background()

	vec := make([]float32, 768)
	for i := range vec {
		vec[i] = float32(i) / 768
	}
	require.NoError(t, cache.Set(ctx, &model.CacheEntry{
		Hash: hashOf("a"), Vector: vec, CreatedAt: 1000, LastAccessed: 1000,
	}))

	entry, ok, err := cache.Get(ctx, hashOf("a"), 1100)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, vec, entry.Vector)
}

func TestCacheRepoDeleteAndClear(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cache, err := repo.NewCacheRepo(db, false)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &model.CacheEntry{Hash: hashOf("a"), Vector: []float32{1}}))
	require.NoError(t, cache.Set(ctx, &model.CacheEntry{Hash: hashOf("b"), Vector: []float32{2}}))

	require.NoError(t, cache.Delete(ctx, hashOf("a")))
	count, err := cache.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	require.NoError(t, cache.Clear(ctx))
	count, err = cache.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestCacheRepoStats(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cache, err := repo.NewCacheRepo(db, false)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &model.CacheEntry{Hash: hashOf("a"), Vector: []float32{1}}))
	_, _, err = cache.Get(ctx, hashOf("a"), 100)
	require.NoError(t, err)

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Entries)
	require.Equal(t, int64(2), stats.TotalHit)
}

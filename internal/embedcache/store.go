package embedcache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/searchforge/searchforge/internal/model"
)

// Store is the backend contract shared by the durable (postgres) and
// volatile (in-memory) cache backends. Get must refresh last_accessed and
// hit_count on a hit and must not return entries past their expiry.
type Store interface {
	Get(ctx context.Context, hash string, now int64) (*model.CacheEntry, bool, error)
	Set(ctx context.Context, entry *model.CacheEntry) error
	Delete(ctx context.Context, hash string) error
	Clear(ctx context.Context) error
	PurgeExpired(ctx context.Context, now int64) (int64, error)
	EvictOverCapacity(ctx context.Context, max int64) (int64, error)
	Count(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*model.CacheStats, error)
}

// memoryStore is the volatile backend for short-lived contexts. The LRU
// evicts on its own, so the maintenance hooks are no-ops.
type memoryStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *model.CacheEntry]
}

func NewMemoryStore(size int, ttl time.Duration) Store {
	if size <= 0 {
		size = 10000
	}
	return &memoryStore{
		cache: expirable.NewLRU[string, *model.CacheEntry](size, nil, ttl),
	}
}

func (m *memoryStore) Get(ctx context.Context, hash string, now int64) (*model.CacheEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.cache.Get(hash)
	if !ok {
		return nil, false, nil
	}
	if entry.ExpiresAt > 0 && entry.ExpiresAt <= now {
		m.cache.Remove(hash)
		return nil, false, nil
	}
	entry.LastAccessed = now
	entry.HitCount++
	clone := *entry
	clone.Vector = cloneVector(entry.Vector)
	return &clone, true, nil
}

func (m *memoryStore) Set(ctx context.Context, entry *model.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *entry
	stored.Vector = cloneVector(entry.Vector)
	if prev, ok := m.cache.Get(entry.Hash); ok {
		stored.HitCount = prev.HitCount + 1
		stored.CreatedAt = prev.CreatedAt
	}
	m.cache.Add(entry.Hash, &stored)
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Remove(hash)
	return nil
}

func (m *memoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Purge()
	return nil
}

func (m *memoryStore) PurgeExpired(ctx context.Context, now int64) (int64, error) {
	return 0, nil
}

func (m *memoryStore) EvictOverCapacity(ctx context.Context, max int64) (int64, error) {
	return 0, nil
}

func (m *memoryStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(m.cache.Len()), nil
}

func (m *memoryStore) Stats(ctx context.Context) (*model.CacheStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &model.CacheStats{Entries: int64(m.cache.Len())}
	for _, entry := range m.cache.Values() {
		stats.TotalHit += entry.HitCount
	}
	return stats, nil
}

func cloneVector(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}

package embedcache

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/searchforge/searchforge/internal/degrade"
	"github.com/searchforge/searchforge/internal/model"
)

// MaxDims bounds stored vectors; anything larger is rejected at Set time.
const MaxDims = 16000

type Config struct {
	TTL                time.Duration
	MaxEntries         int64
	CleanupProbability float64
}

// Cache is the backend-agnostic policy layer: key validation, TTL stamping,
// probabilistic maintenance and degradation conversion. Storage failures
// never escape as raw errors; Get degrades to a miss, Set returns a typed
// event.
type Cache struct {
	store  Store
	cfg    Config
	nowFn  func() time.Time
	randFn func() float64
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.nowFn = now
	}
}

func WithRand(fn func() float64) Option {
	return func(c *Cache) {
		c.randFn = fn
	}
}

func NewCache(store Store, cfg Config, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		cfg:    cfg,
		nowFn:  time.Now,
		randFn: rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached vector for key, refreshing access metadata. A
// storage failure is reported as a degradation and treated as a miss so the
// caller regenerates instead of failing.
func (c *Cache) Get(ctx context.Context, key string) ([]float32, bool) {
	entry, ok, err := c.store.Get(ctx, key, c.nowFn().Unix())
	if err != nil {
		c.report(ctx, "get", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return entry.Vector, true
}

// Set stores a vector under key with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, vec []float32) error {
	return c.SetWithTTL(ctx, key, vec, c.cfg.TTL)
}

func (c *Cache) SetWithTTL(ctx context.Context, key string, vec []float32, ttl time.Duration) error {
	if err := ValidateVector(vec); err != nil {
		return err
	}
	now := c.nowFn().Unix()
	entry := &model.CacheEntry{
		Hash:         key,
		Vector:       vec,
		CreatedAt:    now,
		LastAccessed: now,
		HitCount:     1,
	}
	if ttl > 0 {
		entry.ExpiresAt = now + int64(ttl.Seconds())
	}
	if err := c.store.Set(ctx, entry); err != nil {
		ev := c.report(ctx, "set", err)
		return ev
	}
	c.maybeMaintain(ctx)
	return nil
}

// GetMulti is best-effort: a miss or backend failure on one key never aborts
// the rest.
func (c *Cache) GetMulti(ctx context.Context, keys []string) map[string][]float32 {
	found := make(map[string][]float32, len(keys))
	for _, key := range keys {
		if vec, ok := c.Get(ctx, key); ok {
			found[key] = vec
		}
	}
	return found
}

// SetMulti stores each pair independently and reports the keys that failed.
func (c *Cache) SetMulti(ctx context.Context, pairs map[string][]float32) (int, []string) {
	stored := 0
	var failed []string
	for key, vec := range pairs {
		if err := c.Set(ctx, key, vec); err != nil {
			failed = append(failed, key)
			continue
		}
		stored++
	}
	return stored, failed
}

func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, key); err != nil {
		return c.report(ctx, "invalidate", err)
	}
	return nil
}

func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return c.report(ctx, "clear", err)
	}
	return nil
}

// Maintain runs the two eviction phases: drop entries past expiry, then if
// the store still holds more than MaxEntries, evict by oldest access with
// lowest hit count first.
func (c *Cache) Maintain(ctx context.Context) error {
	purged, err := c.store.PurgeExpired(ctx, c.nowFn().Unix())
	if err != nil {
		return c.report(ctx, "maintain", err)
	}
	var evicted int64
	if c.cfg.MaxEntries > 0 {
		evicted, err = c.store.EvictOverCapacity(ctx, c.cfg.MaxEntries)
		if err != nil {
			return c.report(ctx, "maintain", err)
		}
	}
	if purged > 0 || evicted > 0 {
		logutil.GetLogger(ctx).Debug("cache maintenance done",
			zap.Int64("purged", purged),
			zap.Int64("evicted", evicted),
		)
	}
	return nil
}

func (c *Cache) Stats(ctx context.Context) (*model.CacheStats, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return nil, c.report(ctx, "stats", err)
	}
	return stats, nil
}

func (c *Cache) maybeMaintain(ctx context.Context) {
	if c.cfg.CleanupProbability <= 0 {
		return
	}
	if c.randFn() >= c.cfg.CleanupProbability {
		return
	}
	_ = c.Maintain(ctx)
}

func (c *Cache) report(ctx context.Context, op string, err error) *degrade.Event {
	ev := degrade.Classify(fmt.Errorf("cache %s: %w", op, err))
	if ev.ShouldLog {
		logutil.GetLogger(ctx).Warn("cache degraded",
			zap.String("op", op),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}
	return ev
}

// ValidateVector rejects empty vectors, vectors over MaxDims and vectors
// carrying non-finite components.
func ValidateVector(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty embedding vector")
	}
	if len(vec) > MaxDims {
		return fmt.Errorf("embedding vector has %d dims, max %d", len(vec), MaxDims)
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("embedding vector component %d is not finite", i)
		}
	}
	return nil
}

package search

import (
	"context"
	"time"

	"github.com/searchforge/searchforge/internal/ai"
	"github.com/searchforge/searchforge/internal/embedcache"
)

const (
	taskQuery    = "RETRIEVAL_QUERY"
	taskDocument = "RETRIEVAL_DOCUMENT"
)

// Embedder is the minimal generation contract the searcher and indexer
// consume.
type Embedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

// CachedEmbedder puts the embedding cache in front of a provider: lookups
// never generate, Embed generates on a miss and populates the cache as a
// byproduct. Cache failures are absorbed by the cache layer and simply mean
// a regeneration.
type CachedEmbedder struct {
	cache        *embedcache.Cache
	next         ai.IEmbedder
	modelVersion string
	timeout      time.Duration
}

func NewCachedEmbedder(cache *embedcache.Cache, next ai.IEmbedder, modelVersion string, timeout time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		cache:        cache,
		next:         next,
		modelVersion: modelVersion,
		timeout:      timeout,
	}
}

// Key derives the cache key the embedder uses for a given text.
func (e *CachedEmbedder) Key(text string) string {
	return embedcache.Key(e.next.ModelName(), e.modelVersion, text)
}

// Lookup consults only the cache.
func (e *CachedEmbedder) Lookup(ctx context.Context, text string) ([]float32, bool) {
	if e.cache == nil {
		return nil, false
	}
	return e.cache.Get(ctx, e.Key(text))
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if vec, ok := e.Lookup(ctx, text); ok {
		return vec, nil
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	vec, err := e.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		_ = e.cache.Set(ctx, e.Key(text), vec)
	}
	return vec, nil
}

func (e *CachedEmbedder) ModelName() string {
	return e.next.ModelName()
}

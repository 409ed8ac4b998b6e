package job

import (
	"context"

	"github.com/searchforge/searchforge/internal/embedcache"
)

// CacheMaintenanceJob is the periodic complement to the probabilistic
// on-write maintenance trigger.
type CacheMaintenanceJob struct {
	cache *embedcache.Cache
}

func NewCacheMaintenanceJob(cache *embedcache.Cache) *CacheMaintenanceJob {
	return &CacheMaintenanceJob{cache: cache}
}

func (j *CacheMaintenanceJob) Name() string {
	return "cache_maintenance"
}

func (j *CacheMaintenanceJob) Run(ctx context.Context) error {
	if j.cache == nil {
		return nil
	}
	return j.cache.Maintain(ctx)
}

package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/searchforge/searchforge/internal/pkg/timeutil"
	"github.com/searchforge/searchforge/internal/repo"
)

// LeaseReclaimJob releases jobs whose lease deadline passed, covering
// workers that died mid-claim.
type LeaseReclaimJob struct {
	queue *repo.QueueRepo
}

func NewLeaseReclaimJob(queue *repo.QueueRepo) *LeaseReclaimJob {
	return &LeaseReclaimJob{queue: queue}
}

func (j *LeaseReclaimJob) Name() string {
	return "lease_reclaim"
}

func (j *LeaseReclaimJob) Run(ctx context.Context) error {
	if j.queue == nil {
		return nil
	}
	reclaimed, err := j.queue.ReclaimExpired(ctx, timeutil.NowUnix())
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		logutil.GetLogger(ctx).Info("reclaimed expired leases", zap.Int64("count", reclaimed))
	}
	return nil
}

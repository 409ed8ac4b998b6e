package job

import (
	"context"
	"time"

	"github.com/searchforge/searchforge/internal/queue"
)

// QueueWorkerJob runs one bounded processing round per tick; the scheduler's
// overlap guard keeps rounds from stacking.
type QueueWorkerJob struct {
	mgr      *queue.Manager
	maxItems int
	budget   time.Duration
}

func NewQueueWorkerJob(mgr *queue.Manager, maxItems int, budget time.Duration) *QueueWorkerJob {
	return &QueueWorkerJob{mgr: mgr, maxItems: maxItems, budget: budget}
}

func (j *QueueWorkerJob) Name() string {
	return "queue_worker"
}

func (j *QueueWorkerJob) Run(ctx context.Context) error {
	if j.mgr == nil {
		return nil
	}
	_, err := j.mgr.Process(ctx, j.maxItems, j.budget)
	return err
}

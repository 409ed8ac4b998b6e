package schedule

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Job is one recurring background task: a queue-drain round, a cache sweep,
// a lease reclaim. Run receives the scheduler's base context and must return
// once its work for the tick is done.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler drives background tasks on standard 5-field cron expressions.
// Each task carries its own overlap guard: a tick that fires while the
// previous run is still going is skipped, so a slow queue round never stacks
// on itself.
type Scheduler struct {
	cron *cron.Cron
	base context.Context
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
		))),
		base: context.Background(),
	}
}

func (s *Scheduler) Register(job Job, expr string) error {
	var busy atomic.Bool
	name := job.Name()
	if _, err := s.cron.AddFunc(expr, func() {
		logger := logutil.GetLogger(s.base).With(
			zap.String("task", name),
			zap.String("schedule", expr),
		)
		if !busy.CompareAndSwap(false, true) {
			logger.Info("previous run still active, skipping tick")
			return
		}
		defer busy.Store(false)
		start := time.Now()
		if err := job.Run(s.base); err != nil {
			logger.Error("task run failed", zap.Duration("took", time.Since(start)), zap.Error(err))
			return
		}
		logger.Debug("task run done", zap.Duration("took", time.Since(start)))
	}); err != nil {
		return fmt.Errorf("register task %s: %w", name, err)
	}
	logutil.GetLogger(s.base).Info("task registered",
		zap.String("task", name),
		zap.String("schedule", expr),
	)
	return nil
}

// Start begins firing ticks. ctx becomes the base context handed to every
// task run, so cancelling it stops in-flight queue rounds promptly.
func (s *Scheduler) Start(ctx context.Context) {
	if ctx != nil {
		s.base = ctx
	}
	s.cron.Start()
}

// Stop blocks until in-flight runs finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

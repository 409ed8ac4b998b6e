package queue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/searchforge/searchforge/internal/model"
)

// Store is the durable job store contract. A claimed job must stay invisible
// to other claimants until it is deleted, released, or its lease expires.
type Store interface {
	Enqueue(ctx context.Context, job *model.QueueJob) error
	Claim(ctx context.Context, workerID string, leaseUntil, now int64) (*model.QueueJob, bool, error)
	Delete(ctx context.Context, id int64) error
	Release(ctx context.Context, id int64) error
	ReclaimExpired(ctx context.Context, now int64) (int64, error)
	Clear(ctx context.Context, serverID string) (int64, error)
	Depth(ctx context.Context) (int64, error)
	CountByPriority(ctx context.Context) (map[int]int64, error)
	CountByOperation(ctx context.Context) (map[string]int64, error)
}

// Handler processes one claimed job. Returning an error releases the job
// back to the queue.
type Handler func(ctx context.Context, job *model.QueueJob) error

type Priorities struct {
	High   int
	Normal int
	Low    int
}

func DefaultPriorities() Priorities {
	return Priorities{High: 10, Normal: 50, Low: 90}
}

// Band maps a numeric priority back to its named tier for stats.
func (p Priorities) Band(priority int) string {
	switch {
	case priority <= p.High:
		return "high"
	case priority <= p.Normal:
		return "normal"
	default:
		return "low"
	}
}

type Config struct {
	Enabled              bool
	DefaultServerEnabled bool
	ServerOverrides      map[string]bool
	BatchSize            int
	MaxProcessing        time.Duration
	LeaseTimeout         time.Duration
	MaxAttempts          int
	Priorities           Priorities
}

type ProcessResult struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Remaining int64 `json:"remaining"`
}

// Manager schedules asynchronous embedding generation on top of the durable
// job store. Multiple managers may run against the same store; exclusivity
// comes from the store's claim primitive, not in-process locks.
type Manager struct {
	store    Store
	cfg      Config
	handlers map[string]Handler
	workerID string
	nowFn    func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.nowFn = now
	}
}

func WithWorkerID(id string) Option {
	return func(m *Manager) {
		m.workerID = id
	}
}

func NewManager(store Store, cfg Config, opts ...Option) *Manager {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Priorities == (Priorities{}) {
		cfg.Priorities = DefaultPriorities()
	}
	m := &Manager{
		store:    store,
		cfg:      cfg,
		handlers: make(map[string]Handler),
		workerID: uuid.NewString(),
		nowFn:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) RegisterHandler(operation string, h Handler) {
	m.handlers[operation] = h
}

// EnabledForServer is false whenever the global flag is off, regardless of
// per-server overrides; otherwise the override wins, then the default.
func (m *Manager) EnabledForServer(serverID string) bool {
	if !m.cfg.Enabled {
		return false
	}
	if v, ok := m.cfg.ServerOverrides[serverID]; ok {
		return v
	}
	return m.cfg.DefaultServerEnabled
}

func (m *Manager) PriorityValue(tier string) int {
	switch tier {
	case "high":
		return m.cfg.Priorities.High
	case "low":
		return m.cfg.Priorities.Low
	default:
		return m.cfg.Priorities.Normal
	}
}

func (m *Manager) EnqueueSingle(ctx context.Context, serverID, indexID, itemID, text string, priority int) error {
	job := &model.QueueJob{
		Operation:  model.OpGenerateSingle,
		ServerID:   serverID,
		IndexID:    indexID,
		Payload:    model.QueuePayload{ItemID: itemID, Text: text},
		Priority:   priority,
		EnqueuedAt: m.nowFn().Unix(),
	}
	return m.enqueue(ctx, job)
}

// EnqueueBatch chunks the items into sub-batches bounded by the configured
// batch size, all with the same priority and server/index grouping.
func (m *Manager) EnqueueBatch(ctx context.Context, serverID, indexID string, items map[string]string, priority int) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for start := 0; start < len(ids); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := make(map[string]string, end-start)
		for _, id := range ids[start:end] {
			chunk[id] = items[id]
		}
		job := &model.QueueJob{
			Operation:  model.OpGenerateBatch,
			ServerID:   serverID,
			IndexID:    indexID,
			Payload:    model.QueuePayload{Items: chunk},
			Priority:   priority,
			EnqueuedAt: m.nowFn().Unix(),
		}
		if err := m.enqueue(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

// EnqueueIndexRegeneration schedules one resumable window of a full index
// re-embedding; the handler enqueues the follow-up window itself.
func (m *Manager) EnqueueIndexRegeneration(ctx context.Context, serverID, indexID string, batchSize, offset, priority int) error {
	if batchSize <= 0 {
		batchSize = m.cfg.BatchSize
	}
	job := &model.QueueJob{
		Operation:  model.OpRegenerateIndexRange,
		ServerID:   serverID,
		IndexID:    indexID,
		Payload:    model.QueuePayload{BatchSize: batchSize, Offset: offset},
		Priority:   priority,
		EnqueuedAt: m.nowFn().Unix(),
	}
	return m.enqueue(ctx, job)
}

func (m *Manager) enqueue(ctx context.Context, job *model.QueueJob) error {
	if err := m.store.Enqueue(ctx, job); err != nil {
		logutil.GetLogger(ctx).Error("enqueue failed",
			zap.String("operation", job.Operation),
			zap.String("server_id", job.ServerID),
			zap.Error(err),
		)
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Process runs one round: claim, dispatch, delete on success or release on
// handler failure, until the item cap, the wall-clock budget, or an empty
// queue stops it. The budget is checked between items; a handler in flight
// runs to completion.
func (m *Manager) Process(ctx context.Context, maxItems int, budget time.Duration) (*ProcessResult, error) {
	logger := logutil.GetLogger(ctx)
	start := m.nowFn()
	result := &ProcessResult{}

	if _, err := m.store.ReclaimExpired(ctx, start.Unix()); err != nil {
		logger.Warn("lease reclaim failed", zap.Error(err))
	}

	for {
		if ctx.Err() != nil {
			break
		}
		if maxItems > 0 && result.Processed+result.Failed >= int64(maxItems) {
			break
		}
		if budget > 0 && m.nowFn().Sub(start) >= budget {
			break
		}
		now := m.nowFn()
		job, ok, err := m.store.Claim(ctx, m.workerID, now.Add(m.cfg.LeaseTimeout).Unix(), now.Unix())
		if err != nil {
			return result, fmt.Errorf("queue claim: %w", err)
		}
		if !ok {
			break
		}
		if err := m.dispatch(ctx, job); err != nil {
			result.Failed++
			// Every claim bumps the attempt counter, so a poison job cannot
			// occupy its priority slot forever.
			if job.Attempts >= m.cfg.MaxAttempts {
				logger.Error("job exhausted its attempts, dropping",
					zap.Int64("job_id", job.ID),
					zap.String("operation", job.Operation),
					zap.Int("attempts", job.Attempts),
					zap.Error(err),
				)
				if delErr := m.store.Delete(ctx, job.ID); delErr != nil {
					logger.Error("job drop failed", zap.Int64("job_id", job.ID), zap.Error(delErr))
				}
				continue
			}
			logger.Warn("job failed, releasing",
				zap.Int64("job_id", job.ID),
				zap.String("operation", job.Operation),
				zap.Int("attempts", job.Attempts),
				zap.Error(err),
			)
			if relErr := m.store.Release(ctx, job.ID); relErr != nil {
				logger.Error("job release failed", zap.Int64("job_id", job.ID), zap.Error(relErr))
			}
			continue
		}
		if err := m.store.Delete(ctx, job.ID); err != nil {
			logger.Error("job delete failed", zap.Int64("job_id", job.ID), zap.Error(err))
		}
		result.Processed++
	}

	remaining, err := m.store.Depth(ctx)
	if err != nil {
		logger.Warn("queue depth check failed", zap.Error(err))
	} else {
		result.Remaining = remaining
	}
	return result, nil
}

// ProcessContinuously repeats rounds until the queue drains or the context
// is cancelled, backing off briefly whenever a round makes zero progress.
func (m *Manager) ProcessContinuously(ctx context.Context, maxItemsPerRound int, budget, backoff time.Duration) error {
	if backoff <= 0 {
		backoff = time.Second
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := m.Process(ctx, maxItemsPerRound, budget)
		if err != nil {
			return err
		}
		if result.Remaining == 0 {
			return nil
		}
		if result.Processed == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
}

func (m *Manager) Clear(ctx context.Context, serverID string) (int64, error) {
	return m.store.Clear(ctx, serverID)
}

func (m *Manager) Stats(ctx context.Context) (*model.QueueStats, error) {
	depth, err := m.store.Depth(ctx)
	if err != nil {
		return nil, err
	}
	byPriority, err := m.store.CountByPriority(ctx)
	if err != nil {
		return nil, err
	}
	byOperation, err := m.store.CountByOperation(ctx)
	if err != nil {
		return nil, err
	}
	stats := &model.QueueStats{
		Depth:       depth,
		ByPriority:  make(map[string]int64),
		ByOperation: byOperation,
	}
	for priority, count := range byPriority {
		stats.ByPriority[m.cfg.Priorities.Band(priority)] += count
	}
	return stats, nil
}

func (m *Manager) dispatch(ctx context.Context, job *model.QueueJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	h := m.handlers[job.Operation]
	if h == nil {
		return fmt.Errorf("no handler for operation %s", job.Operation)
	}
	return h(ctx, job)
}

package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/searchforge/searchforge/internal/degrade"
	"github.com/searchforge/searchforge/internal/model"
	"github.com/searchforge/searchforge/internal/pkg/timeutil"
	"github.com/searchforge/searchforge/internal/queue"
)

// Worker implements the queue handlers for the three embedding operations.
type Worker struct {
	items    ItemStore
	embedder *CachedEmbedder
	mgr      *queue.Manager
}

func NewWorker(items ItemStore, embedder *CachedEmbedder, mgr *queue.Manager) *Worker {
	return &Worker{items: items, embedder: embedder, mgr: mgr}
}

// Register wires the worker's handlers into the queue manager.
func (w *Worker) Register() {
	w.mgr.RegisterHandler(model.OpGenerateSingle, w.handleSingle)
	w.mgr.RegisterHandler(model.OpGenerateBatch, w.handleBatch)
	w.mgr.RegisterHandler(model.OpRegenerateIndexRange, w.handleRegenerateRange)
}

func (w *Worker) handleSingle(ctx context.Context, job *model.QueueJob) error {
	if job.Payload.ItemID == "" || job.Payload.Text == "" {
		return fmt.Errorf("generate_single job %d has empty payload", job.ID)
	}
	vec, err := w.embedder.Embed(ctx, job.Payload.Text, taskDocument)
	if err != nil {
		return degrade.Classify(err)
	}
	if err := w.items.SetEmbedding(ctx, job.ServerID, job.IndexID, job.Payload.ItemID, vec, timeutil.NowUnix()); err != nil {
		return degrade.Classify(err)
	}
	return nil
}

// handleBatch embeds every item independently; the successful subset is
// committed even when some items fail. Failed items are re-enqueued as a new
// batch so they retry without dragging the finished ones along.
func (w *Worker) handleBatch(ctx context.Context, job *model.QueueJob) error {
	if len(job.Payload.Items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(job.Payload.Items))
	for id := range job.Payload.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var succeeded, failed []string
	retry := make(map[string]string)
	for _, id := range ids {
		text := job.Payload.Items[id]
		vec, err := w.embedder.Embed(ctx, text, taskDocument)
		if err == nil {
			err = w.items.SetEmbedding(ctx, job.ServerID, job.IndexID, id, vec, timeutil.NowUnix())
		}
		if err != nil {
			failed = append(failed, id)
			retry[id] = text
			continue
		}
		succeeded = append(succeeded, id)
	}
	if len(failed) == 0 {
		return nil
	}
	if len(succeeded) == 0 {
		// Nothing committed; release the whole job for a clean retry.
		return fmt.Errorf("batch job %d: all %d items failed", job.ID, len(failed))
	}
	ev := degrade.NewPartialBatch(succeeded, failed)
	if ev.ShouldLog {
		logutil.GetLogger(ctx).Warn("embedding batch partially failed",
			zap.Int64("job_id", job.ID),
			zap.Int("succeeded", len(succeeded)),
			zap.Int("failed", len(failed)),
		)
	}
	if err := w.mgr.EnqueueBatch(ctx, job.ServerID, job.IndexID, retry, job.Priority); err != nil {
		logutil.GetLogger(ctx).Error("failed to re-enqueue failed batch items",
			zap.Int64("job_id", job.ID),
			zap.Error(err),
		)
	}
	return nil
}

// handleRegenerateRange converts one window of the index into a batch job
// and schedules the next window, so a full regeneration never needs an
// unbounded payload.
func (w *Worker) handleRegenerateRange(ctx context.Context, job *model.QueueJob) error {
	batchSize := job.Payload.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	items, err := w.items.ListRange(ctx, job.ServerID, job.IndexID, batchSize, job.Payload.Offset)
	if err != nil {
		return degrade.Classify(err)
	}
	if len(items) == 0 {
		return nil
	}
	batch := make(map[string]string, len(items))
	for _, item := range items {
		if item.Content == "" {
			continue
		}
		batch[item.ItemID] = item.Content
	}
	if err := w.mgr.EnqueueBatch(ctx, job.ServerID, job.IndexID, batch, job.Priority); err != nil {
		return err
	}
	if len(items) == batchSize {
		return w.mgr.EnqueueIndexRegeneration(ctx, job.ServerID, job.IndexID, batchSize, job.Payload.Offset+batchSize, job.Priority)
	}
	return nil
}

// Backfill enqueues embedding jobs for indexed rows still missing a vector.
func (w *Worker) Backfill(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = 200
	}
	items, err := w.items.ListMissingEmbeddings(ctx, limit)
	if err != nil {
		return degrade.Classify(err)
	}
	for _, item := range items {
		if item.Content == "" {
			continue
		}
		if !w.mgr.EnabledForServer(item.ServerID) {
			continue
		}
		priority := w.mgr.PriorityValue("low")
		if err := w.mgr.EnqueueSingle(ctx, item.ServerID, item.IndexID, item.ItemID, item.Content, priority); err != nil {
			logutil.GetLogger(ctx).Warn("backfill enqueue failed",
				zap.String("item_id", item.ItemID),
				zap.Error(err),
			)
		}
	}
	return nil
}

package job

import (
	"context"

	"github.com/searchforge/searchforge/internal/search"
)

// EmbeddingBackfillJob enqueues generation for indexed rows still missing a
// vector, e.g. after inline generation degraded during indexing.
type EmbeddingBackfillJob struct {
	worker *search.Worker
	limit  int
}

func NewEmbeddingBackfillJob(worker *search.Worker, limit int) *EmbeddingBackfillJob {
	return &EmbeddingBackfillJob{worker: worker, limit: limit}
}

func (j *EmbeddingBackfillJob) Name() string {
	return "embedding_backfill"
}

func (j *EmbeddingBackfillJob) Run(ctx context.Context) error {
	if j.worker == nil {
		return nil
	}
	return j.worker.Backfill(ctx, j.limit)
}

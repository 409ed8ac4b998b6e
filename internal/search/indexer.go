package search

import (
	"context"
	"errors"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/searchforge/searchforge/internal/degrade"
	"github.com/searchforge/searchforge/internal/model"
	"github.com/searchforge/searchforge/internal/pkg/timeutil"
	"github.com/searchforge/searchforge/internal/queue"
)

var errQueueDisabled = errors.New("embedding queue disabled")

const defaultMaxInputRunes = 20000

// ItemStore is the write-path contract the indexer and worker need.
type ItemStore interface {
	Upsert(ctx context.Context, item *model.Item, language string) error
	SetEmbedding(ctx context.Context, serverID, indexID, itemID string, vec []float32, mtime int64) error
	Delete(ctx context.Context, serverID, indexID, itemID string) error
	ListRange(ctx context.Context, serverID, indexID string, limit, offset int) ([]model.Item, error)
	ListMissingEmbeddings(ctx context.Context, limit int) ([]model.Item, error)
}

// Indexer drives the write path: build the searchable blob, resolve the
// embedding (cache hit, deferred queue job, or synchronous generation) and
// upsert the row. Embedding trouble never blocks indexing; the row lands
// without a vector and is backfilled later.
type Indexer struct {
	items         ItemStore
	embedder      *CachedEmbedder
	mgr           *queue.Manager
	maxInputRunes int
}

func NewIndexer(items ItemStore, embedder *CachedEmbedder, mgr *queue.Manager) *Indexer {
	return &Indexer{
		items:         items,
		embedder:      embedder,
		mgr:           mgr,
		maxInputRunes: defaultMaxInputRunes,
	}
}

// Index upserts one item. When the queue is enabled for the server the
// embedding is generated asynchronously; otherwise it is generated inline,
// degrading to a vector-less row on failure.
func (ix *Indexer) Index(ctx context.Context, serverID, indexID, itemID string, fields []model.Field, language, priorityTier string) error {
	blob := Truncate(BuildBlob(fields), ix.maxInputRunes)
	item := &model.Item{
		ServerID: serverID,
		IndexID:  indexID,
		ItemID:   itemID,
		Content:  blob,
		Mtime:    timeutil.NowUnix(),
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("server_id", serverID),
		zap.String("index_id", indexID),
		zap.String("item_id", itemID),
	)

	deferred := false
	if blob != "" && ix.embedder != nil {
		if vec, ok := ix.embedder.Lookup(ctx, blob); ok {
			item.Embedding = vec
		} else if ix.mgr != nil && ix.mgr.EnabledForServer(serverID) {
			deferred = true
		} else {
			vec, err := ix.embedder.Embed(ctx, blob, taskDocument)
			if err != nil {
				ev := degrade.Classify(err)
				if ev.ShouldLog {
					logger.Warn("inline embedding failed, indexing without vector",
						zap.String("kind", string(ev.Kind)),
						zap.Error(err),
					)
				}
			} else {
				item.Embedding = vec
			}
		}
	}

	if err := ix.items.Upsert(ctx, item, language); err != nil {
		return degrade.Classify(err)
	}
	if deferred {
		priority := ix.mgr.PriorityValue(priorityTier)
		if err := ix.mgr.EnqueueSingle(ctx, serverID, indexID, itemID, blob, priority); err != nil {
			// The row is indexed; the vector arrives with the next backfill.
			logger.Warn("deferred embedding enqueue failed", zap.Error(err))
		}
	}
	return nil
}

func (ix *Indexer) Delete(ctx context.Context, serverID, indexID, itemID string) error {
	if err := ix.items.Delete(ctx, serverID, indexID, itemID); err != nil {
		return degrade.Classify(err)
	}
	return nil
}

// Reindex kicks off a resumable re-embedding of a whole index.
func (ix *Indexer) Reindex(ctx context.Context, serverID, indexID string, batchSize int, priorityTier string) error {
	if ix.mgr == nil {
		return degrade.Classify(errQueueDisabled)
	}
	priority := ix.mgr.PriorityValue(priorityTier)
	return ix.mgr.EnqueueIndexRegeneration(ctx, serverID, indexID, batchSize, 0, priority)
}

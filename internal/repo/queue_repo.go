package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/searchforge/searchforge/internal/model"
	"github.com/searchforge/searchforge/internal/pkg/dbutil"
)

// QueueRepo is the durable job store behind the embedding queue. Claims are
// leases: a claimed row keeps its claimed_by/claimed_until columns set and is
// skipped by other claimants until the lease expires or the row is released.
type QueueRepo struct {
	db *sql.DB
}

func NewQueueRepo(db *sql.DB) *QueueRepo {
	return &QueueRepo{db: db}
}

func (r *QueueRepo) Enqueue(ctx context.Context, job *model.QueueJob) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"operation": job.Operation,
		"server_id": job.ServerID,
		"index_id":  job.IndexID,
		// pq sends []byte as bytea hex text, which jsonb_in rejects; a string
		// parameter casts to jsonb cleanly.
		"payload":       string(payload),
		"priority":      job.Priority,
		"enqueued_at":   job.EnqueuedAt,
		"claimed_by":    "",
		"claimed_until": 0,
	}
	sqlStr, args, err := builder.BuildInsert("embed_queue", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// Claim leases the most urgent unclaimed job (lowest priority value first,
// oldest id as tie-break). SKIP LOCKED keeps concurrent workers from ever
// touching the same row.
func (r *QueueRepo) Claim(ctx context.Context, workerID string, leaseUntil, now int64) (*model.QueueJob, bool, error) {
	const query = `
		UPDATE embed_queue
		SET claimed_by = $1, claimed_until = $2, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM embed_queue
			WHERE claimed_until < $3
			ORDER BY priority ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, operation, server_id, index_id, payload, priority, enqueued_at, attempts
	`
	row := r.db.QueryRowContext(ctx, query, workerID, leaseUntil, now)
	job := &model.QueueJob{ClaimedBy: workerID, ClaimedUntil: leaseUntil}
	var payload []byte
	err := row.Scan(&job.ID, &job.Operation, &job.ServerID, &job.IndexID, &payload, &job.Priority, &job.EnqueuedAt, &job.Attempts)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	if err := json.Unmarshal(payload, &job.Payload); err != nil {
		return nil, false, err
	}
	return job, true, nil
}

// Delete completes a claimed job.
func (r *QueueRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM embed_queue WHERE id = $1`, id)
	return err
}

// Release puts a claimed job back so another round can pick it up.
func (r *QueueRepo) Release(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE embed_queue SET claimed_by = '', claimed_until = 0 WHERE id = $1`, id)
	return err
}

// ReclaimExpired releases every job whose lease deadline passed, covering
// workers that crashed mid-processing.
func (r *QueueRepo) ReclaimExpired(ctx context.Context, now int64) (int64, error) {
	const query = `
		UPDATE embed_queue
		SET claimed_by = '', claimed_until = 0
		WHERE claimed_until > 0 AND claimed_until <= $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Clear drops all jobs, or all jobs of one server when serverID is set.
func (r *QueueRepo) Clear(ctx context.Context, serverID string) (int64, error) {
	if serverID == "" {
		res, err := r.db.ExecContext(ctx, `DELETE FROM embed_queue`)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM embed_queue WHERE server_id = $1`, serverID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *QueueRepo) Depth(ctx context.Context) (int64, error) {
	var depth int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embed_queue`).Scan(&depth); err != nil {
		return 0, err
	}
	return depth, nil
}

func (r *QueueRepo) CountByPriority(ctx context.Context) (map[int]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT priority, COUNT(*) FROM embed_queue GROUP BY priority`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[int]int64)
	for rows.Next() {
		var priority int
		var count int64
		if err := rows.Scan(&priority, &count); err != nil {
			return nil, err
		}
		result[priority] = count
	}
	return result, rows.Err()
}

func (r *QueueRepo) CountByOperation(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT operation, COUNT(*) FROM embed_queue GROUP BY operation`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[string]int64)
	for rows.Next() {
		var op string
		var count int64
		if err := rows.Scan(&op, &count); err != nil {
			return nil, err
		}
		result[op] = count
	}
	return result, rows.Err()
}

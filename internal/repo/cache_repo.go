package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/klauspost/compress/zstd"

	"github.com/searchforge/searchforge/internal/model"
	"github.com/searchforge/searchforge/internal/pkg/dbutil"
)

// CacheRepo is the durable embedding-cache backend. The payload column holds
// the json-encoded vector, optionally zstd-compressed.
type CacheRepo struct {
	db       *sql.DB
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

func NewCacheRepo(db *sql.DB, compress bool) (*CacheRepo, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &CacheRepo{db: db, compress: compress, enc: enc, dec: dec}, nil
}

// Get fetches an unexpired entry and refreshes its access metadata in the
// same statement, so concurrent readers never lose hit increments.
func (r *CacheRepo) Get(ctx context.Context, hash string, now int64) (*model.CacheEntry, bool, error) {
	const query = `
		UPDATE embedding_cache
		SET last_accessed = $2, hit_count = hit_count + 1
		WHERE hash = $1 AND (expires_at = 0 OR expires_at > $2)
		RETURNING payload, dims, compressed, created_at, expires_at, hit_count
	`
	row := r.db.QueryRowContext(ctx, query, hash, now)
	var payload []byte
	var dims int
	var compressed bool
	entry := &model.CacheEntry{Hash: hash, LastAccessed: now}
	if err := row.Scan(&payload, &dims, &compressed, &entry.CreatedAt, &entry.ExpiresAt, &entry.HitCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	vec, err := r.decodePayload(payload, compressed)
	if err != nil {
		return nil, false, err
	}
	if dims > 0 && len(vec) != dims {
		return nil, false, fmt.Errorf("cache entry %s has %d dims, expected %d", hash, len(vec), dims)
	}
	entry.Vector = vec
	return entry, true, nil
}

// Set upserts; a rewrite of an existing key refreshes the payload and expiry
// but increments the hit counter instead of resetting it.
func (r *CacheRepo) Set(ctx context.Context, entry *model.CacheEntry) error {
	payload, err := r.encodePayload(entry.Vector)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO embedding_cache (hash, payload, dims, compressed, created_at, last_accessed, expires_at, hit_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
		ON CONFLICT (hash) DO UPDATE SET
			payload = EXCLUDED.payload,
			dims = EXCLUDED.dims,
			compressed = EXCLUDED.compressed,
			last_accessed = EXCLUDED.last_accessed,
			expires_at = EXCLUDED.expires_at,
			hit_count = embedding_cache.hit_count + 1
	`
	_, err = r.db.ExecContext(ctx, query,
		entry.Hash,
		payload,
		len(entry.Vector),
		r.compress,
		entry.CreatedAt,
		entry.LastAccessed,
		entry.ExpiresAt,
	)
	return err
}

func (r *CacheRepo) Delete(ctx context.Context, hash string) error {
	where := map[string]interface{}{"hash": hash}
	sqlStr, args, err := builder.BuildDelete("embedding_cache", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *CacheRepo) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM embedding_cache`)
	return err
}

func (r *CacheRepo) PurgeExpired(ctx context.Context, now int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM embedding_cache WHERE expires_at > 0 AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// EvictOverCapacity removes the coldest entries (oldest access, fewest hits
// as tie-break) until the table is back at max.
func (r *CacheRepo) EvictOverCapacity(ctx context.Context, max int64) (int64, error) {
	count, err := r.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count <= max {
		return 0, nil
	}
	const query = `
		DELETE FROM embedding_cache
		WHERE hash IN (
			SELECT hash FROM embedding_cache
			ORDER BY last_accessed ASC, hit_count ASC
			LIMIT $1
		)
	`
	res, err := r.db.ExecContext(ctx, query, count-max)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *CacheRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embedding_cache`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CacheRepo) Stats(ctx context.Context) (*model.CacheStats, error) {
	const query = `SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM embedding_cache`
	stats := &model.CacheStats{}
	if err := r.db.QueryRowContext(ctx, query).Scan(&stats.Entries, &stats.TotalHit); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *CacheRepo) encodePayload(vec []float32) ([]byte, error) {
	raw, err := json.Marshal(vec)
	if err != nil {
		return nil, err
	}
	if !r.compress {
		return raw, nil
	}
	return r.enc.EncodeAll(raw, nil), nil
}

func (r *CacheRepo) decodePayload(payload []byte, compressed bool) ([]float32, error) {
	raw := payload
	if compressed {
		var err error
		raw, err = r.dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, err
		}
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, err
	}
	return vec, nil
}

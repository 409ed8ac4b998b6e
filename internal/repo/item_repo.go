package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/pgvector/pgvector-go"

	"github.com/searchforge/searchforge/internal/model"
	"github.com/searchforge/searchforge/internal/pkg/dbutil"
	apperrors "github.com/searchforge/searchforge/internal/pkg/errors"
)

const defaultTextConfig = "simple"

// ItemRepo stores indexed items: one row per (server, index, item) with the
// full-text vector derived from the searchable blob and a nullable embedding
// column served by the ANN index.
type ItemRepo struct {
	db *sql.DB
}

func NewItemRepo(db *sql.DB) *ItemRepo {
	return &ItemRepo{db: db}
}

type TextHit struct {
	ItemID string
	Rank   float64
}

type VectorHit struct {
	ItemID     string
	Similarity float64
}

// Upsert is delete-then-insert so re-indexing an item fully replaces the row
// instead of merging into it.
func (r *ItemRepo) Upsert(ctx context.Context, item *model.Item, language string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM search_items WHERE server_id = $1 AND index_id = $2 AND item_id = $3`,
		item.ServerID, item.IndexID, item.ItemID,
	); err != nil {
		return err
	}
	var embedding interface{}
	if len(item.Embedding) > 0 {
		vec := pgvector.NewVector(item.Embedding)
		embedding = &vec
	}
	const insert = `
		INSERT INTO search_items (server_id, index_id, item_id, content, tsv, embedding, mtime)
		VALUES ($1, $2, $3, $4, to_tsvector($5::regconfig, $4), $6, $7)
	`
	if _, err := tx.ExecContext(ctx, insert,
		item.ServerID, item.IndexID, item.ItemID, item.Content,
		textConfig(language), embedding, item.Mtime,
	); err != nil {
		if dbutil.IsConflict(err) {
			// Concurrent writer re-indexed the same item between our delete
			// and insert; its row wins.
			return fmt.Errorf("item %s: %w", item.ItemID, apperrors.ErrConflict)
		}
		return err
	}
	return tx.Commit()
}

// SetEmbedding attaches a generated embedding to an already indexed row.
func (r *ItemRepo) SetEmbedding(ctx context.Context, serverID, indexID, itemID string, vec []float32, mtime int64) error {
	value := pgvector.NewVector(vec)
	const query = `
		UPDATE search_items SET embedding = $4, mtime = $5
		WHERE server_id = $1 AND index_id = $2 AND item_id = $3
	`
	_, err := r.db.ExecContext(ctx, query, serverID, indexID, itemID, &value, mtime)
	return err
}

func (r *ItemRepo) Delete(ctx context.Context, serverID, indexID, itemID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM search_items WHERE server_id = $1 AND index_id = $2 AND item_id = $3`,
		serverID, indexID, itemID,
	)
	return err
}

// TextSearch returns full-text candidates ranked by ts_rank.
func (r *ItemRepo) TextSearch(ctx context.Context, serverID, indexID, language, query string, limit int) ([]TextHit, error) {
	cleaned := sanitizeQuery(query)
	if cleaned == "" {
		return []TextHit{}, nil
	}
	const stmt = `
		SELECT item_id, ts_rank(tsv, plainto_tsquery($3::regconfig, $4)) AS rank
		FROM search_items
		WHERE server_id = $1 AND index_id = $2
		  AND tsv @@ plainto_tsquery($3::regconfig, $4)
		ORDER BY rank DESC, item_id ASC
		LIMIT $5
	`
	rows, err := r.db.QueryContext(ctx, stmt, serverID, indexID, textConfig(language), cleaned, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	hits := make([]TextHit, 0)
	for rows.Next() {
		var hit TextHit
		if err := rows.Scan(&hit.ItemID, &hit.Rank); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// VectorSearch returns rows with a stored embedding whose cosine similarity
// (1 - distance) reaches minSimilarity, most similar first.
func (r *ItemRepo) VectorSearch(ctx context.Context, serverID, indexID string, vec []float32, minSimilarity float64, limit int) ([]VectorHit, error) {
	value := pgvector.NewVector(vec)
	const stmt = `
		SELECT item_id, 1 - (embedding <=> $3) AS similarity
		FROM search_items
		WHERE server_id = $1 AND index_id = $2
		  AND embedding IS NOT NULL
		  AND 1 - (embedding <=> $3) >= $4
		ORDER BY embedding <=> $3 ASC, item_id ASC
		LIMIT $5
	`
	rows, err := r.db.QueryContext(ctx, stmt, serverID, indexID, &value, minSimilarity, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	hits := make([]VectorHit, 0)
	for rows.Next() {
		var hit VectorHit
		if err := rows.Scan(&hit.ItemID, &hit.Similarity); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// ListRange pages through an index by item id, used by resumable
// regeneration jobs.
func (r *ItemRepo) ListRange(ctx context.Context, serverID, indexID string, limit, offset int) ([]model.Item, error) {
	const stmt = `
		SELECT item_id, content, mtime
		FROM search_items
		WHERE server_id = $1 AND index_id = $2
		ORDER BY item_id ASC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.QueryContext(ctx, stmt, serverID, indexID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Item
	for rows.Next() {
		item := model.Item{ServerID: serverID, IndexID: indexID}
		if err := rows.Scan(&item.ItemID, &item.Content, &item.Mtime); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListMissingEmbeddings finds indexed rows still waiting for a vector.
func (r *ItemRepo) ListMissingEmbeddings(ctx context.Context, limit int) ([]model.Item, error) {
	const stmt = `
		SELECT server_id, index_id, item_id, content, mtime
		FROM search_items
		WHERE embedding IS NULL
		ORDER BY mtime ASC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, stmt, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Item
	for rows.Next() {
		var item model.Item
		if err := rows.Scan(&item.ServerID, &item.IndexID, &item.ItemID, &item.Content, &item.Mtime); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *ItemRepo) Count(ctx context.Context, serverID, indexID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM search_items WHERE server_id = $1 AND index_id = $2`,
		serverID, indexID,
	).Scan(&count)
	return count, err
}

func textConfig(language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "english", "en":
		return "english"
	case "german", "de":
		return "german"
	case "french", "fr":
		return "french"
	case "spanish", "es":
		return "spanish"
	case "russian", "ru":
		return "russian"
	default:
		return defaultTextConfig
	}
}

func sanitizeQuery(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	var sb strings.Builder
	for _, r := range input {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

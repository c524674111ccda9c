package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/vectorbase/store/remote"
)

// Index is one pgvector-backed table.
type Index struct {
	db    *sql.DB
	table string // already quoted
}

var (
	_ remote.Index = (*Index)(nil)
	_ remote.Sizer       = (*Index)(nil)
	_ remote.Dimensioner = (*Index)(nil)
)

// Upsert writes all records in a single transaction.
func (x *Index) Upsert(ctx context.Context, records []remote.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+x.table+` (id, embedding, metadata)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare upsert")
	}
	defer stmt.Close()

	for _, r := range records {
		metadata, err := json.Marshal(r.Metadata)
		if err != nil {
			return errors.Wrapf(err, "failed to encode metadata of %s", r.ID)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, pgvector.NewVector(r.Values), metadata); err != nil {
			return errors.Wrapf(err, "failed to upsert %s", r.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit upsert")
	}
	return nil
}

// Query returns the topK rows nearest to vector by cosine distance. Scores
// are 1 - distance, i.e. cosine similarity.
func (x *Index) Query(ctx context.Context, vector []float32, topK int) ([]remote.ScoredRecord, error) {
	if topK <= 0 {
		return []remote.ScoredRecord{}, nil
	}

	query := `
		SELECT id, 1 - (embedding <=> $1) AS score, metadata
		FROM ` + x.table + `
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := x.db.QueryContext(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query vectors")
	}
	defer rows.Close()

	hits := []remote.ScoredRecord{}
	for rows.Next() {
		var (
			hit      remote.ScoredRecord
			score    sql.NullFloat64
			metadata []byte
		)
		if err := rows.Scan(&hit.ID, &score, &metadata); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector row")
		}
		// Zero vectors have an undefined cosine distance.
		hit.Score = -1
		if score.Valid && !math.IsNaN(score.Float64) {
			hit.Score = float32(score.Float64)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &hit.Metadata); err != nil {
				return nil, errors.Wrapf(err, "failed to decode metadata of %s", hit.ID)
			}
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}

// Len returns the number of rows in the table.
func (x *Index) Len(ctx context.Context) (int64, error) {
	var n int64
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+x.table).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count vectors")
	}
	return n, nil
}

// Dim returns the width of a stored vector, or 0 when the table is empty.
func (x *Index) Dim(ctx context.Context) (int, error) {
	var n int
	err := x.db.QueryRowContext(ctx, `SELECT vector_dims(embedding) FROM `+x.table+` LIMIT 1`).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read vector width")
	}
	return n, nil
}

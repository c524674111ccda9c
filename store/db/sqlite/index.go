package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/hrygo/vectorbase/store"
	"github.com/hrygo/vectorbase/store/remote"
)

// Index is one SQLite table of vectors.
type Index struct {
	db    *sql.DB
	table string
}

var (
	_ remote.Index = (*Index)(nil)
	_ remote.Sizer       = (*Index)(nil)
	_ remote.Dimensioner = (*Index)(nil)
)

func float32ArrayToBLOB(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf
}

// blobToFloat32Array is the inverse of float32ArrayToBLOB.
func blobToFloat32Array(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("invalid BLOB length: %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}
	return vec, nil
}

// Upsert writes all records in one transaction.
func (x *Index) Upsert(ctx context.Context, records []remote.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+x.table+` (id, embedding, metadata)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			embedding = excluded.embedding,
			metadata = excluded.metadata`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare upsert")
	}
	defer stmt.Close()

	for _, r := range records {
		metadata, err := json.Marshal(r.Metadata)
		if err != nil {
			return errors.Wrapf(err, "failed to encode metadata of %s", r.ID)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, float32ArrayToBLOB(r.Values), string(metadata)); err != nil {
			return errors.Wrapf(err, "failed to upsert %s", r.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit upsert")
	}
	return nil
}

// Query scores every row against vector and returns the topK best. Rows whose
// similarity is undefined score -1. Ties keep insertion order.
func (x *Index) Query(ctx context.Context, vector []float32, topK int) ([]remote.ScoredRecord, error) {
	if topK <= 0 {
		return []remote.ScoredRecord{}, nil
	}

	rows, err := x.db.QueryContext(ctx, `SELECT id, embedding, metadata FROM `+x.table+` ORDER BY seq`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query vectors")
	}
	defer rows.Close()

	hits := []remote.ScoredRecord{}
	for rows.Next() {
		var (
			hit      remote.ScoredRecord
			blob     []byte
			metadata string
		)
		if err := rows.Scan(&hit.ID, &blob, &metadata); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector row")
		}

		embedding, err := blobToFloat32Array(blob)
		if err != nil {
			slog.Warn("failed to convert embedding BLOB to array", "index", x.table, "id", hit.ID, "error", err)
			continue
		}
		if err := json.Unmarshal([]byte(metadata), &hit.Metadata); err != nil {
			return nil, errors.Wrapf(err, "failed to decode metadata of %s", hit.ID)
		}

		hit.Score = store.CosineSimilarity(embedding, vector)
		if math.IsNaN(float64(hit.Score)) {
			hit.Score = -1
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > topK {
		hits = hits[:topK]
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

// Dim returns the width of the oldest stored vector, or 0 when the table is
// empty.
func (x *Index) Dim(ctx context.Context) (int, error) {
	var n int64
	err := x.db.QueryRowContext(ctx, `SELECT length(embedding) FROM `+x.table+` ORDER BY seq LIMIT 1`).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read vector width")
	}
	if n%4 != 0 {
		return 0, fmt.Errorf("invalid BLOB length: %d is not a multiple of 4", n)
	}
	return int(n / 4), nil
}

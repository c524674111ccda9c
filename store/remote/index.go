// Package remote adapts a networked vector database to store.Store.
//
// The wrapped database works in upserts of (id, vector, metadata) records and
// answers similarity queries with scored records. The adapter mints integer
// ids itself, keeps the payload in the record metadata, and ranks by score:
// a result is admitted when its score is strictly greater than the cutoff.
// Results never carry the original vector, only the payload and the id.
package remote

import "context"

// MetadataKey is the metadata field that holds an entry's payload.
const MetadataKey = "data"

// Record is the unit of work written to a remote index.
type Record struct {
	ID       string
	Values   []float32
	Metadata map[string]string
}

// ScoredRecord is a query hit returned by a remote index. Higher scores are
// more similar.
type ScoredRecord struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// Index is a handle to one remote vector index.
type Index interface {
	// Upsert writes records, replacing any record with the same ID.
	Upsert(ctx context.Context, records []Record) error

	// Query returns up to topK records ordered by descending score, with
	// metadata included.
	Query(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error)
}

// Client resolves index handles by name.
type Client interface {
	GetIndex(ctx context.Context, name string) (Index, error)
}

// Sizer is implemented by indexes that can report how many records they hold.
type Sizer interface {
	Len(ctx context.Context) (int64, error)
}

// Dimensioner is implemented by indexes that can report the width of the
// vectors they already hold. Dim returns 0 for an empty index.
type Dimensioner interface {
	Dim(ctx context.Context) (int, error)
}

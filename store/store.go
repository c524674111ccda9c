// Package store defines the contract shared by every vector-similarity backend.
//
// A Store records (vector, payload) pairs and later returns the payloads whose
// vectors are closest to a query vector. Two families of backends exist:
//
//   - store/memory: exact, in-process linear scan ranked by cosine distance.
//   - store/remote: an adapter over a networked vector database ranked by
//     similarity score (see store/db/postgres and store/db/sqlite).
//
// The two families keep their native notion of closeness. A memory store
// admits results whose distance is at most the cutoff, a remote store admits
// results whose score is strictly greater than the cutoff. The cutoff therefore
// carries its RelevanceMode, and a backend rejects a cutoff of the wrong mode.
package store

import "context"

// Store is the interface implemented by every vector backend.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Add inserts one entry and returns the identifier assigned to it.
	Add(ctx context.Context, entry Entry) (int64, error)

	// AddBatch inserts entries in order. The resulting state and id
	// assignment equal calling Add once per entry, and nothing is applied
	// when an error is returned.
	AddBatch(ctx context.Context, entries []Entry) error

	// Find returns up to opts.MaxResults entries ranked best-first by
	// similarity to query and filtered by opts.Cutoff. The result is empty,
	// never nil, when nothing passes the cutoff.
	Find(ctx context.Context, query []float32, opts FindOptions) ([]Entry, error)

	// Mode reports how the backend interprets FindOptions.Cutoff.
	Mode() RelevanceMode
}

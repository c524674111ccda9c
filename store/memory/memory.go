// Package memory provides an exact, in-process implementation of store.Store.
//
// Every Find is a full linear scan over the stored entries ranked by cosine
// distance. There is no indexing structure and nothing survives a restart;
// the backend targets tests and small corpora.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/hrygo/vectorbase/store"
)

// Store is an append-only in-memory vector store.
//
// A single mutex guards the entry sequence for every operation, so id
// assignment and append are atomic together and readers never observe a
// partially appended entry.
type Store struct {
	mu      sync.Mutex
	entries []store.Entry
	dim     int
	logger  *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Mode reports that cutoffs are maximum cosine distances.
func (*Store) Mode() store.RelevanceMode {
	return store.RelevanceDistance
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Add appends entry and returns its id, which is the number of entries stored
// before it.
func (s *Store) Add(ctx context.Context, entry store.Entry) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := store.CheckDimension(s.dim, entry.Vector); err != nil {
		return 0, err
	}
	return s.appendLocked(entry), nil
}

// AddBatch appends entries in order. All entries are validated before the
// first one is stored, so a rejected batch leaves the store unchanged.
func (s *Store) AddBatch(ctx context.Context, entries []store.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dim
	for _, e := range entries {
		if err := store.CheckDimension(dim, e.Vector); err != nil {
			return err
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
	}

	for _, e := range entries {
		s.appendLocked(e)
	}
	s.logger.Debug("memory store batch appended", "count", len(entries), "total", len(s.entries))
	return nil
}

func (s *Store) appendLocked(entry store.Entry) int64 {
	id := int64(len(s.entries))
	if s.dim == 0 {
		s.dim = len(entry.Vector)
	}
	s.entries = append(s.entries, entry.WithID(id))
	return id
}

type candidate struct {
	distance float32
	index    int
}

// Find ranks every stored entry by cosine distance to query and returns the
// closest ones whose distance does not exceed opts.Cutoff.
//
// Ties keep insertion order. An empty store returns an empty result whatever
// the options are.
func (s *Store) Find(ctx context.Context, query []float32, opts store.FindOptions) ([]store.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return []store.Entry{}, nil
	}
	if err := opts.Validate(store.RelevanceDistance); err != nil {
		return nil, err
	}
	if err := store.CheckDimension(s.dim, query); err != nil {
		return nil, err
	}

	candidates := make([]candidate, len(s.entries))
	for i, e := range s.entries {
		candidates[i] = candidate{
			distance: store.CosineDistance(e.Vector, query),
			index:    i,
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	top := min(opts.MaxResults, len(candidates))
	results := make([]store.Entry, 0, top)
	for _, c := range candidates[:top] {
		// Candidates are sorted, so every later one fails too.
		if !opts.Cutoff.Admits(c.distance) {
			break
		}
		results = append(results, s.entries[c.index].Clone())
	}
	return results, nil
}

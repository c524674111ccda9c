package remote

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/hrygo/vectorbase/store"
)

// BatchError reports a failed AddBatch. None of the ids in
// [FirstID, FirstID+Count) were committed; the next write reuses them and,
// since writes are upserts, overwrites anything the transport may have
// applied before failing.
type BatchError struct {
	FirstID int64
	Count   int
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch upsert of ids [%d, %d) failed: %v", e.FirstID, e.FirstID+int64(e.Count), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// ErrBinaryPayload is returned for payloads that are not valid UTF-8 when the
// store was created without WithBinaryPayloads.
var ErrBinaryPayload = errors.New("payload is not valid UTF-8; use WithBinaryPayloads")

// Store implements store.Store on top of a remote Index.
//
// The index handle is resolved on first use, at most once per Store even when
// several goroutines hit the first call together. A failed resolution is not
// cached. Writes are serialised: an id is committed, and the counter advanced,
// only after the remote confirms the upsert.
type Store struct {
	client    Client
	indexName string
	logger    *slog.Logger

	batchRetries   int
	binaryPayloads bool
	resumeIDs      bool

	resolve singleflight.Group

	mu     sync.Mutex // guards index, nextID, dim
	index  Index
	nextID int64
	dim    int

	writeMu sync.Mutex // held across id minting and the upsert round trip
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithBatchRetries re-issues a failed batch upsert as a whole up to n more
// times before AddBatch reports failure.
func WithBatchRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchRetries = n
		}
	}
}

// WithBinaryPayloads stores payloads base64-encoded so arbitrary bytes survive
// metadata stores that only accept text.
func WithBinaryPayloads() Option {
	return func(s *Store) { s.binaryPayloads = true }
}

// WithResumeIDs seeds the id counter from the index's record count when the
// index implements Sizer, so a store reopened over a persistent index keeps
// appending instead of overwriting ids from 0. It assumes the index holds
// only records written through this adapter.
func WithResumeIDs() Option {
	return func(s *Store) { s.resumeIDs = true }
}

// New creates a Store over the index named indexName. No remote call is made
// until the first operation.
func New(client Client, indexName string, opts ...Option) *Store {
	s := &Store{
		client:    client,
		indexName: indexName,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Mode reports that cutoffs are minimum similarity scores.
func (*Store) Mode() store.RelevanceMode {
	return store.RelevanceScore
}

// Resolved reports whether the index handle has been resolved.
func (s *Store) Resolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index != nil
}

func (s *Store) ensureIndex(ctx context.Context) (Index, error) {
	s.mu.Lock()
	idx := s.index
	s.mu.Unlock()
	if idx != nil {
		return idx, nil
	}

	// The flight outlives the caller that started it: callers that joined
	// must not see another caller's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.resolve.DoChan(s.indexName, func() (any, error) {
		return s.resolveIndex(flightCtx)
	})
	select {
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "failed to resolve index %s", s.indexName)
	case res := <-ch:
		if res.Err != nil {
			return nil, errors.Wrapf(res.Err, "failed to resolve index %s", s.indexName)
		}
		return res.Val.(Index), nil
	}
}

func (s *Store) resolveIndex(ctx context.Context) (Index, error) {
	// A flight that finished between the check in ensureIndex and DoChan has
	// already stored the handle.
	s.mu.Lock()
	if s.index != nil {
		idx := s.index
		s.mu.Unlock()
		return idx, nil
	}
	s.mu.Unlock()

	idx, err := s.client.GetIndex(ctx, s.indexName)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, errors.Errorf("client returned no handle for index %q", s.indexName)
	}

	var next int64
	if sizer, ok := idx.(Sizer); ok && s.resumeIDs {
		n, err := sizer.Len(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to count records")
		}
		next = n
	}
	var dim int
	if d, ok := idx.(Dimensioner); ok {
		dim, err = d.Dim(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read index dimension")
		}
	}

	s.mu.Lock()
	s.index = idx
	s.nextID = next
	s.dim = dim
	s.mu.Unlock()
	s.logger.Debug("remote index resolved", "index", s.indexName, "next_id", next, "dim", dim)
	return idx, nil
}

// Add upserts one record and returns the id it was written under.
func (s *Store) Add(ctx context.Context, entry store.Entry) (int64, error) {
	idx, err := s.ensureIndex(ctx)
	if err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	id, dim := s.nextID, s.dim
	s.mu.Unlock()

	if err := store.CheckDimension(dim, entry.Vector); err != nil {
		return 0, err
	}

	record, err := s.toRecord(entry, id)
	if err != nil {
		return 0, err
	}
	if err := idx.Upsert(ctx, []Record{record}); err != nil {
		return 0, errors.Wrapf(err, "failed to upsert id %d", id)
	}
	s.commit(id+1, len(entry.Vector))
	return id, nil
}

// AddBatch mints consecutive ids in input order and writes all records with a
// single upsert. On failure no id is committed and a *BatchError is returned.
func (s *Store) AddBatch(ctx context.Context, entries []store.Entry) error {
	idx, err := s.ensureIndex(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	first, dim := s.nextID, s.dim
	s.mu.Unlock()

	records := make([]Record, len(entries))
	for i, e := range entries {
		if err := store.CheckDimension(dim, e.Vector); err != nil {
			return err
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if records[i], err = s.toRecord(e, first+int64(i)); err != nil {
			return err
		}
	}

	for attempt := 0; ; attempt++ {
		err = idx.Upsert(ctx, records)
		if err == nil {
			break
		}
		if attempt >= s.batchRetries || ctx.Err() != nil {
			return &BatchError{FirstID: first, Count: len(entries), Err: err}
		}
		s.logger.Warn("remote batch upsert failed, retrying",
			"index", s.indexName, "first_id", first, "count", len(entries), "attempt", attempt+1, "error", err)
	}

	s.commit(first+int64(len(entries)), dim)
	return nil
}

func (s *Store) commit(next int64, dim int) {
	s.mu.Lock()
	s.nextID = next
	if s.dim == 0 {
		s.dim = dim
	}
	s.mu.Unlock()
}

// Find queries the remote index for opts.MaxResults neighbours and keeps
// those whose score is strictly greater than the cutoff. Returned entries
// have no vector.
func (s *Store) Find(ctx context.Context, query []float32, opts store.FindOptions) ([]store.Entry, error) {
	if err := opts.Validate(store.RelevanceScore); err != nil {
		return nil, err
	}
	idx, err := s.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	dim := s.dim
	s.mu.Unlock()
	if err := store.CheckDimension(dim, query); err != nil {
		return nil, err
	}

	hits, err := idx.Query(ctx, query, opts.MaxResults)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query index %s", s.indexName)
	}
	hits = slices.DeleteFunc(hits, func(h ScoredRecord) bool {
		return math.IsNaN(float64(h.Score))
	})
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	results := make([]store.Entry, 0, min(len(hits), opts.MaxResults))
	for _, hit := range hits {
		if len(results) == opts.MaxResults {
			break
		}
		if !opts.Cutoff.Admits(hit.Score) {
			continue
		}
		e, err := s.fromRecord(hit)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, nil
}

func (s *Store) toRecord(e store.Entry, id int64) (Record, error) {
	payload := string(e.Data)
	if s.binaryPayloads {
		payload = base64.StdEncoding.EncodeToString(e.Data)
	} else if !utf8.Valid(e.Data) {
		return Record{}, ErrBinaryPayload
	}
	values := make([]float32, len(e.Vector))
	copy(values, e.Vector)
	return Record{
		ID:       strconv.FormatInt(id, 10),
		Values:   values,
		Metadata: map[string]string{MetadataKey: payload},
	}, nil
}

func (s *Store) fromRecord(r ScoredRecord) (store.Entry, error) {
	id, err := strconv.ParseInt(r.ID, 10, 64)
	if err != nil {
		return store.Entry{}, errors.Wrapf(store.ErrMalformedRecord, "id %q is not an integer", r.ID)
	}
	payload, ok := r.Metadata[MetadataKey]
	if !ok {
		return store.Entry{}, errors.Wrapf(store.ErrMalformedRecord, "record %s has no %q metadata", r.ID, MetadataKey)
	}

	var data []byte
	if s.binaryPayloads {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return store.Entry{}, errors.Wrapf(store.ErrMalformedRecord, "record %s payload is not base64", r.ID)
		}
	} else {
		data = []byte(payload)
	}
	return store.Entry{Data: data, ID: &id}, nil
}

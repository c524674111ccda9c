// Package retrieval turns text into stored entries and text queries into
// ranked payloads, using an embedding service and any store.Store backend.
package retrieval

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/vectorbase/ai"
	"github.com/hrygo/vectorbase/store"
	"github.com/hrygo/vectorbase/store/memory"
)

// Default query parameters. A distance of 0.29 and a score of 0.71 describe
// the same similarity threshold for the two cutoff modes.
const (
	DefaultMaxResults  = 3
	DefaultMaxDistance = 0.29
	DefaultMinScore    = 0.71
)

// DefaultFindOptions returns the defaults for a backend using mode.
func DefaultFindOptions(mode store.RelevanceMode) store.FindOptions {
	opts := store.FindOptions{MaxResults: DefaultMaxResults, Cutoff: store.MaxDistance(DefaultMaxDistance)}
	if mode == store.RelevanceScore {
		opts.Cutoff = store.MinScore(DefaultMinScore)
	}
	return opts
}

// Vectorbase pairs an embedding service with a store.
type Vectorbase struct {
	embedder ai.EmbeddingService
	store    store.Store
	logger   *slog.Logger
}

// Option configures a Vectorbase.
type Option func(*Vectorbase)

// WithStore replaces the default in-memory store.
func WithStore(st store.Store) Option {
	return func(v *Vectorbase) { v.store = st }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Vectorbase) { v.logger = logger }
}

// New creates a Vectorbase backed by a fresh in-memory store unless WithStore
// is given.
func New(embedder ai.EmbeddingService, opts ...Option) *Vectorbase {
	v := &Vectorbase{embedder: embedder, logger: slog.Default()}
	for _, o := range opts {
		o(v)
	}
	if v.store == nil {
		v.store = memory.New(memory.WithLogger(v.logger))
	}
	return v
}

// Store returns the underlying store.
func (v *Vectorbase) Store() store.Store {
	return v.store
}

// Add embeds text and stores it, returning the assigned id.
func (v *Vectorbase) Add(ctx context.Context, text string) (int64, error) {
	vec, err := v.embedder.Embed(ctx, text)
	if err != nil {
		return 0, errors.Wrap(err, "failed to embed text")
	}
	return v.store.Add(ctx, store.NewEntry(vec, []byte(text)))
}

// AddBatch embeds all texts in one request and stores them as one batch.
func (v *Vectorbase) AddBatch(ctx context.Context, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	vectors, err := v.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return errors.Wrap(err, "failed to embed texts")
	}
	if len(vectors) != len(texts) {
		return errors.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	entries := make([]store.Entry, len(texts))
	for i, text := range texts {
		entries[i] = store.NewEntry(vectors[i], []byte(text))
	}
	if err := v.store.AddBatch(ctx, entries); err != nil {
		return err
	}
	v.logger.Debug("stored batch", "count", len(entries))
	return nil
}

// Find returns the entries most similar to text using DefaultFindOptions.
func (v *Vectorbase) Find(ctx context.Context, text string) ([]store.Entry, error) {
	return v.FindWithOptions(ctx, text, DefaultFindOptions(v.store.Mode()))
}

// FindWithOptions returns the entries most similar to text.
func (v *Vectorbase) FindWithOptions(ctx context.Context, text string, opts store.FindOptions) ([]store.Entry, error) {
	vec, err := v.embedder.Embed(ctx, text)
	if err != nil {
		return nil, errors.Wrap(err, "failed to embed query")
	}
	return v.store.Find(ctx, vec, opts)
}

// FindTexts is Find with the payloads decoded as strings.
func (v *Vectorbase) FindTexts(ctx context.Context, text string) ([]string, error) {
	entries, err := v.Find(ctx, text)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text()
	}
	return texts, nil
}

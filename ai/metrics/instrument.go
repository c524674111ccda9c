package metrics

import (
	"context"
	"time"

	"github.com/hrygo/vectorbase/ai"
	"github.com/hrygo/vectorbase/store"
)

type instrumentedStore struct {
	store.Store
	exporter *PrometheusExporter
	backend  string
}

// InstrumentStore wraps st so that every call is counted and timed under the
// given backend label.
func InstrumentStore(st store.Store, exporter *PrometheusExporter, backend string) store.Store {
	return &instrumentedStore{Store: st, exporter: exporter, backend: backend}
}

func (s *instrumentedStore) Add(ctx context.Context, entry store.Entry) (int64, error) {
	start := time.Now()
	id, err := s.Store.Add(ctx, entry)
	s.exporter.RecordStoreOperation(s.backend, "add", time.Since(start), err == nil)
	return id, err
}

func (s *instrumentedStore) AddBatch(ctx context.Context, entries []store.Entry) error {
	start := time.Now()
	err := s.Store.AddBatch(ctx, entries)
	s.exporter.RecordStoreOperation(s.backend, "add_batch", time.Since(start), err == nil)
	return err
}

func (s *instrumentedStore) Find(ctx context.Context, query []float32, opts store.FindOptions) ([]store.Entry, error) {
	start := time.Now()
	results, err := s.Store.Find(ctx, query, opts)
	s.exporter.RecordStoreOperation(s.backend, "find", time.Since(start), err == nil)
	if err == nil {
		s.exporter.RecordFindResults(s.backend, len(results))
	}
	return results, err
}

type instrumentedEmbedder struct {
	ai.EmbeddingService
	exporter *PrometheusExporter
	model    string
}

// InstrumentEmbedder wraps svc so that every request to it is counted and
// timed under the given model label.
func InstrumentEmbedder(svc ai.EmbeddingService, exporter *PrometheusExporter, model string) ai.EmbeddingService {
	return &instrumentedEmbedder{EmbeddingService: svc, exporter: exporter, model: model}
}

func (e *instrumentedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	v, err := e.EmbeddingService.Embed(ctx, text)
	e.exporter.RecordEmbeddingRequest(e.model, 1, time.Since(start), err == nil)
	return v, err
}

func (e *instrumentedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	v, err := e.EmbeddingService.EmbedBatch(ctx, texts)
	e.exporter.RecordEmbeddingRequest(e.model, len(texts), time.Since(start), err == nil)
	return v, err
}

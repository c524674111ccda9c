package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/vectorbase/store"
	"github.com/hrygo/vectorbase/store/memory"
)

func TestPrometheusExporter_Handler(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())

	exporter.RecordStoreOperation("memory", "add", time.Millisecond, true)
	exporter.RecordFindResults("memory", 2)
	exporter.RecordEmbeddingRequest("bge-m3", 3, 100*time.Millisecond, true)
	exporter.RecordCacheHit("embedding")
	exporter.RecordCacheMiss("embedding")

	req := httptest.NewRequest("GET", "/metrics", http.NoBody)
	w := httptest.NewRecorder()
	exporter.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, name := range []string{
		"vectorbase_store_operations_total",
		"vectorbase_store_operation_latency_seconds",
		"vectorbase_store_find_results",
		"vectorbase_embedding_requests_total",
		"vectorbase_embedding_latency_seconds",
		"vectorbase_embedding_texts_total",
		"vectorbase_cache_hits_total",
		"vectorbase_cache_misses_total",
	} {
		assert.Contains(t, body, name)
	}
}

func TestPrometheusExporter_CustomRegistry(t *testing.T) {
	exporter := NewPrometheusExporter(Config{})
	exporter.RecordCacheHit("embedding")

	families, err := exporter.GetRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestInstrumentStore(t *testing.T) {
	ctx := context.Background()
	exporter := NewPrometheusExporter(DefaultConfig())
	st := InstrumentStore(memory.New(), exporter, "memory")

	assert.Equal(t, store.RelevanceDistance, st.Mode())

	_, err := st.Add(ctx, store.NewEntry([]float32{1, 0}, []byte("a")))
	require.NoError(t, err)
	_, err = st.Add(ctx, store.NewEntry([]float32{1}, []byte("bad")))
	require.Error(t, err)
	require.NoError(t, st.AddBatch(ctx, []store.Entry{store.NewEntry([]float32{0, 1}, []byte("b"))}))

	results, err := st.Find(ctx, []float32{1, 0}, store.FindOptions{MaxResults: 3, Cutoff: store.MaxDistance(0.29)})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.storeOps.WithLabelValues("memory", "add", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.storeOps.WithLabelValues("memory", "add", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.storeOps.WithLabelValues("memory", "add_batch", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.storeOps.WithLabelValues("memory", "find", "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(exporter.storeFindResults))
}

type stubEmbedder struct {
	err error
}

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1}, s.err
}

func (s stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), s.err
}

func (stubEmbedder) Dimensions() int { return 1 }

func TestInstrumentEmbedder(t *testing.T) {
	ctx := context.Background()
	exporter := NewPrometheusExporter(DefaultConfig())

	ok := InstrumentEmbedder(stubEmbedder{}, exporter, "m")
	_, _ = ok.Embed(ctx, "a")
	_, _ = ok.EmbedBatch(ctx, []string{"a", "b", "c"})

	failing := InstrumentEmbedder(stubEmbedder{err: errors.New("down")}, exporter, "m")
	_, _ = failing.Embed(ctx, "a")

	assert.Equal(t, 2.0, testutil.ToFloat64(exporter.embeddingRequests.WithLabelValues("m", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.embeddingRequests.WithLabelValues("m", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(exporter.embeddingTexts.WithLabelValues("m")))
	assert.Equal(t, 1, failing.Dimensions())
}

func BenchmarkPrometheusExporter(b *testing.B) {
	exporter := NewPrometheusExporter(DefaultConfig())

	b.Run("RecordStoreOperation", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			exporter.RecordStoreOperation("memory", "find", time.Millisecond, true)
		}
	})

	b.Run("RecordCache", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			exporter.RecordCacheHit("embedding")
		}
	})
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/vectorbase/store"
)

func entry(data string, vector ...float32) store.Entry {
	return store.NewEntry(vector, []byte(data))
}

func texts(entries []store.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text()
	}
	return out
}

func TestStore_AddAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	s := New()

	for want, data := range []string{"e0", "e1", "e2"} {
		id, err := s.Add(ctx, entry(data, 1, float32(want), 0))
		require.NoError(t, err)
		assert.Equal(t, int64(want), id)
	}
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 3, s.dim)
}

func TestStore_FindScenario(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, e := range []store.Entry{
		entry("a", 1, 0, 0),
		entry("b", 0, 1, 0),
		entry("c", 1, 0, 0),
	} {
		_, err := s.Add(ctx, e)
		require.NoError(t, err)
	}

	results, err := s.Find(ctx, []float32{1, 0, 0}, store.FindOptions{
		MaxResults: 3,
		Cutoff:     store.MaxDistance(0.5),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, texts(results))
	require.True(t, results[0].HasID())
	assert.Equal(t, int64(0), *results[0].ID)
	assert.Equal(t, int64(2), *results[1].ID)
	assert.Equal(t, []float32{1, 0, 0}, results[0].Vector)
}

func TestStore_FindEmptyStore(t *testing.T) {
	s := New()

	for _, opts := range []store.FindOptions{
		{MaxResults: 5, Cutoff: store.MaxDistance(2)},
		{MaxResults: 0, Cutoff: store.MaxDistance(0)},
		{MaxResults: 1, Cutoff: store.MinScore(0.5)},
	} {
		results, err := s.Find(context.Background(), []float32{1, 0}, opts)
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	}
}

func TestStore_FindRespectsMaxResultsAndOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	vectors := [][]float32{
		{1, 0}, {0.9, 0.1}, {0.5, 0.5}, {0.1, 0.9}, {0, 1}, {-1, 0},
	}
	for i, v := range vectors {
		_, err := s.Add(ctx, entry(fmt.Sprintf("v%d", i), v...))
		require.NoError(t, err)
	}

	query := []float32{1, 0}
	for _, maxResults := range []int{1, 2, 4, 6, 10} {
		results, err := s.Find(ctx, query, store.FindOptions{MaxResults: maxResults, Cutoff: store.MaxDistance(2)})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(results), maxResults)
		assert.LessOrEqual(t, len(results), len(vectors))

		prev := float32(-1)
		for _, r := range results {
			d := store.CosineDistance(r.Vector, query)
			assert.GreaterOrEqual(t, d, prev, "results must be sorted by non-decreasing distance")
			prev = d
		}
	}
}

func TestStore_FindCutoff(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.AddBatch(ctx, []store.Entry{
		entry("same", 1, 0),
		entry("close", 1, 0.2),
		entry("orthogonal", 0, 1),
		entry("opposite", -1, 0),
	}))

	cutoff := store.MaxDistance(0.05)
	results, err := s.Find(ctx, []float32{1, 0}, store.FindOptions{MaxResults: 4, Cutoff: cutoff})
	require.NoError(t, err)
	assert.Equal(t, []string{"same", "close"}, texts(results))
	for _, r := range results {
		assert.True(t, cutoff.Admits(store.CosineDistance(r.Vector, []float32{1, 0})))
	}

	results, err = s.Find(ctx, []float32{1, 0}, store.FindOptions{MaxResults: 4, Cutoff: store.MaxDistance(-0.1)})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_AddBatchMatchesSequentialAdd(t *testing.T) {
	ctx := context.Background()
	entries := []store.Entry{
		entry("e0", 1, 0, 0),
		entry("e1", 0, 1, 0),
		entry("e2", 0.7, 0.7, 0),
	}

	sequential := New()
	for i, e := range entries {
		id, err := sequential.Add(ctx, e)
		require.NoError(t, err)
		assert.Equal(t, int64(i), id)
	}

	batched := New()
	require.NoError(t, batched.AddBatch(ctx, entries))

	opts := store.FindOptions{MaxResults: 3, Cutoff: store.MaxDistance(2)}
	for _, q := range [][]float32{{1, 0, 0}, {0, 1, 0}, {0.5, 0.5, 0.1}} {
		want, err := sequential.Find(ctx, q, opts)
		require.NoError(t, err)
		got, err := batched.Find(ctx, q, opts)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Add(ctx, entry("a", 1, 0, 0))
	require.NoError(t, err)

	t.Run("add", func(t *testing.T) {
		_, err := s.Add(ctx, entry("b", 1, 0))
		var dm *store.ErrDimensionMismatch
		require.True(t, errors.As(err, &dm))
		assert.Equal(t, 3, dm.Expected)
		assert.Equal(t, 2, dm.Actual)
	})

	t.Run("batch is atomic", func(t *testing.T) {
		err := s.AddBatch(ctx, []store.Entry{entry("ok", 0, 1, 0), entry("bad", 0, 1)})
		var dm *store.ErrDimensionMismatch
		require.True(t, errors.As(err, &dm))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("find", func(t *testing.T) {
		_, err := s.Find(ctx, []float32{1, 0, 0, 0}, store.FindOptions{MaxResults: 1, Cutoff: store.MaxDistance(1)})
		var dm *store.ErrDimensionMismatch
		require.True(t, errors.As(err, &dm))
	})

	t.Run("empty vector", func(t *testing.T) {
		_, err := s.Add(ctx, entry("empty"))
		assert.ErrorIs(t, err, store.ErrEmptyVector)
	})
}

func TestStore_FirstBatchEstablishesDimension(t *testing.T) {
	s := New()
	err := s.AddBatch(context.Background(), []store.Entry{entry("a", 1, 0), entry("b", 1, 0, 0)})
	var dm *store.ErrDimensionMismatch
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.dim)
}

func TestStore_RejectsScoreCutoff(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Add(ctx, entry("a", 1, 0))
	require.NoError(t, err)

	_, err = s.Find(ctx, []float32{1, 0}, store.FindOptions{MaxResults: 1, Cutoff: store.MinScore(0.7)})
	assert.ErrorIs(t, err, store.ErrRelevanceMode)
	assert.Equal(t, store.RelevanceDistance, s.Mode())
}

func TestStore_ZeroVectorRanksLast(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.AddBatch(ctx, []store.Entry{
		entry("zero", 0, 0),
		entry("opposite", -1, 0),
		entry("same", 1, 0),
	}))

	results, err := s.Find(ctx, []float32{1, 0}, store.FindOptions{MaxResults: 3, Cutoff: store.MaxDistance(2)})
	require.NoError(t, err)
	// opposite (2.0) and zero (2.0) tie; insertion order breaks it.
	assert.Equal(t, []string{"same", "zero", "opposite"}, texts(results))
}

func TestStore_ResultsDoNotAliasState(t *testing.T) {
	ctx := context.Background()
	s := New()
	vec := []float32{1, 0}
	_, err := s.Add(ctx, store.NewEntry(vec, []byte("a")))
	require.NoError(t, err)
	vec[0] = -1

	results, err := s.Find(ctx, []float32{1, 0}, store.FindOptions{MaxResults: 1, Cutoff: store.MaxDistance(0.1)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	results[0].Vector[0] = 0
	results[0].Data[0] = 'z'

	again, err := s.Find(ctx, []float32{1, 0}, store.FindOptions{MaxResults: 1, Cutoff: store.MaxDistance(0.1)})
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "a", again[0].Text())
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New()

	_, err := s.Add(ctx, entry("a", 1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.AddBatch(ctx, []store.Entry{entry("a", 1)}), context.Canceled)
	_, err = s.Find(ctx, []float32{1}, store.FindOptions{MaxResults: 1, Cutoff: store.MaxDistance(1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_ConcurrentAdd(t *testing.T) {
	ctx := context.Background()
	s := New()
	const n = 200

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.Add(ctx, entry(fmt.Sprintf("e%d", i), float32(i+1), 1))
			assert.NoError(t, err)
			mu.Lock()
			ids = append(ids, id)
			mu.Unlock()

			// Interleave readers with writers.
			_, err = s.Find(ctx, []float32{1, 1}, store.FindOptions{MaxResults: 5, Cutoff: store.MaxDistance(2)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Len(t, ids, n)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		assert.Equal(t, int64(i), id)
	}
	assert.Equal(t, n, s.Len())
}

func BenchmarkStore_Find(b *testing.B) {
	ctx := context.Background()
	s := New()
	for i := 0; i < 1000; i++ {
		v := []float32{
			float32(i%7) / 7.0,
			float32(i%11) / 11.0,
			float32(i%13) / 13.0,
			float32(i%17) / 17.0,
		}
		_, _ = s.Add(ctx, store.NewEntry(v, []byte(fmt.Sprintf("v-%d", i))))
	}

	query := []float32{0.5, 0.5, 0.5, 0.5}
	opts := store.FindOptions{MaxResults: 10, Cutoff: store.MaxDistance(1)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Find(ctx, query, opts)
	}
}

package ai

import (
	"context"
	"slices"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/vectorbase/ai/cache"
)

// CacheObserver is notified of cache lookups.
type CacheObserver interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

const embeddingCacheType = "embedding"

type cachedEmbeddingService struct {
	EmbeddingService
	cache    *cache.LRUCache[string, []float32]
	observer CacheObserver
}

// CacheOption configures NewCachedEmbeddingService.
type CacheOption func(*cachedEmbeddingService)

// WithCacheObserver reports hits and misses to o.
func WithCacheObserver(o CacheObserver) CacheOption {
	return func(s *cachedEmbeddingService) { s.observer = o }
}

// NewCachedEmbeddingService memoises embeddings by text. Only texts missing
// from the cache are sent to svc.
func NewCachedEmbeddingService(svc EmbeddingService, capacity int, ttl time.Duration, opts ...CacheOption) EmbeddingService {
	s := &cachedEmbeddingService{
		EmbeddingService: svc,
		cache:            cache.NewLRUCache[string, []float32](capacity, ttl),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *cachedEmbeddingService) lookup(text string) ([]float32, bool) {
	v, ok := s.cache.Get(text)
	if s.observer != nil {
		if ok {
			s.observer.RecordCacheHit(embeddingCacheType)
		} else {
			s.observer.RecordCacheMiss(embeddingCacheType)
		}
	}
	return v, ok
}

func (s *cachedEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.lookup(text); ok {
		return slices.Clone(v), nil
	}
	v, err := s.EmbeddingService.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache.Set(text, slices.Clone(v), 0)
	return v, nil
}

func (s *cachedEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var (
		missing []string
		slots   = map[string][]int{}
	)
	for i, text := range texts {
		if v, ok := s.lookup(text); ok {
			vectors[i] = slices.Clone(v)
			continue
		}
		if _, seen := slots[text]; !seen {
			missing = append(missing, text)
		}
		slots[text] = append(slots[text], i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	fetched, err := s.EmbeddingService.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missing) {
		return nil, errors.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(missing), len(fetched))
	}
	// Expired entries would otherwise push live ones out of the LRU.
	s.cache.CleanupExpired()
	for j, text := range missing {
		s.cache.Set(text, slices.Clone(fetched[j]), 0)
		for _, i := range slots[text] {
			vectors[i] = slices.Clone(fetched[j])
		}
	}
	return vectors, nil
}

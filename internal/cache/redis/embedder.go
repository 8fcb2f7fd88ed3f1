package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/metrics"
	"github.com/morph-tutor/backend/pkg/logger"
	"github.com/morph-tutor/backend/pkg/utils"
)

type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// CachedEmbedder serves repeated texts from the cache. Cache failures are
// logged and the upstream embedder is used instead.
type CachedEmbedder struct {
	next  Embedder
	cache EmbeddingCache
	model string
	ttl   time.Duration
}

func NewCachedEmbedder(next Embedder, cache EmbeddingCache, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, model: model, ttl: ttl}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := utils.HashString(e.model, text)
	if emb, ok := e.lookup(ctx, key); ok {
		return emb, nil
	}

	emb, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.store(ctx, key, emb)
	return emb, nil
}

func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missing []int
	var missingTexts []string

	for i, text := range texts {
		keys[i] = utils.HashString(e.model, text)
		if emb, ok := e.lookup(ctx, keys[i]); ok {
			out[i] = emb
			continue
		}
		missing = append(missing, i)
		missingTexts = append(missingTexts, text)
	}

	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := e.next.EmbedBatch(ctx, missingTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(fresh), len(missing))
	}
	for j, i := range missing {
		out[i] = fresh[j]
		e.store(ctx, keys[i], fresh[j])
	}
	return out, nil
}

func (e *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	emb, ok, err := e.cache.GetEmbedding(ctx, key)
	if err != nil {
		logger.Warn("Embedding cache read failed", zap.Error(err))
		return nil, false
	}
	if ok {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return emb, true
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()
	return nil, false
}

func (e *CachedEmbedder) store(ctx context.Context, key string, emb []float32) {
	if err := e.cache.SetEmbedding(ctx, key, emb, e.ttl); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}
}

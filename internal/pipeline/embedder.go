package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/internal/metrics"
	"github.com/GianmarcoBramucci/my-first-chatbot/internal/router"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/utils"
)

type embeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float64, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float64, ttl time.Duration) error
}

// CachedEmbedder fronts the embedding service with the Redis cache so
// repeated questions skip an API round trip. Cache failures are logged and
// treated as misses.
type CachedEmbedder struct {
	inner router.Embedder
	cache embeddingCache
	ttl   time.Duration
}

func NewCachedEmbedder(inner router.Embedder, cache embeddingCache, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &CachedEmbedder{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func (e *CachedEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	textHash := utils.HashString(text)

	embedding, found, err := e.cache.GetEmbedding(ctx, textHash)
	if err != nil {
		logger.Warn("Embedding cache lookup failed", zap.Error(err))
	}
	if found {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return embedding, nil
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	embedding, err = e.inner.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.SetEmbedding(ctx, textHash, embedding, e.ttl); err != nil {
		logger.Warn("Embedding cache store failed", zap.Error(err))
	}

	return embedding, nil
}

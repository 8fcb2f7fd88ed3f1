package retrieval

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/morph-tutor/backend/internal/vector"
	"github.com/morph-tutor/backend/pkg/logger"
)

const (
	DefaultK      = 6
	DefaultFetchK = 12
	DefaultLambda = 0.5
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type IndexBuilder interface {
	EnsureBuilt(ctx context.Context) error
}

type Options struct {
	K      int
	FetchK int
	Lambda float64
}

type Retriever struct {
	index    IndexBuilder
	store    vector.Store
	embedder Embedder
	opts     Options
}

func NewRetriever(index IndexBuilder, store vector.Store, embedder Embedder, opts Options) *Retriever {
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	if opts.FetchK < opts.K {
		opts.FetchK = DefaultFetchK
		if opts.FetchK < opts.K {
			opts.FetchK = opts.K
		}
	}
	if opts.Lambda <= 0 || opts.Lambda > 1 {
		opts.Lambda = DefaultLambda
	}

	return &Retriever{
		index:    index,
		store:    store,
		embedder: embedder,
		opts:     opts,
	}
}

// Retrieve builds the index on first use, fetches FetchK nearest candidates
// and picks K of them with maximal marginal relevance.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]vector.Chunk, error) {
	if err := r.index.EnsureBuilt(ctx); err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := r.store.Search(ctx, queryVec, r.opts.FetchK)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	selected := MMR(queryVec, candidates, r.opts.K, r.opts.Lambda)

	chunks := make([]vector.Chunk, len(selected))
	for i, m := range selected {
		chunks[i] = m.Chunk
	}

	logger.Debug("Retrieved chunks",
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(chunks)),
	)
	return chunks, nil
}

// MMR greedily selects k candidates maximizing
// lambda*sim(query, c) - (1-lambda)*max sim(c, selected).
// Equal scores prefer the lower metadata order, then the earlier candidate.
func MMR(query []float32, candidates []vector.Match, k int, lambda float64) []vector.Match {
	if k > len(candidates) {
		k = len(candidates)
	}
	if k <= 0 {
		return nil
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = float64(vector.CosineSimilarity(query, c.Embedding))
	}

	redundancy := make([]float64, len(candidates))
	for i := range redundancy {
		redundancy[i] = math.Inf(-1)
	}

	used := make([]bool, len(candidates))
	selected := make([]vector.Match, 0, k)

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range candidates {
			if used[i] {
				continue
			}
			score := lambda * relevance[i]
			if len(selected) > 0 {
				score -= (1 - lambda) * redundancy[i]
			}
			if best == -1 || score > bestScore ||
				(score == bestScore && c.Metadata.Order < candidates[best].Metadata.Order) {
				best = i
				bestScore = score
			}
		}

		used[best] = true
		selected = append(selected, candidates[best])

		for i, c := range candidates {
			if used[i] {
				continue
			}
			sim := float64(vector.CosineSimilarity(c.Embedding, candidates[best].Embedding))
			if sim > redundancy[i] {
				redundancy[i] = sim
			}
		}
	}

	return selected
}

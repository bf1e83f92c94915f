package search

import (
	"context"
	"fmt"

	"github.com/bookrag/bookrag/internal/embed"
	"github.com/bookrag/bookrag/internal/store"
)

// VectorDenseScorer implements DenseScorer by embedding the query and
// running nearest-neighbor search against the vector store.
type VectorDenseScorer struct {
	embedder embed.Embedder
	vectors  store.VectorStore
}

// Verify interface implementation
var _ DenseScorer = (*VectorDenseScorer)(nil)

// NewVectorDenseScorer creates a dense scorer over an embedder and a
// vector store.
func NewVectorDenseScorer(embedder embed.Embedder, vectors store.VectorStore) (*VectorDenseScorer, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder", ErrNilDependency)
	}
	if vectors == nil {
		return nil, fmt.Errorf("%w: vector store", ErrNilDependency)
	}
	return &VectorDenseScorer{embedder: embedder, vectors: vectors}, nil
}

// DenseSearch returns candidates ordered by descending cosine
// similarity, ties broken by ascending chunk id. The vector store
// guarantees that ordering; ranks are assigned here.
func (s *VectorDenseScorer) DenseSearch(ctx context.Context, query string, poolSize int) ([]Candidate, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.vectors.Search(ctx, vec, poolSize)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	candidates := make([]Candidate, len(results))
	for i, r := range results {
		candidates[i] = Candidate{
			ChunkID: r.ID,
			Rank:    i + 1,
			// True cosine similarity in [-1,1]: cosine distance ranges 0-2.
			Score: float64(1.0 - r.Distance),
		}
	}
	return candidates, nil
}

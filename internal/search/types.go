// Package search implements the hybrid retrieval pipeline: lexical and
// dense candidate generation, reciprocal rank fusion, metadata
// filtering, and diversity re-ranking.
package search

import (
	"context"
	"fmt"

	"github.com/bookrag/bookrag/internal/corpus"
	"github.com/bookrag/bookrag/internal/errors"
)

// Candidate is a (chunk_id, rank, raw_score) tuple produced by one
// retrieval branch for one query. Ranks are 1-based.
type Candidate struct {
	ChunkID string
	Rank    int
	Score   float64
}

// FusedResult is a candidate after rank fusion across both branches.
type FusedResult struct {
	ChunkID string
	Score   float64
	InBoth  bool
	// LexRank and DenseRank are the 1-based branch ranks, 0 if absent.
	LexRank   int
	DenseRank int
}

// Result is a final retrieval result enriched with chunk metadata.
type Result struct {
	Chunk corpus.Chunk
	// Score is the fused score from rank fusion.
	Score float64
	// Rank is the 1-based position in the final list (selection order).
	Rank      int
	InBoth    bool
	LexRank   int
	DenseRank int
}

// DenseScorer is the contract for the dense retrieval branch: an
// ordered list of candidates by descending cosine similarity, ties
// broken by ascending chunk id. The core assumes nothing about the
// index structure behind it.
type DenseScorer interface {
	DenseSearch(ctx context.Context, query string, poolSize int) ([]Candidate, error)
}

// RetrievalConfig is the per-call configuration. It is constructed from
// merged defaults plus caller overrides and never shared across calls.
type RetrievalConfig struct {
	// K is the final result count.
	K int
	// CandidatePool is the size retained per branch before fusion.
	CandidatePool int
	// RRFK is the fusion smoothing constant.
	RRFK int
	// MMRLambda is the relevance/diversity trade-off in [0,1].
	MMRLambda float64
	// MaxPerChapter caps results per chapter; 0 means unlimited.
	MaxPerChapter int
	// ExcludeChapters drops candidates from these chapter numbers.
	ExcludeChapters []int
	// UseFilters enables the chapter exclusion stage.
	UseFilters bool
	// UsePerChapterCap enables the per-chapter cap stage.
	UsePerChapterCap bool
	// LexicalOnly skips the dense branch entirely (degraded mode).
	LexicalOnly bool
}

// DefaultRetrievalConfig returns the standard retrieval settings.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		K:                5,
		CandidatePool:    40,
		RRFK:             60,
		MMRLambda:        0.7,
		MaxPerChapter:    2,
		UseFilters:       true,
		UsePerChapterCap: true,
	}
}

// Validate fails fast on out-of-range settings.
func (c *RetrievalConfig) Validate() error {
	if c.K < 1 {
		return errors.New(errors.ErrCodeConfigRange,
			fmt.Sprintf("k must be at least 1, got %d", c.K), nil)
	}
	if c.CandidatePool < c.K {
		return errors.New(errors.ErrCodeConfigRange,
			fmt.Sprintf("candidate_pool (%d) must be at least k (%d)", c.CandidatePool, c.K), nil)
	}
	if c.RRFK < 0 {
		return errors.New(errors.ErrCodeConfigRange,
			fmt.Sprintf("rrf_k must be non-negative, got %d", c.RRFK), nil)
	}
	if c.MMRLambda < 0 || c.MMRLambda > 1 {
		return errors.New(errors.ErrCodeConfigRange,
			fmt.Sprintf("mmr_lambda must be in [0,1], got %g", c.MMRLambda), nil)
	}
	if c.MaxPerChapter < 0 {
		return errors.New(errors.ErrCodeConfigRange,
			fmt.Sprintf("max_per_chapter must be non-negative, got %d", c.MaxPerChapter), nil)
	}
	return nil
}

package search

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookrag/bookrag/internal/corpus"
	"github.com/bookrag/bookrag/internal/errors"
	"github.com/bookrag/bookrag/internal/store"
)

// stubDenseScorer returns a fixed candidate list, or an error.
type stubDenseScorer struct {
	candidates []Candidate
	err        error
}

func (s *stubDenseScorer) DenseSearch(ctx context.Context, query string, poolSize int) ([]Candidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.candidates) > poolSize {
		return s.candidates[:poolSize], nil
	}
	return s.candidates, nil
}

func testCorpus() []corpus.Chunk {
	return []corpus.Chunk{
		{
			ID: "ch01_p001", Text: "The debt snowball method pays the smallest balance first to build momentum.",
			Embedding: []float32{1, 0}, ChapterTitle: "Debt Strategies", ChapterNumber: 1, Position: 1, SourceID: "book-1", Category: "concept",
		},
		{
			ID: "ch01_p002", Text: "The debt avalanche method pays the highest interest rate first to minimize cost.",
			Embedding: []float32{0.9806, 0.1961}, ChapterTitle: "Debt Strategies", ChapterNumber: 1, Position: 2, SourceID: "book-1", Category: "concept",
		},
		{
			ID: "ch02_p001", Text: "An emergency fund covers three to six months of essential expenses.",
			Embedding: []float32{0, 1}, ChapterTitle: "Safety Nets", ChapterNumber: 2, Position: 1, SourceID: "book-1", Category: "definition",
		},
		{
			ID: "ch03_p001", Text: "Compound interest grows savings faster the earlier you start.",
			Embedding: []float32{0.7071, 0.7071}, ChapterTitle: "Investing", ChapterNumber: 3, Position: 1, SourceID: "book-1", Category: "concept",
		},
	}
}

func newTestRetriever(t *testing.T, dense DenseScorer) *Retriever {
	t.Helper()

	chunks := testCorpus()

	lexical := store.NewMemoryBM25Index(store.DefaultBM25Config())
	docs := make([]*store.Document, len(chunks))
	for i := range chunks {
		docs[i] = &store.Document{ID: chunks[i].ID, Content: chunks[i].Text}
	}
	require.NoError(t, lexical.Index(context.Background(), docs))

	chunkStore, err := store.NewSQLiteChunkStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = chunkStore.Close() })
	require.NoError(t, chunkStore.SaveChunks(context.Background(), chunks))

	r, err := NewRetriever(lexical, dense, chunkStore)
	require.NoError(t, err)
	return r
}

func defaultDense() *stubDenseScorer {
	return &stubDenseScorer{candidates: []Candidate{
		{ChunkID: "ch01_p001", Rank: 1, Score: 0.95},
		{ChunkID: "ch01_p002", Rank: 2, Score: 0.90},
		{ChunkID: "ch03_p001", Rank: 3, Score: 0.40},
		{ChunkID: "ch02_p001", Rank: 4, Score: 0.10},
	}}
}

func baseConfig() RetrievalConfig {
	cfg := DefaultRetrievalConfig()
	cfg.K = 3
	cfg.MaxPerChapter = 0
	return cfg
}

func TestRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns at most k distinct results with metadata", func(t *testing.T) {
		r := newTestRetriever(t, defaultDense())

		results, err := r.Retrieve(ctx, "debt snowball vs avalanche", baseConfig())
		require.NoError(t, err)

		assert.LessOrEqual(t, len(results), 3)
		seen := map[string]bool{}
		for i, res := range results {
			assert.False(t, seen[res.Chunk.ID], "duplicate id %s", res.Chunk.ID)
			seen[res.Chunk.ID] = true
			assert.Equal(t, i+1, res.Rank)
			assert.NotEmpty(t, res.Chunk.ChapterTitle)
		}
	})

	t.Run("deterministic across runs", func(t *testing.T) {
		r := newTestRetriever(t, defaultDense())

		first, err := r.Retrieve(ctx, "debt snowball vs avalanche", baseConfig())
		require.NoError(t, err)
		second, err := r.Retrieve(ctx, "debt snowball vs avalanche", baseConfig())
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("excluded chapter never appears", func(t *testing.T) {
		r := newTestRetriever(t, defaultDense())

		cfg := baseConfig()
		cfg.ExcludeChapters = []int{1}

		results, err := r.Retrieve(ctx, "debt snowball vs avalanche", cfg)
		require.NoError(t, err)
		for _, res := range results {
			assert.NotEqual(t, 1, res.Chunk.ChapterNumber)
		}
	})

	t.Run("per chapter cap of one", func(t *testing.T) {
		r := newTestRetriever(t, defaultDense())

		cfg := baseConfig()
		cfg.MaxPerChapter = 1

		results, err := r.Retrieve(ctx, "debt snowball vs avalanche", cfg)
		require.NoError(t, err)

		chapters := map[int]int{}
		for _, res := range results {
			chapters[res.Chunk.ChapterNumber]++
		}
		for ch, n := range chapters {
			assert.Equal(t, 1, n, "chapter %d", ch)
		}
	})

	t.Run("filters off pass candidates through", func(t *testing.T) {
		r := newTestRetriever(t, defaultDense())

		cfg := baseConfig()
		cfg.ExcludeChapters = []int{1}
		cfg.UseFilters = false

		results, err := r.Retrieve(ctx, "debt snowball vs avalanche", cfg)
		require.NoError(t, err)

		var sawChapterOne bool
		for _, res := range results {
			if res.Chunk.ChapterNumber == 1 {
				sawChapterOne = true
			}
		}
		assert.True(t, sawChapterOne)
	})

	t.Run("empty query is an explicit error", func(t *testing.T) {
		r := newTestRetriever(t, defaultDense())

		_, err := r.Retrieve(ctx, "   ", baseConfig())
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeQueryEmpty, errors.GetCode(err))
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		r := newTestRetriever(t, defaultDense())

		cfg := baseConfig()
		cfg.MMRLambda = 1.5
		_, err := r.Retrieve(ctx, "debt", cfg)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeConfigRange, errors.GetCode(err))
	})

	t.Run("unindexed corpus is index not built", func(t *testing.T) {
		lexical := store.NewMemoryBM25Index(store.DefaultBM25Config())
		chunkStore, err := store.NewSQLiteChunkStore("")
		require.NoError(t, err)
		defer chunkStore.Close()

		r, err := NewRetriever(lexical, defaultDense(), chunkStore)
		require.NoError(t, err)

		_, err = r.Retrieve(ctx, "debt", baseConfig())
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeIndexNotBuilt, errors.GetCode(err))
	})
}

func TestRetrieveDenseDegradation(t *testing.T) {
	ctx := context.Background()

	t.Run("dense failure surfaces as degraded mode error", func(t *testing.T) {
		r := newTestRetriever(t, &stubDenseScorer{err: stderrors.New("connection refused")})

		_, err := r.Retrieve(ctx, "debt snowball", baseConfig())
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeDenseUnavailable, errors.GetCode(err))
		assert.True(t, errors.IsRetryable(err))
	})

	t.Run("lexical only skips the dense branch", func(t *testing.T) {
		r := newTestRetriever(t, &stubDenseScorer{err: stderrors.New("connection refused")})

		cfg := baseConfig()
		cfg.LexicalOnly = true

		results, err := r.Retrieve(ctx, "debt snowball", cfg)
		require.NoError(t, err)
		assert.NotEmpty(t, results)
		for _, res := range results {
			assert.Equal(t, 0, res.DenseRank)
		}
	})

	t.Run("nil dense scorer requires lexical only", func(t *testing.T) {
		r := newTestRetriever(t, nil)

		_, err := r.Retrieve(ctx, "debt snowball", baseConfig())
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeDenseUnavailable, errors.GetCode(err))

		cfg := baseConfig()
		cfg.LexicalOnly = true
		results, err := r.Retrieve(ctx, "debt snowball", cfg)
		require.NoError(t, err)
		assert.NotEmpty(t, results)
	})
}

func TestRetrieveStopwordOnlyQuery(t *testing.T) {
	// A query that normalizes to no tokens yields an empty lexical
	// branch but still retrieves through the dense branch.
	r := newTestRetriever(t, defaultDense())

	results, err := r.Retrieve(context.Background(), "the of and", baseConfig())
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, res := range results {
		assert.Equal(t, 0, res.LexRank)
		assert.NotEqual(t, 0, res.DenseRank)
	}
}

func TestNewRetrieverNilDependencies(t *testing.T) {
	chunkStore, err := store.NewSQLiteChunkStore("")
	require.NoError(t, err)
	defer chunkStore.Close()

	_, err = NewRetriever(nil, nil, chunkStore)
	assert.ErrorIs(t, err, ErrNilDependency)

	lexical := store.NewMemoryBM25Index(store.DefaultBM25Config())
	_, err = NewRetriever(lexical, nil, nil)
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestRetrievalConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RetrievalConfig)
		ok     bool
	}{
		{"defaults valid", func(c *RetrievalConfig) {}, true},
		{"zero k", func(c *RetrievalConfig) { c.K = 0 }, false},
		{"pool smaller than k", func(c *RetrievalConfig) { c.CandidatePool = 2; c.K = 5 }, false},
		{"negative rrf_k", func(c *RetrievalConfig) { c.RRFK = -1 }, false},
		{"lambda above one", func(c *RetrievalConfig) { c.MMRLambda = 1.01 }, false},
		{"lambda below zero", func(c *RetrievalConfig) { c.MMRLambda = -0.01 }, false},
		{"negative cap", func(c *RetrievalConfig) { c.MaxPerChapter = -2 }, false},
		{"boundary lambdas", func(c *RetrievalConfig) { c.MMRLambda = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRetrievalConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

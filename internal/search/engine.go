package search

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bookrag/bookrag/internal/errors"
	"github.com/bookrag/bookrag/internal/store"
)

// ErrNilDependency indicates a required dependency was not provided.
var ErrNilDependency = stderrors.New("nil dependency")

// Retriever runs the full hybrid pipeline for one query: parallel
// lexical and dense candidate generation, rank fusion, metadata
// filtering, and MMR diversity selection. It holds only read-only
// references and is safe for concurrent use.
type Retriever struct {
	lexical  store.LexicalIndex
	dense    DenseScorer
	chunks   store.ChunkStore
	logger   *slog.Logger
	defaults RetrievalConfig
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) RetrieverOption {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// WithDefaults overrides the built-in retrieval defaults.
func WithDefaults(cfg RetrievalConfig) RetrieverOption {
	return func(r *Retriever) {
		r.defaults = cfg
	}
}

// NewRetriever creates a retriever. The dense scorer may be nil, in
// which case only lexical-only retrieval is possible.
func NewRetriever(lexical store.LexicalIndex, dense DenseScorer, chunks store.ChunkStore, opts ...RetrieverOption) (*Retriever, error) {
	if lexical == nil {
		return nil, fmt.Errorf("%w: lexical index", ErrNilDependency)
	}
	if chunks == nil {
		return nil, fmt.Errorf("%w: chunk store", ErrNilDependency)
	}

	r := &Retriever{
		lexical:  lexical,
		dense:    dense,
		chunks:   chunks,
		logger:   slog.Default(),
		defaults: DefaultRetrievalConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Defaults returns a copy of the retriever's default configuration.
func (r *Retriever) Defaults() RetrievalConfig {
	return r.defaults
}

// Retrieve runs the pipeline and returns the final ordered result list.
// The output is deterministic given identical corpus, index, query, and
// config. A failing dense branch surfaces as a degraded-mode error
// unless cfg.LexicalOnly is set; the core never silently substitutes
// lexical-only results.
func (r *Retriever) Retrieve(ctx context.Context, query string, cfg RetrievalConfig) ([]Result, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if r.lexical.Stats().DocumentCount == 0 {
		return nil, errors.New(errors.ErrCodeIndexNotBuilt,
			"no documents indexed, run 'bookrag index' first", nil)
	}

	lexical, dense, err := r.parallelSearch(ctx, query, cfg)
	if err != nil {
		return nil, err
	}

	fusion := NewRRFFusion(cfg.RRFK)
	fused, err := fusion.Fuse(lexical, dense)
	if err != nil {
		return nil, err
	}

	if len(fused) == 0 {
		return []Result{}, nil
	}

	// One batch lookup serves filtering, MMR, and enrichment.
	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
	}
	chunks, err := r.chunks.GetChunks(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSearchFailed, err)
	}

	chapterOf := make(map[string]int, len(chunks))
	embeddings := make(map[string][]float32, len(chunks))
	byID := make(map[string]int, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		chapterOf[c.ID] = c.ChapterNumber
		if c.HasEmbedding() {
			embeddings[c.ID] = c.Embedding
		}
		byID[c.ID] = i
	}

	pool := fused
	if cfg.UseFilters {
		pool = FilterExcluded(pool, chapterOf, cfg.ExcludeChapters)
	}
	if cfg.UsePerChapterCap {
		pool = CapPerChapter(pool, chapterOf, cfg.MaxPerChapter)
	}

	selected := SelectMMR(pool, embeddings, cfg.MMRLambda, cfg.K)

	results := make([]Result, 0, len(selected))
	for i, f := range selected {
		idx, ok := byID[f.ChunkID]
		if !ok {
			// Candidate id with no stored chunk: index and store disagree
			return nil, errors.New(errors.ErrCodeSearchFailed,
				fmt.Sprintf("chunk %s in index but not in store", f.ChunkID), nil)
		}
		results = append(results, Result{
			Chunk:     chunks[idx],
			Score:     f.Score,
			Rank:      i + 1,
			InBoth:    f.InBoth,
			LexRank:   f.LexRank,
			DenseRank: f.DenseRank,
		})
	}

	r.logger.Debug("retrieval_complete",
		slog.String("query", query),
		slog.Int("lexical_candidates", len(lexical)),
		slog.Int("dense_candidates", len(dense)),
		slog.Int("fused", len(fused)),
		slog.Int("pool_after_filters", len(pool)),
		slog.Int("results", len(results)),
		slog.Bool("lexical_only", cfg.LexicalOnly),
		slog.Duration("elapsed", time.Since(start)))

	return results, nil
}

// parallelSearch runs both branches concurrently. A lexical failure is
// fatal. A dense failure (or missing dense scorer) is fatal unless the
// caller asked for lexical-only retrieval.
func (r *Retriever) parallelSearch(ctx context.Context, query string, cfg RetrievalConfig) (lexical, dense []Candidate, err error) {
	var lexErr, denseErr error

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lexical, lexErr = r.LexicalCandidates(gctx, query, cfg.CandidatePool)
		return nil
	})

	if !cfg.LexicalOnly {
		g.Go(func() error {
			dense, denseErr = r.DenseCandidates(gctx, query, cfg.CandidatePool)
			return nil
		})
	}

	// Branch errors are captured, not returned, so one branch cannot
	// cancel the other mid-flight.
	_ = g.Wait()

	if lexErr != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeSearchFailed, lexErr)
	}
	if !cfg.LexicalOnly && denseErr != nil {
		r.logger.Warn("dense_branch_failed",
			slog.String("query", query),
			slog.String("error", denseErr.Error()))
		return nil, nil, errors.New(errors.ErrCodeDenseUnavailable,
			"dense backend unavailable", denseErr).
			WithSuggestion("retry with --lexical-only for keyword-only results")
	}

	return lexical, dense, nil
}

// LexicalCandidates returns the lexical branch's top-n candidates.
func (r *Retriever) LexicalCandidates(ctx context.Context, query string, n int) ([]Candidate, error) {
	results, err := r.lexical.Search(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	candidates := make([]Candidate, len(results))
	for i, res := range results {
		candidates[i] = Candidate{ChunkID: res.DocID, Rank: i + 1, Score: res.Score}
	}
	return candidates, nil
}

// DenseCandidates returns the dense branch's top-n candidates.
func (r *Retriever) DenseCandidates(ctx context.Context, query string, n int) ([]Candidate, error) {
	if r.dense == nil {
		return nil, fmt.Errorf("%w: dense scorer", ErrNilDependency)
	}
	return r.dense.DenseSearch(ctx, query, n)
}

// FusedCandidates runs both branches and fusion without filtering or
// MMR. Used by the evaluation harness's silver judgment generation.
func (r *Retriever) FusedCandidates(ctx context.Context, query string, cfg RetrievalConfig) ([]FusedResult, error) {
	lexical, dense, err := r.parallelSearch(ctx, query, cfg)
	if err != nil {
		return nil, err
	}
	return NewRRFFusion(cfg.RRFK).Fuse(lexical, dense)
}

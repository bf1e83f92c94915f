package eval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bookrag/bookrag/internal/search"
)

// Silver judgment generation parameters.
const (
	// SilverDenseDepth is how deep into the dense ranking a chunk may
	// sit and still count as agreed-on.
	SilverDenseDepth = 20

	// SilverLexicalDepth is the matching depth for the lexical ranking.
	// Deeper than the dense depth because lexical rankings have a
	// longer useful tail for prose.
	SilverLexicalDepth = 30

	// SilverMinRelevant is the minimum judgment size. Queries where
	// the branches agree on fewer ids are topped up from the fused
	// ranking.
	SilverMinRelevant = 3

	// SilverMethod labels auto-generated judgments in the qrels file.
	SilverMethod = "silver-intersection"
)

// SilverGenerator builds approximate relevance judgments by
// intersecting the two retrieval branches: a chunk that both the dense
// and the lexical ranking place near the top is treated as relevant.
// These judgments are branch-agreement proxies, not human labels, and
// systematically favor chunks both branches already find. Reports built
// on them measure pipeline regressions, not absolute quality.
type SilverGenerator struct {
	retriever *search.Retriever
	logger    *slog.Logger
}

// NewSilverGenerator creates a generator over the given retriever.
func NewSilverGenerator(retriever *search.Retriever, logger *slog.Logger) *SilverGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SilverGenerator{retriever: retriever, logger: logger}
}

// Generate produces one judgment per query. Queries where even the
// fused ranking is empty are skipped with a warning.
func (g *SilverGenerator) Generate(ctx context.Context, queries []string, cfg search.RetrievalConfig) ([]Judgment, error) {
	judgments := make([]Judgment, 0, len(queries))

	for _, query := range queries {
		j, err := g.generateOne(ctx, query, cfg)
		if err != nil {
			return nil, fmt.Errorf("generating judgment for %q: %w", query, err)
		}
		if len(j.RelevantIDs) == 0 {
			g.logger.Warn("silver_judgment_empty", slog.String("query", query))
			continue
		}
		judgments = append(judgments, j)
	}

	g.logger.Info("silver_judgments_generated",
		slog.Int("queries", len(queries)),
		slog.Int("judgments", len(judgments)))

	return judgments, nil
}

func (g *SilverGenerator) generateOne(ctx context.Context, query string, cfg search.RetrievalConfig) (Judgment, error) {
	dense, err := g.retriever.DenseCandidates(ctx, query, SilverDenseDepth)
	if err != nil {
		return Judgment{}, err
	}
	lexical, err := g.retriever.LexicalCandidates(ctx, query, SilverLexicalDepth)
	if err != nil {
		return Judgment{}, err
	}

	inLexical := make(map[string]bool, len(lexical))
	for _, c := range lexical {
		inLexical[c.ChunkID] = true
	}

	// Agreement set, in dense order.
	var relevant []string
	seen := make(map[string]bool)
	for _, c := range dense {
		if inLexical[c.ChunkID] && !seen[c.ChunkID] {
			relevant = append(relevant, c.ChunkID)
			seen[c.ChunkID] = true
		}
	}

	// Top up thin judgments from the fused ranking so every query has
	// enough positives for the metrics to discriminate.
	if len(relevant) < SilverMinRelevant {
		fused, err := g.retriever.FusedCandidates(ctx, query, cfg)
		if err != nil {
			return Judgment{}, err
		}
		for _, f := range fused {
			if len(relevant) >= SilverMinRelevant {
				break
			}
			if !seen[f.ChunkID] {
				relevant = append(relevant, f.ChunkID)
				seen[f.ChunkID] = true
			}
		}
	}

	return Judgment{
		Query:       query,
		RelevantIDs: relevant,
		Method:      SilverMethod,
	}, nil
}

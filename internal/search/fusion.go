package search

import (
	"fmt"
	"sort"

	"github.com/bookrag/bookrag/internal/errors"
)

// RRFFusion combines two independently ranked candidate lists using
// Reciprocal Rank Fusion. Only rank positions matter; BM25 and cosine
// scores are not on the same scale and are never compared directly.
type RRFFusion struct {
	// K is the smoothing constant in 1/(K + rank).
	K int
}

// NewRRFFusion creates a fusion with the given smoothing constant.
func NewRRFFusion(k int) *RRFFusion {
	return &RRFFusion{K: k}
}

// Fuse merges the lexical and dense candidate lists. A chunk present at
// 1-based rank r in a branch contributes 1/(K+r); a chunk absent from a
// branch contributes 0 for that branch. The fused ranking is descending
// fused score, ties broken by presence in both branches and then by
// ascending chunk id.
//
// A duplicate chunk id within a single branch violates the branch
// contract and is reported as an error.
func (f *RRFFusion) Fuse(lexical, dense []Candidate) ([]FusedResult, error) {
	if err := checkBranch("lexical", lexical); err != nil {
		return nil, err
	}
	if err := checkBranch("dense", dense); err != nil {
		return nil, err
	}

	fused := make(map[string]*FusedResult, len(lexical)+len(dense))

	for _, c := range lexical {
		fused[c.ChunkID] = &FusedResult{
			ChunkID: c.ChunkID,
			Score:   1.0 / float64(f.K+c.Rank),
			LexRank: c.Rank,
		}
	}

	for _, c := range dense {
		if r, ok := fused[c.ChunkID]; ok {
			r.Score += 1.0 / float64(f.K+c.Rank)
			r.DenseRank = c.Rank
			r.InBoth = true
		} else {
			fused[c.ChunkID] = &FusedResult{
				ChunkID:   c.ChunkID,
				Score:     1.0 / float64(f.K+c.Rank),
				DenseRank: c.Rank,
			}
		}
	}

	results := make([]FusedResult, 0, len(fused))
	for _, r := range fused {
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].InBoth != results[j].InBoth {
			return results[i].InBoth
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	return results, nil
}

// checkBranch enforces the no-duplicate precondition on one branch.
func checkBranch(name string, candidates []Candidate) error {
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.ChunkID]; dup {
			return errors.New(errors.ErrCodeMalformedCandidates,
				fmt.Sprintf("duplicate chunk id %s in %s branch", c.ChunkID, name), nil)
		}
		seen[c.ChunkID] = struct{}{}
	}
	return nil
}

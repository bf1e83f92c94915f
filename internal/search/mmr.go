package search

import (
	"math"
)

// SelectMMR greedily picks up to k candidates from the fused pool using
// Maximal Marginal Relevance:
//
//	mmr(c) = lambda*rel(c) - (1-lambda)*max over selected s of cos(c, s)
//
// rel(c) is the fused score normalized to [0,1] against the pool
// maximum. The similarity term is 0 while nothing is selected, so the
// first pick is always the most relevant candidate. With lambda = 1 the
// output order matches the fused pool order exactly.
//
// Ties go to the candidate earlier in the pool, which the fused
// ordering already resolves by ascending chunk id. Candidates without
// embeddings contribute 0 similarity and remain selectable by
// relevance. If the pool holds fewer than k candidates, all of them are
// returned in greedy order.
func SelectMMR(pool []FusedResult, embeddings map[string][]float32, lambda float64, k int) []FusedResult {
	if k <= 0 || len(pool) == 0 {
		return []FusedResult{}
	}

	maxScore := pool[0].Score
	for _, r := range pool {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}

	rel := make([]float64, len(pool))
	for i, r := range pool {
		if maxScore > 0 {
			rel[i] = r.Score / maxScore
		}
	}

	selected := make([]FusedResult, 0, k)
	selectedVecs := make([][]float32, 0, k)
	remaining := make([]bool, len(pool))
	for i := range remaining {
		remaining[i] = true
	}

	for len(selected) < k {
		bestIdx := -1
		bestScore := math.Inf(-1)

		for i, r := range pool {
			if !remaining[i] {
				continue
			}

			redundancy := 0.0
			if vec, ok := embeddings[r.ChunkID]; ok && len(selectedVecs) > 0 {
				redundancy = math.Inf(-1)
				for _, sv := range selectedVecs {
					if sim := cosineSimilarity(vec, sv); sim > redundancy {
						redundancy = sim
					}
				}
			}

			score := lambda*rel[i] - (1.0-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break
		}

		remaining[bestIdx] = false
		selected = append(selected, pool[bestIdx])
		if vec, ok := embeddings[pool[bestIdx].ChunkID]; ok {
			selectedVecs = append(selectedVecs, vec)
		}
	}

	return selected
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

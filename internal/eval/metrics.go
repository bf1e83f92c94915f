// Package eval measures retrieval quality against relevance judgments.
// It computes standard rank-based metrics over the output of the
// retrieval pipeline and can bootstrap approximate judgments when no
// human-labeled set exists.
package eval

import (
	"math"
	"sort"
)

// RecallAtK returns the fraction of relevant ids found in the first k
// retrieved ids. With no relevant ids the metric is undefined and
// reported as 0.
func RecallAtK(retrieved []string, relevant map[string]bool, k int) float64 {
	if len(relevant) == 0 || k <= 0 {
		return 0
	}

	found := 0
	for i, id := range retrieved {
		if i >= k {
			break
		}
		if relevant[id] {
			found++
		}
	}
	return float64(found) / float64(len(relevant))
}

// NDCGAtK returns the normalized discounted cumulative gain at k with
// binary gains: a relevant id at 1-based rank r contributes
// 1/log2(1+r). The ideal DCG places all relevant ids at the top.
func NDCGAtK(retrieved []string, relevant map[string]bool, k int) float64 {
	if len(relevant) == 0 || k <= 0 {
		return 0
	}

	var dcg float64
	for i, id := range retrieved {
		if i >= k {
			break
		}
		if relevant[id] {
			dcg += 1.0 / math.Log2(float64(i)+2)
		}
	}

	ideal := len(relevant)
	if ideal > k {
		ideal = k
	}
	var idcg float64
	for i := 0; i < ideal; i++ {
		idcg += 1.0 / math.Log2(float64(i)+2)
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// MRRAtK returns the reciprocal of the 1-based rank of the first
// relevant id within the top k, or 0 when none appears.
func MRRAtK(retrieved []string, relevant map[string]bool, k int) float64 {
	rank := FirstRelevantRank(retrieved, relevant, k)
	if rank > k {
		return 0
	}
	return 1.0 / float64(rank)
}

// FirstRelevantRank returns the 1-based rank of the first relevant id
// within the top k. A miss is reported as k+1 so that percentile
// aggregation penalizes queries with no relevant result instead of
// dropping them.
func FirstRelevantRank(retrieved []string, relevant map[string]bool, k int) int {
	for i, id := range retrieved {
		if i >= k {
			break
		}
		if relevant[id] {
			return i + 1
		}
	}
	return k + 1
}

// Percentile returns the p-th percentile of values using the
// nearest-rank method: the element at index ceil(p/100*n)-1 of the
// sorted values. An empty input yields 0.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(math.Ceil(p/100.0*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Mean returns the arithmetic mean of values, 0 for an empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

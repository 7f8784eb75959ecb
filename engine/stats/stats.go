// Package stats computes batch-wide traction thresholds over the scored,
// descending-sorted item sequence.
package stats

import (
	"math"

	"github.com/abratronix/pulse/engine/feed"
)

// Percentile returns the p-th percentile threshold of scores sorted
// descending: the score at rank ceil((1 - p/100) * N), 1-indexed from the
// top and clamped to [1, N]. An empty input yields 0.
func Percentile(sortedDesc []float64, p float64) float64 {
	n := len(sortedDesc)
	if n == 0 {
		return 0
	}
	rank := int(math.Ceil((1 - p/100) * float64(n)))
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return sortedDesc[rank-1]
}

// Compute derives max/p90/p75 from items already sorted descending by
// traction score.
func Compute(items []feed.Item) feed.TractionStats {
	if len(items) == 0 {
		return feed.TractionStats{}
	}
	scores := make([]float64, len(items))
	for i, it := range items {
		scores[i] = it.TractionScore
	}
	return feed.TractionStats{
		MaxScore: scores[0],
		P90Score: Percentile(scores, 90),
		P75Score: Percentile(scores, 75),
	}
}

package storage

import (
	"math"
)

// NormalizeVector normalizes a vector to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var magnitude float64
	for _, val := range v {
		magnitude += float64(val) * float64(val)
	}
	magnitude = math.Sqrt(magnitude)

	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different lengths are compared over their common prefix.
// A zero vector has similarity 0 with everything.
func CosineSimilarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SelectMMR picks up to k of candidates by maximal marginal relevance and
// returns their positions in selection order.
//
// The first pick is the candidate most similar to query. Each following pick
// maximizes lambda*sim(query, c) - (1-lambda)*max(sim(c, s)) over the already
// selected s. Ties go to the earlier candidate, so callers that order
// candidates deterministically get deterministic results.
func SelectMMR(query []float32, candidates [][]float32, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	k = min(k, len(candidates))

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = CosineSimilarity(query, c)
	}

	// redundancy[i] tracks max similarity of candidate i to the selection.
	redundancy := make([]float64, len(candidates))
	for i := range redundancy {
		redundancy[i] = math.Inf(-1)
	}
	chosen := make([]bool, len(candidates))
	selected := make([]int, 0, k)

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i := range candidates {
			if chosen[i] {
				continue
			}
			score := relevance[i]
			if len(selected) > 0 {
				score = lambda*relevance[i] - (1-lambda)*redundancy[i]
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}

		chosen[best] = true
		selected = append(selected, best)
		for i, c := range candidates {
			if chosen[i] {
				continue
			}
			if sim := CosineSimilarity(c, candidates[best]); sim > redundancy[i] {
				redundancy[i] = sim
			}
		}
	}
	return selected
}

// Package rating implements the tournament's Elo-like rating update: after
// each match, every participant's rating moves toward the rank it actually
// achieved relative to the ranks a pairwise logistic model predicted for it.
package rating

import "math"

const (
	// K scales the size of each rating adjustment.
	K = 20.0
	// D is the logistic spread: a 400-point rating gap corresponds to a
	// 10x odds ratio between two players.
	D = 400.0
	// B is the logistic base.
	B = 10.0
)

// Result is one participant's rating and the score it achieved in a match.
// Lower Score is worse unless the caller's convention says otherwise — this
// package only cares about relative order.
type Result struct {
	Rating float64
	Score  float64
}

// expectedFractionalRank returns, for player i, the sum over every other
// player j of the probability i beats j under the pairwise logistic model,
// i.e. the expected number of opponents i places ahead of. The sum is not
// normalized; Update divides it by the match's pairing count.
func expectedFractionalRank(ratings []float64, i int) float64 {
	var sum float64
	for j, rj := range ratings {
		if j == i {
			continue
		}
		sum += 1.0 / (1.0 + math.Pow(B, (rj-ratings[i])/D))
	}
	return sum
}

// actualFractionalRank returns, for player i, the number of opponents whose
// score it beat (ties counted as half), as used for the "actual" side of
// the update. Scores within 1e-5 of each other are treated as tied.
func actualFractionalRank(scores []float64, i int) float64 {
	var sum float64
	for j, sj := range scores {
		if j == i {
			continue
		}
		diff := scores[i] - sj
		switch {
		case diff > 1e-5:
			sum += 1.0
		case diff < -1e-5:
			sum += 0.0
		default:
			sum += 0.5
		}
	}
	return sum
}

// Update computes each participant's rating delta for one match. The
// returned slice is parallel to results. Deltas sum to (approximately)
// zero, so total rating mass in the pool is conserved.
func Update(results []Result) []float64 {
	n := len(results)
	deltas := make([]float64, n)
	if n < 2 {
		return deltas
	}

	ratings := make([]float64, n)
	scores := make([]float64, n)
	for i, r := range results {
		ratings[i] = r.Rating
		scores[i] = r.Score
	}

	// Both fractional ranks are normalized by the total number of pairings
	// in an n-player match, not by n-1: a player's raw win-count sum (from
	// expectedFractionalRank/actualFractionalRank) only coincides with its
	// share of n-1 opponents when n == 2.
	pairings := float64(n*(n-1)) / 2.0

	for i := range results {
		expected := expectedFractionalRank(ratings, i) / pairings
		actual := actualFractionalRank(scores, i) / pairings
		deltas[i] = K * (actual - expected)
	}

	return deltas
}

// Apply returns the new ratings after applying Update's deltas.
func Apply(results []Result) []float64 {
	deltas := Update(results)
	out := make([]float64, len(results))
	for i, r := range results {
		out[i] = r.Rating + deltas[i]
	}
	return out
}

// DefaultRating is the rating assigned to an agent with no match history.
const DefaultRating = 1000.0

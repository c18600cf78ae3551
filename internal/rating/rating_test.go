package rating

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateIsApproximatelyZeroSum(t *testing.T) {
	results := []Result{
		{Rating: 1000, Score: 3},
		{Rating: 1000, Score: 2},
		{Rating: 1000, Score: 1},
		{Rating: 1000, Score: 0},
	}
	deltas := Update(results)
	var sum float64
	for _, d := range deltas {
		sum += d
	}
	assert.InDelta(t, 0, sum, 1e-9)
}

func TestWinnerGainsRatingAgainstEqualOpponent(t *testing.T) {
	results := []Result{
		{Rating: 1000, Score: 1},
		{Rating: 1000, Score: 0},
	}
	deltas := Update(results)
	assert.Greater(t, deltas[0], 0.0)
	assert.Less(t, deltas[1], 0.0)
	assert.InDelta(t, deltas[0], -deltas[1], 1e-9)
}

func TestHigherRatedExpectedToWinGainsLessOnWin(t *testing.T) {
	strongWins := []Result{{Rating: 1400, Score: 1}, {Rating: 1000, Score: 0}}
	evenWins := []Result{{Rating: 1000, Score: 1}, {Rating: 1000, Score: 0}}

	strongDelta := Update(strongWins)[0]
	evenDelta := Update(evenWins)[0]
	assert.Less(t, strongDelta, evenDelta)
}

func TestTiedScoresProduceNoChange(t *testing.T) {
	results := []Result{{Rating: 1000, Score: 1}, {Rating: 1000, Score: 1}}
	deltas := Update(results)
	assert.InDelta(t, 0, deltas[0], 1e-9)
	assert.InDelta(t, 0, deltas[1], 1e-9)
}

func TestSingleParticipantNoChange(t *testing.T) {
	deltas := Update([]Result{{Rating: 1000, Score: 1}})
	assert.Equal(t, []float64{0}, deltas)
}

func TestApplyAddsDeltaToRating(t *testing.T) {
	results := []Result{{Rating: 1000, Score: 1}, {Rating: 1000, Score: 0}}
	updated := Apply(results)
	assert.True(t, math.Abs(updated[0]-1000) > 0)
}

// TestNPlayerDeltaNormalizedByPairingsNotOpponentCount guards against
// normalizing by n-1 instead of the total pairing count n*(n-1)/2: for n==2
// the two coincide, but for n==4 dividing by n-1 = 3 instead of 6 would
// double every delta. Concretely, the winner's delta in a clean 4-way win
// (one winner over three equally rated losers) must be K * (3/6 - 1.5/6) =
// K/4, not K * (3/3 - 1.5/3) = K/2.
func TestNPlayerDeltaNormalizedByPairingsNotOpponentCount(t *testing.T) {
	results := []Result{
		{Rating: 1000, Score: 3},
		{Rating: 1000, Score: 2},
		{Rating: 1000, Score: 1},
		{Rating: 1000, Score: 0},
	}
	deltas := Update(results)

	// All four start at equal rating, so each pairwise expectation is 0.5
	// and expectedFractionalRank for every player sums to 1.5 (3 opponents
	// * 0.5), i.e. an expected fractional rank of 1.5/6 = 0.25 once
	// normalized by the 6 pairings in a 4-player match. The winner's actual
	// fractional rank is 3/6 = 0.5 (beat all 3 opponents). Delta = K*(0.5-0.25).
	assert.InDelta(t, K*0.25, deltas[0], 1e-9)
}

// Package referee defines the contract every game implementation satisfies
// and the scoring rules the scheduler trusts. A referee only ever proposes
// scores; the scheduler (internal/scheduler) is the sole authority on
// whether a proposed score vector is well-formed.
package referee

import (
	"context"

	"github.com/aiarena/engine/internal/reporter"
	"github.com/aiarena/engine/internal/sandbox"
)

// Job pairs a running sandboxed process with the seat it occupies.
type Job struct {
	Seat int
	Proc *sandbox.RunningJob
}

// Referee runs one complete match among NumPlayers() participants and
// returns a score per participant, higher is better. Implementations must
// return a vector whose length equals NumPlayers(); the scheduler corrects
// (and logs) any referee that fails to honor this, but a well-behaved
// referee should never rely on that correction.
type Referee interface {
	// Name identifies the game for logging and the event stream.
	Name() string
	// NumPlayers is the number of seats this referee expects.
	NumPlayers() int
	// Run plays one match. jobs has exactly NumPlayers() entries, ordered
	// by seat. rep receives structured progress events for spectators.
	// A referee that panics is treated by the scheduler as having
	// produced a last-place result for every participant; Run should
	// still prefer returning an error-shaped result over panicking where
	// practical.
	Run(ctx context.Context, jobs []Job, rep *reporter.MatchReporter) ([]float64, error)
}

// LastPlace returns a score vector where every participant is tied for
// last place. Used by the scheduler to synthesize a result when a referee
// panics or otherwise fails to produce one, so a crash never blocks rating
// updates or leaves an agent's in_game flag stuck.
func LastPlace(numPlayers int) []float64 {
	return make([]float64, numPlayers)
}

// NormalizeScores forces scores to have exactly numPlayers entries,
// truncating an over-long vector and padding a short one with the lowest
// score already present (or zero, if scores is empty). This is the
// enforcement point for referees that hard-code a player count instead of
// reading it from the match.
func NormalizeScores(scores []float64, numPlayers int) []float64 {
	if len(scores) == numPlayers {
		return scores
	}

	out := make([]float64, numPlayers)
	copy(out, scores)

	if len(scores) >= numPlayers {
		return out
	}

	pad := 0.0
	for i, s := range scores {
		if i == 0 || s < pad {
			pad = s
		}
	}
	for i := len(scores); i < numPlayers; i++ {
		out[i] = pad
	}
	return out
}

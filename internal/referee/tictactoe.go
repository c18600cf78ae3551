package referee

import (
	"context"
	"fmt"

	"github.com/aiarena/engine/internal/reporter"
	"github.com/aiarena/engine/internal/sandbox"
)

type ticTacToeCell int

const (
	cellEmpty ticTacToeCell = iota
	cellNought
	cellCross
)

// TicTacToe is the reference two-player referee: a 3x3 grid, alternating
// moves, first three-in-a-row wins. A client error or out-of-range/occupied
// move forfeits the match to the other player.
type TicTacToe struct{}

// Name implements Referee.
func (TicTacToe) Name() string { return "tic_tac_toe" }

// NumPlayers implements Referee.
func (TicTacToe) NumPlayers() int { return 2 }

func ticTacToeWinner(grid [3][3]ticTacToeCell) (ticTacToeCell, bool) {
	lines := [][3][2]int{
		{{0, 0}, {0, 1}, {0, 2}}, {{1, 0}, {1, 1}, {1, 2}}, {{2, 0}, {2, 1}, {2, 2}},
		{{0, 0}, {1, 0}, {2, 0}}, {{0, 1}, {1, 1}, {2, 1}}, {{0, 2}, {1, 2}, {2, 2}},
		{{0, 0}, {1, 1}, {2, 2}}, {{0, 2}, {1, 1}, {2, 0}},
	}
	for _, line := range lines {
		a := grid[line[0][0]][line[0][1]]
		b := grid[line[1][0]][line[1][1]]
		c := grid[line[2][0]][line[2][1]]
		if a != cellEmpty && a == b && b == c {
			return a, true
		}
	}
	return cellEmpty, false
}

type ticTacToeMove struct {
	Row uint8
	Col uint8
}

// Run implements Referee. It always returns a NumPlayers()-length score
// vector, derived from NumPlayers() rather than a literal 2, so future
// variants with more seats can't silently truncate results.
func (t TicTacToe) Run(ctx context.Context, jobs []Job, rep *reporter.MatchReporter) ([]float64, error) {
	if len(jobs) != t.NumPlayers() {
		return nil, fmt.Errorf("tic_tac_toe: expected %d players, got %d", t.NumPlayers(), len(jobs))
	}

	forfeit := func(loser int, reason string, cause error) []float64 {
		scores := make([]float64, t.NumPlayers())
		for i := range scores {
			scores[i] = 1.0
		}
		scores[loser] = 0.0
		if cause != nil {
			jobs[loser].Proc.SetError(cause)
		}
		rep.Update("forfeit", map[string]any{"player": loser, "reason": reason})
		return scores
	}

	var grid [3][3]ticTacToeCell

	for turn := 0; turn < 9; turn++ {
		player := turn % 2

		move, err := readMove(ctx, jobs[player].Proc)
		if err != nil {
			return forfeit(player, fmt.Sprintf("client error: %v", err), err), nil
		}

		if move.Row > 2 || move.Col > 2 || grid[move.Row][move.Col] != cellEmpty {
			invalid := fmt.Errorf("invalid move (%d, %d)", move.Row, move.Col)
			return forfeit(player, invalid.Error(), invalid), nil
		}

		if player == 0 {
			grid[move.Row][move.Col] = cellNought
		} else {
			grid[move.Row][move.Col] = cellCross
		}

		rep.Update("move", map[string]any{"player": player, "row": move.Row, "col": move.Col})

		if winner, ok := ticTacToeWinner(grid); ok {
			scores := make([]float64, t.NumPlayers())
			if winner == cellNought {
				scores[0] = 1.0
			} else {
				scores[1] = 1.0
			}
			return scores, nil
		}
	}

	draw := make([]float64, t.NumPlayers())
	for i := range draw {
		draw[i] = 0.5
	}
	return draw, nil
}

// readMove reads one (row, col) move off the agent's framed stdout. The
// tic_tac_toe schema's Move struct is two u8 fields, so this mirrors what
// internal/codec would generate for it without requiring a compiled schema
// at referee-registration time.
func readMove(ctx context.Context, proc *sandbox.RunningJob) (ticTacToeMove, error) {
	if err := ctx.Err(); err != nil {
		return ticTacToeMove{}, err
	}

	row, err := proc.Reader().ReadU8()
	if err != nil {
		return ticTacToeMove{}, fmt.Errorf("read row: %w", err)
	}
	col, err := proc.Reader().ReadU8()
	if err != nil {
		return ticTacToeMove{}, fmt.Errorf("read col: %w", err)
	}
	return ticTacToeMove{Row: row, Col: col}, nil
}

package referee

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/aiarena/engine/internal/reporter"
	"github.com/aiarena/engine/internal/sandbox"
)

type Pos struct{ Row, Col int }

type snakeMove uint8

const (
	moveUp snakeMove = iota
	moveDown
	moveLeft
	moveRight
)

func applySnakeMove(p Pos, m snakeMove) Pos {
	switch m {
	case moveUp:
		return Pos{Row: p.Row - 1, Col: p.Col}
	case moveDown:
		return Pos{Row: p.Row + 1, Col: p.Col}
	case moveLeft:
		return Pos{Row: p.Row, Col: p.Col - 1}
	default:
		return Pos{Row: p.Row, Col: p.Col + 1}
	}
}

// Snake is the reference N-player referee: snakes grow by eating food on a
// shared grid and die by crashing into a wall, another snake, or each
// other head-on. Its score vector length is derived from NumPlayers()
// rather than a literal two-element vector, so games with more than two
// snakes report a score for every participant instead of silently
// dropping the rest.
type Snake struct {
	Rows, Cols int
	Food       int
	Starts     [][]Pos
}

// Name implements Referee.
func (Snake) Name() string { return "snake" }

// NumPlayers implements Referee.
func (s Snake) NumPlayers() int { return len(s.Starts) }

// Run implements Referee.
func (s Snake) Run(ctx context.Context, jobs []Job, rep *reporter.MatchReporter) ([]float64, error) {
	n := s.NumPlayers()
	if len(jobs) != n {
		return nil, fmt.Errorf("snake: expected %d players, got %d", n, len(jobs))
	}

	grid := make([][]int, s.Rows)
	for i := range grid {
		grid[i] = make([]int, s.Cols)
	}
	snakes := make([][]Pos, n)
	dead := make([]bool, n)
	scores := make([]float64, n)
	numDead := 0

	rep.Update("dimensions", map[string]int{"rows": s.Rows, "cols": s.Cols})

	for i, start := range s.Starts {
		for _, p := range start {
			grid[p.Row][p.Col] = i + 1
			snakes[i] = append(snakes[i], p)
		}
	}

	for numDead < n-1 {
		if err := ctx.Err(); err != nil {
			return scoresAtTimeout(scores, n), nil
		}

		placeFood(grid, s.Food, s.Rows, s.Cols)

		moves := make([]snakeMove, n)
		for i, job := range jobs {
			if dead[i] {
				continue
			}
			m, err := readSnakeMove(job.Proc)
			if err != nil {
				job.Proc.SetError(err)
				rep.Update("player_error", map[string]any{"player": i + 1, "error": err.Error()})
				dead[i] = true
				numDead++
				continue
			}
			moves[i] = m
		}

		type proposal struct {
			snake int
			pos   Pos
		}
		var proposals []proposal
		for i := range jobs {
			if dead[i] || len(snakes[i]) == 0 {
				continue
			}
			head := snakes[i][len(snakes[i])-1]
			next := applySnakeMove(head, moves[i])
			if next.Row < 0 || next.Col < 0 || next.Row >= s.Rows || next.Col >= s.Cols {
				rep.Update("wall_crash", map[string]any{"player": i + 1})
				dead[i] = true
				numDead++
				continue
			}
			proposals = append(proposals, proposal{snake: i, pos: next})
		}

		for i, p := range proposals {
			headCrash := false
			for j, q := range proposals {
				if i != j && p.pos == q.pos {
					headCrash = true
					break
				}
			}
			if headCrash {
				rep.Update("head_butt", map[string]any{"player": p.snake + 1})
				dead[p.snake] = true
				numDead++
				continue
			}
			if grid[p.pos.Row][p.pos.Col] == -1 {
				scores[p.snake]++
			} else if len(snakes[p.snake]) > 0 {
				tail := snakes[p.snake][0]
				snakes[p.snake] = snakes[p.snake][1:]
				grid[tail.Row][tail.Col] = 0
			}
		}

		for _, p := range proposals {
			if dead[p.snake] {
				continue
			}
			if grid[p.pos.Row][p.pos.Col] > 0 {
				rep.Update("snake_crash", map[string]any{"player": p.snake + 1})
				dead[p.snake] = true
				numDead++
				continue
			}
			grid[p.pos.Row][p.pos.Col] = p.snake + 1
			snakes[p.snake] = append(snakes[p.snake], p.pos)
		}

		for i, d := range dead {
			if d {
				for _, seg := range snakes[i] {
					grid[seg.Row][seg.Col] = 0
				}
				snakes[i] = nil
			}
		}

		rep.Update("scores", scores)
	}

	for _, job := range jobs {
		_ = job.Proc.Close()
	}

	return scores, nil
}

func scoresAtTimeout(scores []float64, n int) []float64 {
	return NormalizeScores(scores, n)
}

func placeFood(grid [][]int, target, rows, cols int) {
	count := 0
	for _, row := range grid {
		for _, cell := range row {
			if cell == -1 {
				count++
			}
		}
	}
	tries := 100
	for count < target && tries > 0 {
		tries--
		r := rand.Intn(rows)
		c := rand.Intn(cols)
		if grid[r][c] == 0 {
			grid[r][c] = -1
			count++
		}
	}
}

func readSnakeMove(proc *sandbox.RunningJob) (snakeMove, error) {
	v, err := proc.Reader().ReadU8()
	if err != nil {
		return 0, err
	}
	if v > uint8(moveRight) {
		return 0, fmt.Errorf("snake: invalid move byte %d", v)
	}
	return snakeMove(v), nil
}

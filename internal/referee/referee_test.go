package referee

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTicTacToeWinnerDetectsRowColumnDiagonal(t *testing.T) {
	var grid [3][3]ticTacToeCell
	grid[0][0], grid[0][1], grid[0][2] = cellNought, cellNought, cellNought
	winner, ok := ticTacToeWinner(grid)
	assert.True(t, ok)
	assert.Equal(t, cellNought, winner)

	grid = [3][3]ticTacToeCell{}
	grid[0][1], grid[1][1], grid[2][1] = cellCross, cellCross, cellCross
	winner, ok = ticTacToeWinner(grid)
	assert.True(t, ok)
	assert.Equal(t, cellCross, winner)

	grid = [3][3]ticTacToeCell{}
	grid[0][2], grid[1][1], grid[2][0] = cellCross, cellCross, cellCross
	winner, ok = ticTacToeWinner(grid)
	assert.True(t, ok)
	assert.Equal(t, cellCross, winner)
}

func TestTicTacToeNoWinnerOnEmptyGrid(t *testing.T) {
	var grid [3][3]ticTacToeCell
	_, ok := ticTacToeWinner(grid)
	assert.False(t, ok)
}

func TestNormalizeScoresPadsShortVector(t *testing.T) {
	out := NormalizeScores([]float64{1, 2}, 4)
	assert.Len(t, out, 4)
	assert.Equal(t, []float64{1, 2, 1, 1}, out)
}

func TestNormalizeScoresTruncatesLongVector(t *testing.T) {
	out := NormalizeScores([]float64{1, 2, 3}, 2)
	assert.Equal(t, []float64{1, 2}, out)
}

func TestNormalizeScoresNoopWhenExact(t *testing.T) {
	out := NormalizeScores([]float64{5, 6}, 2)
	assert.Equal(t, []float64{5, 6}, out)
}

func TestLastPlaceReturnsZeroedVector(t *testing.T) {
	assert.Equal(t, []float64{0, 0, 0}, LastPlace(3))
}

func TestSnakeNumPlayersDerivedFromStarts(t *testing.T) {
	s := Snake{Rows: 5, Cols: 5, Starts: [][]Pos{{{0, 0}}, {{4, 4}}, {{2, 2}}}}
	assert.Equal(t, 3, s.NumPlayers())
}

func TestApplySnakeMove(t *testing.T) {
	p := Pos{Row: 2, Col: 2}
	assert.Equal(t, Pos{Row: 1, Col: 2}, applySnakeMove(p, moveUp))
	assert.Equal(t, Pos{Row: 3, Col: 2}, applySnakeMove(p, moveDown))
	assert.Equal(t, Pos{Row: 2, Col: 1}, applySnakeMove(p, moveLeft))
	assert.Equal(t, Pos{Row: 2, Col: 3}, applySnakeMove(p, moveRight))
}

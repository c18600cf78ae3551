package scheduler

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aiarena/engine/internal/referee"
	"github.com/aiarena/engine/internal/reporter"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

type panickyReferee struct{ n int }

func (p panickyReferee) Name() string     { return "panicky" }
func (p panickyReferee) NumPlayers() int  { return p.n }
func (p panickyReferee) Run(ctx context.Context, jobs []referee.Job, rep *reporter.MatchReporter) ([]float64, error) {
	panic("boom")
}

type errorReferee struct{ n int }

func (e errorReferee) Name() string    { return "errors" }
func (e errorReferee) NumPlayers() int { return e.n }
func (e errorReferee) Run(ctx context.Context, jobs []referee.Job, rep *reporter.MatchReporter) ([]float64, error) {
	return nil, assertErr
}

var assertErr = assertError("referee failed")

type assertError string

func (e assertError) Error() string { return string(e) }

func TestRunRefereeSafelyRecoversFromPanic(t *testing.T) {
	s := &Scheduler{logger: testLogger()}
	rep := reporter.NewRegistry(testLogger()).StartMatch("m", "panicky", []string{"a", "b"})

	scores := s.runRefereeSafely(context.Background(), testLogger(), panickyReferee{n: 3}, nil, rep)
	assert.Equal(t, []float64{0, 0, 0}, scores)
}

func TestRunRefereeSafelyHandlesError(t *testing.T) {
	s := &Scheduler{logger: testLogger()}
	rep := reporter.NewRegistry(testLogger()).StartMatch("m", "errors", []string{"a"})

	scores := s.runRefereeSafely(context.Background(), testLogger(), errorReferee{n: 2}, nil, rep)
	assert.Equal(t, []float64{0, 0}, scores)
}

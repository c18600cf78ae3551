// Package scheduler runs the cooperative match loop: on each tick it looks
// for enough idle, eligible agents to fill a registered referee's seats,
// claims a sandbox slot per seat, and launches the match without blocking
// the next tick. It is also the sole place that trusts a referee's output:
// every score vector is re-validated before it reaches rating or storage.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aiarena/engine/internal/adapters"
	"github.com/aiarena/engine/internal/pool"
	"github.com/aiarena/engine/internal/rating"
	"github.com/aiarena/engine/internal/referee"
	"github.com/aiarena/engine/internal/reporter"
	"github.com/aiarena/engine/internal/sandbox"
	"github.com/aiarena/engine/internal/store"
	"github.com/aiarena/engine/pkg/logging"
	"github.com/aiarena/engine/pkg/metrics"
)

// Config controls the scheduler's pacing and sandbox defaults.
type Config struct {
	PollInterval  time.Duration
	IsolatePath   string
	LaunchOptions sandbox.LaunchOptions
}

// Scheduler is the cooperative match-assignment loop.
type Scheduler struct {
	cfg       Config
	store     *store.Store
	pool      *pool.Pool
	adapters  *adapters.Registry
	reporter  *reporter.Registry
	metrics   *metrics.EngineMetrics
	logger    *slog.Logger
	games     map[string]referee.Referee
	sourceDir func(agentID uuid.UUID) string
}

// New creates a Scheduler. sourceDir maps an agent's persisted submission
// to the path that should be mounted read-only into its sandbox.
func New(cfg Config, st *store.Store, p *pool.Pool, ar *adapters.Registry, rep *reporter.Registry, m *metrics.EngineMetrics, logger *slog.Logger, sourceDir func(uuid.UUID) string) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		store:     st,
		pool:      p,
		adapters:  ar,
		reporter:  rep,
		metrics:   m,
		logger:    logger,
		games:     make(map[string]referee.Referee),
		sourceDir: sourceDir,
	}
}

// RegisterGame binds a referee to a game ID so the scheduler will try to
// fill its seats on every tick.
func (s *Scheduler) RegisterGame(gameID string, ref referee.Referee) {
	s.games[gameID] = ref
}

// Run blocks, ticking every cfg.PollInterval, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for gameID, ref := range s.games {
		if err := s.tryStartMatch(ctx, gameID, ref); err != nil {
			s.logger.Debug("scheduler: no match started", "game", gameID, "reason", err)
		}
	}
}

func (s *Scheduler) tryStartMatch(ctx context.Context, gameID string, ref referee.Referee) error {
	numPlayers := ref.NumPlayers()
	candidates, err := s.store.EligibleForMatch(ctx, gameID, numPlayers)
	if err != nil {
		return fmt.Errorf("query eligible agents: %w", err)
	}
	if len(candidates) < numPlayers {
		return fmt.Errorf("only %d eligible agents, need %d", len(candidates), numPlayers)
	}

	claimed := make([]*store.Agent, 0, numPlayers)
	slots := make([]int, 0, numPlayers)

	for _, a := range candidates {
		ok, err := s.store.TryMarkInGame(ctx, a.ID)
		if err != nil {
			s.releaseClaims(ctx, claimed, slots)
			panic(fmt.Sprintf("scheduler: admission gate write failed for agent %s: %v", a.ID, err))
		}
		if !ok {
			s.releaseClaims(ctx, claimed, slots)
			return fmt.Errorf("agent %s already claimed by another tick", a.ID)
		}
		claimed = append(claimed, a)

		slot, ok := s.pool.TryAcquire()
		if !ok {
			s.releaseClaims(ctx, claimed, slots)
			return fmt.Errorf("no sandbox slots available")
		}
		slots = append(slots, slot)
	}

	if s.metrics != nil {
		s.metrics.MatchesStarted.Inc()
	}
	go s.runMatch(gameID, ref, claimed, slots)
	return nil
}

func (s *Scheduler) releaseClaims(ctx context.Context, claimed []*store.Agent, slots []int) {
	for _, a := range claimed {
		if err := s.store.ClearInGame(ctx, a.ID); err != nil {
			s.logger.Error("scheduler: failed to release in_game claim", "agent", a.ID, "error", err)
		}
	}
	for _, slot := range slots {
		s.pool.Release(slot)
	}
}

// runMatch launches, plays, and scores one match. It is started in its own
// goroutine by tryStartMatch and is never awaited by the scheduling loop,
// so a slow or stuck match never delays the next tick.
func (s *Scheduler) runMatch(gameID string, ref referee.Referee, agents []*store.Agent, slots []int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	defer func() {
		for _, slot := range slots {
			s.pool.Release(slot)
		}
	}()

	numPlayers := ref.NumPlayers()
	matchID := uuid.New().String()
	players := make([]string, numPlayers)
	for i, a := range agents {
		players[i] = a.ID.String()
	}

	ctx = logging.WithMatch(ctx, matchID, gameID, ref.Name())
	log := logging.ContextLogger(ctx, s.logger)

	rep := s.reporter.StartMatch(matchID, ref.Name(), players)
	defer rep.End()

	jobs, boxes, cleanup := s.launchJobs(ctx, log, agents, slots)
	defer cleanup()

	if jobs == nil {
		if s.metrics != nil {
			s.metrics.MatchesCompleted.WithLabelValues("launch_failed").Inc()
		}
		s.finish(ctx, log, gameID, agents, referee.LastPlace(numPlayers), nil)
		return
	}

	scores := s.runRefereeSafely(ctx, log, ref, jobs, rep)
	scores = referee.NormalizeScores(scores, numPlayers)

	for _, box := range boxes {
		_ = box.Cleanup()
	}

	s.finish(ctx, log, gameID, agents, scores, jobs)
}

// runRefereeSafely runs ref.Run, converting a panic into a last-place
// result for every participant instead of letting it crash the scheduler
// or leave agents stuck in_game.
func (s *Scheduler) runRefereeSafely(ctx context.Context, log *slog.Logger, ref referee.Referee, jobs []referee.Job, rep *reporter.MatchReporter) (scores []float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("scheduler: referee panicked", "referee", ref.Name(), "panic", r)
			rep.Update("referee_panic", map[string]any{"error": fmt.Sprint(r)})
			if s.metrics != nil {
				s.metrics.MatchesCompleted.WithLabelValues("panicked").Inc()
			}
			scores = referee.LastPlace(ref.NumPlayers())
		}
	}()

	result, err := ref.Run(ctx, jobs, rep)
	if err != nil {
		log.Error("scheduler: referee returned error", "referee", ref.Name(), "error", err)
		if s.metrics != nil {
			s.metrics.MatchesCompleted.WithLabelValues("errored").Inc()
		}
		return referee.LastPlace(ref.NumPlayers())
	}
	if s.metrics != nil {
		s.metrics.MatchesCompleted.WithLabelValues("completed").Inc()
	}
	return result
}

func (s *Scheduler) launchJobs(ctx context.Context, log *slog.Logger, agents []*store.Agent, slots []int) ([]referee.Job, []*sandbox.Box, func()) {
	jobs := make([]referee.Job, 0, len(agents))
	boxes := make([]*sandbox.Box, 0, len(agents))

	cleanup := func() {
		for _, j := range jobs {
			_ = j.Proc.Close()
		}
		for _, b := range boxes {
			_ = b.Cleanup()
		}
	}

	for i, a := range agents {
		lang, err := s.adapters.Get(a.Language)
		if err != nil {
			log.Error("scheduler: no language adapter", "agent", a.ID, "error", err)
			cleanup()
			return nil, nil, func() {}
		}

		box := sandbox.NewBox(s.cfg.IsolatePath, slots[i], log)
		if err := box.Initialize(); err != nil {
			log.Error("scheduler: sandbox init failed", "agent", a.ID, "error", err)
			cleanup()
			return nil, nil, func() {}
		}
		boxes = append(boxes, box)

		dir := s.sourceDir(a.ID)
		opts := s.cfg.LaunchOptions
		opts.Dirs = append(append([]sandbox.DirMapping(nil), opts.Dirs...), sandbox.FullDir(dir))
		program, args := lang.LaunchCommand(dir)
		proc, err := box.Launch(program, args, opts)
		if err != nil {
			log.Error("scheduler: launch failed", "agent", a.ID, "error", err)
			cleanup()
			return nil, nil, func() {}
		}

		jobs = append(jobs, referee.Job{Seat: i, Proc: proc})
	}

	return jobs, boxes, cleanup
}

// finish applies the rating update, persists results, and releases every
// admission claim regardless of how the match ended. This is the only
// path out of runMatch, so in_game is always cleared. jobs is nil when the
// match never launched; otherwise it is parallel to agents and is
// inspected for a referee-attributed crash before cleanup closes it.
func (s *Scheduler) finish(ctx context.Context, log *slog.Logger, gameID string, agents []*store.Agent, scores []float64, jobs []referee.Job) {
	results := make([]rating.Result, len(agents))
	for i, a := range agents {
		results[i] = rating.Result{Rating: a.Rating, Score: scores[i]}
	}
	deltas := rating.Update(results)

	for i, a := range agents {
		if err := s.store.RecordResult(ctx, a.ID, deltas[i], scores[i]); err != nil {
			log.Error("scheduler: failed to record result", "agent", a.ID, "game", gameID, "error", err)
		}
		if err := s.store.ClearInGame(ctx, a.ID); err != nil {
			log.Error("scheduler: failed to clear in_game", "agent", a.ID, "game", gameID, "error", err)
		}
		if jobs == nil {
			continue
		}
		if cause := jobs[i].Proc.Err(); cause != nil {
			detail := fmt.Sprintf("%v\n%s", cause, jobs[i].Proc.Stderr())
			if err := s.store.MarkCrashed(ctx, a.ID, detail); err != nil {
				log.Error("scheduler: failed to record crash", "agent", a.ID, "game", gameID, "error", err)
			}
		}
	}
}

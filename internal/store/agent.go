// Package store persists agent submissions: their rating, aggregate score,
// match count, and admission-control flags, atop the database connection
// pool in pkg/database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aiarena/engine/internal/rating"
	"github.com/aiarena/engine/pkg/database"
)

// ErrNotFound is returned when an agent ID has no matching row.
var ErrNotFound = errors.New("store: agent not found")

// Agent is one tournament participant's persisted state.
type Agent struct {
	ID          uuid.UUID
	Name        string
	GameID      string
	Language    string
	SourcePath  string
	Rating      float64
	Score       float64
	GamesPlayed int
	InGame      bool
	Removed     bool
	Partial     bool
	// ErrorFile holds the compiler or runtime failure text captured for
	// this agent, if any: a failed Prepare, or a job that set an error
	// during a match. Nil means no failure has been recorded.
	ErrorFile *string
	// Color is the display color spectators see for this agent's pieces
	// or snake body in the event stream, assigned at submission time.
	Color     string
	OwnerID   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is a SQL-backed repository of Agent rows.
type Store struct {
	db *database.Connection
}

// New wraps a database connection as a Store.
func New(db *database.Connection) *Store {
	return &Store{db: db}
}

const upsertAgentQuery = `
	INSERT INTO agents (id, name, game_id, language, source_path, rating, score, games_played,
		in_game, removed, partial, error_file, color, owner_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		game_id = EXCLUDED.game_id,
		language = EXCLUDED.language,
		source_path = EXCLUDED.source_path,
		rating = EXCLUDED.rating,
		score = EXCLUDED.score,
		games_played = EXCLUDED.games_played,
		in_game = EXCLUDED.in_game,
		removed = EXCLUDED.removed,
		partial = EXCLUDED.partial,
		error_file = EXCLUDED.error_file,
		color = EXCLUDED.color,
		owner_id = EXCLUDED.owner_id,
		updated_at = EXCLUDED.updated_at
`

// Save inserts or updates an agent row.
func (s *Store) Save(ctx context.Context, a *Agent) error {
	_, err := s.db.ExecContext(ctx, upsertAgentQuery,
		a.ID.String(), a.Name, a.GameID, a.Language, a.SourcePath, a.Rating, a.Score, a.GamesPlayed,
		a.InGame, a.Removed, a.Partial, a.ErrorFile, a.Color, a.OwnerID, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

// Create inserts a brand new agent with the pool's default rating. The
// agent starts Partial: it is not schedulable until a LanguageAdapter has
// successfully prepared its source (see internal/adapters).
func (s *Store) Create(ctx context.Context, name, gameID, language, sourcePath, color string, ownerID *string) (*Agent, error) {
	now := time.Now().UTC()
	a := &Agent{
		ID:         uuid.New(),
		Name:       name,
		GameID:     gameID,
		Language:   language,
		SourcePath: sourcePath,
		Rating:     rating.DefaultRating,
		Partial:    true,
		Color:      color,
		OwnerID:    ownerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

const selectAgentColumns = `id, name, game_id, language, source_path, rating, score, games_played,
	in_game, removed, partial, error_file, color, owner_id, created_at, updated_at`

func scanAgent(row interface{ Scan(...interface{}) error }) (*Agent, error) {
	var a Agent
	var id string
	if err := row.Scan(&id, &a.Name, &a.GameID, &a.Language, &a.SourcePath, &a.Rating, &a.Score,
		&a.GamesPlayed, &a.InGame, &a.Removed, &a.Partial, &a.ErrorFile, &a.Color, &a.OwnerID,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	a.ID = parsed
	return &a, nil
}

// Get retrieves a single agent by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectAgentColumns+" FROM agents WHERE id = $1", id.String())
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// randomOrderKeyword returns the driver's function for ordering rows
// randomly: RANDOM() on sqlite and postgres, RAND() on mysql.
func randomOrderKeyword(driver string) string {
	if driver == "mysql" {
		return "RAND()"
	}
	return "RANDOM()"
}

// EligibleForMatch returns up to limit agents for gameID that are not
// removed, not already in a match, and not a partial (schema-only)
// submission, in random order: the scheduler draws an unbiased sample of
// the pool rather than always pairing the same closely rated agents.
func (s *Store) EligibleForMatch(ctx context.Context, gameID string, limit int) ([]*Agent, error) {
	query := "SELECT " + selectAgentColumns + ` FROM agents
		WHERE game_id = $1 AND removed = false AND in_game = false AND partial = false
		ORDER BY ` + randomOrderKeyword(s.db.Driver()) + ` LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, gameID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// TryMarkInGame atomically transitions an agent from in_game=false to
// in_game=true, returning false if another scheduler tick already claimed
// it first. This is the sole admission gate into a match.
func (s *Store) TryMarkInGame(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE agents SET in_game = true, updated_at = $2 WHERE id = $1 AND in_game = false AND removed = false",
		id.String(), time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ClearInGame releases an agent's in_game flag. Called unconditionally
// after a match finishes, including on referee panic, so a crash never
// leaves an agent stuck unschedulable.
func (s *Store) ClearInGame(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE agents SET in_game = false, updated_at = $2 WHERE id = $1",
		id.String(), time.Now().UTC())
	return err
}

// RecordResult applies a rating delta and score/game-count increment after
// a completed match.
func (s *Store) RecordResult(ctx context.Context, id uuid.UUID, ratingDelta, scoreDelta float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE agents SET rating = rating + $2, score = score + $3, games_played = games_played + 1,
			updated_at = $4 WHERE id = $1`,
		id.String(), ratingDelta, scoreDelta, time.Now().UTC())
	return err
}

// MarkRemoved soft-deletes an agent so it is never scheduled again.
func (s *Store) MarkRemoved(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE agents SET removed = true, updated_at = $2 WHERE id = $1",
		id.String(), time.Now().UTC())
	return err
}

// ClearPartial marks an agent schedulable after its LanguageAdapter has
// successfully prepared its source.
func (s *Store) ClearPartial(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE agents SET partial = false, updated_at = $2 WHERE id = $1",
		id.String(), time.Now().UTC())
	return err
}

// MarkCrashed persists the captured failure text for an agent and removes
// it from future matches in the same update, for a job that set an error
// during a match or a Prepare that failed outright.
func (s *Store) MarkCrashed(ctx context.Context, id uuid.UUID, errorText string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE agents SET removed = true, error_file = $2, updated_at = $3 WHERE id = $1",
		id.String(), errorText, time.Now().UTC())
	return err
}

// AllPaths returns, for every agent row regardless of removed status, the
// set of filesystem paths the workspace sweep must treat as referenced:
// each agent's source directory name (its own ID, the workspace layout
// used by cmd/tournament-engine) plus any error-file path recorded for it.
func (s *Store) AllPaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, source_path, error_file FROM agents")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var id, sourcePath string
		var errorFile *string
		if err := rows.Scan(&id, &sourcePath, &errorFile); err != nil {
			return nil, err
		}
		paths = append(paths, id, sourcePath)
		if errorFile != nil {
			paths = append(paths, *errorFile)
		}
	}
	return paths, rows.Err()
}

// Package submission turns a raw source-code upload into a schedulable
// agent: it records the submission immediately as Partial, then runs the
// language's Prepare step in the background and flips the agent to ready
// or removed once that finishes, mirroring the fire-and-forget compile
// step a submitter's HTTP request never blocks on.
package submission

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/aiarena/engine/internal/adapters"
	"github.com/aiarena/engine/internal/pool"
	"github.com/aiarena/engine/internal/schema"
	"github.com/aiarena/engine/internal/store"
	"github.com/aiarena/engine/pkg/logging"
)

// Intake accepts new agent submissions for a fixed set of schema-defined
// games.
type Intake struct {
	store         *store.Store
	adapters      *adapters.Registry
	pool          *pool.Pool
	schemas       map[string]schema.Interface
	workspaceRoot string
	logger        *slog.Logger
}

// New creates an Intake. schemas maps a game ID to its reduced interface,
// as loaded from each config.GameEntry.SchemaPath at startup.
func New(st *store.Store, ar *adapters.Registry, p *pool.Pool, schemas map[string]schema.Interface, workspaceRoot string, logger *slog.Logger) *Intake {
	return &Intake{
		store:         st,
		adapters:      ar,
		pool:          p,
		schemas:       schemas,
		workspaceRoot: workspaceRoot,
		logger:        logger,
	}
}

// Submit records a new agent and returns it immediately, Partial and not
// yet schedulable. Preparing the source (writing it into the workspace,
// compiling it if the language needs that) happens in the background.
func (in *Intake) Submit(ctx context.Context, name, gameID, language, color, srcText string, ownerID *string) (*store.Agent, error) {
	iface, ok := in.schemas[gameID]
	if !ok {
		return nil, fmt.Errorf("submission: unknown game %q", gameID)
	}
	lang, err := in.adapters.Get(language)
	if err != nil {
		return nil, err
	}

	agent, err := in.store.Create(ctx, name, gameID, language, "", color, ownerID)
	if err != nil {
		return nil, fmt.Errorf("submission: create agent: %w", err)
	}

	workdir := filepath.Join(in.workspaceRoot, agent.ID.String())
	agent.SourcePath = workdir
	if err := in.store.Save(ctx, agent); err != nil {
		return nil, fmt.Errorf("submission: record source path: %w", err)
	}

	go in.prepare(context.WithoutCancel(ctx), agent.ID, lang, srcText, workdir, iface)

	return agent, nil
}

// prepare runs a language's Prepare step and settles the agent's Partial
// state accordingly. It is always run in its own goroutine by Submit, never
// on the request path, since a compile can take far longer than an HTTP
// caller should have to wait.
func (in *Intake) prepare(ctx context.Context, id uuid.UUID, lang adapters.LanguageAdapter, srcText, workdir string, iface schema.Interface) {
	ctx = logging.WithAgent(ctx, id.String())
	log := logging.ContextLogger(ctx, in.logger)

	errorText, err := lang.Prepare(ctx, srcText, workdir, iface, in.pool)
	if err != nil {
		log.Error("submission: prepare failed", "error", err)
		if merr := in.store.MarkCrashed(ctx, id, err.Error()); merr != nil {
			log.Error("submission: failed to record prepare failure", "error", merr)
		}
		return
	}
	if errorText != "" {
		log.Warn("submission: rejected, compile failed")
		if merr := in.store.MarkCrashed(ctx, id, errorText); merr != nil {
			log.Error("submission: failed to record compile error", "error", merr)
		}
		return
	}
	if err := in.store.ClearPartial(ctx, id); err != nil {
		log.Error("submission: failed to clear partial", "error", err)
	}
}

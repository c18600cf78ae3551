// Package adapters maps a submitted agent's source language to the
// concrete launch command and generated-codec target needed to run it
// inside a sandbox. Adding a new language means implementing and
// registering one LanguageAdapter; nothing in the scheduler changes.
package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aiarena/engine/internal/codec"
	"github.com/aiarena/engine/internal/pool"
	"github.com/aiarena/engine/internal/sandbox"
	"github.com/aiarena/engine/internal/schema"
)

// LanguageAdapter knows how to prepare one source language for execution
// inside a sandboxed job.
type LanguageAdapter interface {
	// Language returns the identifier this adapter handles, e.g. "go" or
	// "python".
	Language() string

	// CodecTarget is the internal/codec.Target that generates this
	// language's wire-protocol bindings.
	CodecTarget() codec.Target

	// RequiredFiles lists the file names an agent submission must contain
	// for this language (e.g. a main entry point), relative to the
	// submission's source directory.
	RequiredFiles() []string

	// LaunchCommand returns the program and arguments isolate should run
	// inside the sandbox to start the agent, given the path to the
	// agent's source directory as mapped inside the sandbox.
	LaunchCommand(sandboxSourceDir string) (program string, args []string)

	// Prepare turns a submitted source text into whatever workdir must
	// contain for LaunchCommand to run it: an interpreted language just
	// writes the source and its generated codec bindings, while a
	// compiled language checks a sandbox out of p, compiles the source
	// under a bounded resource budget, and writes the resulting binary.
	// A non-empty errorText means the submission itself is bad (a
	// compile failure) and should be reported back to the submitter,
	// not retried; a non-nil err means Prepare itself failed
	// (filesystem, sandbox, or pool trouble) independent of the
	// submission's validity.
	Prepare(ctx context.Context, srcText, workdir string, iface schema.Interface, p *pool.Pool) (errorText string, err error)
}

// writeGeneratedFiles renders iface's wire-protocol bindings for target and
// writes them into dir alongside the submitted source.
func writeGeneratedFiles(dir string, iface schema.Interface, target codec.Target) error {
	files, err := codec.Generate(iface, target)
	if err != nil {
		return fmt.Errorf("adapters: generate bindings: %w", err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
			return fmt.Errorf("adapters: write %s: %w", name, err)
		}
	}
	return nil
}

// Registry maps language identifiers to their LanguageAdapter.
type Registry struct {
	adapters map[string]LanguageAdapter
}

// NewRegistry creates a Registry pre-populated with the built-in Go and
// Python adapters. isolatePath and logger are threaded into GoAdapter,
// which needs its own sandbox to compile submissions in.
func NewRegistry(isolatePath string, logger *slog.Logger) *Registry {
	r := &Registry{adapters: make(map[string]LanguageAdapter)}
	r.Register(GoAdapter{IsolatePath: isolatePath, Logger: logger})
	r.Register(PythonAdapter{})
	return r
}

// Register adds or replaces the adapter for its own Language().
func (r *Registry) Register(a LanguageAdapter) {
	r.adapters[a.Language()] = a
}

// Get returns the adapter for language, or an error if none is registered.
// Unlike the game-adapter registry this is modeled on, there is no sane
// default adapter for an unknown language: launching untrusted code with
// the wrong interpreter is unsafe, so an unrecognized language must be a
// hard submission-time error rather than a silent fallback.
func (r *Registry) Get(language string) (LanguageAdapter, error) {
	a, ok := r.adapters[language]
	if !ok {
		return nil, fmt.Errorf("adapters: no language adapter registered for %q", language)
	}
	return a, nil
}

// Languages returns every registered language identifier.
func (r *Registry) Languages() []string {
	out := make([]string, 0, len(r.adapters))
	for lang := range r.adapters {
		out = append(out, lang)
	}
	return out
}

// GoAdapter compiles a submitted Go source file into an agent binary
// before it can ever be launched. IsolatePath and Logger mirror the
// scheduler's own sandbox wiring, since compiling untrusted source is just
// as dangerous as running it.
type GoAdapter struct {
	IsolatePath string
	Logger      *slog.Logger
}

// Language implements LanguageAdapter.
func (GoAdapter) Language() string { return "go" }

// CodecTarget implements LanguageAdapter.
func (GoAdapter) CodecTarget() codec.Target { return codec.TargetGo }

// RequiredFiles implements LanguageAdapter.
func (GoAdapter) RequiredFiles() []string { return []string{"agent"} }

// LaunchCommand implements LanguageAdapter.
func (GoAdapter) LaunchCommand(sandboxSourceDir string) (string, []string) {
	return sandboxSourceDir + "/agent", nil
}

// Prepare implements LanguageAdapter. It writes the submission and its
// generated codec bindings into a source subdirectory, checks a sandbox
// slot out of p, and runs `go build` inside it with a generous but bounded
// resource budget. On a nonzero exit, the compiler's stderr becomes
// errorText; a clean build leaves the "agent" binary in workdir for
// LaunchCommand to run later inside a match sandbox.
func (a GoAdapter) Prepare(ctx context.Context, srcText, workdir string, iface schema.Interface, p *pool.Pool) (string, error) {
	srcDir := filepath.Join(workdir, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return "", fmt.Errorf("adapters: create source dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "main.go"), []byte(srcText), 0o644); err != nil {
		return "", fmt.Errorf("adapters: write source: %w", err)
	}
	if err := writeGeneratedFiles(srcDir, iface, codec.TargetGo); err != nil {
		return "", err
	}

	slot, err := p.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("adapters: acquire sandbox slot: %w", err)
	}
	defer p.Release(slot)

	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	box := sandbox.NewBox(a.IsolatePath, slot, logger)
	if err := box.Initialize(); err != nil {
		return "", fmt.Errorf("adapters: init compile sandbox: %w", err)
	}
	defer func() { _ = box.Cleanup() }()

	opts := sandbox.LaunchOptions{
		MemoryLimitKB:  1024 * 1024,
		TimeLimit:      30 * time.Second,
		ExtraTime:      5 * time.Second,
		MaxProcesses:   sandbox.MaxProcesses{Unlimited: true},
		StderrMaxBytes: 64 * 1024,
		Dirs: []sandbox.DirMapping{
			sandbox.NamedDir("/src", srcDir),
			sandbox.NamedDir("/out", workdir, sandbox.DirReadWrite),
		},
	}

	job, err := box.Launch("/usr/local/go/bin/go",
		[]string{"build", "-o", "/out/agent", "/src/main.go"}, opts)
	if err != nil {
		return "", fmt.Errorf("adapters: launch compiler: %w", err)
	}
	defer func() { _ = job.Close() }()

	if waitErr := job.Wait(); waitErr != nil {
		return job.Stderr(), nil
	}
	return "", nil
}

// PythonAdapter launches an agent's main.py under a CPython interpreter.
type PythonAdapter struct {
	// Interpreter overrides the default "python3" binary. Mainly useful
	// for tests that pin an interpreter path.
	Interpreter string
}

// Language implements LanguageAdapter.
func (PythonAdapter) Language() string { return "python" }

// CodecTarget implements LanguageAdapter.
func (PythonAdapter) CodecTarget() codec.Target { return codec.TargetPython }

// RequiredFiles implements LanguageAdapter.
func (PythonAdapter) RequiredFiles() []string { return []string{"main.py"} }

// LaunchCommand implements LanguageAdapter.
func (p PythonAdapter) LaunchCommand(sandboxSourceDir string) (string, []string) {
	interpreter := p.Interpreter
	if interpreter == "" {
		interpreter = "python3"
	}
	return interpreter, []string{sandboxSourceDir + "/main.py"}
}

// Prepare implements LanguageAdapter. Python is interpreted, so there is
// nothing to compile and no sandbox slot to acquire: the submission and its
// generated bindings just need to land on disk where LaunchCommand expects
// them.
func (PythonAdapter) Prepare(ctx context.Context, srcText, workdir string, iface schema.Interface, p *pool.Pool) (string, error) {
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return "", fmt.Errorf("adapters: create workdir: %w", err)
	}
	if err := writeGeneratedFiles(workdir, iface, codec.TargetPython); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(workdir, "main.py"), []byte(srcText), 0o644); err != nil {
		return "", fmt.Errorf("adapters: write source: %w", err)
	}
	return "", nil
}

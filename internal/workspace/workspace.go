// Package workspace allocates unique scratch files and directories for
// sandboxed jobs under a single root, and sweeps that root clean on
// startup so a crashed prior run never leaks files into new matches.
package workspace

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const nameLength = 20

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomName() (string, error) {
	buf := make([]byte, nameLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("workspace: generate random name: %w", err)
	}
	out := make([]byte, nameLength)
	for i, b := range buf {
		out[i] = alphanumeric[int(b)%len(alphanumeric)]
	}
	return string(out), nil
}

// Manager allocates scratch files rooted at a single directory.
type Manager struct {
	root   string
	logger *slog.Logger
}

// New creates a Manager rooted at root, creating the directory if needed.
func New(root string, logger *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create root %s: %w", root, err)
	}
	return &Manager{root: root, logger: logger}, nil
}

// Sweep deletes every top-level entry under the workspace root whose name
// does not match the basename of one of the given referenced paths (an
// agent's directory, error_file, or source_file, as recorded in the
// store). Call once at startup, before any File is allocated, so only
// leftovers with no live agent referencing them are removed — every
// retained path must still be referenced.
func (m *Manager) Sweep(referenced []string) error {
	keep := make(map[string]bool, len(referenced))
	for _, p := range referenced {
		keep[filepath.Base(p)] = true
	}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		return fmt.Errorf("workspace: sweep %s: %w", m.root, err)
	}
	for _, e := range entries {
		if keep[e.Name()] {
			continue
		}
		full := filepath.Join(m.root, e.Name())
		if err := os.RemoveAll(full); err != nil {
			m.logger.Warn("workspace: failed to remove stale entry", "path", full, "error", err)
		}
	}
	return nil
}

// Root returns the workspace's root directory.
func (m *Manager) Root() string { return m.root }

// File is a uniquely named scratch file. Unless Freeze is called, its
// backing file is removed when Close runs.
type File struct {
	path    string
	frozen  bool
	mu      sync.Mutex
	logger  *slog.Logger
	removed bool
}

// NewFile allocates a new uniquely named file under the manager's root,
// optionally suffixed by extra (e.g. a file extension including the dot).
func (m *Manager) NewFile(extra string) (*File, error) {
	name, err := randomName()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(m.root, name+extra)
	return &File{path: path, logger: m.logger}, nil
}

// Path returns the file's absolute path. The file itself is created lazily
// by the first writer (isolate, the sandboxed process, etc), mirroring the
// original temp-file allocator which only ever reserves a name.
func (f *File) Path() string { return f.path }

// Freeze marks the file as permanent: Close will no longer delete it. Used
// for artifacts (replays, crash dumps) that should survive the job.
func (f *File) Freeze() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frozen = true
}

// Close removes the backing file unless Freeze was called. Safe to call
// more than once.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frozen || f.removed {
		return nil
	}
	f.removed = true
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		f.logger.Warn("workspace: failed to remove temp file", "path", f.path, "error", err)
		return err
	}
	return nil
}

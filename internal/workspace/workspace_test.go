package workspace

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestNewFileUniqueNames(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir, testLogger())
	require.NoError(t, err)

	a, err := m.NewFile(".bin")
	require.NoError(t, err)
	b, err := m.NewFile(".bin")
	require.NoError(t, err)

	assert.NotEqual(t, a.Path(), b.Path())
	assert.Equal(t, dir, filepath.Dir(a.Path()))
}

func TestCloseRemovesUnlessFrozen(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir, testLogger())
	require.NoError(t, err)

	f, err := m.NewFile("")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.Path(), []byte("data"), 0o644))
	require.NoError(t, f.Close())
	_, err = os.Stat(f.Path())
	assert.True(t, os.IsNotExist(err))

	frozen, err := m.NewFile("")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(frozen.Path(), []byte("data"), 0o644))
	frozen.Freeze()
	require.NoError(t, frozen.Close())
	_, err = os.Stat(frozen.Path())
	assert.NoError(t, err)
}

func TestSweepRemovesUnreferencedEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("x"), 0o644))

	m, err := New(dir, testLogger())
	require.NoError(t, err)
	require.NoError(t, m.Sweep(nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSweepKeepsReferencedEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "live-agent"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("x"), 0o644))

	m, err := New(dir, testLogger())
	require.NoError(t, err)
	require.NoError(t, m.Sweep([]string{"live-agent"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "live-agent", entries[0].Name())
}

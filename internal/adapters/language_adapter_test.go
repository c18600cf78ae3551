package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiarena/engine/internal/codec"
	"github.com/aiarena/engine/internal/schema"
)

func testInterface() schema.Interface {
	return schema.Interface{
		Name: "tic_tac_toe",
		Types: []schema.NamedType{
			{Name: "Move", Type: schema.Type{Kind: schema.KindStruct, Fields: []schema.StructField{
				{Name: "row", Type: schema.Type{Kind: schema.KindBuiltin, Builtin: schema.U8}},
			}}},
		},
	}
}

func TestRegistryResolvesBuiltins(t *testing.T) {
	r := NewRegistry("/usr/bin/isolate", nil)

	goAdapter, err := r.Get("go")
	require.NoError(t, err)
	assert.Equal(t, codec.TargetGo, goAdapter.CodecTarget())

	pyAdapter, err := r.Get("python")
	require.NoError(t, err)
	assert.Equal(t, codec.TargetPython, pyAdapter.CodecTarget())
}

func TestRegistryUnknownLanguageErrors(t *testing.T) {
	r := NewRegistry("/usr/bin/isolate", nil)
	_, err := r.Get("rust")
	assert.Error(t, err)
}

func TestPythonLaunchCommandDefaultsInterpreter(t *testing.T) {
	program, args := PythonAdapter{}.LaunchCommand("/box/src")
	assert.Equal(t, "python3", program)
	assert.Equal(t, []string{"/box/src/main.py"}, args)
}

func TestGoLaunchCommandRunsAgentBinary(t *testing.T) {
	program, args := GoAdapter{}.LaunchCommand("/box/src")
	assert.Equal(t, "/box/src/agent", program)
	assert.Empty(t, args)
}

func TestPythonPrepareWritesSourceAndBindings(t *testing.T) {
	dir := t.TempDir()
	errorText, err := PythonAdapter{}.Prepare(context.Background(), "print('hi')", dir, testInterface(), nil)
	require.NoError(t, err)
	assert.Empty(t, errorText)

	src, err := os.ReadFile(filepath.Join(dir, "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('hi')", string(src))

	_, err = os.Stat(filepath.Join(dir, "tic_tac_toe_codec.py"))
	assert.NoError(t, err)
}

func TestRegisterOverridesExistingAdapter(t *testing.T) {
	r := NewRegistry("/usr/bin/isolate", nil)
	r.Register(PythonAdapter{Interpreter: "pypy3"})
	a, err := r.Get("python")
	require.NoError(t, err)
	program, _ := a.LaunchCommand("/x")
	assert.Equal(t, "pypy3", program)
}

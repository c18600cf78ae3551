package submission

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aiarena/engine/internal/adapters"
	"github.com/aiarena/engine/internal/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestSubmitRejectsUnknownGame(t *testing.T) {
	in := New(nil, adapters.NewRegistry("/usr/bin/isolate", testLogger()), nil, map[string]schema.Interface{}, "/tmp/workspace", testLogger())

	_, err := in.Submit(context.Background(), "bot", "connect_four", "python", "red", "print()", nil)
	assert.ErrorContains(t, err, "unknown game")
}

func TestSubmitRejectsUnknownLanguage(t *testing.T) {
	schemas := map[string]schema.Interface{"tic_tac_toe": {Name: "tic_tac_toe"}}
	in := New(nil, adapters.NewRegistry("/usr/bin/isolate", testLogger()), nil, schemas, "/tmp/workspace", testLogger())

	_, err := in.Submit(context.Background(), "bot", "tic_tac_toe", "rust", "red", "fn main() {}", nil)
	assert.ErrorContains(t, err, "no language adapter registered")
}

package reporter

import (
	"bufio"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestMatchFilterMatching(t *testing.T) {
	assert.True(t, Any().matches([]string{"a", "b"}))
	assert.True(t, WithPlayer("b").matches([]string{"a", "b"}))
	assert.False(t, WithPlayer("c").matches([]string{"a", "b"}))
}

func TestSubscribeReceivesConnectAndUpdate(t *testing.T) {
	reg := NewRegistry(testLogger())

	req := httptest.NewRequest(http.MethodGet, "/spectate", nil)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		reg.ServeHTTP(rec, req)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	mr := reg.StartMatch("m1", "tic_tac_toe", []string{"alice", "bob"})
	mr.Update("move", map[string]int{"row": 1, "col": 2})
	time.Sleep(10 * time.Millisecond)
	mr.End()
	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	assert.Contains(t, body, `"kind":"connect"`)
	assert.Contains(t, body, `"kind":"update"`)
	assert.Contains(t, body, `"kind":"end"`)
}

func TestLateSubscriberReplaysHistory(t *testing.T) {
	reg := NewRegistry(testLogger())
	mr := reg.StartMatch("m2", "snake", []string{"carol"})
	mr.Update("tick", 1)
	mr.Update("tick", 2)

	req := httptest.NewRequest(http.MethodGet, "/spectate?player=carol", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 50*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	reg.ServeHTTP(rec, req)

	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	count := 0
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "data: ") {
			count++
		}
	}
	require.GreaterOrEqual(t, count, 3)
}

package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := New(2)
	assert.Equal(t, 2, p.Available())

	a, ok := p.TryAcquire()
	require.True(t, ok)
	b, ok := p.TryAcquire()
	require.True(t, ok)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 0, p.Available())

	_, ok = p.TryAcquire()
	assert.False(t, ok)

	p.Release(a)
	assert.Equal(t, 1, p.Available())
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	p := New(1)
	idx, _ := p.TryAcquire()

	released := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Release(idx)
		close(released)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, idx, got)
	<-released
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	p := New(1)
	_, _ = p.TryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReleaseOfUnheldSlotPanics(t *testing.T) {
	p := New(1)
	assert.Panics(t, func() { p.Release(0) })
}

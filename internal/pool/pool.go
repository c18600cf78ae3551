// Package pool implements a fixed-capacity slot allocator: a bounded set
// of integer slot IDs (0..N) handed out on request and returned on release.
// It backs the sandbox box-ID allocator, so the number of concurrently
// running sandboxes never exceeds the configured concurrency limit.
package pool

import (
	"context"
	"fmt"
	"sync"
)

// Pool hands out slot indices in [0, capacity) to at most `capacity`
// concurrent holders. It is safe for concurrent use.
type Pool struct {
	mu        sync.Mutex
	cond      *sync.Cond
	free      []int
	inUse     map[int]bool
	capacity  int
	waitCount int
}

// New creates a Pool with the given capacity, all slots initially free.
func New(capacity int) *Pool {
	if capacity <= 0 {
		panic(fmt.Sprintf("pool: capacity must be positive, got %d", capacity))
	}
	free := make([]int, capacity)
	for i := range free {
		free[i] = capacity - 1 - i
	}
	p := &Pool{free: free, inUse: make(map[int]bool, capacity), capacity: capacity}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Capacity returns the pool's total slot count.
func (p *Pool) Capacity() int { return p.capacity }

// Available returns the number of currently free slots.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// TryAcquire returns a free slot index without blocking. ok is false if
// the pool is currently exhausted.
func (p *Pool) TryAcquire() (index int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquireLocked()
}

func (p *Pool) acquireLocked() (int, bool) {
	if len(p.free) == 0 {
		return 0, false
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.inUse[idx] = true
	return idx, true
}

// Acquire blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (int, error) {
	if idx, ok := p.TryAcquire(); ok {
		return idx, nil
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.waitCount++
	defer func() { p.waitCount-- }()

	for {
		if idx, ok := p.acquireLocked(); ok {
			return idx, nil
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		p.cond.Wait()
	}
}

// Release returns index to the pool. Releasing an index not currently held
// is a programming error and panics, mirroring the original freelist's
// debug assertion.
func (p *Pool) Release(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.inUse[index] {
		panic(fmt.Sprintf("pool: release of slot %d that was not acquired", index))
	}
	delete(p.inUse, index)
	p.free = append(p.free, index)
	p.cond.Broadcast()
}

// Waiters reports how many goroutines are currently blocked in Acquire.
// Useful for metrics (pool wait counters).
func (p *Pool) Waiters() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitCount
}

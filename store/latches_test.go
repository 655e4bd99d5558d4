package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireSortsAndDedupes(t *testing.T) {
	l := NewLatches()
	held := l.Acquire(200, 100, 200)
	assert.Equal(t, []int32{100, 200}, held)
	l.Release(held)
}

func TestAcquireBlocksOverlap(t *testing.T) {
	l := NewLatches()
	held := l.Acquire(1, 2)

	entered := make(chan struct{})
	go func() {
		h := l.Acquire(2, 3)
		close(entered)
		l.Release(h)
	}()

	select {
	case <-entered:
		t.Fatal("overlapping acquire should block while 2 is held")
	case <-time.After(50 * time.Millisecond):
	}

	l.Release(held)
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("acquire did not proceed after release")
	}
}

// Opposing two-key acquisitions must not deadlock: both callers take the
// lower key first regardless of argument order.
func TestOpposingAcquireNoDeadlock(t *testing.T) {
	l := NewLatches()
	const iters = 500
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < iters; i++ {
			h := l.Acquire(1, 2)
			l.Release(h)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iters; i++ {
			h := l.Acquire(2, 1)
			l.Release(h)
		}
	}()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("deadlock between opposing acquisitions")
	}
}

func TestDisjointAcquireConcurrent(t *testing.T) {
	l := NewLatches()
	h1 := l.Acquire(1, 2)

	done := make(chan struct{})
	go func() {
		h2 := l.Acquire(3, 4)
		l.Release(h2)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disjoint key sets should not contend")
	}
	l.Release(h1)
	require.NotNil(t, h1)
}

package store

import (
	"sort"
	"sync"
)

// Latches is a keyed lock table. Before mutating a record a caller must hold
// the latch for that record's key. Latches are created on demand and never
// discarded, so the table is bounded by the number of distinct keys.
//
// Acquire locks keys in ascending order. That single total order across all
// callers is the deadlock-avoidance rule: any operation holding latches on
// two records took the lower key first, so no cycle of waiting goroutines
// can form. Every multi-record code path must go through Acquire rather than
// latching keys one by one.
type Latches struct {
	guard sync.Mutex
	m     map[int32]*sync.Mutex
}

// NewLatches returns an empty latch table.
func NewLatches() *Latches {
	return &Latches{m: make(map[int32]*sync.Mutex)}
}

func (l *Latches) latch(key int32) *sync.Mutex {
	l.guard.Lock()
	defer l.guard.Unlock()
	mu, ok := l.m[key]
	if !ok {
		mu = new(sync.Mutex)
		l.m[key] = mu
	}
	return mu
}

// Acquire blocks until the latches for all keys are held. Duplicate keys are
// collapsed; the deduplicated, sorted key set is returned and must be passed
// unchanged to Release.
func (l *Latches) Acquire(keys ...int32) []int32 {
	sorted := append([]int32(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	dedup := sorted[:0]
	for i, k := range sorted {
		if i == 0 || k != sorted[i-1] {
			dedup = append(dedup, k)
		}
	}
	for _, k := range dedup {
		l.latch(k).Lock()
	}
	return dedup
}

// Release unlocks the latches acquired by Acquire, in reverse order.
func (l *Latches) Release(keys []int32) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.latch(keys[i]).Unlock()
	}
}

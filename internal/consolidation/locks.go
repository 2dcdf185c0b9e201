package consolidation

import "sync"

// recordLocks serializes engine operations that touch the same staging
// record. Edit-then-sync and delete-then-undo are two-step sequences
// that must not interleave with a concurrent mutation of the same
// record; unrelated records proceed in parallel.
type recordLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRecordLocks() *recordLocks {
	return &recordLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the per-record mutex, creating it on first use, and
// returns the unlock func.
func (r *recordLocks) lock(id string) func() {
	r.mu.Lock()
	m, ok := r.locks[id]
	if !ok {
		m = &sync.Mutex{}
		r.locks[id] = m
	}
	r.mu.Unlock()

	m.Lock()
	return m.Unlock
}

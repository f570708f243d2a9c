package template

import (
	"sync"
	"time"
)

const (
	// lockTablePruneThreshold is the lock-table size above which idle
	// entries are pruned on the next acquire.
	lockTablePruneThreshold = 256
	// lockIdleTTL is how long a per-file lock must sit unused before it
	// is eligible for pruning.
	lockIdleTTL = 10 * time.Minute
)

type fileLock struct {
	mu       sync.Mutex
	lastUsed time.Time
}

// fileLocks serializes reloads of the same file while letting unrelated
// files reload concurrently. The table itself is bounded: once it grows
// past the threshold, locks untouched for lockIdleTTL are dropped.
type fileLocks struct {
	mu    sync.Mutex
	locks map[string]*fileLock
}

func newFileLocks() *fileLocks {
	return &fileLocks{locks: make(map[string]*fileLock)}
}

// acquire returns the lock for path, creating it on first use, and locks
// it. The caller must call the returned release function.
func (f *fileLocks) acquire(path string) (release func()) {
	f.mu.Lock()
	l, ok := f.locks[path]
	if !ok {
		l = &fileLock{}
		f.locks[path] = l
	}
	l.lastUsed = time.Now()
	if len(f.locks) > lockTablePruneThreshold {
		f.pruneLocked()
	}
	f.mu.Unlock()

	l.mu.Lock()
	return l.mu.Unlock
}

// pruneLocked drops idle, currently-unheld locks. Caller holds f.mu.
func (f *fileLocks) pruneLocked() {
	cutoff := time.Now().Add(-lockIdleTTL)
	for path, l := range f.locks {
		if l.lastUsed.After(cutoff) {
			continue
		}
		// TryLock distinguishes an idle lock from one a reloader holds.
		if l.mu.TryLock() {
			l.mu.Unlock()
			delete(f.locks, path)
		}
	}
}

func (f *fileLocks) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.locks)
}

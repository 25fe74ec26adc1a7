// Package rollover tracks, per identity scope, the highest leaf index seen
// in a valid signature. Once a higher index has been used, any signature
// claiming a lower index is a replay or rollback and is rejected no matter
// how cryptographically perfect it is.
package rollover

import "sync"

// Scope keys one monotonic counter: an identity, one sub-purpose, one account.
type Scope struct {
	Did        string
	SubPurpose uint32
	Account    uint32
}

// Tracker is the one piece of shared mutable state in the core. Its view is
// local and eventually consistent: two nodes observing different record
// subsets will hold different high-water marks, and a Valid verdict under
// today's view may legitimately become KeyBurned after observing a higher
// index. Advancing must be commutative and idempotent so observations can be
// applied in any order, any number of times.
type Tracker interface {
	// Observe applies a newly verified signature's index and reports whether
	// that index is burned under the tracker's current view. Equal indices
	// re-observe cleanly; lower indices report burned without regressing the
	// mark.
	Observe(scope Scope, index uint32) (burned bool)

	// Highest returns the current high-water mark for the scope.
	Highest(scope Scope) (uint32, bool)
}

// MemTracker is the in-process view. A store-backed implementation can sit
// behind the same interface when a node wants its view to survive restarts.
type MemTracker struct {
	mu   sync.RWMutex
	high map[Scope]uint32
}

func NewMemTracker() *MemTracker {
	return &MemTracker{high: make(map[Scope]uint32)}
}

func (t *MemTracker) Observe(scope Scope, index uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.high[scope]
	if ok && index < cur {
		return true
	}
	t.high[scope] = index
	return false
}

func (t *MemTracker) Highest(scope Scope) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cur, ok := t.high[scope]
	return cur, ok
}

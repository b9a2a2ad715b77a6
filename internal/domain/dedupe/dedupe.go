// Package dedupe tracks achievement identifiers already accounted for in a
// session so that each unlock is reported at most once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// KnownSet records achievement ids the detector has already seen.
// Ids are never evicted: the set only grows until Reset.
type KnownSet interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already known, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Contains reports whether id is known without recording it.
	Contains(ctx context.Context, id string) bool

	// Reset forgets every id. Only used when a session is discarded.
	Reset(ctx context.Context)

	Size() int64
}

// inMemoryKnownSet implements KnownSet with a map guarded by a RWMutex.
type inMemoryKnownSet struct {
	mu              sync.RWMutex
	seen            map[string]struct{}
	initialCapacity int
	size            atomic.Int64
}

// NewInMemoryKnownSet creates an empty known-set.
func NewInMemoryKnownSet(opts ...Option) KnownSet {
	d := &inMemoryKnownSet{
		initialCapacity: 64,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]struct{}, d.initialCapacity)
	return d
}

// SeenAndRecord atomically checks if id was seen and records it if not.
func (d *inMemoryKnownSet) SeenAndRecord(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}
	d.seen[id] = struct{}{}
	d.size.Add(1)
	return false
}

// Contains reports whether id is known.
func (d *inMemoryKnownSet) Contains(ctx context.Context, id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, exists := d.seen[id]
	return exists
}

// Reset forgets every id.
func (d *inMemoryKnownSet) Reset(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[string]struct{}, d.initialCapacity)
	d.size.Store(0)
}

// Size returns the current number of known ids.
func (d *inMemoryKnownSet) Size() int64 {
	return d.size.Load()
}

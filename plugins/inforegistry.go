package plugins

import (
	"sync"

	"github.com/google/uuid"
)

// infoHandle is the opaque token returned to callers in place of a raw
// pointer, so the registry can be keyed by value rather than address.
type infoHandle string

type infoEntry struct {
	refcount   int
	deallocate func()
}

// infoRegistry is the framework-global map from handle to (refcount,
// deallocator) backing every caller-visible snapshot (spec §4.6).
type infoRegistry struct {
	mu      sync.Mutex
	entries map[infoHandle]*infoEntry
}

func newInfoRegistry() *infoRegistry {
	return &infoRegistry{entries: make(map[infoHandle]*infoEntry)}
}

// register creates a new entry with refcount 1 and returns its handle.
func (r *infoRegistry) register(deallocate func()) infoHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := infoHandle(uuid.NewString())
	r.entries[h] = &infoEntry{refcount: 1, deallocate: deallocate}
	return h
}

// acquire increments the refcount of an already-registered handle and
// reports whether h was known; an unknown handle leaves the registry
// unchanged. It is for internal callers only (never exposed to hosts). The
// Get*Info callers ignore the result, so an unknown handle there is not
// reported.
func (r *infoRegistry) acquire(h infoHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[h]
	if !ok {
		return false
	}
	e.refcount++
	return true
}

// release decrements the refcount of h, invoking its deallocator and
// removing the entry when it reaches zero. It reports whether h was known.
func (r *infoRegistry) release(h infoHandle) bool {
	r.mu.Lock()
	e, ok := r.entries[h]
	if !ok {
		r.mu.Unlock()
		return false
	}
	e.refcount--
	done := e.refcount <= 0
	if done {
		delete(r.entries, h)
	}
	r.mu.Unlock()
	if done {
		e.deallocate()
	}
	return true
}

// drain releases every outstanding entry unconditionally, invoking each
// deallocator exactly once, for framework shutdown.
func (r *infoRegistry) drain() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[infoHandle]*infoEntry)
	r.mu.Unlock()
	for _, e := range entries {
		e.deallocate()
	}
}

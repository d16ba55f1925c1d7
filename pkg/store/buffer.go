package store

import (
	"sync"
)

// Entity is anything the buffer can key by a stable server-assigned id.
type Entity interface {
	EntityID() int64
}

// Buffer is an order-preserving, id-deduplicated entity list. It is the merge
// point for page fetches and live events: LoadPage is additive and never
// clobbers a live-updated entry with stale page data, Upsert replaces in place
// or appends, and unseen ids always insert rather than drop.
//
// The internal slice is never exposed; Snapshot copies. A Buffer is safe for
// concurrent use.
type Buffer[E Entity] struct {
	mu      sync.Mutex
	entries []E
	index   map[int64]int
}

// NewBuffer returns an empty buffer.
func NewBuffer[E Entity]() *Buffer[E] {
	return &Buffer[E]{index: map[int64]int{}}
}

// LoadPage merges a fetched page into the buffer. Entities whose id is
// already present are left untouched; the rest are appended in page order.
// It returns the number of entries actually added.
func (b *Buffer[E]) LoadPage(entities []E) int {
	if b == nil || len(entities) == 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	added := 0
	for _, e := range entities {
		id := e.EntityID()
		if _, ok := b.index[id]; ok {
			continue
		}
		b.index[id] = len(b.entries)
		b.entries = append(b.entries, e)
		added++
	}
	return added
}

// Upsert replaces the entry with the same id in place, or appends when the id
// is unseen.
func (b *Buffer[E]) Upsert(entity E) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := entity.EntityID()
	if pos, ok := b.index[id]; ok {
		b.entries[pos] = entity
		return
	}
	b.index[id] = len(b.entries)
	b.entries = append(b.entries, entity)
}

// UpsertAndPromote upserts and moves the entry to the front of the buffer.
// Used by list scopes that surface fresh activity first, independent of the
// chronological sort applied at presentation time.
func (b *Buffer[E]) UpsertAndPromote(entity E) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := entity.EntityID()
	if pos, ok := b.index[id]; ok {
		copy(b.entries[1:pos+1], b.entries[:pos])
		b.entries[0] = entity
	} else {
		b.entries = append(b.entries, entity)
		copy(b.entries[1:], b.entries[:len(b.entries)-1])
		b.entries[0] = entity
	}
	b.reindexLocked()
}

// Remove deletes the entry with the given id. Removing an absent id is a
// no-op; repeated removal leaves the buffer unchanged.
func (b *Buffer[E]) Remove(id int64) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.index[id]
	if !ok {
		return false
	}
	b.entries = append(b.entries[:pos:pos], b.entries[pos+1:]...)
	b.reindexLocked()
	return true
}

// Reset clears the buffer. Called on scope change before the first fetch of
// the new parameter set.
func (b *Buffer[E]) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.entries = nil
	b.index = map[int64]int{}
	b.mu.Unlock()
}

// Apply runs fn over every entry and stores the returned value when changed
// is true. The callback receives a copy; the buffer swaps in the new value
// under its own lock, so callers cannot alias internal state.
func (b *Buffer[E]) Apply(fn func(E) (E, bool)) int {
	if b == nil || fn == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	changed := 0
	for i, e := range b.entries {
		if next, ok := fn(e); ok {
			b.entries[i] = next
			changed++
		}
	}
	return changed
}

// Get returns the entry with the given id.
func (b *Buffer[E]) Get(id int64) (E, bool) {
	var zero E
	if b == nil {
		return zero, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.index[id]
	if !ok {
		return zero, false
	}
	return b.entries[pos], true
}

// Has reports whether the id is present.
func (b *Buffer[E]) Has(id int64) bool {
	_, ok := b.Get(id)
	return ok
}

// Len returns the number of entries.
func (b *Buffer[E]) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// IDs returns the set of ids currently present. Used by the polling fallback
// to diff a re-fetched page against local state.
func (b *Buffer[E]) IDs() map[int64]struct{} {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make(map[int64]struct{}, len(b.entries))
	for id := range b.index {
		ids[id] = struct{}{}
	}
	return ids
}

// Snapshot returns a copy of the buffer in its current internal order.
func (b *Buffer[E]) Snapshot() []E {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]E, len(b.entries))
	copy(out, b.entries)
	return out
}

func (b *Buffer[E]) reindexLocked() {
	b.index = make(map[int64]int, len(b.entries))
	for i, e := range b.entries {
		b.index[e.EntityID()] = i
	}
}

package socket

import "sync"

// ScopeRef is a shared state holder giving long-lived listeners access to the
// current scope identifiers without relying on closure capture. The engine
// may start with a provisional identifier (a routing parameter) and upgrade
// to the authoritative one once the backend returns it; during that window
// events tagged with either identifier must match.
type ScopeRef struct {
	mu            sync.RWMutex
	provisional   string
	authoritative string
}

// NewScopeRef seeds the holder with a provisional identifier.
func NewScopeRef(provisional string) *ScopeRef {
	return &ScopeRef{provisional: provisional}
}

// Upgrade records the authoritative identifier. The provisional one keeps
// matching so in-flight events are not lost across the transition.
func (r *ScopeRef) Upgrade(authoritative string) {
	if r == nil || authoritative == "" {
		return
	}
	r.mu.Lock()
	r.authoritative = authoritative
	r.mu.Unlock()
}

// Current returns the best identifier known: authoritative when available.
func (r *ScopeRef) Current() string {
	if r == nil {
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.authoritative != "" {
		return r.authoritative
	}
	return r.provisional
}

// Matches reports whether an event tagged with id belongs to this scope.
func (r *ScopeRef) Matches(id string) bool {
	if r == nil || id == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return id == r.provisional || (r.authoritative != "" && id == r.authoritative)
}

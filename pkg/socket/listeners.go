package socket

import (
	"encoding/json"
	"sync"
)

// Lifecycle event kinds, mirroring the transport events the engine consumes.
const (
	LifecycleConnect          = "connect"
	LifecycleDisconnect       = "disconnect"
	LifecycleReconnectAttempt = "reconnect_attempt"
)

// LifecycleEvent describes a transport state transition.
type LifecycleEvent struct {
	Kind    string
	Attempt int
	Err     error
}

// Subscription undoes a listener registration. Every On has a matching
// Cancel on cleanup; holding the Subscription is the only way to deregister,
// which keeps registration and teardown symmetric by construction.
type Subscription struct {
	cancel func()
}

// Cancel removes the listener. Safe to call more than once.
func (s Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// registry fans events out to registered handlers. Handlers run on the read
// loop goroutine; they are expected to hand work off quickly.
type registry struct {
	mu        sync.Mutex
	nextID    int64
	lifecycle map[int64]func(LifecycleEvent)
	events    map[string]map[int64]func(json.RawMessage)
}

func newRegistry() *registry {
	return &registry{
		lifecycle: map[int64]func(LifecycleEvent){},
		events:    map[string]map[int64]func(json.RawMessage){},
	}
}

func (r *registry) onLifecycle(fn func(LifecycleEvent)) Subscription {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.lifecycle[id] = fn
	r.mu.Unlock()
	return Subscription{cancel: func() {
		r.mu.Lock()
		delete(r.lifecycle, id)
		r.mu.Unlock()
	}}
}

func (r *registry) onEvent(name string, fn func(json.RawMessage)) Subscription {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	if r.events[name] == nil {
		r.events[name] = map[int64]func(json.RawMessage){}
	}
	r.events[name][id] = fn
	r.mu.Unlock()
	return Subscription{cancel: func() {
		r.mu.Lock()
		if handlers := r.events[name]; handlers != nil {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(r.events, name)
			}
		}
		r.mu.Unlock()
	}}
}

func (r *registry) notifyLifecycle(ev LifecycleEvent) {
	r.mu.Lock()
	fns := make([]func(LifecycleEvent), 0, len(r.lifecycle))
	for _, fn := range r.lifecycle {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (r *registry) dispatch(name string, payload json.RawMessage) int {
	r.mu.Lock()
	fns := make([]func(json.RawMessage), 0, len(r.events[name]))
	for _, fn := range r.events[name] {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn(payload)
	}
	return len(fns)
}

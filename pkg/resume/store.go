// Package resume persists per-ticket resume points: the last message id the
// client has seen, used by missed-event recovery to close gaps left by a
// disconnection or a process restart.
package resume

import (
	"context"
	"sync"
)

// Store records the last known message id per ticket.
type Store interface {
	LastMessageID(ctx context.Context, ticketID int64) (int64, error)
	// SetLastMessageID records id if it advances the stored value. Resume
	// points only move forward.
	SetLastMessageID(ctx context.Context, ticketID, id int64) error
	Close() error
}

// MemoryStore is the in-process implementation, used in tests and when no
// persistence path is configured.
type MemoryStore struct {
	mu     sync.Mutex
	lastID map[int64]int64
}

var _ Store = &MemoryStore{}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lastID: map[int64]int64{}}
}

func (s *MemoryStore) LastMessageID(_ context.Context, ticketID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID[ticketID], nil
}

func (s *MemoryStore) SetLastMessageID(_ context.Context, ticketID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id > s.lastID[ticketID] {
		s.lastID[ticketID] = id
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

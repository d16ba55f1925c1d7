package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/deskwire/deskwire/pkg/model"
)

// Pending statuses.
const (
	PendingSending = "sending"
	PendingFailed  = "failed"
)

// PendingMessage is a locally-authored message awaiting server confirmation.
// It exists only in the tracker, keyed by TempID; once the server assigns a
// real id the confirmed entity takes over through the normal reducer path.
type PendingMessage struct {
	TempID      string
	TicketID    int64
	Body        string
	MediaType   string
	Status      string
	Error       string
	ConfirmedID int64
	CreatedAt   time.Time
}

// AsMessage renders the pending entry in the shape the presenter appends to
// the primary list.
func (p *PendingMessage) AsMessage() model.Message {
	return model.Message{
		ID:        0,
		Body:      p.Body,
		TicketID:  p.TicketID,
		FromMe:    true,
		Ack:       model.AckPending,
		MediaType: p.MediaType,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.CreatedAt,
	}
}

// NewTempID mints a process-unique optimistic identifier. A timestamp plus a
// uuid suffix keeps collision probability negligible without coordination.
func NewTempID() string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("optimistic-%d-%s", time.Now().UnixMilli(), suffix)
}

// OptimisticTracker holds pending entries per scope (ticket). Scope keying is
// structural: switching scope hides unrelated pending entries without any
// clearing step.
type OptimisticTracker struct {
	mu     sync.Mutex
	scopes map[int64][]*PendingMessage
}

// NewOptimisticTracker returns an empty tracker.
func NewOptimisticTracker() *OptimisticTracker {
	return &OptimisticTracker{scopes: map[int64][]*PendingMessage{}}
}

// Add registers a new pending entry under the scope and returns its temp id.
func (t *OptimisticTracker) Add(ticketID int64, body, mediaType string) string {
	if t == nil {
		return ""
	}
	p := &PendingMessage{
		TempID:    NewTempID(),
		TicketID:  ticketID,
		Body:      body,
		MediaType: mediaType,
		Status:    PendingSending,
		CreatedAt: time.Now(),
	}
	t.mu.Lock()
	t.scopes[ticketID] = append(t.scopes[ticketID], p)
	t.mu.Unlock()
	return p.TempID
}

// Confirm removes the pending entry; the server-confirmed entity arriving via
// the reducer path supersedes it. The confirmed id is recorded so the
// presenter can suppress the pending copy during the handover window in case
// the caller keeps the entry around.
func (t *OptimisticTracker) Confirm(ticketID int64, tempID string, confirmed model.Message) error {
	if t == nil {
		return errors.New("optimistic tracker: nil tracker")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.scopes[ticketID]
	for i, p := range list {
		if p.TempID != tempID {
			continue
		}
		p.ConfirmedID = confirmed.ID
		t.scopes[ticketID] = append(list[:i:i], list[i+1:]...)
		return nil
	}
	return errors.Errorf("optimistic tracker: no pending entry %s in ticket %d", tempID, ticketID)
}

// Fail marks the entry as terminally failed. It stays visible until the user
// retries or dismisses it; a vanished user-authored action is worse than a
// stale one.
func (t *OptimisticTracker) Fail(ticketID int64, tempID string, cause error) bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.scopes[ticketID] {
		if p.TempID != tempID {
			continue
		}
		p.Status = PendingFailed
		if cause != nil {
			p.Error = cause.Error()
		}
		return true
	}
	return false
}

// Remove drops the entry outright (user dismissal).
func (t *OptimisticTracker) Remove(ticketID int64, tempID string) bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.scopes[ticketID]
	for i, p := range list {
		if p.TempID == tempID {
			t.scopes[ticketID] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// List returns copies of the pending entries for one scope, oldest first.
func (t *OptimisticTracker) List(ticketID int64) []*PendingMessage {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.scopes[ticketID]
	out := make([]*PendingMessage, 0, len(list))
	for _, p := range list {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

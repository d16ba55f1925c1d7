package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/deskwire/deskwire/pkg/socket"
)

// Membership states.
const (
	MemberUnjoined  = "unjoined"
	MemberJoining   = "joining"
	MemberJoined    = "joined"
	MemberRejoining = "rejoining"
	MemberLeaving   = "leaving"
)

// roomMembership tracks one scope's room subscription across the transport's
// lifecycle. Join failures are logged and left for the next reconnect; the
// fetch path never waits on the room.
type roomMembership struct {
	log       zerolog.Logger
	transport Transport
	scope     *socket.ScopeRef

	mu    sync.Mutex
	state string
}

func newRoomMembership(transport Transport, scope *socket.ScopeRef, log zerolog.Logger) *roomMembership {
	return &roomMembership{
		log:       log.With().Str("subsystem", "membership").Logger(),
		transport: transport,
		scope:     scope,
		state:     MemberUnjoined,
	}
}

func (m *roomMembership) current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *roomMembership) setState(s string) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// join subscribes the session to its scope's room. Idempotent server-side,
// so callers fire it on start and again on every reconnect.
func (m *roomMembership) join(ctx context.Context) {
	m.mu.Lock()
	switch m.state {
	case MemberJoining, MemberLeaving:
		m.mu.Unlock()
		return
	case MemberJoined:
		m.state = MemberRejoining
	default:
		m.state = MemberJoining
	}
	m.mu.Unlock()

	scopeID := m.scope.Current()
	if err := m.transport.JoinRoom(ctx, scopeID); err != nil {
		m.setState(MemberUnjoined)
		m.log.Warn().Err(err).Str("scope", scopeID).Msg("room join failed, will retry on next reconnect")
		return
	}
	m.setState(MemberJoined)
	m.log.Debug().Str("scope", scopeID).Msg("room joined")
}

// leave unsubscribes. Fire and forget; the session is closing the scope.
func (m *roomMembership) leave(ctx context.Context) {
	m.mu.Lock()
	if m.state == MemberUnjoined || m.state == MemberLeaving {
		m.mu.Unlock()
		return
	}
	m.state = MemberLeaving
	m.mu.Unlock()

	scopeID := m.scope.Current()
	if err := m.transport.LeaveRoom(ctx, scopeID); err != nil {
		m.log.Debug().Err(err).Str("scope", scopeID).Msg("room leave failed")
	}
	m.setState(MemberUnjoined)
}

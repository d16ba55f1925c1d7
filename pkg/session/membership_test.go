package session

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/deskwire/deskwire/pkg/socket"
)

func TestMembershipJoinLeaveCycle(t *testing.T) {
	tr := newFakeTransport()
	scope := socket.NewScopeRef("9")
	m := newRoomMembership(tr, scope, zerolog.Nop())
	require.Equal(t, MemberUnjoined, m.current())

	m.join(context.Background())
	require.Equal(t, MemberJoined, m.current())
	require.Equal(t, []string{"9"}, tr.joins)

	m.leave(context.Background())
	require.Equal(t, MemberUnjoined, m.current())
	require.Equal(t, []string{"9"}, tr.leaves)
}

func TestMembershipJoinFailureStaysUnjoined(t *testing.T) {
	tr := newFakeTransport()
	tr.joinErr = errors.New("room unavailable")
	m := newRoomMembership(tr, socket.NewScopeRef("9"), zerolog.Nop())

	m.join(context.Background())
	require.Equal(t, MemberUnjoined, m.current(), "a failed join waits for the next reconnect")

	// Next reconnect succeeds.
	tr.joinErr = nil
	m.join(context.Background())
	require.Equal(t, MemberJoined, m.current())
}

func TestMembershipRejoinUsesUpgradedScope(t *testing.T) {
	tr := newFakeTransport()
	scope := socket.NewScopeRef("9")
	m := newRoomMembership(tr, scope, zerolog.Nop())

	m.join(context.Background())
	scope.Upgrade("uuid-abc")
	m.join(context.Background())

	require.Equal(t, MemberJoined, m.current())
	require.Equal(t, []string{"9", "uuid-abc"}, tr.joins, "rejoin targets the authoritative id")
}

func TestMembershipLeaveWhenUnjoinedIsNoop(t *testing.T) {
	tr := newFakeTransport()
	m := newRoomMembership(tr, socket.NewScopeRef("9"), zerolog.Nop())
	m.leave(context.Background())
	require.Empty(t, tr.leaves)
}

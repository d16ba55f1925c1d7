package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishSubscribeRoundTrip(t *testing.T) {
	b := NewInProcess()
	defer func() { _ = b.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, SignalMessageArrived)
	require.NoError(t, err)

	require.NoError(t, b.Publish(Signal{Type: SignalMessageArrived, TicketID: 42}))

	select {
	case sig := <-ch:
		require.Equal(t, SignalMessageArrived, sig.Type)
		require.Equal(t, int64(42), sig.TicketID)
		require.False(t, sig.At.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
	}
}

func TestSubscribeIsScopedToType(t *testing.T) {
	b := NewInProcess()
	defer func() { _ = b.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	unread, err := b.Subscribe(ctx, SignalUnreadChanged)
	require.NoError(t, err)

	require.NoError(t, b.Publish(Signal{Type: SignalTicketsChanged}))
	require.NoError(t, b.Publish(Signal{Type: SignalUnreadChanged, Unread: 3}))

	select {
	case sig := <-unread:
		require.Equal(t, SignalUnreadChanged, sig.Type)
		require.Equal(t, 3, sig.Unread)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
	}
}

func TestSubscribeEndsWithContext(t *testing.T) {
	b := NewInProcess()
	defer func() { _ = b.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx, SignalTicketLoaded)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		require.False(t, ok, "channel should close after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
}

func TestNilBusIsSafe(t *testing.T) {
	var b *Bus
	require.Error(t, b.Publish(Signal{Type: SignalMessagesReady}))
	require.NoError(t, b.Close())
}

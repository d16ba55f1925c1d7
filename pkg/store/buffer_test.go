package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deskwire/deskwire/pkg/model"
)

func msg(id int64, opts ...func(*model.Message)) model.Message {
	m := model.Message{
		ID:        id,
		TicketID:  5,
		Body:      "body",
		CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute),
		UpdatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func TestLoadPage_SkipsAlreadySeenIDs(t *testing.T) {
	l := NewMessageList()
	require.Equal(t, 2, l.LoadPage([]model.Message{msg(1), msg(2)}))

	// A live event updates id 1 before the page is re-fetched.
	updated := msg(1)
	updated.Read = true
	l.Upsert(updated)

	// Re-loading the same page must not duplicate rows or clobber the
	// live-updated field with stale page data.
	require.Equal(t, 0, l.LoadPage([]model.Message{msg(1), msg(2)}))
	require.Equal(t, 2, l.Len())
	got, ok := l.Get(1)
	require.True(t, ok)
	require.True(t, got.Read)
}

func TestUpsert_IsIdempotent(t *testing.T) {
	l := NewMessageList()
	l.Upsert(msg(7))
	l.Upsert(msg(7))
	require.Equal(t, 1, l.Len())
}

func TestUpsert_InsertsUnseenID(t *testing.T) {
	// An update racing ahead of the initial page fetch still inserts a
	// usable entry instead of being dropped.
	l := NewMessageList()
	l.Upsert(msg(99))
	require.True(t, l.Has(99))
}

func TestLoadThenUpdateConvergence(t *testing.T) {
	l := NewMessageList()
	l.LoadPage([]model.Message{msg(1), msg(2), msg(3)})

	e2 := msg(2)
	e2.Body = "edited"
	l.Upsert(e2)
	require.True(t, l.Remove(3))
	l.LoadPage([]model.Message{msg(2), msg(4)})

	require.Equal(t, 3, l.Len())
	got, ok := l.Get(2)
	require.True(t, ok)
	require.Equal(t, "edited", got.Body)
	require.False(t, l.Has(3))
}

func TestRemove_IsAbsorptive(t *testing.T) {
	l := NewMessageList()
	l.LoadPage([]model.Message{msg(1)})
	require.True(t, l.Remove(1))
	require.False(t, l.Remove(1))
	require.False(t, l.Remove(1))
	require.Equal(t, 0, l.Len())
}

func TestReset_ClearsState(t *testing.T) {
	l := NewMessageList()
	l.LoadPage([]model.Message{msg(1), msg(2)})
	l.Reset()
	require.Equal(t, 0, l.Len())
	l.Upsert(msg(1))
	require.Equal(t, 1, l.Len())
}

func TestSnapshot_DoesNotAliasLaterMutations(t *testing.T) {
	l := NewMessageList()
	l.LoadPage([]model.Message{msg(1), msg(2)})
	snap := l.Snapshot()

	edited := msg(1)
	edited.Body = "edited"
	l.Upsert(edited)
	l.Remove(2)

	require.Len(t, snap, 2)
	require.Equal(t, "body", snap[0].Body)
}

func TestMarkAllRead_ScopedAndAckPreserving(t *testing.T) {
	l := NewMessageList()
	mine := msg(1, func(m *model.Message) { m.FromMe = true; m.Ack = model.AckDelivered })
	theirs := msg(2)
	other := msg(3, func(m *model.Message) { m.TicketID = 9 })
	l.LoadPage([]model.Message{mine, theirs, other})

	require.Equal(t, 2, l.MarkAllRead(5))

	got, _ := l.Get(1)
	require.True(t, got.Read)
	require.Equal(t, model.AckDelivered, got.Ack)
	got, _ = l.Get(3)
	require.False(t, got.Read)
}

func TestUpsertAndPromote_MovesToFront(t *testing.T) {
	now := time.Now()
	l := NewTicketList()
	l.LoadPage([]model.Ticket{
		{ID: 1, UpdatedAt: now},
		{ID: 2, UpdatedAt: now},
		{ID: 3, UpdatedAt: now},
	})

	l.UpsertAndPromote(model.Ticket{ID: 3, UnreadMessages: 2, UpdatedAt: now})
	snap := l.Snapshot()
	require.Equal(t, int64(3), snap[0].ID)
	require.Equal(t, 2, snap[0].UnreadMessages)
	require.Equal(t, 3, len(snap))

	// Promoting an unseen id appends then fronts it.
	l.UpsertAndPromote(model.Ticket{ID: 4, UpdatedAt: now})
	snap = l.Snapshot()
	require.Equal(t, int64(4), snap[0].ID)
	require.Equal(t, 4, len(snap))
	require.True(t, l.Has(1))
}

func TestTicketList_UnreadCount(t *testing.T) {
	l := NewTicketList()
	l.LoadPage([]model.Ticket{
		{ID: 1, UnreadMessages: 2},
		{ID: 2, UnreadMessages: 0},
		{ID: 3, UnreadMessages: 5},
	})
	require.Equal(t, 7, l.UnreadCount())

	require.Equal(t, 1, l.MarkAllRead(3))
	require.Equal(t, 2, l.UnreadCount())
}

func TestMessageList_LastID(t *testing.T) {
	l := NewMessageList()
	require.Equal(t, int64(0), l.LastID())
	l.LoadPage([]model.Message{msg(4), msg(11), msg(7)})
	require.Equal(t, int64(11), l.LastID())
}

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deskwire/deskwire/pkg/model"
)

func at(hour, min int) time.Time {
	return time.Date(2024, 3, 1, hour, min, 0, 0, time.UTC)
}

func TestBuildMessageView_SortsByCreationTime(t *testing.T) {
	// Arrival order t3, t1, t2 must render as t1, t2, t3.
	snapshot := []model.Message{
		{ID: 3, CreatedAt: at(10, 3)},
		{ID: 1, CreatedAt: at(10, 1)},
		{ID: 2, CreatedAt: at(10, 2)},
	}
	view := BuildMessageView(snapshot, nil)
	require.Len(t, view.Primary, 3)
	require.Equal(t, int64(1), view.Primary[0].ID)
	require.Equal(t, int64(2), view.Primary[1].ID)
	require.Equal(t, int64(3), view.Primary[2].ID)
}

func TestBuildMessageView_PartitionsReactions(t *testing.T) {
	parent := model.Message{ID: 10, WireID: "wire-10", CreatedAt: at(10, 0)}
	reaction := model.Message{
		ID:           11,
		MediaType:    model.MediaTypeReaction,
		ParentWireID: "wire-10",
		Body:         "👍",
		CreatedAt:    at(10, 1),
	}
	view := BuildMessageView([]model.Message{parent, reaction}, nil)

	require.Len(t, view.Primary, 1)
	require.Equal(t, int64(10), view.Primary[0].ID)
	require.Len(t, view.ReactionsFor(parent), 1)
	require.Equal(t, "👍", view.ReactionsFor(parent)[0].Body)
}

func TestReactionsFor_ChecksBothIdentifierSpaces(t *testing.T) {
	// A reaction may reference the parent by its local id when the backend
	// has already reconciled the identifier spaces.
	parent := model.Message{ID: 10, WireID: "wire-10", CreatedAt: at(10, 0)}
	byLocalID := model.Message{ID: 12, MediaType: model.MediaTypeReaction, ParentWireID: "10", CreatedAt: at(10, 2)}
	byWireID := model.Message{ID: 13, MediaType: model.MediaTypeReaction, ParentWireID: "wire-10", CreatedAt: at(10, 3)}

	view := BuildMessageView([]model.Message{parent, byLocalID, byWireID}, nil)
	require.Len(t, view.ReactionsFor(parent), 2)
}

func TestBuildMessageView_AppendsPendingAndExcludesConfirmed(t *testing.T) {
	snapshot := []model.Message{{ID: 42, Body: "hi", CreatedAt: at(10, 0)}}
	pending := []*PendingMessage{
		{TempID: "optimistic-1-a", Body: "hi", ConfirmedID: 42, Status: PendingSending},
		{TempID: "optimistic-1-b", Body: "still waiting", Status: PendingSending},
	}
	view := BuildMessageView(snapshot, pending)
	require.Len(t, view.Pending, 1)
	require.Equal(t, "optimistic-1-b", view.Pending[0].TempID)
}

func TestBuildMessageView_PageThenUpsertScenario(t *testing.T) {
	l := NewMessageList()
	l.LoadPage([]model.Message{
		{ID: 1, TicketID: 5, CreatedAt: at(10, 0)},
		{ID: 2, TicketID: 5, CreatedAt: at(10, 1)},
	})
	l.Upsert(model.Message{ID: 1, TicketID: 5, CreatedAt: at(10, 0), Read: true})

	view := BuildMessageView(l.Snapshot(), nil)
	require.Len(t, view.Primary, 2)
	require.Equal(t, int64(1), view.Primary[0].ID)
	require.True(t, view.Primary[0].Read)
	require.False(t, view.Primary[1].Read)
}

func TestGroupByDay(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 23, 50, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 0, 10, 0, 0, time.UTC)
	view := BuildMessageView([]model.Message{
		{ID: 1, CreatedAt: day1},
		{ID: 2, CreatedAt: day1.Add(time.Minute)},
		{ID: 3, CreatedAt: day2},
	}, nil)

	sections := view.GroupByDay()
	require.Len(t, sections, 2)
	require.Len(t, sections[0].Messages, 2)
	require.Len(t, sections[1].Messages, 1)
}

func TestBuildTicketView_MostRecentFirst(t *testing.T) {
	view := BuildTicketView([]model.Ticket{
		{ID: 1, UpdatedAt: at(9, 0)},
		{ID: 2, UpdatedAt: at(11, 0)},
		{ID: 3, UpdatedAt: at(10, 0)},
	})
	require.Equal(t, int64(2), view[0].ID)
	require.Equal(t, int64(3), view[1].ID)
	require.Equal(t, int64(1), view[2].ID)
}

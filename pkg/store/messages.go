package store

import (
	"github.com/deskwire/deskwire/pkg/model"
)

// MessageList is the reducer state for one ticket's conversation.
type MessageList struct {
	*Buffer[model.Message]
}

// NewMessageList returns an empty message list.
func NewMessageList() *MessageList {
	return &MessageList{Buffer: NewBuffer[model.Message]()}
}

// MarkAllRead flips the read flag on every message belonging to the given
// ticket. Delivery acks are server-owned and left alone, in particular on
// messages this client authored.
func (l *MessageList) MarkAllRead(ticketID int64) int {
	if l == nil {
		return 0
	}
	return l.Apply(func(m model.Message) (model.Message, bool) {
		if m.TicketID != ticketID || m.Read {
			return m, false
		}
		m.Read = true
		return m, true
	})
}

// LastID returns the highest server id currently present. The recovery
// controller uses it to seed its resume point when none is recorded yet.
func (l *MessageList) LastID() int64 {
	if l == nil {
		return 0
	}
	var last int64
	for id := range l.IDs() {
		if id > last {
			last = id
		}
	}
	return last
}

// TicketList is the reducer state for a filtered ticket-list scope.
type TicketList struct {
	*Buffer[model.Ticket]
}

// NewTicketList returns an empty ticket list.
func NewTicketList() *TicketList {
	return &TicketList{Buffer: NewBuffer[model.Ticket]()}
}

// MarkAllRead zeroes the unread counter of the ticket currently open. The
// server emits updateRead when another client (or this one) opens the
// conversation.
func (l *TicketList) MarkAllRead(ticketID int64) int {
	if l == nil {
		return 0
	}
	return l.Apply(func(t model.Ticket) (model.Ticket, bool) {
		if t.ID != ticketID || t.UnreadMessages == 0 {
			return t, false
		}
		t.UnreadMessages = 0
		return t, true
	})
}

// UnreadCount sums unread messages across the list, for notification badges.
func (l *TicketList) UnreadCount() int {
	if l == nil {
		return 0
	}
	total := 0
	for _, t := range l.Snapshot() {
		total += t.UnreadMessages
	}
	return total
}

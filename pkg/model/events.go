package model

import (
	"encoding/json"
	"fmt"
)

// Actions carried by scoped entity events.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionUpdateRead = "updateRead"
)

// Resources the socket server scopes events by.
const (
	ResourceTicket     = "ticket"
	ResourceAppMessage = "appMessage"
	ResourceContact    = "contact"
)

// EventName computes the scoped event name the server publishes on, of the
// form company-{companyID}-{resource}.
func EventName(companyID int64, resource string) string {
	return fmt.Sprintf("company-%d-%s", companyID, resource)
}

// EntityEvent is the payload of a scoped entity event. Exactly one of the
// resource fields is populated, matching the resource in the event name.
// TicketID accompanies message events so listeners can filter by scope
// without decoding the message.
type EntityEvent struct {
	Action   string          `json:"action"`
	TicketID int64           `json:"ticketId,omitempty"`
	Message  *Message        `json:"message,omitempty"`
	Ticket   *Ticket         `json:"ticket,omitempty"`
	Contact  *Contact        `json:"contact,omitempty"`
	Raw      json.RawMessage `json:"-"`
}

// DecodeEntityEvent parses a raw event payload, keeping the raw bytes around
// for diagnostics.
func DecodeEntityEvent(raw []byte) (*EntityEvent, error) {
	ev := &EntityEvent{}
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, err
	}
	ev.Raw = append([]byte(nil), raw...)
	return ev, nil
}

// ScopeTicketID returns the ticket scope an event belongs to, falling back to
// the embedded entities when the envelope field is absent.
func (e *EntityEvent) ScopeTicketID() int64 {
	if e == nil {
		return 0
	}
	if e.TicketID != 0 {
		return e.TicketID
	}
	if e.Message != nil {
		return e.Message.TicketID
	}
	if e.Ticket != nil {
		return e.Ticket.ID
	}
	return 0
}

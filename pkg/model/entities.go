package model

import (
	"strconv"
	"time"
)

// Ack levels mirror the delivery states reported by the backend for
// client-authored messages.
const (
	AckPending   = 0
	AckSent      = 1
	AckDelivered = 2
	AckRead      = 3
)

// MediaTypeReaction marks a message that annotates another message instead of
// standing on its own in the conversation flow.
const MediaTypeReaction = "reactionMessage"

// Ticket statuses used by the backend.
const (
	TicketOpen    = "open"
	TicketPending = "pending"
	TicketClosed  = "closed"
)

// Contact is the minimal contact summary embedded in tickets and messages.
type Contact struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Number     string `json:"number"`
	Email      string `json:"email,omitempty"`
	ProfilePic string `json:"profilePicUrl,omitempty"`
	CompanyID  int64  `json:"companyId"`
}

// Tag is a label attached to tickets and contacts.
type Tag struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Message is one conversation entry. ID is the server-assigned identifier and
// the sole merge key once present. WireID is the messaging-provider identifier;
// reactions and quotes reference their parent through it, so both id spaces
// stay live on the read path.
type Message struct {
	ID           int64     `json:"id"`
	WireID       string    `json:"wid,omitempty"`
	TicketID     int64     `json:"ticketId"`
	ContactID    int64     `json:"contactId,omitempty"`
	Body         string    `json:"body"`
	FromMe       bool      `json:"fromMe"`
	Read         bool      `json:"read"`
	Ack          int       `json:"ack"`
	MediaType    string    `json:"mediaType,omitempty"`
	MediaURL     string    `json:"mediaUrl,omitempty"`
	ParentWireID string    `json:"quotedMsgId,omitempty"`
	QuotedMsg    *Message  `json:"quotedMsg,omitempty"`
	IsDeleted    bool      `json:"isDeleted"`
	IsEdited     bool      `json:"isEdited,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Contact      *Contact  `json:"contact,omitempty"`
}

// EntityID implements store.Entity.
func (m Message) EntityID() int64 { return m.ID }

// IsReaction reports whether the message annotates a parent message rather
// than appearing in the primary flow.
func (m Message) IsReaction() bool {
	return m.MediaType == MediaTypeReaction && m.ParentWireID != ""
}

// ParentKeys returns every key under which this message's parent may be
// indexed. The backend does not always reconcile the local id and the wire id
// by the time the client groups reactions, so lookups carry both.
func (m Message) ParentKeys() []string {
	if m.ParentWireID == "" {
		return nil
	}
	return []string{m.ParentWireID}
}

// Keys returns the lookup keys other messages may use to reference this one.
func (m Message) Keys() []string {
	keys := []string{strconv.FormatInt(m.ID, 10)}
	if m.WireID != "" && m.WireID != keys[0] {
		keys = append(keys, m.WireID)
	}
	return keys
}

// Ticket is one customer conversation in the triage list.
type Ticket struct {
	ID             int64     `json:"id"`
	UUID           string    `json:"uuid,omitempty"`
	Status         string    `json:"status"`
	UnreadMessages int       `json:"unreadMessages"`
	LastMessage    string    `json:"lastMessage"`
	ContactID      int64     `json:"contactId"`
	UserID         int64     `json:"userId,omitempty"`
	QueueID        int64     `json:"queueId,omitempty"`
	WhatsappID     int64     `json:"whatsappId,omitempty"`
	CompanyID      int64     `json:"companyId"`
	IsGroup        bool      `json:"isGroup"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Contact        *Contact  `json:"contact,omitempty"`
	Tags           []Tag     `json:"tags,omitempty"`
}

// EntityID implements store.Entity.
func (t Ticket) EntityID() int64 { return t.ID }

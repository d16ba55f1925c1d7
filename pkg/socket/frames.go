package socket

import "encoding/json"

// Client→server frame types.
const (
	frameJoinRoom  = "joinRoom"
	frameLeaveRoom = "leaveRoom"
	frameRecover   = "recoverMissedMessages"
)

// Server→client frame types.
const (
	frameEvent = "event"
	frameAck   = "ack"
)

// clientFrame is an outbound frame. CallID is set when the caller expects an
// ack; the server echoes it back on the matching ack frame.
type clientFrame struct {
	Type    string          `json:"type"`
	CallID  int64           `json:"callId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type roomPayload struct {
	ScopeID string `json:"scopeId"`
}

type recoverPayload struct {
	ScopeID string `json:"scopeId"`
	LastID  int64  `json:"lastId"`
}

// serverFrame is an inbound frame: either a scoped event (Event names the
// company-{id}-{resource} channel) or an ack answering a CallID.
type serverFrame struct {
	Type    string          `json:"type"`
	Event   string          `json:"event,omitempty"`
	CallID  int64           `json:"callId,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

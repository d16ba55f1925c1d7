// Package session wires the merge buffers, the REST client and the socket
// transport into live sync sessions: one per open conversation, one per
// ticket-list scope. A session owns its listeners, timers and in-flight
// requests and tears all of them down symmetrically on Close.
package session

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/deskwire/deskwire/pkg/api"
	"github.com/deskwire/deskwire/pkg/model"
	"github.com/deskwire/deskwire/pkg/socket"
)

// Transport is the slice of the socket client a session depends on. The push
// channel is a latency optimization; every session also carries a polling
// fallback that works with a nil-connected transport.
type Transport interface {
	OnLifecycle(fn func(socket.LifecycleEvent)) socket.Subscription
	OnEvent(name string, fn func(json.RawMessage)) socket.Subscription
	Connected() bool
	JoinRoom(ctx context.Context, scopeID string) error
	LeaveRoom(ctx context.Context, scopeID string) error
	RecoverMissed(ctx context.Context, scopeID string, lastID int64) ([]model.Message, error)
}

var _ Transport = &socket.Client{}

// MessageAPI is the REST surface the message session fetches through.
type MessageAPI interface {
	FetchMessages(ctx context.Context, ticketID int64, pageNumber int) (*api.MessagesPage, error)
	FetchMessagesAfter(ctx context.Context, ticketID, lastID int64) ([]model.Message, error)
	SendMessage(ctx context.Context, ticketID int64, req api.SendMessageRequest) (*model.Message, error)
}

// TicketAPI is the REST surface the ticket feed fetches through.
type TicketAPI interface {
	FetchTickets(ctx context.Context, query api.TicketsQuery) (*api.TicketsPage, error)
}

var (
	_ MessageAPI = &api.Client{}
	_ TicketAPI  = &api.Client{}
)

// Notifier surfaces transient failures to the user, the toast analog.
// Notifications never change session state.
type Notifier interface {
	Notify(level, message string)
}

// LogNotifier is the default notifier, writing through the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(level, message string) {
	l := log.With().Str("component", "session").Logger()
	switch level {
	case "error":
		l.Error().Msg(message)
	case "warn":
		l.Warn().Msg(message)
	default:
		l.Info().Msg(message)
	}
}

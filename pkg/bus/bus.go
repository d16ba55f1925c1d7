// Package bus is the typed in-process signal bus connecting sync sessions to
// whatever consumes them. It replaces ad hoc global broadcast (the original
// frontend abused window-level custom events for this) with explicit
// publish/subscribe whose registration and teardown are enforced by context
// lifetimes.
package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Signal types published by sync sessions.
const (
	SignalMessagesReady  = "messages.ready"
	SignalMessageArrived = "message.arrived"
	SignalTicketLoaded   = "ticket.loaded"
	SignalTicketsChanged = "tickets.changed"
	SignalUnreadChanged  = "unread.changed"
)

// Signal is one cross-component notification.
type Signal struct {
	Type     string          `json:"type"`
	TicketID int64           `json:"ticketId,omitempty"`
	Unread   int             `json:"unread,omitempty"`
	At       time.Time       `json:"at"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Bus publishes and subscribes typed signals over a watermill transport. The
// default transport is in-process; Redis Streams can back it for
// multi-process fanout.
type Bus struct {
	pub message.Publisher
	sub message.Subscriber
}

// NewInProcess returns a bus backed by watermill's gochannel pubsub.
func NewInProcess() *Bus {
	ch := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		NewWatermillLogger(log.Logger),
	)
	return &Bus{pub: ch, sub: ch}
}

// New wraps an existing watermill publisher/subscriber pair.
func New(pub message.Publisher, sub message.Subscriber) (*Bus, error) {
	if pub == nil || sub == nil {
		return nil, errors.New("bus: publisher and subscriber are required")
	}
	return &Bus{pub: pub, sub: sub}, nil
}

// Publish emits a signal on its type's topic. Publishing is best effort from
// the caller's perspective; a full buffer or broken backend must not stall a
// sync session, so errors are returned for logging, not retried.
func (b *Bus) Publish(sig Signal) error {
	if b == nil || b.pub == nil {
		return errors.New("bus: not initialized")
	}
	if sig.At.IsZero() {
		sig.At = time.Now()
	}
	raw, err := json.Marshal(sig)
	if err != nil {
		return errors.Wrap(err, "bus: encode signal")
	}
	return b.pub.Publish(sig.Type, message.NewMessage(watermill.NewUUID(), raw))
}

// Subscribe returns a channel of signals of one type. The subscription ends
// with ctx; there is no separate unsubscribe step to forget.
func (b *Bus) Subscribe(ctx context.Context, signalType string) (<-chan Signal, error) {
	if b == nil || b.sub == nil {
		return nil, errors.New("bus: not initialized")
	}
	msgs, err := b.sub.Subscribe(ctx, signalType)
	if err != nil {
		return nil, errors.Wrapf(err, "bus: subscribe %s", signalType)
	}
	out := make(chan Signal, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			var sig Signal
			if err := json.Unmarshal(msg.Payload, &sig); err != nil {
				log.Warn().Err(err).Str("component", "bus").Str("topic", signalType).Msg("dropping undecodable signal")
				msg.Ack()
				continue
			}
			select {
			case out <- sig:
			case <-ctx.Done():
				msg.Nack()
				return
			}
			msg.Ack()
		}
	}()
	return out, nil
}

// Close shuts the underlying transport down when it supports closing.
func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	type closer interface{ Close() error }
	if c, ok := b.pub.(closer); ok {
		return c.Close()
	}
	return nil
}

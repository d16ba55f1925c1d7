package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/deskwire/deskwire/pkg/model"
)

// Config configures the socket client.
type Config struct {
	URL   string
	Token string
	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration
	// ReconnectMin/Max bound the backoff between attempts.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	// CallTimeout bounds ack-carrying calls (join, recover).
	CallTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 10 * time.Second
	}
	if out.ReconnectMin <= 0 {
		out.ReconnectMin = time.Second
	}
	if out.ReconnectMax <= 0 {
		out.ReconnectMax = 30 * time.Second
	}
	if out.CallTimeout <= 0 {
		out.CallTimeout = 10 * time.Second
	}
	return out
}

// Client maintains one websocket session against the event server, with
// automatic reconnection. The push channel is best effort: callers treat it
// as a latency optimization over the pull path, never as the source of truth.
type Client struct {
	cfg Config
	log zerolog.Logger

	listeners *registry

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	nextCall  int64
	acks      map[int64]chan serverFrame
}

// NewClient validates the config and returns an unconnected client. Run
// establishes and maintains the session.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("socket: URL is empty")
	}
	return &Client{
		cfg:       cfg.withDefaults(),
		log:       log.With().Str("component", "socket").Logger(),
		listeners: newRegistry(),
		acks:      map[int64]chan serverFrame{},
	}, nil
}

// OnLifecycle registers a transport lifecycle listener.
func (c *Client) OnLifecycle(fn func(LifecycleEvent)) Subscription {
	return c.listeners.onLifecycle(fn)
}

// OnEvent registers a handler for one scoped event name.
func (c *Client) OnEvent(name string, fn func(json.RawMessage)) Subscription {
	return c.listeners.onEvent(name, fn)
}

// Connected reports current transport health. Pollers consult it to pick
// their interval.
func (c *Client) Connected() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Run dials and keeps the session alive until ctx is cancelled. Each failed
// attempt emits reconnect_attempt; each established session emits connect and,
// when it ends, disconnect.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	backoff := c.cfg.ReconnectMin
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := c.dial(ctx)
		if err != nil {
			attempt++
			c.listeners.notifyLifecycle(LifecycleEvent{Kind: LifecycleReconnectAttempt, Attempt: attempt, Err: err})
			c.log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("dial failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.cfg.ReconnectMax {
				backoff = c.cfg.ReconnectMax
			}
			continue
		}

		attempt = 0
		backoff = c.cfg.ReconnectMin
		c.mu.Lock()
		c.conn = conn
		c.connected = true
		c.mu.Unlock()
		c.log.Info().Str("url", c.cfg.URL).Msg("connected")
		c.listeners.notifyLifecycle(LifecycleEvent{Kind: LifecycleConnect})

		readErr := c.readLoop(ctx, conn)

		c.mu.Lock()
		c.connected = false
		c.conn = nil
		c.failPendingCallsLocked()
		c.mu.Unlock()
		_ = conn.Close()
		c.log.Info().Err(readErr).Msg("disconnected")
		c.listeners.notifyLifecycle(LifecycleEvent{Kind: LifecycleDisconnect, Err: readErr})
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "socket: dial %s", c.cfg.URL)
	}
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var frame serverFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping undecodable frame")
			continue
		}
		switch frame.Type {
		case frameEvent:
			n := c.listeners.dispatch(frame.Event, frame.Payload)
			c.log.Debug().Str("event", frame.Event).Int("handlers", n).Msg("event dispatched")
		case frameAck:
			c.deliverAck(frame)
		default:
			c.log.Debug().Str("type", frame.Type).Msg("ignoring unknown frame type")
		}
	}
}

func (c *Client) deliverAck(frame serverFrame) {
	c.mu.Lock()
	ch, ok := c.acks[frame.CallID]
	if ok {
		delete(c.acks, frame.CallID)
	}
	c.mu.Unlock()
	if !ok {
		c.log.Debug().Int64("call_id", frame.CallID).Msg("ack for unknown call")
		return
	}
	ch <- frame
}

// failPendingCallsLocked wakes every waiter with a closed channel so calls do
// not hang across a reconnect.
func (c *Client) failPendingCallsLocked() {
	for id, ch := range c.acks {
		close(ch)
		delete(c.acks, id)
	}
}

func (c *Client) send(frame clientFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("socket: not connected")
	}
	return c.conn.WriteJSON(frame)
}

func (c *Client) call(ctx context.Context, frameType string, payload any) (serverFrame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return serverFrame{}, errors.Wrap(err, "socket: encode payload")
	}

	ch := make(chan serverFrame, 1)
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return serverFrame{}, errors.New("socket: not connected")
	}
	c.nextCall++
	callID := c.nextCall
	c.acks[callID] = ch
	conn := c.conn
	err = conn.WriteJSON(clientFrame{Type: frameType, CallID: callID, Payload: raw})
	c.mu.Unlock()
	if err != nil {
		c.dropCall(callID)
		return serverFrame{}, errors.Wrapf(err, "socket: send %s", frameType)
	}

	select {
	case <-ctx.Done():
		c.dropCall(callID)
		return serverFrame{}, ctx.Err()
	case <-time.After(c.cfg.CallTimeout):
		c.dropCall(callID)
		return serverFrame{}, errors.Errorf("socket: %s timed out", frameType)
	case frame, ok := <-ch:
		if !ok {
			return serverFrame{}, errors.Errorf("socket: connection lost during %s", frameType)
		}
		if !frame.OK {
			return serverFrame{}, errors.Errorf("socket: %s rejected: %s", frameType, frame.Error)
		}
		return frame, nil
	}
}

func (c *Client) dropCall(callID int64) {
	c.mu.Lock()
	delete(c.acks, callID)
	c.mu.Unlock()
}

// JoinRoom subscribes this session to a scope's event channel. Joining an
// already-joined room is a server-side no-op, so rejoin after reconnect is
// safe to fire unconditionally.
func (c *Client) JoinRoom(ctx context.Context, scopeID string) error {
	_, err := c.call(ctx, frameJoinRoom, roomPayload{ScopeID: scopeID})
	return err
}

// LeaveRoom unsubscribes from a scope's event channel. Fire and forget: the
// caller is tearing the scope down and has nothing useful to do with a
// failure beyond logging.
func (c *Client) LeaveRoom(_ context.Context, scopeID string) error {
	return c.send(clientFrame{Type: frameLeaveRoom, Payload: mustJSON(roomPayload{ScopeID: scopeID})})
}

// RecoverMissed asks the server for messages created after lastID in the
// given scope, closing the gap a disconnection left.
func (c *Client) RecoverMissed(ctx context.Context, scopeID string, lastID int64) ([]model.Message, error) {
	frame, err := c.call(ctx, frameRecover, recoverPayload{ScopeID: scopeID, LastID: lastID})
	if err != nil {
		return nil, err
	}
	var out struct {
		Messages []model.Message `json:"messages"`
	}
	if err := json.Unmarshal(frame.Payload, &out); err != nil {
		return nil, errors.Wrap(err, "socket: decode recovery payload")
	}
	return out.Messages, nil
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/deskwire/deskwire/pkg/api"
	"github.com/deskwire/deskwire/pkg/model"
	"github.com/deskwire/deskwire/pkg/socket"
)

// fakeTransport implements Transport in memory, letting tests emit events
// and lifecycle transitions directly.
type fakeTransport struct {
	mu         sync.Mutex
	connected  bool
	joinErr    error
	recoverErr error
	recovered  []model.Message
	joins      []string
	leaves     []string
	lifecycle  []func(socket.LifecycleEvent)
	events     map[string][]func(json.RawMessage)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{connected: true, events: map[string][]func(json.RawMessage){}}
}

func (t *fakeTransport) OnLifecycle(fn func(socket.LifecycleEvent)) socket.Subscription {
	t.mu.Lock()
	t.lifecycle = append(t.lifecycle, fn)
	t.mu.Unlock()
	return socket.Subscription{}
}

func (t *fakeTransport) OnEvent(name string, fn func(json.RawMessage)) socket.Subscription {
	t.mu.Lock()
	t.events[name] = append(t.events[name], fn)
	t.mu.Unlock()
	return socket.Subscription{}
}

func (t *fakeTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *fakeTransport) JoinRoom(_ context.Context, scopeID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.joinErr != nil {
		return t.joinErr
	}
	t.joins = append(t.joins, scopeID)
	return nil
}

func (t *fakeTransport) LeaveRoom(_ context.Context, scopeID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaves = append(t.leaves, scopeID)
	return nil
}

func (t *fakeTransport) RecoverMissed(_ context.Context, _ string, lastID int64) ([]model.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.recoverErr != nil {
		return nil, t.recoverErr
	}
	var out []model.Message
	for _, m := range t.recovered {
		if m.ID > lastID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *fakeTransport) emit(name string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	t.mu.Lock()
	fns := append([]func(json.RawMessage){}, t.events[name]...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn(raw)
	}
}

func (t *fakeTransport) fire(ev socket.LifecycleEvent) {
	t.mu.Lock()
	fns := append([]func(socket.LifecycleEvent){}, t.lifecycle...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (t *fakeTransport) setConnected(c bool) {
	t.mu.Lock()
	t.connected = c
	t.mu.Unlock()
}

func (t *fakeTransport) joinCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.joins)
}

// fakeMessageAPI implements MessageAPI over in-memory pages.
type fakeMessageAPI struct {
	mu       sync.Mutex
	pages    map[int][]model.Message
	ticket   *model.Ticket
	hasMore  map[int]bool
	sendErr  error
	nextID   int64
	fetches  int
	sent     []api.SendMessageRequest
	fetchGat chan struct{} // when set, FetchMessages blocks until it closes
}

func newFakeMessageAPI() *fakeMessageAPI {
	return &fakeMessageAPI{pages: map[int][]model.Message{}, hasMore: map[int]bool{}, nextID: 1000}
}

func (f *fakeMessageAPI) FetchMessages(ctx context.Context, _ int64, page int) (*api.MessagesPage, error) {
	f.mu.Lock()
	gate := f.fetchGat
	f.fetches++
	msgs := append([]model.Message{}, f.pages[page]...)
	resp := &api.MessagesPage{Messages: msgs, Ticket: f.ticket, HasMore: f.hasMore[page]}
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return resp, nil
}

func (f *fakeMessageAPI) FetchMessagesAfter(_ context.Context, _ int64, lastID int64) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, msgs := range f.pages {
		for _, m := range msgs {
			if m.ID > lastID {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (f *fakeMessageAPI) SendMessage(_ context.Context, ticketID int64, req api.SendMessageRequest) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, req)
	f.nextID++
	return &model.Message{ID: f.nextID, TicketID: ticketID, Body: req.Body, FromMe: true, Read: true, Ack: model.AckSent, CreatedAt: time.Now()}, nil
}

func (f *fakeMessageAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", msg)
}

func msg(id, ticketID int64, body string) model.Message {
	return model.Message{ID: id, TicketID: ticketID, Body: body, CreatedAt: time.Unix(id, 0)}
}

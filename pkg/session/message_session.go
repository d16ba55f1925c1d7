package session

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/deskwire/deskwire/pkg/api"
	"github.com/deskwire/deskwire/pkg/bus"
	"github.com/deskwire/deskwire/pkg/model"
	"github.com/deskwire/deskwire/pkg/resume"
	"github.com/deskwire/deskwire/pkg/socket"
	"github.com/deskwire/deskwire/pkg/store"
)

// MessageSessionConfig configures a live conversation session.
type MessageSessionConfig struct {
	CompanyID int64
	TicketID  int64

	API       MessageAPI
	Transport Transport
	Resume    resume.Store
	Bus       *bus.Bus
	Notifier  Notifier

	// Debounce and RecoveryDelay default to DefaultDebounce and
	// DefaultRecoveryDelay when zero.
	Debounce      time.Duration
	RecoveryDelay time.Duration
}

// MessageSession keeps one ticket's conversation converged: paginated REST
// snapshots merge with socket events in the dedup buffer, optimistic sends
// track through the pending tracker, and recovery plus polling cover the
// windows push misses.
type MessageSession struct {
	cfg MessageSessionConfig
	log zerolog.Logger

	list    *store.MessageList
	pending *store.OptimisticTracker
	scope   *socket.ScopeRef

	membership *roomMembership
	fetcher    *pageFetcher
	recovery   *recoveryController
	poller     *poller

	mu      sync.Mutex
	ticket  *model.Ticket
	subs    []socket.Subscription
	started bool
	closed  bool
}

// NewMessageSession validates the config and returns an unstarted session.
func NewMessageSession(cfg MessageSessionConfig) (*MessageSession, error) {
	if cfg.TicketID <= 0 {
		return nil, errors.New("session: ticket id is required")
	}
	if cfg.API == nil || cfg.Transport == nil {
		return nil, errors.New("session: API and Transport are required")
	}
	if cfg.Resume == nil {
		cfg.Resume = resume.NewMemoryStore()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = LogNotifier{}
	}

	s := &MessageSession{
		cfg:     cfg,
		log:     log.With().Str("component", "session").Int64("ticket_id", cfg.TicketID).Logger(),
		list:    store.NewMessageList(),
		pending: store.NewOptimisticTracker(),
		scope:   socket.NewScopeRef(strconv.FormatInt(cfg.TicketID, 10)),
	}
	s.membership = newRoomMembership(cfg.Transport, s.scope, s.log)
	return s, nil
}

// Start registers listeners, joins the room and schedules the first fetch.
// ctx bounds everything the session does; Close is still required to undo
// the listener registrations.
func (s *MessageSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("session: already started")
	}
	s.started = true
	s.mu.Unlock()

	s.fetcher = newPageFetcher(ctx, s.cfg.Debounce, s.fetchPage, s.notifyError, s.log)
	s.recovery = newRecoveryController(
		s.cfg.Resume, s.cfg.TicketID, s.cfg.RecoveryDelay,
		s.recoverMissed, s.applyRecovered, s.list.LastID, s.log,
	)
	s.poller = newPoller(s.cfg.Transport.Connected, s.pollOnce, s.log)

	eventName := model.EventName(s.cfg.CompanyID, model.ResourceAppMessage)
	s.addSub(s.cfg.Transport.OnEvent(eventName, s.handleEvent))
	s.addSub(s.cfg.Transport.OnLifecycle(func(ev socket.LifecycleEvent) {
		switch ev.Kind {
		case socket.LifecycleConnect:
			s.membership.join(ctx)
			s.recovery.trigger(ctx)
			s.poller.recompute()
		case socket.LifecycleDisconnect:
			s.poller.recompute()
		}
	}))

	if s.cfg.Transport.Connected() {
		s.membership.join(ctx)
	}
	s.fetcher.request(true)
	s.poller.start(ctx)
	s.log.Info().Msg("message session started")
	return nil
}

func (s *MessageSession) addSub(sub socket.Subscription) {
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
}

// fetchPage is the fetcher callback: one page of the conversation, applied
// additively. The first page also carries the ticket, whose authoritative
// identifier upgrades the scope reference.
func (s *MessageSession) fetchPage(ctx context.Context, page int) (func(), bool, error) {
	resp, err := s.cfg.API.FetchMessages(ctx, s.cfg.TicketID, page)
	if err != nil {
		return nil, false, err
	}
	apply := func() {
		added := s.list.LoadPage(resp.Messages)
		if resp.Ticket != nil {
			s.setTicket(resp.Ticket)
			if resp.Ticket.UUID != "" {
				s.scope.Upgrade(resp.Ticket.UUID)
			}
			s.publish(bus.Signal{Type: bus.SignalTicketLoaded, TicketID: s.cfg.TicketID})
		}
		s.log.Debug().Int("page", page).Int("added", added).Bool("has_more", resp.HasMore).Msg("page merged")
		s.publish(bus.Signal{Type: bus.SignalMessagesReady, TicketID: s.cfg.TicketID})
	}
	return apply, resp.HasMore, nil
}

func (s *MessageSession) setTicket(t *model.Ticket) {
	cp := *t
	s.mu.Lock()
	s.ticket = &cp
	s.mu.Unlock()
}

// Ticket returns the ticket entity from the most recent fetch, if any.
func (s *MessageSession) Ticket() *model.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticket == nil {
		return nil
	}
	cp := *s.ticket
	return &cp
}

// handleEvent applies one scoped socket event to the buffer. Events for other
// tickets on the company channel are filtered by scope, matching either the
// provisional or the authoritative identifier.
func (s *MessageSession) handleEvent(raw json.RawMessage) {
	ev, err := model.DecodeEntityEvent(raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("dropping undecodable event")
		return
	}
	scopeID := ev.ScopeTicketID()
	if !s.scope.Matches(strconv.FormatInt(scopeID, 10)) {
		return
	}

	switch ev.Action {
	case model.ActionCreate, model.ActionUpdate:
		if ev.Message == nil {
			return
		}
		s.list.Upsert(*ev.Message)
		if ev.Action == model.ActionCreate {
			s.recovery.advance(context.Background(), ev.Message.ID)
			s.publish(bus.Signal{Type: bus.SignalMessageArrived, TicketID: s.cfg.TicketID})
		}
		s.publish(bus.Signal{Type: bus.SignalMessagesReady, TicketID: s.cfg.TicketID})
	case model.ActionDelete:
		if ev.Message == nil {
			return
		}
		s.list.Remove(ev.Message.ID)
		s.publish(bus.Signal{Type: bus.SignalMessagesReady, TicketID: s.cfg.TicketID})
	case model.ActionUpdateRead:
		s.list.MarkAllRead(s.cfg.TicketID)
		s.publish(bus.Signal{Type: bus.SignalMessagesReady, TicketID: s.cfg.TicketID})
	default:
		s.log.Debug().Str("action", ev.Action).Msg("ignoring unknown event action")
	}
}

// recoverMissed asks for messages after lastID, over the socket when it is
// up, through REST otherwise.
func (s *MessageSession) recoverMissed(ctx context.Context, lastID int64) ([]model.Message, error) {
	if s.cfg.Transport.Connected() {
		msgs, err := s.cfg.Transport.RecoverMissed(ctx, s.scope.Current(), lastID)
		if err == nil {
			return msgs, nil
		}
		s.log.Debug().Err(err).Msg("socket recovery failed, falling back to REST")
	}
	return s.cfg.API.FetchMessagesAfter(ctx, s.cfg.TicketID, lastID)
}

func (s *MessageSession) applyRecovered(msgs []model.Message) {
	for _, m := range msgs {
		s.list.Upsert(m)
	}
	s.publish(bus.Signal{Type: bus.SignalMessagesReady, TicketID: s.cfg.TicketID})
}

// pollOnce re-fetches the newest page and merges only ids not yet present.
// An unchanged server response is a complete no-op.
func (s *MessageSession) pollOnce(ctx context.Context) error {
	resp, err := s.cfg.API.FetchMessages(ctx, s.cfg.TicketID, 1)
	if err != nil {
		return err
	}
	known := s.list.IDs()
	fresh := 0
	var newest int64
	for _, m := range resp.Messages {
		if _, ok := known[m.ID]; ok {
			continue
		}
		s.list.Upsert(m)
		fresh++
		if m.ID > newest {
			newest = m.ID
		}
	}
	if fresh == 0 {
		return nil
	}
	s.recovery.advance(ctx, newest)
	s.log.Debug().Int("fresh", fresh).Msg("poll merged new messages")
	s.publish(bus.Signal{Type: bus.SignalMessagesReady, TicketID: s.cfg.TicketID})
	return nil
}

// LoadMore fetches the next page, when the backend reported one.
func (s *MessageSession) LoadMore() {
	s.fetcher.loadMore()
}

// HasMore reports whether older pages remain.
func (s *MessageSession) HasMore() bool {
	return s.fetcher.more()
}

// Send delivers a message optimistically: the pending entry shows up in the
// view immediately, the confirmed entity replaces it through the normal
// reducer path, and a failure keeps the entry visible with its error.
func (s *MessageSession) Send(ctx context.Context, req api.SendMessageRequest) (string, error) {
	req.FromMe = true
	req.Read = true
	tempID := s.pending.Add(s.cfg.TicketID, req.Body, req.MediaType)

	confirmed, err := s.cfg.API.SendMessage(ctx, s.cfg.TicketID, req)
	if err != nil {
		s.pending.Fail(s.cfg.TicketID, tempID, err)
		if ctx.Err() == nil {
			s.cfg.Notifier.Notify("error", api.UserMessage(err))
		}
		return tempID, err
	}
	if err := s.pending.Confirm(s.cfg.TicketID, tempID, *confirmed); err != nil {
		s.log.Warn().Err(err).Str("temp_id", tempID).Msg("confirm on unknown pending entry")
	}
	s.list.Upsert(*confirmed)
	s.recovery.advance(ctx, confirmed.ID)
	s.publish(bus.Signal{Type: bus.SignalMessagesReady, TicketID: s.cfg.TicketID})
	return tempID, nil
}

// RetrySend re-sends a failed pending entry under a fresh temp id.
func (s *MessageSession) RetrySend(ctx context.Context, tempID string) (string, error) {
	var failed *store.PendingMessage
	for _, p := range s.pending.List(s.cfg.TicketID) {
		if p.TempID == tempID {
			failed = p
			break
		}
	}
	if failed == nil {
		return "", errors.Errorf("session: no pending entry %s", tempID)
	}
	if failed.Status != store.PendingFailed {
		return "", errors.Errorf("session: pending entry %s is not failed", tempID)
	}
	s.pending.Remove(s.cfg.TicketID, tempID)
	return s.Send(ctx, api.SendMessageRequest{Body: failed.Body, MediaType: failed.MediaType})
}

// DismissPending drops a failed pending entry without retrying.
func (s *MessageSession) DismissPending(tempID string) bool {
	return s.pending.Remove(s.cfg.TicketID, tempID)
}

// View derives the render-ready state: ordered primary list, reactions by
// parent, pending entries of this scope.
func (s *MessageSession) View() store.MessageView {
	return store.BuildMessageView(s.list.Snapshot(), s.pending.List(s.cfg.TicketID))
}

// MembershipState exposes the room state machine, mainly for diagnostics.
func (s *MessageSession) MembershipState() string {
	return s.membership.current()
}

func (s *MessageSession) publish(sig bus.Signal) {
	if s.cfg.Bus == nil {
		return
	}
	if err := s.cfg.Bus.Publish(sig); err != nil {
		s.log.Debug().Err(err).Str("signal", sig.Type).Msg("bus publish failed")
	}
}

func (s *MessageSession) notifyError(err error) {
	s.cfg.Notifier.Notify("error", api.UserMessage(err))
}

// Close tears the session down: listeners cancelled, timers stopped, room
// left. Safe to call more than once.
func (s *MessageSession) Close() {
	s.mu.Lock()
	if s.closed || !s.started {
		s.closed = true
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	s.fetcher.close()
	s.recovery.close()
	s.poller.stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.membership.leave(ctx)
	s.log.Info().Msg("message session closed")
}

package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/deskwire/deskwire/pkg/api"
	"github.com/deskwire/deskwire/pkg/bus"
	"github.com/deskwire/deskwire/pkg/model"
	"github.com/deskwire/deskwire/pkg/socket"
	"github.com/deskwire/deskwire/pkg/store"
)

// TicketFeedConfig configures a live filtered ticket-list session.
type TicketFeedConfig struct {
	CompanyID int64
	Query     api.TicketsQuery

	API       TicketAPI
	Transport Transport
	Bus       *bus.Bus
	Notifier  Notifier

	Debounce time.Duration
}

// TicketFeed is the same convergence engine applied to the triage list:
// paginated snapshots merge additively, live ticket events promote fresh
// activity to the front, updateRead clears unread counters, and the poller
// covers socket outages. Changing the filter resets the scope.
type TicketFeed struct {
	cfg TicketFeedConfig
	log zerolog.Logger

	list    *store.TicketList
	fetcher *pageFetcher
	poller  *poller

	mu      sync.Mutex
	query   api.TicketsQuery
	subs    []socket.Subscription
	started bool
	closed  bool
}

// NewTicketFeed validates the config and returns an unstarted feed.
func NewTicketFeed(cfg TicketFeedConfig) (*TicketFeed, error) {
	if cfg.API == nil || cfg.Transport == nil {
		return nil, errors.New("session: API and Transport are required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = LogNotifier{}
	}
	return &TicketFeed{
		cfg:   cfg,
		log:   log.With().Str("component", "ticket_feed").Logger(),
		list:  store.NewTicketList(),
		query: cfg.Query,
	}, nil
}

// Start registers listeners and schedules the first fetch.
func (f *TicketFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return errors.New("session: already started")
	}
	f.started = true
	f.mu.Unlock()

	f.fetcher = newPageFetcher(ctx, f.cfg.Debounce, f.fetchPage, f.notifyError, f.log)
	f.poller = newPoller(f.cfg.Transport.Connected, f.pollOnce, f.log)

	eventName := model.EventName(f.cfg.CompanyID, model.ResourceTicket)
	f.addSub(f.cfg.Transport.OnEvent(eventName, f.handleEvent))
	f.addSub(f.cfg.Transport.OnLifecycle(func(ev socket.LifecycleEvent) {
		switch ev.Kind {
		case socket.LifecycleConnect, socket.LifecycleDisconnect:
			f.poller.recompute()
		}
	}))

	f.fetcher.request(true)
	f.poller.start(ctx)
	f.log.Info().Msg("ticket feed started")
	return nil
}

func (f *TicketFeed) addSub(sub socket.Subscription) {
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
}

// SetQuery swaps the filter set: buffer reset, page 1, debounced refetch.
// The in-flight fetch is invalidated before the reset so a result for the
// old filters can never land in the new scope.
func (f *TicketFeed) SetQuery(q api.TicketsQuery) {
	f.mu.Lock()
	f.query = q
	f.mu.Unlock()
	f.fetcher.invalidate()
	f.list.Reset()
	f.fetcher.request(true)
}

func (f *TicketFeed) currentQuery() api.TicketsQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.query
}

func (f *TicketFeed) fetchPage(ctx context.Context, page int) (func(), bool, error) {
	q := f.currentQuery()
	q.PageNumber = page
	resp, err := f.cfg.API.FetchTickets(ctx, q)
	if err != nil {
		return nil, false, err
	}
	apply := func() {
		added := f.list.LoadPage(resp.Tickets)
		f.log.Debug().Int("page", page).Int("added", added).Msg("ticket page merged")
		f.publishChanged()
	}
	return apply, resp.HasMore, nil
}

// handleEvent applies one company-scoped ticket event. Which tickets belong
// to the filter set is the server's call at fetch time; live events only
// promote, update, or remove entries.
func (f *TicketFeed) handleEvent(raw json.RawMessage) {
	ev, err := model.DecodeEntityEvent(raw)
	if err != nil {
		f.log.Warn().Err(err).Msg("dropping undecodable event")
		return
	}
	switch ev.Action {
	case model.ActionCreate, model.ActionUpdate:
		if ev.Ticket == nil {
			return
		}
		f.list.UpsertAndPromote(*ev.Ticket)
		f.publishChanged()
	case model.ActionDelete:
		id := ev.ScopeTicketID()
		if id == 0 {
			return
		}
		f.list.Remove(id)
		f.publishChanged()
	case model.ActionUpdateRead:
		id := ev.ScopeTicketID()
		if id == 0 {
			return
		}
		if f.list.MarkAllRead(id) > 0 {
			f.publishChanged()
		}
	default:
		f.log.Debug().Str("action", ev.Action).Msg("ignoring unknown event action")
	}
}

// pollOnce re-fetches the current filter's first page and merges only unseen
// tickets; entries already present keep their live-updated state.
func (f *TicketFeed) pollOnce(ctx context.Context) error {
	q := f.currentQuery()
	q.PageNumber = 1
	resp, err := f.cfg.API.FetchTickets(ctx, q)
	if err != nil {
		return err
	}
	known := f.list.IDs()
	fresh := 0
	for _, t := range resp.Tickets {
		if _, ok := known[t.ID]; ok {
			continue
		}
		f.list.Upsert(t)
		fresh++
	}
	if fresh > 0 {
		f.log.Debug().Int("fresh", fresh).Msg("poll merged new tickets")
		f.publishChanged()
	}
	return nil
}

// LoadMore fetches the next page of the current filter set.
func (f *TicketFeed) LoadMore() {
	f.fetcher.loadMore()
}

// HasMore reports whether further pages remain.
func (f *TicketFeed) HasMore() bool {
	return f.fetcher.more()
}

// View returns the list ordered by most recent activity.
func (f *TicketFeed) View() []model.Ticket {
	return store.BuildTicketView(f.list.Snapshot())
}

// UnreadCount sums unread messages across the feed, for badges.
func (f *TicketFeed) UnreadCount() int {
	return f.list.UnreadCount()
}

func (f *TicketFeed) publishChanged() {
	if f.cfg.Bus == nil {
		return
	}
	if err := f.cfg.Bus.Publish(bus.Signal{Type: bus.SignalTicketsChanged}); err != nil {
		f.log.Debug().Err(err).Msg("bus publish failed")
	}
	if err := f.cfg.Bus.Publish(bus.Signal{Type: bus.SignalUnreadChanged, Unread: f.list.UnreadCount()}); err != nil {
		f.log.Debug().Err(err).Msg("bus publish failed")
	}
}

func (f *TicketFeed) notifyError(err error) {
	f.cfg.Notifier.Notify("error", api.UserMessage(err))
}

// Close cancels listeners and timers. Safe to call more than once.
func (f *TicketFeed) Close() {
	f.mu.Lock()
	if f.closed || !f.started {
		f.closed = true
		f.mu.Unlock()
		return
	}
	f.closed = true
	subs := f.subs
	f.subs = nil
	f.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	f.fetcher.close()
	f.poller.stop()
	f.log.Info().Msg("ticket feed closed")
}

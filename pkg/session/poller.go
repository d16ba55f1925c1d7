package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Polling intervals. Pull is the source of truth of last resort: it runs
// slowly while push is healthy, tightens when the socket is down, and backs
// off when the backend itself keeps failing.
const (
	pollHealthy      = 30 * time.Second
	pollDisconnected = 5 * time.Second
	pollBackoff      = 60 * time.Second
	pollFailureLimit = 5
)

// poller drives the fallback re-fetch for one scope. One timer, never
// overlapping runs; the interval is recomputed on every transport lifecycle
// change, not only on ticks.
type poller struct {
	log       zerolog.Logger
	connected func() bool
	poll      func(ctx context.Context) error

	mu       sync.Mutex
	base     context.Context
	timer    *time.Timer
	failures int
	running  bool
	closed   bool
}

func newPoller(connected func() bool, poll func(ctx context.Context) error, log zerolog.Logger) *poller {
	return &poller{
		log:       log.With().Str("subsystem", "poller").Logger(),
		connected: connected,
		poll:      poll,
	}
}

func (p *poller) intervalLocked() time.Duration {
	if p.failures > pollFailureLimit {
		return pollBackoff
	}
	if !p.connected() {
		return pollDisconnected
	}
	return pollHealthy
}

// start arms the timer. ctx bounds every poll this poller will run.
func (p *poller) start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.timer != nil {
		return
	}
	p.base = ctx
	p.scheduleLocked()
}

// recompute re-arms the timer with the interval the current transport state
// calls for. Fired on connect and disconnect.
func (p *poller) recompute() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.base == nil || p.running {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.scheduleLocked()
}

func (p *poller) scheduleLocked() {
	interval := p.intervalLocked()
	p.timer = time.AfterFunc(interval, p.tick)
	p.log.Debug().Dur("interval", interval).Int("failures", p.failures).Msg("poll scheduled")
}

func (p *poller) tick() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.running = true
	ctx := p.base
	p.mu.Unlock()

	err := p.poll(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	if p.closed {
		return
	}
	if err != nil {
		p.failures++
		p.log.Warn().Err(err).Int("failures", p.failures).Msg("poll failed")
	} else {
		p.failures = 0
	}
	p.scheduleLocked()
}

func (p *poller) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

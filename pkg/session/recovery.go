package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskwire/deskwire/pkg/model"
	"github.com/deskwire/deskwire/pkg/resume"
)

// DefaultRecoveryDelay is how long recovery waits after a rejoin before
// asking for missed messages, letting the room join settle first.
const DefaultRecoveryDelay = time.Second

// recoverFunc fetches the messages created after lastID for the scope,
// over the socket when available, the REST client otherwise.
type recoverFunc func(ctx context.Context, lastID int64) ([]model.Message, error)

// recoveryController closes the gap a disconnection leaves: on reconnect it
// replays everything after the recorded resume point and advances it.
// Failures log only; the polling fallback covers whatever recovery misses.
type recoveryController struct {
	log      zerolog.Logger
	delay    time.Duration
	store    resume.Store
	ticketID int64
	recover  recoverFunc
	apply    func([]model.Message)
	// seed supplies a starting point the first time through, when nothing is
	// recorded yet; recovery then starts only from the next reconnect.
	seed func() int64

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

func newRecoveryController(store resume.Store, ticketID int64, delay time.Duration, rec recoverFunc, apply func([]model.Message), seed func() int64, log zerolog.Logger) *recoveryController {
	if delay <= 0 {
		delay = DefaultRecoveryDelay
	}
	return &recoveryController{
		log:      log.With().Str("subsystem", "recovery").Logger(),
		delay:    delay,
		store:    store,
		ticketID: ticketID,
		recover:  rec,
		apply:    apply,
		seed:     seed,
	}
}

// trigger schedules one recovery run. Re-triggering before the delay elapses
// restarts the clock; a flapping connection runs recovery once, after it
// settles.
func (r *recoveryController) trigger(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.delay, func() { r.runOnce(ctx) })
}

// advance records id as the newest seen message, used by the live event path
// so recovery never replays what push already delivered.
func (r *recoveryController) advance(ctx context.Context, id int64) {
	if id <= 0 {
		return
	}
	if err := r.store.SetLastMessageID(ctx, r.ticketID, id); err != nil {
		r.log.Warn().Err(err).Int64("id", id).Msg("failed to advance resume point")
	}
}

func (r *recoveryController) runOnce(ctx context.Context) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	lastID, err := r.store.LastMessageID(ctx, r.ticketID)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to read resume point")
		return
	}
	if lastID == 0 {
		if r.seed != nil {
			if id := r.seed(); id > 0 {
				r.advance(ctx, id)
			}
		}
		return
	}

	msgs, err := r.recover(ctx, lastID)
	if err != nil {
		r.log.Warn().Err(err).Int64("after", lastID).Msg("missed-message recovery failed")
		return
	}
	if len(msgs) == 0 {
		return
	}
	r.apply(msgs)
	newest := lastID
	for _, m := range msgs {
		if m.ID > newest {
			newest = m.ID
		}
	}
	r.advance(ctx, newest)
	r.log.Info().Int("recovered", len(msgs)).Int64("after", lastID).Msg("recovered missed messages")
}

func (r *recoveryController) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

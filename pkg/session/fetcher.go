package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the fetcher waits after a parameter change
// before hitting the backend. Typing in a filter box produces a burst of
// changes; only the last one fetches.
const DefaultDebounce = 500 * time.Millisecond

// fetchFunc performs one page fetch. It returns an apply closure instead of
// mutating state directly: the fetcher runs apply only if the request's epoch
// is still current, so a result that lost a scope race never lands.
type fetchFunc func(ctx context.Context, page int) (apply func(), hasMore bool, err error)

// pageFetcher serializes debounced, cancellable page fetches for one scope.
// Every parameter change bumps the epoch; the epoch is compared both before
// starting and before applying, which is what makes cancellation safe even
// when the context cancel races the response.
type pageFetcher struct {
	log      zerolog.Logger
	debounce time.Duration
	fetch    fetchFunc
	onError  func(error)

	// applyMu serializes apply closures. They publish on the bus, which can
	// block behind a slow subscriber; keeping them off mu means request,
	// loadMore and close never wait behind an apply.
	applyMu sync.Mutex

	mu      sync.Mutex
	base    context.Context
	timer   *time.Timer
	cancel  context.CancelFunc
	epoch   uint64
	page    int
	hasMore bool
	closed  bool
}

func newPageFetcher(base context.Context, debounce time.Duration, fetch fetchFunc, onError func(error), log zerolog.Logger) *pageFetcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &pageFetcher{
		log:      log.With().Str("subsystem", "fetcher").Logger(),
		debounce: debounce,
		fetch:    fetch,
		onError:  onError,
		base:     base,
		page:     1,
	}
}

// request schedules a debounced fetch. resetPage is true on scope or filter
// change; the accumulated pages are the caller's to Reset.
func (f *pageFetcher) request(resetPage bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.epoch++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	if resetPage {
		f.page = 1
		f.hasMore = false
	}
	epoch := f.epoch
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.debounce, func() { f.run(epoch) })
}

// loadMore advances to the next page under the same debounce/cancel
// discipline. A no-op when the backend already said there is nothing more.
func (f *pageFetcher) loadMore() {
	f.mu.Lock()
	if f.closed || !f.hasMore {
		f.mu.Unlock()
		return
	}
	f.page++
	f.mu.Unlock()
	f.request(false)
}

// invalidate kills the pending timer, the in-flight request and any result
// it could still land, without scheduling anything new. When it returns, no
// fetch from an earlier epoch can touch shared state, so callers may reset
// their buffers before issuing the next request.
func (f *pageFetcher) invalidate() {
	f.mu.Lock()
	f.epoch++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.mu.Unlock()

	// An apply that already passed its epoch check finishes here.
	f.applyMu.Lock()
	f.applyMu.Unlock()
}

func (f *pageFetcher) run(epoch uint64) {
	f.mu.Lock()
	if f.closed || epoch != f.epoch {
		f.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(f.base)
	f.cancel = cancel
	page := f.page
	f.mu.Unlock()

	apply, hasMore, err := f.fetch(ctx, page)

	f.mu.Lock()
	if f.closed || epoch != f.epoch {
		f.mu.Unlock()
		return
	}
	f.cancel = nil
	if err != nil {
		f.mu.Unlock()
		// Silent only when this run's own context was cancelled, meaning a
		// superseding request or close. An HTTP-level timeout carries the
		// same deadline error with a live context and must surface.
		if ctx.Err() != nil {
			return
		}
		f.log.Warn().Err(err).Int("page", page).Msg("page fetch failed")
		if f.onError != nil {
			f.onError(err)
		}
		return
	}
	f.hasMore = hasMore
	f.mu.Unlock()

	if apply == nil {
		return
	}
	// The epoch is re-checked under mu once the apply lock is held;
	// invalidate bumps the epoch and then waits on the apply lock, so after
	// it returns no superseded result can land.
	f.applyMu.Lock()
	defer f.applyMu.Unlock()
	f.mu.Lock()
	stale := f.closed || epoch != f.epoch
	f.mu.Unlock()
	if !stale {
		apply()
	}
}

func (f *pageFetcher) more() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}

func (f *pageFetcher) currentPage() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page
}

// close cancels the pending timer and any in-flight request. Results arriving
// afterwards hit the epoch check and vanish.
func (f *pageFetcher) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.epoch++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

// Package prefetch keeps the pages around the one being viewed loaded ahead
// of time. A single event loop drains a distance-ordered queue of page
// numbers into a bounded number of fetch slots; fetched pages are enriched
// from secondary sources and written back to the page cache.
package prefetch

import (
	"context"
	"sort"
	"sync"
	"time"

	"herbolive/internal/logging"
	"herbolive/internal/source"
	"herbolive/internal/types"
)

// Fetcher loads one catalog page from the network.
type Fetcher interface {
	FetchPlantsPage(ctx context.Context, page, perPage int) ([]types.Plant, error)
}

// Cache is the page cache the scheduler fills. *cache.PageCache satisfies it.
type Cache interface {
	GetPage(ctx context.Context, n int) ([]types.Plant, bool)
	SetPage(ctx context.Context, n int, items []types.Plant)
	HasPage(n int) bool
	ClearAround(center, keep int)
}

// State is the scheduler lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options configures a Scheduler.
type Options struct {
	PageSize          int
	InitialPages      int
	Concurrency       int
	EnrichConcurrency int
	Ahead             int
	Behind            int
	MaxWindow         int
	PollDelay         time.Duration

	// Lookups are tried in order for each record that lacks a description
	// or an image.
	Lookups []source.Lookup

	// PauseWhen is consulted before every dequeue in addition to Pause().
	PauseWhen func() bool

	// Clock drives the pause-poll timer. Defaults to RealClock.
	Clock Clock
}

func (o *Options) setDefaults() {
	if o.PageSize < 1 {
		o.PageSize = 6
	}
	if o.InitialPages < 1 {
		o.InitialPages = 5
	}
	if o.Concurrency < 1 {
		o.Concurrency = 2
	}
	if o.EnrichConcurrency < 1 {
		o.EnrichConcurrency = 3
	}
	if o.MaxWindow < 1 {
		o.MaxWindow = 10
	}
	if o.PollDelay <= 0 {
		o.PollDelay = time.Second
	}
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
}

// keepWindow is how many pages ClearAround keeps in memory.
func (o *Options) keepWindow() int {
	keep := o.Ahead + o.Behind + 1
	if o.InitialPages > keep {
		keep = o.InitialPages
	}
	if keep > o.MaxWindow {
		keep = o.MaxWindow
	}
	return keep
}

// Scheduler prefetches the window of pages around the current page.
type Scheduler struct {
	opts    Options
	fetcher Fetcher
	cache   Cache

	mu        sync.Mutex
	queue     []int
	queued    map[int]bool
	inFlight  map[int]bool
	enriching map[int]bool
	active    int
	current   int
	started   bool
	stopped   bool
	paused    bool

	// changed is closed and replaced whenever the queue or the active
	// count changes.
	changed chan struct{}

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a scheduler. Nothing runs until Start.
func New(fetcher Fetcher, cache Cache, opts Options) *Scheduler {
	opts.setDefaults()
	return &Scheduler{
		opts:      opts,
		fetcher:   fetcher,
		cache:     cache,
		queued:    make(map[int]bool),
		inFlight:  make(map[int]bool),
		enriching: make(map[int]bool),
		current:   1,
		changed:   make(chan struct{}),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Start launches the event loop (once) and schedules the window around
// initialPage. Calling Start after Stop resumes dequeuing.
func (s *Scheduler) Start(ctx context.Context, initialPage int) {
	s.mu.Lock()
	s.stopped = false
	if !s.started {
		s.started = true
		loopCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		go s.loop(loopCtx)
		logging.Prefetch("Scheduler started (concurrency=%d, ahead=%d, behind=%d)",
			s.opts.Concurrency, s.opts.Ahead, s.opts.Behind)
	}
	s.mu.Unlock()

	s.ScheduleAround(initialPage)
}

// Stop stops dequeuing. In-flight fetches finish; the queue is kept.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	logging.PrefetchDebug("Scheduler stopped")
}

// Close stops the scheduler, cancels in-flight work and waits for the loop.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.stopped = true
	started := s.started
	cancel := s.cancel
	s.mu.Unlock()
	if !started {
		return
	}
	cancel()
	<-s.done
}

// Wait blocks until the event loop has exited.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

// Pause holds off new dequeues until Resume.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	logging.PrefetchDebug("Scheduler paused")
}

// Resume lifts Pause and wakes the loop.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	logging.PrefetchDebug("Scheduler resumed")
	s.signal()
}

// State reports the lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.started:
		return StateIdle
	case s.stopped:
		return StateStopped
	case s.pausedLocked():
		return StatePaused
	default:
		return StateRunning
	}
}

// Idle reports whether the queue is empty and nothing is in flight.
func (s *Scheduler) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) == 0 && s.active == 0
}

// WaitIdle blocks until Idle or ctx is done.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	for {
		s.mu.Lock()
		idle := len(s.queue) == 0 && s.active == 0
		changed := s.changed
		s.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Queue returns a copy of the pending page numbers in dequeue order.
func (s *Scheduler) Queue() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.queue...)
}

// ScheduleAround makes page the current page. The wanted set is
// [page-behind, page+ahead] plus [1, initialPages]; wanted pages that are
// neither in memory nor in flight form the new queue, nearest first (ties
// favor the lower page). Pages outside the keep window are then evicted from
// memory. The wanted set is returned in ascending order.
func (s *Scheduler) ScheduleAround(page int) []int {
	if page < 1 {
		page = 1
	}
	wanted := s.Window(page)

	s.mu.Lock()
	s.current = page
	s.queue = s.queue[:0]
	s.queued = make(map[int]bool, len(wanted))
	for _, n := range wanted {
		if s.inFlight[n] || s.cache.HasPage(n) {
			continue
		}
		s.queue = append(s.queue, n)
		s.queued[n] = true
	}
	sort.SliceStable(s.queue, func(i, j int) bool {
		di, dj := distance(s.queue[i], page), distance(s.queue[j], page)
		if di != dj {
			return di < dj
		}
		return s.queue[i] < s.queue[j]
	})
	queued := len(s.queue)
	s.notifyLocked()
	s.mu.Unlock()

	s.cache.ClearAround(page, s.opts.keepWindow())
	logging.PrefetchDebug("ScheduleAround(%d): wanted %v, queued %d", page, wanted, queued)
	s.signal()
	return wanted
}

// Window returns the wanted page set for page, ascending.
func (s *Scheduler) Window(page int) []int {
	lo := page - s.opts.Behind
	if lo < 1 {
		lo = 1
	}
	hi := page + s.opts.Ahead
	seen := make(map[int]bool)
	var out []int
	add := func(n int) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for n := 1; n <= s.opts.InitialPages; n++ {
		add(n)
	}
	for n := lo; n <= hi; n++ {
		add(n)
	}
	sort.Ints(out)
	return out
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

func (s *Scheduler) pausedLocked() bool {
	return s.paused || (s.opts.PauseWhen != nil && s.opts.PauseWhen())
}

func (s *Scheduler) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// signal wakes the event loop without blocking.
func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// loop is woken by events: enqueue, slot freed, poll timer, resume.
func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	var poll Timer
	var pollC <-chan time.Time
	stopPoll := func() {
		if poll != nil {
			poll.Stop()
			poll, pollC = nil, nil
		}
	}

	for {
		if s.dispatch(ctx) {
			if poll == nil {
				poll = s.opts.Clock.NewTimer(s.opts.PollDelay)
				pollC = poll.C()
			}
		} else {
			stopPoll()
		}
		select {
		case <-ctx.Done():
			stopPoll()
			s.wg.Wait()
			logging.PrefetchDebug("Scheduler loop exited")
			return
		case <-s.wake:
		case <-pollC:
			poll, pollC = nil, nil
		}
	}
}

// dispatch starts as many queued fetches as free slots allow. It reports
// whether a pause is holding back queued pages.
func (s *Scheduler) dispatch(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.notifyLocked()

	for !s.stopped && ctx.Err() == nil && s.active < s.opts.Concurrency && len(s.queue) > 0 {
		if s.pausedLocked() {
			return true
		}

		page := s.queue[0]
		s.queue = s.queue[1:]
		delete(s.queued, page)
		if s.inFlight[page] || s.cache.HasPage(page) {
			continue
		}

		s.inFlight[page] = true
		s.active++
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if _, err := s.FetchPageImmediate(ctx, page, true); err != nil && ctx.Err() == nil {
				logging.PrefetchWarn("Prefetch of page %d failed: %v", page, err)
			}
			s.mu.Lock()
			delete(s.inFlight, page)
			s.active--
			s.notifyLocked()
			s.mu.Unlock()
			s.signal()
		}()
	}
	return false
}

// FetchPageImmediate returns page from the cache (memory or persisted) when
// it holds records; otherwise it fetches the page, stores it and, when
// enrich is set, enriches it.
func (s *Scheduler) FetchPageImmediate(ctx context.Context, page int, enrich bool) ([]types.Plant, error) {
	if items, ok := s.cache.GetPage(ctx, page); ok && len(items) > 0 {
		return items, nil
	}

	timer := logging.StartTimer(logging.CategoryPrefetch, "FetchPage")
	items, err := s.fetcher.FetchPlantsPage(ctx, page, s.opts.PageSize)
	timer.Stop()
	if err != nil {
		return nil, err
	}
	s.cache.SetPage(ctx, page, items)
	logging.PrefetchDebug("Fetched page %d (%d items)", page, len(items))

	if enrich && len(items) > 0 {
		if err := s.EnrichPage(ctx, page); err != nil {
			logging.EnrichDebug("Enrichment of page %d stopped: %v", page, err)
		}
		if enriched, ok := s.cache.GetPage(ctx, page); ok {
			return enriched, nil
		}
	}
	return items, nil
}

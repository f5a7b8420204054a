// Package search runs progressive searches: results already held in memory
// are shown at once, then a single delayed server query completes them.
//
// Each call to Search starts a session identified by a token. Every state
// change a session makes goes through Coordinator.commit, which drops the
// change unless the session is still the current one.
package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"herbolive/internal/catalog"
	"herbolive/internal/logging"
	"herbolive/internal/types"
)

// LocalSource exposes the pages currently held in memory.
// *cache.PageCache satisfies it.
type LocalSource interface {
	Snapshot() (version uint64, pages [][]types.Plant)
}

// Searcher runs the server-side search and the full-catalog fallback.
type Searcher interface {
	SearchPlants(ctx context.Context, query string, perPage int) ([]types.Plant, error)
	FetchAllPlants(ctx context.Context) ([]types.Plant, error)
}

// Status describes what an Update shows.
type Status int

const (
	// StatusEmpty is the cleared state of an empty query.
	StatusEmpty Status = iota
	// StatusPartial shows local results while the session continues.
	StatusPartial
	// StatusTimedOut is the forced render of a session that produced nothing in time.
	StatusTimedOut
	// StatusComplete is the final render after the server phase.
	StatusComplete
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusPartial:
		return "partial"
	case StatusTimedOut:
		return "timed_out"
	case StatusComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Update is one render of the search results.
type Update struct {
	Token  uint64
	Query  string
	Items  []types.Plant
	Status Status
}

// NoResults reports whether the update is a final render with nothing found.
func (u Update) NoResults() bool {
	return u.Status == StatusComplete && len(u.Items) == 0
}

// Renderer receives updates. It is called with the coordinator lock held, so
// it must not block or call back into the Coordinator.
type Renderer func(Update)

// Options configures a Coordinator.
type Options struct {
	Threshold       int           // local matches that trigger an immediate render
	PollInterval    time.Duration // local rescan period
	ServerDelay     time.Duration // delay before the server phase
	ServerTimeout   time.Duration // per server request
	SessionTimeout  time.Duration // hard session timeout
	PostTimeoutPoll time.Duration // rescan period after the hard timeout
	ServerPerPage   int

	Clock Clock

	// OnSettled is called when a session ends with new server results or is
	// cancelled by the user. It runs without the coordinator lock.
	OnSettled func()
}

func (o *Options) setDefaults() {
	if o.Threshold < 1 {
		o.Threshold = 12
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 300 * time.Millisecond
	}
	if o.ServerDelay <= 0 {
		o.ServerDelay = 1500 * time.Millisecond
	}
	if o.ServerTimeout <= 0 {
		o.ServerTimeout = 8 * time.Second
	}
	if o.SessionTimeout <= 0 {
		o.SessionTimeout = 10 * time.Second
	}
	if o.PostTimeoutPoll <= 0 {
		o.PostTimeoutPoll = 2 * time.Second
	}
	if o.ServerPerPage < 1 {
		o.ServerPerPage = 100
	}
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
}

// Coordinator owns the current search session.
type Coordinator struct {
	opts   Options
	local  LocalSource
	server Searcher
	render Renderer

	mu      sync.Mutex
	token   uint64
	sess    *session
	query   string
	results []types.Plant
	closed  bool

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a coordinator. render may be nil.
func New(local LocalSource, server Searcher, render Renderer, opts Options) *Coordinator {
	opts.setDefaults()
	if render == nil {
		render = func(Update) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		opts:       opts,
		local:      local,
		server:     server,
		render:     render,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// session is the state of one search invocation. Its fields are only
// touched with Coordinator.mu held.
type session struct {
	token  uint64
	query  string
	reqID  string
	ctx    context.Context
	cancel context.CancelFunc

	seenKeys   map[string]bool
	sciSeen    map[string]int64
	matches    []types.Plant
	dupCount   int
	allowAll   bool
	rendered   int
	timedOut   bool
	scanned    bool
	lastVer    uint64
	initial    bool // initial render done
	shownCount int  // matches shown by the initial render

	poll   Ticker
	server Timer
	hard   Timer
}

// Search starts a new session for query and returns its token. Any previous
// session is cancelled. An empty query clears the results and renders the
// empty state before returning. Otherwise the first local scan runs before
// returning and may already render.
func (c *Coordinator) Search(query string) uint64 {
	q := catalog.NormalizeQuery(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.token++
	tok := c.token
	if c.sess != nil {
		c.stopLocked(c.sess)
		c.sess = nil
	}
	c.query = q
	c.results = nil

	if q == "" || c.closed {
		c.render(Update{Token: tok, Status: StatusEmpty})
		return tok
	}

	ctx, cancel := context.WithCancel(c.baseCtx)
	s := &session{
		token:    tok,
		query:    q,
		reqID:    logging.NewRequestID(),
		ctx:      ctx,
		cancel:   cancel,
		seenKeys: make(map[string]bool),
		sciSeen:  make(map[string]int64),
		poll:     c.opts.Clock.NewTicker(c.opts.PollInterval),
		server:   c.opts.Clock.NewTimer(c.opts.ServerDelay),
		hard:     c.opts.Clock.NewTimer(c.opts.SessionTimeout),
	}
	c.sess = s
	logging.WithRequestID(logging.CategorySearch, s.reqID).Info("Search #%d started: %q", tok, q)

	c.scanLocked(s)

	c.wg.Add(1)
	go c.run(s)
	return tok
}

// Cancel ends the current session, e.g. when the user leaves the search
// view, and calls OnSettled.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	s := c.sess
	if s != nil {
		c.stopLocked(s)
		c.sess = nil
	}
	c.mu.Unlock()

	if s != nil {
		logging.SearchDebug("Search #%d cancelled", s.token)
	}
	if c.opts.OnSettled != nil {
		c.opts.OnSettled()
	}
}

// Close cancels any session and waits for session goroutines to exit.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	if c.sess != nil {
		c.stopLocked(c.sess)
		c.sess = nil
	}
	c.mu.Unlock()
	c.baseCancel()
	c.wg.Wait()
}

// Results returns a copy of the results last rendered.
func (c *Coordinator) Results() []types.Plant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.ClonePage(c.results)
}

// Token returns the newest session token.
func (c *Coordinator) Token() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Query returns the normalized query of the newest session.
func (c *Coordinator) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Active reports whether a session is still running.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil
}

// commit runs fn with the lock held if s is still the current, live session.
// It is the only way a session goroutine mutates state or renders.
func (c *Coordinator) commit(s *session, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.token != c.token || c.sess != s || s.ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

// stopLocked cancels a session and clears its timers.
func (c *Coordinator) stopLocked(s *session) {
	s.cancel()
	s.poll.Stop()
	s.server.Stop()
	s.hard.Stop()
}

// publishLocked makes the session's matches the visible results.
func (c *Coordinator) publishLocked(s *session, status Status) {
	c.results = types.ClonePage(s.matches)
	s.rendered = len(s.matches)
	c.render(Update{
		Token:  s.token,
		Query:  s.query,
		Items:  types.ClonePage(s.matches),
		Status: status,
	})
}

// scanLocked appends newly matching in-memory records and renders when the
// threshold is reached or a non-empty result has stopped changing.
func (c *Coordinator) scanLocked(s *session) {
	version, pages := c.local.Snapshot()
	added := 0
	for _, page := range pages {
		for _, p := range page {
			key := catalog.SecondaryKey(p)
			if s.seenKeys[key] || !catalog.Matches(p, s.query) {
				continue
			}
			s.seenKeys[key] = true
			s.matches = append(s.matches, p)
			if sci := sciKey(p); sci != "" {
				if _, ok := s.sciSeen[sci]; !ok {
					s.sciSeen[sci] = p.ID
				}
			}
			added++
		}
	}
	stable := s.scanned && version == s.lastVer
	s.scanned = true
	s.lastVer = version

	switch {
	case !s.initial:
		if len(s.matches) >= c.opts.Threshold || (len(s.matches) > 0 && stable) {
			s.initial = true
			s.shownCount = len(s.matches)
			c.publishLocked(s, StatusPartial)
			logging.SearchDebug("Search #%d: initial render of %d local matches", s.token, s.shownCount)
		}
	case added > 0:
		status := StatusPartial
		if s.timedOut {
			status = StatusTimedOut
		}
		c.publishLocked(s, status)
	}
}

func sciKey(p types.Plant) string {
	return strings.ToLower(strings.TrimSpace(p.ScientificName))
}

// beginServerLocked freezes the local phase before the server query.
func (c *Coordinator) beginServerLocked(s *session) {
	s.poll.Stop()
	if !s.initial {
		s.initial = true
		s.shownCount = len(s.matches)
		if len(s.matches) > 0 {
			c.publishLocked(s, StatusPartial)
		}
	}
	s.allowAll = s.shownCount == 0
}

// acceptServerLocked merges server results into the session and returns how
// many were accepted.
func (c *Coordinator) acceptServerLocked(s *session, items []types.Plant) int {
	added := 0
	for _, p := range items {
		key := catalog.SecondaryKey(p)
		if s.seenKeys[key] {
			continue
		}
		if !s.allowAll && !catalog.Matches(p, s.query) {
			continue
		}
		if sci := sciKey(p); sci != "" {
			if id, ok := s.sciSeen[sci]; ok {
				if id != p.ID {
					s.dupCount++
					if s.shownCount > 0 && s.dupCount >= s.shownCount && !s.allowAll {
						s.allowAll = true
						logging.SearchDebug("Search #%d: %d duplicates, accepting all server results", s.token, s.dupCount)
					}
				}
				continue
			}
			s.sciSeen[sci] = p.ID
		}
		s.seenKeys[key] = true
		s.matches = append(s.matches, p)
		added++
	}
	c.publishLocked(s, StatusComplete)
	return added
}

// forceRenderLocked handles the hard timeout. It reports whether the
// session switched to slow polling.
func (c *Coordinator) forceRenderLocked(s *session) bool {
	if s.rendered > 0 {
		return false
	}
	s.timedOut = true
	s.initial = true
	s.poll.Stop()
	c.publishLocked(s, StatusTimedOut)
	logging.SearchWarn("Search #%d timed out with nothing shown; %d local matches", s.token, len(s.matches))
	return true
}

// finishLocked ends a session that completed its server phase.
func (c *Coordinator) finishLocked(s *session) {
	c.stopLocked(s)
	c.sess = nil
}

func (c *Coordinator) run(s *session) {
	defer c.wg.Done()
	log := logging.WithRequestID(logging.CategorySearch, s.reqID)

	pollC := s.poll.C()
	serverC := s.server.C()
	hardC := s.hard.C()
	var slow Ticker
	var slowC <-chan time.Time
	var resultC chan []types.Plant
	defer func() {
		if slow != nil {
			slow.Stop()
		}
	}()

	rescan := func() bool {
		return c.commit(s, func() { c.scanLocked(s) })
	}

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-pollC:
			if !rescan() {
				return
			}

		case <-slowC:
			if !rescan() {
				return
			}

		case <-serverC:
			serverC, pollC = nil, nil
			if !c.commit(s, func() { c.beginServerLocked(s) }) {
				return
			}
			resultC = make(chan []types.Plant, 1)
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				resultC <- c.fetchServer(s.ctx, s.query, log)
			}()

		case items := <-resultC:
			added := 0
			ok := c.commit(s, func() {
				added = c.acceptServerLocked(s, items)
				c.finishLocked(s)
			})
			if !ok {
				return
			}
			log.Info("Search #%d complete: %d server results accepted", s.token, added)
			if added > 0 && c.opts.OnSettled != nil {
				c.opts.OnSettled()
			}
			return

		case <-hardC:
			hardC = nil
			switched := false
			if !c.commit(s, func() { switched = c.forceRenderLocked(s) }) {
				return
			}
			if switched {
				pollC = nil
				slow = c.opts.Clock.NewTicker(c.opts.PostTimeoutPoll)
				slowC = slow.C()
			}
		}
	}
}

// fetchServer runs the server search, falling back to filtering the full
// catalog when it fails or finds nothing.
func (c *Coordinator) fetchServer(ctx context.Context, q string, log *logging.Logger) []types.Plant {
	sctx, cancel := context.WithTimeout(ctx, c.opts.ServerTimeout)
	items, err := c.server.SearchPlants(sctx, q, c.opts.ServerPerPage)
	cancel()
	if err == nil && len(items) > 0 {
		return items
	}
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		log.Warn("Server search %q failed, filtering full catalog: %v", q, err)
	}

	fctx, cancel := context.WithTimeout(ctx, c.opts.ServerTimeout)
	defer cancel()
	all, err := c.server.FetchAllPlants(fctx)
	if err != nil {
		log.Warn("Full-catalog fallback for %q failed: %v", q, err)
		return nil
	}
	return catalog.Filter(all, q)
}

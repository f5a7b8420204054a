// Package cache keeps a bounded window of catalog pages in memory, backed by a
// persisted key-value store that outlives the window.
package cache

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"herbolive/internal/logging"
	"herbolive/internal/store"
	"herbolive/internal/types"
)

// Store is the persisted key-value store behind the cache.
// *store.PageStore satisfies it.
type Store interface {
	Get(ctx context.Context, key string) (store.Entry, error)
	Put(ctx context.Context, key string, entry store.Entry) error
	Close() error
}

// Opener establishes the persisted store. It is called once, from Init.
type Opener func() (Store, error)

// Options configures a PageCache.
type Options struct {
	KeyPrefix string // persisted key is KeyPrefix + page number
	MaxPages  int    // upper bound of pages held in memory; 0 = unbounded
	Opener    Opener // nil = memory only
}

// PageCache maps page numbers to their records.
// Memory holds a bounded window; every write also goes to the persisted store.
type PageCache struct {
	mu       sync.RWMutex
	pages    map[int][]types.Plant
	center   int
	version  uint64
	maxPages int
	prefix   string

	opener   Opener
	store    Store
	initOnce sync.Once

	now func() time.Time
}

// New creates a cache. Call Init before use to attach the persisted store.
func New(opts Options) *PageCache {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "herbolive_page_"
	}
	return &PageCache{
		pages:    make(map[int][]types.Plant),
		center:   1,
		maxPages: opts.MaxPages,
		prefix:   prefix,
		opener:   opts.Opener,
		now:      time.Now,
	}
}

// Init opens the persisted store. It is idempotent; a failure to open is
// logged and the cache keeps working memory-only.
func (c *PageCache) Init(ctx context.Context) {
	c.initOnce.Do(func() {
		if c.opener == nil {
			logging.CacheDebug("No persisted store configured; memory-only cache")
			return
		}
		s, err := c.opener()
		if err != nil || s == nil {
			logging.CacheWarn("Persisted store unavailable, continuing memory-only: %v", err)
			return
		}
		c.mu.Lock()
		c.store = s
		c.mu.Unlock()
		logging.Cache("Persisted page store attached")
	})
}

// Key returns the persisted key for page n.
func (c *PageCache) Key(n int) string {
	return c.prefix + strconv.Itoa(n)
}

// SetPage stores items for page n in memory and, best-effort, in the persisted store.
func (c *PageCache) SetPage(ctx context.Context, n int, items []types.Plant) {
	if n < 1 {
		return
	}
	page := types.ClonePage(items)
	if page == nil {
		page = []types.Plant{}
	}

	c.mu.Lock()
	c.insertLocked(n, page)
	st := c.store
	c.mu.Unlock()

	if st == nil {
		return
	}
	entry := store.Entry{TS: c.now().UnixMilli(), Items: page}
	if err := st.Put(ctx, c.Key(n), entry); err != nil {
		logging.CacheWarn("Persist page %d failed: %v", n, err)
	}
}

// GetPage returns page n from memory, else from the persisted store
// (populating memory on a hit). Store errors are logged and count as a miss.
func (c *PageCache) GetPage(ctx context.Context, n int) ([]types.Plant, bool) {
	if n < 1 {
		return nil, false
	}

	c.mu.RLock()
	items, ok := c.pages[n]
	st := c.store
	c.mu.RUnlock()
	if ok {
		return types.ClonePage(items), true
	}
	if st == nil {
		return nil, false
	}

	entry, err := st.Get(ctx, c.Key(n))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logging.CacheWarn("Read persisted page %d failed: %v", n, err)
		}
		return nil, false
	}
	if entry.Items == nil {
		entry.Items = []types.Plant{}
	}

	c.mu.Lock()
	c.insertLocked(n, entry.Items)
	c.mu.Unlock()
	logging.CacheDebug("Page %d restored from persisted store (%d items)", n, len(entry.Items))

	return types.ClonePage(entry.Items), true
}

// HasPage reports whether page n is held in memory.
func (c *PageCache) HasPage(n int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.pages[n]
	return ok
}

// ClearAround evicts from memory every page outside the keep-sized window
// starting at max(1, center-keep/2). The persisted store is not touched.
func (c *PageCache) ClearAround(center, keep int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if center >= 1 {
		c.center = center
	}
	if keep < 1 {
		return
	}
	lo := max(1, center-keep/2)
	hi := lo + keep - 1

	evicted := 0
	for n := range c.pages {
		if n < lo || n > hi {
			delete(c.pages, n)
			evicted++
		}
	}
	if evicted > 0 {
		c.version++
		logging.CacheDebug("ClearAround(%d, %d): evicted %d pages, %d remain", center, keep, evicted, len(c.pages))
	}
}

// insertLocked writes a page and enforces the memory bound by evicting the
// pages farthest from the current center. Callers hold c.mu.
func (c *PageCache) insertLocked(n int, items []types.Plant) {
	c.pages[n] = items
	c.version++

	if c.maxPages <= 0 {
		return
	}
	for len(c.pages) > c.maxPages {
		c.evictFarthestLocked()
	}
}

// evictFarthestLocked removes the page farthest from center; ties evict the higher page.
func (c *PageCache) evictFarthestLocked() {
	victim, worst := 0, -1
	for n := range c.pages {
		d := n - c.center
		if d < 0 {
			d = -d
		}
		if d > worst || (d == worst && n > victim) {
			victim, worst = n, d
		}
	}
	if worst >= 0 {
		delete(c.pages, victim)
		logging.CacheDebug("Evicted page %d (window bound %d)", victim, c.maxPages)
	}
}

// LoadedPages returns the page numbers held in memory, ascending.
func (c *PageCache) LoadedPages() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]int, 0, len(c.pages))
	for n := range c.pages {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Version increases on every memory write or eviction.
func (c *PageCache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Snapshot returns the current version and a copy of every page in memory,
// in ascending page order.
func (c *PageCache) Snapshot() (uint64, [][]types.Plant) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	nums := make([]int, 0, len(c.pages))
	for n := range c.pages {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	out := make([][]types.Plant, 0, len(nums))
	for _, n := range nums {
		out = append(out, types.ClonePage(c.pages[n]))
	}
	return c.version, out
}

// Persistent reports whether a persisted store is attached.
func (c *PageCache) Persistent() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store != nil
}

// Close releases the persisted store.
func (c *PageCache) Close() error {
	c.mu.Lock()
	st := c.store
	c.store = nil
	c.mu.Unlock()
	if st == nil {
		return nil
	}
	return st.Close()
}

// StoreOpener adapts store.Open to an Opener for the given path.
// An empty path yields a nil Opener (memory-only cache).
func StoreOpener(path string) Opener {
	if path == "" {
		return nil
	}
	return func() (Store, error) {
		s, err := store.Open(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Package app wires the page cache, the catalog sources, the prefetch
// scheduler and the search coordinator into one application context that the
// terminal UI and the CLI drive.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"herbolive/internal/cache"
	"herbolive/internal/catalog"
	"herbolive/internal/config"
	"herbolive/internal/logging"
	"herbolive/internal/prefetch"
	"herbolive/internal/search"
	"herbolive/internal/source"
	"herbolive/internal/types"
)

// App owns every long-lived component and the view state shared by the
// render layer.
type App struct {
	cfg *config.Config

	Cache     *cache.PageCache
	Backend   *source.Backend
	Catalog   *source.Catalog
	CSV       *source.CSVSource
	Scheduler *prefetch.Scheduler
	Search    *search.Coordinator

	watcher *source.CSVWatcher

	// searchActive pauses prefetch while a search is on screen.
	searchActive atomic.Bool

	mu        sync.Mutex
	page      int
	booted    bool
	pending   string
	hasQuery  bool
	lastSrch  search.Update
	bootErr   error
	closeOnce sync.Once

	changed chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the application from cfg. Nothing touches the network until Boot.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:     cfg,
		page:    1,
		changed: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}

	a.Cache = cache.New(cache.Options{
		KeyPrefix: cfg.Cache.KeyPrefix,
		MaxPages:  cfg.Cache.MaxPages,
		Opener:    cache.StoreOpener(cfg.Cache.DatabasePath),
	})

	a.Backend = source.NewBackend(cfg.Backend.BaseURL, source.NewHTTPClient(cfg.GetBackendTimeout()))

	var perenual *source.Perenual
	if p := cfg.Providers.Perenual; p.Enabled {
		perenual = source.NewPerenual(p.BaseURL, p.APIKey, source.NewHTTPClient(cfg.GetPerenualTimeout()))
	}
	var trefle *source.Trefle
	if t := cfg.Providers.Trefle; t.Enabled {
		trefle = source.NewTrefle(t.BaseURL, t.Token, source.NewHTTPClient(cfg.GetTrefleTimeout()))
	}
	var wiki *source.Wikipedia
	if w := cfg.Providers.Wikipedia; w.Enabled {
		wiki = source.NewWikipedia(w.Host, w.Languages, w.UserAgent, source.NewHTTPClient(cfg.GetWikipediaTimeout()))
	}
	if c := cfg.Providers.CSV; c.Enabled {
		a.CSV = source.NewCSVSource(c.Path, c.MaxRows)
	}

	chain := &source.Chain{
		Backend:  a.Backend,
		Perenual: perenual,
		Trefle:   trefle,
		CSV:      a.CSV,
		DBFirst:  cfg.Backend.UseDBFirst,
	}
	var searchers []source.Searcher
	if perenual.Enabled() {
		searchers = append(searchers, perenual)
	}
	if trefle.Enabled() {
		searchers = append(searchers, trefle)
	}
	a.Catalog = source.NewCatalog(chain, searchers...)

	var pauseWhen func() bool
	if cfg.Prefetch.PauseOnSearch {
		pauseWhen = a.searchActive.Load
	}
	a.Scheduler = prefetch.New(a.Catalog, a.Cache, prefetch.Options{
		PageSize:          cfg.Paging.PageSize,
		InitialPages:      cfg.Paging.InitialPages,
		Concurrency:       cfg.Prefetch.Concurrency,
		EnrichConcurrency: cfg.Prefetch.EnrichConcurrency,
		Ahead:             cfg.Prefetch.Ahead,
		Behind:            cfg.Prefetch.Behind,
		MaxWindow:         cfg.Prefetch.MaxWindow,
		PollDelay:         cfg.GetPrefetchPollDelay(),
		Lookups:           source.LookupChain(a.Backend, perenual, trefle, wiki),
		PauseWhen:         pauseWhen,
	})

	a.Search = search.New(a.Cache, a.Catalog, a.onSearchUpdate, search.Options{
		Threshold:       cfg.SearchThreshold(),
		PollInterval:    cfg.GetSearchPollInterval(),
		ServerDelay:     cfg.GetSearchServerDelay(),
		ServerTimeout:   cfg.GetSearchServerTimeout(),
		SessionTimeout:  cfg.GetSearchSessionTimeout(),
		PostTimeoutPoll: cfg.GetSearchPostTimeoutPoll(),
		ServerPerPage:   cfg.Search.ServerPerPage,
		OnSettled:       a.onSearchSettled,
	})

	return a, nil
}

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Changed signals that the current page or the search results changed.
// One pending signal is kept; readers re-read state on every receive.
func (a *App) Changed() <-chan struct{} {
	return a.changed
}

func (a *App) notify() {
	select {
	case a.changed <- struct{}{}:
	default:
	}
}

// onSearchUpdate is the coordinator's renderer. It runs under the
// coordinator lock and only records the update.
func (a *App) onSearchUpdate(u search.Update) {
	a.mu.Lock()
	a.lastSrch = u
	a.mu.Unlock()
	a.notify()
}

// onSearchSettled resumes prefetch around the current page once a search
// has finished with new results or was left.
func (a *App) onSearchSettled() {
	a.searchActive.Store(false)
	if !a.cfg.Prefetch.Enabled {
		return
	}
	a.mu.Lock()
	booted, page := a.booted, a.page
	a.mu.Unlock()
	if booted {
		a.Scheduler.ScheduleAround(page)
	}
}

// SearchUpdate returns the last rendered search update.
func (a *App) SearchUpdate() search.Update {
	a.mu.Lock()
	defer a.mu.Unlock()
	u := a.lastSrch
	u.Items = types.ClonePage(u.Items)
	return u
}

// CurrentPage returns the page being viewed.
func (a *App) CurrentPage() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.page
}

// Booted reports whether Boot has finished.
func (a *App) Booted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.booted
}

// BootErr returns the error of a boot that loaded nothing.
func (a *App) BootErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bootErr
}

// Page returns page n, fetching it when it is not cached, and moves the
// prefetch window to it. Enrichment of a freshly fetched page continues in
// the background and signals Changed when done.
func (a *App) Page(ctx context.Context, n int) ([]types.Plant, error) {
	if n < 1 {
		n = 1
	}
	a.mu.Lock()
	a.page = n
	a.mu.Unlock()

	cached := a.Cache.HasPage(n)
	items, err := a.Scheduler.FetchPageImmediate(ctx, n, false)
	if a.cfg.Prefetch.Enabled {
		a.Scheduler.ScheduleAround(n)
	}
	if err != nil {
		logging.BootWarn("Page %d failed: %v", n, err)
		return nil, fmt.Errorf("error loading page %d: %w", n, err)
	}
	if !cached && len(items) > 0 {
		a.enrichAsync(n)
	}
	return items, nil
}

// FetchPlantsPage fetches page n from the sources without touching the
// cache or the prefetch window.
func (a *App) FetchPlantsPage(ctx context.Context, n int) ([]types.Plant, error) {
	return a.Catalog.FetchPlantsPage(ctx, n, a.cfg.Paging.PageSize)
}

// SetFocused pauses prefetch while the terminal is not focused.
func (a *App) SetFocused(focused bool) {
	if focused {
		a.Scheduler.Resume()
		return
	}
	a.Scheduler.Pause()
}

func (a *App) enrichAsync(n int) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.Scheduler.EnrichPage(a.ctx, n); err != nil {
			logging.EnrichDebug("Background enrichment of page %d stopped: %v", n, err)
			return
		}
		if a.CurrentPage() == n {
			a.notify()
		}
	}()
}

// Detail merges the backend detail record into p. Without an id or a
// backend, p is returned unchanged.
func (a *App) Detail(ctx context.Context, p types.Plant) types.Plant {
	if p.ID == 0 || !a.Backend.Enabled() {
		return p
	}
	detail, err := a.Catalog.FetchPlantDetail(ctx, p.ID)
	if err != nil {
		logging.APIDebug("Detail %d unavailable: %v", p.ID, err)
		return p
	}
	return catalog.FillMissing(p, detail, "")
}

// DetailByID fetches the backend detail record for id.
func (a *App) DetailByID(ctx context.Context, id int64) (types.Plant, error) {
	if !a.Backend.Enabled() {
		return types.Plant{}, fmt.Errorf("detail %d: %w", id, source.ErrDisabled)
	}
	return a.Catalog.FetchPlantDetail(ctx, id)
}

// EnterSearch marks the search view as active, holding prefetch when
// configured to.
func (a *App) EnterSearch() {
	a.searchActive.Store(true)
}

// LeaveSearch cancels the running search and resumes prefetch.
func (a *App) LeaveSearch() {
	a.mu.Lock()
	a.hasQuery = false
	a.pending = ""
	a.mu.Unlock()
	a.Search.Cancel()
}

// RunSearch starts a search for query. Before boot has finished the query
// is kept and run once the first pages are loaded.
func (a *App) RunSearch(query string) uint64 {
	a.mu.Lock()
	if !a.booted {
		a.pending = query
		a.hasQuery = true
		a.mu.Unlock()
		logging.SearchDebug("Search %q deferred until boot completes", query)
		return 0
	}
	a.mu.Unlock()

	if catalog.NormalizeQuery(query) != "" {
		a.searchActive.Store(true)
	}
	return a.Search.Search(query)
}

// SearchAndWait runs a search and blocks until its session ends or ctx is
// done, returning the final results.
func (a *App) SearchAndWait(ctx context.Context, query string) ([]types.Plant, error) {
	a.RunSearch(query)
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for a.Search.Active() {
		select {
		case <-ctx.Done():
			a.Search.Cancel()
			return a.Search.Results(), ctx.Err()
		case <-ticker.C:
		}
	}
	return a.Search.Results(), nil
}

// Close stops every background component and releases the persisted store.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.Search.Close()
		a.Scheduler.Close()
		a.mu.Lock()
		w := a.watcher
		a.mu.Unlock()
		if w != nil {
			w.Stop()
		}
		a.cancel()
		a.wg.Wait()
		err = a.Cache.Close()
		logging.Boot("Application closed")
	})
	return err
}

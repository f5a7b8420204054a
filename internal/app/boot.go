package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"herbolive/internal/logging"
	"herbolive/internal/source"
)

// ErrNothingLoaded is returned by Boot when no initial page has any record.
var ErrNothingLoaded = errors.New("no plants could be loaded")

// Boot attaches the persisted store, loads pages 1..InitialPages, enriches
// the first EnrichPages of them, starts the CSV watcher and the prefetch
// scheduler, and finally runs a search that was requested during boot.
func (a *App) Boot(ctx context.Context) error {
	reqID := logging.NewRequestID()
	log := logging.WithRequestID(logging.CategoryBoot, reqID)
	timer := logging.StartTimer(logging.CategoryBoot, "Boot")
	defer timer.Stop()

	a.Cache.Init(ctx)

	initial := a.cfg.Paging.InitialPages
	var (
		mu     sync.Mutex
		loaded = make(map[int]int, initial)
		errs   []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Prefetch.Concurrency)
	for n := 1; n <= initial; n++ {
		g.Go(func() error {
			items, err := a.Scheduler.FetchPageImmediate(gctx, n, false)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("page %d: %w", n, err))
				return nil
			}
			loaded[n] = len(items)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	total := 0
	for _, c := range loaded {
		total += c
	}
	log.Info("Initial pages loaded: %d records over %d pages (%d failed)", total, len(loaded), len(errs))

	enrich := a.cfg.Paging.EnrichPages
	if enrich > initial {
		enrich = initial
	}
	eg, ectx := errgroup.WithContext(ctx)
	for n := 1; n <= enrich; n++ {
		if loaded[n] == 0 {
			continue
		}
		eg.Go(func() error {
			if err := a.Scheduler.EnrichPage(ectx, n); err != nil {
				log.Warn("Enrichment of page %d stopped: %v", n, err)
			}
			return nil
		})
	}
	_ = eg.Wait()

	a.startWatcher(log)

	var bootErr error
	if total == 0 {
		bootErr = ErrNothingLoaded
		if len(errs) > 0 {
			bootErr = fmt.Errorf("%w: %w", ErrNothingLoaded, errors.Join(errs...))
		}
		log.Error("Boot loaded nothing: %v", bootErr)
	}

	a.mu.Lock()
	a.booted = true
	a.bootErr = bootErr
	page := a.page
	pending, hasQuery := a.pending, a.hasQuery
	a.pending, a.hasQuery = "", false
	a.mu.Unlock()

	if a.cfg.Prefetch.Enabled {
		a.Scheduler.Start(a.ctx, page)
	}
	a.notify()

	if hasQuery {
		log.Info("Running search deferred during boot: %q", pending)
		a.RunSearch(pending)
	}
	return bootErr
}

// startWatcher reloads the CSV dataset on change and drops the memoized
// fallback catalog so the next full-catalog read sees the new rows.
func (a *App) startWatcher(log *logging.Logger) {
	if a.CSV == nil || !a.cfg.Providers.CSV.Watch || a.CSV.Path() == "" {
		return
	}
	w, err := source.NewCSVWatcher(a.CSV, func(rows int) {
		a.Catalog.Invalidate()
		a.notify()
	})
	if err != nil {
		log.Warn("CSV watcher unavailable: %v", err)
		return
	}
	if err := w.Start(a.ctx); err != nil {
		log.Warn("CSV watcher failed to start: %v", err)
		return
	}
	a.mu.Lock()
	a.watcher = w
	a.mu.Unlock()
}

package prefetch

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"herbolive/internal/catalog"
	"herbolive/internal/logging"
	"herbolive/internal/types"
)

// needsEnrichment reports whether a record lacks a description or an image.
func needsEnrichment(p types.Plant) bool {
	return strings.TrimSpace(p.Description) == "" || strings.TrimSpace(p.FirstImage()) == ""
}

// EnrichPage fills missing descriptions and images on page from the lookup
// chain and writes the page back to the cache. Only one enrichment per page
// runs at a time; a concurrent call returns immediately. The write-back is
// skipped when the page was evicted from memory meanwhile.
func (s *Scheduler) EnrichPage(ctx context.Context, page int) error {
	if len(s.opts.Lookups) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.enriching[page] {
		s.mu.Unlock()
		return nil
	}
	s.enriching[page] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.enriching, page)
		s.mu.Unlock()
	}()

	items, ok := s.cache.GetPage(ctx, page)
	if !ok || len(items) == 0 {
		return nil
	}

	out := types.ClonePage(items)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.EnrichConcurrency)
	pending := 0
	for i := range out {
		if !needsEnrichment(out[i]) {
			continue
		}
		pending++
		g.Go(func() error {
			out[i] = s.enrichItem(gctx, out[i])
			return nil
		})
	}
	if pending == 0 {
		return nil
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	if !s.cache.HasPage(page) {
		logging.EnrichDebug("Page %d left the window during enrichment; result dropped", page)
		return nil
	}
	s.cache.SetPage(ctx, page, out)
	logging.EnrichDebug("Enriched page %d (%d of %d items looked up)", page, pending, len(out))
	return nil
}

// enrichItem runs the lookup chain in order; the first success is merged
// under its lookup name. Failures leave the record unchanged.
func (s *Scheduler) enrichItem(ctx context.Context, p types.Plant) types.Plant {
	for _, l := range s.opts.Lookups {
		if ctx.Err() != nil {
			return p
		}
		found, err := l.Lookup(ctx, p)
		if err != nil {
			logging.EnrichDebug("%s lookup for %q: %v", l.Name(), p.DisplayName(), err)
			continue
		}
		return catalog.FillMissing(p, found, l.Name())
	}
	return p
}

package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"herbolive/internal/catalog"
	"herbolive/internal/logging"
	"herbolive/internal/types"
)

// providerListSize is how many records are requested from each third-party
// provider when building the full catalog.
const providerListSize = 100

// Chain assembles the full catalog from every configured source.
type Chain struct {
	Backend  *Backend
	Perenual *Perenual
	Trefle   *Trefle
	CSV      *CSVSource

	// DBFirst, when set, overrides the backend's /config preference.
	DBFirst *bool
}

func (c *Chain) dbFirst(ctx context.Context) bool {
	if c.DBFirst != nil {
		return *c.DBFirst
	}
	return c.Backend.FetchConfig(ctx)
}

// FetchAll returns the merged, deduplicated catalog.
//
// With the db-first preference the backend is asked alone and the providers
// are only consulted when it has nothing. Otherwise Perenual, Trefle and the
// backend are merged. The CSV file is the last resort in both modes.
func (c *Chain) FetchAll(ctx context.Context) ([]types.Plant, error) {
	timer := logging.StartTimer(logging.CategorySource, "Chain.FetchAll")
	defer timer.Stop()

	var list []types.Plant
	if c.dbFirst(ctx) {
		list = c.fromBackend(ctx)
		if len(list) == 0 {
			list = c.fromProviders(ctx)
		}
	} else {
		list = catalog.Dedupe(append(c.fromProviders(ctx), c.fromBackend(ctx)...))
	}

	if len(list) == 0 {
		list = c.fromCSV(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("catalog: %w", ErrNoData)
	}
	logging.Source("Catalog assembled: %d plants", len(list))
	return list, nil
}

func (c *Chain) fromBackend(ctx context.Context) []types.Plant {
	if !c.Backend.Enabled() {
		return nil
	}
	items, err := c.Backend.FetchAll(ctx)
	if err != nil {
		logging.SourceWarn("Backend catalog unavailable: %v", err)
		return nil
	}
	return catalog.Dedupe(items)
}

// fromProviders lists Perenual and Trefle concurrently and merges them,
// Perenual first.
func (c *Chain) fromProviders(ctx context.Context) []types.Plant {
	var perenual, trefle []types.Plant
	g, gctx := errgroup.WithContext(ctx)
	if c.Perenual.Enabled() {
		g.Go(func() error {
			items, err := c.Perenual.List(gctx, 1, providerListSize)
			if err != nil {
				logging.SourceWarn("Perenual list failed: %v", err)
				return nil
			}
			perenual = items
			return nil
		})
	}
	if c.Trefle.Enabled() {
		g.Go(func() error {
			items, err := c.Trefle.List(gctx, 1, providerListSize)
			if err != nil {
				logging.SourceWarn("Trefle list failed: %v", err)
				return nil
			}
			trefle = items
			return nil
		})
	}
	_ = g.Wait()
	return catalog.Dedupe(append(perenual, trefle...))
}

func (c *Chain) fromCSV(ctx context.Context) []types.Plant {
	if c.CSV == nil || c.CSV.Path() == "" {
		return nil
	}
	rows, err := c.CSV.All(ctx)
	if err != nil {
		logging.SourceWarn("CSV fallback unavailable: %v", err)
		return nil
	}
	return rows
}

// Catalog is the page/search/detail client the app works against. Pages and
// searches go to the backend; when it has nothing, pages are cut from the
// memoized fallback-chain catalog.
type Catalog struct {
	backend *Backend
	chain   *Chain
	search  []Searcher

	mu  sync.Mutex
	all []types.Plant
}

// Searcher is a provider that can answer name searches.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]types.Plant, error)
}

// NewCatalog creates a client over chain. extra searchers are consulted in
// order when the backend search is unavailable.
func NewCatalog(chain *Chain, extra ...Searcher) *Catalog {
	return &Catalog{backend: chain.Backend, chain: chain, search: extra}
}

// FetchPlantsPage returns page (1-based) of perPage records.
func (c *Catalog) FetchPlantsPage(ctx context.Context, page, perPage int) ([]types.Plant, error) {
	if c.backend.Enabled() {
		items, err := c.backend.FetchPlantsPage(ctx, page, perPage)
		if err == nil && len(items) > 0 {
			return items, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			logging.APIDebug("Backend page %d unavailable, using fallback catalog: %v", page, err)
		}
	}
	all, err := c.FetchAllPlants(ctx)
	if err != nil {
		return nil, err
	}
	return slicePage(all, page, perPage), nil
}

// SearchPlants asks the backend search, then each extra searcher, returning
// the first non-empty answer.
func (c *Catalog) SearchPlants(ctx context.Context, query string, perPage int) ([]types.Plant, error) {
	lastErr := ErrNoData
	if c.backend.Enabled() {
		items, err := c.backend.SearchPlants(ctx, query, perPage)
		if err == nil && len(items) > 0 {
			return items, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	for _, s := range c.search {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		items, err := s.Search(ctx, query, perPage)
		if err == nil && len(items) > 0 {
			return items, nil
		}
		if err != nil && !errors.Is(err, ErrDisabled) {
			lastErr = err
		}
	}
	return nil, fmt.Errorf("search %q: %w", query, lastErr)
}

// FetchAllPlants returns the fallback-chain catalog, fetching it once.
// A failed or empty fetch is not memoized.
func (c *Catalog) FetchAllPlants(ctx context.Context) ([]types.Plant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.all) == 0 {
		all, err := c.chain.FetchAll(ctx)
		if err != nil {
			return nil, err
		}
		c.all = all
	}
	return types.ClonePage(c.all), nil
}

// Invalidate drops the memoized catalog, e.g. after the CSV file changed.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.all = nil
	c.mu.Unlock()
}

// FetchPlantDetail fetches the backend detail record for id.
func (c *Catalog) FetchPlantDetail(ctx context.Context, id int64) (types.Plant, error) {
	return c.backend.FetchPlantDetail(ctx, id)
}

package prefetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herbolive/internal/cache"
	"herbolive/internal/source"
	"herbolive/internal/types"
)

type fakeLookup struct {
	name  string
	fn    func(types.Plant) (types.Plant, error)
	calls atomic.Int32
}

func (l *fakeLookup) Name() string { return l.name }

func (l *fakeLookup) Lookup(_ context.Context, p types.Plant) (types.Plant, error) {
	l.calls.Add(1)
	return l.fn(p)
}

func TestEnrichPageRunsChainInOrder(t *testing.T) {
	failing := &fakeLookup{name: "db_search", fn: func(types.Plant) (types.Plant, error) {
		return types.Plant{}, source.ErrNoData
	}}
	wiki := &fakeLookup{name: "wikipedia", fn: func(p types.Plant) (types.Plant, error) {
		return types.Plant{
			Description: "From the encyclopedia",
			ImageURL:    "https://wiki/img.jpg",
			CommonName:  "should not overwrite",
		}, nil
	}}
	never := &fakeLookup{name: "db_detail", fn: func(types.Plant) (types.Plant, error) {
		return types.Plant{}, errors.New("unreachable")
	}}

	c := cache.New(cache.Options{})
	opts := defaultOptions()
	opts.Lookups = []source.Lookup{failing, wiki, never}
	s := New(newFakeFetcher(), c, opts)

	ctx := context.Background()
	c.SetPage(ctx, 1, []types.Plant{
		{CommonName: "Rosa", ScientificName: "Rosa canina"},
		{CommonName: "Complete", Description: "has text", ImageURL: "https://img/c.jpg"},
	})

	require.NoError(t, s.EnrichPage(ctx, 1))

	got, ok := c.GetPage(ctx, 1)
	require.True(t, ok)
	require.Len(t, got, 2)

	rosa := got[0]
	assert.Equal(t, "Rosa", rosa.CommonName)
	assert.Equal(t, "From the encyclopedia", rosa.Description)
	assert.Equal(t, "https://wiki/img.jpg", rosa.ImageURL)
	require.Contains(t, rosa.Provenance, "wikipedia")

	assert.Equal(t, "has text", got[1].Description)
	assert.Equal(t, int32(1), failing.calls.Load(), "complete records are skipped")
	assert.Equal(t, int32(1), wiki.calls.Load())
	assert.Equal(t, int32(0), never.calls.Load())
}

func TestEnrichPageAllLookupsFail(t *testing.T) {
	l := &fakeLookup{name: "perenual", fn: func(types.Plant) (types.Plant, error) {
		return types.Plant{}, source.ErrRateLimited
	}}
	c := cache.New(cache.Options{})
	opts := defaultOptions()
	opts.Lookups = []source.Lookup{l}
	s := New(newFakeFetcher(), c, opts)

	ctx := context.Background()
	c.SetPage(ctx, 2, []types.Plant{{CommonName: "Salvia"}})
	require.NoError(t, s.EnrichPage(ctx, 2))

	got, _ := c.GetPage(ctx, 2)
	assert.Equal(t, []types.Plant{{CommonName: "Salvia"}}, got)
}

func TestEnrichPageBoundedConcurrency(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0
	slow := &fakeLookup{name: "trefle", fn: func(p types.Plant) (types.Plant, error) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(15 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return types.Plant{Description: "d"}, nil
	}}

	c := cache.New(cache.Options{})
	opts := defaultOptions()
	opts.EnrichConcurrency = 3
	opts.Lookups = []source.Lookup{slow}
	s := New(newFakeFetcher(), c, opts)

	ctx := context.Background()
	items := make([]types.Plant, 10)
	for i := range items {
		items[i] = types.Plant{CommonName: string(rune('a' + i))}
	}
	c.SetPage(ctx, 1, items)
	require.NoError(t, s.EnrichPage(ctx, 1))

	assert.Equal(t, int32(10), slow.calls.Load())
	assert.LessOrEqual(t, peak, 3)
	got, _ := c.GetPage(ctx, 1)
	for _, p := range got {
		assert.Equal(t, "d", p.Description)
	}
}

func TestEnrichPageDropsResultForEvictedPage(t *testing.T) {
	c := cache.New(cache.Options{})
	gate := make(chan struct{})
	l := &fakeLookup{name: "wikipedia", fn: func(types.Plant) (types.Plant, error) {
		<-gate
		return types.Plant{Description: "late"}, nil
	}}
	opts := defaultOptions()
	opts.Lookups = []source.Lookup{l}
	s := New(newFakeFetcher(), c, opts)

	ctx := context.Background()
	c.SetPage(ctx, 20, []types.Plant{{CommonName: "Far away"}})

	done := make(chan error, 1)
	go func() { done <- s.EnrichPage(ctx, 20) }()

	require.Eventually(t, func() bool { return l.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// A second enrichment of the same page is a no-op while the first runs.
	require.NoError(t, s.EnrichPage(ctx, 20))
	assert.Equal(t, int32(1), l.calls.Load())

	c.ClearAround(1, 5)
	close(gate)
	require.NoError(t, <-done)
	assert.False(t, c.HasPage(20))
}

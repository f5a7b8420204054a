package source

import (
	"context"
	"fmt"
	"strings"

	"herbolive/internal/types"
)

// Lookup finds extra data for one plant record. Name is the provenance tag
// under which the result is merged.
type Lookup interface {
	Name() string
	Lookup(ctx context.Context, plant types.Plant) (types.Plant, error)
}

// backendNameLookup searches the backend by binomial name.
type backendNameLookup struct{ b *Backend }

func (l backendNameLookup) Name() string { return "db_search" }

func (l backendNameLookup) Lookup(ctx context.Context, p types.Plant) (types.Plant, error) {
	name := p.BinomialName()
	if name == "" {
		return types.Plant{}, ErrNoData
	}
	hits, err := l.b.SearchPlants(ctx, name, 5)
	if err != nil {
		return types.Plant{}, err
	}
	for _, h := range hits {
		if strings.EqualFold(strings.TrimSpace(h.ScientificName), name) && (h.Description != "" || h.FirstImage() != "") {
			return h, nil
		}
	}
	return types.Plant{}, fmt.Errorf("db search %q: %w", name, ErrNoData)
}

// backendDetailLookup fetches the backend detail record by id.
type backendDetailLookup struct{ b *Backend }

func (l backendDetailLookup) Name() string { return "db_detail" }

func (l backendDetailLookup) Lookup(ctx context.Context, p types.Plant) (types.Plant, error) {
	if p.ID == 0 {
		return types.Plant{}, ErrNoData
	}
	return l.b.FetchPlantDetail(ctx, p.ID)
}

// LookupChain returns the enrichment lookups in the order they are tried:
// backend name search, Perenual, Trefle, Wikipedia, backend detail by id.
// Unconfigured sources are left out.
func LookupChain(b *Backend, p *Perenual, t *Trefle, w *Wikipedia) []Lookup {
	var out []Lookup
	if b.Enabled() {
		out = append(out, backendNameLookup{b})
	}
	if p.Enabled() {
		out = append(out, p)
	}
	if t != nil && t.searchURL != "" && t.token != "" {
		out = append(out, t)
	}
	if w != nil {
		out = append(out, w)
	}
	if b.Enabled() {
		out = append(out, backendDetailLookup{b})
	}
	return out
}

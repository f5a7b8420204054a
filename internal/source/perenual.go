package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"herbolive/internal/catalog"
	"herbolive/internal/logging"
	"herbolive/internal/types"
)

// Perenual is a client of the Perenual species-list API, called directly with
// an API key or through the backend's key-holding proxy.
type Perenual struct {
	listURL string
	apiKey  string
	client  *http.Client
}

// NewPerenual creates a client for the species-list endpoint at listURL.
// apiKey may be empty when listURL is the backend proxy.
func NewPerenual(listURL, apiKey string, client *http.Client) *Perenual {
	return &Perenual{
		listURL: strings.TrimRight(strings.TrimSpace(listURL), "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

// Name implements Lookup.
func (p *Perenual) Name() string { return catalog.SourcePerenual }

// Enabled reports whether the client has an endpoint.
func (p *Perenual) Enabled() bool {
	return p != nil && p.listURL != ""
}

func (p *Perenual) url(params url.Values) string {
	if p.apiKey != "" {
		params.Set("key", p.apiKey)
	}
	return p.listURL + "?" + params.Encode()
}

func (p *Perenual) fetch(ctx context.Context, params url.Values) ([]types.Plant, error) {
	if !p.Enabled() {
		return nil, ErrDisabled
	}
	body, err := get(ctx, p.client, p.url(params), "", "")
	if err != nil {
		return nil, err
	}
	raws, err := DecodeList(body)
	if err != nil {
		return nil, err
	}
	return catalog.NormalizeAll(raws, catalog.SourcePerenual), nil
}

// List returns one page of the species list.
func (p *Perenual) List(ctx context.Context, page, perPage int) ([]types.Plant, error) {
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("per_page", strconv.Itoa(perPage))
	return p.fetch(ctx, v)
}

// Search queries the species list by name. The q parameter is tried first,
// then the older search parameter. A 429 stops immediately.
func (p *Perenual) Search(ctx context.Context, query string, limit int) ([]types.Plant, error) {
	attempts := []url.Values{
		{"q": {query}},
		{"page": {"1"}, "per_page": {strconv.Itoa(limit)}, "search": {query}},
	}
	var lastErr error = ErrNoData
	for _, v := range attempts {
		items, err := p.fetch(ctx, v)
		if err != nil {
			if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrDisabled) || ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		if len(items) > 0 {
			if limit > 0 && len(items) > limit {
				items = items[:limit]
			}
			return items, nil
		}
	}
	return nil, lastErr
}

// Lookup returns the best Perenual match for the record's scientific name,
// falling back to its common name.
func (p *Perenual) Lookup(ctx context.Context, plant types.Plant) (types.Plant, error) {
	for _, q := range lookupQueries(plant) {
		hits, err := p.Search(ctx, q, 5)
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				logging.SourceWarn("Perenual rate limited while looking up %q", q)
				return types.Plant{}, err
			}
			continue
		}
		return bestHit(hits, plant), nil
	}
	return types.Plant{}, fmt.Errorf("perenual %q: %w", plant.DisplayName(), ErrNoData)
}

// lookupQueries returns the names to search for, most specific first.
func lookupQueries(p types.Plant) []string {
	var qs []string
	sci := p.BinomialName()
	if sci != "" {
		qs = append(qs, sci)
	}
	if c := strings.TrimSpace(p.CommonName); c != "" && !strings.EqualFold(c, sci) {
		qs = append(qs, c)
	}
	return qs
}

// bestHit prefers a hit whose scientific name equals the record's; else the first.
func bestHit(hits []types.Plant, p types.Plant) types.Plant {
	want := strings.ToLower(p.BinomialName())
	if want != "" {
		for _, h := range hits {
			if strings.ToLower(strings.TrimSpace(h.ScientificName)) == want {
				return h
			}
		}
	}
	return hits[0]
}

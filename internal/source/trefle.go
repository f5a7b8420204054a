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

// Trefle is a client of the Trefle species API.
type Trefle struct {
	listURL   string
	searchURL string
	token     string
	client    *http.Client
}

// NewTrefle creates a client for the Trefle API rooted at baseURL.
func NewTrefle(baseURL, token string, client *http.Client) *Trefle {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	t := &Trefle{token: token, client: client}
	if base != "" {
		t.listURL = base + "/api/v1/species"
		t.searchURL = base + "/api/v1/species/search"
	}
	return t
}

// NewTrefleProxy creates a list-only client for the backend's Trefle proxy.
func NewTrefleProxy(proxyURL string, client *http.Client) *Trefle {
	return &Trefle{listURL: strings.TrimRight(proxyURL, "/"), client: client}
}

// Name implements Lookup.
func (t *Trefle) Name() string { return catalog.SourceTrefle }

// Enabled reports whether the client has an endpoint.
func (t *Trefle) Enabled() bool {
	return t != nil && t.listURL != ""
}

func (t *Trefle) fetch(ctx context.Context, endpoint string, params url.Values) ([]types.Plant, error) {
	if endpoint == "" {
		return nil, ErrDisabled
	}
	if t.token != "" {
		params.Set("token", t.token)
	}
	body, err := get(ctx, t.client, endpoint+"?"+params.Encode(), "", "")
	if err != nil {
		return nil, err
	}
	raws, err := DecodeList(body)
	if err != nil {
		return nil, err
	}
	return catalog.NormalizeAll(raws, catalog.SourceTrefle), nil
}

// List returns one page of species.
func (t *Trefle) List(ctx context.Context, page, limit int) ([]types.Plant, error) {
	if !t.Enabled() {
		return nil, ErrDisabled
	}
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("limit", strconv.Itoa(limit))
	return t.fetch(ctx, t.listURL, v)
}

// Search runs a species search.
func (t *Trefle) Search(ctx context.Context, query string, limit int) ([]types.Plant, error) {
	if t == nil {
		return nil, ErrDisabled
	}
	v := url.Values{}
	v.Set("q", query)
	v.Set("limit", strconv.Itoa(limit))
	items, err := t.fetch(ctx, t.searchURL, v)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Lookup returns the first Trefle hit for the record's scientific or common name.
func (t *Trefle) Lookup(ctx context.Context, plant types.Plant) (types.Plant, error) {
	if t == nil || t.searchURL == "" || t.token == "" {
		return types.Plant{}, ErrDisabled
	}
	for _, q := range lookupQueries(plant) {
		hits, err := t.Search(ctx, q, 3)
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				logging.SourceWarn("Trefle rate limited while looking up %q", q)
				return types.Plant{}, err
			}
			continue
		}
		if len(hits) > 0 {
			return bestHit(hits, plant), nil
		}
	}
	return types.Plant{}, fmt.Errorf("trefle %q: %w", plant.DisplayName(), ErrNoData)
}

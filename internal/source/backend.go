package source

import (
	"context"
	"encoding/json"
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

// Backend is the client of the catalog REST API (/api/plants, /api/config).
type Backend struct {
	base   string
	client *http.Client
}

// NewBackend creates a client for the API served under baseURL + "/api".
// An empty baseURL disables the backend.
func NewBackend(baseURL string, client *http.Client) *Backend {
	b := &Backend{client: client}
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		if strings.HasSuffix(baseURL, "/api") {
			b.base = baseURL
		} else {
			b.base = baseURL + "/api"
		}
	}
	return b
}

// Enabled reports whether a backend URL is configured.
func (b *Backend) Enabled() bool {
	return b != nil && b.base != ""
}

// APIURL resolves path against the API root. Absolute URLs pass through.
func (b *Backend) APIURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path == "" {
		return b.base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return b.base + path
}

func (b *Backend) getList(ctx context.Context, path string) ([]types.Plant, error) {
	if !b.Enabled() {
		return nil, ErrDisabled
	}
	body, err := get(ctx, b.client, b.APIURL(path), "", "")
	if err != nil {
		return nil, err
	}
	raws, err := DecodeList(body)
	if err != nil {
		return nil, err
	}
	return catalog.NormalizeAll(raws, catalog.SourceBackend), nil
}

// FetchPlantsPage fetches one catalog page. Backends differ in the paging
// parameters they accept, so three request forms are tried in turn:
// page/perPage, limit/page, and finally limit=perPage*page sliced locally.
// An empty result with a nil error means the backend has no such page.
func (b *Backend) FetchPlantsPage(ctx context.Context, page, perPage int) ([]types.Plant, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 6
	}

	var lastErr error
	attempts := []struct {
		path  string
		slice bool
	}{
		{fmt.Sprintf("/plants?page=%d&perPage=%d", page, perPage), false},
		{fmt.Sprintf("/plants?limit=%d&page=%d", perPage, page), false},
		{fmt.Sprintf("/plants?limit=%d", perPage*page), true},
	}
	for i, a := range attempts {
		items, err := b.getList(ctx, a.path)
		if err != nil {
			if errors.Is(err, ErrDisabled) || ctx.Err() != nil {
				return nil, err
			}
			logging.APIDebug("FetchPlantsPage(%d) attempt %d failed: %v", page, i+1, err)
			lastErr = err
			continue
		}
		if a.slice {
			items = slicePage(items, page, perPage)
		}
		return items, nil
	}
	return nil, fmt.Errorf("fetch page %d: %w", page, lastErr)
}

// SearchPlants runs the backend's own search.
func (b *Backend) SearchPlants(ctx context.Context, query string, perPage int) ([]types.Plant, error) {
	v := url.Values{}
	v.Set("q", query)
	v.Set("perPage", strconv.Itoa(perPage))
	return b.getList(ctx, "/plants?"+v.Encode())
}

// FetchAll requests the whole catalog.
func (b *Backend) FetchAll(ctx context.Context) ([]types.Plant, error) {
	return b.getList(ctx, "/plants")
}

// FetchPlantDetail fetches the detail record for id.
func (b *Backend) FetchPlantDetail(ctx context.Context, id int64) (types.Plant, error) {
	if !b.Enabled() {
		return types.Plant{}, ErrDisabled
	}
	body, err := get(ctx, b.client, b.APIURL("/plants/"+strconv.FormatInt(id, 10)), "", "")
	if err != nil {
		return types.Plant{}, err
	}
	raw, err := DecodeObject(body)
	if err != nil {
		return types.Plant{}, err
	}
	return catalog.Normalize(raw, catalog.SourceBackend), nil
}

// FetchConfig reads the backend's useDbFirst preference.
// Any failure yields true, the backend-first default.
func (b *Backend) FetchConfig(ctx context.Context) bool {
	if !b.Enabled() {
		return true
	}
	body, err := get(ctx, b.client, b.APIURL("/config"), "", "")
	if err != nil {
		logging.APIDebug("GET /config failed, defaulting to db-first: %v", err)
		return true
	}
	var cfg struct {
		UseDBFirst *bool `json:"useDbFirst"`
	}
	if err := json.Unmarshal(body, &cfg); err != nil || cfg.UseDBFirst == nil {
		return true
	}
	return *cfg.UseDBFirst
}

// slicePage returns items[(page-1)*perPage : page*perPage], clamped.
func slicePage(items []types.Plant, page, perPage int) []types.Plant {
	start := (page - 1) * perPage
	if start >= len(items) || start < 0 {
		return []types.Plant{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

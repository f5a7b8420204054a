package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herbolive/internal/types"
)

type fakeProviders struct {
	backendAll []any
	perenual   []any
	trefle     []any
	dbFirst    *bool
}

func (f fakeProviders) server(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/plants":
			if r.URL.Query().Get("page") != "" || r.URL.Query().Get("limit") != "" {
				writeJSON(w, []any{})
				return
			}
			if f.backendAll == nil {
				http.Error(w, "db down", http.StatusInternalServerError)
				return
			}
			writeJSON(w, f.backendAll)
		case "/api/config":
			if f.dbFirst == nil {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, map[string]any{"useDbFirst": *f.dbFirst})
		case "/perenual":
			writeJSON(w, map[string]any{"data": f.perenual})
		case "/api/v1/species":
			writeJSON(w, map[string]any{"data": f.trefle})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newChain(srv *httptest.Server, csvPath string) *Chain {
	return &Chain{
		Backend:  NewBackend(srv.URL, srv.Client()),
		Perenual: NewPerenual(srv.URL+"/perenual", "", srv.Client()),
		Trefle:   NewTrefle(srv.URL, "", srv.Client()),
		CSV:      NewCSVSource(csvPath, 0),
	}
}

func names(list []types.Plant) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.DisplayName())
	}
	return out
}

func rec(common, sci string) map[string]any {
	return map[string]any{"common_name": common, "scientific_name": sci}
}

func TestChainDBFirstUsesBackendAlone(t *testing.T) {
	f := fakeProviders{
		backendAll: []any{rec("Rosa", "Rosa canina")},
		perenual:   []any{rec("Sage", "Salvia officinalis")},
	}
	srv := f.server(t)
	defer srv.Close()

	list, err := newChain(srv, "").FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Rosa"}, names(list))
}

func TestChainDBFirstFallsBackToProviders(t *testing.T) {
	f := fakeProviders{
		backendAll: []any{},
		perenual:   []any{rec("Sage", "Salvia officinalis"), rec("Mint", "Mentha spicata")},
		trefle: []any{
			map[string]any{"common_name": "Garden sage", "scientific_name": "Salvia officinalis", "family": "Lamiaceae"},
			rec("Lavender", "Lavandula angustifolia"),
		},
	}
	srv := f.server(t)
	defer srv.Close()

	list, err := newChain(srv, "").FetchAll(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"Sage", "Mint", "Lavender"}, names(list)); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Lamiaceae", list[0].Family, "duplicate fills missing fields of the first occurrence")
}

func TestChainMergedModeUnionsAllSources(t *testing.T) {
	no := false
	f := fakeProviders{
		backendAll: []any{rec("Rosa", "Rosa canina"), rec("Sage", "Salvia officinalis")},
		perenual:   []any{rec("Sage", "Salvia officinalis")},
		trefle:     []any{rec("Lavender", "Lavandula angustifolia")},
		dbFirst:    &no,
	}
	srv := f.server(t)
	defer srv.Close()

	list, err := newChain(srv, "").FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Sage", "Lavender", "Rosa"}, names(list))
}

func TestChainFallsBackToCSV(t *testing.T) {
	srv := fakeProviders{}.server(t)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "plant_data.csv")
	require.NoError(t, os.WriteFile(path, []byte("common_name;scientific_name\nRuda;Ruta graveolens\n"), 0o644))

	list, err := newChain(srv, path).FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Ruda"}, names(list))
}

func TestChainNothingAnywhere(t *testing.T) {
	srv := fakeProviders{}.server(t)
	defer srv.Close()

	_, err := newChain(srv, "").FetchAll(context.Background())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCatalogPagesFromFallbackList(t *testing.T) {
	var all []any
	for _, m := range plantsJSON(1, 8) {
		all = append(all, m)
	}
	srv := fakeProviders{backendAll: all}.server(t)
	defer srv.Close()

	c := NewCatalog(newChain(srv, ""))
	p2, err := c.FetchPlantsPage(context.Background(), 2, 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"Plant 7", "Plant 8"}, names(p2))

	p3, err := c.FetchPlantsPage(context.Background(), 3, 6)
	require.NoError(t, err)
	assert.Empty(t, p3)
}

func TestCatalogFetchAllIsMemoizedCopy(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/plants" {
			hits.Add(1)
			writeJSON(w, []any{rec("Rosa", "Rosa canina")})
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewCatalog(&Chain{Backend: NewBackend(srv.URL, srv.Client())})
	first, err := c.FetchAllPlants(context.Background())
	require.NoError(t, err)
	first[0].CommonName = "mutated"

	second, err := c.FetchAllPlants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Rosa", second[0].CommonName)
	assert.Equal(t, int32(1), hits.Load())

	c.Invalidate()
	_, err = c.FetchAllPlants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCatalogSearchFallsThroughSearchers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/plants":
			writeJSON(w, []any{})
		case "/perenual":
			writeJSON(w, map[string]any{"data": []any{rec("Dog rose", "Rosa canina")}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	chain := &Chain{Backend: NewBackend(srv.URL, srv.Client())}
	c := NewCatalog(chain, NewTrefle("", "", nil), NewPerenual(srv.URL+"/perenual", "", srv.Client()))
	got, err := c.SearchPlants(context.Background(), "rosa", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dog rose"}, names(got))
}

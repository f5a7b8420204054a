package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"herbolive/internal/config"
)

const catalogSize = 60

// newBackend serves a small catalog under /api.
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	plant := func(i int) map[string]any {
		return map[string]any{
			"id":              i,
			"common_name":     fmt.Sprintf("Plant %d", i),
			"scientific_name": fmt.Sprintf("Herba species%d", i),
			"description":     fmt.Sprintf("Plant %d description", i),
		}
	}
	all := make([]map[string]any, 0, catalogSize)
	for i := 1; i <= catalogSize; i++ {
		all = append(all, plant(i))
	}
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"useDbFirst": true})
	})
	mux.HandleFunc("/api/plants/", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/api/plants/"))
		if err != nil || id < 1 || id > catalogSize {
			http.NotFound(w, r)
			return
		}
		detail := plant(id)
		detail["habitat"] = "Andes"
		detail["pollinators"] = []string{"Bees"}
		writeJSON(w, map[string]any{"data": detail})
	})
	mux.HandleFunc("/api/plants", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if term := q.Get("q"); term != "" {
			var rows []map[string]any
			for _, p := range all {
				if strings.Contains(strings.ToLower(p["common_name"].(string)), term) {
					rows = append(rows, p)
				}
			}
			writeJSON(w, map[string]any{"rows": rows})
			return
		}
		if page, _ := strconv.Atoi(q.Get("page")); page > 0 {
			per, _ := strconv.Atoi(q.Get("perPage"))
			start := min((page-1)*per, len(all))
			end := min(start+per, len(all))
			writeJSON(w, map[string]any{"data": all[start:end]})
			return
		}
		writeJSON(w, all)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// setup writes a config file pointing at backendURL and selects it.
func setup(t *testing.T, backendURL string, edit func(*config.Config)) {
	t.Helper()
	logger = zap.NewNop()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Backend.BaseURL = backendURL
	cfg.Providers.Perenual.Enabled = false
	cfg.Providers.Trefle.Enabled = false
	cfg.Providers.Wikipedia.Enabled = false
	cfg.Providers.CSV.Enabled = false
	cfg.Cache.DatabasePath = filepath.Join(dir, "cache.db")
	cfg.Logging.Directory = filepath.Join(dir, "logs")
	cfg.Prefetch.PollDelay = "10ms"
	cfg.Search.PollInterval = "10ms"
	cfg.Search.ServerDelay = "40ms"
	cfg.Search.ServerTimeout = "2s"
	cfg.Search.SessionTimeout = "3s"
	if edit != nil {
		edit(cfg)
	}

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, cfg.Save(path))

	configPath = path
	timeout = 10 * time.Second
	t.Cleanup(func() {
		configPath = config.DefaultConfigPath
		prefetchAround = 1
		configForce = false
		purgeOlderThan = 0
	})
}

func capture() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func TestConfigInitCmd(t *testing.T) {
	logger = zap.NewNop()
	configPath = filepath.Join(t.TempDir(), "nested", "config.yaml")
	t.Cleanup(func() {
		configPath = config.DefaultConfigPath
		configForce = false
	})

	cmd, out := capture()
	require.NoError(t, runConfigInit(cmd, nil))
	assert.Contains(t, out.String(), "Wrote ")

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Paging.PageSize)

	err = runConfigInit(cmd, nil)
	require.Error(t, err, "an existing file is kept without --force")
	assert.Contains(t, err.Error(), "already exists")

	configForce = true
	require.NoError(t, runConfigInit(cmd, nil))
}

func TestPageCmd(t *testing.T) {
	srv := newBackend(t)
	setup(t, srv.URL, nil)

	cmd, out := capture()
	require.NoError(t, runPage(cmd, []string{"2"}))
	text := out.String()
	assert.Contains(t, text, "Page 2")
	assert.Contains(t, text, "Plant 7 (Herba species7)")
	assert.Contains(t, text, "Plant 12")
	assert.NotContains(t, text, "Plant 13")
}

func TestPageCmdRejectsBadPage(t *testing.T) {
	cmd, _ := capture()
	assert.Error(t, runPage(cmd, []string{"zero"}))
	assert.Error(t, runPage(cmd, []string{"0"}))
}

func TestSearchCmd(t *testing.T) {
	srv := newBackend(t)
	setup(t, srv.URL, func(c *config.Config) { c.Prefetch.Enabled = false })

	cmd, out := capture()
	require.NoError(t, runSearch(cmd, []string{"plant", "55"}))
	assert.Contains(t, out.String(), `1 results for "plant 55"`)
	assert.Contains(t, out.String(), "Plant 55")
}

func TestSearchCmdNoResults(t *testing.T) {
	srv := newBackend(t)
	setup(t, srv.URL, func(c *config.Config) { c.Prefetch.Enabled = false })

	cmd, out := capture()
	require.NoError(t, runSearch(cmd, []string{"nettle"}))
	assert.Contains(t, out.String(), `No results for "nettle".`)
}

func TestDetailCmd(t *testing.T) {
	srv := newBackend(t)
	setup(t, srv.URL, nil)

	cmd, out := capture()
	require.NoError(t, runDetail(cmd, []string{"3"}))
	text := out.String()
	assert.True(t, strings.HasPrefix(text, "Plant 3\n"))
	assert.Contains(t, text, "Andes")
	assert.Contains(t, text, "Pollinators:")

	assert.Error(t, runDetail(cmd, []string{"x"}))
}

func TestPrefetchCmd(t *testing.T) {
	srv := newBackend(t)
	setup(t, srv.URL, func(c *config.Config) { c.Prefetch.Enabled = false })
	prefetchAround = 8

	cmd, out := capture()
	require.NoError(t, runPrefetch(cmd, nil))
	text := out.String()
	require.True(t, strings.HasPrefix(text, "Loaded pages: "))
	pages := strings.Split(strings.TrimSpace(strings.TrimPrefix(text, "Loaded pages: ")), ", ")
	assert.Contains(t, pages, "8")
	assert.Contains(t, pages, "10")
	assert.LessOrEqual(t, len(pages), 10)

	_, err := os.Stat(filepath.Join(filepath.Dir(configPath), "logs"))
	assert.True(t, os.IsNotExist(err), "file logging stays off without debug mode")
}

func TestCacheListAndPurge(t *testing.T) {
	srv := newBackend(t)
	setup(t, srv.URL, func(c *config.Config) { c.Prefetch.Enabled = false })

	cmd, out := capture()
	require.NoError(t, runPage(cmd, []string{"2"}))

	out.Reset()
	require.NoError(t, runCacheList(cmd, nil))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 5, "boot persisted pages 1..5")
	assert.Contains(t, lines[0], "page 1")
	assert.Contains(t, lines[0], "6 records")

	purgeOlderThan = time.Hour
	out.Reset()
	require.NoError(t, runCachePurge(cmd, nil))
	assert.Equal(t, "Removed 0 persisted pages.\n", out.String())

	purgeOlderThan = 0
	out.Reset()
	require.NoError(t, runCachePurge(cmd, nil))
	assert.Equal(t, "Removed 5 persisted pages.\n", out.String())

	out.Reset()
	require.NoError(t, runCacheList(cmd, nil))
	assert.Equal(t, "No persisted pages.\n", out.String())
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the CLI looks for a config file when --config is unset.
const DefaultConfigPath = ".herbolive/config.yaml"

// Config holds all HerboLive configuration.
type Config struct {
	Name string `yaml:"name"`

	// Backend REST API (/api/plants, /api/config)
	Backend BackendConfig `yaml:"backend"`

	// Third-party botanical providers and the offline CSV dataset
	Providers ProvidersConfig `yaml:"providers"`

	// Pagination of the catalog view
	Paging PagingConfig `yaml:"paging"`

	// Background page prefetch and enrichment
	Prefetch PrefetchConfig `yaml:"prefetch"`

	// Persisted page cache
	Cache CacheConfig `yaml:"cache"`

	// Progressive search timings
	Search SearchConfig `yaml:"search"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// BackendConfig configures the catalog backend.
type BackendConfig struct {
	BaseURL string `yaml:"base_url"` // API root, "/api" is appended
	Timeout string `yaml:"timeout"`

	// UseDBFirst overrides the backend's /config preference when set.
	UseDBFirst *bool `yaml:"use_db_first,omitempty"`
}

// ProvidersConfig groups the external data providers.
type ProvidersConfig struct {
	Perenual  PerenualConfig  `yaml:"perenual"`
	Trefle    TrefleConfig    `yaml:"trefle"`
	Wikipedia WikipediaConfig `yaml:"wikipedia"`
	CSV       CSVConfig       `yaml:"csv"`
}

// PerenualConfig configures the Perenual species API.
type PerenualConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

// TrefleConfig configures the Trefle species API.
type TrefleConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	Timeout string `yaml:"timeout"`
}

// WikipediaConfig configures Wikipedia lookups.
type WikipediaConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Host      string   `yaml:"host,omitempty"` // URL template with {lang}; empty = wikipedia.org
	Languages []string `yaml:"languages"`      // tried in order
	UserAgent string   `yaml:"user_agent"`
	Timeout   string   `yaml:"timeout"`
}

// CSVConfig configures the offline dataset.
type CSVConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	MaxRows int    `yaml:"max_rows"`
	Watch   bool   `yaml:"watch"` // reload when the file changes
}

// PagingConfig configures pagination.
type PagingConfig struct {
	PageSize     int `yaml:"page_size"`
	InitialPages int `yaml:"initial_pages"`
	EnrichPages  int `yaml:"enrich_pages"` // pages enriched before the first render
}

// PrefetchConfig configures the prefetch scheduler.
type PrefetchConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Concurrency       int    `yaml:"concurrency"`
	EnrichConcurrency int    `yaml:"enrich_concurrency"`
	Ahead             int    `yaml:"ahead"`
	Behind            int    `yaml:"behind"`
	MaxWindow         int    `yaml:"max_window"`
	PauseOnSearch     bool   `yaml:"pause_on_search"`
	PollDelay         string `yaml:"poll_delay"`
}

// CacheConfig configures the persisted page store.
type CacheConfig struct {
	DatabasePath string `yaml:"database_path"` // empty = memory only
	KeyPrefix    string `yaml:"key_prefix"`
	MaxPages     int    `yaml:"max_pages"`
}

// SearchConfig configures the progressive search coordinator.
type SearchConfig struct {
	PollInterval    string `yaml:"poll_interval"`
	ServerDelay     string `yaml:"server_delay"`
	ServerTimeout   string `yaml:"server_timeout"`
	SessionTimeout  string `yaml:"session_timeout"`
	PostTimeoutPoll string `yaml:"post_timeout_poll"`
	ServerPerPage   int    `yaml:"server_per_page"`
	ThresholdPages  int    `yaml:"threshold_pages"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "HerboLive",

		Backend: BackendConfig{
			BaseURL: "http://localhost:3000",
			Timeout: "10s",
		},

		Providers: ProvidersConfig{
			Perenual: PerenualConfig{
				Enabled: true,
				BaseURL: "https://perenual.com/api/species-list",
				Timeout: "10s",
			},
			Trefle: TrefleConfig{
				Enabled: true,
				BaseURL: "https://trefle.io",
				Timeout: "10s",
			},
			Wikipedia: WikipediaConfig{
				Enabled:   true,
				Languages: []string{"es", "en"},
				UserAgent: "HerboLive/1.0 (plant catalog viewer)",
				Timeout:   "10s",
			},
			CSV: CSVConfig{
				Enabled: true,
				Path:    "data/plant_data.csv",
				MaxRows: 52,
				Watch:   true,
			},
		},

		Paging: PagingConfig{
			PageSize:     6,
			InitialPages: 5,
			EnrichPages:  2,
		},

		Prefetch: PrefetchConfig{
			Enabled:           true,
			Concurrency:       2,
			EnrichConcurrency: 3,
			Ahead:             5,
			Behind:            5,
			MaxWindow:         10,
			PauseOnSearch:     true,
			PollDelay:         "1s",
		},

		Cache: CacheConfig{
			DatabasePath: ".herbolive/cache.db",
			KeyPrefix:    "herbolive_page_",
			MaxPages:     10,
		},

		Search: SearchConfig{
			PollInterval:    "300ms",
			ServerDelay:     "1500ms",
			ServerTimeout:   "8s",
			SessionTimeout:  "10s",
			PostTimeoutPoll: "2s",
			ServerPerPage:   100,
			ThresholdPages:  2,
		},

		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Directory:  ".herbolive/logs",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
// API credentials are expected to come from the environment, not the file.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("PERENUAL_API_KEY"); key != "" {
		c.Providers.Perenual.APIKey = key
	}
	if token := os.Getenv("TREFLE_TOKEN"); token != "" {
		c.Providers.Trefle.Token = token
	}
	if url := os.Getenv("HERBOLIVE_BACKEND_URL"); url != "" {
		c.Backend.BaseURL = url
	}
	if path := os.Getenv("HERBOLIVE_CACHE_DB"); path != "" {
		c.Cache.DatabasePath = path
	}
	if path := os.Getenv("HERBOLIVE_CSV"); path != "" {
		c.Providers.CSV.Path = path
	}
	if v := os.Getenv("HERBOLIVE_DB_FIRST"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Backend.UseDBFirst = &b
		}
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetBackendTimeout returns the backend HTTP timeout as a duration.
func (c *Config) GetBackendTimeout() time.Duration {
	return parseDuration(c.Backend.Timeout, 10*time.Second)
}

// GetPerenualTimeout returns the Perenual HTTP timeout as a duration.
func (c *Config) GetPerenualTimeout() time.Duration {
	return parseDuration(c.Providers.Perenual.Timeout, 10*time.Second)
}

// GetTrefleTimeout returns the Trefle HTTP timeout as a duration.
func (c *Config) GetTrefleTimeout() time.Duration {
	return parseDuration(c.Providers.Trefle.Timeout, 10*time.Second)
}

// GetWikipediaTimeout returns the Wikipedia HTTP timeout as a duration.
func (c *Config) GetWikipediaTimeout() time.Duration {
	return parseDuration(c.Providers.Wikipedia.Timeout, 10*time.Second)
}

// GetPrefetchPollDelay returns how long a paused prefetch worker waits before re-checking.
func (c *Config) GetPrefetchPollDelay() time.Duration {
	return parseDuration(c.Prefetch.PollDelay, time.Second)
}

// GetSearchPollInterval returns the local rescan interval.
func (c *Config) GetSearchPollInterval() time.Duration {
	return parseDuration(c.Search.PollInterval, 300*time.Millisecond)
}

// GetSearchServerDelay returns the delay before the server phase fires.
func (c *Config) GetSearchServerDelay() time.Duration {
	return parseDuration(c.Search.ServerDelay, 1500*time.Millisecond)
}

// GetSearchServerTimeout returns the timeout of one server query.
func (c *Config) GetSearchServerTimeout() time.Duration {
	return parseDuration(c.Search.ServerTimeout, 8*time.Second)
}

// GetSearchSessionTimeout returns the hard timeout of a search session.
func (c *Config) GetSearchSessionTimeout() time.Duration {
	return parseDuration(c.Search.SessionTimeout, 10*time.Second)
}

// GetSearchPostTimeoutPoll returns the slow poll interval used after a session timeout.
func (c *Config) GetSearchPostTimeoutPoll() time.Duration {
	return parseDuration(c.Search.PostTimeoutPoll, 2*time.Second)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" && !c.Providers.Perenual.Enabled && !c.Providers.Trefle.Enabled && !c.Providers.CSV.Enabled {
		return fmt.Errorf("no data source configured (set backend.base_url or enable a provider)")
	}
	if c.Providers.Perenual.Enabled && c.Providers.Perenual.BaseURL == "" {
		return fmt.Errorf("providers.perenual.base_url required when perenual is enabled")
	}
	if c.Providers.Trefle.Enabled && c.Providers.Trefle.BaseURL == "" {
		return fmt.Errorf("providers.trefle.base_url required when trefle is enabled")
	}
	return c.ValidateLimits()
}

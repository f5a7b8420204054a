package config

import "fmt"

// ValidateLimits checks that paging, prefetch and cache limits are within acceptable ranges.
func (c *Config) ValidateLimits() error {
	if c.Paging.PageSize < 1 {
		return fmt.Errorf("paging.page_size must be >= 1")
	}
	if c.Paging.InitialPages < 1 {
		return fmt.Errorf("paging.initial_pages must be >= 1")
	}
	if c.Prefetch.Concurrency < 1 {
		return fmt.Errorf("prefetch.concurrency must be >= 1")
	}
	if c.Prefetch.EnrichConcurrency < 1 {
		return fmt.Errorf("prefetch.enrich_concurrency must be >= 1")
	}
	if c.Prefetch.Ahead < 0 || c.Prefetch.Behind < 0 {
		return fmt.Errorf("prefetch.ahead and prefetch.behind must be >= 0")
	}
	if c.Prefetch.MaxWindow < 1 {
		return fmt.Errorf("prefetch.max_window must be >= 1")
	}
	if c.Cache.MaxPages < 1 {
		return fmt.Errorf("cache.max_pages must be >= 1")
	}
	if c.Search.ServerPerPage < 1 {
		return fmt.Errorf("search.server_per_page must be >= 1")
	}
	return nil
}

// KeepWindow returns how many pages ClearAround keeps around the current page:
// min(max_window, max(initial_pages, ahead+behind+1)).
func (c *Config) KeepWindow() int {
	keep := c.Prefetch.Ahead + c.Prefetch.Behind + 1
	if c.Paging.InitialPages > keep {
		keep = c.Paging.InitialPages
	}
	if c.Prefetch.MaxWindow > 0 && keep > c.Prefetch.MaxWindow {
		keep = c.Prefetch.MaxWindow
	}
	return keep
}

// SearchThreshold returns how many local matches trigger an immediate render.
func (c *Config) SearchThreshold() int {
	pages := c.Search.ThresholdPages
	if pages < 1 {
		pages = 2
	}
	return pages * c.Paging.PageSize
}

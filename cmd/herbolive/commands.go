package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"herbolive/internal/config"
	"herbolive/internal/types"
)

var (
	prefetchAround int
	configForce    bool
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the interactive catalog (default)",
	RunE:  runTUI,
}

var pageCmd = &cobra.Command{
	Use:   "page [n]",
	Short: "Print one catalog page",
	Args:  cobra.ExactArgs(1),
	RunE:  runPage,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the cached pages and the backend",
	Long: `Runs a progressive search: pages already loaded are matched first, then
the backend is asked for records that are not loaded yet. The command
prints the final result list once the search settles.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var detailCmd = &cobra.Command{
	Use:   "detail [id]",
	Short: "Print the backend detail record of a plant",
	Args:  cobra.ExactArgs(1),
	RunE:  runDetail,
}

var prefetchCmd = &cobra.Command{
	Use:   "prefetch",
	Short: "Warm the page cache around a page",
	RunE:  runPrefetch,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	RunE:  runConfigInit,
}

func runPage(cmd *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return fmt.Errorf("invalid page %q", args[0])
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(timeout)
	defer cancel()

	if err := a.Boot(ctx); err != nil {
		logger.Warn("Boot incomplete", zap.Error(err))
	}
	items, err := a.Page(ctx, n)
	if err != nil {
		return err
	}
	logger.Debug("Page loaded", zap.Int("page", n), zap.Int("items", len(items)))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Page %d\n", n)
	printPlants(out, items)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(timeout)
	defer cancel()

	if err := a.Boot(ctx); err != nil {
		logger.Warn("Boot incomplete", zap.Error(err))
	}
	logger.Info("Searching", zap.String("query", query))
	results, err := a.SearchAndWait(ctx, query)
	if err != nil {
		return fmt.Errorf("search %q: %w", query, err)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintf(out, "No results for %q.\n", query)
		return nil
	}
	fmt.Fprintf(out, "%d results for %q\n", len(results), query)
	printPlants(out, results)
	return nil
}

func runDetail(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id < 1 {
		return fmt.Errorf("invalid plant id %q", args[0])
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(timeout)
	defer cancel()

	p, err := a.DetailByID(ctx, id)
	if err != nil {
		return err
	}
	printDetail(cmd.OutOrStdout(), p)
	return nil
}

func runPrefetch(cmd *cobra.Command, args []string) error {
	if prefetchAround < 1 {
		return fmt.Errorf("invalid page %d", prefetchAround)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Prefetch.Enabled = true

	a, err := openAppWith(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(timeout)
	defer cancel()

	if err := a.Boot(ctx); err != nil {
		logger.Warn("Boot incomplete", zap.Error(err))
	}
	if _, err := a.Page(ctx, prefetchAround); err != nil {
		return err
	}
	if err := a.Scheduler.WaitIdle(ctx); err != nil {
		return fmt.Errorf("prefetch around page %d: %w", prefetchAround, err)
	}

	pages := a.Cache.LoadedPages()
	logger.Info("Prefetch finished", zap.Int("around", prefetchAround), zap.Ints("pages", pages))
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded pages: %s\n", joinInts(pages))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check %s: %w", configPath, err)
	}
	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
	return nil
}

func printPlants(w io.Writer, items []types.Plant) {
	for _, p := range items {
		name := p.DisplayName()
		if sci := p.BinomialName(); sci != "" && sci != name {
			name += " (" + sci + ")"
		}
		if p.ID != 0 {
			fmt.Fprintf(w, "  %5d  %s\n", p.ID, name)
		} else {
			fmt.Fprintf(w, "      -  %s\n", name)
		}
	}
}

func printDetail(w io.Writer, p types.Plant) {
	fmt.Fprintln(w, p.DisplayName())
	for i := range types.StringFields {
		f := types.StringFields[i]
		if v := strings.TrimSpace(*f.Get(&p)); v != "" {
			fmt.Fprintf(w, "  %-16s %s\n", f.Label+":", v)
		}
	}
	if len(p.Pollinators) > 0 {
		fmt.Fprintf(w, "  %-16s %s\n", "Pollinators:", strings.Join(p.Pollinators, ", "))
	}
	for i, img := range p.Images {
		fmt.Fprintf(w, "  %-16s %s\n", fmt.Sprintf("Image %d:", i+1), img)
	}
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

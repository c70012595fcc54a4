package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/config"
	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/aluiziolira/go-scrape-reviews/pipeline"
	"github.com/aluiziolira/go-scrape-reviews/scraper"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const envPrefix = "REVIEWS"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ParseAndRun(ctx, os.Args[1:]); err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "reviews: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *ffcli.Command {
	rootFs := flag.NewFlagSet("reviews", flag.ExitOnError)

	harvestCfg := config.DefaultConfig()
	harvestFs := flag.NewFlagSet("harvest", flag.ExitOnError)
	registerFlags(harvestFs, harvestCfg)
	harvestCmd := &ffcli.Command{
		Name:       "harvest",
		ShortUsage: "reviews harvest [flags] [url]",
		ShortHelp:  "Harvest every review page of a restaurant into a table",
		LongHelp: `Harvest every review page of a restaurant into a table.
Page 1 is read from the given url; the declared review total on it decides
how many further pages are requested, 10 reviews per page, by appending
&start=<offset> to the url. Pagination ends early on the first empty or
failing page. The url is prompted for when not given.`,
		FlagSet: harvestFs,
		Options: flagOptions(),
		Exec: func(ctx context.Context, args []string) error {
			return runHarvest(ctx, harvestCfg, args)
		},
	}

	profileCfg := config.DefaultConfig()
	profileFs := flag.NewFlagSet("profile", flag.ExitOnError)
	registerFlags(profileFs, profileCfg)
	profileCmd := &ffcli.Command{
		Name:       "profile",
		ShortUsage: "reviews profile [flags] [url]",
		ShortHelp:  "Scrape a restaurant's main page into a single-row table",
		FlagSet:    profileFs,
		Options:    flagOptions(),
		Exec: func(ctx context.Context, args []string) error {
			return runProfile(profileCfg, args)
		},
	}

	return &ffcli.Command{
		Name:        "reviews",
		ShortUsage:  "reviews <subcommand> [flags] [url]",
		ShortHelp:   "Reviews scrapes restaurant reviews into CSV files",
		FlagSet:     rootFs,
		Subcommands: []*ffcli.Command{harvestCmd, profileCmd},
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
	}
}

func registerFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "Reviews per page assumed by the offset arithmetic")
	fs.DurationVar(&cfg.Delay, "delay", cfg.Delay, "Delay between requests")
	fs.DurationVar(&cfg.RandomDelay, "random-delay", cfg.RandomDelay, "Random jitter added to delay")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	fs.StringVar(&cfg.OutputFile, "output", cfg.OutputFile, "Output file path (default: <name>_reviews.<ext> in -output-dir)")
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "Directory for derived output file names")
	fs.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "Output format: csv, json, dual, or sqlite")
	fs.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent header sent with every request")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	fs.BoolVar(&cfg.RespectRobotsTxt, "respect-robots", cfg.RespectRobotsTxt, "Respect robots.txt directives")
	fs.String("config", "", "Config file with one 'flag value' pair per line")
}

func flagOptions() []ff.Option {
	return []ff.Option{
		ff.WithEnvVarPrefix(envPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	}
}

func runHarvest(ctx context.Context, cfg *config.Config, args []string) error {
	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	baseURL, err := targetURL(args, "Enter the base URL of the restaurant review page: ")
	if err != nil {
		return err
	}
	cfg.BaseURL = baseURL
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	h, err := scraper.NewHarvester(cfg)
	if err != nil {
		return fmt.Errorf("initialising harvester: %w", err)
	}

	metricsServer := startMetricsServer(cfg.MetricsAddr, h.Metrics)
	defer shutdownMetricsServer(metricsServer)

	slog.Info("starting harvest", slog.String("base_url", cfg.BaseURL), slog.Int("page_size", cfg.PageSize))

	var files []string
	result, err := h.Harvest(ctx, cfg.BaseURL, outputOpener(cfg, &files))
	if errors.Is(err, scraper.ErrFirstPage) {
		slog.Error("could not determine the total review count", slog.Any("error", err))
		return nil
	}
	if err != nil {
		slog.Error("harvest failed", slog.Any("error", err))
		if result == nil {
			return nil
		}
	}

	printSummary(result, files)
	return nil
}

func runProfile(cfg *config.Config, args []string) error {
	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	pageURL, err := targetURL(args, "Enter restaurant URL: ")
	if err != nil {
		return err
	}
	cfg.BaseURL = pageURL
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	h, err := scraper.NewHarvester(cfg)
	if err != nil {
		return fmt.Errorf("initialising harvester: %w", err)
	}

	profile, err := h.FetchProfile(pageURL)
	if err != nil {
		slog.Error("failed to scrape profile", slog.Any("error", err))
		return nil
	}

	path := profilePath(cfg, profile)
	if err := pipeline.WriteProfileCSV(path, profile); err != nil {
		slog.Error("failed to save profile", slog.Any("error", err))
		return nil
	}
	slog.Info("profile saved", slog.String("name", profile.Name), slog.String("output", path))
	return nil
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func shutdownMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func printSummary(result *models.HarvestResult, files []string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Harvest complete")

	fmt.Printf("  Restaurant:    %s\n", result.Target.Name)
	fmt.Printf("  Declared:      %d reviews\n", result.Target.DeclaredTotal)
	fmt.Printf("  Pages:         %d of %d\n", result.PagesFetched, result.PageCount)
	fmt.Printf("  Rows written:  %d\n", result.RowsWritten)
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	for _, file := range files {
		fmt.Printf("  Output file:   %s\n", filepath.Clean(file))
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

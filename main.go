package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"shopcrawl/internal/config"
	"shopcrawl/internal/crawl"
	"shopcrawl/internal/facade"
	"shopcrawl/internal/fetch"
	"shopcrawl/internal/observability"
	"shopcrawl/internal/sink"
	"shopcrawl/internal/sites"
	_ "shopcrawl/internal/sites/puma"
	_ "shopcrawl/internal/sites/saintlaurent"
	"shopcrawl/internal/translate"
)

var version = "dev"

var (
	outDir       string
	formats      []string
	maxPages     int
	render       bool
	usePostgres  bool
	timeout      time.Duration
	siteWorkers  int
	serveMetrics bool
	serveAddr    string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:     "shopcrawl",
		Short:   "Product catalog crawler with per-site extractors",
		Version: version,
		Long: `shopcrawl crawls e-commerce product listings site by site, follows each
product to its detail page, normalizes the extracted fields into one canonical
record shape, and streams the records to CSV, JSON, JSON Lines, or Postgres.
It can also serve a previously exported data file over HTTP for querying.`,
		SilenceUsage: true,
	}

	crawlCmd := &cobra.Command{
		Use:   "crawl [site|all]",
		Short: "Crawl one registered site, or all of them",
		Example: `  # Crawl every registered site into ./data
  shopcrawl crawl all

  # Crawl one site with a page cap, exporting CSV only
  shopcrawl crawl puma --max-pages 3 -f csv

  # Crawl with a real browser for script-rendered pages
  shopcrawl crawl saintlaurent --render`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawl,
	}
	crawlCmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "Output directory (defaults to OUT_DIR env var or ./data)")
	crawlCmd.Flags().StringSliceVarP(&formats, "format", "f", []string{"csv", "json"}, "Output formats (csv, json, jsonl)")
	crawlCmd.Flags().IntVar(&maxPages, "max-pages", 0, "Max follow-up listing pages per seed (0 for first page only, -1 for no limit; unset keeps each site's own budget)")
	crawlCmd.Flags().BoolVar(&render, "render", false, "Fetch pages with a headless browser instead of plain HTTP")
	crawlCmd.Flags().BoolVar(&usePostgres, "postgres", false, "Also write records to Postgres (POSTGRES_DSN env var)")
	crawlCmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Per-request timeout (defaults to FETCH_TIMEOUT_SECONDS env var)")
	crawlCmd.Flags().IntVar(&siteWorkers, "workers", 0, "Concurrent sites when crawling all (defaults to SITE_WORKERS env var)")
	crawlCmd.Flags().BoolVar(&serveMetrics, "metrics", false, "Expose Prometheus metrics while crawling (METRICS_PORT env var)")

	serveCmd := &cobra.Command{
		Use:   "serve <datafile>",
		Short: "Serve an exported data file over HTTP",
		Example: `  # Serve a crawl export for querying
  shopcrawl serve data/puma_products.csv
  shopcrawl serve data/saintlaurent_products.json --addr :8080`,
		Args: cobra.ExactArgs(1),
		RunE: runServe,
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":5000", "HTTP listen address")

	rootCmd.AddCommand(crawlCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if outDir == "" {
		outDir = cfg.OutDir
	}
	if timeout <= 0 {
		timeout = cfg.FetchTimeout
	}
	if siteWorkers <= 0 {
		siteWorkers = cfg.SiteWorkers
	}

	for _, format := range formats {
		switch format {
		case "csv", "json", "jsonl":
		default:
			return fmt.Errorf("invalid output format: %s", format)
		}
	}
	if usePostgres && cfg.PostgresDSN == "" {
		return fmt.Errorf("--postgres requires the POSTGRES_DSN environment variable")
	}

	extractors, err := selectSites(args[0])
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if serveMetrics {
		observability.Start(cfg.MetricsPort)
	}

	// Extractors that translate pick up the real translator only when a key
	// is configured; otherwise they keep the source-language text.
	var translator translate.Translator = translate.Noop{}
	if cfg.OpenAIKey != "" {
		translator = translate.NewOpenAI(cfg.OpenAIKey)
	}
	for _, ex := range extractors {
		if ta, ok := ex.(sites.TranslatorAware); ok {
			ta.SetTranslator(translator)
		}
	}

	var fetcher fetch.Fetcher
	if render {
		bf, err := fetch.NewBrowserFetcher(true, timeout)
		if err != nil {
			return fmt.Errorf("failed to start browser: %w", err)
		}
		defer bf.Close()
		fetcher = bf
	} else {
		fetcher = fetch.NewHTTPFetcher(timeout)
	}

	runID := uuid.NewString()
	opts := crawl.Options{
		Fetcher:       fetcher,
		DetailWorkers: cfg.DetailWorkers,
		RunID:         runID,
	}
	if cmd.Flags().Changed("max-pages") {
		opts.MaxExtraPages = &maxPages
	}

	mkSinks := func(site string) ([]sink.Sink, error) {
		var sinks []sink.Sink
		for _, format := range formats {
			path := filepath.Join(outDir, site+"_products."+format)
			switch format {
			case "csv":
				sinks = append(sinks, sink.NewCSV(path))
			case "json":
				sinks = append(sinks, sink.NewJSONArray(path))
			case "jsonl":
				sinks = append(sinks, sink.NewJSONLines(path))
			}
		}
		if usePostgres {
			sinks = append(sinks, sink.NewPostgres(cfg.PostgresDSN, site, runID))
		}
		return sinks, nil
	}

	reports := crawl.RunAll(context.Background(), extractors, mkSinks, siteWorkers, opts)

	failed := 0
	for _, report := range reports {
		entry := logrus.WithFields(logrus.Fields{
			"site":    report.Site,
			"pages":   report.Pages,
			"written": report.Written,
			"skipped": report.Skipped,
		})
		if report.Err != nil {
			failed++
			entry.WithError(report.Err).Error("site crawl failed")
		} else {
			entry.Info("site crawl complete")
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d site crawls failed", failed, len(reports))
	}
	return nil
}

func selectSites(name string) ([]sites.Extractor, error) {
	if strings.EqualFold(name, "all") {
		return sites.All(), nil
	}
	ex, ok := sites.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown site %q (registered: %s)", name, strings.Join(sites.Names(), ", "))
	}
	return []sites.Extractor{ex}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	table, err := facade.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load data file: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"file":     table.Path,
		"format":   table.Format,
		"products": len(table.Records),
		"addr":     serveAddr,
	}).Info("serving data file")

	return facade.NewServer(table).Router().Run(serveAddr)
}

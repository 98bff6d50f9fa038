// Package crawl drives the fetch graph of a crawl run: listing fetches,
// detail fetches carrying the extracted partial records, pagination, and the
// hand-off of completed records to the configured sinks.
package crawl

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"shopcrawl/internal/fetch"
	"shopcrawl/internal/observability"
	"shopcrawl/internal/product"
	"shopcrawl/internal/sink"
	"shopcrawl/internal/sites"
)

const defaultDetailWorkers = 4

// Options configures a single site's run.
type Options struct {
	Fetcher fetch.Fetcher
	Sinks   []sink.Sink
	// MaxExtraPages, when non-nil, overrides the site's follow-up listing
	// fetch budget. Nil keeps the extractor's own cap.
	MaxExtraPages *int
	DetailWorkers int
	RunID         string
}

// Report summarizes one site's run.
type Report struct {
	Site    string
	Pages   int
	Written int
	Skipped int
	Err     error
}

// Run crawls one site: seeds, listing pages, detail pages, sinks. Fetch
// failures degrade (a failed listing fetch ends pagination, a failed detail
// fetch drops that one record); a sink failure cancels the run's context and
// aborts the whole fetch graph.
func Run(ctx context.Context, ex sites.Extractor, opts Options) Report {
	log := logrus.WithFields(logrus.Fields{"site": ex.Name(), "run": opts.RunID})
	report := Report{Site: ex.Name()}

	workers := opts.DetailWorkers
	if workers <= 0 {
		workers = defaultDetailWorkers
	}

	pagination := ex.Pagination()
	if opts.MaxExtraPages != nil {
		pagination.MaxExtraPages = *opts.MaxExtraPages
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan *product.Partial)
	records := make(chan *product.Record)

	var skippedDetails atomic.Int64

	// Detail workers: each partial is owned by exactly one in-flight fetch
	// and consumed exactly once.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for partial := range jobs {
				if runCtx.Err() != nil {
					continue // run aborted, drop the remaining work unfetched
				}
				body, err := opts.Fetcher.Fetch(runCtx, partial.DetailURL)
				if err != nil {
					skippedDetails.Add(1)
					log.WithError(err).WithField("url", partial.DetailURL).Warn("detail fetch failed, dropping record")
					continue
				}
				observability.PagesFetched.WithLabelValues(ex.Name(), "detail").Inc()

				rec, err := ex.ExtractDetail(runCtx, body, partial)
				if err != nil {
					skippedDetails.Add(1)
					log.WithError(err).WithField("url", partial.DetailURL).Warn("detail extraction failed, dropping record")
					continue
				}
				records <- rec
			}
		}()
	}

	// Single writer per run: the sinks never see concurrent writes. The first
	// write failure cancels the run context so no further pages are fetched.
	writerDone := make(chan struct{})
	var sinkErr error
	go func() {
		defer close(writerDone)
		for rec := range records {
			if sinkErr != nil {
				continue // drain remaining records after a sink failure
			}
			for _, s := range opts.Sinks {
				if err := s.Write(rec); err != nil {
					sinkErr = fmt.Errorf("failed to write record %s: %w", rec.ProductID, err)
					cancel()
					break
				}
			}
			if sinkErr == nil {
				report.Written++
				observability.RecordsWritten.WithLabelValues(ex.Name()).Inc()
			}
		}
	}()

	for _, seed := range ex.Seeds() {
		if runCtx.Err() != nil {
			break
		}
		pageURL := seed
		pages := 0
		for pageURL != "" && runCtx.Err() == nil {
			body, err := opts.Fetcher.Fetch(runCtx, pageURL)
			if err != nil {
				log.WithError(err).WithField("url", pageURL).Warn("listing fetch failed, ending pagination")
				break
			}
			pages++
			observability.PagesFetched.WithLabelValues(ex.Name(), "listing").Inc()

			lr, err := ex.ExtractListing(body, pageURL)
			if err != nil {
				log.WithError(err).WithField("url", pageURL).Warn("listing extraction failed, ending pagination")
				break
			}
			report.Skipped += lr.Skipped

			for _, partial := range lr.Partials {
				select {
				case jobs <- partial:
				case <-runCtx.Done():
				}
			}

			next, ok := pagination.Next(pages, len(lr.Partials), lr.NextPageURL)
			if !ok {
				break
			}
			pageURL = next
		}
		report.Pages += pages
	}

	close(jobs)
	wg.Wait()
	close(records)
	<-writerDone

	report.Skipped += int(skippedDetails.Load())
	if report.Skipped > 0 {
		observability.RecordsSkipped.WithLabelValues(ex.Name()).Add(float64(report.Skipped))
	}
	report.Err = sinkErr

	if sinkErr != nil {
		log.WithError(sinkErr).Error("run aborted by sink failure")
	} else {
		log.WithFields(logrus.Fields{
			"pages":   report.Pages,
			"written": report.Written,
			"skipped": report.Skipped,
		}).Info("run finished")
	}
	return report
}

// SinkFactory builds the sinks for one site's run. Each site writes to its
// own files, so concurrent runs never share a writer.
type SinkFactory func(site string) ([]sink.Sink, error)

// RunAll crawls the given sites concurrently on a bounded worker pool,
// preserving input order in the returned reports.
func RunAll(ctx context.Context, extractors []sites.Extractor, mkSinks SinkFactory, workers int, opts Options) []Report {
	reports := make([]Report, len(extractors))
	if len(extractors) == 0 {
		return reports
	}

	if workers <= 0 {
		workers = 1
	}
	if workers > len(extractors) {
		workers = len(extractors)
	}

	type job struct {
		index int
		ex    sites.Extractor
	}
	jobs := make(chan job)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				reports[j.index] = runWithSinks(ctx, j.ex, mkSinks, opts)
			}
		}()
	}

	for i, ex := range extractors {
		jobs <- job{index: i, ex: ex}
	}
	close(jobs)
	wg.Wait()

	return reports
}

func runWithSinks(ctx context.Context, ex sites.Extractor, mkSinks SinkFactory, opts Options) Report {
	sinks, err := mkSinks(ex.Name())
	if err != nil {
		return Report{Site: ex.Name(), Err: fmt.Errorf("failed to create sinks: %w", err)}
	}
	for _, s := range sinks {
		if err := s.Open(); err != nil {
			return Report{Site: ex.Name(), Err: fmt.Errorf("failed to open sink: %w", err)}
		}
	}

	opts.Sinks = sinks
	report := Run(ctx, ex, opts)

	for _, s := range sinks {
		if err := s.Close(); err != nil && report.Err == nil {
			report.Err = fmt.Errorf("failed to close sink: %w", err)
		}
	}
	return report
}

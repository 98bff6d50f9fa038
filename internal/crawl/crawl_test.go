package crawl_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopcrawl/internal/crawl"
	"shopcrawl/internal/normalize"
	"shopcrawl/internal/product"
	"shopcrawl/internal/sink"
	"shopcrawl/internal/sites"
)

// mockFetcher is a function-field mock of fetch.Fetcher.
type mockFetcher struct {
	mu      sync.Mutex
	calls   []string
	FetchFn func(ctx context.Context, url string) (string, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, url)
	m.mu.Unlock()
	return m.FetchFn(ctx, url)
}

func (m *mockFetcher) urls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// memorySink collects written records in memory.
type memorySink struct {
	mu      sync.Mutex
	records []*product.Record
	writeFn func(*product.Record) error
	opened  bool
	closed  bool
}

func (s *memorySink) Open() error { s.opened = true; return nil }

func (s *memorySink) Write(rec *product.Record) error {
	if s.writeFn != nil {
		if err := s.writeFn(rec); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) Close() error { s.closed = true; return nil }

// fakeSite is a scripted extractor: listing pages are keyed by URL and yield
// partials pointing at detail URLs.
type fakeSite struct {
	name     string
	seeds    []string
	pag      sites.Pagination
	listings map[string]sites.ListingResult
}

func (f *fakeSite) Name() string                 { return f.name }
func (f *fakeSite) Seeds() []string              { return f.seeds }
func (f *fakeSite) Pagination() sites.Pagination { return f.pag }

func (f *fakeSite) ExtractListing(body, pageURL string) (sites.ListingResult, error) {
	return f.listings[pageURL], nil
}

func (f *fakeSite) ExtractDetail(_ context.Context, body string, partial *product.Partial) (*product.Record, error) {
	rec := partial.Complete()
	rec.Description = "desc from " + body
	rec.Sizes = []string{"M"}
	return rec, nil
}

func partialFor(id, detailURL string) *product.Partial {
	return &product.Partial{
		ProductID:    id,
		Title:        "Shoe " + id,
		CurrentPrice: normalize.KnownPrice(100),
		URL:          detailURL,
		DetailURL:    detailURL,
	}
}

func capPages(n int) *int { return &n }

func TestRunListingToDetailToSink(t *testing.T) {
	t.Parallel()

	site := &fakeSite{
		name:  "fake",
		seeds: []string{"https://shop.example.com/list"},
		pag:   sites.Pagination{Mode: sites.ModeAffordance, MaxExtraPages: -1},
		listings: map[string]sites.ListingResult{
			"https://shop.example.com/list": {
				Partials: []*product.Partial{
					partialFor("1", "https://shop.example.com/p/1"),
					partialFor("2", "https://shop.example.com/p/2"),
				},
				NextPageURL: "https://shop.example.com/list?page=2",
				Skipped:     1,
			},
			"https://shop.example.com/list?page=2": {
				Partials: []*product.Partial{
					partialFor("3", "https://shop.example.com/p/3"),
				},
			},
		},
	}

	fetcher := &mockFetcher{FetchFn: func(_ context.Context, url string) (string, error) {
		return "body of " + url, nil
	}}
	out := &memorySink{}

	report := crawl.Run(context.Background(), site, crawl.Options{
		Fetcher:       fetcher,
		Sinks:         []sink.Sink{out},
		DetailWorkers: 2,
	})

	require.NoError(t, report.Err)
	assert.Equal(t, 2, report.Pages)
	assert.Equal(t, 3, report.Written)
	assert.Equal(t, 1, report.Skipped)

	require.Len(t, out.records, 3)
	ids := map[string]bool{}
	for _, rec := range out.records {
		ids[rec.ProductID] = true
		assert.Equal(t, "Shoe "+rec.ProductID, rec.Title, "carried listing fields survive the merge")
		assert.Contains(t, rec.Description, "body of", "detail extraction ran on the fetched body")
		assert.Equal(t, []string{"M"}, rec.Sizes)
	}
	assert.Equal(t, map[string]bool{"1": true, "2": true, "3": true}, ids)
}

func TestRunFailedDetailFetchDropsOnlyThatRecord(t *testing.T) {
	t.Parallel()

	site := &fakeSite{
		name:  "fake",
		seeds: []string{"https://shop.example.com/list"},
		pag:   sites.Pagination{Mode: sites.ModeAffordance, MaxExtraPages: 0},
		listings: map[string]sites.ListingResult{
			"https://shop.example.com/list": {
				Partials: []*product.Partial{
					partialFor("1", "https://shop.example.com/p/1"),
					partialFor("2", "https://shop.example.com/p/2"),
				},
			},
		},
	}

	fetcher := &mockFetcher{FetchFn: func(_ context.Context, url string) (string, error) {
		if url == "https://shop.example.com/p/1" {
			return "", errors.New("connection reset")
		}
		return "body", nil
	}}
	out := &memorySink{}

	report := crawl.Run(context.Background(), site, crawl.Options{
		Fetcher: fetcher,
		Sinks:   []sink.Sink{out},
	})

	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.Written)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, out.records, 1)
	assert.Equal(t, "2", out.records[0].ProductID)
}

func TestRunFailedListingFetchEndsPagination(t *testing.T) {
	t.Parallel()

	site := &fakeSite{
		name:     "fake",
		seeds:    []string{"https://shop.example.com/list"},
		pag:      sites.Pagination{Mode: sites.ModeAffordance, MaxExtraPages: -1},
		listings: map[string]sites.ListingResult{},
	}

	fetcher := &mockFetcher{FetchFn: func(_ context.Context, url string) (string, error) {
		return "", errors.New("503")
	}}
	out := &memorySink{}

	report := crawl.Run(context.Background(), site, crawl.Options{
		Fetcher: fetcher,
		Sinks:   []sink.Sink{out},
	})

	require.NoError(t, report.Err)
	assert.Equal(t, 0, report.Pages)
	assert.Equal(t, 0, report.Written)
	assert.Len(t, fetcher.urls(), 1, "no follow-up fetch after a failed listing fetch")
}

func TestRunCapZeroIssuesNoFollowUpListingFetch(t *testing.T) {
	t.Parallel()

	site := &fakeSite{
		name:  "fake",
		seeds: []string{"https://shop.example.com/list"},
		pag:   sites.Pagination{Mode: sites.ModeAffordance, MaxExtraPages: -1},
		listings: map[string]sites.ListingResult{
			"https://shop.example.com/list": {
				Partials:    []*product.Partial{partialFor("1", "https://shop.example.com/p/1")},
				NextPageURL: "https://shop.example.com/list?page=2",
			},
		},
	}

	fetcher := &mockFetcher{FetchFn: func(_ context.Context, url string) (string, error) {
		return "body", nil
	}}
	out := &memorySink{}

	report := crawl.Run(context.Background(), site, crawl.Options{
		Fetcher:       fetcher,
		Sinks:         []sink.Sink{out},
		MaxExtraPages: capPages(0), // override: first page only
	})

	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.Pages)
	for _, u := range fetcher.urls() {
		assert.NotContains(t, u, "page=2")
	}
}

func TestRunDefaultKeepsSitePageBudget(t *testing.T) {
	t.Parallel()

	// The site's own budget is first page only; an Options value that leaves
	// MaxExtraPages unset must not override it.
	site := &fakeSite{
		name:  "fake",
		seeds: []string{"https://shop.example.com/list"},
		pag:   sites.Pagination{Mode: sites.ModeAffordance, MaxExtraPages: 0},
		listings: map[string]sites.ListingResult{
			"https://shop.example.com/list": {
				Partials:    []*product.Partial{partialFor("1", "https://shop.example.com/p/1")},
				NextPageURL: "https://shop.example.com/list?page=2",
			},
		},
	}

	fetcher := &mockFetcher{FetchFn: func(_ context.Context, url string) (string, error) {
		return "body", nil
	}}
	out := &memorySink{}

	report := crawl.Run(context.Background(), site, crawl.Options{
		Fetcher: fetcher,
		Sinks:   []sink.Sink{out},
	})

	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.Pages)
	for _, u := range fetcher.urls() {
		assert.NotContains(t, u, "page=2")
	}
}

func TestRunSinkErrorAbortsRun(t *testing.T) {
	t.Parallel()

	site := &fakeSite{
		name:  "fake",
		seeds: []string{"https://shop.example.com/list"},
		pag:   sites.Pagination{Mode: sites.ModeAffordance, MaxExtraPages: 0},
		listings: map[string]sites.ListingResult{
			"https://shop.example.com/list": {
				Partials: []*product.Partial{
					partialFor("1", "https://shop.example.com/p/1"),
					partialFor("2", "https://shop.example.com/p/2"),
				},
			},
		},
	}

	fetcher := &mockFetcher{FetchFn: func(_ context.Context, url string) (string, error) {
		return "body", nil
	}}
	out := &memorySink{writeFn: func(rec *product.Record) error {
		return fmt.Errorf("disk full")
	}}

	report := crawl.Run(context.Background(), site, crawl.Options{
		Fetcher: fetcher,
		Sinks:   []sink.Sink{out},
	})

	require.Error(t, report.Err)
	assert.Equal(t, 0, report.Written)
}

func TestRunSinkErrorStopsFetching(t *testing.T) {
	t.Parallel()

	site := &fakeSite{
		name:  "fake",
		seeds: []string{"https://shop.example.com/list"},
		pag:   sites.Pagination{Mode: sites.ModeAffordance, MaxExtraPages: -1},
		listings: map[string]sites.ListingResult{
			"https://shop.example.com/list": {
				Partials:    []*product.Partial{partialFor("1", "https://shop.example.com/p/1")},
				NextPageURL: "https://shop.example.com/list?page=2",
			},
			"https://shop.example.com/list?page=2": {
				Partials:    []*product.Partial{partialFor("2", "https://shop.example.com/p/2")},
				NextPageURL: "https://shop.example.com/list?page=3",
			},
			"https://shop.example.com/list?page=3": {
				Partials: []*product.Partial{partialFor("3", "https://shop.example.com/p/3")},
			},
		},
	}

	// The second listing fetch completes only once the run context has been
	// canceled, so the sink failure is guaranteed to land before pagination
	// can continue.
	fetcher := &mockFetcher{FetchFn: func(ctx context.Context, url string) (string, error) {
		if url == "https://shop.example.com/list?page=2" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "body", nil
	}}
	out := &memorySink{writeFn: func(*product.Record) error {
		return errors.New("disk full")
	}}

	report := crawl.Run(context.Background(), site, crawl.Options{
		Fetcher:       fetcher,
		Sinks:         []sink.Sink{out},
		DetailWorkers: 1,
	})

	require.Error(t, report.Err)
	assert.Equal(t, 0, report.Written)
	for _, u := range fetcher.urls() {
		assert.NotContains(t, u, "page=3", "no listing fetch after the sink failed")
		assert.NotEqual(t, "https://shop.example.com/p/2", u, "no detail fetch after the sink failed")
		assert.NotEqual(t, "https://shop.example.com/p/3", u, "no detail fetch after the sink failed")
	}
}

func TestRunAllPreservesOrderAndIsolatesSites(t *testing.T) {
	t.Parallel()

	good := &fakeSite{
		name:  "good",
		seeds: []string{"https://good.example.com/list"},
		pag:   sites.Pagination{Mode: sites.ModeAffordance, MaxExtraPages: 0},
		listings: map[string]sites.ListingResult{
			"https://good.example.com/list": {
				Partials: []*product.Partial{partialFor("1", "https://good.example.com/p/1")},
			},
		},
	}
	bad := &fakeSite{
		name:     "bad",
		seeds:    []string{"https://bad.example.com/list"},
		pag:      sites.Pagination{Mode: sites.ModeAffordance, MaxExtraPages: 0},
		listings: map[string]sites.ListingResult{},
	}

	fetcher := &mockFetcher{FetchFn: func(_ context.Context, url string) (string, error) {
		if url == "https://bad.example.com/list" {
			return "", errors.New("timeout")
		}
		return "body", nil
	}}

	sinksBySite := map[string]*memorySink{}
	var mu sync.Mutex
	mkSinks := func(name string) ([]sink.Sink, error) {
		s := &memorySink{}
		mu.Lock()
		sinksBySite[name] = s
		mu.Unlock()
		return []sink.Sink{s}, nil
	}

	reports := crawl.RunAll(context.Background(), []sites.Extractor{bad, good}, mkSinks, 2, crawl.Options{
		Fetcher: fetcher,
	})

	require.Len(t, reports, 2)
	assert.Equal(t, "bad", reports[0].Site)
	assert.Equal(t, "good", reports[1].Site)

	assert.Equal(t, 0, reports[0].Written, "one site's failure does not block another")
	assert.Equal(t, 1, reports[1].Written)

	assert.True(t, sinksBySite["good"].opened)
	assert.True(t, sinksBySite["good"].closed)
}

// Package sites defines the per-site extractor contract and the registry the
// crawl orchestrator selects extractors from.
package sites

import (
	"context"
	"net/url"

	"shopcrawl/internal/product"
	"shopcrawl/internal/translate"
)

// ListingResult is what a listing-page extraction yields: one partial record
// per decipherable product tile, the next-page affordance embedded in the page
// (if the site exposes one), and the number of tiles skipped as unparsable.
type ListingResult struct {
	Partials    []*product.Partial
	NextPageURL string
	Skipped     int
}

// Extractor is implemented once per site. Listing extraction fails
// permissively: a tile with undecipherable structure is skipped and counted,
// never fatal for the page. Detail extraction merges into the carried
// partial and must not overwrite a non-empty carried field with an empty one.
type Extractor interface {
	Name() string
	Seeds() []string
	Pagination() Pagination
	ExtractListing(body, pageURL string) (ListingResult, error)
	ExtractDetail(ctx context.Context, body string, partial *product.Partial) (*product.Record, error)
}

// TranslatorAware is implemented by extractors that translate extracted text.
// Main wires the configured translator into them after registration.
type TranslatorAware interface {
	SetTranslator(t translate.Translator)
}

// ResolveURL resolves href against base. On any parse failure the href is
// returned as-is.
func ResolveURL(base, href string) string {
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}

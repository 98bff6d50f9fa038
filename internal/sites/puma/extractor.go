// Package puma extracts product records from the Puma EU storefront. Listing
// tiles carry an analytics JSON attribute with most listing-view fields; the
// detail page supplies the description, the swatch-based size list, and the
// brand from a JSON-LD block.
package puma

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"shopcrawl/internal/normalize"
	"shopcrawl/internal/product"
	"shopcrawl/internal/sites"
)

const (
	siteName = "puma"

	// BrandNotFound is the degrade value when the JSON-LD block is absent or
	// malformed.
	BrandNotFound = "Brand not found"
)

var log = logrus.WithField("site", siteName)

func init() {
	sites.Register(New())
}

// Extractor implements sites.Extractor for the Puma storefront.
type Extractor struct{}

// New creates a Puma extractor.
func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Name() string { return siteName }

func (e *Extractor) Seeds() []string {
	return []string{"https://eu.puma.com/de/en/men/shoes"}
}

// Pagination follows the load-more affordance embedded in the listing page.
// The default cap of zero preserves the source behavior of fetching the first
// page only; a positive cap re-enables follow-up fetches.
func (e *Extractor) Pagination() sites.Pagination {
	return sites.Pagination{Mode: sites.ModeAffordance, MaxExtraPages: 0}
}

// tileAnalytics mirrors the data-puma-analytics attribute JSON.
type tileAnalytics struct {
	Products []struct {
		ProductID       string `json:"productID"`
		LocalName       string `json:"localName"`
		Price           any    `json:"price"`
		ListPrice       any    `json:"listPrice"`
		InStock         any    `json:"inStock"`
		ImageURL        any    `json:"imageURL"`
		ColorName       string `json:"colorName"`
		ProductCategory string `json:"productCategory"`
		Category        string `json:"category"`
	} `json:"products"`
}

// ExtractListing parses every product tile on the page. Tiles with missing or
// malformed analytics JSON are skipped and counted, never fatal for the page.
func (e *Extractor) ExtractListing(body, pageURL string) (sites.ListingResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return sites.ListingResult{}, fmt.Errorf("failed to parse listing page: %w", err)
	}

	var res sites.ListingResult
	doc.Find("div.grid-tile").Each(func(_ int, tile *goquery.Selection) {
		raw, ok := tile.Attr("data-puma-analytics")
		if !ok {
			raw = tile.Find("[data-puma-analytics]").First().AttrOr("data-puma-analytics", "")
		}
		if raw == "" {
			res.Skipped++
			log.Warn("tile has no analytics data, skipping")
			return
		}

		var data tileAnalytics
		if err := json.Unmarshal([]byte(raw), &data); err != nil || len(data.Products) == 0 {
			res.Skipped++
			log.WithError(err).Warn("failed to decode tile analytics JSON, skipping")
			return
		}

		detailURL := sites.ResolveURL(pageURL, tile.Find("a.product-tile-image-link").AttrOr("href", ""))
		if detailURL == "" {
			res.Skipped++
			log.Warn("tile has no detail link, skipping")
			return
		}

		p := data.Products[0]
		res.Partials = append(res.Partials, &product.Partial{
			ProductID:     p.ProductID,
			Title:         stringOr(p.LocalName, "No title"),
			CurrentPrice:  normalize.PriceFrom(p.Price),
			OriginalPrice: normalize.PriceFrom(p.ListPrice),
			Availability:  availability(p.InStock),
			ImageURLs:     imageURLs(p.ImageURL),
			Colors:        stringOr(p.ColorName, "Unknown"),
			CategoryPath:  normalize.JoinCategory([]string{p.ProductCategory, p.Category}),
			URL:           detailURL,
			DetailURL:     detailURL,
		})
	})

	res.NextPageURL = sites.ResolveURL(pageURL, doc.Find("p.loading-bar[data-js-load-more]").AttrOr("data-url", ""))
	return res, nil
}

// ExtractDetail completes the carried partial with the description, the
// normalized size list, and the brand. Carried non-empty fields are kept.
func (e *Extractor) ExtractDetail(_ context.Context, body string, partial *product.Partial) (*product.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse detail page: %w", err)
	}

	rec := partial.Complete()

	if desc := strings.TrimSpace(doc.Find(`div[itemprop="description"] p:first-of-type`).First().Text()); desc != "" {
		rec.Description = desc
	}

	rec.Sizes = normalize.SizeList(extractSizes(doc))

	if rec.Brand == "" {
		rec.Brand = extractBrand(doc)
	}

	return rec, nil
}

// extractSizes reads the variant swatches embedded as JSON fragments. A
// swatch contributes its label unless it carries an explicit unavailable
// signal; an absent availability flag means available.
func extractSizes(doc *goquery.Document) []string {
	var sizes []string
	doc.Find("div.attributes-container [data-component-options]").Each(func(_ int, sel *goquery.Selection) {
		raw := sel.AttrOr("data-component-options", "")
		var opts struct {
			Swatches []map[string]any `json:"swatches"`
		}
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			log.WithError(err).Warn("failed to decode swatch JSON, skipping variant")
			return
		}
		for _, sw := range opts.Swatches {
			label, ok := sw["label"].(string)
			if !ok || label == "" {
				continue
			}
			if flag, present := sw["available"]; !present || truthy(flag) {
				sizes = append(sizes, label)
			}
		}
	})
	return sizes
}

// extractBrand reads the brand from the page's JSON-LD structured data,
// degrading to BrandNotFound when the block is absent or malformed.
func extractBrand(doc *goquery.Document) string {
	raw := strings.TrimSpace(doc.Find(`script[type="application/ld+json"]`).First().Text())
	if raw == "" {
		return BrandNotFound
	}

	var ld struct {
		Brand any `json:"brand"`
	}
	if err := json.Unmarshal([]byte(raw), &ld); err != nil {
		log.WithError(err).Error("failed to decode JSON-LD data")
		return BrandNotFound
	}

	switch b := ld.Brand.(type) {
	case string:
		if b != "" {
			return b
		}
	case map[string]any:
		if name, ok := b["name"].(string); ok && name != "" {
			return name
		}
	}
	return BrandNotFound
}

func stringOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// availability renders the boolean-ish inStock flag as the site's vocabulary.
func availability(v any) string {
	if v == nil {
		return "false"
	}
	return fmt.Sprint(v)
}

// imageURLs tolerates the imageURL field being a single string or a list.
func imageURLs(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, u := range t {
			if s, ok := u.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// truthy mirrors the loose truthiness of the source markup's flag values.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && t != "0" && t != "false"
	case nil:
		return false
	default:
		return true
	}
}

// Package saintlaurent extracts product records from the Saint Laurent
// storefront. Listing tiles carry a GTM product JSON attribute; the detail
// page supplies carousel images, the full description (translated from
// Spanish), and the size options. Pagination is offset-based against a
// canonical grid URL.
package saintlaurent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"shopcrawl/internal/normalize"
	"shopcrawl/internal/observability"
	"shopcrawl/internal/product"
	"shopcrawl/internal/sites"
	"shopcrawl/internal/translate"
)

const (
	siteName = "saintlaurent"

	gridURLTemplate = "https://www.ysl.com/on/demandware.store/Sites-SLP-WEUR-Site/es_ES/Search-UpdateGrid?cgid=sneakers-men&start=%d&sz=12"
	gridPageSize    = 12

	// imagePlaceholderMarker flags carousel entries that are lazy-load
	// placeholders, not product images.
	imagePlaceholderMarker = "placeholder"
)

var log = logrus.WithField("site", siteName)

func init() {
	sites.Register(New(translate.Noop{}))
}

// Extractor implements sites.Extractor for the Saint Laurent storefront.
type Extractor struct {
	translator translate.Translator
	converter  *md.Converter
}

// New creates a Saint Laurent extractor using the given description
// translator.
func New(t translate.Translator) *Extractor {
	return &Extractor{
		translator: t,
		converter:  md.NewConverter("", true, nil),
	}
}

func (e *Extractor) Name() string { return siteName }

// SetTranslator swaps the description translator. Main calls this once the
// configured translation backend is known.
func (e *Extractor) SetTranslator(t translate.Translator) {
	e.translator = t
}

func (e *Extractor) Seeds() []string {
	return []string{"https://www.ysl.com/es-es/comprar-art%C3%ADculos-de-hombre/zapatos/sneakers"}
}

// Pagination requests the canonical grid URL at increasing offsets until a
// page yields no products.
func (e *Extractor) Pagination() sites.Pagination {
	return sites.Pagination{
		Mode:          sites.ModeOffset,
		URLTemplate:   gridURLTemplate,
		PageSize:      gridPageSize,
		MaxExtraPages: -1,
	}
}

// gtmProduct mirrors the data-gtmproduct attribute JSON.
type gtmProduct struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Brand         string `json:"brand"`
	Price         any    `json:"price"`
	DiscountPrice any    `json:"discountPrice"`
	Stock         any    `json:"stock"`
	Color         string `json:"color"`
	TopCategory   string `json:"topCategory"`
	Category      string `json:"category"`
	SubCategory   string `json:"subCategory"`
}

// ExtractListing parses every product tile on the page. Tiles with missing or
// malformed GTM JSON are skipped and counted, never fatal for the page.
func (e *Extractor) ExtractListing(body, pageURL string) (sites.ListingResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return sites.ListingResult{}, fmt.Errorf("failed to parse listing page: %w", err)
	}

	var res sites.ListingResult
	doc.Find("article.c-product").Each(func(_ int, tile *goquery.Selection) {
		raw := tile.AttrOr("data-gtmproduct", "")
		if raw == "" {
			res.Skipped++
			log.Warn("tile has no gtm product data, skipping")
			return
		}

		var data gtmProduct
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			res.Skipped++
			log.WithError(err).Warn("failed to decode gtm product JSON, skipping")
			return
		}

		detailURL := sites.ResolveURL(pageURL, tile.Find("a.c-product__link").AttrOr("href", ""))
		if detailURL == "" {
			res.Skipped++
			log.Warn("tile has no detail link, skipping")
			return
		}

		res.Partials = append(res.Partials, &product.Partial{
			ProductID:     data.ID,
			Title:         data.Name,
			Brand:         data.Brand,
			CurrentPrice:  normalize.PriceFrom(data.DiscountPrice),
			OriginalPrice: normalize.PriceFrom(data.Price),
			Availability:  stringify(data.Stock),
			Colors:        data.Color,
			CategoryPath:  normalize.JoinCategory([]string{data.TopCategory, data.Category, data.SubCategory}),
			URL:           detailURL,
			DetailURL:     detailURL,
		})
	})

	return res, nil
}

// ExtractDetail completes the carried partial with the carousel images, the
// translated description, and the size list. Translation failures degrade to
// the source-language text.
func (e *Extractor) ExtractDetail(ctx context.Context, body string, partial *product.Partial) (*product.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse detail page: %w", err)
	}

	rec := partial.Complete()

	if images := e.extractImages(doc); len(images) > 0 {
		rec.ImageURLs = normalize.DedupeURLs(append(rec.ImageURLs, images...), imagePlaceholderMarker)
	}

	if desc := e.extractDescription(doc); desc != "" {
		translated, err := e.translator.Translate(ctx, desc, "es", "en")
		if err != nil {
			observability.TranslationFailures.Inc()
			log.WithError(err).Error("translation failed, keeping source-language description")
			translated = desc
		}
		rec.Description = translated
	}

	rec.Sizes = normalize.SizeList(extractSizes(doc))

	return rec, nil
}

// extractImages collects carousel image URLs from both the src and the
// lazy-load data-src attributes.
func (e *Extractor) extractImages(doc *goquery.Document) []string {
	var urls []string
	doc.Find("div.c-productcarousel li.c-productcarousel__slide img").Each(func(_ int, img *goquery.Selection) {
		if src := img.AttrOr("src", ""); src != "" {
			urls = append(urls, src)
		}
		if src := img.AttrOr("data-src", ""); src != "" {
			urls = append(urls, src)
		}
	})
	return urls
}

// extractDescription joins the long-description paragraph with the details
// list into a single whitespace-collapsed string. The paragraph's markup is
// stripped through the markdown converter.
func (e *Extractor) extractDescription(doc *goquery.Document) string {
	var parts []string

	if longdesc := doc.Find("p.c-product__longdesc").First(); longdesc.Length() > 0 {
		text := longdesc.Text()
		if html, err := goquery.OuterHtml(longdesc); err == nil {
			if converted, err := e.converter.ConvertString(html); err == nil {
				text = converted
			}
		}
		parts = append(parts, text)
	}

	doc.Find("ul.c-product__detailslist li").Each(func(_ int, li *goquery.Selection) {
		parts = append(parts, li.Text())
	})

	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// extractSizes reads the listbox size options, excluding the RESET entry.
func extractSizes(doc *goquery.Document) []string {
	var sizes []string
	doc.Find(`div[data-ref="listbox"] div[role="option"][data-attr-value]:not([data-attr-value="RESET"])`).
		Each(func(_ int, opt *goquery.Selection) {
			if v := opt.AttrOr("data-attr-value", ""); v != "" {
				sizes = append(sizes, v)
			}
		})
	return sizes
}

// stringify preserves the site's availability vocabulary whether the value
// arrives as a string, a number, or a boolean.
func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

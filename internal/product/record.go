// Package product defines the canonical record produced by a crawl run and
// the partial carrier that travels from a listing page to its detail page.
package product

import "shopcrawl/internal/normalize"

// Record is the canonical unit of output. Every field is assigned before the
// record is handed to a sink, even if some normalize to "unknown" or empty.
type Record struct {
	ProductID     string          `json:"product_id"`
	Title         string          `json:"title"`
	Brand         string          `json:"brand"`
	Description   string          `json:"description"`
	CurrentPrice  normalize.Price `json:"current_price"`
	OriginalPrice normalize.Price `json:"original_price"`
	Availability  string          `json:"availability"`
	ImageURLs     []string        `json:"image_urls"`
	Colors        string          `json:"colors"`
	Sizes         []string        `json:"sizes"`
	CategoryPath  string          `json:"category_path"`
	URL           string          `json:"url"`
}

// Partial holds the fields derivable from the listing view plus the detail
// page URL to visit. It is owned by exactly one in-flight detail fetch and
// consumed exactly once to produce a Record.
type Partial struct {
	ProductID     string
	Title         string
	Brand         string
	CurrentPrice  normalize.Price
	OriginalPrice normalize.Price
	Availability  string
	ImageURLs     []string
	Colors        string
	CategoryPath  string
	URL           string
	DetailURL     string
}

// Complete copies the carried fields into a fresh Record for the detail
// extractor to finish. The partial is discarded after this point.
func (p *Partial) Complete() *Record {
	return &Record{
		ProductID:     p.ProductID,
		Title:         p.Title,
		Brand:         p.Brand,
		CurrentPrice:  p.CurrentPrice,
		OriginalPrice: p.OriginalPrice,
		Availability:  p.Availability,
		ImageURLs:     append([]string(nil), p.ImageURLs...),
		Colors:        p.Colors,
		CategoryPath:  p.CategoryPath,
		URL:           p.URL,
	}
}

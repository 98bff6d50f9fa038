// Package sink persists the stream of completed records. Every sink accepts
// records in the order received, writes each exactly once, and flushes per
// write so a concurrent reader sees monotonic progress.
package sink

import (
	"strings"

	"shopcrawl/internal/product"
)

// Separators used to flatten multi-valued fields into single cells.
const (
	ImageSeparator = "; "
	SizeSeparator  = ", "
)

// Header is the fixed column order shared by the tabular sink and the query
// facade's loader.
var Header = []string{
	"product_id", "title", "brand", "description", "current_price",
	"original_price", "availability", "image_urls", "colors", "sizes",
	"category_path", "url",
}

// Sink is a durable output destination for completed records. Open is called
// once at run start and Close once at run end; Write calls are serialized by
// the orchestrator.
type Sink interface {
	Open() error
	Write(rec *product.Record) error
	Close() error
}

// Row flattens a record into the Header column order.
func Row(rec *product.Record) []string {
	return []string{
		rec.ProductID,
		rec.Title,
		rec.Brand,
		rec.Description,
		rec.CurrentPrice.String(),
		rec.OriginalPrice.String(),
		rec.Availability,
		strings.Join(rec.ImageURLs, ImageSeparator),
		rec.Colors,
		strings.Join(rec.Sizes, SizeSeparator),
		rec.CategoryPath,
		rec.URL,
	}
}

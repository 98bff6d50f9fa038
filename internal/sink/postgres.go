package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"shopcrawl/internal/normalize"
	"shopcrawl/internal/product"
)

const productsSchema = `
CREATE TABLE IF NOT EXISTS products (
	run_id         TEXT        NOT NULL,
	site           TEXT        NOT NULL,
	product_id     TEXT        NOT NULL,
	title          TEXT        NOT NULL DEFAULT '',
	brand          TEXT        NOT NULL DEFAULT '',
	description    TEXT        NOT NULL DEFAULT '',
	current_price  NUMERIC,
	original_price NUMERIC,
	availability   TEXT        NOT NULL DEFAULT '',
	image_urls     TEXT        NOT NULL DEFAULT '',
	colors         TEXT        NOT NULL DEFAULT '',
	sizes          TEXT        NOT NULL DEFAULT '',
	category_path  TEXT        NOT NULL DEFAULT '',
	url            TEXT        NOT NULL,
	scraped_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (product_id, url)
)`

const upsertProduct = `
INSERT INTO products (
	run_id, site, product_id, title, brand, description,
	current_price, original_price, availability, image_urls,
	colors, sizes, category_path, url
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (product_id, url) DO UPDATE SET
	run_id         = EXCLUDED.run_id,
	title          = EXCLUDED.title,
	brand          = EXCLUDED.brand,
	description    = EXCLUDED.description,
	current_price  = EXCLUDED.current_price,
	original_price = EXCLUDED.original_price,
	availability   = EXCLUDED.availability,
	image_urls     = EXCLUDED.image_urls,
	colors         = EXCLUDED.colors,
	sizes          = EXCLUDED.sizes,
	category_path  = EXCLUDED.category_path,
	scraped_at     = now()`

// PostgresSink upserts each record into a products table, keyed by
// product_id and url. Unknown prices are stored as NULL, never zero.
type PostgresSink struct {
	dsn   string
	site  string
	runID string
	db    *sql.DB
}

// NewPostgres creates a Postgres sink; the connection is opened by Open.
func NewPostgres(dsn, site, runID string) *PostgresSink {
	return &PostgresSink{dsn: dsn, site: site, runID: runID}
}

// Open connects, verifies the connection, and ensures the schema exists.
func (s *PostgresSink) Open() error {
	db, err := sql.Open("pgx", s.dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(5)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, productsSchema); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ensure products schema: %w", err)
	}

	s.db = db
	return nil
}

// Write upserts one record.
func (s *PostgresSink) Write(rec *product.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, upsertProduct,
		s.runID,
		s.site,
		rec.ProductID,
		rec.Title,
		rec.Brand,
		rec.Description,
		nullablePrice(rec.CurrentPrice),
		nullablePrice(rec.OriginalPrice),
		rec.Availability,
		strings.Join(rec.ImageURLs, ImageSeparator),
		rec.Colors,
		strings.Join(rec.Sizes, SizeSeparator),
		rec.CategoryPath,
		rec.URL,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", rec.ProductID, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresSink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullablePrice(p normalize.Price) sql.NullFloat64 {
	return sql.NullFloat64{Float64: p.Value, Valid: p.Known}
}

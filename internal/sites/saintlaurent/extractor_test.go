package saintlaurent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopcrawl/internal/normalize"
	"shopcrawl/internal/product"
	"shopcrawl/internal/sites/saintlaurent"
	"shopcrawl/internal/translate"
)

// mockTranslator is a function-field mock of translate.Translator.
type mockTranslator struct {
	TranslateFn func(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

func (m *mockTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return m.TranslateFn(ctx, text, sourceLang, targetLang)
}

const listingPage = `<html><body>
<article class="c-product" data-gtmproduct='{"id":"757745","name":"SL/61 sneakers","brand":"Saint Laurent","price":745,"discountPrice":595,"stock":"in stock","color":"Black","topCategory":"Men","category":"Shoes","subCategory":"Sneakers"}'>
  <a class="c-product__link" href="/es-es/p/sl-61-757745.html"></a>
</article>
<article class="c-product" data-gtmproduct='{"id":"757746",'>
  <a class="c-product__link" href="/es-es/p/broken.html"></a>
</article>
<article class="c-product">
  <a class="c-product__link" href="/es-es/p/no-data.html"></a>
</article>
</body></html>`

func TestExtractListing(t *testing.T) {
	t.Parallel()

	e := saintlaurent.New(translate.Noop{})
	res, err := e.ExtractListing(listingPage, "https://www.ysl.com/es-es/sneakers")
	require.NoError(t, err)

	require.Len(t, res.Partials, 1)
	assert.Equal(t, 2, res.Skipped)
	assert.Empty(t, res.NextPageURL, "offset-based site exposes no affordance")

	p := res.Partials[0]
	assert.Equal(t, "757745", p.ProductID)
	assert.Equal(t, "SL/61 sneakers", p.Title)
	assert.Equal(t, "Saint Laurent", p.Brand)
	assert.Equal(t, normalize.KnownPrice(595), p.CurrentPrice)
	assert.Equal(t, normalize.KnownPrice(745), p.OriginalPrice)
	assert.Equal(t, "in stock", p.Availability)
	assert.Equal(t, "Black", p.Colors)
	assert.Equal(t, "Men > Shoes > Sneakers", p.CategoryPath)
	assert.Equal(t, "https://www.ysl.com/es-es/p/sl-61-757745.html", p.DetailURL)
}

func TestExtractListingNullPriceIsUnknown(t *testing.T) {
	t.Parallel()

	body := `<html><body>
<article class="c-product" data-gtmproduct='{"id":"1","name":"X","price":null,"discountPrice":null}'>
  <a class="c-product__link" href="/es-es/p/x.html"></a>
</article>
</body></html>`

	e := saintlaurent.New(translate.Noop{})
	res, err := e.ExtractListing(body, "https://www.ysl.com/es-es/sneakers")
	require.NoError(t, err)
	require.Len(t, res.Partials, 1)

	assert.False(t, res.Partials[0].OriginalPrice.Known)
	assert.False(t, res.Partials[0].CurrentPrice.Known)
	assert.Equal(t, "unknown", res.Partials[0].OriginalPrice.String())
}

const detailPage = `<html><body>
<div class="c-productcarousel">
  <ul>
    <li class="c-productcarousel__slide"><img src="https://img.ysl.com/757745_a.jpg" data-src="https://img.ysl.com/757745_a.jpg"></li>
    <li class="c-productcarousel__slide"><img src="https://img.ysl.com/image-placeholder.jpg" data-src="https://img.ysl.com/757745_b.jpg"></li>
  </ul>
</div>
<p class="c-product__longdesc">Zapatillas  de piel
con cordones.</p>
<ul class="c-product__detailslist">
  <li>Suela de goma</li>
  <li>Fabricado en Italia</li>
</ul>
<div data-ref="listbox">
  <div role="option" data-attr-value="RESET">Talla</div>
  <div role="option" data-attr-value="40">40</div>
  <div role="option" data-attr-value="40_5">40.5</div>
  <div role="option" data-attr-value="41">41</div>
</div>
</body></html>`

func TestExtractDetail(t *testing.T) {
	t.Parallel()

	tr := &mockTranslator{
		TranslateFn: func(_ context.Context, text, sourceLang, targetLang string) (string, error) {
			require.Equal(t, "es", sourceLang)
			require.Equal(t, "en", targetLang)
			return "Leather sneakers with laces. Rubber sole. Made in Italy.", nil
		},
	}
	e := saintlaurent.New(tr)

	partial := &product.Partial{
		ProductID: "757745",
		Title:     "SL/61 sneakers",
		Brand:     "Saint Laurent",
		URL:       "https://www.ysl.com/es-es/p/sl-61-757745.html",
		DetailURL: "https://www.ysl.com/es-es/p/sl-61-757745.html",
	}

	rec, err := e.ExtractDetail(context.Background(), detailPage, partial)
	require.NoError(t, err)

	t.Run("deduplicates images and drops placeholders, first-seen order", func(t *testing.T) {
		assert.Equal(t, []string{
			"https://img.ysl.com/757745_a.jpg",
			"https://img.ysl.com/757745_b.jpg",
		}, rec.ImageURLs)
	})

	t.Run("uses the translated description", func(t *testing.T) {
		assert.Equal(t, "Leather sneakers with laces. Rubber sole. Made in Italy.", rec.Description)
	})

	t.Run("extracts sizes excluding RESET and normalizes the separator", func(t *testing.T) {
		assert.Equal(t, []string{"40", "40.5", "41"}, rec.Sizes)
	})

	t.Run("keeps the carried listing-view fields", func(t *testing.T) {
		assert.Equal(t, "SL/61 sneakers", rec.Title)
		assert.Equal(t, "Saint Laurent", rec.Brand)
	})
}

func TestExtractDetailTranslationFailureKeepsOriginal(t *testing.T) {
	t.Parallel()

	tr := &mockTranslator{
		TranslateFn: func(_ context.Context, _, _, _ string) (string, error) {
			return "", errors.New("translation service unavailable")
		},
	}
	e := saintlaurent.New(tr)

	rec, err := e.ExtractDetail(context.Background(), detailPage, &product.Partial{Title: "SL/61 sneakers"})
	require.NoError(t, err)

	assert.Equal(t, "Zapatillas de piel con cordones. Suela de goma Fabricado en Italia", rec.Description)
}

func TestPaginationIsOffsetBased(t *testing.T) {
	t.Parallel()

	p := saintlaurent.New(translate.Noop{}).Pagination()

	next, ok := p.Next(1, 12, "")
	require.True(t, ok)
	assert.Equal(t,
		"https://www.ysl.com/on/demandware.store/Sites-SLP-WEUR-Site/es_ES/Search-UpdateGrid?cgid=sneakers-men&start=12&sz=12",
		next)

	_, ok = p.Next(2, 0, "")
	assert.False(t, ok)
}

package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPage = `<html><head><title>Widget A | resi.store</title></head><body>
<div class="container">
  <img class="img-fluid" src="/media/widget-a.png">
  <h2>Widget A</h2>
  <small>SKU: WA-100</small>
  <p><b>$12.50</b></p>
  <span class="badge butterfly-green">In stock</span>
  <h4>Description</h4>
  <p>A small widget.</p>
  <h4>Documentation</h4>
  <ul><li>Datasheet</li></ul>
  <h4>Location</h4>
  <p>Box 7</p>
  <p>C-3</p>
</div></body></html>`

func TestParseProduct(t *testing.T) {
	p := NewResistoreParser()

	record, err := p.ParseProduct(Page{URL: "https://resi.store/products/42/", Markup: productPage})
	require.NoError(t, err)

	assert.Equal(t, 42, record.ID)
	assert.Equal(t, "Widget A", record.Name)
	assert.Equal(t, "WA-100", record.SKU)
	assert.Equal(t, 12.5, record.Price)
	require.NotNil(t, record.InStock)
	assert.True(t, *record.InStock)
	assert.Equal(t, "A small widget.", record.Description)
	assert.Equal(t, "Datasheet", record.Documentation)
	assert.Equal(t, "Box 7", record.Location.Box)
	assert.Equal(t, "C-3", record.Location.Coord)
	assert.Empty(t, record.Validate())
}

func TestParseProductStockStates(t *testing.T) {
	tests := []struct {
		name     string
		replace  string
		expected *bool
	}{
		{"in stock", `<span class="badge butterfly-green">In stock</span>`, boolPtr(true)},
		{"out of stock", `<span class="badge red">Out of stock</span>`, boolPtr(false)},
		{"unknown", ``, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markup := strings.Replace(productPage, `<span class="badge butterfly-green">In stock</span>`, tt.replace, 1)
			record, err := NewResistoreParser().ParseProduct(Page{URL: "https://resi.store/products/1", Markup: markup})
			require.NoError(t, err)

			if tt.expected == nil {
				assert.Nil(t, record.InStock)
				assert.False(t, record.StockKnown())
				return
			}
			require.NotNil(t, record.InStock)
			assert.Equal(t, *tt.expected, *record.InStock)
		})
	}
}

func TestParseProductMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		remove string
		field  string
	}{
		{"name", "<h2>Widget A</h2>", "name"},
		{"sku", "<small>SKU: WA-100</small>", "sku"},
		{"price", "<p><b>$12.50</b></p>", "price"},
		{"description header", "<h4>Description</h4>", "description"},
		{"documentation list", "<ul><li>Datasheet</li></ul>", "documentation"},
		{"location coord", "<p>C-3</p>", "location_coord"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markup := strings.Replace(productPage, tt.remove, "", 1)
			record, err := NewResistoreParser().ParseProduct(Page{URL: "https://resi.store/products/1", Markup: markup})
			require.Error(t, err)
			assert.Nil(t, record)

			var extractionErr *ExtractionError
			require.True(t, errors.As(err, &extractionErr))
			assert.Equal(t, tt.field, extractionErr.Field)
		})
	}
}

func TestParseProductInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		markup string
		field  string
	}{
		{"non numeric id", "https://resi.store/products/abc", productPage, "id"},
		{"empty name", "https://resi.store/products/1", strings.Replace(productPage, "<h2>Widget A</h2>", "<h2>  </h2>", 1), "name"},
		{"unparsable price", "https://resi.store/products/1", strings.Replace(productPage, "$12.50", "$call us", 1), "price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResistoreParser().ParseProduct(Page{URL: tt.url, Markup: tt.markup})

			var extractionErr *ExtractionError
			require.True(t, errors.As(err, &extractionErr))
			assert.Equal(t, tt.field, extractionErr.Field)
		})
	}
}

func TestParseProductNotFoundTitle(t *testing.T) {
	markup := `<html><head><title>Page Not Found</title></head><body><h2>Oops</h2></body></html>`

	_, err := NewResistoreParser().ParseProduct(Page{URL: "https://resi.store/products/999", Markup: markup})

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "https://resi.store/products/999", notFound.URL)
}

func TestExtractCustomGrammar(t *testing.T) {
	g := Grammar{
		Rules: []Rule{
			{Field: "title", Selector: "h1.title", Transform: NonEmpty},
			{Field: "cost", Selector: "span", Text: TextMatch{Prefix: "EUR"}, Transform: Float("EUR")},
			{Field: "tag", Selector: "em", Optional: true},
		},
	}

	fields, err := Extract(Page{Markup: `<h1 class="title">Gadget</h1><span>EUR 1,204.00</span>`}, g)
	require.NoError(t, err)
	assert.Equal(t, "Gadget", fields.String("title"))
	assert.Equal(t, 1204.0, fields.Float("cost"))
	_, present := fields["tag"]
	assert.False(t, present)
}

func TestParseProductRejectsIncompleteGrammar(t *testing.T) {
	g := Grammar{Rules: []Rule{
		{Field: "name", Selector: "h2", Transform: NonEmpty},
		{Field: "price", Selector: "b", Text: TextMatch{Prefix: "$"}, Transform: Float("$")},
	}}

	record, err := NewProductParser(g).ParseProduct(Page{URL: "https://resi.store/products/1", Markup: productPage})
	assert.Nil(t, record)

	var extractionErr *ExtractionError
	require.True(t, errors.As(err, &extractionErr))
	assert.Equal(t, "record", extractionErr.Field)
	assert.Contains(t, err.Error(), "ID is required")
}

func TestTransforms(t *testing.T) {
	v, err := Float("$")(" $ 45.00 ")
	require.NoError(t, err)
	assert.Equal(t, 45.0, v)

	_, err = Float("$")("$-3")
	assert.Error(t, err)

	_, err = Int("0")
	assert.Error(t, err)

	v, err = TrimPrefix("SKU:")("SKU:  X-1")
	require.NoError(t, err)
	assert.Equal(t, "X-1", v)
}

func TestLastPathSegment(t *testing.T) {
	assert.Equal(t, "42", lastPathSegment("https://resi.store/products/42/"))
	assert.Equal(t, "42", lastPathSegment("https://resi.store/products/42?x=1"))
	assert.Equal(t, "", lastPathSegment("https://resi.store/"))
}

func boolPtr(b bool) *bool {
	return &b
}

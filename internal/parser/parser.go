package parser

import (
	"errors"
	"strings"

	"github.com/stevencaiOR/resistore-quart-api/internal/models"
)

type Parser interface {
	ParseProduct(page Page) (*models.ProductRecord, error)
}

// ProductGrammar describes a resi.store product detail page.
var ProductGrammar = Grammar{
	Name:          "resistore-product",
	NotFoundTitle: "not found",
	Rules: []Rule{
		{Field: "id", FromURL: true, Transform: Int},
		{Field: "name", Selector: "h2", Transform: NonEmpty},
		{Field: "sku", Selector: "small", Text: TextMatch{Contains: "SKU:"}, Transform: TrimPrefix("SKU:")},
		{Field: "price", Selector: "b", Text: TextMatch{Prefix: "$"}, Transform: Float("$")},
		{Field: "in_stock", Optional: true, Markers: []Marker{
			{Selector: ".butterfly-green", Value: true},
			{Selector: ".red", Value: false},
		}},
		{Field: "description", Selector: "h4", Text: TextMatch{Equals: "Description"}, Siblings: []string{"p"}},
		{Field: "documentation", Selector: "h4", Text: TextMatch{Equals: "Documentation"}, Siblings: []string{"ul"}},
		{Field: "location_box", Selector: "h4", Text: TextMatch{Equals: "Location"}, Siblings: []string{"p"}},
		{Field: "location_coord", Selector: "h4", Text: TextMatch{Equals: "Location"}, Siblings: []string{"p", "p"}},
	},
}

// ProductParser binds the fields of a grammar into a ProductRecord.
type ProductParser struct {
	grammar Grammar
}

func NewProductParser(g Grammar) *ProductParser {
	return &ProductParser{grammar: g}
}

// NewResistoreParser returns a parser for the live storefront layout.
func NewResistoreParser() *ProductParser {
	return NewProductParser(ProductGrammar)
}

func (p *ProductParser) ParseProduct(page Page) (*models.ProductRecord, error) {
	fields, err := Extract(page, p.grammar)
	if err != nil {
		return nil, err
	}

	record := &models.ProductRecord{
		ID:            fields.Int("id"),
		Name:          fields.String("name"),
		SKU:           fields.String("sku"),
		Price:         fields.Float("price"),
		InStock:       fields.Bool("in_stock"),
		Description:   fields.String("description"),
		Documentation: fields.String("documentation"),
		Location: models.Location{
			Box:   fields.String("location_box"),
			Coord: fields.String("location_coord"),
		},
	}

	// Grammars without an id or name rule still cannot yield a record.
	if problems := record.Validate(); len(problems) > 0 {
		return nil, &ExtractionError{Field: "record", Err: errors.New(strings.Join(problems, "; "))}
	}
	return record, nil
}

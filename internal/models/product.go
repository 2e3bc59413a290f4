package models

// ProductRecord is one product scraped from its canonical detail page.
type ProductRecord struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	SKU           string   `json:"sku"`
	Price         float64  `json:"price"`
	InStock       *bool    `json:"in_stock,omitempty"`
	Description   string   `json:"description"`
	Documentation string   `json:"documentation"`
	Location      Location `json:"location"`
}

type Location struct {
	Box   string `json:"box"`
	Coord string `json:"coord"`
}

// Summary is the projection returned by category queries.
type Summary struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// StockKnown reports whether the detail page carried a stock indicator.
func (p *ProductRecord) StockKnown() bool {
	return p.InStock != nil
}

func (p *ProductRecord) Summary() Summary {
	return Summary{Name: p.Name, Price: p.Price}
}

// Validate returns the required-field problems of a record.
func (p *ProductRecord) Validate() []string {
	var errors []string

	if p.ID <= 0 {
		errors = append(errors, "ID is required")
	}

	if p.Name == "" {
		errors = append(errors, "Name is required")
	}

	if p.Price < 0 {
		errors = append(errors, "Price cannot be negative")
	}

	return errors
}

// Bool returns a pointer to b, for building tri-state stock values.
func Bool(b bool) *bool {
	return &b
}

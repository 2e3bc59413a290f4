package query

import (
	"errors"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/stevencaiOR/resistore-quart-api/internal/models"
)

type SortOrder int

const (
	SortNone SortOrder = iota
	SortPriceAsc
	SortPriceDesc
)

func (o SortOrder) String() string {
	switch o {
	case SortPriceAsc:
		return "price asc"
	case SortPriceDesc:
		return "price desc"
	default:
		return "none"
	}
}

const DefaultLimit = 20

// Filter constrains and orders the records of one category query.
type Filter struct {
	MinPrice float64
	MaxPrice float64
	// InStock nil leaves stock unconstrained.
	InStock *bool
	Sort    SortOrder
	Limit   int
}

func DefaultFilter() Filter {
	return Filter{
		MinPrice: 0,
		MaxPrice: math.Inf(1),
		Sort:     SortNone,
		Limit:    DefaultLimit,
	}
}

var (
	ascendingSorts  = []string{"price asc", "price low", "price low to high"}
	descendingSorts = []string{"price desc", "price dsc", "price high", "price high to low"}
)

// ParseValues reads min_price, max_price, stock, sort and limit. Values that
// do not parse fall back to the defaults instead of failing the request.
func ParseValues(values url.Values) Filter {
	f := DefaultFilter()

	if v, ok := parsePrice(values.Get("min_price")); ok {
		f.MinPrice = v
	}
	if v, ok := parsePrice(values.Get("max_price")); ok {
		f.MaxPrice = v
	}
	f.InStock = ParseStock(values.Get("stock"))
	f.Sort = ParseSort(values.Get("sort"))

	if n, ok := parseLimit(values.Get("limit")); ok {
		f.Limit = n
	}
	return f
}

// parseLimit accepts positive integers; values past the int range mean no limit.
func parseLimit(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if errors.Is(err, strconv.ErrRange) && n > 0 {
		return math.MaxInt, true
	}
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func parsePrice(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ParseStock accepts the usual boolean spellings; anything else means unconstrained.
func ParseStock(raw string) *bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "t", "1", "yes", "y":
		return models.Bool(true)
	case "false", "f", "0", "no", "n":
		return models.Bool(false)
	}
	return nil
}

func ParseSort(raw string) SortOrder {
	key := normalizeSort(raw)
	switch {
	case slices.Contains(ascendingSorts, key):
		return SortPriceAsc
	case slices.Contains(descendingSorts, key):
		return SortPriceDesc
	}
	return SortNone
}

// normalizeSort lower-cases raw and collapses underscores and whitespace
// runs into single spaces, so "Price_High  to_Low" reads "price high to low".
func normalizeSort(raw string) string {
	raw = strings.ReplaceAll(strings.ToLower(raw), "_", " ")
	return strings.Join(strings.Fields(raw), " ")
}

// Select applies the stock constraint, the inclusive price range, a stable
// price sort and the limit, in that order. The input slice is not modified.
func Select(records []*models.ProductRecord, f Filter) []*models.ProductRecord {
	out := make([]*models.ProductRecord, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		if f.InStock != nil && (!r.StockKnown() || *r.InStock != *f.InStock) {
			continue
		}
		if r.Price < f.MinPrice || r.Price > f.MaxPrice {
			continue
		}
		out = append(out, r)
	}

	switch f.Sort {
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b *models.ProductRecord) int {
			return compareFloat(a.Price, b.Price)
		})
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b *models.ProductRecord) int {
			return compareFloat(b.Price, a.Price)
		})
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Apply runs Select and projects the survivors to summaries. The result is
// never nil.
func Apply(records []*models.ProductRecord, f Filter) []models.Summary {
	selected := Select(records, f)
	summaries := make([]models.Summary, 0, len(selected))
	for _, r := range selected {
		summaries = append(summaries, r.Summary())
	}
	return summaries
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

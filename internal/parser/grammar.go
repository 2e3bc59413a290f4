package parser

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is raw markup together with the URL it was served from.
type Page struct {
	URL    string
	Markup string
}

// TextMatch constrains a matched node by its whitespace-trimmed text.
// An empty TextMatch accepts every node.
type TextMatch struct {
	Equals   string
	Prefix   string
	Contains string
}

func (m TextMatch) isZero() bool {
	return m.Equals == "" && m.Prefix == "" && m.Contains == ""
}

func (m TextMatch) matches(text string) bool {
	text = strings.TrimSpace(text)
	if m.Equals != "" && text != m.Equals {
		return false
	}
	if m.Prefix != "" && !strings.HasPrefix(text, m.Prefix) {
		return false
	}
	if m.Contains != "" && !strings.Contains(text, m.Contains) {
		return false
	}
	return true
}

// Marker maps the presence of Selector anywhere in the page to Value.
type Marker struct {
	Selector string
	Value    any
}

// Transform converts the raw text located by a rule into a field value.
type Transform func(raw string) (any, error)

// Rule locates one named field.
//
// The structural path is Selector, narrowed by Text, then moved along
// Siblings: each hop selects the next following sibling matching that
// selector. Marker rules and FromURL rules ignore Selector.
type Rule struct {
	Field     string
	Selector  string
	Text      TextMatch
	Siblings  []string
	Markers   []Marker
	FromURL   bool
	Optional  bool
	Transform Transform
}

// Grammar is an ordered rule set for one kind of page.
type Grammar struct {
	Name string
	// NotFoundTitle fails the page before any rule runs when the <title>
	// contains it, ignoring case.
	NotFoundTitle string
	Rules         []Rule
}

// Fields holds the values extracted by a grammar, keyed by rule field.
type Fields map[string]any

func (f Fields) String(name string) string {
	s, _ := f[name].(string)
	return s
}

func (f Fields) Float(name string) float64 {
	v, _ := f[name].(float64)
	return v
}

func (f Fields) Int(name string) int {
	v, _ := f[name].(int)
	return v
}

// Bool returns nil when the field was absent.
func (f Fields) Bool(name string) *bool {
	v, ok := f[name].(bool)
	if !ok {
		return nil
	}
	return &v
}

// Extract evaluates g against page in rule order. The first required rule
// that locates nothing aborts extraction with an *ExtractionError.
func Extract(page Page, g Grammar) (Fields, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return extractDocument(doc, page.URL, g)
}

func extractDocument(doc *goquery.Document, pageURL string, g Grammar) (Fields, error) {
	if g.NotFoundTitle != "" {
		title := doc.Find("title").First().Text()
		if strings.Contains(strings.ToLower(title), strings.ToLower(g.NotFoundTitle)) {
			return nil, &NotFoundError{URL: pageURL}
		}
	}

	fields := make(Fields, len(g.Rules))
	for _, rule := range g.Rules {
		value, found, err := rule.evaluate(doc, pageURL)
		if err != nil {
			return nil, &ExtractionError{Field: rule.Field, Err: err}
		}
		if !found {
			if rule.Optional {
				continue
			}
			return nil, &ExtractionError{Field: rule.Field}
		}
		fields[rule.Field] = value
	}
	return fields, nil
}

func (r Rule) evaluate(doc *goquery.Document, pageURL string) (any, bool, error) {
	switch {
	case r.FromURL:
		segment := lastPathSegment(pageURL)
		if segment == "" {
			return nil, false, nil
		}
		return r.apply(segment)

	case len(r.Markers) > 0:
		for _, marker := range r.Markers {
			if doc.Find(marker.Selector).Length() > 0 {
				return marker.Value, true, nil
			}
		}
		return nil, false, nil
	}

	sel := doc.Find(r.Selector)
	if !r.Text.isZero() {
		sel = sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return r.Text.matches(s.Text())
		})
	}
	sel = sel.First()
	for _, hop := range r.Siblings {
		if sel.Length() == 0 {
			break
		}
		sel = sel.NextAllFiltered(hop).First()
	}
	if sel.Length() == 0 {
		return nil, false, nil
	}
	return r.apply(strings.TrimSpace(sel.Text()))
}

func (r Rule) apply(raw string) (any, bool, error) {
	if r.Transform == nil {
		return raw, true, nil
	}
	v, err := r.Transform(raw)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func lastPathSegment(raw string) string {
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}

// Text keeps the trimmed text as is.
func Text(raw string) (any, error) {
	return raw, nil
}

var errEmpty = errors.New("empty value")

// NonEmpty rejects blank text.
func NonEmpty(raw string) (any, error) {
	if raw == "" {
		return nil, errEmpty
	}
	return raw, nil
}

// TrimPrefix strips prefix and surrounding whitespace.
func TrimPrefix(prefix string) Transform {
	return func(raw string) (any, error) {
		return strings.TrimSpace(strings.TrimPrefix(raw, prefix)), nil
	}
}

// Float strips a currency prefix and parses a non-negative number.
func Float(prefix string) Transform {
	return func(raw string) (any, error) {
		s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), prefix))
		s = strings.ReplaceAll(s, ",", "")
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", raw, err)
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invalid amount %q", raw)
		}
		return v, nil
	}
}

// Int parses a positive integer.
func Int(raw string) (any, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", raw, err)
	}
	if v <= 0 {
		return nil, fmt.Errorf("invalid id %q", raw)
	}
	return v, nil
}

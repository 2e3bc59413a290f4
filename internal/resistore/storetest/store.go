// Package storetest serves an in-memory storefront with the resi.store page
// layout through the fetcher.Fetcher interface.
package storetest

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/stevencaiOR/resistore-quart-api/internal/fetcher"
	"github.com/stevencaiOR/resistore-quart-api/internal/models"
)

const DefaultBaseURL = "https://resi.store/"

type category struct {
	name  string
	slug  string
	items []string
}

// Store is a fake storefront. All methods are safe for concurrent use.
type Store struct {
	BaseURL string
	// PageSize is the number of listing items per catalog page.
	PageSize int

	mu         sync.RWMutex
	categories []*category
	products   map[int]models.ProductRecord
	pages      map[string]string
	failures   map[string]error
	fetches    map[string]int
	total      int
}

func New() *Store {
	return &Store{
		BaseURL:  DefaultBaseURL,
		PageSize: 2,
		products: make(map[int]models.ProductRecord),
		pages:    make(map[string]string),
		failures: make(map[string]error),
		fetches:  make(map[string]int),
	}
}

// AddCategory registers a category whose listing names every product.
func (s *Store) AddCategory(name string, products ...models.ProductRecord) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.category(name)
	for _, p := range products {
		s.products[p.ID] = p
		c.items = append(c.items, p.Name)
	}
	return s
}

// AddListing appends names to the listing of a category without backing
// products, so their lookups resolve to nothing.
func (s *Store) AddListing(name string, items ...string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.category(name)
	c.items = append(c.items, items...)
	return s
}

// SetPage serves markup verbatim for rawURL, overriding the generated page.
func (s *Store) SetPage(rawURL, markup string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[rawURL] = markup
}

// Fail makes every fetch of rawURL fail with err wrapped in a TransportError.
func (s *Store) Fail(rawURL string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[rawURL] = err
}

// Fetches returns the total number of fetches served.
func (s *Store) Fetches() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// FetchCount returns how often rawURL was fetched.
func (s *Store) FetchCount(rawURL string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetches[rawURL]
}

func (s *Store) URL(path string) string {
	return strings.TrimSuffix(s.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func (s *Store) SearchURL(q string) string {
	return s.URL("search/") + "?" + url.Values{"q": {q}}.Encode()
}

func (s *Store) ProductURL(id int) string {
	return s.URL(fmt.Sprintf("products/%d/", id))
}

func (s *Store) CategoryURL(name string) string {
	return s.URL("products/" + slugify(name) + "/")
}

func (s *Store) ListingURL(name string, page int) string {
	return s.CategoryURL(name) + "?page=" + strconv.Itoa(page)
}

// Fetch serves rawURL. The write lock covers only the fetch bookkeeping, so
// concurrent fetches render in parallel.
func (s *Store) Fetch(ctx context.Context, rawURL string) (string, error) {
	s.mu.Lock()
	s.total++
	s.fetches[rawURL]++
	failure, failed := s.failures[rawURL]
	page, overridden := s.pages[rawURL]
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", &fetcher.TransportError{URL: rawURL, Err: err}
	}
	if failed {
		return "", &fetcher.TransportError{URL: rawURL, Err: failure}
	}
	if overridden {
		return page, nil
	}

	s.mu.RLock()
	markup, code := s.render(rawURL)
	s.mu.RUnlock()
	if code != http.StatusOK {
		return "", &fetcher.TransportError{URL: rawURL, Err: &fetcher.StatusError{Code: code}}
	}
	return markup, nil
}

func (s *Store) render(rawURL string) (string, int) {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.HasPrefix(rawURL, strings.TrimSuffix(s.BaseURL, "/")) {
		return "", http.StatusNotFound
	}
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })

	switch {
	case len(segments) == 1 && segments[0] == "products":
		return s.renderIndex(), http.StatusOK
	case len(segments) == 1 && segments[0] == "search":
		return s.renderSearch(u.Query().Get("q")), http.StatusOK
	case len(segments) == 2 && segments[0] == "products":
		if id, err := strconv.Atoi(segments[1]); err == nil {
			p, ok := s.products[id]
			if !ok {
				return "", http.StatusNotFound
			}
			return renderProduct(p), http.StatusOK
		}
		for _, c := range s.categories {
			if c.slug == segments[1] {
				page, err := strconv.Atoi(u.Query().Get("page"))
				if err != nil || page < 1 {
					page = 1
				}
				return s.renderListing(c, page), http.StatusOK
			}
		}
	}
	return "", http.StatusNotFound
}

func (s *Store) renderIndex() string {
	var b strings.Builder
	b.WriteString("<html><head><title>Products | resi.store</title></head><body><nav>")
	for _, c := range s.categories {
		fmt.Fprintf(&b, `<a href="/products/%s/">%s</a>`, c.slug, html.EscapeString(c.name))
	}
	b.WriteString("</nav></body></html>")
	return b.String()
}

func (s *Store) renderListing(c *category, page int) string {
	size := s.PageSize
	if size <= 0 {
		size = 2
	}
	start := (page - 1) * size

	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s | resi.store</title></head><body><div class=\"row\">", html.EscapeString(c.name))
	for i := start; i < start+size && i < len(c.items); i++ {
		fmt.Fprintf(&b, `<div class="col"><p class="text-center">%s</p></div>`, html.EscapeString(c.items[i]))
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

func (s *Store) renderSearch(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))

	ids := make([]int, 0, len(s.products))
	for id, p := range s.products {
		if q != "" && strings.Contains(strings.ToLower(p.Name), q) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	var b strings.Builder
	b.WriteString("<html><head><title>Search | resi.store</title></head><body>")
	for _, id := range ids {
		p := s.products[id]
		fmt.Fprintf(&b, `<div class="card"><a href="/products/%d/"><img alt="Picture of %s" src="/media/%d.png"></a><a href="/products/%d/">%s</a></div>`,
			id, html.EscapeString(p.Name), id, id, html.EscapeString(p.Name))
	}
	b.WriteString("</body></html>")
	return b.String()
}

func renderProduct(p models.ProductRecord) string {
	stock := ""
	if p.InStock != nil {
		if *p.InStock {
			stock = `<span class="badge butterfly-green">In stock</span>`
		} else {
			stock = `<span class="badge red">Out of stock</span>`
		}
	}

	return fmt.Sprintf(`<html><head><title>%[1]s | resi.store</title></head><body><div class="container">
<img class="img-fluid" src="../../media/%[2]d.png">
<h2>%[1]s</h2>
<small>SKU: %[3]s</small>
<p><b>$%.2[4]f</b></p>
%[5]s
<h4>Description</h4>
<p>%[6]s</p>
<h4>Documentation</h4>
<ul><li>%[7]s</li></ul>
<h4>Location</h4>
<p>%[8]s</p>
<p>%[9]s</p>
</div></body></html>`,
		html.EscapeString(p.Name), p.ID, html.EscapeString(p.SKU), p.Price, stock,
		html.EscapeString(p.Description), html.EscapeString(p.Documentation),
		html.EscapeString(p.Location.Box), html.EscapeString(p.Location.Coord))
}

func (s *Store) category(name string) *category {
	for _, c := range s.categories {
		if c.name == name {
			return c
		}
	}
	c := &category{name: name, slug: slugify(name)}
	s.categories = append(s.categories, c)
	return c
}

func slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// Product builds a fully populated fixture record.
func Product(id int, name string, price float64, inStock *bool) models.ProductRecord {
	return models.ProductRecord{
		ID:            id,
		Name:          name,
		SKU:           fmt.Sprintf("SKU-%03d", id),
		Price:         price,
		InStock:       inStock,
		Description:   name + " description",
		Documentation: name + " datasheet",
		Location: models.Location{
			Box:   fmt.Sprintf("Box %d", id),
			Coord: fmt.Sprintf("C-%d", id),
		},
	}
}

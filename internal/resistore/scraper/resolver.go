package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/stevencaiOR/resistore-quart-api/internal/fetcher"
	"github.com/stevencaiOR/resistore-quart-api/internal/parser"
)

// Resolver maps a product name or id to its canonical detail page URL.
type Resolver struct {
	base    *url.URL
	fetcher fetcher.Fetcher
}

func NewResolver(baseURL string, f fetcher.Fetcher) (*Resolver, error) {
	base, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}
	return &Resolver{base: base, fetcher: f}, nil
}

// SearchURL is the storefront search page for name.
func (r *Resolver) SearchURL(name string) string {
	u := r.base.ResolveReference(&url.URL{Path: "search/"})
	u.RawQuery = url.Values{"q": {name}}.Encode()
	return u.String()
}

// ProductURL is the detail page for a numeric product id.
func (r *Resolver) ProductURL(id string) string {
	return r.base.ResolveReference(&url.URL{Path: "products/" + url.PathEscape(strings.TrimSpace(id)) + "/"}).String()
}

// Resolve returns the absolute URL against the store base.
func (r *Resolver) Resolve(ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", ref, err)
	}
	return r.base.ResolveReference(u).String(), nil
}

// ResolveName searches the storefront for name and requires exactly one
// distinct product link whose picture is labelled with that name.
func (r *Resolver) ResolveName(ctx context.Context, name string) (string, error) {
	searchURL := r.SearchURL(name)
	markup, err := r.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		return "", classifyFetch(searchURL, err)
	}

	doc, err := parser.ParseDocument(markup)
	if err != nil {
		return "", err
	}

	seen := make(map[string]bool)
	var matches []string
	for _, href := range doc.AnchorsWrappingImage(pictureAlt(name)) {
		abs, err := r.Resolve(href)
		if err != nil {
			continue
		}
		if !seen[abs] {
			seen[abs] = true
			matches = append(matches, abs)
		}
	}

	if len(matches) != 1 {
		return "", &AmbiguousLookupError{Identifier: name, Matches: len(matches)}
	}
	return matches[0], nil
}

func pictureAlt(name string) string {
	return "Picture of " + strings.TrimSpace(name)
}

func parseBase(baseURL string) (*url.URL, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid store base URL %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid store base URL %q: scheme and host are required", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base, nil
}

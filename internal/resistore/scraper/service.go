package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stevencaiOR/resistore-quart-api/internal/fetcher"
	"github.com/stevencaiOR/resistore-quart-api/internal/metrics"
	"github.com/stevencaiOR/resistore-quart-api/internal/models"
	"github.com/stevencaiOR/resistore-quart-api/internal/parser"
	"github.com/stevencaiOR/resistore-quart-api/internal/resistore/query"
)

type Config struct {
	BaseURL         string
	MaxPages        int
	MaxWalkDuration time.Duration
	// Concurrency caps in-flight detail lookups per aggregation; 0 means unbounded.
	Concurrency int
}

// CategoryResult is the outcome of one category query.
type CategoryResult struct {
	Category   string
	Summaries  []models.Summary
	Discovered int
	Aggregated int
	Duration   time.Duration
}

func (r *CategoryResult) Dropped() int {
	return r.Discovered - r.Aggregated
}

// Service composes the walker, resolver, aggregator and query engine
// behind the operations exposed by the API and the CLI.
type Service struct {
	base       *url.URL
	fetcher    fetcher.Fetcher
	resolver   *Resolver
	walker     *CatalogWalker
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewService(cfg Config, f fetcher.Fetcher, p parser.Parser, m *metrics.Metrics, logger *slog.Logger) (*Service, error) {
	base, err := parseBase(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	resolver := &Resolver{base: base, fetcher: f}
	if p == nil {
		p = parser.NewResistoreParser()
	}

	return &Service{
		base:       base,
		fetcher:    f,
		resolver:   resolver,
		walker:     NewCatalogWalker(f, WalkerOptions{MaxPages: cfg.MaxPages, MaxDuration: cfg.MaxWalkDuration}, m, logger),
		aggregator: NewAggregator(resolver, f, p, cfg.Concurrency, m, logger),
		logger:     logger.With("component", "service"),
	}, nil
}

func (s *Service) Walker() *CatalogWalker {
	return s.walker
}

// CategoryURL finds the listing URL of category on the products index.
func (s *Service) CategoryURL(ctx context.Context, category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return "", fmt.Errorf("%w: category", ErrMissingParameter)
	}

	indexURL := s.base.ResolveReference(&url.URL{Path: "products/"}).String()
	markup, err := s.fetcher.Fetch(ctx, indexURL)
	if err != nil {
		return "", classifyFetch(indexURL, err)
	}
	doc, err := parser.ParseDocument(markup)
	if err != nil {
		return "", err
	}

	href, found, hasHref := doc.AnchorByText(category)
	if !found {
		return "", &NotFoundError{URL: indexURL + "#" + category}
	}
	if !hasHref {
		return "", &ExtractionError{Field: "href"}
	}
	return s.resolver.Resolve(href)
}

// Identifiers enumerates the full listing of category.
func (s *Service) Identifiers(ctx context.Context, category string) ([]string, error) {
	categoryURL, err := s.CategoryURL(ctx, category)
	if err != nil {
		return nil, err
	}
	return Collect(s.walker.Walk(ctx, categoryURL))
}

// GetCategory walks category, aggregates every listed item and applies f.
func (s *Service) GetCategory(ctx context.Context, category string, f query.Filter) (*CategoryResult, error) {
	start := time.Now()

	identifiers, err := s.Identifiers(ctx, category)
	if err != nil {
		return nil, err
	}

	records, err := s.aggregator.Aggregate(ctx, identifiers)
	if err != nil {
		return nil, err
	}

	result := &CategoryResult{
		Category:   category,
		Summaries:  query.Apply(records, f),
		Discovered: len(identifiers),
		Aggregated: len(records),
		Duration:   time.Since(start),
	}
	s.logger.Info("category aggregated",
		"category", category,
		"discovered", result.Discovered,
		"aggregated", result.Aggregated,
		"returned", len(result.Summaries),
		"duration", result.Duration,
	)
	return result, nil
}

func (s *Service) GetProductByName(ctx context.Context, name string) (*models.ProductRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingParameter)
	}
	return s.aggregator.LoadByName(ctx, name)
}

func (s *Service) GetProductByID(ctx context.Context, id string) (*models.ProductRecord, error) {
	id, err := productID(id)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Load(ctx, s.resolver.ProductURL(id))
}

// ImageByID returns the absolute URL of the first product picture on the
// detail page of id.
func (s *Service) ImageByID(ctx context.Context, id string) (string, error) {
	id, err := productID(id)
	if err != nil {
		return "", err
	}

	productURL := s.resolver.ProductURL(id)
	doc, err := s.document(ctx, productURL)
	if err != nil {
		return "", err
	}

	src, ok := doc.FirstAttr(".img-fluid", "src")
	if !ok || strings.TrimSpace(src) == "" {
		return "", &NotFoundError{URL: productURL}
	}
	return resolveAgainst(productURL, src)
}

// ImageByName returns the absolute URL of the search-result picture labelled
// with name.
func (s *Service) ImageByName(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: product_name", ErrMissingParameter)
	}

	searchURL := s.resolver.SearchURL(name)
	doc, err := s.document(ctx, searchURL)
	if err != nil {
		return "", err
	}

	src, ok := doc.ImageByAlt(pictureAlt(name))
	if !ok || strings.TrimSpace(src) == "" {
		return "", &NotFoundError{URL: searchURL}
	}
	return s.resolver.Resolve(src)
}

func (s *Service) document(ctx context.Context, pageURL string) (*parser.Document, error) {
	markup, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, classifyFetch(pageURL, err)
	}
	return parser.ParseDocument(markup)
}

func productID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: id", ErrMissingParameter)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return "", fmt.Errorf("%w: id %q must be a positive integer", ErrInvalidParameter, raw)
	}
	return strconv.Itoa(n), nil
}

func resolveAgainst(pageURL, ref string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", pageURL, err)
	}
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", ref, err)
	}
	return base.ResolveReference(u).String(), nil
}

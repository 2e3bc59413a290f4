package scraper

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/stevencaiOR/resistore-quart-api/internal/fetcher"
	"github.com/stevencaiOR/resistore-quart-api/internal/metrics"
	"github.com/stevencaiOR/resistore-quart-api/internal/parser"
)

const listingItemSelector = "p.text-center"

type WalkerOptions struct {
	// MaxPages is the number of non-empty listing pages accepted before the
	// walk fails with CatalogTooLargeError.
	MaxPages int
	// MaxDuration bounds the wall time of one walk; zero disables it.
	MaxDuration time.Duration
}

// CatalogWalker enumerates the item identifiers of one category by walking
// its paginated listing until the first empty page.
type CatalogWalker struct {
	fetcher fetcher.Fetcher
	opts    WalkerOptions
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewCatalogWalker(f fetcher.Fetcher, opts WalkerOptions, m *metrics.Metrics, logger *slog.Logger) *CatalogWalker {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 100
	}
	return &CatalogWalker{
		fetcher: f,
		opts:    opts,
		metrics: m,
		logger:  logger.With("component", "catalog_walker"),
	}
}

// Walk lazily yields identifiers page by page starting at page 1. A failure
// is yielded once as a non-nil error and ends the sequence.
func (w *CatalogWalker) Walk(ctx context.Context, baseURL string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		start := time.Now()

		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if w.opts.MaxDuration > 0 && time.Since(start) > w.opts.MaxDuration {
				yield("", &CatalogTooLargeError{URL: baseURL, Pages: page - 1, Elapsed: time.Since(start)})
				return
			}

			listingURL, err := pageURL(baseURL, page)
			if err != nil {
				yield("", err)
				return
			}

			items, err := w.listPage(ctx, listingURL)
			if err != nil {
				yield("", err)
				return
			}
			if len(items) == 0 {
				w.logger.Debug("catalog end reached", "url", baseURL, "pages", page-1)
				return
			}
			if page > w.opts.MaxPages {
				yield("", &CatalogTooLargeError{URL: baseURL, Pages: page, Elapsed: time.Since(start)})
				return
			}

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

func (w *CatalogWalker) listPage(ctx context.Context, listingURL string) ([]string, error) {
	markup, err := w.fetcher.Fetch(ctx, listingURL)
	if err != nil {
		return nil, classifyFetch(listingURL, err)
	}
	w.metrics.IncPages()

	doc, err := parser.ParseDocument(markup)
	if err != nil {
		return nil, fmt.Errorf("listing page %s: %w", listingURL, err)
	}
	items := doc.Texts(listingItemSelector)
	w.logger.Debug("listing page walked", "url", listingURL, "items", len(items))
	return items, nil
}

// Collect drains a walk into a slice.
func Collect(seq iter.Seq2[string, error]) ([]string, error) {
	var items []string
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func pageURL(baseURL string, page int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

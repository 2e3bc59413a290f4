package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/stevencaiOR/resistore-quart-api/internal/fetcher"
	"github.com/stevencaiOR/resistore-quart-api/internal/metrics"
	"github.com/stevencaiOR/resistore-quart-api/internal/models"
	"github.com/stevencaiOR/resistore-quart-api/internal/parser"
)

// Aggregator resolves, fetches and extracts detail records for a batch of
// catalog identifiers.
type Aggregator struct {
	resolver    *Resolver
	fetcher     fetcher.Fetcher
	parser      parser.Parser
	concurrency int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewAggregator creates an aggregator. concurrency <= 0 runs every lookup of
// a batch at once.
func NewAggregator(r *Resolver, f fetcher.Fetcher, p parser.Parser, concurrency int, m *metrics.Metrics, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		resolver:    r,
		fetcher:     f,
		parser:      p,
		concurrency: concurrency,
		metrics:     m,
		logger:      logger.With("component", "aggregator"),
	}
}

// Load fetches and extracts the detail page at productURL.
func (a *Aggregator) Load(ctx context.Context, productURL string) (*models.ProductRecord, error) {
	markup, err := a.fetcher.Fetch(ctx, productURL)
	if err != nil {
		return nil, classifyFetch(productURL, err)
	}
	return a.parser.ParseProduct(parser.Page{URL: productURL, Markup: markup})
}

// LoadByName resolves name through the storefront search and loads its record.
func (a *Aggregator) LoadByName(ctx context.Context, name string) (*models.ProductRecord, error) {
	productURL, err := a.resolver.ResolveName(ctx, name)
	if err != nil {
		return nil, err
	}
	return a.Load(ctx, productURL)
}

// Aggregate looks up every identifier concurrently. Items that fail are
// dropped; the survivors keep the order of identifiers. The batch fails with
// a TransportError only when it has several identifiers and every one of
// them failed to reach the store. Per-fetch timeouts are always dropped.
func (a *Aggregator) Aggregate(ctx context.Context, identifiers []string) ([]*models.ProductRecord, error) {
	if len(identifiers) == 0 {
		return []*models.ProductRecord{}, nil
	}
	a.metrics.ObserveBatch(len(identifiers))

	records := make([]*models.ProductRecord, len(identifiers))
	failures := make([]error, len(identifiers))

	var g errgroup.Group
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}
	for i, id := range identifiers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				failures[i] = err
				return nil
			}
			record, err := a.LoadByName(ctx, id)
			if err != nil {
				failures[i] = err
				return nil
			}
			records[i] = record
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make([]*models.ProductRecord, 0, len(identifiers))
	unreachable := 0
	var firstUnreachable error
	for i, err := range failures {
		if err == nil {
			a.metrics.IncItem("ok")
			result = append(result, records[i])
			continue
		}

		a.metrics.IncItem(ErrorType(err))
		a.logger.Debug("item dropped", "identifier", identifiers[i], "error", err)

		if isUnreachable(err) {
			unreachable++
			if firstUnreachable == nil {
				firstUnreachable = err
			}
		}
	}

	if len(identifiers) > 1 && unreachable == len(identifiers) {
		return nil, &TransportError{Err: fmt.Errorf("all %d lookups failed: %w", len(identifiers), firstUnreachable)}
	}

	if dropped := len(identifiers) - len(result); dropped > 0 {
		a.logger.Info("aggregation finished with dropped items",
			"identifiers", len(identifiers),
			"aggregated", len(result),
			"dropped", dropped,
		)
	}
	return result, nil
}

// isUnreachable reports a transport failure other than a per-fetch timeout.
func isUnreachable(err error) bool {
	var transport *TransportError
	return errors.As(err, &transport) && !errors.Is(err, context.DeadlineExceeded)
}

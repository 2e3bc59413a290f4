package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors shared by fetcher, scraper and API.
type Metrics struct {
	Registry       *prometheus.Registry
	FetchesTotal   *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
	PagesWalked    prometheus.Counter
	ItemsTotal     *prometheus.CounterVec
	RequestsTotal  *prometheus.CounterVec
	AggregateBatch prometheus.Histogram
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resistore_fetches_total",
			Help: "Total remote page fetches by outcome.",
		},
		[]string{"outcome"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resistore_fetch_duration_seconds",
			Help:    "Latency of remote page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "resistore_listing_pages_total",
			Help: "Total catalog listing pages walked.",
		},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resistore_aggregated_items_total",
			Help: "Per-identifier aggregation results by type.",
		},
		[]string{"result"},
	)
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resistore_api_requests_total",
			Help: "API requests by route and status code.",
		},
		[]string{"route", "status"},
	)
	batch := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resistore_aggregate_batch_size",
			Help:    "Number of identifiers fanned out per aggregation.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	registry.MustRegister(fetches, fetchDuration, pages, items, requests, batch)

	return &Metrics{
		Registry:       registry,
		FetchesTotal:   fetches,
		FetchDuration:  fetchDuration,
		PagesWalked:    pages,
		ItemsTotal:     items,
		RequestsTotal:  requests,
		AggregateBatch: batch,
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveFetch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(outcome).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesWalked.Inc()
}

// IncItem counts one aggregation result; result is "ok" or an error type label.
func (m *Metrics) IncItem(result string) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveBatch(n int) {
	if m == nil {
		return
	}
	m.AggregateBatch.Observe(float64(n))
}

func (m *Metrics) IncRequest(route, status string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, status).Inc()
}

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/stevencaiOR/resistore-quart-api/internal/metrics"
)

// Fetcher returns the raw markup behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// TransportError is a network or fetch-level failure for one URL.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	return fmt.Sprintf("transport: %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError carries a non-2xx HTTP status from the remote site.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d", e.Code)
}

type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxIdleConns int
	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64
}

func DefaultOptions() *Options {
	return &Options{
		Timeout:      10 * time.Second,
		UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		MaxIdleConns: 100,
		MaxBodyBytes: 8 << 20,
	}
}

// HTTPFetcher fetches pages over one pooled http.Client that is safe for
// concurrent use by every in-flight lookup.
type HTTPFetcher struct {
	client  *http.Client
	opts    *Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewHTTPFetcher(opts *Options, m *metrics.Metrics, logger *slog.Logger) *HTTPFetcher {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultOptions().MaxBodyBytes
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        opts.MaxIdleConns,
		MaxIdleConnsPerHost: opts.MaxIdleConns,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &HTTPFetcher{
		client:  &http.Client{Transport: transport},
		opts:    opts,
		metrics: m,
		logger:  logger.With("component", "http_fetcher"),
	}
}

// WithTransport swaps the underlying round tripper.
func (f *HTTPFetcher) WithTransport(rt http.RoundTripper) {
	f.client.Transport = rt
}

// Fetch issues a GET bounded by the configured per-fetch timeout.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	body, err := f.do(ctx, url)
	f.metrics.ObserveFetch(outcome(err), time.Since(start))
	if err != nil {
		f.logger.Debug("fetch failed", "url", url, "error", err)
		return "", &TransportError{URL: url, Err: err}
	}
	return body, nil
}

func (f *HTTPFetcher) do(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", &StatusError{Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var status *StatusError
	if errors.As(err, &status) {
		return "status"
	}
	return "error"
}

// IsStatus reports whether err wraps a remote HTTP status equal to code.
func IsStatus(err error, code int) bool {
	var status *StatusError
	return errors.As(err, &status) && status.Code == code
}

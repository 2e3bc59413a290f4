package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stevencaiOR/resistore-quart-api/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, timeout time.Duration) (*HTTPFetcher, *httpmock.MockTransport, *metrics.Metrics) {
	t.Helper()
	opts := DefaultOptions()
	opts.Timeout = timeout
	m := metrics.New()
	f := NewHTTPFetcher(opts, m, slog.Default())
	transport := httpmock.NewMockTransport()
	f.WithTransport(transport)
	return f, transport, m
}

func TestHTTPFetcherFetch(t *testing.T) {
	f, transport, _ := newTestFetcher(t, time.Second)
	transport.RegisterResponder("GET", "http://store.test/products/1",
		httpmock.NewStringResponder(200, "<html><h2>Widget</h2></html>"))

	body, err := f.Fetch(context.Background(), "http://store.test/products/1")
	require.NoError(t, err)
	assert.Contains(t, body, "Widget")
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestHTTPFetcherStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"not found", http.StatusNotFound},
		{"server error", http.StatusInternalServerError},
		{"forbidden", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, transport, _ := newTestFetcher(t, time.Second)
			transport.RegisterResponder("GET", "http://store.test/x", httpmock.NewStringResponder(tt.status, "nope"))

			_, err := f.Fetch(context.Background(), "http://store.test/x")
			require.Error(t, err)

			var transportErr *TransportError
			require.True(t, errors.As(err, &transportErr))
			assert.Equal(t, "http://store.test/x", transportErr.URL)
			assert.True(t, IsStatus(err, tt.status))
		})
	}
}

func TestHTTPFetcherConnectionError(t *testing.T) {
	f, transport, m := newTestFetcher(t, time.Second)
	transport.RegisterResponder("GET", "http://store.test/down", httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := f.Fetch(context.Background(), "http://store.test/down")

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Contains(t, err.Error(), "connection refused")
	assert.NotNil(t, m)
}

func TestHTTPFetcherTimeout(t *testing.T) {
	f, transport, _ := newTestFetcher(t, 20*time.Millisecond)
	transport.RegisterResponder("GET", "http://store.test/slow", func(req *http.Request) (*http.Response, error) {
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(time.Second):
			return httpmock.NewStringResponse(200, "late"), nil
		}
	})

	_, err := f.Fetch(context.Background(), "http://store.test/slow")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "timeout", outcome(context.DeadlineExceeded))
	assert.Equal(t, "canceled", outcome(context.Canceled))
	assert.Equal(t, "status", outcome(&StatusError{Code: 500}))
	assert.Equal(t, "error", outcome(errors.New("boom")))
}

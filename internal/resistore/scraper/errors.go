package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stevencaiOR/resistore-quart-api/internal/fetcher"
	"github.com/stevencaiOR/resistore-quart-api/internal/parser"
)

type (
	TransportError  = fetcher.TransportError
	NotFoundError   = parser.NotFoundError
	ExtractionError = parser.ExtractionError
)

var (
	ErrMissingParameter = errors.New("missing required parameter")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// AmbiguousLookupError means an identifier resolved to zero or several
// candidate detail pages.
type AmbiguousLookupError struct {
	Identifier string
	Matches    int
}

func (e *AmbiguousLookupError) Error() string {
	if e.Matches == 0 {
		return fmt.Sprintf("lookup %q: no matching product", e.Identifier)
	}
	return fmt.Sprintf("lookup %q: %d matching products", e.Identifier, e.Matches)
}

// CatalogTooLargeError means a category walk exceeded its page or time ceiling.
type CatalogTooLargeError struct {
	URL     string
	Pages   int
	Elapsed time.Duration
}

func (e *CatalogTooLargeError) Error() string {
	return fmt.Sprintf("catalog %s too large: still listing items after %d pages (%s)", e.URL, e.Pages, e.Elapsed.Round(time.Millisecond))
}

// StatusClientClosed is reported when the caller abandoned the request.
const StatusClientClosed = 499

// StatusCode maps an error from this package to the HTTP status surfaced to clients.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrMissingParameter) || errors.Is(err, ErrInvalidParameter) {
		return http.StatusBadRequest
	}
	if errors.Is(err, context.Canceled) {
		return StatusClientClosed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}

	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound
	}
	var ambiguous *AmbiguousLookupError
	if errors.As(err, &ambiguous) {
		return http.StatusNotFound
	}
	var extraction *ExtractionError
	if errors.As(err, &extraction) {
		return http.StatusInternalServerError
	}
	var tooLarge *CatalogTooLargeError
	if errors.As(err, &tooLarge) {
		return http.StatusBadGateway
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ErrorType labels an error for logs and metrics.
func ErrorType(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, ErrMissingParameter) || errors.Is(err, ErrInvalidParameter) {
		return "bad_request"
	}

	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var ambiguous *AmbiguousLookupError
	if errors.As(err, &ambiguous) {
		return "ambiguous"
	}
	var extraction *ExtractionError
	if errors.As(err, &extraction) {
		return "extraction"
	}
	var tooLarge *CatalogTooLargeError
	if errors.As(err, &tooLarge) {
		return "catalog_too_large"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return "transport"
	}
	return "other"
}

// classifyFetch turns a remote 404 into a NotFoundError; every other fetch
// failure stays a transport error.
func classifyFetch(url string, err error) error {
	if fetcher.IsStatus(err, http.StatusNotFound) {
		return &NotFoundError{URL: url}
	}
	return err
}

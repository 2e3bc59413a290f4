package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stevencaiOR/resistore-quart-api/internal/browser"
	"github.com/stevencaiOR/resistore-quart-api/internal/models"
	"github.com/stevencaiOR/resistore-quart-api/internal/resistore/events"
	"github.com/stevencaiOR/resistore-quart-api/internal/resistore/query"
	"github.com/stevencaiOR/resistore-quart-api/internal/resistore/scraper"
)

const (
	storeStatusSelector = "#store-status"
	storeStatusPending  = "Loading..."
)

var homeTabs = map[string]bool{"popular": true, "new": true, "featured": true}

type Handlers struct {
	service  *scraper.Service
	scroller browser.Scroller
	notifier events.Notifier
	storeURL string
	logger   *slog.Logger
}

func NewHandlers(service *scraper.Service, scroller browser.Scroller, notifier events.Notifier, storeURL string, logger *slog.Logger) *Handlers {
	if scroller == nil {
		scroller = browser.Unavailable{}
	}
	if notifier == nil {
		notifier = events.Noop{}
	}
	return &Handlers{
		service:  service,
		scroller: scroller,
		notifier: notifier,
		storeURL: storeURL,
		logger:   logger.With("component", "api"),
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

type ImageResponse struct {
	ImageURL string `json:"image_url"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

// GetCategory aggregates a category and returns the filtered summaries
// keyed by the category name.
func (h *Handlers) GetCategory(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(chi.URLParam(r, "category"))
	if category == "" {
		h.respondError(w, http.StatusBadRequest, "Missing product type")
		return
	}

	filter := query.ParseValues(r.URL.Query())
	result, err := h.service.GetCategory(r.Context(), category, filter)
	if err != nil {
		h.fail(w, err, "failed to aggregate category", "category", category)
		return
	}

	h.notifier.CatalogAggregated(r.Context(), events.CatalogAggregated{
		Category:   result.Category,
		Discovered: result.Discovered,
		Aggregated: result.Aggregated,
		Dropped:    result.Dropped(),
		Returned:   len(result.Summaries),
		DurationMS: result.Duration.Milliseconds(),
	})

	h.respondJSON(w, http.StatusOK, map[string]interface{}{category: result.Summaries})
}

// GetProduct returns one product record; id takes precedence over name.
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	name := strings.TrimSpace(r.URL.Query().Get("name"))

	if id == "" && name == "" {
		h.respondError(w, http.StatusBadRequest, "Missing product name or id")
		return
	}

	var (
		record *models.ProductRecord
		err    error
	)
	if id != "" {
		record, err = h.service.GetProductByID(r.Context(), id)
	} else {
		record, err = h.service.GetProductByName(r.Context(), name)
	}
	if err != nil {
		h.fail(w, err, "failed to get product", "id", id, "name", name)
		return
	}

	h.respondJSON(w, http.StatusOK, record)
}

func (h *Handlers) GetProductImage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("product_id"))
	name := strings.TrimSpace(r.URL.Query().Get("product_name"))

	if id == "" && name == "" {
		h.respondError(w, http.StatusBadRequest, "Missing product name or id")
		return
	}

	var (
		imageURL string
		err      error
	)
	if id != "" {
		imageURL, err = h.service.ImageByID(r.Context(), id)
	} else {
		imageURL, err = h.service.ImageByName(r.Context(), name)
	}
	if err != nil {
		if scraper.StatusCode(err) == http.StatusNotFound {
			h.respondError(w, http.StatusNotFound, "Image not found")
			return
		}
		h.fail(w, err, "failed to get product image", "id", id, "name", name)
		return
	}

	h.respondJSON(w, http.StatusOK, ImageResponse{ImageURL: imageURL})
}

// GetStoreStatus reads the rendered store status banner.
func (h *Handlers) GetStoreStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.scroller.WaitText(r.Context(), h.storeURL, storeStatusSelector, storeStatusPending)
	if err != nil {
		h.failBrowser(w, err, "failed to read store status")
		return
	}

	h.respondJSON(w, http.StatusOK, StatusResponse{Status: status})
}

// GetHomeTab lists the product names shown on one home page tab.
func (h *Handlers) GetHomeTab(w http.ResponseWriter, r *http.Request) {
	tab := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "tab")))
	if !homeTabs[tab] {
		h.respondError(w, http.StatusBadRequest, "Invalid tab, expected one of popular, new, featured")
		return
	}

	selector := "#" + tab + "-items p.text-center a[href*='products']"
	items, err := h.scroller.ScrollTexts(r.Context(), h.storeURL, selector, 0)
	if err != nil {
		h.failBrowser(w, err, "failed to read home tab", "tab", tab)
		return
	}
	if items == nil {
		items = []string{}
	}

	h.respondJSON(w, http.StatusOK, map[string][]string{tab: items})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handlers) fail(w http.ResponseWriter, err error, msg string, attrs ...any) {
	status := scraper.StatusCode(err)
	attrs = append(attrs, "error", err, "error_type", scraper.ErrorType(err), "status", status)

	switch {
	case status == scraper.StatusClientClosed:
		h.logger.Info("request abandoned by client", attrs...)
	case status >= http.StatusInternalServerError:
		h.logger.Error(msg, attrs...)
	default:
		h.logger.Debug(msg, attrs...)
	}

	h.respondError(w, status, err.Error())
}

func (h *Handlers) failBrowser(w http.ResponseWriter, err error, msg string, attrs ...any) {
	if errors.Is(err, browser.ErrUnavailable) {
		h.logger.Warn(msg, append(attrs, "error", err)...)
		h.respondError(w, http.StatusServiceUnavailable, "Browser unavailable")
		return
	}
	h.fail(w, err, msg, attrs...)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{Error: message, StatusCode: status})
}

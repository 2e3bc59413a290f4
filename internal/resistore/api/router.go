package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/stevencaiOR/resistore-quart-api/internal/metrics"
)

type RouterOptions struct {
	AllowedOrigins []string
	// RequestTimeout bounds each request; zero disables the timeout middleware.
	RequestTimeout time.Duration
	Metrics        *metrics.Metrics
	// AccessLog enables chi's request logger.
	AccessLog bool
}

func NewRouter(h *Handlers, opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(countRequests(opts.Metrics))

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	r.Route("/catalog", func(r chi.Router) {
		r.Get("/product", h.GetProduct)
		r.Get("/product/image", h.GetProductImage)
		r.Get("/{category}", h.GetCategory)
	})

	r.Route("/store", func(r chi.Router) {
		r.Get("/status", h.GetStoreStatus)
		r.Get("/home/{tab}", h.GetHomeTab)
	})

	return r
}

// countRequests records every response by matched route pattern and status.
func countRequests(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.IncRequest(route, strconv.Itoa(status))
		})
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stevencaiOR/resistore-quart-api/internal/browser"
	"github.com/stevencaiOR/resistore-quart-api/internal/fetcher"
	"github.com/stevencaiOR/resistore-quart-api/internal/metrics"
	"github.com/stevencaiOR/resistore-quart-api/internal/parser"
	"github.com/stevencaiOR/resistore-quart-api/internal/resistore/api"
	"github.com/stevencaiOR/resistore-quart-api/internal/resistore/config"
	"github.com/stevencaiOR/resistore-quart-api/internal/resistore/events"
	"github.com/stevencaiOR/resistore-quart-api/internal/resistore/scraper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	httpFetcher := fetcher.NewHTTPFetcher(&fetcher.Options{
		Timeout:      cfg.Scraper.FetchTimeout,
		UserAgent:    cfg.Scraper.UserAgent,
		MaxIdleConns: cfg.Scraper.MaxIdleConns,
	}, m, logger)

	service, err := scraper.NewService(scraper.Config{
		BaseURL:         cfg.Store.BaseURL,
		MaxPages:        cfg.Scraper.MaxCatalogPages,
		MaxWalkDuration: cfg.Scraper.MaxWalkDuration,
		Concurrency:     cfg.Scraper.Concurrency,
	}, httpFetcher, parser.NewResistoreParser(), m, logger)
	if err != nil {
		logger.Error("failed to create scraper service", "error", err)
		os.Exit(1)
	}

	// Without a browser the store status and home tab routes answer 503.
	var scroller browser.Scroller = browser.Unavailable{}
	if cfg.Browser.Enabled {
		opts := browser.DefaultOptions()
		opts.Headless = cfg.Browser.Headless
		opts.Timeout = cfg.Browser.Timeout
		opts.ScrollDelay = cfg.Browser.ScrollDelay

		b, err := browser.New(opts, logger)
		if err != nil {
			logger.Warn("browser disabled", "error", err)
			scroller = browser.Unavailable{Reason: err}
		} else {
			defer b.Close()
			scroller = b
		}
	}

	var notifier events.Notifier = events.Noop{}
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, events will be dropped until it recovers", "addr", cfg.Redis.Addr, "error", err)
		}
		notifier = events.NewPublisher(redisClient, cfg.Redis.Stream, logger)
	}

	handlers := api.NewHandlers(service, scroller, notifier, cfg.Store.BaseURL, logger)
	router := api.NewRouter(handlers, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Metrics:        m,
		AccessLog:      true,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting",
		"port", cfg.Server.Port,
		"store", cfg.Store.BaseURL,
		"browser", cfg.Browser.Enabled,
		"events", cfg.Redis.Addr != "",
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

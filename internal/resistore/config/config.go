package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Scraper ScraperConfig
	Browser BrowserConfig
	Redis   RedisConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type StoreConfig struct {
	BaseURL string
}

type ScraperConfig struct {
	FetchTimeout    time.Duration
	MaxCatalogPages int
	MaxWalkDuration time.Duration
	// Concurrency caps in-flight detail lookups per request; 0 is unbounded.
	Concurrency  int
	UserAgent    string
	MaxIdleConns int
}

type BrowserConfig struct {
	Enabled     bool
	Headless    bool
	Timeout     time.Duration
	ScrollDelay time.Duration
}

// RedisConfig with an empty Addr disables event publishing.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvInt("PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			RequestTimeout:  getEnvDuration("SERVER_REQUEST_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Store: StoreConfig{
			BaseURL: getEnv("STORE_BASE_URL", "https://resi.store/"),
		},
		Scraper: ScraperConfig{
			FetchTimeout:    getEnvDuration("SCRAPER_FETCH_TIMEOUT", 10*time.Second),
			MaxCatalogPages: getEnvInt("SCRAPER_MAX_CATALOG_PAGES", 100),
			MaxWalkDuration: getEnvDuration("SCRAPER_MAX_WALK_DURATION", 60*time.Second),
			Concurrency:     getEnvInt("SCRAPER_CONCURRENCY", 0),
			UserAgent:       getEnv("SCRAPER_USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
			MaxIdleConns:    getEnvInt("SCRAPER_MAX_IDLE_CONNS", 100),
		},
		Browser: BrowserConfig{
			Enabled:     getEnvBool("BROWSER_ENABLED", true),
			Headless:    getEnvBool("BROWSER_HEADLESS", true),
			Timeout:     getEnvDuration("BROWSER_TIMEOUT", 30*time.Second),
			ScrollDelay: getEnvDuration("BROWSER_SCROLL_DELAY", time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Stream:   getEnv("REDIS_STREAM", "stream:catalog_aggregations"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	u, err := url.Parse(c.Store.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid store base URL: %q", c.Store.BaseURL)
	}

	if c.Scraper.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}

	if c.Scraper.MaxCatalogPages < 1 {
		return fmt.Errorf("at least 1 catalog page is required")
	}

	if c.Scraper.Concurrency < 0 {
		return fmt.Errorf("invalid scraper concurrency: %d", c.Scraper.Concurrency)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %q", c.Log.Format)
	}

	return nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level: %q", level)
	}
	return l, nil
}

// NewLogger builds the process logger from the logging config.
func NewLogger(c LogConfig, w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevencaiOR/resistore-quart-api/internal/fetcher"
	"github.com/stevencaiOR/resistore-quart-api/internal/metrics"
	"github.com/stevencaiOR/resistore-quart-api/internal/parser"
	"github.com/stevencaiOR/resistore-quart-api/internal/resistore/config"
	"github.com/stevencaiOR/resistore-quart-api/internal/resistore/query"
	"github.com/stevencaiOR/resistore-quart-api/internal/resistore/scraper"
)

type options struct {
	baseURL     string
	timeout     time.Duration
	maxPages    int
	maxDuration time.Duration
	concurrency int
	verbose     bool
}

// app carries what every subcommand needs. fetcher is nil in production and
// replaced by tests.
type app struct {
	opts    options
	fetcher fetcher.Fetcher
	out     io.Writer
	errOut  io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout, errOut: os.Stderr}
	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "resistore",
		Short: "Query the resi.store catalog from the command line",
		Long: `resistore runs the same catalog walk, detail aggregation and
filtering as the API server once and prints the result as JSON.`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.opts.baseURL, "base-url", "https://resi.store/", "storefront base URL")
	flags.DurationVar(&a.opts.timeout, "timeout", 10*time.Second, "per-fetch timeout")
	flags.IntVar(&a.opts.maxPages, "max-pages", 100, "maximum non-empty listing pages per category")
	flags.DurationVar(&a.opts.maxDuration, "max-duration", 60*time.Second, "maximum wall time of one category walk")
	flags.IntVarP(&a.opts.concurrency, "concurrency", "n", 0, "concurrent detail lookups (0 = unbounded)")
	flags.BoolVarP(&a.opts.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(a.catalogCmd())
	rootCmd.AddCommand(a.walkCmd())
	rootCmd.AddCommand(a.productCmd())
	rootCmd.AddCommand(a.imageCmd())

	return rootCmd
}

func (a *app) catalogCmd() *cobra.Command {
	var minPrice, maxPrice, stock, sortBy string
	var limit int

	cmd := &cobra.Command{
		Use:   "catalog [category]",
		Short: "Aggregate a category and print filtered {name, price} summaries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}

			values := url.Values{}
			setIf(values, "min_price", minPrice)
			setIf(values, "max_price", maxPrice)
			setIf(values, "stock", stock)
			setIf(values, "sort", sortBy)
			if limit != 0 {
				values.Set("limit", strconv.Itoa(limit))
			}

			result, err := svc.GetCategory(cmd.Context(), args[0], query.ParseValues(values))
			if err != nil {
				return err
			}
			return a.print(map[string]interface{}{args[0]: result.Summaries})
		},
	}

	cmd.Flags().StringVar(&minPrice, "min-price", "", "inclusive lower price bound")
	cmd.Flags().StringVar(&maxPrice, "max-price", "", "inclusive upper price bound")
	cmd.Flags().StringVar(&stock, "stock", "", "true or false to filter on stock")
	cmd.Flags().StringVar(&sortBy, "sort", "", `"price asc" or "price desc"`)
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "maximum results (default 20)")

	return cmd
}

func (a *app) walkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "walk [category]",
		Short: "Print the listing identifiers of a category as they are discovered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}

			categoryURL, err := svc.CategoryURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for item, err := range svc.Walker().Walk(cmd.Context(), categoryURL) {
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, item)
			}
			return nil
		},
	}
}

func (a *app) productCmd() *cobra.Command {
	var name, id string

	cmd := &cobra.Command{
		Use:   "product",
		Short: "Print one product record by --id or --name",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" && name == "" {
				return fmt.Errorf("%w: --name or --id", scraper.ErrMissingParameter)
			}
			svc, err := a.service()
			if err != nil {
				return err
			}

			if id != "" {
				record, err := svc.GetProductByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.print(record)
			}
			record, err := svc.GetProductByName(cmd.Context(), name)
			if err != nil {
				return err
			}
			return a.print(record)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "product name")
	cmd.Flags().StringVar(&id, "id", "", "product id (takes precedence over --name)")

	return cmd
}

func (a *app) imageCmd() *cobra.Command {
	var name, id string

	cmd := &cobra.Command{
		Use:   "image",
		Short: "Print the picture URL of a product by --id or --name",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" && name == "" {
				return fmt.Errorf("%w: --name or --id", scraper.ErrMissingParameter)
			}
			svc, err := a.service()
			if err != nil {
				return err
			}

			var imageURL string
			if id != "" {
				imageURL, err = svc.ImageByID(cmd.Context(), id)
			} else {
				imageURL, err = svc.ImageByName(cmd.Context(), name)
			}
			if err != nil {
				return err
			}
			return a.print(map[string]string{"image_url": imageURL})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "product name")
	cmd.Flags().StringVar(&id, "id", "", "product id (takes precedence over --name)")

	return cmd
}

func (a *app) service() (*scraper.Service, error) {
	level := "info"
	if a.opts.verbose {
		level = "debug"
	}
	logger := config.NewLogger(config.LogConfig{Level: level, Format: "text"}, a.errOut)

	f := a.fetcher
	if f == nil {
		opts := fetcher.DefaultOptions()
		opts.Timeout = a.opts.timeout
		f = fetcher.NewHTTPFetcher(opts, metrics.New(), logger)
	}

	return scraper.NewService(scraper.Config{
		BaseURL:         a.opts.baseURL,
		MaxPages:        a.opts.maxPages,
		MaxWalkDuration: a.opts.maxDuration,
		Concurrency:     a.opts.concurrency,
	}, f, parser.NewResistoreParser(), nil, logger)
}

func (a *app) print(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setIf(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}

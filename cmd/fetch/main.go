package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tradingdash/internal/app"
	"tradingdash/internal/config"
	"tradingdash/internal/dashboard"
	"tradingdash/internal/httpx"
	"tradingdash/internal/logging"
)

var (
	configFile  string
	raw         bool
	showPricing bool
	upstreamURL string
	kind        string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "tradingdash-fetch",
		Short:        "Run one refresh cycle and print the dashboard snapshot",
		RunE:         runFetch,
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVar(&configFile, "config", os.Getenv("CONFIG_FILE"), "Path to config file (yaml or json)")
	rootCmd.Flags().BoolVar(&raw, "raw", false, "Print the raw upstream body instead of the snapshot")
	rootCmd.Flags().BoolVar(&showPricing, "pricing", false, "Print the pricing string")
	rootCmd.Flags().StringVar(&upstreamURL, "api-url", "", "Instruments API root, overrides upstream.api_url")
	rootCmd.Flags().StringVar(&kind, "kind", "", "Upstream kind (api|yahoo), overrides upstream.kind")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if upstreamURL != "" {
		cfg.Upstream.APIURL = upstreamURL
	}
	if kind != "" {
		cfg.Upstream.Kind = kind
	}
	// One-shot runs never reuse a cached body.
	cfg.Upstream.CacheTTLSeconds = 0
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logging.New(cfg.Log.Level, "console", os.Stderr)
	hc := httpx.New(cfg.RequestTimeout())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
	defer cancel()

	out := cmd.OutOrStdout()

	if showPricing {
		p := app.Pricer(cfg, hc)
		if p == nil {
			return errors.New("pricing is disabled")
		}
		s, err := p.Get(ctx)
		if err != nil {
			return fmt.Errorf("pricing: %w", err)
		}
		_, err = fmt.Fprintln(out, s)
		return err
	}

	src, err := app.Source(cfg, hc, nil)
	if err != nil {
		return fmt.Errorf("upstream: %w", err)
	}

	if raw {
		body, err := src.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", src.Name(), err)
		}
		_, err = out.Write(append(body, '\n'))
		return err
	}

	svc := dashboard.New(src, app.Deriver(cfg), dashboard.WithLogger(logger))
	snap, err := svc.Refresh(ctx)
	if err != nil && !errors.Is(err, dashboard.ErrFetch) && !errors.Is(err, dashboard.ErrProcess) {
		return err
	}
	if err != nil {
		logger.Warn().Err(err).Msg("serving fallback instruments")
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(snap)
}

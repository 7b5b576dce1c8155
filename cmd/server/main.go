package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"tradingdash/internal/app"
	"tradingdash/internal/config"
	"tradingdash/internal/dashboard"
	"tradingdash/internal/httpx"
	"tradingdash/internal/logging"
	"tradingdash/internal/server"
)

var (
	configFile string
	port       string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "tradingdash",
		Short:        "Trading dashboard backend",
		Long:         `Polls the instruments pricing API, derives trends and trading signals, and serves the dashboard over HTTP.`,
		RunE:         runServe,
		SilenceUsage: true,
	}
	serveCmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP server and the polling loop",
		RunE:         runServe,
		SilenceUsage: true,
	}

	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().StringVar(&configFile, "config", os.Getenv("CONFIG_FILE"), "Path to config file (yaml or json)")
		c.Flags().StringVar(&port, "port", "", "Listen port, overrides server.port")
		c.Flags().StringVar(&logLevel, "log-level", "", "Log level, overrides log.level")
	}
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Server.Port = port
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	gin.SetMode(gin.ReleaseMode)

	hc := httpx.New(cfg.RequestTimeout())
	src, err := app.Source(cfg, hc, nil)
	if err != nil {
		return fmt.Errorf("upstream: %w", err)
	}
	svc := dashboard.New(src, app.Deriver(cfg), dashboard.WithLogger(logging.Component(logger, "dashboard")))

	var pricer server.Pricer
	if p := app.Pricer(cfg, hc); p != nil {
		pricer = p
	}
	h := server.NewHandler(svc, pricer, logging.Component(logger, "http")).
		WithCORSOrigins(cfg.Server.CORSOrigins).
		WithTimeout(cfg.RequestTimeout())

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           h.InitRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		svc.Run(ctx, cfg.PollInterval())
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("port", cfg.Server.Port).
			Str("upstream", src.Name()).
			Dur("poll_interval", cfg.PollInterval()).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			stop()
			<-pollDone
			return fmt.Errorf("server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	<-pollDone
	logger.Info().Msg("server stopped")
	return nil
}

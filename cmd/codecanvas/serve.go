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

	"github.com/spf13/cobra"

	"github.com/randalmurphal/codecanvas/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Serves POST /api/generate, GET /health and GET /metrics until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}

		metrics := server.NewMetrics(true)
		stopTelemetry, err := setupTelemetry(cfg.Observability, metrics.Registry(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := stopTelemetry(ctx); err != nil {
				logger.Warn("telemetry shutdown", "error", err)
			}
		}()

		wf, err := newWorkflow(cfg, logger)
		if err != nil {
			return err
		}

		trusted, err := cfg.Server.TrustedPrefixes()
		if err != nil {
			return err
		}
		opts := []server.Option{
			server.WithLogger(logger),
			server.WithMetrics(metrics),
			server.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
			server.WithTrustedProxies(trusted...),
			server.WithAPIKeyConfigured(cfg.APIKeyConfigured()),
		}
		limiter, err := server.NewLimiter(cfg.RateLimit)
		if err != nil {
			return err
		}
		if limiter != nil {
			opts = append(opts, server.WithRateLimit(limiter, cfg.RateLimit.Requests, cfg.RateLimit.Window))
			if rl, ok := limiter.(*server.RedisLimiter); ok {
				defer rl.Close()
			}
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           server.New(wf, opts...).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("codecanvas listening",
				"addr", srv.Addr,
				"provider", cfg.Provider.Name,
				"model", cfg.Provider.ResolvedModel(),
				"ratelimit_backend", cfg.RateLimit.Backend,
			)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful shutdown did not complete", "timeout", cfg.Server.ShutdownTimeout, "error", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("closing server: %w", err)
				}
			}
			logger.Info("server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides config)")
}

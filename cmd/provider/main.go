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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/xgov/x402"
	"github.com/xgov/x402/config"
	"github.com/xgov/x402/logger"
	"github.com/xgov/x402/metrics"
)

// main loads the environment, builds the provider and serves it until
// interrupted.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "provider: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	log := logger.NewZapLoggerWithOptions(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer func() { _ = log.Sync() }()

	if cfg.WalletGenerated {
		fields := map[string]any{"address": cfg.Recipient().String()}
		if cfg.WalletError != nil {
			fields["error"] = cfg.WalletError
		}
		log.Warn("no usable wallet configured, generated a new one", fields)
		fmt.Fprintf(os.Stderr, "Save this to AGENT_WALLET_PRIVATE_KEY: %s\n", cfg.Wallet.String())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := x402.NewProvider(ctx, cfg,
		x402.WithLogger(log),
		x402.WithMetrics(metrics.NewPrometheusRecorder(reg)),
		x402.WithGatherer(reg),
	)
	if err != nil {
		return err
	}
	defer provider.Close()

	srv := provider.HTTPServer()
	serveErr := make(chan error, 1)
	go func() {
		log.Info("provider listening", map[string]any{
			"addr":      srv.Addr,
			"agent":     cfg.AgentName,
			"network":   cfg.Network.String(),
			"recipient": cfg.Recipient().String(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

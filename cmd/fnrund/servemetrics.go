package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbusrun/fnrun/internal/logging"
)

// serveMetricsCmd exposes the Prometheus handler built by buildSystem over
// HTTP so an operator can scrape /metrics. The HTTP invocation surface
// itself belongs to the out-of-scope API layer (spec.md §1); this command
// only ever serves the metrics the collector already maintains.
func serveMetricsCmd() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "expose the Prometheus /metrics endpoint for scraping",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if listenAddr == "" {
				listenAddr = cfg.Daemon.HTTPAddr
			}

			ctx := cmd.Context()
			sys, err := buildSystem(ctx, cfg)
			if err != nil {
				return err
			}
			defer sys.close()

			if sys.prom == nil {
				return fmt.Errorf("metrics.enabled is false in config; nothing to serve")
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", sys.prom.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			httpServer := &http.Server{Addr: listenAddr, Handler: mux}

			errCh := make(chan error, 1)
			go func() {
				logging.Op().Info("serving metrics", "addr", listenAddr)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				logging.Op().Info("shutdown signal received", "signal", sig.String())
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown metrics server: %w", err)
				}
				return nil
			case err := <-errCh:
				return fmt.Errorf("metrics server error: %w", err)
			}
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (defaults to daemon.http_addr in config)")
	return cmd
}

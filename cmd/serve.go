package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/pathomation/pma-go/internal/config"
	"github.com/pathomation/pma-go/internal/handlers"
	"github.com/pathomation/pma-go/internal/slidecmd"
	"github.com/pathomation/pma-go/pma"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start a local JSON gateway to the imaging service",
		Long: `Opens a session on the configured server (or the local lite instance) and
serves directory listings, slide metadata, zoom levels and JPEG tiles as a
small JSON API. Prometheus metrics are exposed on /metrics.

Endpoints:
  GET /api/sessions
  GET /api/directories?path=<dir>
  GET /api/slides?path=<dir>
  GET /api/info?slide=<slide>
  GET /api/zoomlevels?slide=<slide>&min_tiles=<n>
  GET /api/tile?slide=<slide>&x=<x>&y=<y>&z=<zoom>`,
		Example: `  # Start server on default port 8888
  pma serve

  # Start server on custom port against a remote server
  pma serve --port 3000 --server https://core.example.org/pma.core/ --username alice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path, cmd.Flags())
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			client := slidecmd.NewClient(cfg, reg)
			session, err := slidecmd.Connect(cmd.Context(), client, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := client.Disconnect(context.Background(), session); err != nil {
					slog.Warn("Failed to close session", "session", session, "err", err)
				}
			}()

			handler := handlers.New(client, session, pma.TileOptions{
				Format:  cfg.Tiles.Format,
				Quality: cfg.Tiles.Quality,
			})

			// Set up routes
			mux := http.NewServeMux()
			handler.Routes(mux)
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

			addr := ":" + strconv.Itoa(cfg.Serve.Port)
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Slide gateway available", "addr", addr, "url", "http://localhost"+addr, "session", session)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().IntP("port", "p", 8888, "Port to listen on")

	return cmd
}

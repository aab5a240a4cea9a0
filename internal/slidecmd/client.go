// Package slidecmd implements the slide browsing, export and inventory
// subcommands of the pma CLI.
package slidecmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pathomation/pma-go/internal/config"
	"github.com/pathomation/pma-go/pma"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// NewClient builds an SDK client from cfg. reg may be nil.
func NewClient(cfg *config.Config, reg prometheus.Registerer) *pma.Client {
	opts := []pma.Option{
		pma.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}),
		pma.WithLiteURL(cfg.Lite.URL),
		pma.WithLogger(slog.Default()),
		pma.WithTileCache(cfg.Tiles.Cache),
		pma.WithStrictMetadata(cfg.Metadata.Strict),
	}
	if reg != nil {
		opts = append(opts, pma.WithRegisterer(reg))
	}
	return pma.New(opts...)
}

// Connect opens a session on the configured server, or on the local lite
// instance when no server is configured.
func Connect(ctx context.Context, c *pma.Client, cfg *config.Config) (string, error) {
	session, err := c.Connect(ctx, cfg.Server.URL, cfg.Server.Username, cfg.Server.Password)
	if err != nil {
		if cfg.Server.URL == "" {
			return "", fmt.Errorf("no server configured and no lite instance at %s: %w", c.LiteURL(), err)
		}
		return "", fmt.Errorf("failed to connect to %s: %w", cfg.Server.URL, err)
	}
	return session, nil
}

// conn is an open session used by a single command invocation.
type conn struct {
	cfg     *config.Config
	client  *pma.Client
	session string
}

// loadConfig reads the configuration named by the persistent --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path, cmd.Flags())
}

// open connects for the duration of one command. Close must be called.
func open(cmd *cobra.Command) (*conn, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	client := NewClient(cfg, nil)
	session, err := Connect(cmd.Context(), client, cfg)
	if err != nil {
		return nil, err
	}
	return &conn{cfg: cfg, client: client, session: session}, nil
}

func (c *conn) Close() {
	// The command context may already be cancelled.
	if err := c.client.Disconnect(context.Background(), c.session); err != nil {
		slog.Warn("Failed to close session", "session", c.session, "err", err)
	}
}

func (c *conn) tileOptions() pma.TileOptions {
	return pma.TileOptions{
		Format:      c.cfg.Tiles.Format,
		Quality:     c.cfg.Tiles.Quality,
		Concurrency: c.cfg.Tiles.Concurrency,
	}
}

// Commands returns every slide subcommand.
func Commands() []*cobra.Command {
	return []*cobra.Command{
		NewVersionInfoCmd(),
		NewLsCmd(),
		NewInfoCmd(),
		NewZoomCmd(),
		NewTilesCmd(),
		NewRegionCmd(),
		NewThumbnailCmd(),
		NewLabelCmd(),
		NewInventoryCmd(),
	}
}

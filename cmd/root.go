package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pathomation/pma-go/internal/config"
	"github.com/pathomation/pma-go/internal/slidecmd"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "pma",
		Short: "Command line client for PMA.core whole slide image servers",
		Long: `pma browses, inspects and exports whole slide images served by PMA.core
or a local PMA.start (lite) instance.

The server and credentials are read from pma.yaml, PMA_* environment
variables (a .env file is loaded if present) or the flags below. Without a
server the local lite instance is used.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path, cmd.Flags())
			if err != nil {
				return err
			}
			level := parseLevel(cfg.Log.Level)
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	cmd.PersistentFlags().String("config", "", "Config file (default ./pma.yaml or ~/.config/pma/pma.yaml)")
	cmd.PersistentFlags().String("server", "", "PMA.core server URL (empty for the local lite instance)")
	cmd.PersistentFlags().String("username", "", "PMA.core user name")
	cmd.PersistentFlags().String("password", "", "PMA.core password")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	// Add subcommands
	cmd.AddCommand(slidecmd.Commands()...)
	cmd.AddCommand(newServeCmd())

	return cmd
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

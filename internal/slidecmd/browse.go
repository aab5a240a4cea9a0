package slidecmd

import (
	"fmt"
	"strings"

	"github.com/pathomation/pma-go/pma"
	"github.com/spf13/cobra"
)

// NewVersionInfoCmd creates the version-info command
func NewVersionInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version-info",
		Short: "Print the version of the imaging service",
		Long: `Print the version reported by the configured server, or by the local
lite instance when no server is configured. No session is opened.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			client := NewClient(cfg, nil)
			version, err := client.VersionInfo(cmd.Context(), cfg.Server.URL)
			if err != nil {
				return fmt.Errorf("failed to get version: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

// NewLsCmd creates the ls command
func NewLsCmd() *cobra.Command {
	var recursive bool
	var firstNonEmpty bool

	cmd := &cobra.Command{
		Use:   "ls [directory]",
		Short: "List directories and slides",
		Long: `List the root directories of the imaging service, or the subdirectories
and slides of one directory. Directories are printed with a trailing slash.`,
		Example: `  # List root directories
  pma ls

  # List one directory
  pma ls Reference/Aperio

  # Print every directory holding slides, with its slides
  pma ls Reference --recursive

  # Find the first directory below Reference that holds slides
  pma ls Reference --first-nonempty`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}

			c, err := open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			switch {
			case firstNonEmpty:
				found, err := c.client.FirstNonEmptyDirectory(cmd.Context(), c.session, dir)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), found)
				return nil
			case recursive:
				return executeWalk(cmd, c, dir)
			default:
				return executeLs(cmd, c, dir)
			}
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Walk the directory tree")
	cmd.Flags().BoolVar(&firstNonEmpty, "first-nonempty", false, "Print the first directory that holds slides")

	return cmd
}

func executeLs(cmd *cobra.Command, c *conn, dir string) error {
	out := cmd.OutOrStdout()
	if dir == "" || dir == "/" {
		roots, err := c.client.RootDirectories(cmd.Context(), c.session)
		if err != nil {
			return err
		}
		for _, r := range roots {
			fmt.Fprintln(out, strings.TrimSuffix(r, "/")+"/")
		}
		return nil
	}

	dirs, err := c.client.Directories(cmd.Context(), c.session, dir)
	if err != nil {
		return err
	}
	slides, err := c.client.Slides(cmd.Context(), c.session, dir)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		fmt.Fprintln(out, strings.TrimSuffix(d, "/")+"/")
	}
	for _, s := range slides {
		fmt.Fprintln(out, s)
	}
	return nil
}

func executeWalk(cmd *cobra.Command, c *conn, dir string) error {
	out := cmd.OutOrStdout()
	return c.client.Walk(cmd.Context(), c.session, dir, func(d string, slides []string) error {
		if len(slides) == 0 {
			return nil
		}
		fmt.Fprintf(out, "%s (%d)\n", d, len(slides))
		for _, s := range slides {
			fmt.Fprintf(out, "  %s\n", pma.SlideFileName(s))
		}
		return nil
	})
}

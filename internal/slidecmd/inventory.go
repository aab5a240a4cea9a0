package slidecmd

import (
	"fmt"
	"log/slog"

	"github.com/pathomation/pma-go/internal/inventory"
	"github.com/pathomation/pma-go/internal/report"
	"github.com/spf13/cobra"
)

// NewInventoryCmd creates the inventory command
func NewInventoryCmd() *cobra.Command {
	var output string
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "inventory [directory]",
		Short: "Describe every slide below a directory",
		Long: `Walk a directory tree of the imaging service, read the metadata of every
slide found and summarize it. The records can be written to a Parquet or
JSON lines file for later analysis. Slides whose metadata cannot be read
are kept with their error.`,
		Example: `  # Summarize everything on the server
  pma inventory

  # Write the first 500 slides below Reference to Parquet
  pma inventory Reference --limit 500 --out reference.parquet

  # Print the records as CSV
  pma inventory Reference --format csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := ""
			if len(args) == 1 {
				start = args[0]
			}

			c, err := open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			records, err := inventory.Collect(cmd.Context(), c.client, c.session, start, limit)
			if err != nil {
				return fmt.Errorf("inventory stopped after %d slides: %w", len(records), err)
			}
			if output != "" {
				if err := inventory.Write(output, records); err != nil {
					return err
				}
				slog.Info("Inventory written", "path", output, "slides", len(records))
			}
			return report.PrintInventory(cmd.OutOrStdout(), records, format)
		},
	}

	cmd.Flags().StringVarP(&output, "out", "o", "", "Write records to a .parquet or .jsonl file")
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many slides (0 for all)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, csv, json, yaml)")

	cmd.AddCommand(newInventoryInspectCmd())

	return cmd
}

func newInventoryInspectCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Summarize a saved inventory",
		Long:  `Load an inventory written with --out and print its summary or records.`,
		Example: `  pma inventory inspect reference.parquet
  pma inventory inspect reference.jsonl --format csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := inventory.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load inventory: %w", err)
			}
			return report.PrintInventory(cmd.OutOrStdout(), records, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, csv, json, yaml)")

	return cmd
}

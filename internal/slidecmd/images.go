package slidecmd

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/pathomation/pma-go/internal/images"
	"github.com/pathomation/pma-go/internal/report"
	"github.com/pathomation/pma-go/internal/tissue"
	"github.com/spf13/cobra"
)

// NewThumbnailCmd creates the thumbnail command
func NewThumbnailCmd() *cobra.Command {
	var output string
	var coverage bool
	var format string
	opts := tissue.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "thumbnail <slide>",
		Short: "Save the thumbnail of a slide",
		Long: `Save the thumbnail of a slide. With --coverage the thumbnail is also
scanned for tissue and the covered fraction is printed.`,
		Example: `  # Save the thumbnail next to the current directory
  pma thumbnail Reference/Aperio/CMU-1.svs

  # Report tissue coverage as JSON without keeping the image
  pma thumbnail Reference/Aperio/CMU-1.svs --coverage --out "" --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			img, err := c.client.Thumbnail(cmd.Context(), c.session, args[0])
			if err != nil {
				return err
			}
			if err := saveImage(cmd, c, args[0], "thumbnail", output, img); err != nil {
				return err
			}
			if !coverage {
				return nil
			}

			res := tissue.Coverage(img, opts)
			if format == "text" {
				fmt.Fprintf(cmd.OutOrStdout(), "Tissue coverage: %.1f%% of %d pixels", res.Coverage*100, res.Pixels)
				if res.Mean != "" {
					fmt.Fprintf(cmd.OutOrStdout(), " (mean color %s)", res.Mean)
				}
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			}
			return report.Encode(cmd.OutOrStdout(), res, format)
		},
	}

	cmd.Flags().StringVarP(&output, "out", "o", "-", `Output image file ("-" for <slide>_thumbnail.jpg, "" to skip)`)
	cmd.Flags().BoolVar(&coverage, "coverage", false, "Estimate tissue coverage")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Coverage output format (text, json, yaml)")
	cmd.Flags().Float64Var(&opts.BlurRadius, "blur", opts.BlurRadius, "Gaussian blur radius applied before classification")
	cmd.Flags().Float64Var(&opts.MinDistance, "min-distance", opts.MinDistance, "Minimum Lab distance from the background counted as tissue")

	return cmd
}

// NewLabelCmd creates the label command
func NewLabelCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "label <slide>",
		Short: "Save the label (barcode) image of a slide",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			img, err := c.client.Label(cmd.Context(), c.session, args[0])
			if err != nil {
				return err
			}
			return saveImage(cmd, c, args[0], "label", output, img)
		},
	}

	cmd.Flags().StringVarP(&output, "out", "o", "-", `Output image file ("-" for <slide>_label.jpg)`)

	return cmd
}

// saveImage writes img to output. "-" derives the name from the slide and
// kind; an empty output skips writing.
func saveImage(cmd *cobra.Command, c *conn, ref, kind, output string, img image.Image) error {
	if output == "" {
		return nil
	}
	if output == "-" {
		output = images.SafeName(ref) + "_" + kind + ".jpg"
	}
	store := images.NewStore(filepath.Dir(output), c.cfg.Tiles.Quality)
	path, err := store.Save(filepath.Base(output), img)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to %s\n", kind, path)
	return nil
}

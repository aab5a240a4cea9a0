package slidecmd

import (
	"context"
	"fmt"

	"github.com/pathomation/pma-go/internal/report"
	"github.com/pathomation/pma-go/pma"
	"github.com/spf13/cobra"
)

// NewInfoCmd creates the info command
func NewInfoCmd() *cobra.Command {
	var format string
	var levels bool
	var minTiles int
	var uid bool

	cmd := &cobra.Command{
		Use:   "info <slide>",
		Short: "Show slide metadata",
		Long: `Show the dimensions, resolution, magnification and channel layout of a
slide. Slide paths are case sensitive.`,
		Example: `  # Summary as text
  pma info Reference/Aperio/CMU-1.svs

  # Include the zoom level table and emit YAML
  pma info Reference/Aperio/CMU-1.svs --levels --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			s, err := describeSlide(cmd.Context(), c, args[0], levels, minTiles)
			if err != nil {
				return err
			}
			if uid {
				if s.UID, err = c.client.UID(cmd.Context(), c.session, args[0]); err != nil {
					return err
				}
			}
			return report.PrintSlide(cmd.OutOrStdout(), s, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json, yaml)")
	cmd.Flags().BoolVar(&levels, "levels", false, "Include the zoom level table")
	cmd.Flags().IntVar(&minTiles, "min-tiles", 0, "Omit zoom levels with fewer tiles")
	cmd.Flags().BoolVar(&uid, "uid", false, "Look up the slide's unique identifier")

	return cmd
}

// NewZoomCmd creates the zoom command
func NewZoomCmd() *cobra.Command {
	var format string
	var minTiles int

	cmd := &cobra.Command{
		Use:   "zoom <slide>",
		Short: "Print the zoom levels of a slide",
		Long: `Print one row per zoom level with the pixel size, tile grid and
magnification of that level.`,
		Example: `  # Levels with at least 100 tiles, as CSV
  pma zoom Reference/Aperio/CMU-1.svs --min-tiles 100 --format csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if minTiles < 0 {
				return fmt.Errorf("--min-tiles must not be negative")
			}
			c, err := open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			levels, err := zoomLevels(cmd.Context(), c, args[0], minTiles)
			if err != nil {
				return err
			}
			return report.PrintLevels(cmd.OutOrStdout(), levels, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, csv, json, yaml)")
	cmd.Flags().IntVar(&minTiles, "min-tiles", 0, "Omit zoom levels with fewer tiles")

	return cmd
}

func describeSlide(ctx context.Context, c *conn, ref string, withLevels bool, minTiles int) (report.Slide, error) {
	info, err := c.client.SlideInfo(ctx, c.session, ref)
	if err != nil {
		return report.Slide{}, err
	}

	s := report.Slide{Path: ref}
	if s.TileSize, _, err = info.TileSize(); err != nil && c.cfg.Metadata.Strict {
		return s, err
	}
	if s.Pixels, err = c.client.PixelDimensions(ctx, c.session, ref, pma.NativeZoom); err != nil {
		return s, err
	}
	if s.Physical, err = c.client.PhysicalDimensions(ctx, c.session, ref); err != nil {
		return s, err
	}
	if s.Resolution, err = c.client.MicrometersPerPixel(ctx, c.session, ref, pma.NativeZoom); err != nil {
		return s, err
	}
	if s.MaxZoomLevel, err = c.client.MaxZoomLevel(ctx, c.session, ref); err != nil {
		return s, err
	}
	if s.Magnification, err = c.client.Magnification(ctx, c.session, ref, pma.NativeZoom, false); err != nil {
		return s, err
	}
	if s.Channels, err = c.client.NumberOfChannels(ctx, c.session, ref); err != nil {
		return s, err
	}
	if s.Layers, err = c.client.NumberOfLayers(ctx, c.session, ref); err != nil {
		return s, err
	}
	if s.Fluorescent, err = c.client.IsFluorescent(ctx, c.session, ref); err != nil {
		return s, err
	}
	if s.ZStack, err = c.client.IsZStack(ctx, c.session, ref); err != nil {
		return s, err
	}

	if withLevels {
		if s.Levels, err = zoomLevels(ctx, c, ref, minTiles); err != nil {
			return s, err
		}
	}
	return s, nil
}

// zoomLevels builds the rows of a zoom level table.
func zoomLevels(ctx context.Context, c *conn, ref string, minTiles int) ([]report.Level, error) {
	grids, err := c.client.ZoomLevels(ctx, c.session, ref, minTiles)
	if err != nil {
		return nil, err
	}
	levels := report.SortLevels(grids)
	for i := range levels {
		dims, err := c.client.PixelDimensions(ctx, c.session, ref, levels[i].Zoom)
		if err != nil {
			return nil, err
		}
		levels[i].Width, levels[i].Height = dims.Width, dims.Height
		if levels[i].Magnification, err = c.client.Magnification(ctx, c.session, ref, levels[i].Zoom, false); err != nil {
			return nil, err
		}
	}
	return levels, nil
}

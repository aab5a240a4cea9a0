package slidecmd

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"

	"github.com/pathomation/pma-go/internal/images"
	"github.com/pathomation/pma-go/pma"
	"github.com/spf13/cobra"
)

// rangeFlags are shared by the tiles and region commands.
type rangeFlags struct {
	zoom         int
	fromX, fromY int
	toX, toY     int
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.zoom, "zoom", "z", pma.NativeZoom, "Zoom level (-1 for the native resolution)")
	cmd.Flags().IntVar(&f.fromX, "from-x", 0, "First tile column")
	cmd.Flags().IntVar(&f.fromY, "from-y", 0, "First tile row")
	cmd.Flags().IntVar(&f.toX, "to-x", 0, "Tile column to stop before (0 for the right edge)")
	cmd.Flags().IntVar(&f.toY, "to-y", 0, "Tile row to stop before (0 for the bottom edge)")
}

func (f *rangeFlags) tileRange() pma.TileRange {
	return pma.TileRange{FromX: f.fromX, FromY: f.fromY, ToX: f.toX, ToY: f.toY, Zoom: f.zoom}
}

// NewTilesCmd creates the tiles command
func NewTilesCmd() *cobra.Command {
	var rf rangeFlags
	var outputDir string
	var concurrency int
	var format string
	var quality int

	cmd := &cobra.Command{
		Use:   "tiles <slide>",
		Short: "Download a range of tiles",
		Long: `Download the tiles of one zoom level into <out>/<slide>/z<zoom>/<x>_<y>.<ext>.
Tiles are fetched column by column; with a concurrency above one several
requests are in flight at once. The first failing tile stops the download.`,
		Example: `  # Every tile of zoom level 4
  pma tiles Reference/Aperio/CMU-1.svs --zoom 4 --out ./tiles

  # A 10x10 block at native resolution, 8 requests at a time
  pma tiles Reference/Aperio/CMU-1.svs --from-x 100 --from-y 100 --to-x 110 --to-y 110 --concurrency 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			opts := c.tileOptions()
			if concurrency > 0 {
				opts.Concurrency = concurrency
			}
			if format != "" {
				opts.Format = format
			}
			if quality > 0 {
				opts.Quality = quality
			}

			store := images.NewStore(outputDir, opts.Quality)
			n := 0
			for tile, err := range c.client.Tiles(cmd.Context(), c.session, args[0], rf.tileRange(), opts) {
				if err != nil {
					return fmt.Errorf("download stopped after %d tiles: %w", n, err)
				}
				if _, err := store.SaveTile(args[0], tile.Zoom, tile.X, tile.Y, tile.Image, opts.Format); err != nil {
					return err
				}
				n++
			}
			slog.Info("Tiles downloaded", "slide", args[0], "tiles", n, "dir", outputDir, "bytes", c.client.Downloaded(c.session))
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d tiles to %s\n", n, filepath.Join(outputDir, images.SafeName(args[0])))
			return nil
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVarP(&outputDir, "out", "o", "./tiles", "Output directory")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Parallel tile requests (0 for the configured value)")
	cmd.Flags().StringVar(&format, "format", "", "Tile format requested from the server (jpg, png)")
	cmd.Flags().IntVar(&quality, "quality", 0, "JPEG quality 1-100 (0 for the configured value)")

	return cmd
}

// NewRegionCmd creates the region command
func NewRegionCmd() *cobra.Command {
	var rf rangeFlags
	var output string

	cmd := &cobra.Command{
		Use:   "region <slide>",
		Short: "Stitch a range of tiles into one image",
		Long: `Fetch a range of tiles and stitch them into a single image. The output
format follows the extension of --out.`,
		Example: `  # The whole slide at zoom level 3
  pma region Reference/Aperio/CMU-1.svs --zoom 3 --out overview.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			img, err := stitch(cmd, c, args[0], rf.tileRange())
			if err != nil {
				return err
			}
			store := images.NewStore(filepath.Dir(output), c.cfg.Tiles.Quality)
			path, err := store.Save(filepath.Base(output), img)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %dx%d region to %s\n", img.Bounds().Dx(), img.Bounds().Dy(), path)
			return nil
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVarP(&output, "out", "o", "region.jpg", "Output image file")

	return cmd
}

// stitch resolves the open bounds of r and draws its tiles onto a mosaic.
func stitch(cmd *cobra.Command, c *conn, ref string, r pma.TileRange) (image.Image, error) {
	ctx := cmd.Context()
	info, err := c.client.SlideInfo(ctx, c.session, ref)
	if err != nil {
		return nil, err
	}
	tileW, tileH, err := info.TileSize()
	if err != nil {
		return nil, err
	}
	if r.Zoom == pma.NativeZoom {
		if r.Zoom, err = c.client.MaxZoomLevel(ctx, c.session, ref); err != nil {
			return nil, err
		}
	}
	grid, err := c.client.NumberOfTiles(ctx, c.session, ref, r.Zoom)
	if err != nil {
		return nil, err
	}
	if r.ToX <= 0 || r.ToX > grid.TilesX {
		r.ToX = grid.TilesX
	}
	if r.ToY <= 0 || r.ToY > grid.TilesY {
		r.ToY = grid.TilesY
	}
	if r.FromX >= r.ToX || r.FromY >= r.ToY {
		return nil, fmt.Errorf("empty tile range (%d, %d)-(%d, %d) at zoom %d", r.FromX, r.FromY, r.ToX, r.ToY, r.Zoom)
	}

	mosaic := images.NewMosaic(image.Rect(r.FromX, r.FromY, r.ToX, r.ToY), tileW, tileH)
	for tile, err := range c.client.Tiles(ctx, c.session, ref, r, c.tileOptions()) {
		if err != nil {
			return nil, err
		}
		mosaic.Add(tile.X, tile.Y, tile.Image)
	}
	return mosaic.Image(), nil
}

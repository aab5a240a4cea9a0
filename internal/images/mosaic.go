package images

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// Mosaic stitches tiles of one zoom level into a single image. Tiles are
// placed by their grid position relative to the range origin; edge tiles
// may be smaller than the nominal tile size.
type Mosaic struct {
	origin image.Point
	tileW  int
	tileH  int
	canvas *image.NRGBA
	extent image.Rectangle
}

// NewMosaic prepares a canvas for the tiles in grid (tile coordinates, Max
// exclusive) of tileW x tileH pixels each.
func NewMosaic(grid image.Rectangle, tileW, tileH int) *Mosaic {
	return &Mosaic{
		origin: grid.Min,
		tileW:  tileW,
		tileH:  tileH,
		canvas: imaging.New(grid.Dx()*tileW, grid.Dy()*tileH, color.White),
	}
}

// Add draws the tile at grid position (x, y). Tiles outside the grid are
// ignored.
func (m *Mosaic) Add(x, y int, tile image.Image) {
	at := image.Pt((x-m.origin.X)*m.tileW, (y-m.origin.Y)*m.tileH)
	r := tile.Bounds().Sub(tile.Bounds().Min).Add(at).Intersect(m.canvas.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(m.canvas, r, tile, tile.Bounds().Min, draw.Src)
	m.extent = m.extent.Union(r)
}

// Image returns the stitched image trimmed to the area tiles covered.
func (m *Mosaic) Image() *image.NRGBA {
	if m.extent.Empty() {
		return imaging.New(0, 0, color.White)
	}
	return imaging.Crop(m.canvas, m.extent)
}

// Package inventory builds, writes and reads tables describing every slide
// below a directory of an imaging service.
package inventory

import (
	"context"
	"errors"
	"log/slog"
	"path"

	"github.com/pathomation/pma-go/pma"
)

// Record describes one slide.
type Record struct {
	Path                 string  `json:"path" parquet:"path"`
	Directory            string  `json:"directory" parquet:"directory"`
	Extension            string  `json:"extension" parquet:"extension"`
	Width                int64   `json:"width" parquet:"width"`
	Height               int64   `json:"height" parquet:"height"`
	TileSize             int32   `json:"tile_size" parquet:"tile_size"`
	MaxZoomLevel         int32   `json:"max_zoom_level" parquet:"max_zoom_level"`
	MicrometresPerPixelX float64 `json:"micrometres_per_pixel_x" parquet:"micrometres_per_pixel_x"`
	MicrometresPerPixelY float64 `json:"micrometres_per_pixel_y" parquet:"micrometres_per_pixel_y"`
	Magnification        float64 `json:"magnification" parquet:"magnification"`
	Channels             int32   `json:"channels" parquet:"channels"`
	Layers               int32   `json:"layers" parquet:"layers"`
	Error                string  `json:"error,omitempty" parquet:"error,optional"`
}

// Source is the part of *pma.Client an inventory needs.
type Source interface {
	Walk(ctx context.Context, session, start string, fn pma.WalkFunc) error
	SlideInfo(ctx context.Context, session, ref string) (pma.SlideInfo, error)
}

var errLimit = errors.New("inventory limit reached")

// Collect walks start and describes every slide found. A slide whose
// metadata cannot be read is kept with Error set; only listing failures
// abort the walk. A limit above zero stops after that many slides.
func Collect(ctx context.Context, src Source, session, start string, limit int) ([]Record, error) {
	var records []Record
	err := src.Walk(ctx, session, start, func(dir string, slides []string) error {
		for _, ref := range slides {
			if limit > 0 && len(records) >= limit {
				return errLimit
			}
			info, err := src.SlideInfo(ctx, session, ref)
			if err != nil {
				slog.Warn("Failed to read slide metadata", "slide", ref, "error", err)
				records = append(records, Record{
					Path:      ref,
					Directory: dir,
					Extension: pma.SlideFileExtension(ref),
					Error:     err.Error(),
				})
				continue
			}
			records = append(records, Describe(dir, ref, info))
		}
		slog.Debug("Collected directory", "directory", dir, "slides", len(slides), "total", len(records))
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return records, err
	}
	return records, nil
}

// Describe turns a metadata document into a record. Missing fields are left
// at zero.
func Describe(dir, ref string, info pma.SlideInfo) Record {
	if dir == "" {
		dir = path.Dir(ref)
	}
	r := Record{
		Path:      ref,
		Directory: dir,
		Extension: pma.SlideFileExtension(ref),
	}
	if dims, err := info.PixelDimensions(pma.NativeZoom); err == nil {
		r.Width = int64(dims.Width)
		r.Height = int64(dims.Height)
	}
	if w, _, err := info.TileSize(); err == nil {
		r.TileSize = int32(w)
	}
	if z, err := info.MaxZoomLevel(); err == nil {
		r.MaxZoomLevel = int32(z)
	}
	if res, err := info.MicrometersPerPixel(pma.NativeZoom); err == nil {
		r.MicrometresPerPixelX = res.X
		r.MicrometresPerPixelY = res.Y
	}
	if mag, err := info.Magnification(pma.NativeZoom, false); err == nil {
		r.Magnification = mag
	}
	if n, err := info.NumberOfChannels(); err == nil {
		r.Channels = int32(n)
	}
	if n, err := info.NumberOfLayers(); err == nil {
		r.Layers = int32(n)
	}
	return r
}

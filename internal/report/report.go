// Package report renders slide metadata, zoom level tables and inventories
// as text, JSON, YAML or CSV.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pathomation/pma-go/internal/inventory"
	"github.com/pathomation/pma-go/pma"
	"gopkg.in/yaml.v3"
)

// Slide is the printable summary of one slide.
type Slide struct {
	Path          string         `json:"path" yaml:"path"`
	UID           string         `json:"uid,omitempty" yaml:"uid,omitempty"`
	Pixels        pma.Size       `json:"pixels" yaml:"pixels"`
	Physical      pma.Size       `json:"physical_um" yaml:"physical_um"`
	Resolution    pma.Resolution `json:"micrometres_per_pixel" yaml:"micrometres_per_pixel"`
	TileSize      int            `json:"tile_size" yaml:"tile_size"`
	MaxZoomLevel  int            `json:"max_zoom_level" yaml:"max_zoom_level"`
	Magnification float64        `json:"magnification" yaml:"magnification"`
	Channels      int            `json:"channels" yaml:"channels"`
	Layers        int            `json:"layers" yaml:"layers"`
	Fluorescent   bool           `json:"fluorescent" yaml:"fluorescent"`
	ZStack        bool           `json:"z_stack" yaml:"z_stack"`
	Levels        []Level        `json:"zoom_levels,omitempty" yaml:"zoom_levels,omitempty"`
}

// Level is one row of a zoom level table.
type Level struct {
	Zoom          int     `json:"zoom" yaml:"zoom"`
	Width         float64 `json:"width" yaml:"width"`
	Height        float64 `json:"height" yaml:"height"`
	TilesX        int     `json:"tiles_x" yaml:"tiles_x"`
	TilesY        int     `json:"tiles_y" yaml:"tiles_y"`
	Total         int     `json:"total" yaml:"total"`
	Magnification float64 `json:"magnification" yaml:"magnification"`
}

// SortLevels orders a zoom level map by level.
func SortLevels(levels map[int]pma.TileGrid) []Level {
	out := make([]Level, 0, len(levels))
	for z, g := range levels {
		out = append(out, Level{Zoom: z, TilesX: g.TilesX, TilesY: g.TilesY, Total: g.Total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Zoom < out[j].Zoom })
	return out
}

// Encode writes v as indented JSON or YAML.
func Encode(w io.Writer, v any, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func PrintSlide(w io.Writer, s Slide, format string) error {
	if format != "text" {
		return Encode(w, s, format)
	}
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Slide: %s\n", s.Path)
	fmt.Fprintln(w, "========================================")
	if s.UID != "" {
		fmt.Fprintf(w, "UID:            %s\n", s.UID)
	}
	fmt.Fprintf(w, "Dimensions:     %.0f x %.0f px\n", s.Pixels.Width, s.Pixels.Height)
	fmt.Fprintf(w, "Physical size:  %.1f x %.1f µm\n", s.Physical.Width, s.Physical.Height)
	fmt.Fprintf(w, "Resolution:     %.4f x %.4f µm/px\n", s.Resolution.X, s.Resolution.Y)
	fmt.Fprintf(w, "Magnification:  %gx\n", s.Magnification)
	fmt.Fprintf(w, "Tile size:      %d\n", s.TileSize)
	fmt.Fprintf(w, "Max zoom level: %d\n", s.MaxZoomLevel)
	fmt.Fprintf(w, "Channels:       %d (fluorescent: %t)\n", s.Channels, s.Fluorescent)
	fmt.Fprintf(w, "Layers:         %d (z-stack: %t)\n", s.Layers, s.ZStack)
	if len(s.Levels) > 0 {
		fmt.Fprintln(w)
		return PrintLevels(w, s.Levels, "text")
	}
	return nil
}

// PrintLevels renders a zoom level table as text, JSON, YAML or CSV.
func PrintLevels(w io.Writer, levels []Level, format string) error {
	switch format {
	case "text":
		fmt.Fprintf(w, "%-5s %12s %12s %8s %8s %10s %6s\n", "Zoom", "Width", "Height", "TilesX", "TilesY", "Total", "Mag")
		for _, l := range levels {
			fmt.Fprintf(w, "%-5d %12.0f %12.0f %8d %8d %10d %5gx\n", l.Zoom, l.Width, l.Height, l.TilesX, l.TilesY, l.Total, l.Magnification)
		}
		return nil
	case "csv":
		writer := csv.NewWriter(w)
		if err := writer.Write([]string{"zoom", "width", "height", "tiles_x", "tiles_y", "total", "magnification"}); err != nil {
			return err
		}
		for _, l := range levels {
			row := []string{
				strconv.Itoa(l.Zoom),
				strconv.FormatFloat(l.Width, 'f', -1, 64),
				strconv.FormatFloat(l.Height, 'f', -1, 64),
				strconv.Itoa(l.TilesX),
				strconv.Itoa(l.TilesY),
				strconv.Itoa(l.Total),
				strconv.FormatFloat(l.Magnification, 'f', -1, 64),
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	default:
		return Encode(w, levels, format)
	}
}

// PrintInventory renders an inventory summary (text, JSON, YAML) or the
// records themselves (CSV).
func PrintInventory(w io.Writer, records []inventory.Record, format string) error {
	summary := inventory.Summarize(records)
	switch format {
	case "text":
		fmt.Fprintln(w, "========================================")
		fmt.Fprintln(w, "Slide Inventory")
		fmt.Fprintln(w, "========================================")
		fmt.Fprintf(w, "Slides:      %d\n", summary.Slides)
		fmt.Fprintf(w, "Failed:      %d\n", summary.Failed)
		fmt.Fprintf(w, "Gigapixels:  %.2f\n", summary.Gigapixels)
		if summary.Largest != "" {
			fmt.Fprintf(w, "Largest:     %s\n", summary.Largest)
		}
		fmt.Fprintln(w, "\nBy extension:")
		for _, ext := range summary.Extensions() {
			fmt.Fprintf(w, "  %-8s %d\n", ext, summary.ByExtension[ext])
		}
		mags := make([]string, 0, len(summary.ByMagnification))
		for m := range summary.ByMagnification {
			mags = append(mags, m)
		}
		sort.Strings(mags)
		fmt.Fprintln(w, "\nBy magnification:")
		for _, m := range mags {
			fmt.Fprintf(w, "  %-8s %d\n", m, summary.ByMagnification[m])
		}
		return nil
	case "csv":
		writer := csv.NewWriter(w)
		header := []string{"path", "directory", "extension", "width", "height", "tile_size", "max_zoom_level", "mpp_x", "mpp_y", "magnification", "channels", "layers", "error"}
		if err := writer.Write(header); err != nil {
			return err
		}
		for _, r := range records {
			row := []string{
				r.Path,
				r.Directory,
				r.Extension,
				strconv.FormatInt(r.Width, 10),
				strconv.FormatInt(r.Height, 10),
				strconv.Itoa(int(r.TileSize)),
				strconv.Itoa(int(r.MaxZoomLevel)),
				strconv.FormatFloat(r.MicrometresPerPixelX, 'f', -1, 64),
				strconv.FormatFloat(r.MicrometresPerPixelY, 'f', -1, 64),
				strconv.FormatFloat(r.Magnification, 'f', -1, 64),
				strconv.Itoa(int(r.Channels)),
				strconv.Itoa(int(r.Layers)),
				r.Error,
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	default:
		return Encode(w, summary, format)
	}
}

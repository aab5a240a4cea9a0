package pma

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SlideInfo is the metadata document the service returns for one slide. It
// is kept as decoded JSON; the methods below read the fields they need.
type SlideInfo map[string]any

// Size is a width/height pair, in pixels or micrometres depending on origin.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Resolution is the physical size of one pixel, in micrometres.
type Resolution struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// TileGrid is the number of tiles covering a slide at one zoom level.
type TileGrid struct {
	TilesX int `json:"tiles_x" yaml:"tiles_x"`
	TilesY int `json:"tiles_y" yaml:"tiles_y"`
	Total  int `json:"total" yaml:"total"`
}

// Int reads key as an integer. Whole floats and numeric strings are accepted.
func (s SlideInfo) Int(key string) (int, error) {
	v, ok := s[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s", ErrFieldMissing, key)
	}
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		if f, err := n.Float64(); err == nil && f == math.Trunc(f) {
			return int(f), nil
		}
	case float64:
		if n == math.Trunc(n) {
			return int(n), nil
		}
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s has non-integer value %v", ErrFieldMissing, key, v)
}

// Float reads key as a floating point number.
func (s SlideInfo) Float(key string) (float64, error) {
	v, ok := s[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s", ErrFieldMissing, key)
	}
	switch n := v.(type) {
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f, nil
		}
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %s has non-numeric value %v", ErrFieldMissing, key, v)
}

// Text reads key as a string.
func (s SlideInfo) Text(key string) (string, error) {
	v, ok := s[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", ErrFieldMissing, key)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	}
	return fmt.Sprint(v), nil
}

// MaxZoomLevel prefers MaxZoomLevel and falls back to NumberOfZoomLevels.
// When neither parses it returns 0 with ErrFieldMissing.
func (s SlideInfo) MaxZoomLevel() (int, error) {
	if z, err := s.Int("MaxZoomLevel"); err == nil {
		return z, nil
	}
	z, err := s.Int("NumberOfZoomLevels")
	if err != nil {
		return 0, fmt.Errorf("%w: neither MaxZoomLevel nor NumberOfZoomLevels is usable", ErrFieldMissing)
	}
	return z, nil
}

// TileSize returns the tile edge length, used for both axes.
func (s SlideInfo) TileSize() (int, int, error) {
	sz, err := s.Int("TileSize")
	if err != nil {
		return 0, 0, err
	}
	if sz <= 0 {
		return 0, 0, fmt.Errorf("%w: TileSize is %d", ErrFieldMissing, sz)
	}
	return sz, sz, nil
}

// zoomFactor returns 2^(zoom-max); NativeZoom and max both give 1. Levels
// outside [0, max] other than NativeZoom fail with ErrInvalidZoom.
func (s SlideInfo) zoomFactor(zoom int) (float64, error) {
	maxZoom, err := s.MaxZoomLevel()
	if err != nil {
		return 0, err
	}
	if zoom < NativeZoom || zoom > maxZoom {
		return 0, fmt.Errorf("%w: %d (max %d)", ErrInvalidZoom, zoom, maxZoom)
	}
	if zoom == NativeZoom || zoom == maxZoom {
		return 1, nil
	}
	return math.Pow(2, float64(zoom-maxZoom)), nil
}

// PixelDimensions returns the image size at zoom, native size scaled by
// 2^(zoom-max).
func (s SlideInfo) PixelDimensions(zoom int) (Size, error) {
	factor, err := s.zoomFactor(zoom)
	if err != nil {
		return Size{}, err
	}
	w, err := s.Int("Width")
	if err != nil {
		return Size{}, err
	}
	h, err := s.Int("Height")
	if err != nil {
		return Size{}, err
	}
	return Size{Width: float64(w) * factor, Height: float64(h) * factor}, nil
}

// MicrometersPerPixel returns the pixel pitch at zoom. Lower zoom levels
// cover more tissue per pixel, so the native values are divided by the same
// factor that shrinks the pixel dimensions.
func (s SlideInfo) MicrometersPerPixel(zoom int) (Resolution, error) {
	factor, err := s.zoomFactor(zoom)
	if err != nil {
		return Resolution{}, err
	}
	x, err := s.Float("MicrometresPerPixelX")
	if err != nil {
		return Resolution{}, err
	}
	y, err := s.Float("MicrometresPerPixelY")
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{X: x / factor, Y: y / factor}, nil
}

// TileGrid returns how many tileW x tileH tiles cover the slide at zoom.
func (s SlideInfo) TileGrid(zoom, tileW, tileH int) (TileGrid, error) {
	if tileW <= 0 || tileH <= 0 {
		return TileGrid{}, fmt.Errorf("invalid tile size %dx%d", tileW, tileH)
	}
	dims, err := s.PixelDimensions(zoom)
	if err != nil {
		return TileGrid{}, err
	}
	x := int(math.Ceil(dims.Width / float64(tileW)))
	y := int(math.Ceil(dims.Height / float64(tileH)))
	return TileGrid{TilesX: x, TilesY: y, Total: x * y}, nil
}

// PhysicalDimensions returns the scanned area in micrometres. It does not
// depend on zoom level.
func (s SlideInfo) PhysicalDimensions() (Size, error) {
	dims, err := s.PixelDimensions(NativeZoom)
	if err != nil {
		return Size{}, err
	}
	res, err := s.MicrometersPerPixel(NativeZoom)
	if err != nil {
		return Size{}, err
	}
	return Size{Width: dims.Width * res.X, Height: dims.Height * res.Y}, nil
}

// ZoomLevels maps every zoom level whose grid holds more than minTiles tiles
// to that grid. Keys are the original level numbers.
func (s SlideInfo) ZoomLevels(tileW, tileH, minTiles int) (map[int]TileGrid, error) {
	maxZoom, err := s.MaxZoomLevel()
	if err != nil {
		return nil, err
	}
	levels := make(map[int]TileGrid, maxZoom+1)
	for z := 0; z <= maxZoom; z++ {
		grid, err := s.TileGrid(z, tileW, tileH)
		if err != nil {
			return nil, err
		}
		if grid.Total > minTiles {
			levels[z] = grid
		}
	}
	return levels, nil
}

// Magnification converts the horizontal pixel pitch at zoom into an
// objective magnification, taking 0.25 µm/px as 40x. Unless exact is set the
// result is stepped to realistic objective values. A pitch of zero or less
// gives 0.
func (s SlideInfo) Magnification(zoom int, exact bool) (float64, error) {
	res, err := s.MicrometersPerPixel(zoom)
	if err != nil {
		return 0, err
	}
	return magnification(res.X, exact), nil
}

func magnification(ppm float64, exact bool) float64 {
	if ppm <= 0 {
		return 0
	}
	ratio := ppm / 0.25
	if exact {
		return 40 / ratio
	}
	step := math.RoundToEven(ratio)
	if step == 0 {
		return math.RoundToEven(40 / ratio)
	}
	return math.RoundToEven(40 / step)
}

// layers returns TimeFrames[0].Layers.
func (s SlideInfo) layers() ([]any, error) {
	frames, ok := s["TimeFrames"].([]any)
	if !ok || len(frames) == 0 {
		return nil, fmt.Errorf("%w: TimeFrames", ErrFieldMissing)
	}
	frame, ok := frames[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: TimeFrames[0]", ErrFieldMissing)
	}
	layers, ok := frame["Layers"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: TimeFrames[0].Layers", ErrFieldMissing)
	}
	return layers, nil
}

// NumberOfLayers counts the z-stack layers of the first time frame.
func (s SlideInfo) NumberOfLayers() (int, error) {
	layers, err := s.layers()
	if err != nil {
		return 0, err
	}
	return len(layers), nil
}

// NumberOfChannels counts the channels of the first layer of the first time
// frame. Brightfield slides have one.
func (s SlideInfo) NumberOfChannels() (int, error) {
	layers, err := s.layers()
	if err != nil {
		return 0, err
	}
	if len(layers) == 0 {
		return 0, fmt.Errorf("%w: TimeFrames[0].Layers[0]", ErrFieldMissing)
	}
	layer, ok := layers[0].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("%w: TimeFrames[0].Layers[0]", ErrFieldMissing)
	}
	channels, ok := layer["Channels"].([]any)
	if !ok {
		return 0, fmt.Errorf("%w: TimeFrames[0].Layers[0].Channels", ErrFieldMissing)
	}
	return len(channels), nil
}

func (s SlideInfo) IsFluorescent() (bool, error) {
	n, err := s.NumberOfChannels()
	return n > 1, err
}

func (s SlideInfo) IsMultiLayer() (bool, error) {
	n, err := s.NumberOfLayers()
	return n > 1, err
}

// IsZStack is IsMultiLayer under its microscopy name.
func (s SlideInfo) IsZStack() (bool, error) {
	return s.IsMultiLayer()
}

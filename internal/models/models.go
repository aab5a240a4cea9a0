package models

import (
	"time"

	"github.com/pathomation/pma-go/pma"
)

// SessionInfo describes a registered imaging service session.
type SessionInfo struct {
	ID           string    `json:"id"`
	BaseURL      string    `json:"base_url"`
	Downloaded   int64     `json:"downloaded_bytes"`
	RegisteredAt time.Time `json:"registered_at"`
	Default      bool      `json:"default"`
}

// Listing is the content of one directory.
type Listing struct {
	Path        string   `json:"path"`
	Directories []string `json:"directories"`
	Slides      []string `json:"slides,omitempty"`
}

// SlideInfo is the metadata document of a slide together with values
// derived from it.
type SlideInfo struct {
	Slide         string         `json:"slide"`
	Pixels        pma.Size       `json:"pixels"`
	Physical      pma.Size       `json:"physical_um"`
	Resolution    pma.Resolution `json:"micrometres_per_pixel"`
	MaxZoomLevel  int            `json:"max_zoom_level"`
	Magnification float64        `json:"magnification"`
	Metadata      pma.SlideInfo  `json:"metadata"`
}

// ZoomLevels maps zoom level to tile grid for one slide.
type ZoomLevels struct {
	Slide    string               `json:"slide"`
	MinTiles int                  `json:"min_tiles"`
	Levels   map[int]pma.TileGrid `json:"levels"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

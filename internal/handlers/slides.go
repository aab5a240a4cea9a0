package handlers

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/pathomation/pma-go/internal/models"
	"github.com/pathomation/pma-go/pma"
)

func (h *Handler) HandleDirectories(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("path")
	session := h.sessionFor(r)

	var (
		dirs []string
		err  error
	)
	if dir == "" || dir == "/" {
		dir = "/"
		dirs, err = h.svc.RootDirectories(r.Context(), session)
	} else {
		dirs, err = h.svc.Directories(r.Context(), session, dir)
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, models.Listing{Path: dir, Directories: dirs})
}

func (h *Handler) HandleSlides(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("path")
	if dir == "" {
		h.writeError(w, "path is required", http.StatusBadRequest)
		return
	}
	slides, err := h.svc.Slides(r.Context(), h.sessionFor(r), dir)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, models.Listing{Path: dir, Directories: []string{}, Slides: slides})
}

func (h *Handler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	slide := r.URL.Query().Get("slide")
	if slide == "" {
		h.writeError(w, "slide is required", http.StatusBadRequest)
		return
	}
	info, err := h.svc.SlideInfo(r.Context(), h.sessionFor(r), slide)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	// Derived values degrade to zero when the document lacks a field.
	resp := models.SlideInfo{Slide: slide, Metadata: info}
	resp.Pixels, _ = info.PixelDimensions(pma.NativeZoom)
	resp.Physical, _ = info.PhysicalDimensions()
	resp.Resolution, _ = info.MicrometersPerPixel(pma.NativeZoom)
	resp.MaxZoomLevel, _ = info.MaxZoomLevel()
	resp.Magnification, _ = info.Magnification(pma.NativeZoom, false)
	h.writeJSON(w, resp)
}

func (h *Handler) HandleZoomLevels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	slide := q.Get("slide")
	if slide == "" {
		h.writeError(w, "slide is required", http.StatusBadRequest)
		return
	}
	minTiles := 0
	if v := q.Get("min_tiles"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, "min_tiles must be a non-negative integer", http.StatusBadRequest)
			return
		}
		minTiles = n
	}

	levels, err := h.svc.ZoomLevels(r.Context(), h.sessionFor(r), slide, minTiles)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, models.ZoomLevels{Slide: slide, MinTiles: minTiles, Levels: levels})
}

func (h *Handler) HandleTile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	slide := q.Get("slide")
	if slide == "" {
		h.writeError(w, "slide is required", http.StatusBadRequest)
		return
	}
	x, errX := strconv.Atoi(q.Get("x"))
	y, errY := strconv.Atoi(q.Get("y"))
	if errX != nil || errY != nil || x < 0 || y < 0 {
		h.writeError(w, "x and y must be non-negative integers", http.StatusBadRequest)
		return
	}
	zoom := pma.NativeZoom
	if v := q.Get("z"); v != "" {
		z, err := strconv.Atoi(v)
		if err != nil || z < pma.NativeZoom {
			h.writeError(w, "z must be a zoom level", http.StatusBadRequest)
			return
		}
		zoom = z
	}

	img, err := h.svc.Tile(r.Context(), h.sessionFor(r), slide, x, y, zoom, h.tileOpts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	quality := h.tileOpts.Quality
	if quality <= 0 || quality > 100 {
		quality = 95
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		h.writeError(w, "Failed to encode tile: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("Unable to write tile", "slide", slide, "err", err)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pathomation/pma-go/internal/models"
	"github.com/pathomation/pma-go/pma"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	lastZoom atomic.Int64
}

func (s *stubService) Sessions() []pma.Session {
	return []pma.Session{{ID: "s1", BaseURL: "https://core.example.org/", RegisteredAt: time.Unix(0, 0).UTC()}}
}

func (s *stubService) Downloaded(string) int64 { return 42 }

func (s *stubService) BaseURL(session string) (string, error) {
	if session == pma.LiteSessionID {
		return pma.DefaultLiteURL, nil
	}
	return "", pma.ErrInvalidSession
}

func (s *stubService) RootDirectories(context.Context, string) ([]string, error) {
	return []string{"Reference"}, nil
}

func (s *stubService) Directories(_ context.Context, _ string, dir string) ([]string, error) {
	if dir != "Reference" {
		return nil, fmt.Errorf("%w: %s", pma.ErrDirectoryNotFound, dir)
	}
	return []string{"Reference/Aperio"}, nil
}

func (s *stubService) Slides(_ context.Context, session, dir string) ([]string, error) {
	if session == "expired" {
		return nil, pma.ErrInvalidSession
	}
	return []string{dir + "/CMU-1.svs"}, nil
}

func (s *stubService) SlideInfo(_ context.Context, _ string, ref string) (pma.SlideInfo, error) {
	switch ref {
	case "Reference/CMU-1.svs":
		return pma.SlideInfo{
			"Width":                json.Number("100000"),
			"Height":               json.Number("80000"),
			"TileSize":             json.Number("256"),
			"MaxZoomLevel":         json.Number("9"),
			"MicrometresPerPixelX": json.Number("0.25"),
			"MicrometresPerPixelY": json.Number("0.25"),
		}, nil
	case "down.svs":
		return nil, fmt.Errorf("%w: connection refused", pma.ErrUnreachable)
	default:
		return nil, pma.ErrSlideNotFound
	}
}

func (s *stubService) ZoomLevels(_ context.Context, _ string, ref string, minTiles int) (map[int]pma.TileGrid, error) {
	if ref != "Reference/CMU-1.svs" {
		return nil, pma.ErrSlideNotFound
	}
	return map[int]pma.TileGrid{9: {TilesX: 391, TilesY: 313, Total: 122383}}, nil
}

func (s *stubService) Tile(_ context.Context, _ string, ref string, x, y, zoom int, _ pma.TileOptions) (image.Image, error) {
	s.lastZoom.Store(int64(zoom))
	if zoom > 9 {
		return nil, fmt.Errorf("%w: %d (max 9)", pma.ErrInvalidZoom, zoom)
	}
	switch ref {
	case "Reference/CMU-1.svs":
	case "Reference/wide.svs":
		return imaging.New(70000, 1, color.NRGBA{A: 255}), nil
	default:
		return nil, pma.ErrSlideNotFound
	}
	return imaging.New(4, 4, color.NRGBA{R: uint8(x), G: uint8(y), A: 255}), nil
}

func newServer(t *testing.T, session string) (*httptest.Server, *stubService) {
	t.Helper()
	svc := &stubService{}
	mux := http.NewServeMux()
	New(svc, session, pma.TileOptions{Quality: 90}).Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, svc
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHandleSessions(t *testing.T) {
	srv, _ := newServer(t, pma.LiteSessionID)

	var sessions []models.SessionInfo
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/sessions", &sessions))
	require.Len(t, sessions, 2)
	assert.Equal(t, "s1", sessions[0].ID)
	assert.Equal(t, int64(42), sessions[0].Downloaded)
	assert.False(t, sessions[0].Default)
	assert.Equal(t, pma.LiteSessionID, sessions[1].ID)
	assert.True(t, sessions[1].Default)
}

func TestHandleListings(t *testing.T) {
	srv, _ := newServer(t, "s1")

	var roots models.Listing
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/directories", &roots))
	assert.Equal(t, models.Listing{Path: "/", Directories: []string{"Reference"}}, roots)

	var sub models.Listing
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/directories?path=Reference", &sub))
	assert.Equal(t, []string{"Reference/Aperio"}, sub.Directories)

	var slides models.Listing
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/slides?path=Reference", &slides))
	assert.Equal(t, []string{"Reference/CMU-1.svs"}, slides.Slides)
}

func TestHandleInfo(t *testing.T) {
	srv, _ := newServer(t, "s1")

	var info models.SlideInfo
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/info?slide=Reference/CMU-1.svs", &info))
	assert.Equal(t, pma.Size{Width: 100000, Height: 80000}, info.Pixels)
	assert.Equal(t, 9, info.MaxZoomLevel)
	assert.Equal(t, 40.0, info.Magnification)
	assert.InDelta(t, 25000, info.Physical.Width, 1e-9)
}

func TestHandleZoomLevels(t *testing.T) {
	srv, _ := newServer(t, "s1")

	var levels models.ZoomLevels
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/zoomlevels?slide=Reference/CMU-1.svs&min_tiles=10", &levels))
	assert.Equal(t, 10, levels.MinTiles)
	assert.Equal(t, pma.TileGrid{TilesX: 391, TilesY: 313, Total: 122383}, levels.Levels[9])

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/zoomlevels?slide=x&min_tiles=-1", nil))
}

func TestHandleTile(t *testing.T) {
	srv, svc := newServer(t, "s1")

	resp, err := http.Get(srv.URL + "/api/tile?slide=Reference/CMU-1.svs&x=3&y=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, int64(pma.NativeZoom), svc.lastZoom.Load())

	img, err := imaging.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/tile?slide=Reference/CMU-1.svs&x=a&y=0", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/tile?slide=Reference/CMU-1.svs&x=0&y=0&z=-2", nil))
}

func TestHandleTileEncodeFailure(t *testing.T) {
	srv, _ := newServer(t, "s1")

	resp, err := http.Get(srv.URL + "/api/tile?slide=Reference/wide.svs&x=0&y=0")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusInternalServerError, body.Status)
	assert.Contains(t, body.Error, "Failed to encode tile")
}

func TestErrorStatus(t *testing.T) {
	srv, _ := newServer(t, "s1")

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "missing slide param", path: "/api/info", status: http.StatusBadRequest},
		{name: "unknown slide", path: "/api/info?slide=nope.svs", status: http.StatusNotFound},
		{name: "unknown directory", path: "/api/directories?path=Nope", status: http.StatusNotFound},
		{name: "expired session", path: "/api/slides?path=Reference&session=expired", status: http.StatusUnauthorized},
		{name: "service down", path: "/api/info?slide=down.svs", status: http.StatusBadGateway},
		{name: "missing path", path: "/api/slides", status: http.StatusBadRequest},
		{name: "zoom above max", path: "/api/tile?slide=Reference/CMU-1.svs&x=0&y=0&z=12", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body models.ErrorResponse
			assert.Equal(t, tt.status, getJSON(t, srv.URL+tt.path, &body))
			assert.Equal(t, tt.status, body.Status)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestHealthcheck(t *testing.T) {
	srv, _ := newServer(t, "s1")
	resp, err := http.Get(srv.URL + "/healthcheck")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

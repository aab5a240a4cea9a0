package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"log/slog"
	"net/http"

	"github.com/pathomation/pma-go/internal/models"
	"github.com/pathomation/pma-go/pma"
)

// Service is the part of *pma.Client the gateway exposes.
type Service interface {
	Sessions() []pma.Session
	Downloaded(session string) int64
	BaseURL(session string) (string, error)
	RootDirectories(ctx context.Context, session string) ([]string, error)
	Directories(ctx context.Context, session, dir string) ([]string, error)
	Slides(ctx context.Context, session, dir string) ([]string, error)
	SlideInfo(ctx context.Context, session, ref string) (pma.SlideInfo, error)
	ZoomLevels(ctx context.Context, session, ref string, minTiles int) (map[int]pma.TileGrid, error)
	Tile(ctx context.Context, session, ref string, x, y, zoom int, opts pma.TileOptions) (image.Image, error)
}

// Handler serves a local JSON view of one imaging service session.
type Handler struct {
	svc      Service
	session  string
	tileOpts pma.TileOptions
}

func New(svc Service, session string, tileOpts pma.TileOptions) *Handler {
	return &Handler{
		svc:      svc,
		session:  session,
		tileOpts: tileOpts,
	}
}

// Routes registers every gateway endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.HandleSessions)
	mux.HandleFunc("GET /api/directories", h.HandleDirectories)
	mux.HandleFunc("GET /api/slides", h.HandleSlides)
	mux.HandleFunc("GET /api/info", h.HandleInfo)
	mux.HandleFunc("GET /api/zoomlevels", h.HandleZoomLevels)
	mux.HandleFunc("GET /api/tile", h.HandleTile)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
}

// sessionFor returns the session named by the request, or the default one.
func (h *Handler) sessionFor(r *http.Request) string {
	if s := r.URL.Query().Get("session"); s != "" {
		return s
	}
	return h.session
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Debug(message, "status", code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(models.ErrorResponse{Error: message, Status: code}); err != nil {
		slog.Error("Unable to encode error response", "err", err)
	}
}

// writeServiceError maps SDK errors onto HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	h.writeError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pma.ErrSlideNotFound), errors.Is(err, pma.ErrDirectoryNotFound), errors.Is(err, pma.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pma.ErrInvalidZoom):
		return http.StatusBadRequest
	case errors.Is(err, pma.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, pma.ErrUnreachable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

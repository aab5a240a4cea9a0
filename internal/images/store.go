package images

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Store writes slide images below a directory.
type Store struct {
	Dir     string
	Quality int
}

// NewStore creates a store writing JPEGs at quality (1..100, 0 for 95).
func NewStore(dir string, quality int) *Store {
	if quality <= 0 || quality > 100 {
		quality = 95
	}
	return &Store{Dir: dir, Quality: quality}
}

// TilePath returns where SaveTile puts tile (x, y) of slide at zoom.
func (s *Store) TilePath(slide string, zoom, x, y int, format string) string {
	return filepath.Join(s.Dir, SafeName(slide), fmt.Sprintf("z%d", zoom), fmt.Sprintf("%d_%d.%s", x, y, extension(format)))
}

// SaveTile writes one tile and returns its path.
func (s *Store) SaveTile(slide string, zoom, x, y int, img image.Image, format string) (string, error) {
	path := s.TilePath(slide, zoom, x, y, format)
	if err := s.save(path, img); err != nil {
		return "", err
	}
	slog.Debug("Saved tile", "slide", slide, "zoom", zoom, "x", x, "y", y, "path", path)
	return path, nil
}

// Save writes img as name (the extension picks the encoder) below the store
// directory and returns the full path.
func (s *Store) Save(name string, img image.Image) (string, error) {
	path := filepath.Join(s.Dir, name)
	if err := s.save(path, img); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) save(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(s.Quality)); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}
	return nil
}

// SafeName turns a slide reference into a single file name component.
func SafeName(slide string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	name := r.Replace(strings.Trim(strings.TrimSpace(slide), "/\\"))
	if name == "" {
		return "slide"
	}
	return name
}

func extension(format string) string {
	switch strings.ToLower(format) {
	case "png":
		return "png"
	default:
		return "jpg"
	}
}

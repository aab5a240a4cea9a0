package pma

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/pathomation/pma-go/internal/wire"
)

// SlideInfo returns the metadata document for ref, fetching it on the first
// request and serving it from the session's cache afterwards. Documents are
// never refreshed implicitly; use Refresh for that.
//
// Concurrent requests for the same document share one fetch. The fetch is
// detached from the caller's cancellation and bounded by the client timeout,
// so a caller that gives up does not fail the others waiting on it.
func (c *Client) SlideInfo(ctx context.Context, session, ref string) (SlideInfo, error) {
	ref = normalizeRef(ref)
	if info, ok := c.slides.Get(session, ref); ok {
		c.metrics.CacheLookup(true)
		return info, nil
	}
	c.metrics.CacheLookup(false)

	fetch := context.WithoutCancel(ctx)
	ch := c.inflight.DoChan(session+"\x00"+ref, func() (any, error) {
		return c.fetchSlideInfo(fetch, session, ref)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(SlideInfo), nil
	}
}

// Refresh drops the cached document for ref and fetches it again.
func (c *Client) Refresh(ctx context.Context, session, ref string) (SlideInfo, error) {
	c.slides.Evict(session, normalizeRef(ref))
	return c.SlideInfo(ctx, session, ref)
}

func (c *Client) fetchSlideInfo(ctx context.Context, session, ref string) (SlideInfo, error) {
	u, err := c.apiURL(session, false, "GetImageInfo",
		wire.Param{Key: "SessionID", Value: session},
		wire.Param{Key: "pathOrUid", Value: ref},
	)
	if err != nil {
		return nil, err
	}

	var info SlideInfo
	if err := c.getJSON(ctx, session, "GetImageInfo", u, &info); err != nil {
		return nil, serviceError("ImageInfo", ref, "slideRef", ErrSlideNotFound, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: empty metadata document for %s", ErrSlideNotFound, ref)
	}

	c.slides.Put(session, ref, info)
	c.logger.Debug("Cached slide info", "session_id", session, "slide", ref, "fields", len(info))
	return info, nil
}

// CachedSlides lists the slide references cached for session, oldest first.
func (c *Client) CachedSlides(session string) []string {
	return c.slides.Keys(session)
}

// TileSize returns the tile size used by session's server. Tile size is taken
// to be uniform per installation: the oldest cached document that reports one
// answers, and otherwise the slides of the first non-empty directory are
// fetched in order until one does, skipping slides the server cannot find.
// When no slide reports a tile size the error wraps ErrFieldMissing.
func (c *Client) TileSize(ctx context.Context, session string) (int, int, error) {
	if _, info, ok := c.slides.Find(session, hasTileSize); ok {
		return info.TileSize()
	}

	dir, err := c.FirstNonEmptyDirectory(ctx, session, "")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to find a slide to read tile size from: %w", err)
	}
	slides, err := c.Slides(ctx, session, dir)
	if err != nil {
		return 0, 0, err
	}
	for _, ref := range slides {
		info, err := c.SlideInfo(ctx, session, ref)
		if errors.Is(err, ErrSlideNotFound) {
			continue
		}
		if err != nil {
			return 0, 0, err
		}
		if hasTileSize(info) {
			return info.TileSize()
		}
	}
	return 0, 0, fmt.Errorf("%w: no slide in %s reports a TileSize", ErrFieldMissing, dir)
}

func hasTileSize(info SlideInfo) bool {
	_, _, err := info.TileSize()
	return err == nil
}

// derive fetches ref's document and computes a value from it. Missing fields
// degrade to the value fn returned plus a warning unless the client is strict.
func derive[T any](ctx context.Context, c *Client, session, ref, what string, fn func(SlideInfo) (T, error)) (T, error) {
	var zero T
	info, err := c.SlideInfo(ctx, session, ref)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrMetadataUnavailable, err)
	}
	v, err := fn(info)
	if err != nil {
		if errors.Is(err, ErrFieldMissing) && !c.strict {
			c.logger.Warn("Slide metadata incomplete", "slide", ref, "value", what, "error", err)
			return v, nil
		}
		return zero, err
	}
	return v, nil
}

// MaxZoomLevel returns the highest zoom level of ref, its native resolution.
func (c *Client) MaxZoomLevel(ctx context.Context, session, ref string) (int, error) {
	return derive(ctx, c, session, ref, "max zoom level", SlideInfo.MaxZoomLevel)
}

// PixelDimensions returns ref's size in pixels at zoom (NativeZoom for max).
func (c *Client) PixelDimensions(ctx context.Context, session, ref string, zoom int) (Size, error) {
	return derive(ctx, c, session, ref, "pixel dimensions", func(info SlideInfo) (Size, error) {
		return info.PixelDimensions(zoom)
	})
}

func (c *Client) MicrometersPerPixel(ctx context.Context, session, ref string, zoom int) (Resolution, error) {
	return derive(ctx, c, session, ref, "micrometres per pixel", func(info SlideInfo) (Resolution, error) {
		return info.MicrometersPerPixel(zoom)
	})
}

// NumberOfTiles returns the tile grid of ref at zoom using session's tile size.
func (c *Client) NumberOfTiles(ctx context.Context, session, ref string, zoom int) (TileGrid, error) {
	return derive(ctx, c, session, ref, "tile grid", func(info SlideInfo) (TileGrid, error) {
		tileW, tileH, err := c.TileSize(ctx, session)
		if err != nil {
			return TileGrid{}, err
		}
		return info.TileGrid(zoom, tileW, tileH)
	})
}

// PhysicalDimensions returns the scanned area of ref in micrometres.
func (c *Client) PhysicalDimensions(ctx context.Context, session, ref string) (Size, error) {
	return derive(ctx, c, session, ref, "physical dimensions", SlideInfo.PhysicalDimensions)
}

// ZoomLevels maps each zoom level of ref holding more than minTiles tiles to
// its tile grid.
func (c *Client) ZoomLevels(ctx context.Context, session, ref string, minTiles int) (map[int]TileGrid, error) {
	levels, err := derive(ctx, c, session, ref, "zoom levels", func(info SlideInfo) (map[int]TileGrid, error) {
		tileW, tileH, err := c.TileSize(ctx, session)
		if err != nil {
			return nil, err
		}
		return info.ZoomLevels(tileW, tileH, minTiles)
	})
	if levels == nil && err == nil {
		levels = map[int]TileGrid{}
	}
	return levels, err
}

// ZoomLevelList returns the keys of ZoomLevels in ascending order.
func (c *Client) ZoomLevelList(ctx context.Context, session, ref string, minTiles int) ([]int, error) {
	levels, err := c.ZoomLevels(ctx, session, ref, minTiles)
	if err != nil {
		return nil, err
	}
	list := make([]int, 0, len(levels))
	for z := range levels {
		list = append(list, z)
	}
	sort.Ints(list)
	return list, nil
}

// Magnification returns the objective magnification ref is seen at on zoom.
func (c *Client) Magnification(ctx context.Context, session, ref string, zoom int, exact bool) (float64, error) {
	return derive(ctx, c, session, ref, "magnification", func(info SlideInfo) (float64, error) {
		return info.Magnification(zoom, exact)
	})
}

func (c *Client) NumberOfChannels(ctx context.Context, session, ref string) (int, error) {
	return derive(ctx, c, session, ref, "channels", SlideInfo.NumberOfChannels)
}

func (c *Client) NumberOfLayers(ctx context.Context, session, ref string) (int, error) {
	return derive(ctx, c, session, ref, "layers", SlideInfo.NumberOfLayers)
}

func (c *Client) IsFluorescent(ctx context.Context, session, ref string) (bool, error) {
	return derive(ctx, c, session, ref, "fluorescence", SlideInfo.IsFluorescent)
}

func (c *Client) IsMultiLayer(ctx context.Context, session, ref string) (bool, error) {
	return derive(ctx, c, session, ref, "layers", SlideInfo.IsMultiLayer)
}

func (c *Client) IsZStack(ctx context.Context, session, ref string) (bool, error) {
	return c.IsMultiLayer(ctx, session, ref)
}

// SlideFileName returns the last element of ref, extension included.
func SlideFileName(ref string) string {
	return path.Base(strings.ReplaceAll(ref, "\\", "/"))
}

// SlideFileExtension returns the extension of ref including the dot.
func SlideFileExtension(ref string) string {
	return path.Ext(SlideFileName(ref))
}

// normalizeRef strips a single leading "/".
func normalizeRef(ref string) string {
	return strings.TrimPrefix(ref, "/")
}

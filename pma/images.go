package pma

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/pathomation/pma-go/internal/wire"
)

// liteViewerURL hosts the public viewer used for slides on a local instance.
const liteViewerURL = "http://free.pathomation.com/pma-view-lite/"

// TileOptions controls how tiles are rendered by the service and fetched.
type TileOptions struct {
	// Format is "jpg" (default) or "png".
	Format string
	// Quality ranges over 1..100; zero or less means 100.
	Quality int
	// Channels selects fluorescence channels, "0" by default.
	Channels  string
	Timeframe int
	Layer     int
	// Concurrency bounds parallel fetches in Tiles. One or less fetches
	// sequentially.
	Concurrency int
}

func (o TileOptions) withDefaults() TileOptions {
	if o.Format == "" {
		o.Format = "jpg"
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 100
	}
	if o.Channels == "" {
		o.Channels = "0"
	}
	return o
}

// TileURL returns the address of tile (x, y) of ref at zoom. The zoom level
// must be explicit here; Tile resolves NativeZoom before calling it.
func (c *Client) TileURL(session, ref string, x, y, zoom int, opts TileOptions) (string, error) {
	if zoom < 0 {
		return "", fmt.Errorf("invalid zoom level %d", zoom)
	}
	base, err := c.BaseURL(session)
	if err != nil {
		return "", err
	}
	opts = opts.withDefaults()
	return base + "tile?" + wire.Query(
		wire.Param{Key: "SessionID", Value: session},
		wire.Param{Key: "channels", Value: opts.Channels},
		wire.Param{Key: "timeframe", Value: strconv.Itoa(opts.Timeframe)},
		wire.Param{Key: "layer", Value: strconv.Itoa(opts.Layer)},
		wire.Param{Key: "pathOrUid", Value: ref},
		wire.Param{Key: "x", Value: strconv.Itoa(x)},
		wire.Param{Key: "y", Value: strconv.Itoa(y)},
		wire.Param{Key: "z", Value: strconv.Itoa(zoom)},
		wire.Param{Key: "format", Value: opts.Format},
		wire.Param{Key: "quality", Value: strconv.Itoa(opts.Quality)},
		wire.Param{Key: "cache", Value: strconv.FormatBool(c.tileCache)},
	), nil
}

func (c *Client) ThumbnailURL(session, ref string) (string, error) {
	return c.slideImageURL(session, "thumbnail", ref)
}

// BarcodeURL returns the address of the slide label image.
func (c *Client) BarcodeURL(session, ref string) (string, error) {
	return c.slideImageURL(session, "barcode", ref)
}

// LabelURL is BarcodeURL; the service serves labels from the barcode endpoint.
func (c *Client) LabelURL(session, ref string) (string, error) {
	return c.BarcodeURL(session, ref)
}

// ViewerURL returns a browser address that opens ref in the web viewer.
func (c *Client) ViewerURL(session, ref string) (string, error) {
	if session == LiteSessionID {
		return liteViewerURL + "?" + wire.Query(wire.Param{Key: "path", Value: ref}), nil
	}
	base, err := c.BaseURL(session)
	if err != nil {
		return "", err
	}
	return base + "viewer/index.htm?" + wire.Query(
		wire.Param{Key: "sessionID", Value: session},
		wire.Param{Key: "pathOrUid", Value: ref},
	), nil
}

func (c *Client) slideImageURL(session, endpoint, ref string) (string, error) {
	base, err := c.BaseURL(session)
	if err != nil {
		return "", err
	}
	return base + endpoint + "?" + wire.Query(
		wire.Param{Key: "SessionID", Value: session},
		wire.Param{Key: "pathOrUid", Value: ref},
	), nil
}

// Tile fetches and decodes tile (x, y) of ref at zoom. NativeZoom selects
// the slide's maximum zoom level.
func (c *Client) Tile(ctx context.Context, session, ref string, x, y, zoom int, opts TileOptions) (image.Image, error) {
	if zoom == NativeZoom {
		maxZoom, err := c.MaxZoomLevel(ctx, session, ref)
		if err != nil {
			return nil, err
		}
		zoom = maxZoom
	}
	u, err := c.TileURL(session, ref, x, y, zoom, opts)
	if err != nil {
		return nil, err
	}
	img, err := c.fetchImage(ctx, session, "tile", u)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tile (%d, %d) at zoom %d of %s: %w", x, y, zoom, ref, err)
	}
	c.metrics.Tile()
	return img, nil
}

func (c *Client) Thumbnail(ctx context.Context, session, ref string) (image.Image, error) {
	u, err := c.ThumbnailURL(session, ref)
	if err != nil {
		return nil, err
	}
	return c.fetchImage(ctx, session, "thumbnail", u)
}

func (c *Client) Barcode(ctx context.Context, session, ref string) (image.Image, error) {
	u, err := c.BarcodeURL(session, ref)
	if err != nil {
		return nil, err
	}
	return c.fetchImage(ctx, session, "barcode", u)
}

// Label is Barcode under the name most viewers use.
func (c *Client) Label(ctx context.Context, session, ref string) (image.Image, error) {
	return c.Barcode(ctx, session, ref)
}

func (c *Client) fetchImage(ctx context.Context, session, endpoint, u string) (image.Image, error) {
	body, err := c.fetchOK(ctx, session, endpoint, u)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", endpoint, err)
	}
	return img, nil
}

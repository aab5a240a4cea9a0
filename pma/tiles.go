package pma

import (
	"context"
	"image"
	"iter"

	"golang.org/x/sync/errgroup"
)

// TileRange selects tiles FromX..ToX-1 by FromY..ToY-1 at Zoom. A ToX or ToY
// of zero or less extends the range to the edge of the tile grid.
type TileRange struct {
	FromX, FromY int
	ToX, ToY     int
	Zoom         int
}

// Tile is one decoded tile and its position.
type Tile struct {
	X, Y  int
	Zoom  int
	Image image.Image
}

// Tiles returns a sequence over the tiles of r, column by column (all Y for
// one X before the next X). Each range over the sequence fetches afresh.
// Stopping the range or cancelling ctx stops fetching. With
// opts.Concurrency above one, tiles are fetched in parallel but still
// yielded in order. The first error is yielded once and ends the sequence.
func (c *Client) Tiles(ctx context.Context, session, ref string, r TileRange, opts TileOptions) iter.Seq2[Tile, error] {
	return func(yield func(Tile, error) bool) {
		coords, zoom, err := c.tileCoords(ctx, session, ref, r)
		if err != nil {
			yield(Tile{Zoom: r.Zoom}, err)
			return
		}
		if opts.Concurrency <= 1 {
			c.tilesSequential(ctx, session, ref, zoom, coords, opts, yield)
			return
		}
		c.tilesParallel(ctx, session, ref, zoom, coords, opts, yield)
	}
}

// tileCoords resolves the zoom level and open range bounds of r.
func (c *Client) tileCoords(ctx context.Context, session, ref string, r TileRange) ([]image.Point, int, error) {
	zoom := r.Zoom
	if zoom == NativeZoom {
		maxZoom, err := c.MaxZoomLevel(ctx, session, ref)
		if err != nil {
			return nil, 0, err
		}
		zoom = maxZoom
	}
	toX, toY := r.ToX, r.ToY
	if toX <= 0 || toY <= 0 {
		grid, err := c.NumberOfTiles(ctx, session, ref, zoom)
		if err != nil {
			return nil, 0, err
		}
		if toX <= 0 {
			toX = grid.TilesX
		}
		if toY <= 0 {
			toY = grid.TilesY
		}
	}

	var coords []image.Point
	for x := r.FromX; x < toX; x++ {
		for y := r.FromY; y < toY; y++ {
			coords = append(coords, image.Pt(x, y))
		}
	}
	return coords, zoom, nil
}

func (c *Client) tilesSequential(ctx context.Context, session, ref string, zoom int, coords []image.Point, opts TileOptions, yield func(Tile, error) bool) {
	for _, p := range coords {
		if err := ctx.Err(); err != nil {
			yield(Tile{X: p.X, Y: p.Y, Zoom: zoom}, err)
			return
		}
		img, err := c.Tile(ctx, session, ref, p.X, p.Y, zoom, opts)
		if !yield(Tile{X: p.X, Y: p.Y, Zoom: zoom, Image: img}, err) || err != nil {
			return
		}
	}
}

type tileResult struct {
	img image.Image
	err error
}

// tilesParallel fetches ahead of the consumer with at most opts.Concurrency
// requests in flight. A failed tile does not cancel the others; the consumer
// stops when it reaches the failure in order.
func (c *Client) tilesParallel(ctx context.Context, session, ref string, zoom int, coords []image.Point, opts TileOptions, yield func(Tile, error) bool) {
	ctx, cancel := context.WithCancel(ctx)
	var g errgroup.Group
	g.SetLimit(opts.Concurrency)

	slots := make([]chan tileResult, len(coords))
	for i := range slots {
		slots[i] = make(chan tileResult, 1)
	}

	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, p := range coords {
			if ctx.Err() != nil {
				return
			}
			g.Go(func() error {
				img, err := c.Tile(ctx, session, ref, p.X, p.Y, zoom, opts)
				slots[i] <- tileResult{img: img, err: err}
				return err
			})
		}
	}()

	defer func() {
		cancel()
		<-launched
		_ = g.Wait()
	}()

	for i, p := range coords {
		var res tileResult
		select {
		case res = <-slots[i]:
		case <-ctx.Done():
			yield(Tile{X: p.X, Y: p.Y, Zoom: zoom}, ctx.Err())
			return
		}
		if !yield(Tile{X: p.X, Y: p.Y, Zoom: zoom, Image: res.img}, res.err) || res.err != nil {
			return
		}
	}
}

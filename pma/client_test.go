package pma

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableURL refuses connections immediately.
const unreachableURL = "http://127.0.0.1:1/"

func connected(t *testing.T, opts ...Option) (*Client, *fakeService, string) {
	t.Helper()
	fake := newFakeService()
	srv := fake.start(t)
	c := New(append([]Option{WithLiteURL(unreachableURL)}, opts...)...)
	c.Register("s1", srv.URL)
	return c, fake, "s1"
}

func TestConnectAndDisconnect(t *testing.T) {
	ctx := context.Background()
	fake := newFakeService()
	srv := fake.start(t)
	c := New(WithLiteURL(unreachableURL))

	session, err := c.Connect(ctx, srv.URL, "alice", "s3cret pw")
	require.NoError(t, err)
	assert.Equal(t, "abc123", session)

	base, err := c.BaseURL(session)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/", base)
	require.Len(t, c.Sessions(), 1)
	assert.Positive(t, c.Downloaded(session))

	require.NoError(t, c.Disconnect(ctx, session))
	assert.Equal(t, int32(1), fake.deauthCalls.Load())
	assert.Empty(t, c.Sessions())

	_, err = c.BaseURL(session)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestConnectRejectedCredentials(t *testing.T) {
	srv := newFakeService().start(t)
	c := New(WithLiteURL(unreachableURL))

	session, err := c.Connect(context.Background(), srv.URL, "alice", "wrong")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Contains(t, err.Error(), "Invalid credentials")
	assert.Empty(t, session)
	assert.Empty(t, c.Sessions())
}

func TestConnectUnreachable(t *testing.T) {
	c := New(WithLiteURL(unreachableURL))

	_, err := c.Connect(context.Background(), unreachableURL+"core/", "alice", "s3cret pw")
	assert.ErrorIs(t, err, ErrUnreachable)

	_, err = c.IsLite(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestConnectLite(t *testing.T) {
	ctx := context.Background()
	lite := newFakeService()
	lite.lite = true
	liteSrv := lite.start(t)

	c := New(WithLiteURL(liteSrv.URL))
	session, err := c.Connect(ctx, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, LiteSessionID, session)

	base, err := c.BaseURL(LiteSessionID)
	require.NoError(t, err)
	assert.Equal(t, liteSrv.URL+"/", base)

	info, err := c.SlideInfo(ctx, LiteSessionID, "A/B/slide1.svs")
	require.NoError(t, err)
	assert.NotEmpty(t, info)
	assert.Positive(t, c.Downloaded(LiteSessionID))

	assert.NoError(t, c.Disconnect(ctx, LiteSessionID))
	assert.Empty(t, c.CachedSlides(LiteSessionID))

	core := newFakeService().start(t)
	notLite := New(WithLiteURL(core.URL))
	_, err = notLite.Connect(ctx, core.URL, "", "")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestVersionInfo(t *testing.T) {
	srv := newFakeService().start(t)
	c := New()

	version, err := c.VersionInfo(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "3.0.1.1234", version)
}

func TestRegisterThenBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{name: "adds trailing slash", url: "https://core.example.org/pma", expected: "https://core.example.org/pma/"},
		{name: "keeps trailing slash", url: "https://core.example.org/pma/", expected: "https://core.example.org/pma/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.Register("s1", tt.url)

			base, err := c.BaseURL("s1")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, base)
		})
	}
}

func TestUnregisterUnknownSession(t *testing.T) {
	c := New()
	c.Register("s1", "https://core.example.org/")

	c.Unregister("missing")
	assert.NoError(t, c.Disconnect(context.Background(), "missing"))
	assert.Len(t, c.Sessions(), 1)

	_, err := c.BaseURL("missing")
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = c.SlideInfo(context.Background(), "missing", "A/B/slide1.svs")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestResolveSession(t *testing.T) {
	ctx := context.Background()
	c := New(WithLiteURL(unreachableURL))

	_, err := c.ResolveSession(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := c.ResolveSession(ctx, "explicit")
	require.NoError(t, err)
	assert.Equal(t, "explicit", id)

	c.Register("first", "https://one.example.org/")
	c.Register("second", "https://two.example.org/")
	id, err = c.ResolveSession(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "first", id)

	lite := newFakeService()
	lite.lite = true
	liteSrv := lite.start(t)
	withLite := New(WithLiteURL(liteSrv.URL))
	id, err = withLite.ResolveSession(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, LiteSessionID, id)
}

func TestSlideInfoIsCached(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	c, fake, s := connected(t, WithRegisterer(reg))

	first, err := c.SlideInfo(ctx, s, "/A/B/slide1.svs")
	require.NoError(t, err)
	second, err := c.SlideInfo(ctx, s, "A/B/slide1.svs")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), fake.infoCalls.Load())
	assert.Equal(t, []string{"A/B/slide1.svs"}, c.CachedSlides(s))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.CacheMisses))

	_, err = c.Refresh(ctx, s, "/A/B/slide1.svs")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.infoCalls.Load())
}

func TestSlideInfoNotFound(t *testing.T) {
	ctx := context.Background()
	c, _, s := connected(t)

	_, err := c.SlideInfo(ctx, s, "A/B/missing.svs")
	assert.ErrorIs(t, err, ErrSlideNotFound)

	var serr *ServiceError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "Slide not found", serr.Message)
	assert.Contains(t, err.Error(), "case sensitive")
	assert.Empty(t, c.CachedSlides(s))

	_, err = c.MaxZoomLevel(ctx, s, "A/B/missing.svs")
	assert.ErrorIs(t, err, ErrMetadataUnavailable)
	assert.ErrorIs(t, err, ErrSlideNotFound)
}

func TestMissingFieldDegradesUnlessStrict(t *testing.T) {
	ctx := context.Background()

	lenient, _, s := connected(t)
	mag, err := lenient.Magnification(ctx, s, "A/B/nompp.svs", 3, false)
	require.NoError(t, err)
	assert.Zero(t, mag)

	dims, err := lenient.PixelDimensions(ctx, s, "A/B/nompp.svs", NativeZoom)
	require.NoError(t, err)
	assert.Equal(t, Size{Width: 1000, Height: 1000}, dims)

	strict, _, s := connected(t, WithStrictMetadata(true))
	_, err = strict.Magnification(ctx, s, "A/B/nompp.svs", 3, false)
	assert.ErrorIs(t, err, ErrFieldMissing)

	_, err = strict.NumberOfChannels(ctx, s, "A/B/slide1.svs")
	assert.ErrorIs(t, err, ErrFieldMissing)
}

func TestDerivedValues(t *testing.T) {
	ctx := context.Background()
	c, _, s := connected(t)
	ref := "A/B/slide1.svs"

	maxZoom, err := c.MaxZoomLevel(ctx, s, ref)
	require.NoError(t, err)
	assert.Equal(t, 9, maxZoom)

	grid, err := c.NumberOfTiles(ctx, s, ref, 9)
	require.NoError(t, err)
	assert.Equal(t, TileGrid{TilesX: 391, TilesY: 313, Total: 122383}, grid)

	levels, err := c.ZoomLevelList(ctx, s, ref, 100)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5, 6, 7, 8, 9}, levels)

	res, err := c.MicrometersPerPixel(ctx, s, ref, 8)
	require.NoError(t, err)
	assert.Equal(t, Resolution{X: 0.5, Y: 0.5}, res)

	physical, err := c.PhysicalDimensions(ctx, s, ref)
	require.NoError(t, err)
	assert.InDelta(t, 25000, physical.Width, 1e-9)

	mag, err := c.Magnification(ctx, s, ref, 9, false)
	require.NoError(t, err)
	assert.Equal(t, 40.0, mag)
}

func TestTileSize(t *testing.T) {
	ctx := context.Background()

	c, fake, s := connected(t)
	w, h, err := c.TileSize(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 256, w)
	assert.Equal(t, 256, h)
	assert.Equal(t, int32(1), fake.infoCalls.Load())

	cached, fake, s := connected(t)
	fake.addDoc("A/B/other.svs", map[string]any{"TileSize": 512, "MaxZoomLevel": 1})
	_, err = cached.SlideInfo(ctx, s, "A/B/other.svs")
	require.NoError(t, err)
	w, _, err = cached.TileSize(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 512, w)
	assert.Equal(t, int32(1), fake.infoCalls.Load())
}

func TestTileSizeSkipsDocumentsWithoutOne(t *testing.T) {
	ctx := context.Background()
	c, fake, s := connected(t)

	fake.addDoc("A/B/notile.svs", map[string]any{"Width": 10, "Height": 10, "MaxZoomLevel": 0})
	_, err := c.SlideInfo(ctx, s, "A/B/notile.svs")
	require.NoError(t, err)

	grid, err := c.NumberOfTiles(ctx, s, "A/B/slide1.svs", 9)
	require.NoError(t, err)
	assert.Equal(t, TileGrid{TilesX: 391, TilesY: 313, Total: 122383}, grid)

	levels, err := c.ZoomLevels(ctx, s, "A/B/notile.svs", 0)
	require.NoError(t, err)
	assert.Equal(t, map[int]TileGrid{0: {TilesX: 1, TilesY: 1, Total: 1}}, levels)
	assert.Equal(t, int32(2), fake.infoCalls.Load())
}

func TestTileSizeSkipsMissingSlides(t *testing.T) {
	c, fake, s := connected(t)
	fake.mu.Lock()
	fake.files["A/B"] = []string{"A/B/gone.svs", "A/B/small.svs"}
	fake.mu.Unlock()

	w, h, err := c.TileSize(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 256, w)
	assert.Equal(t, 256, h)
	assert.Equal(t, int32(2), fake.infoCalls.Load())
}

func TestTileSizeMissingEverywhere(t *testing.T) {
	ctx := context.Background()
	withoutTileSize := func(fake *fakeService) {
		fake.addDoc("A/B/slide1.svs", map[string]any{"Width": 100000, "Height": 80000, "MaxZoomLevel": 9})
		fake.addDoc("A/B/small.svs", map[string]any{"Width": 600, "Height": 300, "MaxZoomLevel": 2})
	}

	tests := []struct {
		name   string
		strict bool
	}{
		{name: "lenient", strict: false},
		{name: "strict", strict: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake, s := connected(t, WithStrictMetadata(tt.strict))
			withoutTileSize(fake)

			_, _, err := c.TileSize(ctx, s)
			require.ErrorIs(t, err, ErrFieldMissing)

			grid, err := c.NumberOfTiles(ctx, s, "A/B/slide1.svs", 9)
			levels, levelsErr := c.ZoomLevels(ctx, s, "A/B/small.svs", 0)
			if tt.strict {
				assert.ErrorIs(t, err, ErrFieldMissing)
				assert.ErrorIs(t, levelsErr, ErrFieldMissing)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TileGrid{}, grid)
			require.NoError(t, levelsErr)
			assert.Empty(t, levels)
			assert.NotNil(t, levels)
		})
	}
}

func TestSlideInfoSharedFetchSurvivesCancelledCaller(t *testing.T) {
	fake := newFakeService()
	gate := make(chan struct{})
	fake.infoGate = gate
	srv := fake.start(t)
	release := sync.OnceFunc(func() { close(gate) })
	t.Cleanup(release)

	c := New(WithLiteURL(unreachableURL))
	c.Register("s1", srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.SlideInfo(ctx, "s1", "A/B/slide1.svs")
		first <- err
	}()
	require.Eventually(t, func() bool { return fake.infoCalls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	type result struct {
		info SlideInfo
		err  error
	}
	second := make(chan result, 1)
	go func() {
		info, err := c.SlideInfo(context.Background(), "s1", "A/B/slide1.svs")
		second <- result{info, err}
	}()

	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	release()
	select {
	case res := <-second:
		require.NoError(t, res.err)
		w, err := res.info.Int("Width")
		require.NoError(t, err)
		assert.Equal(t, 100000, w)
	case <-time.After(5 * time.Second):
		t.Fatal("waiting caller did not return")
	}
	assert.Equal(t, int32(1), fake.infoCalls.Load())
	assert.Equal(t, []string{"A/B/slide1.svs"}, c.CachedSlides("s1"))
}

func TestDownloadedCountsEveryResponse(t *testing.T) {
	ctx := context.Background()
	c, _, s := connected(t)

	assert.Zero(t, c.Downloaded(s))
	_, err := c.Slides(ctx, s, "/A/B")
	require.NoError(t, err)
	afterList := c.Downloaded(s)
	assert.Positive(t, afterList)

	_, err = c.Thumbnail(ctx, s, "A/B/slide1.svs")
	require.NoError(t, err)
	assert.Greater(t, c.Downloaded(s), afterList)
}

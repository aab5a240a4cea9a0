package pma

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pathomation/pma-go/internal/metacache"
	"github.com/pathomation/pma-go/internal/metrics"
	"github.com/pathomation/pma-go/internal/registry"
	"github.com/pathomation/pma-go/internal/wire"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultLiteURL is where a local, credential-free instance listens.
	DefaultLiteURL = "http://localhost:54001/"

	// LiteSessionID is the reserved session identifier of the local instance.
	// The service never assigns it.
	LiteSessionID = "SDK.Go"

	// Caller identifies this SDK to the authenticate endpoint.
	Caller = "SDK.Go"

	// NativeZoom selects the slide's maximum (native resolution) zoom level
	// wherever a zoom level is accepted.
	NativeZoom = -1
)

// Session describes one registered connection.
type Session = registry.Session

// Client talks to one or more imaging service instances. It owns its session
// registry and slide metadata cache; several clients can coexist and each is
// safe for concurrent use.
type Client struct {
	httpClient *http.Client
	liteURL    string
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tileCache  bool
	strict     bool

	sessions *registry.Registry
	slides   *metacache.Cache[SlideInfo]
	inflight singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLiteURL changes the address checked for a local instance.
func WithLiteURL(u string) Option {
	return func(c *Client) { c.liteURL = withSlash(u) }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRegisterer records request, byte, cache and tile counters on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) { c.metrics = metrics.New(reg) }
}

// WithTileCache sets the cache flag sent with every tile request.
func WithTileCache(enabled bool) Option {
	return func(c *Client) { c.tileCache = enabled }
}

// WithStrictMetadata makes derived values fail with ErrFieldMissing instead
// of degrading to zero with a logged warning.
func WithStrictMetadata(strict bool) Option {
	return func(c *Client) { c.strict = strict }
}

// New creates a client with a 30 second HTTP timeout and the default lite URL.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		liteURL:   DefaultLiteURL,
		logger:    slog.Default(),
		tileCache: true,
		sessions:  registry.New(),
		slides:    metacache.New[SlideInfo](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LiteURL returns the address checked for a local instance.
func (c *Client) LiteURL() string {
	return c.liteURL
}

// apiURL builds an XML or JSON endpoint URL for session.
func (c *Client) apiURL(session string, xml bool, endpoint string, params ...wire.Param) (string, error) {
	base, err := c.BaseURL(session)
	if err != nil {
		return "", err
	}
	kind := "api/json/"
	if xml {
		kind = "api/xml/"
	}
	return base + kind + endpoint + "?" + wire.Query(params...), nil
}

// fetch performs a GET and returns the body and status. Transport failures
// wrap ErrUnreachable. Bytes received are charged to session when it is set.
func (c *Client) fetch(ctx context.Context, session, endpoint, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.Request(endpoint, 0, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, fmt.Errorf("%s request aborted: %w", endpoint, ctxErr)
		}
		return nil, 0, fmt.Errorf("%w: %s: %w", ErrUnreachable, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.Request(endpoint, len(body), err)
		return nil, resp.StatusCode, fmt.Errorf("%w: failed to read %s response: %w", ErrUnreachable, endpoint, err)
	}

	if session != "" {
		c.sessions.AddDownloaded(session, int64(len(body)))
	}
	c.metrics.Request(endpoint, len(body), nil)
	c.logger.Debug("Imaging service request", "endpoint", endpoint, "status", resp.StatusCode, "bytes", len(body))

	return body, resp.StatusCode, nil
}

// fetchOK is fetch for endpoints that only answer 200 on success.
func (c *Client) fetchOK(ctx context.Context, session, endpoint, rawURL string) ([]byte, error) {
	body, status, err := c.fetch(ctx, session, endpoint, rawURL)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d: %s", endpoint, status, truncate(string(body), 200))
	}
	return body, nil
}

// getJSON fetches a JSON endpoint and decodes its payload into v. Service
// error bodies come back as *wire.RemoteError whatever the status code.
func (c *Client) getJSON(ctx context.Context, session, endpoint, rawURL string, v any) error {
	body, status, err := c.fetch(ctx, session, endpoint, rawURL)
	if err != nil {
		return err
	}
	if err := wire.DecodeJSON(body, v); err != nil {
		var remote *wire.RemoteError
		if !errors.As(err, &remote) && status != http.StatusOK {
			return fmt.Errorf("%s returned status %d: %s", endpoint, status, truncate(string(body), 200))
		}
		return err
	}
	return nil
}

// serviceError turns a *wire.RemoteError into a *ServiceError of kind.
// Other errors pass through.
func serviceError(op, path, param string, kind, err error) error {
	var remote *wire.RemoteError
	if errors.As(err, &remote) {
		return &ServiceError{
			Op:      op,
			Path:    path,
			Param:   param,
			Code:    remote.Code,
			Message: remote.Message,
			Kind:    kind,
		}
	}
	return err
}

func withSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

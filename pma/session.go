package pma

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pathomation/pma-go/internal/wire"
)

// IsLite asks the instance at serverURL (the lite URL when empty) whether it
// is a lite instance. An unreachable instance yields an error wrapping
// ErrUnreachable: the answer is unknown, never a confirmed false.
func (c *Client) IsLite(ctx context.Context, serverURL string) (bool, error) {
	text, err := c.rootText(ctx, serverURL, "IsLite")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(text, "true"), nil
}

// VersionInfo returns the version string of the instance at serverURL (the
// lite URL when empty). It needs no session.
func (c *Client) VersionInfo(ctx context.Context, serverURL string) (string, error) {
	return c.rootText(ctx, serverURL, "GetVersionInfo")
}

func (c *Client) rootText(ctx context.Context, serverURL, endpoint string) (string, error) {
	if serverURL == "" {
		serverURL = c.liteURL
	}
	body, status, err := c.fetch(ctx, "", endpoint, withSlash(serverURL)+"api/xml/"+endpoint)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned status %d", ErrUnreachable, endpoint, status)
	}
	text, err := wire.RootText(body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return text, nil
}

// Connect authenticates against serverURL and returns the new session id.
// Connecting to the lite URL (or an empty URL) needs no credentials and
// returns LiteSessionID when a lite instance answers.
func (c *Client) Connect(ctx context.Context, serverURL, username, password string) (string, error) {
	if serverURL == "" || withSlash(serverURL) == c.liteURL {
		lite, err := c.IsLite(ctx, c.liteURL)
		if err != nil {
			return "", err
		}
		if !lite {
			return "", fmt.Errorf("%w: instance at %s is not a lite instance", ErrNoSession, c.liteURL)
		}
		c.slides.Ensure(LiteSessionID)
		c.logger.Info("Connected to local instance", "url", c.liteURL)
		return LiteSessionID, nil
	}

	params := []wire.Param{{Key: "caller", Value: Caller}}
	if username != "" {
		params = append(params, wire.Param{Key: "username", Value: username})
	}
	if password != "" {
		params = append(params, wire.Param{Key: "password", Value: password})
	}
	authURL := withSlash(serverURL) + "api/xml/authenticate?" + wire.Query(params...)

	body, status, err := c.fetch(ctx, "", "authenticate", authURL)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: authenticate returned status %d", ErrUnreachable, status)
	}
	res, err := wire.Logon(body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if !res.OK() || res.SessionID == "" {
		reason := strings.TrimSpace(res.Reason)
		if reason == "" {
			reason = "credentials rejected"
		}
		return "", fmt.Errorf("%w: %s", ErrAuthenticationFailed, reason)
	}

	c.sessions.Register(res.SessionID, serverURL)
	c.sessions.AddDownloaded(res.SessionID, int64(len(body)))
	c.slides.Ensure(res.SessionID)
	c.logger.Info("Connected", "url", serverURL, "session_id", res.SessionID, "username", username)

	return res.SessionID, nil
}

// Disconnect ends session on the service and forgets it locally together
// with its cached metadata. Unknown sessions are ignored. The session is
// removed locally even when the service cannot be told.
func (c *Client) Disconnect(ctx context.Context, session string) error {
	if session == LiteSessionID {
		c.slides.Drop(LiteSessionID)
		return nil
	}
	s, ok := c.sessions.Get(session)
	if !ok {
		return nil
	}

	u := withSlash(s.BaseURL) + "api/xml/DeAuthenticate?" + wire.Query(wire.Param{Key: "sessionID", Value: session})
	_, err := c.fetchOK(ctx, session, "DeAuthenticate", u)

	c.sessions.Unregister(session)
	c.slides.Drop(session)

	if err != nil {
		return fmt.Errorf("failed to deauthenticate session: %w", err)
	}
	c.logger.Info("Disconnected", "session_id", session)
	return nil
}

// Register adopts a session id obtained elsewhere (for example handed over
// by a web front end) without authenticating. Registering a known id is a
// no-op.
func (c *Client) Register(session, baseURL string) {
	c.sessions.Register(session, baseURL)
	c.slides.Ensure(session)
}

// Unregister forgets session and its cached metadata without contacting the
// service. Unknown sessions are ignored.
func (c *Client) Unregister(session string) {
	c.sessions.Unregister(session)
	c.slides.Drop(session)
}

// ResolveSession returns id unchanged when it is set. Otherwise it falls back
// to the first registered session, then to the local instance if one
// answers, and finally fails with ErrNotFound.
func (c *Client) ResolveSession(ctx context.Context, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if first, ok := c.sessions.First(); ok {
		return first, nil
	}
	lite, err := c.IsLite(ctx, c.liteURL)
	if err == nil && lite {
		c.slides.Ensure(LiteSessionID)
		return LiteSessionID, nil
	}
	return "", fmt.Errorf("%w: no registered session and no local instance detected", ErrNotFound)
}

// BaseURL returns the server URL of session, always ending in "/".
func (c *Client) BaseURL(session string) (string, error) {
	if session == LiteSessionID {
		return c.liteURL, nil
	}
	s, ok := c.sessions.Get(session)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidSession, session)
	}
	return withSlash(s.BaseURL), nil
}

// Sessions returns the registered sessions in registration order.
func (c *Client) Sessions() []Session {
	return c.sessions.All()
}

// Downloaded returns the number of response bytes received for session.
func (c *Client) Downloaded(session string) int64 {
	return c.sessions.Downloaded(session)
}

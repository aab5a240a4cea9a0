package pma

import (
	"context"
	"errors"
	"fmt"

	"github.com/pathomation/pma-go/internal/wire"
)

// RootDirectories lists the root directories visible to session.
func (c *Client) RootDirectories(ctx context.Context, session string) ([]string, error) {
	u, err := c.apiURL(session, true, "GetRootDirectories", wire.Param{Key: "sessionID", Value: session})
	if err != nil {
		return nil, err
	}
	body, err := c.fetchOK(ctx, session, "GetRootDirectories", u)
	if err != nil {
		return nil, err
	}
	dirs, err := wire.StringArray(body, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read root directories: %w", err)
	}
	return dirs, nil
}

// Directories lists the subdirectories of dir. The path is sent as given.
func (c *Client) Directories(ctx context.Context, session, dir string) ([]string, error) {
	u, err := c.apiURL(session, false, "GetDirectories",
		wire.Param{Key: "sessionID", Value: session},
		wire.Param{Key: "path", Value: dir},
	)
	if err != nil {
		return nil, err
	}
	dirs := []string{}
	if err := c.getJSON(ctx, session, "GetDirectories", u, &dirs); err != nil {
		return nil, serviceError("Directories", dir, "startDir", ErrDirectoryNotFound, err)
	}
	return dirs, nil
}

// Slides lists the slides directly inside dir. A single leading "/" is
// stripped before the request.
func (c *Client) Slides(ctx context.Context, session, dir string) ([]string, error) {
	dir = normalizeRef(dir)
	u, err := c.apiURL(session, false, "GetFiles",
		wire.Param{Key: "sessionID", Value: session},
		wire.Param{Key: "path", Value: dir},
	)
	if err != nil {
		return nil, err
	}
	slides := []string{}
	if err := c.getJSON(ctx, session, "GetFiles", u, &slides); err != nil {
		return nil, serviceError("Slides", dir, "startDir", ErrDirectoryNotFound, err)
	}
	return slides, nil
}

// FirstNonEmptyDirectory searches depth-first from start ("/" when empty) for
// a directory that directly holds slides. Below "/" the root directories are
// searched; below anything else its subdirectories. The first hit wins.
func (c *Client) FirstNonEmptyDirectory(ctx context.Context, session, start string) (string, error) {
	if start == "" {
		start = "/"
	}
	var found string
	err := c.Walk(ctx, session, start, func(dir string, slides []string) error {
		if len(slides) > 0 {
			found = dir
			return errStopWalk
		}
		return nil
	})
	if errors.Is(err, errStopWalk) {
		return found, nil
	}
	if err != nil {
		return "", err
	}
	return "", fmt.Errorf("%w: no slides below %s", ErrNotFound, start)
}

// errStopWalk ends a walk early without reporting a failure.
var errStopWalk = errors.New("stop walk")

// WalkFunc is called for each directory Walk visits with the slides directly
// inside it. Returning ErrSkipDir skips the directory's children; any other
// error stops the walk and is returned by Walk.
type WalkFunc func(dir string, slides []string) error

// Walk visits start and every directory below it depth-first, listing the
// slides of each. The tree is assumed to be acyclic.
func (c *Client) Walk(ctx context.Context, session, start string, fn WalkFunc) error {
	if start == "" {
		start = "/"
	}
	return c.walk(ctx, session, start, fn)
}

func (c *Client) walk(ctx context.Context, session, dir string, fn WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	slides, err := c.Slides(ctx, session, dir)
	if err != nil {
		return err
	}

	if err := fn(dir, slides); err != nil {
		if errors.Is(err, ErrSkipDir) {
			return nil
		}
		return err
	}

	var children []string
	if dir == "/" {
		children, err = c.RootDirectories(ctx, session)
	} else {
		children, err = c.Directories(ctx, session, dir)
	}
	if err != nil {
		return err
	}

	for _, child := range children {
		if err := c.walk(ctx, session, child, fn); err != nil {
			return err
		}
	}
	return nil
}

// UID returns the unique identifier the service assigned to ref.
func (c *Client) UID(ctx context.Context, session, ref string) (string, error) {
	u, err := c.apiURL(session, true, "GetUID",
		wire.Param{Key: "sessionID", Value: session},
		wire.Param{Key: "path", Value: ref},
	)
	if err != nil {
		return "", err
	}
	body, err := c.fetchOK(ctx, session, "GetUID", u)
	if err != nil {
		return "", serviceError("UID", ref, "slideRef", ErrSlideNotFound, err)
	}
	values, err := wire.StringArray(body, 1)
	if err != nil {
		return "", fmt.Errorf("failed to read UID: %w", err)
	}
	if len(values) == 0 {
		return "", fmt.Errorf("%w: no UID returned for %s", ErrSlideNotFound, ref)
	}
	return values[0], nil
}

package pma

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lookup has no answer: no session could be
	// resolved, or a directory tree holds no slides.
	ErrNotFound = errors.New("pma: not found")

	// ErrNoSession is returned by Connect when the local URL was requested
	// but the instance answering there is not a lite instance.
	ErrNoSession = errors.New("pma: no session")

	ErrInvalidSession       = errors.New("pma: invalid session")
	ErrUnreachable          = errors.New("pma: imaging service unreachable")
	ErrAuthenticationFailed = errors.New("pma: authentication failed")
	ErrSlideNotFound        = errors.New("pma: slide not found")
	ErrDirectoryNotFound    = errors.New("pma: directory not found")

	// ErrMetadataUnavailable wraps the failure that prevented a slide's
	// metadata from being fetched for a derived value.
	ErrMetadataUnavailable = errors.New("pma: slide metadata unavailable")

	// ErrFieldMissing reports a metadata field that is absent or does not
	// parse as the expected type.
	ErrFieldMissing = errors.New("pma: metadata field missing")

	// ErrInvalidZoom is returned for a zoom level above the slide's maximum
	// or below NativeZoom.
	ErrInvalidZoom = errors.New("pma: invalid zoom level")

	// ErrSkipDir may be returned by a WalkFunc to skip a directory's children.
	ErrSkipDir = errors.New("pma: skip directory")
)

// ServiceError is a failure reported by the imaging service itself, as
// opposed to a transport failure.
type ServiceError struct {
	Op      string
	Path    string
	Param   string
	Code    string
	Message string
	Kind    error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s to %s resulted in: %s (keep in mind that %s is case sensitive!)", e.Op, e.Path, e.Message, e.Param)
}

func (e *ServiceError) Unwrap() error {
	return e.Kind
}

package session

import "errors"

var (
	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrScanInProgress is returned when a reload or export is requested
	// while the session's scan is still running.
	ErrScanInProgress = errors.New("scan in progress")
	// ErrTooManyScans is returned when the concurrent scan limit is reached.
	ErrTooManyScans = errors.New("too many concurrent scans")
)

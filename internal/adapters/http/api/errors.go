package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrNotStarted    = errors.New("notifier not started")
	ErrNoStreaming   = errors.New("streaming unsupported")
	ErrSessionLocked = errors.New("session is fixed by configuration")
)

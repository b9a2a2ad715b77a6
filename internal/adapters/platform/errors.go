package platform

import (
	"errors"

	"github.com/okian/lingoquest/internal/domain/detection"
)

// Sentinel kinds for platform API errors.
var (
	// ErrNoSession is the detection sentinel so callers can match either.
	ErrNoSession = detection.ErrNoSession

	ErrInvalidBaseURL   = errors.New("invalid api base url")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrDecode           = errors.New("decode response")
)

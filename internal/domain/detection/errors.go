package detection

import "errors"

// Sentinel kinds for detection errors.
var (
	// ErrNoSession is reported by a SessionProvider when nobody is signed in.
	ErrNoSession = errors.New("no active session")

	ErrSession   = errors.New("session lookup failed")
	ErrFetchList = errors.New("fetch user achievements failed")
)

package display

import "errors"

// ErrAlreadyRunning is returned by Run while another Run owns the scheduler.
var ErrAlreadyRunning = errors.New("display scheduler already running")

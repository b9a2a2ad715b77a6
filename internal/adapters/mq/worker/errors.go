package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrEnrichment      = errors.New("achievement enrichment failed")
	ErrPendingRejected = errors.New("pending queue rejected achievement")
)

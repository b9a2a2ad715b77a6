package detection

import (
	"context"
	"time"

	"github.com/okian/lingoquest/pkg/logger"
)

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithLogger sets a custom logger for the detector.
func WithLogger(l logger.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock sets the time source used for cycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// WithUserChange registers fn to run, inside the cycle, when the session user
// differs from the one the known-set was seeded for. It runs after the
// previous user's known and unseen state is cleared and before the new user
// is seeded.
func WithUserChange(fn func(ctx context.Context, previous, current string)) Option {
	return func(d *Detector) {
		d.onUserChange = fn
	}
}

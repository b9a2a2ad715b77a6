package display

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/lingoquest/pkg/logger"
	"github.com/okian/lingoquest/pkg/observable"
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock that drives the popup timers.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithVisibleDuration sets how long each popup stays on screen.
func WithVisibleDuration(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.visible = d
		}
	}
}

// WithCooldown sets the empty gap between two popups.
func WithCooldown(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.cooldown = d
		}
	}
}

// WithLogger sets a custom logger for the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPublisher makes the scheduler publish popups into v instead of a value
// of its own, so subscribers can outlive the scheduler.
func WithPublisher(v *observable.Value[*Popup]) Option {
	return func(s *Scheduler) {
		if v != nil {
			s.popup = v
		}
	}
}

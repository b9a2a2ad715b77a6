// Package display shows enriched achievements one at a time and tracks
// which of them the user has not acknowledged yet.
package display

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/lingoquest/internal/domain/model"
	"github.com/okian/lingoquest/pkg/logger"
	"github.com/okian/lingoquest/pkg/metrics"
	"github.com/okian/lingoquest/pkg/observable"
)

// Default popup timings.
const (
	DefaultVisibleDuration = 4000 * time.Millisecond
	DefaultCooldown        = 500 * time.Millisecond
)

// State is the scheduler's position in the display cycle.
type State int32

const (
	StateIdle State = iota
	StateShowing
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateShowing:
		return "showing"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

type trigger int

const (
	triggerDequeued trigger = iota
	triggerElapsed
)

// transitions is the complete display cycle; any pair not listed is ignored.
var transitions = map[State]map[trigger]State{
	StateIdle:     {triggerDequeued: StateShowing},
	StateShowing:  {triggerElapsed: StateCooldown},
	StateCooldown: {triggerElapsed: StateIdle},
}

// Pending is the FIFO of enriched achievements waiting for display.
type Pending interface {
	Receive(ctx context.Context) (model.Achievement, bool)
}

// Popup is the achievement currently on screen.
type Popup struct {
	Achievement model.Achievement
	ShownAt     time.Time
}

// Scheduler drains the pending queue into timed, non-overlapping popups.
type Scheduler struct {
	pending  Pending
	clock    clockwork.Clock
	visible  time.Duration
	cooldown time.Duration

	popup   *observable.Value[*Popup]
	state   atomic.Int32
	running atomic.Bool
	shown   atomic.Int64
	timer   clockwork.Timer

	logger logger.Logger
}

// NewScheduler creates a scheduler reading from pending.
func NewScheduler(pending Pending, opts ...Option) *Scheduler {
	s := &Scheduler{
		pending:  pending,
		clock:    clockwork.NewRealClock(),
		visible:  DefaultVisibleDuration,
		cooldown: DefaultCooldown,
		popup:    observable.New[*Popup](nil),
		logger:   logger.Get().Named("display"),
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.UpdateSchedulerState(int(StateIdle))
	return s
}

// Run drives the display cycle until ctx is done or the pending queue closes.
// Only one Run may be active at a time.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)
	defer s.reset()

	for {
		if s.State() == StateIdle {
			a, ok := s.pending.Receive(ctx)
			if !ok {
				return nil
			}
			s.fire(ctx, triggerDequeued, a)
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.timer.Chan():
			s.fire(ctx, triggerElapsed, model.Achievement{})
		}
	}
}

// fire applies trigger t to the current state and performs the entry action
// of the resulting state.
func (s *Scheduler) fire(ctx context.Context, t trigger, a model.Achievement) {
	from := s.State()
	to, ok := transitions[from][t]
	if !ok {
		s.logger.Warn(ctx, "ignoring trigger",
			logger.String("state", from.String()),
			logger.Int("trigger", int(t)),
		)
		return
	}

	s.stopTimer()
	s.setState(to)

	switch to {
	case StateShowing:
		s.popup.Store(&Popup{Achievement: a, ShownAt: s.clock.Now()})
		s.shown.Add(1)
		metrics.RecordPopupShown()
		s.logger.Debug(ctx, "showing achievement",
			logger.String("achievement_id", a.ID),
			logger.String("name", a.Name),
		)
		s.timer = s.clock.NewTimer(s.visible)
	case StateCooldown:
		s.popup.Store(nil)
		s.timer = s.clock.NewTimer(s.cooldown)
	case StateIdle:
	}
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
	metrics.UpdateSchedulerState(int(st))
}

func (s *Scheduler) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// reset returns the scheduler to Idle with nothing on screen.
func (s *Scheduler) reset() {
	s.stopTimer()
	s.setState(StateIdle)
	if s.popup.Load() != nil {
		s.popup.Store(nil)
	}
}

// State returns the current display state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Current returns the achievement on screen, if any.
func (s *Scheduler) Current() (model.Achievement, bool) {
	p := s.popup.Load()
	if p == nil {
		return model.Achievement{}, false
	}
	return p.Achievement, true
}

// Popup returns the popup on screen, or nil.
func (s *Scheduler) Popup() *Popup { return s.popup.Load() }

// Subscribe streams the current popup; nil means nothing is on screen.
func (s *Scheduler) Subscribe(ctx context.Context) <-chan *Popup {
	return s.popup.Subscribe(ctx)
}

// Shown returns how many popups have been displayed.
func (s *Scheduler) Shown() int64 { return s.shown.Load() }

// Running reports whether Run is active.
func (s *Scheduler) Running() bool { return s.running.Load() }

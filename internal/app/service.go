// Package service hosts the achievement notifier for one signed-in session:
// it owns the detection, enrichment and display tasks and their lifetime.
package service

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/okian/lingoquest/internal/adapters/mq/queue"
	"github.com/okian/lingoquest/internal/adapters/mq/worker"
	"github.com/okian/lingoquest/internal/domain/dedupe"
	"github.com/okian/lingoquest/internal/domain/detection"
	"github.com/okian/lingoquest/internal/domain/display"
	"github.com/okian/lingoquest/internal/domain/model"
	"github.com/okian/lingoquest/pkg/logger"
	"github.com/okian/lingoquest/pkg/metrics"
	"github.com/okian/lingoquest/pkg/observable"
)

// ErrSessionFixed is returned when the session gate cannot be switched.
var ErrSessionFixed = errors.New("session cannot be changed at runtime")

// Source serves both the awarded-achievement list and achievement details.
type Source interface {
	detection.Lister
	worker.Fetcher
}

// SessionSwitcher is a session gate the host can sign in and out.
type SessionSwitcher interface {
	SignIn(userID string)
	SignOut()
}

// Service wires the notifier components and owns their goroutines.
type Service struct {
	mu sync.RWMutex

	session detection.SessionProvider
	source  Source

	// Session state
	known  dedupe.KnownSet
	unseen *display.Unseen
	popup  *observable.Value[*display.Popup]

	// Components built on Start
	detector  *detection.Detector
	jobs      *queue.InMemoryQueue[string]
	pending   *queue.InMemoryQueue[model.Achievement]
	pool      *worker.Pool
	scheduler *display.Scheduler

	// Configuration
	workerCount  int
	queueSize    int
	visible      time.Duration
	cooldown     time.Duration
	pollInterval time.Duration
	clock        clockwork.Clock

	// Task scope
	started bool
	cancel  context.CancelFunc
	group   *errgroup.Group
	ctx     context.Context

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of enrichment workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the pending queue. Workers wait for room
// in it, so a burst larger than size only takes longer to drain.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithPopupTimings sets how long a popup is visible and the gap after it.
func WithPopupTimings(visible, cooldown time.Duration) Option {
	return func(s *Service) {
		if visible > 0 {
			s.visible = visible
		}
		if cooldown >= 0 {
			s.cooldown = cooldown
		}
	}
}

// WithPollInterval runs Check periodically; zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.pollInterval = d
		}
	}
}

// WithClock sets the clock for popup timers and polling.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Service for the given session gate and platform source.
func New(session detection.SessionProvider, source Source, opts ...Option) *Service {
	s := &Service{
		session:     session,
		source:      source,
		known:       dedupe.NewInMemoryKnownSet(),
		unseen:      display.NewUnseen(),
		popup:       observable.New[*display.Popup](nil),
		workerCount: runtime.NumCPU(),
		queueSize:   256,
		visible:     display.DefaultVisibleDuration,
		cooldown:    display.DefaultCooldown,
		clock:       clockwork.NewRealClock(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the components and launches them in a task scope owned by
// the service. Calling Start on a started service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting achievement notifier...")

	// Detection never waits on enrichment, so ids spill into an unbounded
	// queue and backpressure starts at the pending queue.
	s.jobs = queue.NewInMemoryQueue[string](
		queue.WithName("jobs"),
		queue.WithUnbounded(),
	)
	s.pending = queue.NewInMemoryQueue[model.Achievement](
		queue.WithName("pending"),
		queue.WithCapacity(s.queueSize),
	)
	s.detector = detection.NewDetector(s.session, s.source, s.known, s.unseen, s.jobs,
		detection.WithClock(s.clock.Now),
		detection.WithUserChange(s.discardQueued(s.jobs, s.pending)),
	)
	s.pool = worker.NewPool(s.workerCount, s.jobs, s.source, s.pending)
	s.scheduler = display.NewScheduler(s.pending,
		display.WithClock(s.clock),
		display.WithVisibleDuration(s.visible),
		display.WithCooldown(s.cooldown),
		display.WithPublisher(s.popup),
	)

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	s.ctx, s.cancel, s.group = groupCtx, cancel, group

	group.Go(func() error {
		s.pool.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		return s.scheduler.Run(groupCtx)
	})
	if s.pollInterval > 0 {
		group.Go(func() error {
			s.poll(groupCtx)
			return nil
		})
	}

	s.started = true
	s.logger.Info(ctx, "achievement notifier started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("visible", s.visible),
		logger.Duration("cooldown", s.cooldown),
		logger.Duration("pollInterval", s.pollInterval),
	)

	return nil
}

// Stop cancels every task the service started and waits for them to return.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel, group := s.cancel, s.group
	jobs, pending := s.jobs, s.pending
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping achievement notifier...")

	cancel()
	if err := group.Wait(); err != nil {
		s.logger.Error(ctx, "notifier task failed", logger.Error(err))
	}

	_ = jobs.Close()
	_ = pending.Close()

	s.logger.Info(ctx, "achievement notifier stopped")
}

// spawn runs fn inside the task scope. It reports false when not started.
func (s *Service) spawn(name string, fn func(ctx context.Context) error) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		if s.logger != nil {
			s.logger.Debug(context.Background(), "service not started, ignoring", logger.String("op", name))
		}
		return false
	}

	ctx := s.ctx
	s.group.Go(func() error {
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn(ctx, "notifier operation failed",
				logger.String("op", name),
				logger.Error(err),
			)
		}
		return nil
	})
	return true
}

// Initialize seeds the known-set for the current session in the background.
func (s *Service) Initialize() bool {
	return s.spawn("initialize", func(ctx context.Context) error {
		return s.detector.Initialize(ctx)
	})
}

// Check runs one detection cycle in the background.
func (s *Service) Check() bool {
	return s.spawn("check", func(ctx context.Context) error {
		_, err := s.detector.Check(ctx)
		return err
	})
}

// MarkAsSeen acknowledges one achievement.
func (s *Service) MarkAsSeen(id string) bool {
	if !s.isStarted() {
		return false
	}
	s.unseen.MarkAsSeen(id)
	return true
}

// MarkAllAsSeen acknowledges every achievement.
func (s *Service) MarkAllAsSeen() bool {
	if !s.isStarted() {
		return false
	}
	s.unseen.MarkAllAsSeen()
	return true
}

// ResetSession discards the session state: known and unseen ids, and any
// achievement still waiting for enrichment or display.
func (s *Service) ResetSession() bool {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return false
	}
	ctx, detector, jobs, pending := s.ctx, s.detector, s.jobs, s.pending
	s.mu.RUnlock()

	// Reset waits for an in-flight cycle, so nothing it submits survives.
	detector.Reset(ctx)
	purgeQueues(ctx, s.logger, jobs, pending, "session reset")
	return true
}

// discardQueued returns the hook the detector runs, mid-cycle, when the
// session user changes, so the previous user's achievements are never
// enriched or shown. It must not take s.mu.
func (s *Service) discardQueued(jobs *queue.InMemoryQueue[string], pending *queue.InMemoryQueue[model.Achievement]) func(context.Context, string, string) {
	return func(ctx context.Context, previous, current string) {
		purgeQueues(ctx, s.logger, jobs, pending, "session user changed",
			logger.String("previous_user", previous),
			logger.String("user_id", current),
		)
	}
}

func purgeQueues(ctx context.Context, l logger.Logger, jobs *queue.InMemoryQueue[string], pending *queue.InMemoryQueue[model.Achievement], msg string, fields ...logger.Field) {
	fields = append(fields,
		logger.Int("purgedJobs", jobs.Purge(ctx)),
		logger.Int("purgedPending", pending.Purge(ctx)),
	)
	l.Info(ctx, msg, fields...)
}

// SignIn switches the session gate to userID and seeds the new user.
func (s *Service) SignIn(userID string) error {
	sw, ok := s.session.(SessionSwitcher)
	if !ok {
		return ErrSessionFixed
	}
	sw.SignIn(userID)
	s.Initialize()
	return nil
}

// SignOut clears the session gate and discards the session state.
func (s *Service) SignOut() error {
	sw, ok := s.session.(SessionSwitcher)
	if !ok {
		return ErrSessionFixed
	}
	sw.SignOut()
	s.ResetSession()
	return nil
}

// CurrentPopup returns the achievement on screen, if any.
func (s *Service) CurrentPopup() (model.Achievement, bool) {
	p := s.popup.Load()
	if p == nil {
		return model.Achievement{}, false
	}
	return p.Achievement, true
}

// Unseen returns the unacknowledged achievement ids in award order.
func (s *Service) Unseen() []string {
	return s.unseen.Snapshot()
}

// SubscribePopup streams the popup on screen; nil means none. The stream
// survives Stop and Start and is closed only when ctx is done.
func (s *Service) SubscribePopup(ctx context.Context) <-chan *display.Popup {
	return s.popup.Subscribe(ctx)
}

// SubscribeUnseen streams the unseen ids after every change.
func (s *Service) SubscribeUnseen(ctx context.Context) <-chan []string {
	return s.unseen.Subscribe(ctx)
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// poll triggers a detection cycle every poll interval.
func (s *Service) poll(ctx context.Context) {
	ticker := s.clock.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if _, err := s.detector.Check(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn(ctx, "scheduled check failed", logger.Error(err))
			}
		}
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"pollInterval": s.pollInterval.String(),
		"knownCount":   s.known.Size(),
		"unseenCount":  s.unseen.Count(),
	}

	if s.started {
		enriched, dropped := s.pool.Stats()
		last := s.detector.LastResult()

		stats["initialized"] = s.detector.Initialized()
		stats["jobsLength"] = s.jobs.Len(ctx)
		stats["pendingLength"] = s.pending.Len(ctx)
		stats["schedulerState"] = s.scheduler.State().String()
		stats["popupsShown"] = s.scheduler.Shown()
		stats["enriched"] = enriched
		stats["dropped"] = dropped
		stats["lastOutcome"] = string(last.Outcome)

		metrics.UpdateKnownSetSize(s.known.Size())
		metrics.UpdateUnseenCount(s.unseen.Count())
	}

	return stats
}

// Package detection finds achievements the user unlocked since the last
// check by diffing the server list against the ids already accounted for.
package detection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/okian/lingoquest/internal/domain/dedupe"
	"github.com/okian/lingoquest/internal/domain/model"
	"github.com/okian/lingoquest/pkg/logger"
	"github.com/okian/lingoquest/pkg/metrics"
	"github.com/okian/lingoquest/pkg/tracing"
)

// cycleKey is the single singleflight key: at most one cycle is ever in flight.
const cycleKey = "detection-cycle"

// SessionProvider resolves the signed-in user. An empty id or ErrNoSession
// means nobody is signed in.
type SessionProvider interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// Lister fetches every achievement the user has been awarded.
type Lister interface {
	ListUserAchievements(ctx context.Context, userID string) ([]model.UserAchievement, error)
}

// UnseenSet receives newly detected ids until the user acknowledges them.
type UnseenSet interface {
	Add(ids ...string)
	MarkAllAsSeen()
}

// Enricher accepts newly detected ids for enrichment. It must not block and
// should only refuse an id once it is shutting down.
type Enricher interface {
	Enqueue(ctx context.Context, id string) bool
}

// Outcome classifies a detection cycle.
type Outcome string

const (
	OutcomeNoSession Outcome = metrics.OutcomeNoSession
	OutcomeSeeded    Outcome = metrics.OutcomeSeeded
	OutcomeNoChange  Outcome = metrics.OutcomeNoChange
	OutcomeDetected  Outcome = metrics.OutcomeDetected
	OutcomeFailed    Outcome = metrics.OutcomeFailed
)

// Result describes what a cycle did.
type Result struct {
	Outcome Outcome
	UserID  string
	// NewIDs lists newly detected achievement ids in server order.
	NewIDs []string
	// Shared is true when the caller joined a cycle started by someone else.
	Shared bool
	At     time.Time
}

type mode int

const (
	modeInitialize mode = iota
	modeCheck
)

func (m mode) spanName() string {
	if m == modeInitialize {
		return "detection.initialize"
	}
	return "detection.check"
}

// Detector runs initialization and check cycles against a known-set.
type Detector struct {
	session  SessionProvider
	lister   Lister
	known    dedupe.KnownSet
	unseen   UnseenSet
	enricher Enricher

	group singleflight.Group

	// mu is held for the whole of a cycle and by Reset.
	mu          sync.Mutex
	initialized bool
	userID      string
	lastResult  Result

	onUserChange func(ctx context.Context, previous, current string)

	now    func() time.Time
	tracer trace.Tracer
	logger logger.Logger
}

// NewDetector creates a detector. known, unseen and enricher are only ever
// mutated from inside a cycle.
func NewDetector(session SessionProvider, lister Lister, known dedupe.KnownSet, unseen UnseenSet, enricher Enricher, opts ...Option) *Detector {
	d := &Detector{
		session:  session,
		lister:   lister,
		known:    known,
		unseen:   unseen,
		enricher: enricher,
		now:      time.Now,
		tracer:   tracing.Tracer(),
		logger:   logger.Get().Named("detector"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Initialize seeds the known-set with everything the user already has,
// without reporting any of it. It is a no-op without a session or when the
// same user is already seeded.
func (d *Detector) Initialize(ctx context.Context) error {
	_, err := d.run(ctx, modeInitialize)
	return err
}

// Check reports achievements unlocked since the last cycle. A detector that
// has not been seeded for the current user seeds silently instead.
func (d *Detector) Check(ctx context.Context) (Result, error) {
	return d.run(ctx, modeCheck)
}

// Reset forgets the seeded user, the known-set and the unseen set. It waits
// for any in-flight cycle to finish first.
func (d *Detector) Reset(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.known.Reset(ctx)
	d.unseen.MarkAllAsSeen()
	d.initialized = false
	d.userID = ""
	metrics.UpdateKnownSetSize(0)
	d.logger.Info(ctx, "detection state reset")
}

// Initialized reports whether a user has been seeded.
func (d *Detector) Initialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

// LastResult returns the result of the most recent completed cycle.
func (d *Detector) LastResult() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastResult
}

// KnownCount returns the number of ids accounted for.
func (d *Detector) KnownCount() int64 { return d.known.Size() }

// run coalesces concurrent callers onto one in-flight cycle.
func (d *Detector) run(ctx context.Context, m mode) (Result, error) {
	v, err, shared := d.group.Do(cycleKey, func() (any, error) {
		d.mu.Lock()
		defer d.mu.Unlock()

		res, err := d.cycle(ctx, m)
		d.lastResult = res
		return res, err
	})
	res, _ := v.(Result)
	res.Shared = shared
	return res, err
}

func (d *Detector) cycle(ctx context.Context, m mode) (res Result, err error) {
	ctx, span := d.tracer.Start(ctx, m.spanName())
	start := time.Now()
	defer func() {
		res.At = d.now()
		metrics.RecordDetectionCycle(string(res.Outcome), float64(time.Since(start).Milliseconds()))
		span.SetAttributes(
			attribute.String("detection.outcome", string(res.Outcome)),
			attribute.Int("detection.new", len(res.NewIDs)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	userID, err := d.session.CurrentUserID(ctx)
	switch {
	case errors.Is(err, ErrNoSession), err == nil && userID == "":
		d.logger.Debug(ctx, "no active session, skipping detection")
		return Result{Outcome: OutcomeNoSession}, nil
	case err != nil:
		d.logger.Error(ctx, "session lookup failed", logger.Error(err))
		metrics.RecordErrorByComponent("detector", "session")
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("%w: %w", ErrSession, err)
	}

	if !d.initialized || d.userID != userID {
		return d.seed(ctx, userID)
	}
	if m == modeInitialize {
		return Result{Outcome: OutcomeNoChange, UserID: userID}, nil
	}
	return d.check(ctx, userID)
}

// seed records every current id as known without reporting any of them.
func (d *Detector) seed(ctx context.Context, userID string) (Result, error) {
	records, err := d.lister.ListUserAchievements(ctx, userID)
	if err != nil {
		return d.fetchFailed(ctx, userID, err)
	}

	if d.initialized && d.userID != userID {
		d.logger.Info(ctx, "session user changed, reseeding",
			logger.String("previous_user", d.userID),
			logger.String("user_id", userID),
		)
		d.known.Reset(ctx)
		d.unseen.MarkAllAsSeen()
		if d.onUserChange != nil {
			d.onUserChange(ctx, d.userID, userID)
		}
	}

	for _, id := range model.AchievementIDs(records) {
		d.known.SeenAndRecord(ctx, id)
	}
	d.initialized = true
	d.userID = userID
	metrics.UpdateKnownSetSize(d.known.Size())

	d.logger.Info(ctx, "known-set seeded",
		logger.String("user_id", userID),
		logger.Int64("known", d.known.Size()),
	)
	return Result{Outcome: OutcomeSeeded, UserID: userID}, nil
}

// check diffs the server list against the known-set. New ids are recorded as
// known, then as unseen, and only then submitted for enrichment.
func (d *Detector) check(ctx context.Context, userID string) (Result, error) {
	records, err := d.lister.ListUserAchievements(ctx, userID)
	if err != nil {
		return d.fetchFailed(ctx, userID, err)
	}

	var fresh []string
	for _, id := range model.AchievementIDs(records) {
		if !d.known.SeenAndRecord(ctx, id) {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return Result{Outcome: OutcomeNoChange, UserID: userID}, nil
	}

	metrics.UpdateKnownSetSize(d.known.Size())
	metrics.RecordAchievementsDetected(len(fresh))
	d.unseen.Add(fresh...)

	for _, id := range fresh {
		if !d.enricher.Enqueue(ctx, id) {
			metrics.RecordEnrichmentDropped()
			d.logger.Warn(ctx, "enrichment queue closed, achievement not enriched",
				logger.String("achievement_id", id),
			)
		}
	}

	d.logger.Info(ctx, "new achievements detected",
		logger.String("user_id", userID),
		logger.Strings("achievement_ids", fresh),
	)
	return Result{Outcome: OutcomeDetected, UserID: userID, NewIDs: fresh}, nil
}

func (d *Detector) fetchFailed(ctx context.Context, userID string, err error) (Result, error) {
	d.logger.Error(ctx, "achievement list fetch failed",
		logger.String("user_id", userID),
		logger.Error(err),
	)
	metrics.RecordErrorByComponent("detector", "fetch_list")
	return Result{Outcome: OutcomeFailed, UserID: userID}, fmt.Errorf("%w: %w", ErrFetchList, err)
}

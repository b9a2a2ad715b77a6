package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/lingoquest/internal/adapters/platform"
	service "github.com/okian/lingoquest/internal/app"
	"github.com/okian/lingoquest/internal/domain/display"
	"github.com/okian/lingoquest/internal/domain/model"
	"github.com/okian/lingoquest/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// fakeSource is an in-memory platform: awarded lists per user and a detail
// catalogue with optional per-id failures.
type fakeSource struct {
	mu      sync.Mutex
	awarded map[string][]string
	failing map[string]bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{awarded: make(map[string][]string), failing: make(map[string]bool)}
}

func (f *fakeSource) ListUserAchievements(ctx context.Context, userID string) ([]model.UserAchievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.UserAchievement
	for _, id := range f.awarded[userID] {
		out = append(out, model.UserAchievement{UserID: userID, AchievementID: id})
	}
	return out, nil
}

func (f *fakeSource) GetAchievement(ctx context.Context, id string) (model.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[id] {
		return model.Achievement{}, errors.New("detail unavailable")
	}
	return model.Achievement{ID: id, Name: "Name of " + id, Rarity: model.RarityRare}, nil
}

func (f *fakeSource) award(userID string, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.awarded[userID] = append(f.awarded[userID], ids...)
}

func (f *fakeSource) fail(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[id] = true
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func popupID(svc *service.Service) string {
	a, ok := svc.CurrentPopup()
	if !ok {
		return ""
	}
	return a.ID
}

func initialized(svc *service.Service) func() bool {
	return func() bool { return svc.GetStats()["initialized"] == true }
}

func stat(svc *service.Service, key string, want interface{}) func() bool {
	return func() bool { return svc.GetStats()[key] == want }
}

// finishPopup runs the popup on screen through its visible time and the
// cooldown after it.
func finishPopup(clock clockwork.FakeClock, svc *service.Service) bool {
	clock.BlockUntil(1)
	clock.Advance(display.DefaultVisibleDuration)
	if !eventually(stat(svc, "schedulerState", "cooldown")) {
		return false
	}
	clock.BlockUntil(1)
	clock.Advance(display.DefaultCooldown)
	return true
}

// nextPopup returns the next non-empty popup published on ch.
func nextPopup(ch <-chan *display.Popup) *display.Popup {
	timeout := time.After(2 * time.Second)
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				return nil
			}
			if p != nil {
				return p
			}
		case <-timeout:
			return nil
		}
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New(platform.NewStaticSession("u1"), newFakeSource())

		Convey("Then it should not be started", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["unseenCount"], ShouldEqual, 0)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(platform.NewStaticSession("u1"), newFakeSource(),
			service.WithWorkerCount(8),
			service.WithQueueSize(32),
			service.WithPopupTimings(time.Second, 100*time.Millisecond),
			service.WithPollInterval(time.Minute),
			service.WithClock(clockwork.NewFakeClock()),
			service.WithLogger(logger.Get().Named("svc-test")),
		)

		Convey("Then the options should show in the stats", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 8)
			So(stats["queueSize"], ShouldEqual, 32)
			So(stats["pollInterval"], ShouldEqual, "1m0s")
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(platform.NewStaticSession("u1"), newFakeSource(), service.WithWorkerCount(2))

		Convey("When calling entry points before Start", func() {
			Convey("Then they should be no-ops", func() {
				So(svc.Initialize(), ShouldBeFalse)
				So(svc.Check(), ShouldBeFalse)
				So(svc.MarkAsSeen("a1"), ShouldBeFalse)
				So(svc.MarkAllAsSeen(), ShouldBeFalse)
				So(svc.ResetSession(), ShouldBeFalse)
				_, ok := svc.CurrentPopup()
				So(ok, ShouldBeFalse)

				subCtx, stop := context.WithCancel(context.Background())
				popups := svc.SubscribePopup(subCtx)
				So(<-popups, ShouldBeNil)
				stop()
				_, open := <-popups
				So(open, ShouldBeFalse)
			})
		})

		Convey("When starting and stopping", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			So(svc.GetStats()["schedulerState"], ShouldEqual, "idle")

			svc.Stop()

			Convey("Then it should be stopped and entry points should be no-ops again", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Check(), ShouldBeFalse)
				svc.Stop()
			})

			Convey("And it should be able to start again", func() {
				So(svc.Start(ctx), ShouldBeNil)
				defer svc.Stop()
				So(svc.Check(), ShouldBeTrue)
			})
		})
	})
}

func TestService_EndToEnd(t *testing.T) {
	Convey("Given a started service for a user with prior achievements", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		clock := clockwork.NewFakeClock()
		source := newFakeSource()
		source.award("u1", "a1", "a2")
		svc := service.New(platform.NewStaticSession("u1"), source,
			service.WithWorkerCount(2),
			service.WithClock(clock),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		So(svc.Initialize(), ShouldBeTrue)
		So(eventually(initialized(svc)), ShouldBeTrue)

		Convey("Then nothing should be announced on cold start", func() {
			So(svc.Unseen(), ShouldBeEmpty)
			_, ok := svc.CurrentPopup()
			So(ok, ShouldBeFalse)
			So(svc.GetStats()["knownCount"], ShouldEqual, int64(2))
		})

		Convey("When a new achievement is awarded and checked", func() {
			source.award("u1", "a3")
			So(svc.Check(), ShouldBeTrue)
			clock.BlockUntil(1)

			Convey("Then it should be shown once and listed as unseen", func() {
				So(popupID(svc), ShouldEqual, "a3")
				a, _ := svc.CurrentPopup()
				So(a.Name, ShouldEqual, "Name of a3")
				So(svc.Unseen(), ShouldResemble, []string{"a3"})
			})

			Convey("And acknowledging it should not touch the popup", func() {
				So(svc.MarkAsSeen("a3"), ShouldBeTrue)
				So(svc.Unseen(), ShouldBeEmpty)
				So(popupID(svc), ShouldEqual, "a3")
			})

			Convey("And the popup should go away after its visible time", func() {
				clock.Advance(4 * time.Second)
				So(eventually(func() bool { return popupID(svc) == "" }), ShouldBeTrue)
				So(svc.Unseen(), ShouldResemble, []string{"a3"})
			})

			Convey("And checking again should not announce it twice", func() {
				So(svc.Check(), ShouldBeTrue)
				So(eventually(func() bool { return svc.GetStats()["lastOutcome"] == "no_change" }), ShouldBeTrue)
				So(svc.GetStats()["popupsShown"], ShouldEqual, int64(1))
			})
		})

		Convey("When one detail fetch fails", func() {
			source.fail("bad")
			source.award("u1", "bad", "good")
			So(svc.Check(), ShouldBeTrue)
			clock.BlockUntil(1)

			Convey("Then only the good one should be shown but both stay unseen", func() {
				So(popupID(svc), ShouldEqual, "good")
				So(svc.Unseen(), ShouldResemble, []string{"bad", "good"})
				So(eventually(func() bool { return svc.GetStats()["dropped"] == int64(1) }), ShouldBeTrue)
			})
		})

		Convey("When the session is reset", func() {
			source.award("u1", "a3")
			svc.Check()
			clock.BlockUntil(1)
			So(svc.ResetSession(), ShouldBeTrue)

			Convey("Then known and unseen ids should be gone", func() {
				So(svc.Unseen(), ShouldBeEmpty)
				So(svc.GetStats()["knownCount"], ShouldEqual, int64(0))
				So(svc.GetStats()["initialized"], ShouldEqual, false)
			})
		})
	})
}

func TestService_SignInOut(t *testing.T) {
	Convey("Given a started service with a switchable session", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		source := newFakeSource()
		source.award("u2", "b1")
		session := platform.NewStaticSession("")
		svc := service.New(session, source, service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a user signs in", func() {
			So(svc.SignIn("u2"), ShouldBeNil)

			Convey("Then that user should be seeded", func() {
				So(eventually(initialized(svc)), ShouldBeTrue)
				So(svc.GetStats()["knownCount"], ShouldEqual, int64(1))
			})

			Convey("And signing out should discard the session", func() {
				So(eventually(initialized(svc)), ShouldBeTrue)
				So(svc.SignOut(), ShouldBeNil)
				_, err := session.CurrentUserID(ctx)
				So(errors.Is(err, platform.ErrNoSession), ShouldBeTrue)
				So(svc.GetStats()["knownCount"], ShouldEqual, int64(0))
			})
		})
	})

	Convey("Given a session that cannot be switched", t, func() {
		svc := service.New(fixedSession{}, newFakeSource())

		Convey("Then SignIn should be refused", func() {
			So(errors.Is(svc.SignIn("u1"), service.ErrSessionFixed), ShouldBeTrue)
			So(errors.Is(svc.SignOut(), service.ErrSessionFixed), ShouldBeTrue)
		})
	})
}

type fixedSession struct{}

func (fixedSession) CurrentUserID(ctx context.Context) (string, error) { return "u1", nil }

func TestService_Polling(t *testing.T) {
	Convey("Given a service that polls", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		clock := clockwork.NewFakeClock()
		source := newFakeSource()
		svc := service.New(platform.NewStaticSession("u1"), source,
			service.WithClock(clock),
			service.WithPollInterval(time.Second),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		// Only the poll ticker is waiting on the clock.
		clock.BlockUntil(1)
		svc.Initialize()
		So(eventually(initialized(svc)), ShouldBeTrue)

		Convey("When an achievement appears between ticks", func() {
			source.award("u1", "p1")
			clock.Advance(time.Second)

			Convey("Then the next tick should detect and show it", func() {
				So(eventually(func() bool { return popupID(svc) == "p1" }), ShouldBeTrue)
			})
		})
	})
}

func TestService_Burst(t *testing.T) {
	Convey("Given a service whose pending queue is smaller than the burst", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		clock := clockwork.NewFakeClock()
		source := newFakeSource()
		svc := service.New(platform.NewStaticSession("u1"), source,
			service.WithQueueSize(2),
			service.WithWorkerCount(1),
			service.WithClock(clock),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		So(svc.Initialize(), ShouldBeTrue)
		So(eventually(initialized(svc)), ShouldBeTrue)

		Convey("When six achievements are awarded at once", func() {
			burst := []string{"b1", "b2", "b3", "b4", "b5", "b6"}
			source.award("u1", burst...)
			So(svc.Check(), ShouldBeTrue)

			Convey("Then every one should be shown in order", func() {
				for _, id := range burst {
					want := id
					So(eventually(func() bool { return popupID(svc) == want }), ShouldBeTrue)
					So(finishPopup(clock, svc), ShouldBeTrue)
				}
				So(eventually(stat(svc, "schedulerState", "idle")), ShouldBeTrue)
				stats := svc.GetStats()
				So(stats["popupsShown"], ShouldEqual, int64(len(burst)))
				So(stats["dropped"], ShouldEqual, int64(0))
				So(svc.Unseen(), ShouldResemble, burst)
			})
		})
	})
}

func TestService_AcknowledgeQueued(t *testing.T) {
	Convey("Given two new achievements with the first on screen", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		clock := clockwork.NewFakeClock()
		source := newFakeSource()
		svc := service.New(platform.NewStaticSession("u1"), source,
			service.WithWorkerCount(1),
			service.WithClock(clock),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		So(svc.Initialize(), ShouldBeTrue)
		So(eventually(initialized(svc)), ShouldBeTrue)

		source.award("u1", "n1", "n2")
		So(svc.Check(), ShouldBeTrue)
		So(eventually(func() bool { return popupID(svc) == "n1" }), ShouldBeTrue)
		So(eventually(stat(svc, "pendingLength", 1)), ShouldBeTrue)

		Convey("When the queued one is acknowledged", func() {
			So(svc.MarkAsSeen("n2"), ShouldBeTrue)

			Convey("Then it should leave the unseen set but stay queued for display", func() {
				So(svc.Unseen(), ShouldResemble, []string{"n1"})
				So(svc.GetStats()["pendingLength"], ShouldEqual, 1)
				So(popupID(svc), ShouldEqual, "n1")

				So(finishPopup(clock, svc), ShouldBeTrue)
				So(eventually(func() bool { return popupID(svc) == "n2" }), ShouldBeTrue)
				So(svc.GetStats()["pendingLength"], ShouldEqual, 0)
				So(svc.Unseen(), ShouldResemble, []string{"n1"})
			})
		})
	})
}

func TestService_UserChange(t *testing.T) {
	Convey("Given a backlog of one user's achievements", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		clock := clockwork.NewFakeClock()
		source := newFakeSource()
		source.award("u2", "d1")
		svc := service.New(platform.NewStaticSession("u1"), source,
			service.WithQueueSize(1),
			service.WithWorkerCount(1),
			service.WithClock(clock),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		So(svc.Initialize(), ShouldBeTrue)
		So(eventually(initialized(svc)), ShouldBeTrue)

		// c1 on screen, c2 pending, c3 held by the worker, c4 waiting for it.
		source.award("u1", "c1", "c2", "c3", "c4")
		So(svc.Check(), ShouldBeTrue)
		So(eventually(func() bool { return popupID(svc) == "c1" }), ShouldBeTrue)
		So(eventually(stat(svc, "pendingLength", 1)), ShouldBeTrue)
		So(eventually(stat(svc, "jobsLength", 1)), ShouldBeTrue)
		// Let the worker reach the full pending queue with c3.
		time.Sleep(20 * time.Millisecond)

		Convey("When another user signs in", func() {
			So(svc.SignIn("u2"), ShouldBeNil)
			So(eventually(stat(svc, "knownCount", int64(1))), ShouldBeTrue)

			Convey("Then nothing queued for the previous user should be shown", func() {
				So(svc.GetStats()["pendingLength"], ShouldEqual, 0)
				So(svc.Unseen(), ShouldBeEmpty)
				So(eventually(stat(svc, "dropped", int64(1))), ShouldBeTrue)

				So(finishPopup(clock, svc), ShouldBeTrue)
				So(eventually(stat(svc, "schedulerState", "idle")), ShouldBeTrue)
				So(svc.GetStats()["popupsShown"], ShouldEqual, int64(1))
				So(svc.GetStats()["pendingLength"], ShouldEqual, 0)

				source.award("u2", "d2")
				So(svc.Check(), ShouldBeTrue)
				So(eventually(func() bool { return popupID(svc) == "d2" }), ShouldBeTrue)
				So(eventually(stat(svc, "popupsShown", int64(2))), ShouldBeTrue)
			})
		})
	})
}

func TestService_PopupStreamAcrossRestart(t *testing.T) {
	Convey("Given a popup subscriber attached before a restart", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		clock := clockwork.NewFakeClock()
		source := newFakeSource()
		svc := service.New(platform.NewStaticSession("u1"), source,
			service.WithWorkerCount(1),
			service.WithClock(clock),
		)
		popups := svc.SubscribePopup(ctx)
		So(<-popups, ShouldBeNil)

		So(svc.Start(ctx), ShouldBeNil)
		svc.Stop()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		So(svc.Initialize(), ShouldBeTrue)
		So(eventually(initialized(svc)), ShouldBeTrue)

		Convey("When an achievement is shown after the restart", func() {
			source.award("u1", "r1")
			So(svc.Check(), ShouldBeTrue)

			Convey("Then the same stream should deliver it", func() {
				p := nextPopup(popups)
				So(p, ShouldNotBeNil)
				So(p.Achievement.ID, ShouldEqual, "r1")
				a, ok := svc.CurrentPopup()
				So(ok, ShouldBeTrue)
				So(a.ID, ShouldEqual, "r1")
			})
		})
	})
}

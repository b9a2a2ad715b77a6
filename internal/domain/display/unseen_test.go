package display_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/lingoquest/internal/domain/display"
	. "github.com/smartystreets/goconvey/convey"
)

func TestUnseen(t *testing.T) {
	Convey("Given an unseen set", t, func() {
		u := display.NewUnseen()

		Convey("When ids are added", func() {
			u.Add("a1", "a2")
			u.Add("a2", "a3")

			Convey("Then they should be kept once each in award order", func() {
				So(u.Snapshot(), ShouldResemble, []string{"a1", "a2", "a3"})
				So(u.Count(), ShouldEqual, 3)
				So(u.Contains("a2"), ShouldBeTrue)
			})

			Convey("And marking one as seen removes only that one", func() {
				u.MarkAsSeen("a2")
				So(u.Snapshot(), ShouldResemble, []string{"a1", "a3"})
			})

			Convey("And marking an unknown id is a no-op", func() {
				u.MarkAsSeen("zzz")
				So(u.Count(), ShouldEqual, 3)
			})

			Convey("And marking all as seen empties the set", func() {
				u.MarkAllAsSeen()
				So(u.Count(), ShouldEqual, 0)
				So(u.Snapshot(), ShouldBeEmpty)
			})
		})

		Convey("When the snapshot is modified by the caller", func() {
			u.Add("a1")
			snap := u.Snapshot()
			snap[0] = "changed"

			Convey("Then the set should be unaffected", func() {
				So(u.Contains("a1"), ShouldBeTrue)
			})
		})

		Convey("When subscribed", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			updates := u.Subscribe(ctx)
			<-updates

			u.Add("a1")

			Convey("Then the subscriber should see the new set", func() {
				var got []string
				select {
				case got = <-updates:
				case <-time.After(time.Second):
				}
				So(got, ShouldResemble, []string{"a1"})
			})
		})
	})
}

package main

import (
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func TestRootCommandFlags(t *testing.T) {
	convey.Convey("Given the simulator command", t, func() {
		cmd := newRootCmd()

		convey.Convey("When parsing flags", func() {
			err := cmd.ParseFlags([]string{"--user", "u9", "--catalog", "12", "--unlock-every", "2s", "--fail-rate", "0.25"})

			convey.Convey("Then the values should be applied", func() {
				convey.So(err, convey.ShouldBeNil)
				user, _ := cmd.Flags().GetString("user")
				catalog, _ := cmd.Flags().GetInt("catalog")
				every, _ := cmd.Flags().GetDuration("unlock-every")
				rate, _ := cmd.Flags().GetFloat64("fail-rate")
				convey.So(user, convey.ShouldEqual, "u9")
				convey.So(catalog, convey.ShouldEqual, 12)
				convey.So(every, convey.ShouldEqual, 2*time.Second)
				convey.So(rate, convey.ShouldEqual, 0.25)
			})
		})

		convey.Convey("Then defaults should point at the notifier's default base URL port", func() {
			addr, _ := cmd.Flags().GetString("addr")
			convey.So(addr, convey.ShouldEqual, ":8000")
		})
	})
}

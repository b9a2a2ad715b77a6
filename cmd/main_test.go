package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/okian/lingoquest/internal/config"
	"github.com/okian/lingoquest/pkg/logger"
	"github.com/okian/lingoquest/pkg/metrics"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		cmd := newRootCmd()

		convey.Convey("Then it should expose the config and log-level flags", func() {
			convey.So(cmd.Use, convey.ShouldEqual, "lingoquest-notifier")
			convey.So(cmd.Flags().Lookup("config"), convey.ShouldNotBeNil)
			convey.So(cmd.Flags().Lookup("config").Shorthand, convey.ShouldEqual, "c")
			convey.So(cmd.Flags().Lookup("log-level"), convey.ShouldNotBeNil)
		})

		convey.Convey("When the config file is missing", func() {
			cmd.SetArgs([]string{"--config", "/does/not/exist.yaml"})
			cmd.SetOut(&discard{})
			cmd.SetErr(&discard{})
			err := cmd.ExecuteContext(context.Background())

			convey.Convey("Then execution should fail before anything starts", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestBuildService(t *testing.T) {
	convey.Convey("Given a configuration", t, func() {
		cfg := config.New()

		convey.Convey("When the base URL is invalid", func() {
			cfg.APIBaseURL = "not a url"
			_, err := buildService(cfg)

			convey.Convey("Then building should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When a session user is pinned", func() {
			cfg.SessionUserID = "learner-1"
			cfg.WorkerCount = 3
			svc, err := buildService(cfg)

			convey.Convey("Then the service should accept sign-in switches", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(svc.GetStats()["workerCount"], convey.ShouldEqual, 3)
				convey.So(svc.SignIn("learner-2"), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the platform decides the session", func() {
			svc, err := buildService(cfg)

			convey.Convey("Then sign-in should be refused", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(svc.SignIn("learner-2"), convey.ShouldNotBeNil)
			})
		})
	})
}

func TestRouter(t *testing.T) {
	convey.Convey("Given the process router", t, func() {
		ctx := context.Background()
		svc, err := buildService(config.New())
		convey.So(err, convey.ShouldBeNil)
		r := newRouter(ctx, svc)

		for _, path := range []string{"/healthz", "/metrics", "/stats", "/openapi.yaml", "/api-docs"} {
			req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
		}

		convey.Convey("And detection requests should be refused before start", func() {
			req := httptest.NewRequest(http.MethodPost, "/achievements/check", http.NoBody)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			convey.So(w.Code, convey.ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)
	})
}

func goroutineGauge() float64 {
	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if strings.HasSuffix(f.GetName(), "system_goroutine_count") {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	return 0
}

func TestSystemMetricsUpdater(t *testing.T) {
	convey.Convey("Given the configured refresh interval", t, func() {
		original := metrics.RefreshInterval()
		convey.Reset(func() { metrics.SetRefreshInterval(original) })

		metrics.UpdateSystemGoroutineCount(0)
		metrics.SetRefreshInterval(5 * time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		stopped := make(chan struct{})
		go func() {
			startSystemMetricsUpdater(ctx, metrics.RefreshInterval())
			close(stopped)
		}()

		convey.Convey("Then the updater should sample on that interval and stop with ctx", func() {
			deadline := time.Now().Add(2 * time.Second)
			for goroutineGauge() == 0 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			convey.So(goroutineGauge(), convey.ShouldBeGreaterThan, 0)

			cancel()
			select {
			case <-stopped:
			case <-time.After(time.Second):
				t.Fatal("updater did not stop")
			}
		})
	})
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

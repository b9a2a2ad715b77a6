package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/okian/lingoquest/internal/adapters/http/api"
	"github.com/okian/lingoquest/internal/adapters/http/swagger"
	"github.com/okian/lingoquest/internal/adapters/platform"
	app "github.com/okian/lingoquest/internal/app"
	"github.com/okian/lingoquest/internal/config"
	"github.com/okian/lingoquest/internal/domain/detection"
	"github.com/okian/lingoquest/pkg/logger"
	"github.com/okian/lingoquest/pkg/metrics"
	"github.com/okian/lingoquest/pkg/tracing"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "lingoquest-notifier",
		Short:        "Detects newly unlocked achievements and schedules their popups",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file (env: LINGOQUEST_CONFIG)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override log_level (debug, info, warn, error)")
	return cmd
}

func run(ctx context.Context, opts *rootOptions) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx, opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	shutdownTracing, err := tracing.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		log.Warn(ctx, "tracing disabled", logger.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error(flushCtx, "tracing shutdown failed", logger.Error(err))
		}
	}()

	svc, err := buildService(cfg)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()
	svc.Initialize()

	metrics.SetRefreshInterval(cfg.MetricsRefresh())
	go startSystemMetricsUpdater(ctx, metrics.RefreshInterval())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, svc),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info(ctx, "shutting down server...")
	case err := <-errCh:
		log.Error(ctx, "HTTP server failed", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
	return nil
}

// buildService wires the platform client and session gate into a service.
func buildService(cfg *config.Config) (*app.Service, error) {
	clientOpts := []platform.Option{platform.WithTimeout(cfg.RequestTimeout())}
	if cfg.APIToken != "" {
		clientOpts = append(clientOpts, platform.WithToken(cfg.APIToken))
	}
	client, err := platform.NewClient(cfg.APIBaseURL, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("platform client: %w", err)
	}

	// A pinned user gets a switchable session; otherwise the platform decides.
	var session detection.SessionProvider = client
	if cfg.SessionUserID != "" {
		session = platform.NewStaticSession(cfg.SessionUserID)
	}

	return app.New(session, client,
		app.WithLogger(logger.Get()),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithPopupTimings(cfg.PopupVisible(), cfg.PopupCooldown()),
		app.WithPollInterval(cfg.PollInterval()),
	), nil
}

func newRouter(ctx context.Context, svc *app.Service) *mux.Router {
	r := api.NewServer(svc, svc).Router(ctx)
	swagger.Register(ctx, r)
	return r
}

// startSystemMetricsUpdater samples system metrics every interval until ctx
// is done.
func startSystemMetricsUpdater(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

package simulator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/lingoquest/pkg/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Seed builds a store and platform from config and awards the initial
// unlocks.
func Seed(ctx context.Context, config Config) (*Platform, error) {
	if config.CatalogSize <= 0 {
		return nil, fmt.Errorf("catalog size must be positive, got %d", config.CatalogSize)
	}
	if config.FailRate < 0 || config.FailRate > 1 {
		return nil, fmt.Errorf("fail rate must be within [0,1], got %v", config.FailRate)
	}

	store := NewStore(GenerateCatalog(config.CatalogSize, time.Now().UTC()))
	platform := NewPlatform(store, config.UserID, config.FailRate)

	if config.UserID != "" {
		for i := 0; i < config.InitialUnlocks; i++ {
			if _, err := store.Unlock(config.UserID); err != nil {
				break
			}
		}
	}

	logger.Get().Info(ctx, "platform seeded",
		logger.Int("catalog", config.CatalogSize),
		logger.Int("initialUnlocks", len(store.List(config.UserID))),
		logger.String("user", config.UserID))
	return platform, nil
}

// Run serves the simulated platform until ctx is cancelled.
func Run(ctx context.Context, config Config) error {
	platform, err := Seed(ctx, config)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              config.Addr,
		Handler:           platform.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Get().Info(ctx, "platform simulator listening", logger.String("addr", config.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if config.UnlockInterval > 0 {
		go unlockLoop(ctx, platform, config.UnlockInterval)
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	stats := platform.Stats()
	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("unlocked", stats.Unlocked),
		logger.Int("listServed", stats.ListServed),
		logger.Int("detailServed", stats.DetailServed),
		logger.Int("detailFailed", stats.DetailFailed))
	return nil
}

func unlockLoop(ctx context.Context, platform *Platform, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rec, err := platform.Unlock()
			if err != nil {
				logger.Get().Debug(ctx, "unlock skipped", logger.Error(err))
				continue
			}
			logger.Get().Info(ctx, "achievement unlocked",
				logger.String("user", rec.UserID),
				logger.String("achievement", rec.AchievementID))
		}
	}
}

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/lingoquest/internal/simulator"
	"github.com/okian/lingoquest/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := simulator.DefaultConfig()
	var logLevel string

	cmd := &cobra.Command{
		Use:          "platform-sim",
		Short:        "Runs a fake learning platform that unlocks achievements over time",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(); err != nil {
				return err
			}
			if err := logger.SetLevelString(logLevel); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return simulator.Run(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	f.StringVar(&cfg.UserID, "user", cfg.UserID, "signed-in user; empty serves no session")
	f.IntVar(&cfg.CatalogSize, "catalog", cfg.CatalogSize, "number of achievements in the catalog")
	f.IntVar(&cfg.InitialUnlocks, "initial", cfg.InitialUnlocks, "achievements awarded before serving")
	f.DurationVar(&cfg.UnlockInterval, "unlock-every", cfg.UnlockInterval, "period between random unlocks (0 disables)")
	f.Float64Var(&cfg.FailRate, "fail-rate", cfg.FailRate, "probability that an achievement detail request fails")
	f.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

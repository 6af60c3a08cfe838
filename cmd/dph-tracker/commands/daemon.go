package commands

import (
	"context"
	"dph-tracker/internal/chrono"
	"dph-tracker/internal/telemetry"
	"dph-tracker/internal/tracker"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runScheduled(ctx context.Context, t tracker.Tracker) {
	outcome, err := t.Run(ctx)
	if err != nil {
		slog.Error("scheduled run failed", "err", err)
		return
	}
	for _, line := range outcome.Status() {
		slog.Info(line)
	}
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Runs the tracker on the configured cron schedule until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		t, closeAll, err := newTracker(ctx)
		if err != nil {
			return err
		}
		defer func() {
			err := closeAll()
			if err != nil {
				slog.Warn("failed to release resources", "err", err)
			}
		}()

		telemetry.InstrumentPerfStats(ctx)

		cron := chrono.NewStandardCron(tel)
		err = cron.Cron(cfg.Daemon.Schedule, func() {
			runScheduled(ctx, t)
		})
		if err != nil {
			return fmt.Errorf("invalid schedule '%s': %w", cfg.Daemon.Schedule, err)
		}

		if cfg.Daemon.RunOnStart {
			runScheduled(ctx, t)
		}

		slog.Info("scheduled tracker", "schedule", cfg.Daemon.Schedule)
		cron.Start()
		<-ctx.Done()
		cron.Stop()
		return nil
	},
}

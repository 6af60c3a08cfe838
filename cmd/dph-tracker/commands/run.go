package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetches the county page once and records its counts if they are new.",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, closeAll, err := newTracker(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			err := closeAll()
			if err != nil {
				slog.Warn("failed to release resources", "err", err)
			}
		}()

		outcome, err := t.Run(cmd.Context())
		if err != nil {
			return err
		}
		printLines(cmd, outcome.Status())
		return nil
	},
}

package commands

import (
	"context"
	"dph-tracker/internal/chrono"
	"dph-tracker/internal/config"
	"dph-tracker/internal/scrapers/dph"
	"dph-tracker/internal/telemetry"
	"dph-tracker/internal/tracker"
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var configPath string
var debug bool

// loaded in PersistentPreRunE
var cfg config.Config
var tel telemetry.API = telemetry.SlogAPI{}

var rootCmd = &cobra.Command{
	Use:          "dph-tracker",
	Short:        "dph-tracker keeps a history of the counts published on the L.A. County public health dashboard.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		telemetry.InitSlog(debug || cfg.Debug)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "The config file to read, a <name>.local.json5 next to it overrides its fields.")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enables debug logs.")
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func newTable(cmd *cobra.Command) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(cmd.OutOrStdout())
	return t
}

// newTracker wires the tracker from the config, the returned function releases
// the store and the publishers.
func newTracker(ctx context.Context) (tracker.Tracker, func() error, error) {
	vocab, err := cfg.Vocabulary.Build()
	if err != nil {
		return tracker.Tracker{}, nil, err
	}

	store, closeStore, err := cfg.History.OpenStore(tel)
	if err != nil {
		return tracker.Tracker{}, nil, fmt.Errorf("open history: %w", err)
	}

	publishers, closePublishers, err := cfg.Publish.Publishers(ctx, tel)
	if err != nil {
		closeStore()
		return tracker.Tracker{}, nil, fmt.Errorf("setup publishers: %w", err)
	}

	t := tracker.NewTracker(
		dph.NewClient(cfg.Source.Options(), tel),
		store,
		vocab,
		chrono.NewStandardTime(),
		tel,
		publishers...,
	)
	closeAll := func() error {
		return errors.Join(closePublishers(), closeStore())
	}
	return t, closeAll, nil
}

func printLines(cmd *cobra.Command, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
}

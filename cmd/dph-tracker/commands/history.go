package commands

import (
	"dph-tracker/internal/history"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyDate string
var historySection string
var historyPrevious bool
var historyDates bool

func init() {
	historyCmd.Flags().StringVar(&historyDate, "date", "", "The report date (MM-DD) to print, defaults to the latest one.")
	historyCmd.Flags().StringVar(&historySection, "section", "", "Only print rows of sections containing this text.")
	historyCmd.Flags().BoolVar(&historyPrevious, "previous", false, "Read the snapshot taken before the last update instead.")
	historyCmd.Flags().BoolVar(&historyDates, "dates", false, "List the recorded dates and their row counts.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--date MM-DD] [--section <text>] [--previous] [--dates]",
	Short: "Prints the recorded counts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := cfg.History.OpenStore(tel)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer func() {
			err := closeStore()
			if err != nil {
				slog.Warn("failed to close history", "err", err)
			}
		}()

		var records []history.CountRecord
		if historyPrevious {
			records, err = store.LoadPrevious(cmd.Context())
		} else {
			records, err = store.Load(cmd.Context())
		}
		if err != nil {
			return err
		}

		if historyDates {
			t := newTable(cmd)
			t.AppendHeader(table.Row{"Date", "Rows"})
			for _, date := range history.Dates(records) {
				t.AppendRow(table.Row{date, len(history.OnDate(records, date))})
			}
			t.Render()
			return nil
		}

		date := history.MaxDate(records)
		if historyDate != "" {
			date, err = history.NormalizeDate(historyDate)
			if err != nil {
				return err
			}
		}
		if date == history.NoDate {
			fmt.Fprintln(cmd.OutOrStdout(), "No counts recorded yet.")
			return nil
		}

		t := newTable(cmd)
		t.SetTitle(fmt.Sprintf("L.A. County counts from %s", date))
		t.AppendHeader(table.Row{"Section", "Row", "Count"})
		rows := 0
		for _, r := range history.OnDate(records, date) {
			if historySection != "" && !strings.Contains(r.Section, strings.ToLower(historySection)) {
				continue
			}
			t.AppendRow(table.Row{r.Section, r.RowName, r.Count})
			rows++
		}
		t.AppendFooter(table.Row{"", "Rows", rows})
		t.Render()
		return nil
	},
}

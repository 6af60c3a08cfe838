package commands

import (
	"dph-tracker/internal/scrapers/loinc"
	"fmt"

	"github.com/spf13/cobra"
)

var loincOut string

func init() {
	loincCmd.Flags().StringVar(&loincOut, "out", "", "Where to write the reference CSV, defaults to loinc.output of the config.")
	rootCmd.AddCommand(loincCmd)
}

var loincCmd = &cobra.Command{
	Use:   "loinc [--out <path/to/codes.csv>]",
	Short: "Writes the SARS-CoV-2 LOINC codes as a reference CSV.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cfg.Loinc.Output
		if loincOut != "" {
			out = loincOut
		}

		client := loinc.NewClient(cfg.Loinc.URL, tel)
		entries, err := client.Update(cmd.Context(), out)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d LOINC entries to %s.\n", len(entries), out)
		return nil
	},
}

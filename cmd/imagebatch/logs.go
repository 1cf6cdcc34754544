package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"imagebatch/internal/processlog"
	"imagebatch/internal/tui"
)

var (
	logsCSV bool
	logsAll bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Summarize or export the processing log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		recorder, err := openRecorder()
		if err != nil {
			return err
		}
		entries, err := recorder.Entries()
		if err != nil {
			return err
		}

		if logsCSV {
			return processlog.ExportCSV(os.Stdout, entries)
		}
		if len(entries) == 0 {
			fmt.Fprintf(os.Stdout, "No entries in %s\n", recorder.Path())
			return nil
		}

		if logsAll {
			for _, e := range entries {
				fmt.Fprintf(os.Stdout, "%s  %s -> %s  %s -> %s (%.1f%%)\n",
					e.Date.Format("2006-01-02 15:04:05"), e.InputFile, e.OutputFile,
					tui.FormatBytes(e.OriginalSize), tui.FormatBytes(e.ProcessedSize), e.ReductionPercentage()*100)
			}
			return nil
		}

		var rows []tui.SummaryRow
		for _, day := range processlog.GroupByDay(entries) {
			saving := day.TotalReductionPercentage()
			rows = append(rows, tui.SummaryRow{
				Label: fmt.Sprintf("%s (%d files)", day.Date.Format("2006-01-02"), len(day.Entries)),
				Value: tui.FormatSaving(day.TotalOriginalSize, day.TotalProcessedSize, &saving),
			})
		}
		fmt.Fprintln(os.Stdout, tui.RenderSummary(rows))
		return nil
	},
}

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the processing log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		recorder, err := openRecorder()
		if err != nil {
			return err
		}
		if err := recorder.Clear(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Cleared %s\n", recorder.Path())
		return nil
	},
}

func init() {
	logsCmd.Flags().BoolVar(&logsCSV, "csv", false, "write the log as ';'-separated CSV to stdout")
	logsCmd.Flags().BoolVarP(&logsAll, "all", "a", false, "list every entry instead of the daily summary")

	logsCmd.AddCommand(logsClearCmd)
	rootCmd.AddCommand(logsCmd)
}

func openRecorder() (*processlog.Recorder, error) {
	cfg := loadConfig()
	return processlog.NewRecorder(afero.NewOsFs(), cfg.LogFilePath())
}

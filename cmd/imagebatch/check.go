package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"imagebatch/internal/services"
	"imagebatch/internal/tui"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that the external tools are installed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		tools, err := services.ResolveToolchain(cfg.ToolsDir, cfg.ModelsDir, runtime.GOOS)
		if err != nil {
			return err
		}

		missing := map[string]bool{}
		for _, name := range tools.Missing() {
			missing[name] = true
		}

		var rows []tui.SummaryRow
		for _, tool := range []services.Tool{services.ToolUpscaler, services.ToolWebP, services.ToolAvif} {
			state := "ok"
			if missing[tools.Name(tool)] {
				state = "MISSING"
			}
			rows = append(rows, tui.SummaryRow{Label: string(tool), Value: fmt.Sprintf("%-7s %s", state, tools.Path(tool))})
		}
		rows = append(rows,
			tui.SummaryRow{Label: "models", Value: tools.ModelsDir},
			tui.SummaryRow{Label: "log", Value: cfg.LogFilePath()},
		)
		fmt.Fprintln(os.Stdout, tui.RenderSummary(rows))

		if len(missing) > 0 {
			names := tools.Missing()
			return fmt.Errorf("%w: %s", services.ErrMissingTools, strings.Join(names, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

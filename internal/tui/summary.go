package tui

import (
	"fmt"
	"strings"

	"imagebatch/internal/models"
)

type SummaryRow struct {
	Label string
	Value string
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
		if len(row.Value) > valueWidth {
			valueWidth = len(row.Value)
		}
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		line := fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value))
		lines = append(lines, line)
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

// JobSummary builds the rows printed after a run
func JobSummary(status models.JobStatus, processed, skipped int, last *models.Snapshot, elapsed string) []SummaryRow {
	rows := []SummaryRow{
		{Label: "Status", Value: string(status)},
		{Label: "Files processed", Value: fmt.Sprintf("%d", processed)},
		{Label: "Files skipped", Value: fmt.Sprintf("%d", skipped)},
	}
	if last != nil {
		rows = append(rows,
			SummaryRow{Label: "Space saved", Value: FormatSaving(last.TotalOriginalSize, last.TotalConvertedSize, last.TotalSpaceSaving)},
		)
		if last.ErrorMessage != "" {
			rows = append(rows, SummaryRow{Label: "Error", Value: last.ErrorMessage})
		}
	}
	return append(rows, SummaryRow{Label: "Elapsed", Value: elapsed})
}

// FormatSaving renders "12.3 MB -> 4.1 MB (66.7%)"; the percentage is omitted when unknown
func FormatSaving(original, converted int64, saving *float64) string {
	out := fmt.Sprintf("%s -> %s", FormatBytes(original), FormatBytes(converted))
	if saving != nil {
		out += fmt.Sprintf(" (%.1f%%)", *saving*100)
	}
	return out
}

// FormatBytes renders a byte count with a binary unit
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

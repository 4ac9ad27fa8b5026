package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"chargecal/internal/timeutil"
	"chargecal/output"
)

var (
	exportFormat string
	exportMode   string
	exportOutput string
	exportPeriod string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export one month of calendar events to CSV/Excel",
	Long: `Export the materialized events of one month.

Modes:
- events: one row per calendar event (split charges appear as two parts)
- daily: per-day aggregates (first start, last end, regular/overtime hours,
  lunch deduction, net regular hours, break hours) plus a total row

Output format can be selected explicitly via --format or inferred from --output extension.`,
	Example: `
  # Export events to CSV
  chargecal export --period 2024-03 --output ./events.csv

  # Export the daily summary of the local database to Excel
  chargecal export --backend local --period 2024-03 --mode daily --output ./daily.xlsx

  # Force Excel format independent of extension
  chargecal export --period 2024-03 --mode daily --format excel --output ./daily.out
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := timeutil.ParsePeriod(exportPeriod)
		if err != nil {
			return err
		}
		format := exportFormat
		if strings.TrimSpace(format) == "" {
			format = detectExportFormat(exportOutput)
		}

		application, err := openApp(backendFlag, nil)
		if err != nil {
			return err
		}
		defer application.Close()

		events, err := application.ctrl.Events(cmd.Context(), period)
		if err != nil {
			return err
		}

		mode := strings.TrimSpace(strings.ToLower(exportMode))
		switch mode {
		case "", "events":
			writer, writerErr := output.WriterForFormat(format)
			if writerErr != nil {
				return writerErr
			}
			if err := writer.Write(exportOutput, events); err != nil {
				return err
			}
			fmt.Printf("Export completed. Events: %d, Mode: events, Format: %s, File: %s\n", len(events), format, exportOutput)
		case "daily":
			summaries := output.BuildDailySummaries(events, application.loc)
			if err := output.WriteDailySummaries(exportOutput, format, summaries); err != nil {
				return err
			}
			totals := output.SumMonth(summaries)
			fmt.Printf("Export completed. Days: %d, Regular: %s h, Overtime: %s h, Mode: daily, Format: %s, File: %s\n",
				len(summaries),
				totals.RegularHours.StringFixed(2),
				totals.OvertimeHours.StringFixed(2),
				format,
				exportOutput,
			)
		default:
			return fmt.Errorf("unsupported export mode: %s (supported: events, daily)", exportMode)
		}
		return nil
	},
}

func detectExportFormat(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "csv":
		return "csv"
	case "xlsx", "xlsm", "xls":
		return "excel"
	default:
		return "csv"
	}
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportMode, "mode", "events", "Export mode: events|daily")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "Output format: csv|excel (optional, inferred from output extension)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path")
	exportCmd.Flags().StringVarP(&exportPeriod, "period", "p", "", "Month to export, format YYYY-MM")

	_ = exportCmd.MarkFlagRequired("output")
	_ = exportCmd.MarkFlagRequired("period")
}

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"chargecal/importer"
)

var (
	importInputs []string
	importFormat string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import time charges from CSV/Excel files",
	Long: `Read source files, map each row to a time charge, validate it against the
calendar, and create it through the selected backend.

Rows failing validation are reported and skipped; the remaining rows are still
imported. Rows identical to a charge already on the calendar are counted as
duplicates and skipped, so re-running an import is safe. Reference fields missing from a row (project, stage, activity, task)
are taken from the first config rule whose file_template matches the file name.
When --format is omitted, format is inferred from each input file extension.`,
	Example: `
  # Import a CSV export into the local database
  chargecal import -i ./march.csv --backend local

  # Validate only
  chargecal import -i ./march.xlsx --dry-run

  # Tab-separated file with a non-standard extension
  chargecal import -i ./charges.txt --format tsv
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(backendFlag, nil)
		if err != nil {
			return err
		}
		defer application.Close()

		result, err := importer.Run(cmd.Context(), importInputs, application.ctrl, importer.RunOptions{
			Format:   importFormat,
			Rules:    application.cfg.Rules,
			Location: application.loc,
			DryRun:   importDryRun,
			Logger:   &application.logger,
		})
		if err != nil {
			return err
		}

		printImportResult(os.Stdout, result, importDryRun)
		if len(result.Rejected) > 0 {
			return fmt.Errorf("%d row(s) rejected", len(result.Rejected))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringArrayVarP(&importInputs, "input", "i", nil, "Input file path (repeatable)")
	importCmd.Flags().StringVarP(&importFormat, "format", "f", "", "Input format: csv|tsv|excel (optional, inferred from extension when omitted)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate rows without creating time charges")

	_ = importCmd.MarkFlagRequired("input")
}

func printImportResult(out io.Writer, result *importer.Result, dryRun bool) {
	createdLabel := "Rows created"
	if dryRun {
		createdLabel = "Rows valid"
	}
	fmt.Fprintf(out, "Import completed. Files: %d, Rows read: %d, Rows mapped: %d, Rows skipped: %d, Duplicates: %d, %s: %d, Rows rejected: %d\n",
		result.FilesProcessed,
		result.RowsRead,
		result.RowsMapped,
		result.RowsSkipped,
		result.Duplicates,
		createdLabel,
		len(result.Created),
		len(result.Rejected),
	)
	for _, rejection := range result.Rejected {
		fmt.Fprintf(out, "  %s\n", rejection.String())
	}
}

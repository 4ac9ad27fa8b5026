package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chargecal/chargeapi"
	"chargecal/internal/timeutil"
)

var (
	holidaysInputs []string
	holidaysFrom   string
	holidaysTo     string
	holidaysYear   int
)

var holidaysCmd = &cobra.Command{
	Use:   "holidays",
	Short: "Manage the holiday calendar used for overtime classification.",
	Long: `Import and list holidays.

Fixed holidays recur every year on the same month and day; dynamic holidays
apply to one date only. A holiday turns overtime on that date into
weekday_holiday or weekend_holiday overtime.`,
}

var holidaysImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import holidays from iCalendar or YAML files into the local database",
	Long: `Read .ics or .yaml holiday files and upsert them into the local SQLite database.

iCalendar events with a plain FREQ=YEARLY rule become fixed holidays. Other
recurrences are expanded between --from and --to (default: the current year)
and stored as dynamic holidays.`,
	Example: `
  # Public holidays feed
  chargecal holidays import -i ./ph-holidays.ics --from 2024-01-01 --to 2025-12-31

  # Hand-maintained list
  chargecal holidays import -i ./holidays.yaml
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(backendLocal, nil)
		if err != nil {
			return err
		}
		defer application.Close()

		store, err := application.requireStore("holidays import")
		if err != nil {
			return err
		}
		from, to, err := parseHolidayRange(holidaysFrom, holidaysTo, application.loc, time.Now())
		if err != nil {
			return err
		}

		total := 0
		for _, path := range holidaysInputs {
			entries, err := readHolidayEntries(path, application.loc, from, to)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			written, err := store.InsertHolidays(cmd.Context(), entries)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			application.logger.Debug().Str("file", path).Int("entries", len(entries)).Int("written", written).Msg("holidays imported")
			total += written
		}

		fmt.Printf("Holiday import completed. Files: %d, Holidays written: %d\n", len(holidaysInputs), total)
		return nil
	},
}

var holidaysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the holidays of one year",
	Example: `
  chargecal holidays list --year 2024
  chargecal holidays list --backend local
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(backendFlag, nil)
		if err != nil {
			return err
		}
		defer application.Close()

		year := holidaysYear
		if year == 0 {
			year = time.Now().In(application.loc).Year()
		}
		first := time.Date(year, time.January, 1, 0, 0, 0, 0, application.loc)
		last := time.Date(year, time.December, 31, 0, 0, 0, 0, application.loc)

		holidays, err := application.client.ListHolidays(cmd.Context(), first, last, year)
		if err != nil {
			return err
		}
		printHolidays(os.Stdout, holidays)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(holidaysCmd)
	holidaysCmd.AddCommand(holidaysImportCmd)
	holidaysCmd.AddCommand(holidaysListCmd)

	holidaysImportCmd.Flags().StringArrayVarP(&holidaysInputs, "input", "i", nil, "Holiday file path, .ics or .yaml (repeatable)")
	holidaysImportCmd.Flags().StringVar(&holidaysFrom, "from", "", "Start of recurrence expansion, format YYYY-MM-DD")
	holidaysImportCmd.Flags().StringVar(&holidaysTo, "to", "", "End of recurrence expansion, format YYYY-MM-DD")
	_ = holidaysImportCmd.MarkFlagRequired("input")

	holidaysListCmd.Flags().IntVar(&holidaysYear, "year", 0, "Year to list (default: current year)")
}

// parseHolidayRange defaults to the whole current year. The end date is
// inclusive.
func parseHolidayRange(fromValue, toValue string, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	year := now.In(loc).Year()
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, loc)

	var err error
	if strings.TrimSpace(fromValue) != "" {
		if from, err = timeutil.ParseDate(fromValue, loc); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from value: %w", err)
		}
	}
	if strings.TrimSpace(toValue) != "" {
		if to, err = timeutil.ParseDate(toValue, loc); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to value: %w", err)
		}
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid range: --from must be <= --to")
	}
	return from, timeutil.EndOfDay(to), nil
}

func printHolidays(out io.Writer, holidays chargeapi.Holidays) {
	fmt.Fprintf(out, "Fixed holidays: %d\n", len(holidays.Fixed))
	for _, entry := range holidays.Fixed {
		fmt.Fprintf(out, "  %s  %s\n", entry.Date, entry.Name)
	}
	fmt.Fprintf(out, "Dynamic holidays: %d\n", len(holidays.Dynamic))
	for _, entry := range holidays.Dynamic {
		fmt.Fprintf(out, "  %s  %s\n", entry.Date, entry.Name)
	}
}

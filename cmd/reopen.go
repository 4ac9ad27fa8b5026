package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reopenPeriod string

var reopenCmd = &cobra.Command{
	Use:   "reopen <id>...",
	Short: "Move approved or declined time charges back to pending",
	Long: `Reopen finalized time charges so they can be edited again.

This is separate from a normal edit: approved and declined charges stay read-only
until reopened. With --period the month is loaded first and pending charges are
refused before the remote call.`,
	Example: `
  chargecal reopen 42 43 --period 2024-03
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(backendFlag, nil)
		if err != nil {
			return err
		}
		defer application.Close()

		if err := preloadFlagPeriod(cmd.Context(), application.ctrl, reopenPeriod); err != nil {
			return err
		}
		if err := application.ctrl.Reopen(cmd.Context(), args); err != nil {
			return err
		}
		fmt.Printf("Reopened time charges: %d\n", len(args))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reopenCmd)

	reopenCmd.Flags().StringVarP(&reopenPeriod, "period", "p", "", "Month holding the charges, format YYYY-MM")
}

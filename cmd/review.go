package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var approveCmd = &cobra.Command{
	Use:   "approve <id>...",
	Short: "Approve pending time charges in the local database",
	Long: `Mark pending time charges approved. Approved charges become read-only and can
no longer be deleted. Either every listed charge is approved or none.

Review decisions are made by the remote system; this command only exists for
the local backend.`,
	Example: `
  chargecal approve 42 43
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReview(cmd.Context(), "approve", args, func(a *app, ctx context.Context, ids []string) error {
			return a.store.Approve(ctx, ids...)
		})
	},
}

var declineCmd = &cobra.Command{
	Use:   "decline <id>...",
	Short: "Decline pending time charges in the local database",
	Long: `Mark pending time charges declined. Declined charges stay visible on the
calendar but no longer count towards day totals or overlap checks.`,
	Example: `
  chargecal decline 42
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReview(cmd.Context(), "decline", args, func(a *app, ctx context.Context, ids []string) error {
			return a.store.Decline(ctx, ids...)
		})
	},
}

func init() {
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(declineCmd)
}

func runReview(ctx context.Context, name string, ids []string, apply func(*app, context.Context, []string) error) error {
	application, err := openApp(backendLocal, nil)
	if err != nil {
		return err
	}
	defer application.Close()

	if _, err := application.requireStore(name); err != nil {
		return err
	}
	if err := apply(application, ctx, ids); err != nil {
		return err
	}
	application.logger.Info().Strs("record_ids", ids).Str("decision", name).Msg("time charges reviewed")
	fmt.Printf("%s completed. Time charges: %d\n", name, len(ids))
	return nil
}

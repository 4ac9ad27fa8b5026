package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"chargecal/controller"
	"chargecal/internal/timeutil"
)

var (
	deletePeriods []string
	deleteYes     bool
)

var (
	deletePromptInput  io.Reader = os.Stdin
	deletePromptOutput io.Writer = os.Stdout
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete time charges",
	Long: `Delete one or more time charges through the selected backend.

Approved charges cannot be deleted. The months given with --period are loaded
first so the status check happens before any remote call; an id not found in
them is refused.
Before deletion, an interactive security prompt requires typing exactly "Y"
unless --yes is given.`,
	Example: `
  # Delete one charge of March (requires interactive confirmation)
  chargecal delete 42 --period 2024-03

  # Delete charges of two months without prompting
  chargecal delete 42 57 -p 2024-03 -p 2024-04 --yes --backend local
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !deleteYes {
			confirmed, err := confirmDeletePrompt(deletePromptInput, deletePromptOutput, args)
			if err != nil {
				return err
			}
			if !confirmed {
				return fmt.Errorf("delete aborted: confirmation was not 'Y'")
			}
		}

		application, err := openApp(backendFlag, nil)
		if err != nil {
			return err
		}
		defer application.Close()

		periods, err := parsePeriodFlags(deletePeriods)
		if err != nil {
			return err
		}

		deleted, err := deleteCharges(cmd.Context(), application.ctrl, args, periods)
		fmt.Printf("Deleted time charges: %d\n", deleted)
		return err
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().StringArrayVarP(&deletePeriods, "period", "p", nil, "Month holding the charges, format YYYY-MM (repeatable)")
	_ = deleteCmd.MarkFlagRequired("period")
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
}

type chargeDeleter interface {
	Delete(ctx context.Context, id string, periods ...timeutil.Period) error
}

// deleteCharges stops at the first failure and reports how many ids were
// deleted before it.
func deleteCharges(ctx context.Context, deleter chargeDeleter, ids []string, periods []timeutil.Period) (int, error) {
	for i, id := range ids {
		if err := deleter.Delete(ctx, id, periods...); err != nil {
			return i, fmt.Errorf("time charge %s: %w", id, err)
		}
	}
	return len(ids), nil
}

func confirmDeletePrompt(input io.Reader, output io.Writer, ids []string) (bool, error) {
	if input == nil {
		return false, fmt.Errorf("delete confirmation input is not available")
	}

	if output == nil {
		output = io.Discard
	}

	if _, err := fmt.Fprintf(output, "Delete time charge(s) %s? Type Y to confirm: ", strings.Join(ids, ", ")); err != nil {
		return false, fmt.Errorf("write delete confirmation prompt: %w", err)
	}

	line, err := bufio.NewReader(input).ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			line = strings.TrimSpace(line)
			return line == "Y", nil
		}
		return false, fmt.Errorf("read delete confirmation: %w", err)
	}
	return strings.TrimSpace(line) == "Y", nil
}

func parsePeriodFlags(values []string) ([]timeutil.Period, error) {
	periods := make([]timeutil.Period, 0, len(values))
	for _, value := range values {
		period, err := timeutil.ParsePeriod(value)
		if err != nil {
			return nil, fmt.Errorf("--period %q: %w", value, err)
		}
		periods = append(periods, period)
	}
	return periods, nil
}

// preloadFlagPeriod loads the month given by a --period flag, if any.
func preloadFlagPeriod(ctx context.Context, ctrl *controller.Controller, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	period, err := timeutil.ParsePeriod(value)
	if err != nil {
		return err
	}
	_, err = ctrl.Events(ctx, period)
	return err
}

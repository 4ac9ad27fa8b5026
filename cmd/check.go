package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chargecal/calendar"
	"chargecal/internal/timeutil"
	"chargecal/timecharge"
)

var errCandidateRejected = errors.New("candidate rejected")

type checkInput struct {
	Start     string
	End       string
	Kind      string
	Mode      string
	EditingID string
	Overtime  bool
	NextDayOT bool
	ProjectID string
	StageID   string
	Activity  string
	TaskID    string
	Remarks   string
}

var checkFlags checkInput

type candidateValidator interface {
	Validate(ctx context.Context, candidate calendar.Candidate, mode calendar.Mode, editingID string) (calendar.ErrorMap, error)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a candidate time charge without saving it",
	Long: `Run the conflict validator against the events of the candidate's month (and the
neighbouring month for intervals crossing into it).

Every violated rule is printed. The command exits non-zero when the candidate
would be refused.`,
	Example: `
  # Departmental charge on a weekday
  chargecal check --start "2024-03-11 09:00" --end "2024-03-11 17:00" --kind departmental --task-id 40

  # Re-check an edited charge, excluding its own events from the overlap rule
  chargecal check --mode edit --editing-id 42 --start "2024-03-11 18:00" --end "2024-03-11 20:00" --ot --kind external --project-id 7 --stage-id 2 --activity Design
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(backendFlag, nil)
		if err != nil {
			return err
		}
		defer application.Close()

		valid, err := runCheck(cmd.Context(), application.ctrl, checkFlags, application.loc, os.Stdout)
		if err != nil {
			return err
		}
		if !valid {
			return errCandidateRejected
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkFlags.Start, "start", "", "Start, e.g. 2024-03-11T09:00 or \"2024-03-11 09:00\"")
	checkCmd.Flags().StringVar(&checkFlags.End, "end", "", "End, same formats as --start")
	checkCmd.Flags().StringVar(&checkFlags.Kind, "kind", "departmental", "Charge kind: external|internal|departmental")
	checkCmd.Flags().StringVar(&checkFlags.Mode, "mode", "create", "Validation mode: create|edit|view")
	checkCmd.Flags().StringVar(&checkFlags.EditingID, "editing-id", "", "Record id excluded from overlap and day totals (edit mode)")
	checkCmd.Flags().BoolVar(&checkFlags.Overtime, "ot", false, "Mark the candidate as overtime")
	checkCmd.Flags().BoolVar(&checkFlags.NextDayOT, "next-day-ot", false, "Overtime continuing into the next morning")
	checkCmd.Flags().StringVar(&checkFlags.ProjectID, "project-id", "", "Project id (external/internal)")
	checkCmd.Flags().StringVar(&checkFlags.StageID, "stage-id", "", "Stage id (external/internal)")
	checkCmd.Flags().StringVar(&checkFlags.Activity, "activity", "", "Activity (external/internal)")
	checkCmd.Flags().StringVar(&checkFlags.TaskID, "task-id", "", "Departmental task id")
	checkCmd.Flags().StringVar(&checkFlags.Remarks, "remarks", "", "Remarks")
}

// runCheck validates the input and reports the outcome to out.
func runCheck(ctx context.Context, validator candidateValidator, input checkInput, loc *time.Location, out io.Writer) (bool, error) {
	candidate, err := input.candidate(loc)
	if err != nil {
		return false, err
	}
	mode, err := parseCheckMode(input.Mode)
	if err != nil {
		return false, err
	}

	errs, err := validator.Validate(ctx, candidate, mode, strings.TrimSpace(input.EditingID))
	if err != nil {
		return false, err
	}
	if errs.OK() {
		fmt.Fprintf(out, "OK: %s - %s\n", timeutil.FormatLocal(candidate.Start), timeutil.FormatLocal(candidate.End))
		return true, nil
	}
	for _, rule := range errs.Rules() {
		fmt.Fprintf(out, "%s: %s\n", rule, errs[rule])
	}
	return false, nil
}

func (in checkInput) candidate(loc *time.Location) (calendar.Candidate, error) {
	kind, err := timecharge.ParseKind(in.Kind)
	if err != nil {
		return calendar.Candidate{}, err
	}
	if !kind.IsCharge() {
		return calendar.Candidate{}, fmt.Errorf("kind %q cannot be checked as a time charge", in.Kind)
	}

	candidate := calendar.Candidate{
		Kind:            kind,
		IsOvertime:      in.Overtime,
		NextDayOvertime: in.NextDayOT,
		ProjectID:       strings.TrimSpace(in.ProjectID),
		StageID:         strings.TrimSpace(in.StageID),
		Activity:        strings.TrimSpace(in.Activity),
		TaskID:          strings.TrimSpace(in.TaskID),
		Remarks:         in.Remarks,
	}
	if strings.TrimSpace(in.Start) != "" {
		if candidate.Start, err = timeutil.ParseLocal(in.Start, loc); err != nil {
			return calendar.Candidate{}, fmt.Errorf("invalid --start: %w", err)
		}
	}
	if strings.TrimSpace(in.End) != "" {
		if candidate.End, err = timeutil.ParseLocal(in.End, loc); err != nil {
			return calendar.Candidate{}, fmt.Errorf("invalid --end: %w", err)
		}
	}
	return candidate, nil
}

func parseCheckMode(value string) (calendar.Mode, error) {
	switch mode := calendar.Mode(strings.ToLower(strings.TrimSpace(value))); mode {
	case "":
		return calendar.ModeCreate, nil
	case calendar.ModeCreate, calendar.ModeEdit, calendar.ModeView:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode %q (supported: create, edit, view)", value)
	}
}

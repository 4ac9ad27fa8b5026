package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"chargecal/holiday"
	"chargecal/internal/timeutil"
	"chargecal/timecharge"
)

const (
	MinDurationMinutes        = 15
	MaxDurationMinutes        = 24 * 60
	RegularDayMinutes         = 8 * 60
	MinOvertimeMinutes        = 60
	NextDayOvertimeLatestHour = 7
	nextDayOvertimeMinMinutes = MinOvertimeMinutes
)

// Rule names key the ErrorMap.
type Rule string

const (
	RuleInterval            Rule = "interval"
	RuleMinDuration         Rule = "min_duration"
	RuleMaxDuration         Rule = "max_duration"
	RuleOverlap             Rule = "overlap"
	RuleProject             Rule = "project"
	RuleStage               Rule = "stage"
	RuleActivity            Rule = "activity"
	RuleTask                Rule = "task"
	RuleRemarks             Rule = "remarks"
	RuleOvertimeEligibility Rule = "overtime_eligibility"
	RuleOvertimeMinimum     Rule = "overtime_minimum"
	RuleNextDayOvertime     Rule = "next_day_overtime"
)

// ErrorMap maps violated rules to a human-readable message. Empty means valid.
type ErrorMap map[Rule]string

func (m ErrorMap) OK() bool {
	return len(m) == 0
}

func (m ErrorMap) Has(rule Rule) bool {
	_, ok := m[rule]
	return ok
}

// Rules lists the violated rules in a stable order.
func (m ErrorMap) Rules() []Rule {
	out := make([]Rule, 0, len(m))
	for rule := range m {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m ErrorMap) String() string {
	parts := make([]string, 0, len(m))
	for _, rule := range m.Rules() {
		parts = append(parts, fmt.Sprintf("%s: %s", rule, m[rule]))
	}
	return strings.Join(parts, "; ")
}

type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
	ModeView   Mode = "view"
)

// Candidate is the interval and form data under validation.
type Candidate struct {
	Start           time.Time
	End             time.Time
	Kind            timecharge.Kind
	IsOvertime      bool
	NextDayOvertime bool
	ProjectID       string
	StageID         string
	Activity        string
	TaskID          string
	Remarks         string
}

func CandidateFromRecord(record timecharge.Record) Candidate {
	return Candidate{
		Start:           record.Start,
		End:             record.End,
		Kind:            record.Kind,
		IsOvertime:      record.IsOvertime,
		NextDayOvertime: record.NextDayOvertime,
		ProjectID:       record.ProjectID,
		StageID:         record.StageID,
		Activity:        record.Activity,
		TaskID:          record.TaskID,
		Remarks:         record.Remarks,
	}
}

func (c Candidate) hasInterval() bool {
	return !c.Start.IsZero() && !c.End.IsZero()
}

// ValidationContext carries the modal state. EditingID excludes the edited
// record's own events from overlap and day totals.
type ValidationContext struct {
	Mode      Mode
	EditingID string
	Calendar  *holiday.Calendar
}

// Validate evaluates every rule independently and reports all violations.
func Validate(candidate Candidate, events []Event, ctx ValidationContext) ErrorMap {
	errs := ErrorMap{}
	if ctx.Mode == ModeView {
		return errs
	}

	validateReferences(candidate, errs)
	if utf8.RuneCountInString(candidate.Remarks) > timecharge.MaxRemarksLength {
		errs[RuleRemarks] = fmt.Sprintf("remarks must not exceed %d characters", timecharge.MaxRemarksLength)
	}

	if !candidate.hasInterval() {
		errs[RuleInterval] = "start and end are required"
		return errs
	}
	if !candidate.End.After(candidate.Start) {
		errs[RuleInterval] = "end must be after start"
	}

	otType := holiday.Classify(candidate.Start, ctx.Calendar)
	minutes := timeutil.DurationMinutes(candidate.Start, candidate.End)

	if !otType.Premium() && minutes < MinDurationMinutes {
		errs[RuleMinDuration] = fmt.Sprintf("duration must be at least %d minutes", MinDurationMinutes)
	}
	if minutes > MaxDurationMinutes {
		errs[RuleMaxDuration] = "duration must not exceed 24 hours"
	}

	if conflict, ok := firstConflict(candidate, events, ctx.EditingID); ok {
		errs[RuleOverlap] = fmt.Sprintf("overlaps with %q (%s - %s)",
			conflict.Title, conflict.Start.Format("2006-01-02 15:04"), conflict.End.Format("15:04"))
	}

	if candidate.IsOvertime && otType == holiday.OTNone {
		regular, _ := DayMinutes(events, candidate.Start, ctx.EditingID)
		if regular < RegularDayMinutes {
			errs[RuleOvertimeEligibility] = fmt.Sprintf(
				"overtime requires %d regular hours first; %s logged on %s",
				RegularDayMinutes/60, formatHours(regular), candidate.Start.Format(timeutil.DateLayout))
		}
	}
	if candidate.IsOvertime && minutes < MinOvertimeMinutes {
		errs[RuleOvertimeMinimum] = fmt.Sprintf("overtime must be at least %d minutes", MinOvertimeMinutes)
	}

	if candidate.NextDayOvertime {
		if msg := nextDayOvertimeProblems(candidate, minutes); msg != "" {
			errs[RuleNextDayOvertime] = msg
		}
	}

	return errs
}

func validateReferences(candidate Candidate, errs ErrorMap) {
	switch candidate.Kind {
	case timecharge.KindExternal:
		if strings.TrimSpace(candidate.ProjectID) == "" {
			errs[RuleProject] = "project is required"
		}
		if strings.TrimSpace(candidate.StageID) == "" {
			errs[RuleStage] = "stage is required"
		}
		if strings.TrimSpace(candidate.Activity) == "" {
			errs[RuleActivity] = "activity is required"
		}
	case timecharge.KindInternal:
		if strings.TrimSpace(candidate.ProjectID) == "" {
			errs[RuleProject] = "project is required"
		}
	case timecharge.KindDepartmental:
		if strings.TrimSpace(candidate.TaskID) == "" {
			errs[RuleTask] = "departmental task is required"
		}
	}
}

// firstConflict finds the earliest blocking event. Holidays never block and
// declined events are ignored.
func firstConflict(candidate Candidate, events []Event, editingID string) (Event, bool) {
	window := Interval{Start: candidate.Start, End: candidate.End}
	for _, event := range events {
		if event.Type == TypeHoliday || event.Declined() {
			continue
		}
		if editingID != "" && (event.OriginalID == editingID || event.Ref.RecordID == editingID) {
			continue
		}
		if Overlaps(window, event.Interval()) {
			return event, true
		}
	}
	return Event{}, false
}

func nextDayOvertimeProblems(candidate Candidate, minutes int) string {
	problems := make([]string, 0, 3)
	if !timeutil.IsNextDay(candidate.Start, candidate.End) {
		problems = append(problems, "end must fall on the day after start")
	}
	if minutes < nextDayOvertimeMinMinutes {
		problems = append(problems, fmt.Sprintf("duration must be at least %d minutes", nextDayOvertimeMinMinutes))
	}
	latest := timeutil.StartOfDay(candidate.Start).AddDate(0, 0, 1).Add(NextDayOvertimeLatestHour * time.Hour)
	if candidate.End.After(latest) {
		problems = append(problems, fmt.Sprintf("end must be no later than %02d:00 the next day", NextDayOvertimeLatestHour))
	}
	return strings.Join(problems, "; ")
}

func formatHours(minutes int) string {
	return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
}

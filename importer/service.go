package importer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chargecal/calendar"
	"chargecal/config"
	"chargecal/controller"
	"chargecal/internal/classify"
	"chargecal/internal/timeutil"
	"chargecal/timecharge"
)

// Target validates and creates time charges; *controller.Controller satisfies it.
type Target interface {
	Events(ctx context.Context, period timeutil.Period) ([]calendar.Event, error)
	Validate(ctx context.Context, candidate calendar.Candidate, mode calendar.Mode, editingID string) (calendar.ErrorMap, error)
	Create(ctx context.Context, record timecharge.Record) (timecharge.Record, error)
}

type RowRejection struct {
	File   string
	Row    int
	Errors calendar.ErrorMap
	Reason string
}

func (r RowRejection) String() string {
	reason := r.Reason
	if reason == "" {
		reason = r.Errors.String()
	}
	return fmt.Sprintf("%s row %d: %s", filepath.Base(r.File), r.Row, reason)
}

type Result struct {
	FilesProcessed int
	RowsRead       int
	RowsMapped     int
	RowsSkipped    int

	// Duplicates counts rows identical to an existing charge or to an earlier
	// row of the same run. They are skipped, not rejected.
	Duplicates int
	Created    []timecharge.Record
	Rejected   []RowRejection
}

type RunOptions struct {
	Format   string
	Rules    []config.Rule
	Location *time.Location
	// DryRun validates every row without creating anything. Valid rows are kept
	// in memory so later rows are still checked against them.
	DryRun bool
	Logger *zerolog.Logger
}

// Run imports every row through the target. Rows refused by validation are
// collected and the import continues; any other failure aborts the run.
func Run(ctx context.Context, paths []string, target Target, opts RunOptions) (*Result, error) {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("component", "importer").Logger()

	result := &Result{Created: make([]timecharge.Record, 0, 64)}
	var pending []timecharge.Record
	for _, path := range paths {
		sourceFormat, err := inferFormat(path, opts.Format)
		if err != nil {
			return nil, err
		}
		reader, err := ReaderForFormat(sourceFormat)
		if err != nil {
			return nil, err
		}
		records, err := reader.Read(path)
		if err != nil {
			return nil, err
		}

		mapOpts := MapOptions{Rule: MatchRuleByTemplate(path, opts.Rules), Location: opts.Location}
		if mapOpts.Rule.Name != "" {
			logger.Debug().Str("file", path).Str("rule", mapOpts.Rule.Name).Msg("import rule matched")
		}

		result.FilesProcessed++
		result.RowsRead += len(records)
		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			charge, ok, err := MapRecord(record, mapOpts)
			if err != nil {
				result.Rejected = append(result.Rejected, RowRejection{File: path, Row: record.RowNumber, Reason: err.Error()})
				continue
			}
			if !ok {
				result.RowsSkipped++
				continue
			}
			result.RowsMapped++

			outcome, err := screenRow(ctx, target, charge, pending)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", path, record.RowNumber, err)
			}
			if outcome == classify.OutcomeDuplicate {
				result.Duplicates++
				logger.Info().Str("file", path).Int("row", record.RowNumber).Msg("row duplicates an existing charge")
				continue
			}
			if outcome == classify.OutcomeOverlap {
				result.Rejected = append(result.Rejected, RowRejection{
					File:   path,
					Row:    record.RowNumber,
					Errors: calendar.ErrorMap{calendar.RuleOverlap: "overlaps an earlier row of this import"},
				})
				continue
			}

			created, rejection, err := importRow(ctx, target, charge, opts.DryRun)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", path, record.RowNumber, err)
			}
			if rejection != nil {
				rejection.File = path
				rejection.Row = record.RowNumber
				result.Rejected = append(result.Rejected, *rejection)
				logger.Warn().Str("file", path).Int("row", record.RowNumber).Str("reason", rejection.String()).Msg("row rejected")
				continue
			}
			result.Created = append(result.Created, created)
			if opts.DryRun {
				pending = append(pending, created)
			}
		}
	}

	return result, nil
}

// screenRow reports duplicates of stored charges and, for dry runs, of rows
// accepted earlier in the run. Overlaps with stored charges are left to the
// validator; only overlaps with pending rows are reported here.
func screenRow(ctx context.Context, target Target, charge timecharge.Record, pending []timecharge.Record) (classify.Outcome, error) {
	events, err := target.Events(ctx, timeutil.PeriodOf(charge.Start))
	if err != nil {
		return "", err
	}
	if outcome, _ := classify.Charge(charge, classify.Records(events)); outcome == classify.OutcomeDuplicate {
		return outcome, nil
	}
	outcome, _ := classify.Charge(charge, pending)
	return outcome, nil
}

func importRow(ctx context.Context, target Target, charge timecharge.Record, dryRun bool) (timecharge.Record, *RowRejection, error) {
	if dryRun {
		errs, err := target.Validate(ctx, calendar.CandidateFromRecord(charge), calendar.ModeCreate, "")
		if err != nil {
			return timecharge.Record{}, nil, err
		}
		if !errs.OK() {
			return timecharge.Record{}, &RowRejection{Errors: errs}, nil
		}
		return charge, nil, nil
	}

	created, err := target.Create(ctx, charge)
	if err != nil {
		var validation *controller.ValidationError
		if errors.As(err, &validation) {
			return timecharge.Record{}, &RowRejection{Errors: validation.Errors}, nil
		}
		return timecharge.Record{}, nil, err
	}
	return created, nil, nil
}

func inferFormat(path string, format string) (string, error) {
	if strings.TrimSpace(format) != "" {
		return format, nil
	}

	extension := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch extension {
	case "csv", "tsv":
		return extension, nil
	case "xlsx", "xlsm", "xls":
		return "excel", nil
	default:
		return "", fmt.Errorf("unsupported file extension for %s", path)
	}
}

// MatchRuleByTemplate returns the first rule whose template matches the file
// name or full path.
func MatchRuleByTemplate(path string, rules []config.Rule) config.Rule {
	baseName := filepath.Base(path)
	for _, rule := range rules {
		template := strings.TrimSpace(rule.FileTemplate)
		if template == "" {
			continue
		}
		if matched, err := filepath.Match(template, baseName); err == nil && matched {
			return rule
		}
		if matched, err := filepath.Match(template, path); err == nil && matched {
			return rule
		}
	}
	return config.Rule{}
}

package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chargecal/calendar"
	"chargecal/chargeapi"
	"chargecal/holiday"
	"chargecal/internal/timeutil"
	"chargecal/timecharge"
)

type Options struct {
	// Location is the business timezone. Defaults to time.Local.
	Location *time.Location
	// Holidays are merged into every period, e.g. a configured holiday file.
	Holidays *holiday.Calendar
	Logger   *zerolog.Logger
}

// Controller owns the period cache of one calendar view and applies mutations
// against the remote store: validate, send, then invalidate and reload.
type Controller struct {
	client chargeapi.Client
	loc    *time.Location
	base   *holiday.Calendar
	logger zerolog.Logger
	cache  *PeriodCache

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

func New(client chargeapi.Client, opts Options) *Controller {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Controller{
		client:   client,
		loc:      loc,
		base:     opts.Holidays,
		logger:   logger.With().Str("component", "controller").Logger(),
		cache:    NewPeriodCache(),
		inflight: make(map[string]struct{}),
	}
}

func (c *Controller) Location() *time.Location {
	return c.loc
}

func (c *Controller) Cache() *PeriodCache {
	return c.cache
}

// Events returns the materialized events of a period, loading it on first access.
func (c *Controller) Events(ctx context.Context, period timeutil.Period) ([]calendar.Event, error) {
	bucket, err := c.bucket(ctx, period)
	if err != nil {
		return nil, err
	}
	return bucket.Events, nil
}

// Holidays returns the holiday calendar of a period.
func (c *Controller) Holidays(ctx context.Context, period timeutil.Period) (*holiday.Calendar, error) {
	bucket, err := c.bucket(ctx, period)
	if err != nil {
		return nil, err
	}
	return bucket.Holidays, nil
}

func (c *Controller) DayTotals(ctx context.Context, date time.Time) (calendar.Totals, error) {
	date = date.In(c.loc)
	events, err := c.Events(ctx, timeutil.PeriodOf(date))
	if err != nil {
		return calendar.Totals{}, err
	}
	return calendar.DayTotals(events, date), nil
}

// Event resolves a ref against the loaded periods.
func (c *Controller) Event(ref calendar.EventRef) (calendar.Event, bool) {
	for _, period := range c.cache.Periods() {
		bucket, ok := c.cache.Get(period)
		if !ok {
			continue
		}
		for _, event := range bucket.Events {
			if event.Ref == ref {
				return event, true
			}
		}
	}
	return calendar.Event{}, false
}

// Lookup finds a record in the loaded periods.
func (c *Controller) Lookup(id string) (timecharge.Record, bool) {
	if strings.TrimSpace(id) == "" {
		return timecharge.Record{}, false
	}
	for _, period := range c.cache.Periods() {
		bucket, ok := c.cache.Get(period)
		if !ok {
			continue
		}
		if record, ok := calendar.NewIndex(bucket.Events).Record(id); ok {
			return record, true
		}
	}
	return timecharge.Record{}, false
}

// Validate checks a candidate against the events around its interval.
func (c *Controller) Validate(ctx context.Context, candidate calendar.Candidate, mode calendar.Mode, editingID string) (calendar.ErrorMap, error) {
	if candidate.Start.IsZero() {
		return calendar.Validate(candidate, nil, calendar.ValidationContext{Mode: mode, EditingID: editingID, Calendar: c.base}), nil
	}

	candidate.Start = candidate.Start.In(c.loc)
	if !candidate.End.IsZero() {
		candidate.End = candidate.End.In(c.loc)
	}

	start := timeutil.PeriodOf(candidate.Start)
	bucket, err := c.bucket(ctx, start)
	if err != nil {
		return nil, err
	}
	events := bucket.Events

	// Records crossing a month boundary are cached under their start month.
	neighbours := make([]timeutil.Period, 0, 2)
	if candidate.Start.Day() == 1 {
		neighbours = append(neighbours, start.Prev())
	}
	if !candidate.End.IsZero() && !start.Contains(candidate.End) {
		neighbours = append(neighbours, timeutil.PeriodOf(candidate.End))
	}
	for _, period := range neighbours {
		more, err := c.Events(ctx, period)
		if err != nil {
			return nil, err
		}
		events = append(events, more...)
	}

	return calendar.Validate(candidate, events, calendar.ValidationContext{
		Mode:      mode,
		EditingID: editingID,
		Calendar:  bucket.Holidays,
	}), nil
}

// Create validates and persists a new pending time charge.
func (c *Controller) Create(ctx context.Context, record timecharge.Record) (timecharge.Record, error) {
	record.ID = ""
	record.Status = timecharge.StatusPending
	record = c.localize(record)

	cal, err := c.validateRecord(ctx, record, calendar.ModeCreate)
	if err != nil {
		return timecharge.Record{}, err
	}

	payload := BuildPayload(record, holiday.Classify(record.Start, cal))
	result, err := c.client.CreateTimeCharge(ctx, payload)
	if err != nil {
		return timecharge.Record{}, &RemoteFailure{Op: "create", Err: err}
	}
	record.ID = result.ID.String()

	c.logger.Info().Str("record_id", record.ID).Str("start", timeutil.FormatLocal(record.Start)).Msg("time charge created")
	c.refresh(ctx, timeutil.PeriodOf(record.Start))
	return record, nil
}

// Update applies a form edit. The period of the submitted start is loaded
// first; a record still missing after that is tolerated and the submitted
// fields are used as they are.
func (c *Controller) Update(ctx context.Context, record timecharge.Record) (timecharge.Record, error) {
	if strings.TrimSpace(record.ID) == "" {
		return timecharge.Record{}, errors.New("time charge id is required for update")
	}
	release, err := c.begin(record.ID)
	if err != nil {
		return timecharge.Record{}, err
	}
	defer release()

	record = c.localize(record)
	affected := []timeutil.Period{timeutil.PeriodOf(record.Start)}

	if !record.Start.IsZero() {
		if _, err := c.bucket(ctx, affected[0]); err != nil {
			return timecharge.Record{}, err
		}
	}
	existing, ok := c.Lookup(record.ID)
	if ok {
		if err := CheckEditable(existing); err != nil {
			return timecharge.Record{}, err
		}
		record.Status = existing.Status
		affected = append(affected, timeutil.PeriodOf(existing.Start))
	} else {
		c.logger.Warn().Str("record_id", record.ID).Msg("edited time charge is not loaded; using submitted fields")
		if err := CheckEditable(record); err != nil {
			return timecharge.Record{}, err
		}
	}

	cal, err := c.validateRecord(ctx, record, calendar.ModeEdit)
	if err != nil {
		return timecharge.Record{}, err
	}

	payload := BuildPayload(record, holiday.Classify(record.Start, cal))
	if _, err := c.client.UpdateTimeCharge(ctx, record.ID, payload); err != nil {
		return timecharge.Record{}, &RemoteFailure{Op: "update", RecordID: record.ID, Err: err}
	}

	c.logger.Info().Str("record_id", record.ID).Msg("time charge updated")
	c.refresh(ctx, affected...)
	return record, nil
}

// Drag applies a resize gesture. The payload is built from the event alone.
func (c *Controller) Drag(ctx context.Context, event calendar.Event, newStart, newEnd time.Time) (timecharge.Record, error) {
	newStart = newStart.In(c.loc)
	newEnd = newEnd.In(c.loc)

	kind, err := GateDrag(event, newStart, newEnd)
	if err != nil {
		return timecharge.Record{}, err
	}
	if kind == DragUnchanged {
		return event.Record, nil
	}

	release, err := c.begin(event.OriginalID)
	if err != nil {
		return timecharge.Record{}, err
	}
	defer release()

	record := DragRecord(event, newStart, newEnd)
	record.ID = event.OriginalID
	cal, err := c.validateRecord(ctx, record, calendar.ModeEdit)
	if err != nil {
		return timecharge.Record{}, err
	}
	payload, record := DragPayload(event, newStart, newEnd, cal)

	if _, err := c.client.UpdateTimeCharge(ctx, record.ID, payload); err != nil {
		return timecharge.Record{}, &RemoteFailure{Op: string(kind), RecordID: record.ID, Suppressed: true, Err: err}
	}

	c.logger.Info().Str("record_id", record.ID).Str("gesture", string(kind)).Msg("time charge resized")
	c.refresh(ctx, timeutil.PeriodOf(record.Start), timeutil.PeriodOf(event.Record.Start))
	return record, nil
}

// Delete removes a record unless it is approved. The record must be in one of
// the given periods or in a period loaded earlier; an unresolved id is refused
// so the status gate always runs.
func (c *Controller) Delete(ctx context.Context, id string, periods ...timeutil.Period) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("time charge id is required for delete")
	}
	release, err := c.begin(id)
	if err != nil {
		return err
	}
	defer release()

	for _, period := range periods {
		if _, err := c.bucket(ctx, period); err != nil {
			return err
		}
	}
	existing, ok := c.Lookup(id)
	if !ok {
		return fmt.Errorf("time charge %s: %w", id, ErrNotLoaded)
	}
	if err := CheckDeletable(existing); err != nil {
		return err
	}

	if err := c.client.DeleteTimeCharge(ctx, id); err != nil {
		return &RemoteFailure{Op: "delete", RecordID: id, Err: err}
	}

	c.logger.Info().Str("record_id", id).Msg("time charge deleted")
	c.refresh(ctx, timeutil.PeriodOf(existing.Start))
	return nil
}

// Reopen moves approved or declined records back to pending. This is a
// privileged operation, separate from a normal edit.
func (c *Controller) Reopen(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return errors.New("reopen requires at least one id")
	}
	release, err := c.beginAll(ids)
	if err != nil {
		return err
	}
	defer release()

	affected := make([]timeutil.Period, 0, len(ids))
	unknown := false
	for _, id := range ids {
		existing, ok := c.Lookup(id)
		if !ok {
			unknown = true
			continue
		}
		if err := existing.Reopen(); err != nil {
			return err
		}
		affected = append(affected, timeutil.PeriodOf(existing.Start))
	}

	if err := c.client.ReopenTimeCharges(ctx, ids); err != nil {
		return &RemoteFailure{Op: "reopen", RecordID: strings.Join(ids, ","), Err: err}
	}

	c.logger.Info().Strs("record_ids", ids).Msg("time charges reopened")
	if unknown {
		c.cache.InvalidateAll()
		return nil
	}
	c.refresh(ctx, affected...)
	return nil
}

// Invalidate drops periods from the cache; they reload on next access.
func (c *Controller) Invalidate(periods ...timeutil.Period) {
	c.cache.Invalidate(periods...)
}

func (c *Controller) validateRecord(ctx context.Context, record timecharge.Record, mode calendar.Mode) (*holiday.Calendar, error) {
	editingID := ""
	if mode == calendar.ModeEdit {
		editingID = record.ID
	}
	errs, err := c.Validate(ctx, calendar.CandidateFromRecord(record), mode, editingID)
	if err != nil {
		return nil, err
	}
	if !errs.OK() {
		return nil, &ValidationError{Errors: errs}
	}

	cal, err := c.Holidays(ctx, timeutil.PeriodOf(record.Start.In(c.loc)))
	if err != nil {
		return nil, err
	}
	return cal, nil
}

// refresh invalidates the periods and reloads them. A reload failure is logged;
// the mutation itself already succeeded and the period reloads on next access.
func (c *Controller) refresh(ctx context.Context, periods ...timeutil.Period) {
	unique := make([]timeutil.Period, 0, len(periods))
	seen := make(map[timeutil.Period]struct{}, len(periods))
	for _, period := range periods {
		if _, ok := seen[period]; ok {
			continue
		}
		seen[period] = struct{}{}
		unique = append(unique, period)
	}

	c.cache.Invalidate(unique...)
	for _, period := range unique {
		if _, err := c.Events(ctx, period); err != nil {
			c.logger.Error().Err(err).Str("period", period.Key()).Msg("reload after mutation failed")
		}
	}
}

func (c *Controller) localize(record timecharge.Record) timecharge.Record {
	record.Normalize()
	if !record.Start.IsZero() {
		record.Start = record.Start.In(c.loc)
	}
	if !record.End.IsZero() {
		record.End = record.End.In(c.loc)
	}
	return record
}

func (c *Controller) begin(id string) (func(), error) {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()

	if _, busy := c.inflight[id]; busy {
		return nil, fmt.Errorf("time charge %s: %w", id, ErrMutationInFlight)
	}
	c.inflight[id] = struct{}{}
	return func() {
		c.inflightMu.Lock()
		delete(c.inflight, id)
		c.inflightMu.Unlock()
	}, nil
}

// beginAll takes the in-flight guard for every id or for none of them.
func (c *Controller) beginAll(ids []string) (func(), error) {
	releases := make([]func(), 0, len(ids))
	releaseAll := func() {
		for _, release := range releases {
			release()
		}
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		release, err := c.begin(id)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

func (c *Controller) bucket(ctx context.Context, period timeutil.Period) (Bucket, error) {
	return c.cache.Load(ctx, period, func(ctx context.Context) (Bucket, error) {
		return c.fetch(ctx, period)
	})
}

func (c *Controller) fetch(ctx context.Context, period timeutil.Period) (Bucket, error) {
	first, last := period.Bounds(c.loc)

	charges, err := c.client.ListTimeCharges(ctx, period.Year, period.Month)
	if err != nil {
		return Bucket{}, fmt.Errorf("list time charges %s: %w", period, err)
	}
	leaves, err := c.client.ListLeaves(ctx, first, last, period.Year)
	if err != nil {
		return Bucket{}, fmt.Errorf("list leaves %s: %w", period, err)
	}
	holidays, err := c.client.ListHolidays(ctx, first, last, period.Year)
	if err != nil {
		return Bucket{}, fmt.Errorf("list holidays %s: %w", period, err)
	}

	entries, err := holidays.Entries(c.loc)
	if err != nil {
		return Bucket{}, fmt.Errorf("holidays %s: %w", period, err)
	}
	cal := holiday.NewCalendar(entries...)
	if c.base != nil {
		cal = c.base.Merge(cal)
	}

	records := make([]timecharge.Record, 0, len(charges)+len(leaves))
	for _, charge := range charges {
		record, err := charge.Record(c.loc)
		if err != nil {
			c.logger.Warn().Err(err).Str("period", period.Key()).Msg("skipping malformed time charge")
			continue
		}
		records = append(records, record)
	}
	for _, leave := range leaves {
		record, err := leave.Record(c.loc)
		if err != nil {
			c.logger.Warn().Err(err).Str("period", period.Key()).Msg("skipping malformed leave")
			continue
		}
		records = append(records, record)
	}

	events := calendar.MaterializeAll(records, cal.InPeriod(period, c.loc), cal)
	c.logger.Debug().
		Str("period", period.Key()).
		Int("records", len(records)).
		Int("events", len(events)).
		Msg("period materialized")

	return Bucket{Events: events, Holidays: cal}, nil
}

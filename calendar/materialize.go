package calendar

import (
	"sort"
	"strings"
	"time"

	"chargecal/holiday"
	"chargecal/internal/timeutil"
	"chargecal/timecharge"
)

// Materialize turns one record into its calendar events. A record whose interval
// crosses midnight is split into two parts; part one ends at 23:59:59 of the start
// day and part two starts one second later. Declined records are still returned.
func Materialize(record timecharge.Record, cal *holiday.Calendar) []Event {
	record.Normalize()
	if record.Start.IsZero() {
		return nil
	}

	eventType := TypeCharge
	if record.Kind == timecharge.KindLeave {
		eventType = TypeLeave
	}
	editable := eventType == TypeCharge && record.Editable()
	title := record.Title()

	if isAllDay(record) {
		return []Event{{
			Ref:        Whole(record.ID),
			OriginalID: record.ID,
			Type:       eventType,
			Start:      record.Start,
			End:        timeutil.EndOfDay(record.Start),
			AllDay:     true,
			OTType:     holiday.Classify(record.Start, cal),
			Title:      title,
			Editable:   editable,
			Record:     record,
		}}
	}

	if !timeutil.CrossesDayBoundary(record.Start, record.End) {
		return []Event{{
			Ref:        Whole(record.ID),
			OriginalID: record.ID,
			Type:       eventType,
			Start:      record.Start,
			End:        record.End,
			OTType:     holiday.Classify(record.Start, cal),
			Title:      title,
			Editable:   editable,
			Record:     record,
		}}
	}

	boundary := timeutil.EndOfDay(record.Start)
	nextStart := boundary.Add(time.Second)
	return []Event{
		{
			Ref:        Part(record.ID, PartFirst),
			OriginalID: record.ID,
			Type:       eventType,
			Start:      record.Start,
			End:        boundary,
			OTType:     holiday.Classify(record.Start, cal),
			Title:      title + " (Part 1)",
			Editable:   editable,
			Record:     record,
		},
		{
			Ref:        Part(record.ID, PartSecond),
			OriginalID: record.ID,
			Type:       eventType,
			Start:      nextStart,
			End:        record.End,
			OTType:     holiday.Classify(nextStart, cal),
			Title:      title + " (Part 2)",
			Editable:   editable,
			Record:     record,
		},
	}
}

// MaterializeHoliday renders a holiday as an all-day, read-only marker. Fixed
// entries must already be projected onto the displayed year.
func MaterializeHoliday(entry holiday.Entry, cal *holiday.Calendar) Event {
	day := timeutil.StartOfDay(entry.Date)
	id := "holiday-" + day.Format(timeutil.DateLayout)
	title := strings.TrimSpace(entry.Name)
	if title == "" {
		title = "Holiday"
	}
	return Event{
		Ref:        Whole(id),
		OriginalID: id,
		Type:       TypeHoliday,
		Start:      day,
		End:        timeutil.EndOfDay(day),
		AllDay:     true,
		OTType:     holiday.Classify(day, cal),
		Title:      title,
		Editable:   false,
		Record: timecharge.Record{
			ID:             id,
			OccurrenceDate: day,
			Start:          day,
			End:            day,
			Status:         timecharge.StatusApproved,
		},
	}
}

// MaterializeAll builds the sorted event list of a period.
func MaterializeAll(records []timecharge.Record, holidays []holiday.Entry, cal *holiday.Calendar) []Event {
	events := make([]Event, 0, len(records)+len(holidays))
	for _, record := range records {
		events = append(events, Materialize(record, cal)...)
	}
	for _, entry := range holidays {
		events = append(events, MaterializeHoliday(entry, cal))
	}
	SortEvents(events)
	return events
}

func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].Ref.String() < events[j].Ref.String()
	})
}

// isAllDay matches records normalized from an occurrence date: a zero-length
// interval anchored at midnight.
func isAllDay(record timecharge.Record) bool {
	return record.Start.Equal(record.End) && record.Start.Equal(timeutil.StartOfDay(record.Start))
}

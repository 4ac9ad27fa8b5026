package output

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"chargecal/calendar"
	"chargecal/internal/timeutil"
)

// DailySummary totals one day of charge events. Lunch is the overlap of the
// day's regular charges with 12:00-13:00 and only informs NetRegularHours; it
// never affects validation.
type DailySummary struct {
	Date            string
	StartDateTime   time.Time
	EndDateTime     time.Time
	RegularHours    decimal.Decimal
	OvertimeHours   decimal.Decimal
	LunchHours      decimal.Decimal
	NetRegularHours decimal.Decimal
	BreakHours      decimal.Decimal
	EventCount      int
}

type MonthTotals struct {
	RegularHours    decimal.Decimal
	OvertimeHours   decimal.Decimal
	NetRegularHours decimal.Decimal
	Days            int
}

type interval struct {
	start time.Time
	end   time.Time
}

var summaryHeaders = []string{"Date", "StartTime", "EndTime", "RegularHours", "OvertimeHours", "LunchHours", "NetRegularHours", "BreakHours", "EventCount"}

// BuildDailySummaries groups charge events by local day. Holidays, leaves and
// declined charges are left out.
func BuildDailySummaries(events []calendar.Event, loc *time.Location) []DailySummary {
	if loc == nil {
		loc = time.Local
	}

	byDay := make(map[string][]calendar.Event)
	for _, event := range events {
		if event.Type != calendar.TypeCharge || event.Declined() {
			continue
		}
		day := event.Start.In(loc).Format(timeutil.DateLayout)
		byDay[day] = append(byDay[day], event)
	}
	if len(byDay) == 0 {
		return []DailySummary{}
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	summaries := make([]DailySummary, 0, len(days))
	for _, day := range days {
		summaries = append(summaries, summarizeDay(day, byDay[day], loc))
	}
	return summaries
}

func summarizeDay(day string, events []calendar.Event, loc *time.Location) DailySummary {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].End.Before(events[j].End)
		}
		return events[i].Start.Before(events[j].Start)
	})

	start := events[0].Start
	end := events[0].End
	intervals := make([]interval, 0, len(events))
	lunchMinutes := 0
	for _, event := range events {
		if event.End.After(end) {
			end = event.End
		}
		intervals = append(intervals, interval{start: event.Start, end: event.End})
		if !event.Record.IsOvertime && !event.OTType.Premium() {
			lunchMinutes += timeutil.LunchOverlapMinutes(event.Start, event.End)
		}
	}
	if lunchMinutes > 60 {
		lunchMinutes = 60
	}

	regular, overtime := calendar.DayMinutes(events, start.In(loc), "")
	breakDuration := end.Sub(start) - mergedCoverageWithinWindow(intervals, start, end)
	if breakDuration < 0 {
		breakDuration = 0
	}

	regularHours := minutesToHours(regular)
	lunchHours := minutesToHours(lunchMinutes)
	return DailySummary{
		Date:            day,
		StartDateTime:   start,
		EndDateTime:     end,
		RegularHours:    regularHours,
		OvertimeHours:   minutesToHours(overtime),
		LunchHours:      lunchHours,
		NetRegularHours: decimal.Max(regularHours.Sub(lunchHours), decimal.Zero),
		BreakHours:      decimal.NewFromFloat(breakDuration.Hours()).Round(2),
		EventCount:      len(events),
	}
}

func SumMonth(summaries []DailySummary) MonthTotals {
	totals := MonthTotals{
		RegularHours:    decimal.Zero,
		OvertimeHours:   decimal.Zero,
		NetRegularHours: decimal.Zero,
	}
	for _, summary := range summaries {
		totals.RegularHours = totals.RegularHours.Add(summary.RegularHours)
		totals.OvertimeHours = totals.OvertimeHours.Add(summary.OvertimeHours)
		totals.NetRegularHours = totals.NetRegularHours.Add(summary.NetRegularHours)
		totals.Days++
	}
	return totals
}

func minutesToHours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60)).Round(2)
}

func mergedCoverageWithinWindow(intervals []interval, windowStart, windowEnd time.Time) time.Duration {
	if len(intervals) == 0 || !windowEnd.After(windowStart) {
		return 0
	}

	clipped := make([]interval, 0, len(intervals))
	for _, candidate := range intervals {
		start := maxTime(candidate.start, windowStart)
		end := minTime(candidate.end, windowEnd)
		if end.After(start) {
			clipped = append(clipped, interval{start: start, end: end})
		}
	}
	if len(clipped) == 0 {
		return 0
	}

	sort.Slice(clipped, func(i, j int) bool {
		return clipped[i].start.Before(clipped[j].start)
	})

	currentStart := clipped[0].start
	currentEnd := clipped[0].end
	covered := time.Duration(0)
	for _, candidate := range clipped[1:] {
		if candidate.start.After(currentEnd) {
			covered += currentEnd.Sub(currentStart)
			currentStart = candidate.start
			currentEnd = candidate.end
			continue
		}
		if candidate.end.After(currentEnd) {
			currentEnd = candidate.end
		}
	}
	return covered + currentEnd.Sub(currentStart)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func summaryRow(summary DailySummary) []string {
	return []string{
		summary.Date,
		summary.StartDateTime.Format("15:04"),
		summary.EndDateTime.Format("15:04"),
		summary.RegularHours.StringFixed(2),
		summary.OvertimeHours.StringFixed(2),
		summary.LunchHours.StringFixed(2),
		summary.NetRegularHours.StringFixed(2),
		summary.BreakHours.StringFixed(2),
		strconv.Itoa(summary.EventCount),
	}
}

// WriteDailySummaries writes one row per day followed by a month total row.
func WriteDailySummaries(path, format string, summaries []DailySummary) error {
	rows := make([][]string, 0, len(summaries)+1)
	for _, summary := range summaries {
		rows = append(rows, summaryRow(summary))
	}
	totals := SumMonth(summaries)
	rows = append(rows, []string{
		"Total", "", "",
		totals.RegularHours.StringFixed(2),
		totals.OvertimeHours.StringFixed(2),
		"",
		totals.NetRegularHours.StringFixed(2),
		"",
		strconv.Itoa(totals.Days),
	})

	switch normalizeFormat(format) {
	case "csv":
		return writeCSV(path, summaryHeaders, rows)
	case "excel", "xlsx":
		return writeExcel(path, "Daily", summaryHeaders, rows)
	default:
		return fmt.Errorf("unsupported output format for daily summaries: %s", format)
	}
}

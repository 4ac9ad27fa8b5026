package holiday

import "time"

// OTType classifies a date for overtime purposes.
type OTType string

const (
	OTNone           OTType = "none"
	OTWeekend        OTType = "weekend"
	OTWeekdayHoliday OTType = "weekday_holiday"
	OTWeekendHoliday OTType = "weekend_holiday"
)

// Premium reports whether the type is a weekend or holiday variant. Premium days
// waive the minimum-duration and 8-hour prerequisite rules.
func (t OTType) Premium() bool {
	switch t {
	case OTWeekend, OTWeekdayHoliday, OTWeekendHoliday:
		return true
	default:
		return false
	}
}

func (t OTType) Valid() bool {
	return t == OTNone || t.Premium()
}

func ParseOTType(value string) OTType {
	candidate := OTType(value)
	if candidate.Valid() {
		return candidate
	}
	return OTNone
}

func IsWeekend(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}

// Classify derives the overtime type of date from its weekday and the holiday
// calendar. A nil calendar has no holidays.
func Classify(date time.Time, cal *Calendar) OTType {
	weekend := IsWeekend(date)
	holiday := cal.IsHoliday(date)

	switch {
	case weekend && holiday:
		return OTWeekendHoliday
	case holiday:
		return OTWeekdayHoliday
	case weekend:
		return OTWeekend
	default:
		return OTNone
	}
}

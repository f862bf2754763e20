package split

import "time"

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

// OpenEnded is the End of a period with no end date.
var OpenEnded = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Value: s, Reason: "use YYYY-MM-DD"}
	}
	return t, nil
}

// =============================================================================
// PERIOD - reporting window for partner shares
// =============================================================================

// Period is an inclusive range of calendar days [Start, End].
// Shares are always computed for a period, never for an instant.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod builds a period from two days, rejecting End before Start.
func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: DayOf(start), End: DayOf(end)}
	if p.End.Before(p.Start) {
		return Period{}, &ValidationError{Field: "period", Value: p.String(), Reason: "end before start"}
	}
	return p, nil
}

// Equal reports whether both periods cover the same days.
func (p Period) Equal(o Period) bool {
	return p.Start.Equal(o.Start) && p.End.Equal(o.End)
}

// Contains returns true if the day of t is within [Start, End].
func (p Period) Contains(t time.Time) bool {
	d := DayOf(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Overlaps returns true if both periods share at least one day.
func (p Period) Overlaps(o Period) bool {
	return !p.End.Before(o.Start) && !o.End.Before(p.Start)
}

// EndsBefore returns true if the whole period is before t's day.
func (p Period) EndsBefore(t time.Time) bool {
	return p.End.Before(DayOf(t))
}

func (p Period) String() string {
	return "[" + p.Start.Format(DateLayout) + ", " + p.End.Format(DateLayout) + "]"
}

// PeriodType defines the reporting cadence.
type PeriodType string

const (
	PeriodMonthly   PeriodType = "monthly"
	PeriodQuarterly PeriodType = "quarterly"
	PeriodYearly    PeriodType = "yearly"
)

// PeriodFor returns the reporting period of the given type containing t.
func PeriodFor(pt PeriodType, t time.Time) Period {
	d := DayOf(t)
	switch pt {
	case PeriodQuarterly:
		firstMonth := time.Month((int(d.Month())-1)/3*3 + 1)
		start := time.Date(d.Year(), firstMonth, 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(0, 3, -1)}
	case PeriodYearly:
		start := time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(1, 0, -1)}
	default:
		start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(0, 1, -1)}
	}
}

// Next returns the period of the same cadence that follows p.
func (p Period) Next(pt PeriodType) Period {
	return PeriodFor(pt, p.End.AddDate(0, 0, 1))
}

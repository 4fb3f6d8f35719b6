package core

import (
	"fmt"
	"time"
)

// =============================================================================
// STORE LOCAL TIME
// =============================================================================

// Location is the store's local time zone. Business dates and month
// boundaries are evaluated here.
var Location = mustLoad("Asia/Kolkata")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Fallback when tzdata is not installed
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}

// SetLocation changes the store time zone. Call once at startup.
func SetLocation(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("load location %q: %w", name, err)
	}
	Location = loc
	return nil
}

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// =============================================================================
// DATE - Calendar day string (YYYY-MM-DD)
// =============================================================================

// Date is a business calendar day. The string form sorts chronologically.
type Date string

// ParseDate validates a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", Invalid("date", fmt.Sprintf("%q is not a YYYY-MM-DD date", s))
	}
	return Date(s), nil
}

// DateOf returns the business date of t in the store time zone.
func DateOf(t time.Time) Date {
	return Date(t.In(Location).Format(DateLayout))
}

// Today returns the current business date.
func Today() Date { return DateOf(time.Now()) }

func (d Date) String() string { return string(d) }

// Month returns the month containing d.
func (d Date) Month() Month {
	if len(d) < 7 {
		return ""
	}
	return Month(d[:7])
}

func (d Date) Before(other Date) bool { return d < other }
func (d Date) After(other Date) bool  { return d > other }

// Between reports whether from <= d <= to. Empty bounds are open.
func (d Date) Between(from, to Date) bool {
	return (from == "" || d >= from) && (to == "" || d <= to)
}

// =============================================================================
// MONTH - Billing month string (YYYY-MM)
// =============================================================================

type Month string

// ParseMonth validates a YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	if _, err := time.Parse(MonthLayout, s); err != nil {
		return "", Invalid("month", fmt.Sprintf("%q is not a YYYY-MM month", s))
	}
	return Month(s), nil
}

// MonthOf returns the billing month of t in the store time zone.
func MonthOf(t time.Time) Month {
	return Month(t.In(Location).Format(MonthLayout))
}

func (m Month) String() string { return string(m) }

// FirstDay returns the first calendar day of the month.
func (m Month) FirstDay() Date { return Date(string(m) + "-01") }

// LastDay returns the last calendar day of the month.
func (m Month) LastDay() Date {
	start := m.Start()
	return DateOf(start.AddDate(0, 1, -1))
}

// Start returns the first instant of the month in the store time zone.
func (m Month) Start() time.Time {
	t, _ := time.ParseInLocation(MonthLayout, string(m), Location)
	return t
}

// End returns the first instant of the following month (exclusive bound).
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, 0)
}

// Contains reports whether d falls inside the month.
func (m Month) Contains(d Date) bool { return d.Month() == m }

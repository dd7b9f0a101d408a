package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateOnly strips the clock and zone from t, returning the same calendar
// date at UTC midnight. All billing math runs on these canonical dates so
// the same agreement produces the same schedule regardless of server zone.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TodayIn returns the current calendar date as observed in loc, normalized
// to a canonical UTC-midnight date.
func TodayIn(loc *time.Location) time.Time {
	return DateOnly(time.Now().In(loc))
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDayToMonth returns day, or the last day of the month when the month
// is too short (day 31 in February becomes 28 or 29).
func ClampDayToMonth(year int, month time.Month, day int) int {
	if last := DaysInMonth(year, month); day > last {
		return last
	}
	return day
}

// MonthKey formats a date's calendar month as "YYYY-MM".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// MonthsApart returns the number of whole calendar months from a's month to
// b's month, negative when b is earlier.
func MonthsApart(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// DaysUntil returns the number of whole calendar days from today until due.
// Negative when due has already passed. Both arguments must be canonical
// dates from DateOnly.
func DaysUntil(today, due time.Time) int {
	return int(due.Sub(today).Hours() / 24)
}

// DecimalFromFloat converts float64 to decimal.Decimal
func DecimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// DecimalFromString converts string to decimal.Decimal
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

package domain

import (
	"time"

	"github.com/rentbase/billing-engine/pkg/utils"
)

// Period is one calendar-month billing unit: the month's "YYYY-MM" key and
// the date the payment for that month falls due.
type Period struct {
	Key     string
	DueDate time.Time
}

// Periods computes the ordered billing periods for an agreement starting at
// startDate, covering the month of startDate through the month of asOf plus
// exactly one lookahead month, so the upcoming bill exists before it is due.
//
// Period 0 is due exactly on startDate. Every later period is due on the
// same day-of-month as startDate in its own month, clamped to the last day
// when the month is shorter (day 31 in February becomes the 28th or 29th,
// and reverts to the 31st in the next long month).
//
// The sequence is a pure function of (startDate, asOf): re-running it never
// changes already-produced pairs, only the upper bound moves with asOf.
func Periods(startDate, asOf time.Time) []Period {
	start := utils.DateOnly(startDate)
	asOf = utils.DateOnly(asOf)

	months := utils.MonthsApart(start, asOf)
	if months < 0 {
		months = 0
	}
	months++ // one-period lookahead

	periods := make([]Period, 0, months+1)
	for i := 0; i <= months; i++ {
		periods = append(periods, Period{
			Key:     utils.MonthKey(periodMonth(start, i)),
			DueDate: dueDateFor(start, i),
		})
	}
	return periods
}

// periodMonth returns the first day of period i's month. Months are added
// to the first of the start month, never to startDate itself, so a start
// on the 31st cannot skip short months.
func periodMonth(start time.Time, i int) time.Time {
	return time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, i, 0)
}

func dueDateFor(start time.Time, i int) time.Time {
	if i == 0 {
		return start
	}
	month := periodMonth(start, i)
	day := utils.ClampDayToMonth(month.Year(), month.Month(), start.Day())
	return time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, time.UTC)
}

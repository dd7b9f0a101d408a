package domain

import (
	"time"

	"github.com/rentbase/billing-engine/pkg/utils"
)

// ReminderKind identifies which outbound message the notifier should send.
type ReminderKind string

const (
	ReminderUpcomingDue  ReminderKind = "upcoming_due"
	ReminderDueToday     ReminderKind = "due_today"
	ReminderOverdue      ReminderKind = "overdue"
	ReminderConsolidated ReminderKind = "consolidated"
	NoticeInvoice        ReminderKind = "invoice"
)

// ReminderCooldown is the minimum spacing between manual bulk reminders for
// one agreement.
const ReminderCooldown = 24 * time.Hour

// DecideReminder evaluates the escalation table for one record on one day
// and returns the reminder to send, if any. Partially paid records follow
// the same day-offset rules as unpaid ones, since a balance is still owed.
//
// Cadence: heads-up at 3 days and 1 day before due, a notice on the due day,
// daily reminders for the first 3 days overdue, then weekly.
func DecideReminder(r *PaymentRecord, today time.Time) (ReminderKind, bool) {
	if r.IsSettled() || !r.RemainingBalance().IsPositive() {
		return "", false
	}

	daysUntil := utils.DaysUntil(utils.DateOnly(today), utils.DateOnly(r.DueDate))
	switch {
	case daysUntil == 3 || daysUntil == 1:
		return ReminderUpcomingDue, true
	case daysUntil == 0:
		return ReminderDueToday, true
	case daysUntil < 0:
		daysOverdue := -daysUntil
		if daysOverdue <= 3 {
			return ReminderOverdue, true
		}
		if daysOverdue%7 == 0 {
			return ReminderOverdue, true
		}
	}
	return "", false
}

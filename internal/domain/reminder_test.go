package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rentbase/billing-engine/internal/domain"
)

func TestDecideReminder(t *testing.T) {
	due := date(2024, time.March, 15)

	tests := []struct {
		name     string
		status   string
		paid     int64
		today    time.Time
		expected domain.ReminderKind
		fires    bool
	}{
		{name: "paid record never reminds", status: domain.RecordStatusPaid, paid: 1000, today: due, fires: false},
		{name: "due in 4 days is quiet", status: domain.RecordStatusPending, today: due.AddDate(0, 0, -4), fires: false},
		{name: "due in 3 days", status: domain.RecordStatusPending, today: due.AddDate(0, 0, -3), expected: domain.ReminderUpcomingDue, fires: true},
		{name: "due in 2 days is quiet", status: domain.RecordStatusPending, today: due.AddDate(0, 0, -2), fires: false},
		{name: "due in 1 day", status: domain.RecordStatusPending, today: due.AddDate(0, 0, -1), expected: domain.ReminderUpcomingDue, fires: true},
		{name: "due today", status: domain.RecordStatusPending, today: due, expected: domain.ReminderDueToday, fires: true},
		{name: "1 day overdue, daily cadence", status: domain.RecordStatusOverdue, today: due.AddDate(0, 0, 1), expected: domain.ReminderOverdue, fires: true},
		{name: "3 days overdue, daily cadence", status: domain.RecordStatusOverdue, today: due.AddDate(0, 0, 3), expected: domain.ReminderOverdue, fires: true},
		{name: "4 days overdue is quiet", status: domain.RecordStatusOverdue, today: due.AddDate(0, 0, 4), fires: false},
		{name: "7 days overdue, weekly cadence", status: domain.RecordStatusOverdue, today: due.AddDate(0, 0, 7), expected: domain.ReminderOverdue, fires: true},
		{name: "10 days overdue is quiet", status: domain.RecordStatusOverdue, today: due.AddDate(0, 0, 10), fires: false},
		{name: "14 days overdue, weekly cadence", status: domain.RecordStatusOverdue, today: due.AddDate(0, 0, 14), expected: domain.ReminderOverdue, fires: true},
		{name: "partial before due follows pending offsets", status: domain.RecordStatusPartial, paid: 400, today: due.AddDate(0, 0, -1), expected: domain.ReminderUpcomingDue, fires: true},
		{name: "partial past due follows overdue cadence", status: domain.RecordStatusPartial, paid: 400, today: due.AddDate(0, 0, 2), expected: domain.ReminderOverdue, fires: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := domain.PaymentRecord{
				PeriodKey:  "2024-03",
				Amount:     decimal.NewFromInt(1000),
				PaidAmount: decimal.NewFromInt(tt.paid),
				DueDate:    due,
				Status:     tt.status,
			}

			kind, fires := domain.DecideReminder(&rec, tt.today)
			assert.Equal(t, tt.fires, fires)
			if tt.fires {
				assert.Equal(t, tt.expected, kind)
			}
		})
	}
}

package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentbase/billing-engine/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriods_FirstDueDateIsStartDate(t *testing.T) {
	starts := []time.Time{
		date(2024, time.January, 1),
		date(2024, time.January, 15),
		date(2024, time.January, 31),
		date(2023, time.December, 25),
	}

	for _, start := range starts {
		periods := domain.Periods(start, start)
		require.NotEmpty(t, periods)
		assert.True(t, periods[0].DueDate.Equal(start),
			"period 0 for start %s must be due on the start date, got %s",
			start.Format("2006-01-02"), periods[0].DueDate.Format("2006-01-02"))
	}
}

func TestPeriods_MidMonthStartScenario(t *testing.T) {
	// Agreement starts 2024-01-15, observed on 2024-03-20: Jan through Mar
	// plus the April lookahead.
	periods := domain.Periods(date(2024, time.January, 15), date(2024, time.March, 20))

	require.Len(t, periods, 4)

	expected := []struct {
		key string
		due time.Time
	}{
		{"2024-01", date(2024, time.January, 15)},
		{"2024-02", date(2024, time.February, 15)},
		{"2024-03", date(2024, time.March, 15)},
		{"2024-04", date(2024, time.April, 15)},
	}
	for i, want := range expected {
		assert.Equal(t, want.key, periods[i].Key)
		assert.True(t, periods[i].DueDate.Equal(want.due),
			"period %s: expected due %s, got %s",
			want.key, want.due.Format("2006-01-02"), periods[i].DueDate.Format("2006-01-02"))
	}
}

func TestPeriods_ClampsShortMonthsAndReverts(t *testing.T) {
	// Started on the 31st: February clamps to its last day, March reverts
	// to the 31st, April clamps to the 30th.
	periods := domain.Periods(date(2024, time.January, 31), date(2024, time.April, 10))

	require.Len(t, periods, 5)
	assert.True(t, periods[0].DueDate.Equal(date(2024, time.January, 31)))
	assert.True(t, periods[1].DueDate.Equal(date(2024, time.February, 29)), "2024 is a leap year")
	assert.True(t, periods[2].DueDate.Equal(date(2024, time.March, 31)))
	assert.True(t, periods[3].DueDate.Equal(date(2024, time.April, 30)))
	assert.True(t, periods[4].DueDate.Equal(date(2024, time.May, 31)))
}

func TestPeriods_NonLeapFebruary(t *testing.T) {
	periods := domain.Periods(date(2023, time.January, 30), date(2023, time.February, 1))

	require.Len(t, periods, 3)
	assert.Equal(t, "2023-02", periods[1].Key)
	assert.True(t, periods[1].DueDate.Equal(date(2023, time.February, 28)))
}

func TestPeriods_IdempotentForSameInputs(t *testing.T) {
	start := date(2024, time.January, 31)
	asOf := date(2024, time.June, 5)

	first := domain.Periods(start, asOf)
	second := domain.Periods(start, asOf)
	assert.Equal(t, first, second)

	// A later asOf only extends the sequence; produced pairs never change.
	extended := domain.Periods(start, date(2024, time.August, 5))
	require.Greater(t, len(extended), len(first))
	assert.Equal(t, first, extended[:len(first)])
}

func TestPeriods_AlwaysIncludesLookaheadMonth(t *testing.T) {
	periods := domain.Periods(date(2024, time.March, 10), date(2024, time.March, 10))

	require.Len(t, periods, 2)
	assert.Equal(t, "2024-03", periods[0].Key)
	assert.Equal(t, "2024-04", periods[1].Key)
}

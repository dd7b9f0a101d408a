package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentbase/billing-engine/internal/domain"
	apperrors "github.com/rentbase/billing-engine/pkg/errors"
)

func record(periodKey string, amount int64, dueDate time.Time, status string) domain.PaymentRecord {
	return domain.PaymentRecord{
		AgreementID: "AGR-1",
		PeriodKey:   periodKey,
		Amount:      decimal.NewFromInt(amount),
		PaidAmount:  decimal.Zero,
		DueDate:     dueDate,
		Status:      status,
	}
}

func TestUpsertIfAbsent_Idempotent(t *testing.T) {
	ledger := domain.Ledger{}
	rec := record("2024-01", 1000, date(2024, time.January, 15), domain.RecordStatusPending)

	var inserted bool
	for i := 0; i < 5; i++ {
		ledger, inserted = ledger.UpsertIfAbsent(rec)
		assert.Equal(t, i == 0, inserted, "only the first upsert may insert")
	}

	assert.Len(t, ledger.Records, 1)
}

func TestUpsertIfAbsent_KeepsPeriodOrder(t *testing.T) {
	ledger := domain.Ledger{}
	ledger, _ = ledger.UpsertIfAbsent(record("2024-03", 1000, date(2024, time.March, 15), domain.RecordStatusPending))
	ledger, _ = ledger.UpsertIfAbsent(record("2024-01", 1000, date(2024, time.January, 15), domain.RecordStatusPending))
	ledger, _ = ledger.UpsertIfAbsent(record("2024-02", 1000, date(2024, time.February, 15), domain.RecordStatusPending))

	require.Len(t, ledger.Records, 3)
	assert.Equal(t, "2024-01", ledger.Records[0].PeriodKey)
	assert.Equal(t, "2024-02", ledger.Records[1].PeriodKey)
	assert.Equal(t, "2024-03", ledger.Records[2].PeriodKey)
}

func TestMarkOverdueIfPastDue(t *testing.T) {
	ledger := domain.Ledger{}
	ledger, _ = ledger.UpsertIfAbsent(record("2024-01", 1000, date(2024, time.January, 15), domain.RecordStatusPending))
	ledger, _ = ledger.UpsertIfAbsent(record("2024-02", 1000, date(2024, time.February, 15), domain.RecordStatusPending))

	today := date(2024, time.January, 16)

	ledger, transitioned := ledger.MarkOverdueIfPastDue(today)
	assert.Equal(t, 1, transitioned)
	assert.Equal(t, domain.RecordStatusOverdue, ledger.Records[0].Status)
	assert.Equal(t, domain.RecordStatusPending, ledger.Records[1].Status)

	// Repeat passes leave the record overdue, never reset it.
	ledger, transitioned = ledger.MarkOverdueIfPastDue(today)
	assert.Equal(t, 0, transitioned)
	assert.Equal(t, domain.RecordStatusOverdue, ledger.Records[0].Status)
}

func TestMarkOverdue_DueTodayStaysPending(t *testing.T) {
	ledger := domain.Ledger{}
	ledger, _ = ledger.UpsertIfAbsent(record("2024-01", 1000, date(2024, time.January, 15), domain.RecordStatusPending))

	ledger, transitioned := ledger.MarkOverdueIfPastDue(date(2024, time.January, 15))
	assert.Equal(t, 0, transitioned)
	assert.Equal(t, domain.RecordStatusPending, ledger.Records[0].Status)
}

func TestApplyPayment_PartialThenSettled(t *testing.T) {
	ledger := domain.Ledger{}
	ledger, _ = ledger.UpsertIfAbsent(record("2024-01", 1000, date(2024, time.January, 15), domain.RecordStatusPending))

	paidDate := date(2024, time.January, 10)

	ledger, result, err := ledger.ApplyPayment(domain.PaymentInput{
		Amount:   decimal.NewFromInt(600),
		PaidDate: paidDate,
		Method:   "bank_transfer",
	})
	require.NoError(t, err)
	assert.True(t, result.TotalPaidDelta.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, domain.RecordStatusPartial, ledger.Records[0].Status)
	assert.Empty(t, result.NewlySettled)

	ledger, result, err = ledger.ApplyPayment(domain.PaymentInput{
		Amount:   decimal.NewFromInt(400),
		PaidDate: paidDate,
		Method:   "bank_transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RecordStatusPaid, ledger.Records[0].Status)
	assert.Equal(t, []string{"2024-01"}, result.NewlySettled)
	require.NotNil(t, ledger.Records[0].PaidDate)
	assert.True(t, ledger.Records[0].PaidDate.Equal(paidDate))
}

func TestApplyPayment_SettlesOldestFirst(t *testing.T) {
	ledger := domain.Ledger{}
	ledger, _ = ledger.UpsertIfAbsent(record("2024-02", 1000, date(2024, time.February, 15), domain.RecordStatusPending))
	ledger, _ = ledger.UpsertIfAbsent(record("2024-01", 1000, date(2024, time.January, 15), domain.RecordStatusOverdue))

	ledger, result, err := ledger.ApplyPayment(domain.PaymentInput{
		Amount:   decimal.NewFromInt(1500),
		PaidDate: date(2024, time.February, 20),
		Method:   "card",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01", "2024-02"}, result.Credited)
	assert.Equal(t, []string{"2024-01"}, result.NewlySettled)
	assert.Equal(t, domain.RecordStatusPaid, ledger.Records[0].Status)
	assert.Equal(t, domain.RecordStatusPartial, ledger.Records[1].Status)
	assert.True(t, ledger.Records[1].PaidAmount.Equal(decimal.NewFromInt(500)))
}

func TestApplyPayment_TargetPeriodOverridesFIFO(t *testing.T) {
	ledger := domain.Ledger{}
	ledger, _ = ledger.UpsertIfAbsent(record("2024-01", 1000, date(2024, time.January, 15), domain.RecordStatusOverdue))
	ledger, _ = ledger.UpsertIfAbsent(record("2024-02", 1000, date(2024, time.February, 15), domain.RecordStatusPending))

	ledger, result, err := ledger.ApplyPayment(domain.PaymentInput{
		Amount:          decimal.NewFromInt(1000),
		PaidDate:        date(2024, time.February, 1),
		Method:          "cash",
		TargetPeriodKey: "2024-02",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02"}, result.Credited)
	assert.Equal(t, domain.RecordStatusOverdue, ledger.Records[0].Status, "older record untouched")
	assert.Equal(t, domain.RecordStatusPaid, ledger.Records[1].Status)
}

func TestApplyPayment_UnknownTargetPeriod(t *testing.T) {
	ledger := domain.Ledger{}
	ledger, _ = ledger.UpsertIfAbsent(record("2024-01", 1000, date(2024, time.January, 15), domain.RecordStatusPending))

	_, _, err := ledger.ApplyPayment(domain.PaymentInput{
		Amount:          decimal.NewFromInt(1000),
		PaidDate:        date(2024, time.January, 20),
		TargetPeriodKey: "2024-09",
	})
	assert.ErrorIs(t, err, apperrors.ErrPeriodNotFound)
}

func TestApplyPayment_RejectsNonPositiveAmounts(t *testing.T) {
	ledger := domain.Ledger{}
	ledger, _ = ledger.UpsertIfAbsent(record("2024-01", 1000, date(2024, time.January, 15), domain.RecordStatusPending))

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-100)} {
		_, _, err := ledger.ApplyPayment(domain.PaymentInput{
			Amount:   amount,
			PaidDate: date(2024, time.January, 20),
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidPaymentAmount)
	}
}

func TestApplyPayment_DuplicateExternalReferenceIsNoOp(t *testing.T) {
	ledger := domain.Ledger{}
	ledger, _ = ledger.UpsertIfAbsent(record("2024-01", 1000, date(2024, time.January, 15), domain.RecordStatusPending))

	input := domain.PaymentInput{
		Amount:            decimal.NewFromInt(1000),
		PaidDate:          date(2024, time.January, 14),
		Method:            "gateway",
		ExternalReference: "evt_123",
	}

	ledger, first, err := ledger.ApplyPayment(input)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.True(t, first.TotalPaidDelta.Equal(decimal.NewFromInt(1000)))

	ledger, second, err := ledger.ApplyPayment(input)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.True(t, second.TotalPaidDelta.IsZero())
	assert.True(t, ledger.Records[0].PaidAmount.Equal(decimal.NewFromInt(1000)),
		"replayed reference must not credit again")
}

func TestApplyPayment_ConsumesReferenceWhenNothingCredited(t *testing.T) {
	ledger := domain.Ledger{}
	rec := record("2024-01", 500, date(2024, time.January, 15), domain.RecordStatusPaid)
	rec.PaidAmount = decimal.NewFromInt(500)
	ledger, _ = ledger.UpsertIfAbsent(rec)

	input := domain.PaymentInput{
		Amount:            decimal.NewFromInt(500),
		PaidDate:          date(2024, time.March, 1),
		Method:            "gateway",
		ExternalReference: "evt_dup",
	}

	// Every period is settled: nothing is credited but the reference is
	// still consumed, so the retry below stays a no-op.
	ledger, first, err := ledger.ApplyPayment(input)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Empty(t, first.Credited)
	assert.True(t, first.TotalPaidDelta.Equal(decimal.NewFromInt(500)))
	assert.Contains(t, ledger.ConsumedReferences, "evt_dup")

	_, second, err := ledger.ApplyPayment(input)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.True(t, second.TotalPaidDelta.IsZero())
}

func TestApplyPayment_KeepsEarlierReferenceOnRecord(t *testing.T) {
	ledger := domain.Ledger{}
	ledger, _ = ledger.UpsertIfAbsent(record("2024-01", 1000, date(2024, time.January, 15), domain.RecordStatusPending))

	ledger, _, err := ledger.ApplyPayment(domain.PaymentInput{
		Amount:            decimal.NewFromInt(400),
		PaidDate:          date(2024, time.January, 14),
		Method:            "gateway",
		ExternalReference: "evt_1",
	})
	require.NoError(t, err)

	ledger, _, err = ledger.ApplyPayment(domain.PaymentInput{
		Amount:            decimal.NewFromInt(600),
		PaidDate:          date(2024, time.January, 20),
		Method:            "gateway",
		ExternalReference: "evt_2",
	})
	require.NoError(t, err)

	// The record keeps the first reference; both stay consumed so neither
	// event can be replayed.
	assert.Equal(t, "evt_1", ledger.Records[0].ExternalReference)
	assert.True(t, ledger.HasReference("evt_1"))
	assert.True(t, ledger.HasReference("evt_2"))

	_, result, err := ledger.ApplyPayment(domain.PaymentInput{
		Amount:            decimal.NewFromInt(600),
		PaidDate:          date(2024, time.January, 21),
		Method:            "gateway",
		ExternalReference: "evt_1",
	})
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
}

func TestAgreementApplyPayment_UpdatesTotals(t *testing.T) {
	agreement := &domain.Agreement{
		AgreementID: "AGR-1",
		Status:      domain.AgreementStatusActive,
		TotalPaid:   decimal.Zero,
	}
	agreement.Ledger, _ = agreement.Ledger.UpsertIfAbsent(
		record("2024-01", 1000, date(2024, time.January, 15), domain.RecordStatusPending))
	agreement.Ledger, _ = agreement.Ledger.UpsertIfAbsent(
		record("2024-02", 1000, date(2024, time.February, 15), domain.RecordStatusPending))

	_, err := agreement.ApplyPayment(domain.PaymentInput{
		Amount:   decimal.NewFromInt(600),
		PaidDate: date(2024, time.January, 10),
	})
	require.NoError(t, err)

	assert.True(t, agreement.TotalPaid.Equal(decimal.NewFromInt(600)))
	assert.True(t, agreement.RemainingAmount().Equal(decimal.NewFromInt(1400)))
}

func TestAgreement_OverpaymentKeepsRawRemaining(t *testing.T) {
	agreement := &domain.Agreement{
		AgreementID: "AGR-1",
		Status:      domain.AgreementStatusActive,
		TotalPaid:   decimal.Zero,
	}
	agreement.Ledger, _ = agreement.Ledger.UpsertIfAbsent(
		record("2024-01", 1000, date(2024, time.January, 15), domain.RecordStatusPending))

	_, err := agreement.ApplyPayment(domain.PaymentInput{
		Amount:   decimal.NewFromInt(1200),
		PaidDate: date(2024, time.January, 10),
	})
	require.NoError(t, err)

	assert.True(t, agreement.TotalPaid.Equal(decimal.NewFromInt(1200)))
	assert.True(t, agreement.RemainingAmount().Equal(decimal.NewFromInt(-200)),
		"raw over-payment is preserved, display clamping is the caller's job")
}

func TestAcceptsPayment_CancelledWithDebt(t *testing.T) {
	agreement := &domain.Agreement{
		AgreementID: "AGR-1",
		Status:      domain.AgreementStatusCancelled,
	}
	agreement.Ledger, _ = agreement.Ledger.UpsertIfAbsent(
		record("2024-01", 1000, date(2024, time.January, 15), domain.RecordStatusOverdue))

	assert.True(t, agreement.AcceptsPayment(), "pre-cancellation debt can still be settled")

	_, err := agreement.ApplyPayment(domain.PaymentInput{
		Amount:   decimal.NewFromInt(1000),
		PaidDate: date(2024, time.March, 1),
	})
	require.NoError(t, err)
	assert.False(t, agreement.AcceptsPayment(), "nothing outstanding, no new charges on a cancelled agreement")
}

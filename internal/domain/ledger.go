package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/rentbase/billing-engine/pkg/errors"
)

// Ledger is the ordered collection of payment records for one agreement.
// It is a value type: every transition returns a new ledger and leaves the
// receiver untouched, so a failed persistence attempt never leaves a
// half-mutated aggregate in memory.
type Ledger struct {
	Records []PaymentRecord `json:"records"`
	// ConsumedReferences holds every external reference ever applied to this
	// ledger, including payments that credited no record (all periods already
	// settled) and payments whose target record already carried an earlier
	// reference. It is the authority for duplicate detection; the reference
	// stamped on a record is traceability only.
	ConsumedReferences []string `json:"consumed_references,omitempty"`
}

// PaymentInput describes one incoming payment to apply against the ledger.
type PaymentInput struct {
	Amount            decimal.Decimal
	PaidDate          time.Time
	Method            string
	ExternalReference string
	// TargetPeriodKey routes the whole amount to a single period instead of
	// the oldest-first default. Admin correction path only.
	TargetPeriodKey string
}

// ApplyResult reports what a payment application did to the ledger.
type ApplyResult struct {
	// Duplicate is true when the external reference was already consumed by
	// a record; the call was a no-op and nothing was credited.
	Duplicate bool
	// Credited lists the period keys that received part of the amount, in
	// the order they were credited.
	Credited []string
	// NewlySettled lists the period keys that reached paid by this call.
	NewlySettled []string
	// TotalPaidDelta is the amount to add to the agreement's TotalPaid.
	TotalPaidDelta decimal.Decimal
}

func (l Ledger) clone() Ledger {
	records := make([]PaymentRecord, len(l.Records))
	copy(records, l.Records)
	refs := make([]string, len(l.ConsumedReferences))
	copy(refs, l.ConsumedReferences)
	return Ledger{Records: records, ConsumedReferences: refs}
}

// HasReference reports whether the external reference was already consumed by
// any payment against this ledger.
func (l Ledger) HasReference(ref string) bool {
	if ref == "" {
		return false
	}
	for _, consumed := range l.ConsumedReferences {
		if consumed == ref {
			return true
		}
	}
	for _, r := range l.Records {
		if r.ExternalReference == ref {
			return true
		}
	}
	return false
}

// UpsertIfAbsent inserts rec only when no record with its period key exists,
// keeping the ledger ordered by period. Returns the new ledger and whether
// an insert happened. Calling it any number of times with the same period
// yields exactly one record.
func (l Ledger) UpsertIfAbsent(rec PaymentRecord) (Ledger, bool) {
	for _, existing := range l.Records {
		if existing.PeriodKey == rec.PeriodKey {
			return l, false
		}
	}
	next := l.clone()
	next.Records = append(next.Records, rec)
	sort.Slice(next.Records, func(i, j int) bool {
		return next.Records[i].PeriodKey < next.Records[j].PeriodKey
	})
	return next, true
}

// MarkOverdueIfPastDue flips every pending record whose due date has passed
// to overdue. Pure function of today; safe to run any number of times.
func (l Ledger) MarkOverdueIfPastDue(today time.Time) (Ledger, int) {
	next := l.clone()
	transitioned := 0
	for i := range next.Records {
		r := &next.Records[i]
		if r.Status == RecordStatusPending && r.DueDate.Before(today) {
			r.Status = RecordStatusOverdue
			transitioned++
		}
	}
	return next, transitioned
}

// ApplyPayment credits the payment against the ledger. A duplicate external
// reference is an idempotent no-op. Without a target period the amount is
// settled oldest-period-first: each unpaid record is filled in order, marked
// paid when fully covered and partial when the amount runs out mid-record.
// Any excess beyond all open records stays in TotalPaidDelta (the remaining
// amount on the agreement goes negative rather than losing the over-payment).
// The external reference is consumed even when nothing is credited, so a
// retry of a payment against a fully settled ledger stays a no-op.
func (l Ledger) ApplyPayment(in PaymentInput) (Ledger, ApplyResult, error) {
	if !in.Amount.IsPositive() {
		return l, ApplyResult{}, apperrors.ErrInvalidPaymentAmount
	}
	if l.HasReference(in.ExternalReference) {
		return l, ApplyResult{Duplicate: true, TotalPaidDelta: decimal.Zero}, nil
	}

	next := l.clone()
	if in.ExternalReference != "" {
		next.ConsumedReferences = append(next.ConsumedReferences, in.ExternalReference)
	}
	result := ApplyResult{TotalPaidDelta: in.Amount}
	remaining := in.Amount
	refStamped := false

	credit := func(r *PaymentRecord, amount decimal.Decimal) {
		r.PaidAmount = r.PaidAmount.Add(amount)
		r.Method = in.Method
		paidDate := in.PaidDate
		r.PaidDate = &paidDate
		// At most one record carries a given reference; a record already
		// stamped by an earlier payment keeps its reference.
		if in.ExternalReference != "" && !refStamped && r.ExternalReference == "" {
			r.ExternalReference = in.ExternalReference
			refStamped = true
		}
		if r.PaidAmount.GreaterThanOrEqual(r.Amount) {
			if r.Status != RecordStatusPaid {
				result.NewlySettled = append(result.NewlySettled, r.PeriodKey)
			}
			r.Status = RecordStatusPaid
		} else {
			r.Status = RecordStatusPartial
		}
		result.Credited = append(result.Credited, r.PeriodKey)
	}

	if in.TargetPeriodKey != "" {
		for i := range next.Records {
			if next.Records[i].PeriodKey == in.TargetPeriodKey {
				credit(&next.Records[i], remaining)
				return next, result, nil
			}
		}
		return l, ApplyResult{}, apperrors.ErrPeriodNotFound
	}

	for i := range next.Records {
		if remaining.IsZero() {
			break
		}
		r := &next.Records[i]
		if r.IsSettled() {
			continue
		}
		portion := decimal.Min(remaining, r.RemainingBalance())
		if !portion.IsPositive() {
			continue
		}
		credit(r, portion)
		remaining = remaining.Sub(portion)
	}
	return next, result, nil
}

// Outstanding returns the records still carrying an unpaid balance, oldest
// period first.
func (l Ledger) Outstanding() []PaymentRecord {
	var out []PaymentRecord
	for _, r := range l.Records {
		if !r.IsSettled() && r.RemainingBalance().IsPositive() {
			out = append(out, r)
		}
	}
	return out
}

// TotalBilled is the sum of all record amounts.
func (l Ledger) TotalBilled() decimal.Decimal {
	total := decimal.Zero
	for _, r := range l.Records {
		total = total.Add(r.Amount)
	}
	return total
}

// ApplyPayment applies a payment to the agreement's ledger and keeps the
// aggregate totals consistent.
func (a *Agreement) ApplyPayment(in PaymentInput) (ApplyResult, error) {
	ledger, result, err := a.Ledger.ApplyPayment(in)
	if err != nil {
		return ApplyResult{}, err
	}
	a.Ledger = ledger
	a.TotalPaid = a.TotalPaid.Add(result.TotalPaidDelta)
	return result, nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	RecordStatusPending = "pending"
	RecordStatusOverdue = "overdue"
	RecordStatusPaid    = "paid"
	RecordStatusPartial = "partial"
)

// PaymentRecord is one monthly payment obligation within an agreement's
// ledger. PeriodKey ("YYYY-MM") is unique within the ledger and is the
// dedup key for generation; ExternalReference is the dedup key for gateway
// reconciliation.
type PaymentRecord struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	AgreementID       string          `json:"agreement_id" db:"agreement_id"`
	PeriodKey         string          `json:"period_key" db:"period_key"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	DueDate           time.Time       `json:"due_date" db:"due_date"`
	PaidDate          *time.Time      `json:"paid_date,omitempty" db:"paid_date"`
	Status            string          `json:"status" db:"status"`
	Method            string          `json:"method,omitempty" db:"method"`
	ExternalReference string          `json:"external_reference,omitempty" db:"external_reference"`
	InvoiceNumber     string          `json:"invoice_number,omitempty" db:"invoice_number"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// RemainingBalance is the unpaid portion of the record's amount, never
// negative.
func (r *PaymentRecord) RemainingBalance() decimal.Decimal {
	rem := r.Amount.Sub(r.PaidAmount)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// IsSettled reports whether the record needs no further payment.
func (r *PaymentRecord) IsSettled() bool {
	return r.Status == RecordStatusPaid
}

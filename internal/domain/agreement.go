package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AgreementStatusActive    = "active"
	AgreementStatusCompleted = "completed"
	AgreementStatusCancelled = "cancelled"
	AgreementStatusOnHold    = "on_hold"
)

// Agreement is the billing aggregate for one rental or sale transaction.
// Its ledger is the ordered list of monthly payment records; TotalPaid and
// the derived remaining amount are recomputed after every ledger mutation.
type Agreement struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	AgreementID        string          `json:"agreement_id" db:"agreement_id"`
	CustomerName       string          `json:"customer_name" db:"customer_name"`
	CustomerEmail      string          `json:"customer_email" db:"customer_email"`
	CustomerPhone      string          `json:"customer_phone" db:"customer_phone"`
	PeriodAmount       decimal.Decimal `json:"period_amount" db:"period_amount"`
	TotalAmount        decimal.Decimal `json:"total_amount" db:"total_amount"`
	StartDate          time.Time       `json:"start_date" db:"start_date"`
	EndDate            *time.Time      `json:"end_date,omitempty" db:"end_date"`
	Status             string          `json:"status" db:"status"`
	LastReminderSentAt *time.Time      `json:"last_reminder_sent_at,omitempty" db:"last_reminder_sent_at"`
	InvoiceNumber      string          `json:"invoice_number,omitempty" db:"invoice_number"`
	TotalPaid          decimal.Decimal `json:"total_paid" db:"total_paid"`
	Ledger             Ledger          `json:"ledger" db:"-"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// BilledTotal is the amount the agreement obliges the customer to pay: the
// fixed one-off total when one was agreed, otherwise the sum of all ledger
// entries generated so far (open-ended rentals).
func (a *Agreement) BilledTotal() decimal.Decimal {
	if !a.TotalAmount.IsZero() {
		return a.TotalAmount
	}
	return a.Ledger.TotalBilled()
}

// RemainingAmount is BilledTotal minus TotalPaid. It may be momentarily
// negative when an over-payment is recorded; callers clamp for display but
// the raw value is preserved.
func (a *Agreement) RemainingAmount() decimal.Decimal {
	return a.BilledTotal().Sub(a.TotalPaid)
}

// IsActive reports whether new charges may be generated for the agreement.
func (a *Agreement) IsActive() bool {
	return a.Status == AgreementStatusActive
}

// AcceptsPayment reports whether a payment may be applied. Active agreements
// always accept; a cancelled agreement still accepts payments that settle
// debt billed before cancellation (existing unpaid records).
func (a *Agreement) AcceptsPayment() bool {
	if a.Status == AgreementStatusActive {
		return true
	}
	if a.Status == AgreementStatusCancelled {
		return len(a.Ledger.Outstanding()) > 0
	}
	return false
}

// DTOs for requests and responses

type CreateAgreementRequest struct {
	AgreementID   string          `json:"agreement_id" validate:"required"`
	CustomerName  string          `json:"customer_name" validate:"required"`
	CustomerEmail string          `json:"customer_email" validate:"required,email"`
	CustomerPhone string          `json:"customer_phone"`
	PeriodAmount  decimal.Decimal `json:"period_amount" validate:"required"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	StartDate     string          `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       string          `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

type CreateAgreementResponse struct {
	Agreement *Agreement      `json:"agreement"`
	Ledger    []PaymentRecord `json:"ledger"`
}

type ManualPaymentRequest struct {
	Amount          decimal.Decimal `json:"amount" validate:"required"`
	Method          string          `json:"method" validate:"required"`
	PaidDate        string          `json:"paid_date" validate:"omitempty,datetime=2006-01-02"`
	TargetPeriodKey string          `json:"target_period_key" validate:"omitempty,len=7"`
}

// LedgerState is the snapshot returned after a ledger mutation.
type LedgerState struct {
	AgreementID     string          `json:"agreement_id"`
	Status          string          `json:"status"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	InvoiceNumber   string          `json:"invoice_number,omitempty"`
	Records         []PaymentRecord `json:"records"`
}

// SweepReport summarizes one daily sweep pass over all active agreements.
type SweepReport struct {
	AsOf                time.Time `json:"as_of"`
	Agreements          int       `json:"agreements"`
	Generated           int       `json:"generated"`
	OverdueTransitioned int       `json:"overdue_transitioned"`
	RemindersSent       int       `json:"reminders_sent"`
	Failed              int       `json:"failed"`
}

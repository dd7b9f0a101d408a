package errors

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors
var (
	ErrAgreementNotFound     = errors.New("agreement not found")
	ErrAgreementExists       = errors.New("agreement already exists")
	ErrAgreementNotActive    = errors.New("agreement is not active")
	ErrInvalidPaymentAmount  = errors.New("invalid payment amount")
	ErrInvalidDate           = errors.New("invalid date")
	ErrPeriodNotFound        = errors.New("billing period not found")
	ErrInvalidSignature      = errors.New("invalid event signature")
	ErrInvalidPayload        = errors.New("invalid event payload")
	ErrReminderTooSoon       = errors.New("reminder sent too recently")
	ErrNoOutstandingBalance  = errors.New("no outstanding balance")
	ErrInvoiceNumberConflict = errors.New("could not allocate a unique invoice number")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeAgreementNotFound    = "AGREEMENT_NOT_FOUND"
	ErrCodeAgreementExists      = "AGREEMENT_ALREADY_EXISTS"
	ErrCodeAgreementNotActive   = "AGREEMENT_NOT_ACTIVE"
	ErrCodeInvalidPaymentAmount = "INVALID_PAYMENT_AMOUNT"
	ErrCodeInvalidDate          = "INVALID_DATE"
	ErrCodePeriodNotFound       = "PERIOD_NOT_FOUND"
	ErrCodeInvalidSignature     = "INVALID_SIGNATURE"
	ErrCodeInvalidPayload       = "INVALID_PAYLOAD"
	ErrCodeReminderTooSoon      = "REMINDER_TOO_SOON"
	ErrCodeNoOutstanding        = "NO_OUTSTANDING_BALANCE"
	ErrCodeDatabaseError        = "DATABASE_ERROR"
	ErrCodeLockError            = "LOCK_ERROR"
)

// CooldownError is returned when a manual reminder is requested before the
// 24-hour cool-down has elapsed. Remaining is the wait left before the next
// reminder is allowed.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: next reminder allowed in %.1f hours",
		ErrCodeReminderTooSoon, e.Remaining.Hours())
}

func (e *CooldownError) Unwrap() error {
	return ErrReminderTooSoon
}

// Wrap common errors with business context
func WrapAgreementNotFound(agreementID string) *BusinessError {
	return NewBusinessError(
		ErrCodeAgreementNotFound,
		fmt.Sprintf("Agreement with ID %s not found", agreementID),
		ErrAgreementNotFound,
	)
}

func WrapAgreementExists(agreementID string) *BusinessError {
	return NewBusinessError(
		ErrCodeAgreementExists,
		fmt.Sprintf("Agreement with ID %s already exists", agreementID),
		ErrAgreementExists,
	)
}

func WrapAgreementNotActive(agreementID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeAgreementNotActive,
		fmt.Sprintf("Agreement %s has status %s and cannot accept new charges", agreementID, status),
		ErrAgreementNotActive,
	)
}

func WrapInvalidPaymentAmount(amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidPaymentAmount,
		fmt.Sprintf("Invalid payment amount: %s", amount),
		ErrInvalidPaymentAmount,
	)
}

func WrapInvalidDate(field string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidDate,
		fmt.Sprintf("%s must be a calendar date in YYYY-MM-DD form", field),
		ErrInvalidDate,
	)
}

func WrapPeriodNotFound(agreementID, periodKey string) *BusinessError {
	return NewBusinessError(
		ErrCodePeriodNotFound,
		fmt.Sprintf("Agreement %s has no billing period %s", agreementID, periodKey),
		ErrPeriodNotFound,
	)
}

func WrapInvalidSignature() *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidSignature,
		"Event signature verification failed",
		ErrInvalidSignature,
	)
}

func WrapInvalidPayload(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidPayload,
		"Event payload could not be parsed",
		err,
	)
}

func WrapNoOutstandingBalance(agreementID string) *BusinessError {
	return NewBusinessError(
		ErrCodeNoOutstanding,
		fmt.Sprintf("Agreement %s has no outstanding balance", agreementID),
		ErrNoOutstandingBalance,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapLockError(agreementID string, err error) *BusinessError {
	return NewBusinessError(
		ErrCodeLockError,
		fmt.Sprintf("could not acquire lock for agreement %s", agreementID),
		err,
	)
}

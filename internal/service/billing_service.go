package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentbase/billing-engine/internal/config"
	"github.com/rentbase/billing-engine/internal/domain"
	"github.com/rentbase/billing-engine/internal/lock"
	"github.com/rentbase/billing-engine/internal/notifier"
	"github.com/rentbase/billing-engine/internal/repository"
	apperrors "github.com/rentbase/billing-engine/pkg/errors"
	"github.com/rentbase/billing-engine/pkg/utils"
)

// BillingService owns the payment lifecycle of every agreement: ledger
// generation, manual and gateway payments, reminders and invoicing. All
// mutations of one agreement go through the same per-agreement lock.
type BillingService struct {
	Repo     repository.AgreementRepository
	Locker   lock.AgreementLocker
	Sender   notifier.Sender
	Renderer notifier.Renderer
	Invoices *InvoiceAllocator
	Config   *config.Config

	// Now is the clock; injected in tests.
	Now func() time.Time
}

func NewBillingService(
	repo repository.AgreementRepository,
	locker lock.AgreementLocker,
	sender notifier.Sender,
	renderer notifier.Renderer,
	cfg *config.Config,
) *BillingService {
	return &BillingService{
		Repo:     repo,
		Locker:   locker,
		Sender:   sender,
		Renderer: renderer,
		Invoices: NewInvoiceAllocator(repo),
		Config:   cfg,
		Now:      time.Now,
	}
}

// today is the current business calendar date in the pinned billing zone.
func (s *BillingService) today() time.Time {
	return utils.DateOnly(s.Now().In(s.Config.Location()))
}

// CreateAgreement registers a new agreement and synchronously generates its
// ledger up to the current month plus one lookahead period.
func (s *BillingService) CreateAgreement(ctx context.Context, request *domain.CreateAgreementRequest) (*domain.Agreement, error) {
	existing, err := s.Repo.GetByAgreementID(ctx, request.AgreementID)
	if err == nil && existing != nil {
		return nil, apperrors.WrapAgreementExists(request.AgreementID)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.WrapDatabaseError(err)
	}

	startDate, err := time.Parse("2006-01-02", request.StartDate)
	if err != nil {
		return nil, apperrors.WrapInvalidDate("start_date")
	}

	if !request.PeriodAmount.IsPositive() {
		return nil, apperrors.WrapInvalidPaymentAmount(request.PeriodAmount.String())
	}

	now := s.Now()
	agreement := &domain.Agreement{
		ID:            uuid.New(),
		AgreementID:   request.AgreementID,
		CustomerName:  request.CustomerName,
		CustomerEmail: request.CustomerEmail,
		CustomerPhone: request.CustomerPhone,
		PeriodAmount:  request.PeriodAmount,
		TotalAmount:   request.TotalAmount,
		StartDate:     utils.DateOnly(startDate),
		Status:        domain.AgreementStatusActive,
		TotalPaid:     decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if request.EndDate != "" {
		endDate, err := time.Parse("2006-01-02", request.EndDate)
		if err != nil {
			return nil, apperrors.WrapInvalidDate("end_date")
		}
		end := utils.DateOnly(endDate)
		agreement.EndDate = &end
	}

	s.generateRecords(agreement, s.today())

	if err := s.Repo.Create(ctx, agreement); err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}

	return agreement, nil
}

// generateRecords walks the billing calendar up to today plus one lookahead
// month and inserts the missing ledger entries. Existing entries are never
// touched; running it again is a no-op. Entries created behind the calendar
// (retroactive creation, resume from hold) start out overdue.
func (s *BillingService) generateRecords(agreement *domain.Agreement, today time.Time) int {
	inserted := 0
	for _, period := range domain.Periods(agreement.StartDate, today) {
		status := domain.RecordStatusPending
		if period.DueDate.Before(today) {
			status = domain.RecordStatusOverdue
		}

		record := domain.PaymentRecord{
			ID:          uuid.New(),
			AgreementID: agreement.AgreementID,
			PeriodKey:   period.Key,
			Amount:      agreement.PeriodAmount,
			PaidAmount:  decimal.Zero,
			DueDate:     period.DueDate,
			Status:      status,
			CreatedAt:   s.Now(),
		}

		ledger, ok := agreement.Ledger.UpsertIfAbsent(record)
		if ok {
			agreement.Ledger = ledger
			inserted++
		}
	}
	return inserted
}

// RecordManualPayment applies an administrator-entered payment. Without a
// target period the amount settles the oldest unpaid periods first; a target
// period routes the whole amount there (correction path).
func (s *BillingService) RecordManualPayment(ctx context.Context, agreementID string, request *domain.ManualPaymentRequest) (*domain.LedgerState, error) {
	release, err := s.Locker.Acquire(ctx, agreementID)
	if err != nil {
		return nil, apperrors.WrapLockError(agreementID, err)
	}
	defer release()

	agreement, err := s.loadAgreement(ctx, agreementID)
	if err != nil {
		return nil, err
	}

	if !agreement.AcceptsPayment() {
		return nil, apperrors.WrapAgreementNotActive(agreementID, agreement.Status)
	}

	paidDate := s.today()
	if request.PaidDate != "" {
		parsed, err := time.Parse("2006-01-02", request.PaidDate)
		if err != nil {
			return nil, apperrors.WrapInvalidDate("paid_date")
		}
		paidDate = utils.DateOnly(parsed)
	}

	result, err := agreement.ApplyPayment(domain.PaymentInput{
		Amount:          request.Amount,
		PaidDate:        paidDate,
		Method:          request.Method,
		TargetPeriodKey: request.TargetPeriodKey,
	})
	if err != nil {
		return nil, s.wrapApplyError(agreementID, request.TargetPeriodKey, request.Amount, err)
	}

	if err := s.assignInvoiceIfDue(ctx, agreement, result, paidDate); err != nil {
		return nil, err
	}

	if err := s.Repo.Save(ctx, agreement); err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}

	s.dispatchInvoice(ctx, agreement, result)

	return ledgerState(agreement), nil
}

// GetLedger returns the agreement's current ledger snapshot.
func (s *BillingService) GetLedger(ctx context.Context, agreementID string) (*domain.LedgerState, error) {
	agreement, err := s.loadAgreement(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	return ledgerState(agreement), nil
}

// TriggerManualReminder sends one consolidated reminder covering all
// outstanding records, rate-limited to once per 24 hours per agreement.
func (s *BillingService) TriggerManualReminder(ctx context.Context, agreementID string) error {
	release, err := s.Locker.Acquire(ctx, agreementID)
	if err != nil {
		return apperrors.WrapLockError(agreementID, err)
	}
	defer release()

	agreement, err := s.loadAgreement(ctx, agreementID)
	if err != nil {
		return err
	}

	if len(agreement.Ledger.Outstanding()) == 0 {
		return apperrors.WrapNoOutstandingBalance(agreementID)
	}

	now := s.Now()
	if agreement.LastReminderSentAt != nil {
		elapsed := now.Sub(*agreement.LastReminderSentAt)
		if elapsed < domain.ReminderCooldown {
			return &apperrors.CooldownError{Remaining: domain.ReminderCooldown - elapsed}
		}
	}

	agreement.LastReminderSentAt = &now
	if err := s.Repo.Save(ctx, agreement); err != nil {
		return apperrors.WrapDatabaseError(err)
	}

	// Best-effort dispatch after the timestamp is committed; failure is
	// logged, never propagated.
	if err := s.Sender.Send(ctx, domain.ReminderConsolidated, agreement, nil); err != nil {
		log.Printf("consolidated reminder for agreement %s failed: %v", agreementID, err)
	}

	return nil
}

func (s *BillingService) loadAgreement(ctx context.Context, agreementID string) (*domain.Agreement, error) {
	agreement, err := s.Repo.GetByAgreementID(ctx, agreementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.WrapAgreementNotFound(agreementID)
		}
		return nil, apperrors.WrapDatabaseError(err)
	}
	return agreement, nil
}

func (s *BillingService) wrapApplyError(agreementID, targetPeriodKey string, amount decimal.Decimal, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrInvalidPaymentAmount):
		return apperrors.WrapInvalidPaymentAmount(amount.String())
	case errors.Is(err, apperrors.ErrPeriodNotFound):
		return apperrors.WrapPeriodNotFound(agreementID, targetPeriodKey)
	default:
		return err
	}
}

// assignInvoiceIfDue allocates the agreement's invoice number the first time
// any record reaches paid, and stamps the settled records. Assigned exactly
// once, never reassigned.
func (s *BillingService) assignInvoiceIfDue(ctx context.Context, agreement *domain.Agreement, result domain.ApplyResult, paidDate time.Time) error {
	if len(result.NewlySettled) == 0 || agreement.InvoiceNumber != "" {
		return nil
	}

	number, err := s.Invoices.Allocate(ctx, paidDate)
	if err != nil {
		return err
	}
	agreement.InvoiceNumber = number

	settled := make(map[string]bool, len(result.NewlySettled))
	for _, key := range result.NewlySettled {
		settled[key] = true
	}
	for i := range agreement.Ledger.Records {
		if settled[agreement.Ledger.Records[i].PeriodKey] {
			agreement.Ledger.Records[i].InvoiceNumber = number
		}
	}
	return nil
}

// dispatchInvoice renders and sends the invoice for freshly settled periods.
// Failures are logged; the ledger already holds the truth.
func (s *BillingService) dispatchInvoice(ctx context.Context, agreement *domain.Agreement, result domain.ApplyResult) {
	if len(result.NewlySettled) == 0 || agreement.InvoiceNumber == "" {
		return
	}

	for i := range agreement.Ledger.Records {
		record := &agreement.Ledger.Records[i]
		if record.InvoiceNumber != agreement.InvoiceNumber || !record.IsSettled() {
			continue
		}
		paidDate := ""
		if record.PaidDate != nil {
			paidDate = record.PaidDate.Format("2006-01-02")
		}
		if _, err := s.Renderer.Render(notifier.InvoiceData{
			InvoiceNumber: agreement.InvoiceNumber,
			AgreementID:   agreement.AgreementID,
			CustomerName:  agreement.CustomerName,
			CustomerEmail: agreement.CustomerEmail,
			PeriodKey:     record.PeriodKey,
			Amount:        record.Amount.String(),
			PaidDate:      paidDate,
		}); err != nil {
			log.Printf("invoice render for agreement %s period %s failed: %v",
				agreement.AgreementID, record.PeriodKey, err)
			continue
		}
		if err := s.Sender.Send(ctx, domain.NoticeInvoice, agreement, record); err != nil {
			log.Printf("invoice send for agreement %s period %s failed: %v",
				agreement.AgreementID, record.PeriodKey, err)
		}
	}
}

func ledgerState(agreement *domain.Agreement) *domain.LedgerState {
	return &domain.LedgerState{
		AgreementID:     agreement.AgreementID,
		Status:          agreement.Status,
		TotalPaid:       agreement.TotalPaid,
		RemainingAmount: agreement.RemainingAmount(),
		InvoiceNumber:   agreement.InvoiceNumber,
		Records:         agreement.Ledger.Records,
	}
}

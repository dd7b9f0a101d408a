package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/rentbase/billing-engine/internal/domain"
	apperrors "github.com/rentbase/billing-engine/pkg/errors"
	"github.com/rentbase/billing-engine/pkg/utils"
)

// RunDailySweep makes one pass over every active agreement: generate the
// missing ledger entries, flip past-due pending records to overdue, and send
// the reminders the escalation table calls for today. Agreements are swept
// concurrently with a bounded pool; one agreement failing never aborts the
// sweep (isolate-and-continue), it is counted and logged for the operator.
func (s *BillingService) RunDailySweep(ctx context.Context, asOf time.Time) (*domain.SweepReport, error) {
	today := utils.DateOnly(asOf)

	ids, err := s.Repo.ListActiveIDs(ctx)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}

	report := &domain.SweepReport{AsOf: today, Agreements: len(ids)}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	sem := make(chan struct{}, s.Config.Billing.SweepConcurrency)

	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(agreementID string) {
			defer wg.Done()
			defer func() { <-sem }()

			generated, overdue, reminders, err := s.sweepAgreement(ctx, agreementID, today)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				log.Printf("sweep: agreement %s failed: %v", agreementID, err)
				return
			}
			report.Generated += generated
			report.OverdueTransitioned += overdue
			report.RemindersSent += reminders
		}(id)
	}
	wg.Wait()

	log.Printf("sweep %s: agreements=%d generated=%d overdue=%d reminders=%d failed=%d",
		today.Format("2006-01-02"), report.Agreements, report.Generated,
		report.OverdueTransitioned, report.RemindersSent, report.Failed)

	return report, nil
}

func (s *BillingService) sweepAgreement(ctx context.Context, agreementID string, today time.Time) (generated, overdue, reminders int, err error) {
	release, err := s.Locker.Acquire(ctx, agreementID)
	if err != nil {
		return 0, 0, 0, apperrors.WrapLockError(agreementID, err)
	}
	defer release()

	agreement, err := s.loadAgreement(ctx, agreementID)
	if err != nil {
		return 0, 0, 0, err
	}

	// Status may have changed between listing and locking; a cancelled or
	// held agreement is skipped, not retried.
	if !agreement.IsActive() {
		return 0, 0, 0, nil
	}

	generated = s.generateRecords(agreement, today)

	ledger, overdue := agreement.Ledger.MarkOverdueIfPastDue(today)
	agreement.Ledger = ledger

	// Ledger state is the source of truth; commit it before any outbound
	// message goes out.
	if err := s.Repo.Save(ctx, agreement); err != nil {
		return 0, 0, 0, apperrors.WrapDatabaseError(err)
	}

	for i := range agreement.Ledger.Records {
		record := &agreement.Ledger.Records[i]
		kind, ok := domain.DecideReminder(record, today)
		if !ok {
			continue
		}
		if err := s.Sender.Send(ctx, kind, agreement, record); err != nil {
			log.Printf("sweep: %s reminder for agreement %s period %s failed: %v",
				kind, agreementID, record.PeriodKey, err)
			continue
		}
		reminders++
	}

	return generated, overdue, reminders, nil
}

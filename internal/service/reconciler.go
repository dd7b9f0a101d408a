package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentbase/billing-engine/internal/domain"
	apperrors "github.com/rentbase/billing-engine/pkg/errors"
	"github.com/rentbase/billing-engine/pkg/utils"
)

// GatewayEvent is a payment confirmation from the gateway, delivered by
// webhook or returned by a synchronous verification call. Delivery is
// at-least-once; ExternalReference dedups retries.
type GatewayEvent struct {
	AgreementID       string          `json:"agreement_id"`
	ExternalReference string          `json:"external_reference"`
	Amount            decimal.Decimal `json:"amount"`
	PaidAt            string          `json:"paid_at"`
	Method            string          `json:"method"`
}

// VerifySignature checks the hex-encoded HMAC-SHA256 of the raw payload
// against the shared gateway secret, in constant time.
func VerifySignature(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ReconcileGatewayEvent verifies and applies one gateway confirmation to the
// ledger. A replayed external reference acks successfully without touching
// totals, so at-least-once delivery can never double-credit.
func (s *BillingService) ReconcileGatewayEvent(ctx context.Context, payload []byte, signature string) (*domain.LedgerState, error) {
	if !VerifySignature(payload, signature, s.Config.Billing.WebhookSecret) {
		log.Printf("security: gateway event rejected, signature mismatch (%d bytes)", len(payload))
		return nil, apperrors.WrapInvalidSignature()
	}

	var event GatewayEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, apperrors.WrapInvalidPayload(err)
	}
	if event.AgreementID == "" || event.ExternalReference == "" {
		return nil, apperrors.WrapAgreementNotFound(event.AgreementID)
	}

	release, err := s.Locker.Acquire(ctx, event.AgreementID)
	if err != nil {
		return nil, apperrors.WrapLockError(event.AgreementID, err)
	}
	defer release()

	agreement, err := s.loadAgreement(ctx, event.AgreementID)
	if err != nil {
		return nil, err
	}

	// Duplicate delivery acks before any status check, so a retry for an
	// agreement that has since closed still succeeds.
	if agreement.Ledger.HasReference(event.ExternalReference) {
		log.Printf("gateway event %s for agreement %s already reconciled, acking",
			event.ExternalReference, event.AgreementID)
		return ledgerState(agreement), nil
	}

	if !agreement.AcceptsPayment() {
		return nil, apperrors.WrapAgreementNotActive(event.AgreementID, agreement.Status)
	}

	paidDate := s.today()
	if event.PaidAt != "" {
		if parsed, err := time.Parse(time.RFC3339, event.PaidAt); err == nil {
			paidDate = utils.DateOnly(parsed)
		} else if parsed, err := time.Parse("2006-01-02", event.PaidAt); err == nil {
			paidDate = utils.DateOnly(parsed)
		}
	}

	result, err := agreement.ApplyPayment(domain.PaymentInput{
		Amount:            event.Amount,
		PaidDate:          paidDate,
		Method:            event.Method,
		ExternalReference: event.ExternalReference,
	})
	if err != nil {
		return nil, s.wrapApplyError(event.AgreementID, "", event.Amount, err)
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

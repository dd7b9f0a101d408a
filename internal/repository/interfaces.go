package repository

import (
	"context"

	"github.com/rentbase/billing-engine/internal/domain"
)

// AgreementRepository persists the agreement aggregate: the agreement row
// plus its embedded ledger of payment records, one storage transaction per
// mutation.
type AgreementRepository interface {
	// Create inserts a new agreement together with its initial ledger.
	Create(ctx context.Context, agreement *domain.Agreement) error

	// GetByAgreementID loads the full aggregate, ledger included.
	GetByAgreementID(ctx context.Context, agreementID string) (*domain.Agreement, error)

	// Save writes the aggregate back: agreement totals and statuses plus an
	// upsert of every ledger record, in one transaction.
	Save(ctx context.Context, agreement *domain.Agreement) error

	// ListActiveIDs returns the agreement IDs eligible for the daily sweep.
	ListActiveIDs(ctx context.Context) ([]string, error)

	// InvoiceNumberExists reports whether an invoice number is already
	// allocated anywhere, used by the allocator to re-roll on collision.
	InvoiceNumberExists(ctx context.Context, number string) (bool, error)
}

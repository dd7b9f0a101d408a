package mocks

import (
	"context"
	"database/sql"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/rentbase/billing-engine/internal/domain"
)

type MockAgreementRepository struct {
	mock.Mock
}

func (m *MockAgreementRepository) Create(ctx context.Context, agreement *domain.Agreement) error {
	args := m.Called(ctx, agreement)
	return args.Error(0)
}

func (m *MockAgreementRepository) GetByAgreementID(ctx context.Context, agreementID string) (*domain.Agreement, error) {
	args := m.Called(ctx, agreementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agreement), args.Error(1)
}

func (m *MockAgreementRepository) Save(ctx context.Context, agreement *domain.Agreement) error {
	args := m.Called(ctx, agreement)
	return args.Error(0)
}

func (m *MockAgreementRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockAgreementRepository) InvoiceNumberExists(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

// InMemoryAgreementRepository is a map-backed repository for tests that need
// persisted state to survive across calls (webhook retries, sweeps). Reads
// and writes exchange deep copies, so in-flight mutations only become
// visible through Save, like the real store.
type InMemoryAgreementRepository struct {
	mu         sync.Mutex
	agreements map[string]*domain.Agreement
}

func NewInMemoryAgreementRepository() *InMemoryAgreementRepository {
	return &InMemoryAgreementRepository{agreements: make(map[string]*domain.Agreement)}
}

func copyAgreement(a *domain.Agreement) *domain.Agreement {
	clone := *a
	clone.Ledger.Records = make([]domain.PaymentRecord, len(a.Ledger.Records))
	copy(clone.Ledger.Records, a.Ledger.Records)
	clone.Ledger.ConsumedReferences = make([]string, len(a.Ledger.ConsumedReferences))
	copy(clone.Ledger.ConsumedReferences, a.Ledger.ConsumedReferences)
	return &clone
}

func (r *InMemoryAgreementRepository) Create(ctx context.Context, agreement *domain.Agreement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agreements[agreement.AgreementID] = copyAgreement(agreement)
	return nil
}

func (r *InMemoryAgreementRepository) GetByAgreementID(ctx context.Context, agreementID string) (*domain.Agreement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agreement, ok := r.agreements[agreementID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return copyAgreement(agreement), nil
}

func (r *InMemoryAgreementRepository) Save(ctx context.Context, agreement *domain.Agreement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agreements[agreement.AgreementID] = copyAgreement(agreement)
	return nil
}

func (r *InMemoryAgreementRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, agreement := range r.agreements {
		if agreement.Status == domain.AgreementStatusActive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *InMemoryAgreementRepository) InvoiceNumberExists(ctx context.Context, number string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, agreement := range r.agreements {
		if agreement.InvoiceNumber == number {
			return true, nil
		}
		for _, rec := range agreement.Ledger.Records {
			if rec.InvoiceNumber == number {
				return true, nil
			}
		}
	}
	return false, nil
}

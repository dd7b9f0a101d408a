package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/rentbase/billing-engine/internal/repository"
	apperrors "github.com/rentbase/billing-engine/pkg/errors"
)

const (
	invoiceSuffixAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	invoiceSuffixLength   = 4
	invoiceMaxAttempts    = 5
)

// InvoiceAllocator mints invoice numbers of the form INV-YYYYMMDD-XXXX.
// The randomized suffix avoids a central sequence; collisions are possible
// so the allocator checks existing numbers and re-rolls before committing.
type InvoiceAllocator struct {
	Repo repository.AgreementRepository
}

func NewInvoiceAllocator(repo repository.AgreementRepository) *InvoiceAllocator {
	return &InvoiceAllocator{Repo: repo}
}

// Allocate returns a fresh invoice number stamped with date.
func (a *InvoiceAllocator) Allocate(ctx context.Context, date time.Time) (string, error) {
	for attempt := 0; attempt < invoiceMaxAttempts; attempt++ {
		number := fmt.Sprintf("INV-%s-%s", date.Format("20060102"), randomSuffix())

		exists, err := a.Repo.InvoiceNumberExists(ctx, number)
		if err != nil {
			return "", apperrors.WrapDatabaseError(err)
		}
		if !exists {
			return number, nil
		}
	}
	return "", apperrors.ErrInvoiceNumberConflict
}

func randomSuffix() string {
	suffix := make([]byte, invoiceSuffixLength)
	max := big.NewInt(int64(len(invoiceSuffixAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing means the platform's entropy source is
			// broken; nothing sensible to recover to.
			panic(err)
		}
		suffix[i] = invoiceSuffixAlphabet[n.Int64()]
	}
	return string(suffix)
}

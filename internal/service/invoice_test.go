package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rentbase/billing-engine/internal/service"
	"github.com/rentbase/billing-engine/tests/mocks"
)

func TestInvoiceAllocator_Format(t *testing.T) {
	mockRepo := &mocks.MockAgreementRepository{}
	mockRepo.On("InvoiceNumberExists", mock.Anything, mock.Anything).Return(false, nil)

	allocator := service.NewInvoiceAllocator(mockRepo)
	number, err := allocator.Allocate(context.Background(), time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Regexp(t, `^INV-20240603-[A-Z2-9]{4}$`, number)
}

func TestInvoiceAllocator_RerollsOnCollision(t *testing.T) {
	mockRepo := &mocks.MockAgreementRepository{}
	mockRepo.On("InvoiceNumberExists", mock.Anything, mock.Anything).Return(true, nil).Once()
	mockRepo.On("InvoiceNumberExists", mock.Anything, mock.Anything).Return(false, nil).Once()

	allocator := service.NewInvoiceAllocator(mockRepo)
	number, err := allocator.Allocate(context.Background(), time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.NotEmpty(t, number)
	mockRepo.AssertNumberOfCalls(t, "InvoiceNumberExists", 2)
}

func TestInvoiceAllocator_SuffixesDiffer(t *testing.T) {
	mockRepo := &mocks.MockAgreementRepository{}
	mockRepo.On("InvoiceNumberExists", mock.Anything, mock.Anything).Return(false, nil)

	allocator := service.NewInvoiceAllocator(mockRepo)
	date := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		number, err := allocator.Allocate(context.Background(), date)
		require.NoError(t, err)
		seen[number] = true
	}
	// 32^4 possibilities; 50 draws colliding down to a single value would
	// mean the suffix is not random at all.
	assert.Greater(t, len(seen), 1)
}

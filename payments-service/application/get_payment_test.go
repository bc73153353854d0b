package application

import (
	"context"
	"testing"

	"github.com/draftea/payment-hub/payments-service/mocks"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGetPayment_Execute(t *testing.T) {
	t.Run("returns the payment", func(t *testing.T) {
		repo := mocks.NewMockPaymentRepository(t)
		payment := newTestPayment(t)
		repo.EXPECT().FindByID(mock.Anything, payment.ID).Return(payment, nil).Once()

		found, err := NewGetPayment(repo).Execute(context.Background(), payment.ID)

		require.NoError(t, err)
		assert.Equal(t, payment, found)
	})

	t.Run("unknown payment", func(t *testing.T) {
		repo := mocks.NewMockPaymentRepository(t)
		id := models.GenerateUUID()
		repo.EXPECT().FindByID(mock.Anything, id).Return(nil, faults.ErrNotFound).Once()

		_, err := NewGetPayment(repo).Execute(context.Background(), id)

		require.Error(t, err)
		assert.True(t, errors.Is(err, faults.ErrNotFound))
	})

	t.Run("missing payment ID", func(t *testing.T) {
		repo := mocks.NewMockPaymentRepository(t)

		_, err := NewGetPayment(repo).Execute(context.Background(), "")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "payment ID is required")
	})
}

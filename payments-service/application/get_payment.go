package application

import (
	"context"

	"github.com/draftea/payment-hub/payments-service/domain"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/pkg/errors"
)

// GetPayment returns a payment by ID
type GetPayment struct {
	paymentRepository domain.PaymentRepository
}

// NewGetPayment creates a new GetPayment use case
func NewGetPayment(paymentRepository domain.PaymentRepository) *GetPayment {
	return &GetPayment{paymentRepository: paymentRepository}
}

// Execute executes the get payment use case
func (uc *GetPayment) Execute(ctx context.Context, id models.ID) (*domain.Payment, error) {
	if id.IsZero() {
		return nil, errors.New("payment ID is required")
	}
	return uc.paymentRepository.FindByID(ctx, id)
}

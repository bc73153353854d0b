package application

import (
	"context"

	"github.com/draftea/payment-hub/orchestrator-service/domain"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/pkg/errors"
)

// GetSaga returns a point-in-time snapshot of a saga instance
type GetSaga struct {
	sagaStore domain.SagaStore
}

// NewGetSaga creates a new GetSaga use case
func NewGetSaga(sagaStore domain.SagaStore) *GetSaga {
	return &GetSaga{sagaStore: sagaStore}
}

// Execute executes the get saga use case
func (uc *GetSaga) Execute(ctx context.Context, id models.ID) (*domain.Saga, error) {
	if id.IsZero() {
		return nil, errors.New("saga ID is required")
	}
	return uc.sagaStore.FindByID(ctx, id)
}

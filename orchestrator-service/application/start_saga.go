package application

import (
	"context"
	"encoding/json"

	"github.com/draftea/payment-hub/orchestrator-service/domain"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/pkg/errors"
)

// StartSagaCommand represents the trigger to start a saga for a payment
type StartSagaCommand struct {
	PaymentID     models.ID       `json:"payment_id"`
	TenantID      string          `json:"tenant_id"`
	BusinessUnit  string          `json:"business_unit,omitempty"`
	PaymentType   string          `json:"payment_type"`
	CorrelationID models.ID       `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// StartSagaResponse acknowledges the start; the outcome is observed later
// through the event stream or a status query.
type StartSagaResponse struct {
	SagaID  models.ID         `json:"saga_id"`
	Status  domain.SagaStatus `json:"status"`
	Existed bool              `json:"existed"`
}

// StartSaga creates and launches a saga for a payment. A redelivered trigger
// for the same (payment, saga type) returns the existing instance instead of
// creating a duplicate.
type StartSaga struct {
	sagaStore      domain.SagaStore
	registry       domain.DefinitionRegistry
	eventStore     events.EventStore
	eventPublisher events.Publisher
	dispatcher     *Dispatcher
}

// NewStartSaga creates a new StartSaga use case
func NewStartSaga(
	sagaStore domain.SagaStore,
	registry domain.DefinitionRegistry,
	eventStore events.EventStore,
	eventPublisher events.Publisher,
	dispatcher *Dispatcher,
) *StartSaga {
	return &StartSaga{
		sagaStore:      sagaStore,
		registry:       registry,
		eventStore:     eventStore,
		eventPublisher: eventPublisher,
		dispatcher:     dispatcher,
	}
}

// Execute executes the start saga use case
func (uc *StartSaga) Execute(ctx context.Context, cmd *StartSagaCommand) (*StartSagaResponse, error) {
	if cmd.PaymentID.IsZero() {
		return nil, errors.New("payment ID is required")
	}
	if cmd.TenantID == "" {
		return nil, errors.New("tenant ID is required")
	}
	if cmd.PaymentType == "" {
		return nil, errors.New("payment type is required")
	}

	definition, err := uc.registry.Resolve(cmd.TenantID, cmd.PaymentType)
	if err != nil {
		// Fatal for this attempt; a saga never runs on a substituted default
		return nil, err
	}

	existing, err := uc.sagaStore.FindByPaymentAndType(ctx, cmd.PaymentID, definition.SagaType)
	if err == nil {
		return &StartSagaResponse{SagaID: existing.ID, Status: existing.Status, Existed: true}, nil
	}
	if !errors.Is(err, faults.ErrNotFound) {
		return nil, errors.Wrap(err, "failed to look up existing saga")
	}

	instance := domain.NewSaga(definition, cmd.PaymentID, cmd.TenantID, cmd.BusinessUnit, cmd.CorrelationID)

	first, err := instance.Begin()
	if err != nil {
		return nil, err
	}

	if err := uc.sagaStore.Save(ctx, instance); err != nil {
		if errors.Is(err, faults.ErrOptimisticLockConflict) {
			// Lost a concurrent create for the same trigger; reuse the winner
			winner, findErr := uc.sagaStore.FindByPaymentAndType(ctx, cmd.PaymentID, definition.SagaType)
			if findErr != nil {
				return nil, errors.Wrap(findErr, "failed to load concurrently created saga")
			}
			return &StartSagaResponse{SagaID: winner.ID, Status: winner.Status, Existed: true}, nil
		}
		return nil, errors.Wrap(err, "failed to save saga")
	}

	if err := appendAuditEvents(ctx, uc.eventStore, instance); err != nil {
		return nil, err
	}

	if err := uc.eventPublisher.Publish(ctx, instance.Events()...); err != nil {
		return nil, errors.Wrap(err, "failed to publish saga events")
	}
	instance.ClearEvents()

	if err := uc.dispatcher.DispatchStep(ctx, instance, first, cmd.Payload, 0); err != nil {
		// The saga is persisted with the first step armed; the timeout sweep
		// recovers it if this dispatch is lost.
		return nil, err
	}

	return &StartSagaResponse{SagaID: instance.ID, Status: instance.Status}, nil
}

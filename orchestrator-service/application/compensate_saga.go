package application

import (
	"context"

	"github.com/draftea/payment-hub/orchestrator-service/domain"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/draftea/payment-hub/shared/retry"
	"github.com/pkg/errors"
)

// CompensateSagaCommand is an operator request to unwind a saga
type CompensateSagaCommand struct {
	SagaID models.ID `json:"saga_id"`
	Reason string    `json:"reason"`
}

// CompensateSaga forces a running or failed saga into compensation. The
// current step's remaining retry budget is bypassed and the step is recorded
// failed without being compensated.
type CompensateSaga struct {
	sagaStore      domain.SagaStore
	eventStore     events.EventStore
	eventPublisher events.Publisher
	dispatcher     *Dispatcher
}

// NewCompensateSaga creates a new CompensateSaga use case
func NewCompensateSaga(
	sagaStore domain.SagaStore,
	eventStore events.EventStore,
	eventPublisher events.Publisher,
	dispatcher *Dispatcher,
) *CompensateSaga {
	return &CompensateSaga{
		sagaStore:      sagaStore,
		eventStore:     eventStore,
		eventPublisher: eventPublisher,
		dispatcher:     dispatcher,
	}
}

// Execute executes the compensate saga use case
func (uc *CompensateSaga) Execute(ctx context.Context, cmd *CompensateSagaCommand) (*domain.Saga, error) {
	if cmd.SagaID.IsZero() {
		return nil, errors.New("saga ID is required")
	}

	reason := cmd.Reason
	if reason == "" {
		reason = "cancelled by operator"
	}

	var instance *domain.Saga
	err := retry.OnConflict(ctx, func(ctx context.Context) error {
		var err error
		instance, err = uc.sagaStore.FindByID(ctx, cmd.SagaID)
		if err != nil {
			return errors.Wrap(err, "failed to load saga")
		}

		if err := instance.ForceCompensate(reason); err != nil {
			return err
		}

		if err := uc.sagaStore.Save(ctx, instance); err != nil {
			return err
		}

		if err := appendAuditEvents(ctx, uc.eventStore, instance); err != nil {
			return err
		}

		if err := uc.eventPublisher.Publish(ctx, instance.Events()...); err != nil {
			return errors.Wrap(err, "failed to publish saga events")
		}
		instance.ClearEvents()

		if comp := instance.CompensatingStep(); comp != nil {
			return uc.dispatcher.DispatchCompensation(ctx, instance, comp, 0)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return instance, nil
}

package application

import (
	"context"
	"fmt"

	"github.com/draftea/payment-hub/orchestrator-service/domain"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/retry"
	"github.com/draftea/payment-hub/shared/saga"
	"github.com/draftea/payment-hub/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// ProcessCompensationCompleted advances the compensation chain when a step's
// compensation succeeds
type ProcessCompensationCompleted struct {
	sagaStore      domain.SagaStore
	eventStore     events.EventStore
	eventPublisher events.Publisher
	dispatcher     *Dispatcher
}

// NewProcessCompensationCompleted creates a new ProcessCompensationCompleted use case
func NewProcessCompensationCompleted(
	sagaStore domain.SagaStore,
	eventStore events.EventStore,
	eventPublisher events.Publisher,
	dispatcher *Dispatcher,
) *ProcessCompensationCompleted {
	return &ProcessCompensationCompleted{
		sagaStore:      sagaStore,
		eventStore:     eventStore,
		eventPublisher: eventPublisher,
		dispatcher:     dispatcher,
	}
}

// Execute applies a compensation completion and dispatches the next one, in
// reverse completion order, until the saga reaches COMPENSATED
func (uc *ProcessCompensationCompleted) Execute(ctx context.Context, result *saga.StepResult) error {
	if result.SagaID.IsZero() || result.StepName == "" {
		return errors.New("saga ID and step name are required")
	}

	return retry.OnConflict(ctx, func(ctx context.Context) error {
		instance, err := uc.sagaStore.FindByID(ctx, result.SagaID)
		if err != nil {
			return errors.Wrap(err, "failed to load saga")
		}

		next, err := instance.CompleteCompensation(result.StepName)
		if err != nil {
			if errors.Is(err, domain.ErrStaleEvent) {
				fmt.Printf("Discarding stale compensation completion for saga %s: %v\n", instance.ID, err)
				return nil
			}
			return err
		}

		if err := uc.sagaStore.Save(ctx, instance); err != nil {
			return err
		}

		telemetry.RecordCounter(ctx, "saga_compensations_completed_total", "Completed saga step compensations", 1,
			attribute.String("saga_type", instance.SagaType),
			attribute.String("step", result.StepName),
		)

		if err := appendAuditEvents(ctx, uc.eventStore, instance); err != nil {
			return err
		}

		if err := uc.eventPublisher.Publish(ctx, instance.Events()...); err != nil {
			return errors.Wrap(err, "failed to publish saga events")
		}
		instance.ClearEvents()

		if next != nil {
			return uc.dispatcher.DispatchCompensation(ctx, instance, next, 0)
		}

		return nil
	})
}

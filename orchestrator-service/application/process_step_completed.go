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

// ProcessStepCompleted advances a saga when a step executor reports success
type ProcessStepCompleted struct {
	sagaStore      domain.SagaStore
	eventStore     events.EventStore
	eventPublisher events.Publisher
	dispatcher     *Dispatcher
}

// NewProcessStepCompleted creates a new ProcessStepCompleted use case
func NewProcessStepCompleted(
	sagaStore domain.SagaStore,
	eventStore events.EventStore,
	eventPublisher events.Publisher,
	dispatcher *Dispatcher,
) *ProcessStepCompleted {
	return &ProcessStepCompleted{
		sagaStore:      sagaStore,
		eventStore:     eventStore,
		eventPublisher: eventPublisher,
		dispatcher:     dispatcher,
	}
}

// Execute applies a step completion. Redelivered completions are absorbed
// without re-dispatching the next step.
func (uc *ProcessStepCompleted) Execute(ctx context.Context, result *saga.StepResult) error {
	if result.SagaID.IsZero() || result.StepName == "" {
		return errors.New("saga ID and step name are required")
	}

	return retry.OnConflict(ctx, func(ctx context.Context) error {
		instance, err := uc.sagaStore.FindByID(ctx, result.SagaID)
		if err != nil {
			return errors.Wrap(err, "failed to load saga")
		}

		next, err := instance.CompleteStep(result.StepName)
		if err != nil {
			if errors.Is(err, domain.ErrStaleEvent) {
				fmt.Printf("Discarding stale completion for saga %s: %v\n", instance.ID, err)
				return nil
			}
			return err
		}

		if err := uc.sagaStore.Save(ctx, instance); err != nil {
			return err
		}

		telemetry.RecordCounter(ctx, "saga_steps_completed_total", "Completed saga steps", 1,
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
			return uc.dispatcher.DispatchStep(ctx, instance, next, nil, 0)
		}

		return nil
	})
}

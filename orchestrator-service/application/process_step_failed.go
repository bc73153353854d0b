package application

import (
	"context"
	"fmt"

	"github.com/draftea/payment-hub/orchestrator-service/domain"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/retry"
	"github.com/draftea/payment-hub/shared/saga"
	"github.com/draftea/payment-hub/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// ProcessStepFailed handles a step execution failure, either scheduling a
// retry of the same step or turning the saga around into compensation
type ProcessStepFailed struct {
	sagaStore      domain.SagaStore
	eventStore     events.EventStore
	eventPublisher events.Publisher
	dispatcher     *Dispatcher
}

// NewProcessStepFailed creates a new ProcessStepFailed use case
func NewProcessStepFailed(
	sagaStore domain.SagaStore,
	eventStore events.EventStore,
	eventPublisher events.Publisher,
	dispatcher *Dispatcher,
) *ProcessStepFailed {
	return &ProcessStepFailed{
		sagaStore:      sagaStore,
		eventStore:     eventStore,
		eventPublisher: eventPublisher,
		dispatcher:     dispatcher,
	}
}

// Execute applies a step failure and acts on the aggregate's decision
func (uc *ProcessStepFailed) Execute(ctx context.Context, result *saga.StepResult) error {
	if result.SagaID.IsZero() || result.StepName == "" {
		return errors.New("saga ID and step name are required")
	}

	return retry.OnConflict(ctx, func(ctx context.Context) error {
		instance, err := uc.sagaStore.FindByID(ctx, result.SagaID)
		if err != nil {
			return errors.Wrap(err, "failed to load saga")
		}

		cause := result.Failure(faults.ErrStepExecutionFailed)

		outcome, err := instance.FailStep(result.StepName, cause.Error())
		if err != nil {
			if errors.Is(err, domain.ErrStaleEvent) {
				fmt.Printf("Discarding stale failure for saga %s: %v\n", instance.ID, err)
				return nil
			}
			return err
		}

		if err := uc.sagaStore.Save(ctx, instance); err != nil {
			return err
		}

		telemetry.RecordCounter(ctx, "saga_steps_failed_total", "Failed saga step executions", 1,
			attribute.String("saga_type", instance.SagaType),
			attribute.String("step", result.StepName),
			attribute.String("outcome", string(outcome)),
		)

		if err := appendAuditEvents(ctx, uc.eventStore, instance); err != nil {
			return err
		}

		if err := uc.eventPublisher.Publish(ctx, instance.Events()...); err != nil {
			return errors.Wrap(err, "failed to publish saga events")
		}
		instance.ClearEvents()

		switch outcome {
		case domain.FailureOutcomeRetry:
			step := instance.Step(result.StepName)
			return uc.dispatcher.DispatchStep(ctx, instance, step, nil, step.Backoff.Delay(step.Attempts))
		case domain.FailureOutcomeCompensate:
			if comp := instance.CompensatingStep(); comp != nil {
				return uc.dispatcher.DispatchCompensation(ctx, instance, comp, 0)
			}
		}

		// Nothing completed needs undoing, the saga is already compensated.
		return nil
	})
}

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

// ProcessCompensationFailed handles a failed compensation attempt, retrying
// within the step's compensation budget or surfacing the saga as stuck
type ProcessCompensationFailed struct {
	sagaStore      domain.SagaStore
	eventStore     events.EventStore
	eventPublisher events.Publisher
	dispatcher     *Dispatcher
}

// NewProcessCompensationFailed creates a new ProcessCompensationFailed use case
func NewProcessCompensationFailed(
	sagaStore domain.SagaStore,
	eventStore events.EventStore,
	eventPublisher events.Publisher,
	dispatcher *Dispatcher,
) *ProcessCompensationFailed {
	return &ProcessCompensationFailed{
		sagaStore:      sagaStore,
		eventStore:     eventStore,
		eventPublisher: eventPublisher,
		dispatcher:     dispatcher,
	}
}

// Execute applies a compensation failure. A stuck saga stays COMPENSATING and
// is never silently dropped; operators act on the stuck event and metric.
func (uc *ProcessCompensationFailed) Execute(ctx context.Context, result *saga.StepResult) error {
	if result.SagaID.IsZero() || result.StepName == "" {
		return errors.New("saga ID and step name are required")
	}

	return retry.OnConflict(ctx, func(ctx context.Context) error {
		instance, err := uc.sagaStore.FindByID(ctx, result.SagaID)
		if err != nil {
			return errors.Wrap(err, "failed to load saga")
		}

		cause := result.Failure(faults.ErrCompensationFailed)

		outcome, err := instance.FailCompensation(result.StepName, cause.Error())
		if err != nil {
			if errors.Is(err, domain.ErrStaleEvent) {
				fmt.Printf("Discarding stale compensation failure for saga %s: %v\n", instance.ID, err)
				return nil
			}
			return err
		}

		if err := uc.sagaStore.Save(ctx, instance); err != nil {
			return err
		}

		telemetry.RecordCounter(ctx, "saga_compensations_failed_total", "Failed saga step compensation attempts", 1,
			attribute.String("saga_type", instance.SagaType),
			attribute.String("step", result.StepName),
			attribute.String("outcome", string(outcome)),
		)
		if outcome == domain.CompensationOutcomeStuck {
			telemetry.RecordCounter(ctx, "saga_stuck_total", "Sagas stuck in compensation", 1,
				attribute.String("saga_type", instance.SagaType),
			)
		}

		if err := appendAuditEvents(ctx, uc.eventStore, instance); err != nil {
			return err
		}

		if err := uc.eventPublisher.Publish(ctx, instance.Events()...); err != nil {
			return errors.Wrap(err, "failed to publish saga events")
		}
		instance.ClearEvents()

		if outcome == domain.CompensationOutcomeRetry {
			step := instance.Step(result.StepName)
			return uc.dispatcher.DispatchCompensation(ctx, instance, step, step.Backoff.Delay(step.CompensationAttempts))
		}

		return nil
	})
}

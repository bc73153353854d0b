package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/draftea/payment-hub/orchestrator-service/domain"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/saga"
	"github.com/pkg/errors"
)

// Dispatcher publishes step and compensation commands to step executors
type Dispatcher struct {
	eventPublisher events.Publisher
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(eventPublisher events.Publisher) *Dispatcher {
	return &Dispatcher{eventPublisher: eventPublisher}
}

// DispatchStep publishes the forward command for a step. A positive delay
// defers the publish, which is how retry backoff is applied.
func (d *Dispatcher) DispatchStep(ctx context.Context, instance *domain.Saga, step *domain.SagaStep, payload json.RawMessage, delay time.Duration) error {
	return d.dispatch(ctx, events.StepExecuteTopic, step.Command, instance, step, step.Attempts, payload, delay)
}

// DispatchCompensation publishes the compensation command for a step
func (d *Dispatcher) DispatchCompensation(ctx context.Context, instance *domain.Saga, step *domain.SagaStep, delay time.Duration) error {
	return d.dispatch(ctx, events.StepCompensateTopic, step.Compensation, instance, step, step.CompensationAttempts, nil, delay)
}

func (d *Dispatcher) dispatch(ctx context.Context, topic events.Topic, command string, instance *domain.Saga, step *domain.SagaStep, attempt int, payload json.RawMessage, delay time.Duration) error {
	cmd := &saga.StepCommand{
		SagaID:        instance.ID,
		StepName:      step.Name,
		PaymentID:     instance.PaymentID,
		TenantID:      instance.TenantID,
		BusinessUnit:  instance.BusinessUnit,
		CorrelationID: instance.CorrelationID,
		Attempt:       attempt,
		Payload:       payload,
	}

	event := saga.NewCommandEvent(topic, cmd).WithMetadata("command", command)

	if delay <= 0 {
		return errors.Wrap(d.eventPublisher.Publish(ctx, event), "failed to dispatch command")
	}

	// Deferred dispatch outlives the inbound message handling; the timeout
	// sweep covers the case where the process dies before the timer fires.
	go func() {
		time.Sleep(delay)
		if err := d.eventPublisher.Publish(context.Background(), event); err != nil {
			fmt.Printf("Failed to dispatch delayed command for saga %s step %s: %v\n", instance.ID, step.Name, err)
		}
	}()

	return nil
}

package handlers

import (
	"context"
	"fmt"

	"github.com/draftea/payment-hub/orchestrator-service/application"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/draftea/payment-hub/shared/saga"
	"github.com/pkg/errors"
)

// SagaEventHandlers routes inbound events to the orchestrator use cases:
// payment triggers start sagas, step results advance them.
type SagaEventHandlers struct {
	startSaga                    *application.StartSaga
	processStepCompleted         *application.ProcessStepCompleted
	processStepFailed            *application.ProcessStepFailed
	processCompensationCompleted *application.ProcessCompensationCompleted
	processCompensationFailed    *application.ProcessCompensationFailed
}

// NewSagaEventHandlers creates new saga event handlers
func NewSagaEventHandlers(
	startSaga *application.StartSaga,
	processStepCompleted *application.ProcessStepCompleted,
	processStepFailed *application.ProcessStepFailed,
	processCompensationCompleted *application.ProcessCompensationCompleted,
	processCompensationFailed *application.ProcessCompensationFailed,
) *SagaEventHandlers {
	return &SagaEventHandlers{
		startSaga:                    startSaga,
		processStepCompleted:         processStepCompleted,
		processStepFailed:            processStepFailed,
		processCompensationCompleted: processCompensationCompleted,
		processCompensationFailed:    processCompensationFailed,
	}
}

// HandlerID returns the unique identifier for this event handler
func (h *SagaEventHandlers) HandlerID() string {
	return "saga-orchestrator-event-handler"
}

// Handle implements the events.EventHandler interface
func (h *SagaEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.Topic {
	case events.PaymentInitiatedTopic:
		return h.HandlePaymentInitiated(ctx, event)
	case events.StepCompletedTopic:
		return h.handleStepResult(ctx, event, h.processStepCompleted.Execute)
	case events.StepFailedTopic:
		return h.handleStepResult(ctx, event, h.processStepFailed.Execute)
	case events.CompensationCompletedTopic:
		return h.handleStepResult(ctx, event, h.processCompensationCompleted.Execute)
	case events.CompensationFailedTopic:
		return h.handleStepResult(ctx, event, h.processCompensationFailed.Execute)
	default:
		// Unknown topic, ignore
		return nil
	}
}

// PaymentInitiatedData is the trigger payload published by the payments service
type PaymentInitiatedData struct {
	PaymentID    models.ID    `json:"payment_id"`
	TenantID     string       `json:"tenant_id"`
	BusinessUnit string       `json:"business_unit"`
	PaymentType  string       `json:"payment_type"`
	Amount       models.Money `json:"amount"`
}

// HandlePaymentInitiated starts a saga for a newly initiated payment
func (h *SagaEventHandlers) HandlePaymentInitiated(ctx context.Context, event *events.Event) error {
	var data PaymentInitiatedData
	if err := event.UnmarshalPayload(&data); err != nil {
		return errors.Wrap(err, "failed to parse payment initiated data")
	}

	cmd := &application.StartSagaCommand{
		PaymentID:     data.PaymentID,
		TenantID:      data.TenantID,
		BusinessUnit:  data.BusinessUnit,
		PaymentType:   data.PaymentType,
		CorrelationID: event.CorrelationID,
	}

	if _, err := h.startSaga.Execute(ctx, cmd); err != nil {
		// Returning the error keeps the message in flight for redelivery
		fmt.Printf("Failed to start saga for payment %s: %v\n", data.PaymentID, err)
		return err
	}

	return nil
}

func (h *SagaEventHandlers) handleStepResult(ctx context.Context, event *events.Event, process func(context.Context, *saga.StepResult) error) error {
	var result saga.StepResult
	if err := event.UnmarshalPayload(&result); err != nil {
		return errors.Wrap(err, "failed to parse step result")
	}

	if err := process(ctx, &result); err != nil {
		fmt.Printf("Failed to process %s for saga %s: %v\n", event.Topic, result.SagaID, err)
		return err
	}

	return nil
}

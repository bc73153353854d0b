package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/draftea/payment-hub/payments-service/application"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/draftea/payment-hub/shared/saga"
	"github.com/pkg/errors"
)

// Canonical step names the payment lifecycle reacts to
const (
	stepValidate = "validate"
	stepClear    = "clear"
)

// PaymentEventHandlers drives payment transitions off the saga event stream.
// The saga is authoritative; the payment mirrors its progress.
type PaymentEventHandlers struct {
	advancePayment  *application.AdvancePayment
	finalizePayment *application.FinalizePayment
}

// NewPaymentEventHandlers creates new payment event handlers
func NewPaymentEventHandlers(
	advancePayment *application.AdvancePayment,
	finalizePayment *application.FinalizePayment,
) *PaymentEventHandlers {
	return &PaymentEventHandlers{
		advancePayment:  advancePayment,
		finalizePayment: finalizePayment,
	}
}

// HandlerID returns the unique identifier for this event handler
func (h *PaymentEventHandlers) HandlerID() string {
	return "payments-service-event-handler"
}

// Handle implements the events.EventHandler interface
func (h *PaymentEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.Topic {
	case events.StepExecuteTopic:
		return h.HandleStepExecute(ctx, event)
	case events.StepCompletedTopic:
		return h.HandleStepCompleted(ctx, event)
	case events.SagaCompletedTopic:
		return h.HandleSagaCompleted(ctx, event)
	case events.SagaFailedTopic, events.SagaCompensatedTopic:
		return h.HandleSagaFailed(ctx, event)
	default:
		// Unknown topic, ignore
		return nil
	}
}

// HandleStepExecute marks the payment submitted when its clearing step is
// dispatched. Other step commands belong to their executors.
func (h *PaymentEventHandlers) HandleStepExecute(ctx context.Context, event *events.Event) error {
	var cmd saga.StepCommand
	if err := event.UnmarshalPayload(&cmd); err != nil {
		return errors.Wrap(err, "failed to parse step command")
	}

	if cmd.StepName != stepClear {
		return nil
	}

	advance := &application.AdvancePaymentCommand{
		PaymentID: cmd.PaymentID,
		Action:    application.PaymentActionSubmit,
		Reference: fmt.Sprintf("CLR-%s", cmd.SagaID),
	}

	if err := h.advancePayment.Execute(ctx, advance); err != nil {
		fmt.Printf("Failed to submit payment %s to clearing: %v\n", cmd.PaymentID, err)
		return err
	}

	return nil
}

// stepResultPayload is the executor-reported detail attached to a completion
type stepResultPayload struct {
	ValidationRef string `json:"validation_ref,omitempty"`
	Confirmation  string `json:"confirmation,omitempty"`
}

// HandleStepCompleted mirrors validation and clearing completions onto the
// payment status machine
func (h *PaymentEventHandlers) HandleStepCompleted(ctx context.Context, event *events.Event) error {
	var result saga.StepResult
	if err := event.UnmarshalPayload(&result); err != nil {
		return errors.Wrap(err, "failed to parse step result")
	}

	var payload stepResultPayload
	if len(result.Result) > 0 {
		if err := json.Unmarshal(result.Result, &payload); err != nil {
			fmt.Printf("Ignoring unparseable result payload for payment %s: %v\n", result.PaymentID, err)
		}
	}

	var advance *application.AdvancePaymentCommand
	switch result.StepName {
	case stepValidate:
		advance = &application.AdvancePaymentCommand{
			PaymentID: result.PaymentID,
			Action:    application.PaymentActionValidate,
			Reference: payload.ValidationRef,
		}
	case stepClear:
		advance = &application.AdvancePaymentCommand{
			PaymentID: result.PaymentID,
			Action:    application.PaymentActionClear,
			Reference: payload.Confirmation,
		}
	default:
		return nil
	}

	if err := h.advancePayment.Execute(ctx, advance); err != nil {
		fmt.Printf("Failed to advance payment %s on step %s completion: %v\n", result.PaymentID, result.StepName, err)
		return err
	}

	return nil
}

// sagaLifecycleData mirrors the orchestrator's lifecycle payload
type sagaLifecycleData struct {
	SagaID    models.ID `json:"saga_id"`
	PaymentID models.ID `json:"payment_id"`
	Reason    string    `json:"reason,omitempty"`
}

// HandleSagaCompleted completes the payment once its saga completed
func (h *PaymentEventHandlers) HandleSagaCompleted(ctx context.Context, event *events.Event) error {
	var data sagaLifecycleData
	if err := event.UnmarshalPayload(&data); err != nil {
		return errors.Wrap(err, "failed to parse saga lifecycle data")
	}

	cmd := &application.FinalizePaymentCommand{
		PaymentID: data.PaymentID,
		Success:   true,
	}

	if err := h.finalizePayment.Execute(ctx, cmd); err != nil {
		fmt.Printf("Failed to complete payment %s: %v\n", data.PaymentID, err)
		return err
	}

	return nil
}

// HandleSagaFailed fails the payment when its saga failed or finished
// compensating. The payment fails at the first of the two events; the second
// is absorbed as a duplicate.
func (h *PaymentEventHandlers) HandleSagaFailed(ctx context.Context, event *events.Event) error {
	var data sagaLifecycleData
	if err := event.UnmarshalPayload(&data); err != nil {
		return errors.Wrap(err, "failed to parse saga lifecycle data")
	}

	reason := data.Reason
	if reason == "" {
		reason = "saga failed"
	}

	cmd := &application.FinalizePaymentCommand{
		PaymentID: data.PaymentID,
		Success:   false,
		Reason:    reason,
	}

	if err := h.finalizePayment.Execute(ctx, cmd); err != nil {
		fmt.Printf("Failed to fail payment %s: %v\n", data.PaymentID, err)
		return err
	}

	return nil
}

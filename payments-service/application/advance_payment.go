package application

import (
	"context"
	"fmt"

	"github.com/draftea/payment-hub/payments-service/domain"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/draftea/payment-hub/shared/retry"
	"github.com/pkg/errors"
)

// PaymentAction is a saga-driven payment transition
type PaymentAction string

const (
	PaymentActionValidate PaymentAction = "validate"
	PaymentActionSubmit   PaymentAction = "submit"
	PaymentActionClear    PaymentAction = "clear"
)

// AdvancePaymentCommand moves a payment forward along its lifecycle
type AdvancePaymentCommand struct {
	PaymentID models.ID     `json:"payment_id"`
	Action    PaymentAction `json:"action"`
	Actor     string        `json:"actor"`
	Reference string        `json:"reference,omitempty"`
}

// AdvancePayment applies forward transitions driven by saga progress.
// Transitions the payment already made are absorbed as stale redeliveries,
// not errors; the saga state, not the message stream, is authoritative.
type AdvancePayment struct {
	paymentRepository domain.PaymentRepository
	eventStore        events.EventStore
	eventPublisher    events.Publisher
}

// NewAdvancePayment creates a new AdvancePayment use case
func NewAdvancePayment(
	paymentRepository domain.PaymentRepository,
	eventStore events.EventStore,
	eventPublisher events.Publisher,
) *AdvancePayment {
	return &AdvancePayment{
		paymentRepository: paymentRepository,
		eventStore:        eventStore,
		eventPublisher:    eventPublisher,
	}
}

// Execute executes the advance payment use case
func (uc *AdvancePayment) Execute(ctx context.Context, cmd *AdvancePaymentCommand) error {
	if cmd.PaymentID.IsZero() {
		return errors.New("payment ID is required")
	}

	actor := cmd.Actor
	if actor == "" {
		actor = "orchestrator"
	}

	return retry.OnConflict(ctx, func(ctx context.Context) error {
		payment, err := uc.paymentRepository.FindByID(ctx, cmd.PaymentID)
		if err != nil {
			return errors.Wrap(err, "failed to load payment")
		}

		switch cmd.Action {
		case PaymentActionValidate:
			err = payment.Validate(cmd.Reference, actor)
		case PaymentActionSubmit:
			err = payment.SubmitToClearing(cmd.Reference, actor)
		case PaymentActionClear:
			err = payment.MarkCleared(cmd.Reference, actor)
		default:
			return errors.Errorf("unknown payment action %s", cmd.Action)
		}
		if err != nil {
			if errors.Is(err, faults.ErrInvalidStateTransition) {
				fmt.Printf("Discarding stale %s for payment %s in status %s\n", cmd.Action, payment.ID, payment.Status)
				return nil
			}
			return err
		}

		return uc.persistAndPublish(ctx, payment)
	})
}

func (uc *AdvancePayment) persistAndPublish(ctx context.Context, payment *domain.Payment) error {
	if err := uc.paymentRepository.Save(ctx, payment); err != nil {
		return err
	}

	// One event per version bump keeps the stream version aligned with the
	// aggregate version.
	if err := uc.eventStore.SaveEvents(ctx, payment.ID, payment.Events(), payment.Version.Value-len(payment.Events())); err != nil {
		return errors.Wrap(err, "failed to append payment events")
	}

	if err := uc.eventPublisher.Publish(ctx, payment.Events()...); err != nil {
		return errors.Wrap(err, "failed to publish payment events")
	}
	payment.ClearEvents()

	return nil
}

package application

import (
	"context"
	"fmt"

	"github.com/draftea/payment-hub/payments-service/domain"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/draftea/payment-hub/shared/retry"
	"github.com/draftea/payment-hub/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// FinalizePaymentCommand moves a payment into a terminal status
type FinalizePaymentCommand struct {
	PaymentID models.ID `json:"payment_id"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`
	Actor     string    `json:"actor"`
}

// FinalizePayment completes or fails a payment based on the saga outcome.
// Terminal payments absorb duplicate finalizations silently.
type FinalizePayment struct {
	paymentRepository domain.PaymentRepository
	eventStore        events.EventStore
	eventPublisher    events.Publisher
}

// NewFinalizePayment creates a new FinalizePayment use case
func NewFinalizePayment(
	paymentRepository domain.PaymentRepository,
	eventStore events.EventStore,
	eventPublisher events.Publisher,
) *FinalizePayment {
	return &FinalizePayment{
		paymentRepository: paymentRepository,
		eventStore:        eventStore,
		eventPublisher:    eventPublisher,
	}
}

// Execute executes the finalize payment use case
func (uc *FinalizePayment) Execute(ctx context.Context, cmd *FinalizePaymentCommand) error {
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

		if payment.Status.IsTerminal() {
			fmt.Printf("Discarding finalization for payment %s already in status %s\n", payment.ID, payment.Status)
			return nil
		}

		if cmd.Success {
			err = payment.Complete(actor)
		} else {
			err = payment.Fail(cmd.Reason, actor)
		}
		if err != nil {
			if errors.Is(err, faults.ErrInvalidStateTransition) {
				fmt.Printf("Discarding stale finalization for payment %s in status %s\n", payment.ID, payment.Status)
				return nil
			}
			return err
		}

		if err := uc.paymentRepository.Save(ctx, payment); err != nil {
			return err
		}

		if err := uc.eventStore.SaveEvents(ctx, payment.ID, payment.Events(), payment.Version.Value-len(payment.Events())); err != nil {
			return errors.Wrap(err, "failed to append payment events")
		}

		if err := uc.eventPublisher.Publish(ctx, payment.Events()...); err != nil {
			return errors.Wrap(err, "failed to publish payment events")
		}
		payment.ClearEvents()

		telemetry.RecordCounter(ctx, "payments_finalized_total", "Finalized payments", 1,
			attribute.String("tenant_id", payment.TenantID),
			attribute.String("status", string(payment.Status)),
		)

		return nil
	})
}

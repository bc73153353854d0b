package application

import (
	"context"

	"github.com/draftea/payment-hub/payments-service/domain"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/draftea/payment-hub/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// InitiatePaymentCommand represents the intent to initiate a payment
type InitiatePaymentCommand struct {
	TenantID           string            `json:"tenant_id"`
	BusinessUnit       string            `json:"business_unit,omitempty"`
	Amount             models.Money      `json:"amount"`
	SourceAccount      models.AccountRef `json:"source_account"`
	DestinationAccount models.AccountRef `json:"destination_account"`
	Reference          string            `json:"reference,omitempty"`
	PaymentType        string            `json:"payment_type"`
	Priority           domain.PaymentPriority `json:"priority,omitempty"`
	Initiator          string            `json:"initiator"`
	IdempotencyKey     string            `json:"idempotency_key"`
}

// InitiatePaymentResponse acknowledges the initiation
type InitiatePaymentResponse struct {
	PaymentID models.ID            `json:"payment_id"`
	Status    domain.PaymentStatus `json:"status"`
	Existed   bool                 `json:"existed"`
}

// InitiatePayment creates a payment and publishes the trigger the
// orchestrator starts a saga from. A redelivered command with a known
// idempotency key returns the already created payment.
type InitiatePayment struct {
	paymentRepository domain.PaymentRepository
	eventStore        events.EventStore
	eventPublisher    events.Publisher
}

// NewInitiatePayment creates a new InitiatePayment use case
func NewInitiatePayment(
	paymentRepository domain.PaymentRepository,
	eventStore events.EventStore,
	eventPublisher events.Publisher,
) *InitiatePayment {
	return &InitiatePayment{
		paymentRepository: paymentRepository,
		eventStore:        eventStore,
		eventPublisher:    eventPublisher,
	}
}

// Execute executes the initiate payment use case
func (uc *InitiatePayment) Execute(ctx context.Context, cmd *InitiatePaymentCommand) (*InitiatePaymentResponse, error) {
	if cmd.IdempotencyKey != "" {
		existing, err := uc.paymentRepository.FindByIdempotencyKey(ctx, cmd.TenantID, cmd.IdempotencyKey)
		if err == nil {
			return &InitiatePaymentResponse{PaymentID: existing.ID, Status: existing.Status, Existed: true}, nil
		}
		if !errors.Is(err, faults.ErrNotFound) {
			return nil, errors.Wrap(err, "failed to check idempotency key")
		}
	}

	payment, err := domain.CreatePayment(domain.CreatePaymentParams{
		TenantID:           cmd.TenantID,
		BusinessUnit:       cmd.BusinessUnit,
		Amount:             cmd.Amount,
		SourceAccount:      cmd.SourceAccount,
		DestinationAccount: cmd.DestinationAccount,
		Reference:          cmd.Reference,
		PaymentType:        cmd.PaymentType,
		Priority:           cmd.Priority,
		Initiator:          cmd.Initiator,
		IdempotencyKey:     cmd.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	if err := uc.paymentRepository.Save(ctx, payment); err != nil {
		if errors.Is(err, faults.ErrOptimisticLockConflict) {
			// Lost a concurrent create with the same idempotency key
			existing, findErr := uc.paymentRepository.FindByIdempotencyKey(ctx, cmd.TenantID, cmd.IdempotencyKey)
			if findErr != nil {
				return nil, errors.Wrap(findErr, "failed to load concurrently created payment")
			}
			return &InitiatePaymentResponse{PaymentID: existing.ID, Status: existing.Status, Existed: true}, nil
		}
		return nil, errors.Wrap(err, "failed to save payment")
	}

	if err := uc.eventStore.SaveEvents(ctx, payment.ID, payment.Events(), 0); err != nil {
		return nil, errors.Wrap(err, "failed to append payment events")
	}

	if err := uc.eventPublisher.Publish(ctx, payment.Events()...); err != nil {
		return nil, errors.Wrap(err, "failed to publish payment events")
	}
	payment.ClearEvents()

	telemetry.RecordCounter(ctx, "payments_initiated_total", "Initiated payments", 1,
		attribute.String("tenant_id", payment.TenantID),
		attribute.String("payment_type", payment.PaymentType),
	)

	return &InitiatePaymentResponse{PaymentID: payment.ID, Status: payment.Status}, nil
}

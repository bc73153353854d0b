package domain

import (
	"context"
	"time"

	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/models"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusInitiated           PaymentStatus = "initiated"
	PaymentStatusValidated           PaymentStatus = "validated"
	PaymentStatusSubmittedToClearing PaymentStatus = "submitted_to_clearing"
	PaymentStatusCleared             PaymentStatus = "cleared"
	PaymentStatusCompleted           PaymentStatus = "completed"
	PaymentStatusFailed              PaymentStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// PaymentPriority represents processing priority
type PaymentPriority string

const (
	PaymentPriorityNormal PaymentPriority = "normal"
	PaymentPriorityHigh   PaymentPriority = "high"
)

// Payment aggregate root. Collaborators never set Status directly; every
// transition goes through a mutating operation that asserts the required
// predecessor status and records exactly one domain event.
type Payment struct {
	ID                 models.ID
	TenantID           string
	BusinessUnit       string
	Amount             models.Money
	SourceAccount      models.AccountRef
	DestinationAccount models.AccountRef
	Reference          string
	PaymentType        string
	Priority           PaymentPriority
	Initiator          string
	IdempotencyKey     string
	ClearingReference  string
	FailureReason      string
	Status             PaymentStatus
	Timestamps         models.Timestamps
	Version            models.Version

	events []*events.Event
}

// CreatePaymentParams carries everything needed to initiate a payment
type CreatePaymentParams struct {
	TenantID           string
	BusinessUnit       string
	Amount             models.Money
	SourceAccount      models.AccountRef
	DestinationAccount models.AccountRef
	Reference          string
	PaymentType        string
	Priority           PaymentPriority
	Initiator          string
	IdempotencyKey     string
}

// CreatePayment factory method. Violated invariants are rejected with
// faults.ErrInvalidPayment before any saga can start.
func CreatePayment(params CreatePaymentParams) (*Payment, error) {
	switch {
	case params.TenantID == "":
		return nil, faults.Invalid("tenant ID is required")
	case !params.Amount.IsPositive():
		return nil, faults.Invalid("amount must be positive")
	case params.Amount.Currency == "":
		return nil, faults.Invalid("currency is required")
	case params.SourceAccount == "":
		return nil, faults.Invalid("source account is required")
	case params.DestinationAccount == "":
		return nil, faults.Invalid("destination account is required")
	case params.SourceAccount == params.DestinationAccount:
		return nil, faults.Invalid("source and destination accounts must differ")
	case params.PaymentType == "":
		return nil, faults.Invalid("payment type is required")
	case params.Initiator == "":
		return nil, faults.Invalid("initiator is required")
	case params.IdempotencyKey == "":
		return nil, faults.Invalid("idempotency key is required")
	}

	priority := params.Priority
	if priority == "" {
		priority = PaymentPriorityNormal
	}

	payment := &Payment{
		ID:                 models.GenerateUUID(),
		TenantID:           params.TenantID,
		BusinessUnit:       params.BusinessUnit,
		Amount:             params.Amount,
		SourceAccount:      params.SourceAccount,
		DestinationAccount: params.DestinationAccount,
		Reference:          params.Reference,
		PaymentType:        params.PaymentType,
		Priority:           priority,
		Initiator:          params.Initiator,
		IdempotencyKey:     params.IdempotencyKey,
		Status:             PaymentStatusInitiated,
		Timestamps:         models.NewTimestamps(),
		Version:            models.NewVersion(),
	}

	payment.recordEvent(events.NewEvent(payment.ID, events.PaymentInitiatedTopic, PaymentInitiatedData{
		PaymentID:          payment.ID,
		TenantID:           payment.TenantID,
		BusinessUnit:       payment.BusinessUnit,
		Amount:             payment.Amount,
		SourceAccount:      payment.SourceAccount,
		DestinationAccount: payment.DestinationAccount,
		Reference:          payment.Reference,
		PaymentType:        payment.PaymentType,
		Priority:           payment.Priority,
		Actor:              params.Initiator,
		At:                 time.Now(),
	}))

	return payment, nil
}

// Validate transitions INITIATED -> VALIDATED. Whether a negative validation
// outcome should instead fail the payment is decided by the caller; the bare
// transition only accepts a payment awaiting validation.
func (p *Payment) Validate(validationRef, actor string) error {
	if p.Status != PaymentStatusInitiated {
		return faults.Transition("payment can only be validated from initiated status")
	}

	p.transition(PaymentStatusValidated, actor, events.PaymentValidatedTopic, func(d *PaymentStatusChangedData) {
		d.ValidationRef = validationRef
	})
	return nil
}

// SubmitToClearing transitions VALIDATED -> SUBMITTED_TO_CLEARING
func (p *Payment) SubmitToClearing(clearingReference, actor string) error {
	if p.Status != PaymentStatusValidated {
		return faults.Transition("payment can only be submitted from validated status")
	}

	p.ClearingReference = clearingReference
	p.transition(PaymentStatusSubmittedToClearing, actor, events.PaymentSubmittedTopic, func(d *PaymentStatusChangedData) {
		d.ClearingReference = clearingReference
	})
	return nil
}

// MarkCleared transitions SUBMITTED_TO_CLEARING -> CLEARED
func (p *Payment) MarkCleared(confirmation, actor string) error {
	if p.Status != PaymentStatusSubmittedToClearing {
		return faults.Transition("payment can only be cleared after submission to clearing")
	}

	p.transition(PaymentStatusCleared, actor, events.PaymentClearedTopic, func(d *PaymentStatusChangedData) {
		d.ClearingConfirmation = confirmation
	})
	return nil
}

// Complete transitions CLEARED -> COMPLETED
func (p *Payment) Complete(actor string) error {
	if p.Status != PaymentStatusCleared {
		return faults.Transition("payment can only be completed from cleared status")
	}

	p.transition(PaymentStatusCompleted, actor, events.PaymentCompletedTopic, nil)
	return nil
}

// Fail transitions any non-terminal status to FAILED. Terminal states are
// sticky: failing a completed or already failed payment is rejected.
func (p *Payment) Fail(reason, actor string) error {
	if p.Status.IsTerminal() {
		return faults.Transition("cannot fail a payment in a terminal status")
	}

	p.FailureReason = reason
	p.transition(PaymentStatusFailed, actor, events.PaymentFailedTopic, func(d *PaymentStatusChangedData) {
		d.Reason = reason
	})
	return nil
}

func (p *Payment) transition(to PaymentStatus, actor string, topic events.Topic, enrich func(*PaymentStatusChangedData)) {
	from := p.Status
	p.Status = to
	p.Timestamps = p.Timestamps.Update()
	p.Version = p.Version.Update()

	data := PaymentStatusChangedData{
		PaymentID: p.ID,
		TenantID:  p.TenantID,
		OldStatus: from,
		NewStatus: to,
		Actor:     actor,
		Sequence:  p.Version.Value,
		At:        time.Now(),
	}
	if enrich != nil {
		enrich(&data)
	}

	p.recordEvent(events.NewEvent(p.ID, topic, data))
}

// Events returns recorded domain events
func (p *Payment) Events() []*events.Event {
	return p.events
}

// ClearEvents clears recorded domain events
func (p *Payment) ClearEvents() {
	p.events = make([]*events.Event, 0)
}

func (p *Payment) recordEvent(event *events.Event) {
	p.events = append(p.events, event)
}

// Event data structures

type PaymentInitiatedData struct {
	PaymentID          models.ID         `json:"payment_id"`
	TenantID           string            `json:"tenant_id"`
	BusinessUnit       string            `json:"business_unit,omitempty"`
	Amount             models.Money      `json:"amount"`
	SourceAccount      models.AccountRef `json:"source_account"`
	DestinationAccount models.AccountRef `json:"destination_account"`
	Reference          string            `json:"reference,omitempty"`
	PaymentType        string            `json:"payment_type"`
	Priority           PaymentPriority   `json:"priority"`
	Actor              string            `json:"actor"`
	At                 time.Time         `json:"at"`
}

type PaymentStatusChangedData struct {
	PaymentID            models.ID     `json:"payment_id"`
	TenantID             string        `json:"tenant_id"`
	OldStatus            PaymentStatus `json:"old_status"`
	NewStatus            PaymentStatus `json:"new_status"`
	Actor                string        `json:"actor"`
	Sequence             int           `json:"sequence"`
	At                   time.Time     `json:"at"`
	ValidationRef        string        `json:"validation_ref,omitempty"`
	ClearingReference    string        `json:"clearing_reference,omitempty"`
	ClearingConfirmation string        `json:"clearing_confirmation,omitempty"`
	Reason               string        `json:"reason,omitempty"`
}

// PaymentRepository interface
type PaymentRepository interface {
	Save(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, id models.ID) (*Payment, error)
	FindByIdempotencyKey(ctx context.Context, tenantID, idempotencyKey string) (*Payment, error)
}

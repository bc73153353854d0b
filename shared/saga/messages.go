package saga

import (
	"encoding/json"

	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/pkg/errors"
)

// Message contracts between the orchestrator and step executors. Executors
// must be idempotent per (saga_id, step_name) regardless of attempt count and
// must emit exactly one terminal result per dispatched attempt.

// StepCommand asks an executor to run a step or its compensation
type StepCommand struct {
	SagaID        models.ID       `json:"saga_id"`
	StepName      string          `json:"step_name"`
	PaymentID     models.ID       `json:"payment_id"`
	TenantID      string          `json:"tenant_id"`
	BusinessUnit  string          `json:"business_unit,omitempty"`
	CorrelationID models.ID       `json:"correlation_id"`
	Attempt       int             `json:"attempt"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// StepResult reports the terminal outcome of a dispatched attempt
type StepResult struct {
	SagaID       models.ID       `json:"saga_id"`
	StepName     string          `json:"step_name"`
	PaymentID    models.ID       `json:"payment_id"`
	Attempt      int             `json:"attempt"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Failure returns the executor-reported failure classified under kind,
// falling back to the error code when no message was supplied.
func (r *StepResult) Failure(kind error) error {
	msg := r.ErrorMessage
	if msg == "" {
		msg = r.ErrorCode
	}
	if msg == "" {
		return kind
	}
	return errors.Wrap(kind, msg)
}

// StepResultData carries the step outcome forwarded to interested services
// (e.g. the payments service reacting to validation or clearing results).
type StepResultData struct {
	SagaID    models.ID       `json:"saga_id"`
	StepName  string          `json:"step_name"`
	PaymentID models.ID       `json:"payment_id"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// NewCommandEvent wraps a step command into the event envelope. The saga_id
// metadata doubles as the ordering key on the transport.
func NewCommandEvent(topic events.Topic, cmd *StepCommand) *events.Event {
	return events.NewEvent(cmd.SagaID, topic, cmd).
		WithCorrelationID(cmd.CorrelationID).
		WithMetadata(events.MetadataSagaID, cmd.SagaID.String()).
		WithMetadata(events.MetadataStepName, cmd.StepName).
		WithMetadata(events.MetadataTenantID, cmd.TenantID)
}

// NewResultEvent wraps a step result into the event envelope
func NewResultEvent(topic events.Topic, res *StepResult) *events.Event {
	return events.NewEvent(res.SagaID, topic, res).
		WithMetadata(events.MetadataSagaID, res.SagaID.String()).
		WithMetadata(events.MetadataStepName, res.StepName)
}

package domain

import (
	"context"
	"time"

	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/pkg/errors"
)

// SagaStatus represents the status of a saga instance
type SagaStatus string

const (
	SagaStatusStarted      SagaStatus = "started"
	SagaStatusRunning      SagaStatus = "running"
	SagaStatusCompleted    SagaStatus = "completed"
	SagaStatusFailed       SagaStatus = "failed"
	SagaStatusCompensating SagaStatus = "compensating"
	SagaStatusCompensated  SagaStatus = "compensated"
)

// IsTerminal reports whether the saga reached a final status
func (s SagaStatus) IsTerminal() bool {
	return s == SagaStatusCompleted || s == SagaStatusCompensated
}

// StepStatus represents the status of a single saga step
type StepStatus string

const (
	StepStatusPending      StepStatus = "pending"
	StepStatusRunning      StepStatus = "running"
	StepStatusCompleted    StepStatus = "completed"
	StepStatusFailed       StepStatus = "failed"
	StepStatusCompensating StepStatus = "compensating"
	StepStatusCompensated  StepStatus = "compensated"
)

// ErrStaleEvent signals an event inconsistent with the recorded step status,
// e.g. a failure reported for a step already completed, or a redelivered
// completion. The caller discards it with a warning; it never rewinds state.
var ErrStaleEvent = errors.New("event inconsistent with recorded step status")

// SagaStep is one step of a saga instance. Budgets and timeout are snapshots
// of the definition taken at saga creation, so a persisted saga is
// self-contained.
type SagaStep struct {
	Name                    string     `json:"name"`
	Command                 string     `json:"command"`
	Compensation            string     `json:"compensation,omitempty"`
	Status                  StepStatus `json:"status"`
	Attempts                int        `json:"attempts"`
	CompensationAttempts    int        `json:"compensation_attempts"`
	MaxAttempts             int        `json:"max_attempts"`
	MaxCompensationAttempts int        `json:"max_compensation_attempts"`
	TimeoutSeconds          int        `json:"timeout_seconds"`
	Backoff                 BackoffPolicy `json:"backoff"`
	LastError               string     `json:"last_error,omitempty"`
	StartedAt               *time.Time `json:"started_at,omitempty"`
	CompletedAt             *time.Time `json:"completed_at,omitempty"`
}

// HasCompensation reports whether a compensation command is defined
func (s *SagaStep) HasCompensation() bool {
	return s.Compensation != ""
}

// Saga aggregate root: the persisted state machine driving one payment's
// multi-step flow. Mutated exclusively by the orchestrator; every transition
// is load -> decide -> save against the store.
type Saga struct {
	ID            models.ID
	SagaType      string
	PaymentID     models.ID
	TenantID      string
	BusinessUnit  string
	CorrelationID models.ID
	Status        SagaStatus
	Steps         []*SagaStep
	Stuck         bool
	LastError     string
	Timestamps    models.Timestamps
	Version       models.Version
	// StreamVersion counts lifecycle events recorded so far. Lifecycle events
	// are sparser than version bumps, so the audit stream keeps its own
	// counter for the expected-version check on append.
	StreamVersion int

	events []*events.Event
}

// NewSaga creates a saga in STARTED from an immutable definition snapshot
func NewSaga(def *SagaDefinition, paymentID models.ID, tenantID, businessUnit string, correlationID models.ID) *Saga {
	steps := make([]*SagaStep, len(def.Steps))
	for i, sd := range def.Steps {
		steps[i] = &SagaStep{
			Name:                    sd.Name,
			Command:                 sd.Command,
			Compensation:            sd.Compensation,
			Status:                  StepStatusPending,
			MaxAttempts:             sd.MaxAttempts,
			MaxCompensationAttempts: sd.MaxCompensationAttempts,
			TimeoutSeconds:          int(sd.Timeout / time.Second),
			Backoff:                 sd.Backoff,
		}
	}

	saga := &Saga{
		ID:            models.GenerateUUID(),
		SagaType:      def.SagaType,
		PaymentID:     paymentID,
		TenantID:      tenantID,
		BusinessUnit:  businessUnit,
		CorrelationID: correlationID,
		Status:        SagaStatusStarted,
		Steps:         steps,
		Timestamps:    models.NewTimestamps(),
		Version:       models.NewVersion(),
	}

	saga.recordLifecycleEvent(events.SagaStartedTopic, "")
	return saga
}

// Begin transitions STARTED -> RUNNING and arms the first step
func (s *Saga) Begin() (*SagaStep, error) {
	if s.Status != SagaStatusStarted {
		return nil, faults.Transition("saga can only begin from started status")
	}

	s.Status = SagaStatusRunning
	first := s.Steps[0]
	s.armStep(first)
	// Begin runs before the saga is first persisted. The version stays at 1
	// so the store takes the insert path for the shape StartSaga saves.
	s.Timestamps = s.Timestamps.Update()

	return first, nil
}

// Step returns the step with the given name, or nil
func (s *Saga) Step(name string) *SagaStep {
	for _, step := range s.Steps {
		if step.Name == name {
			return step
		}
	}
	return nil
}

// RunningStep returns the step currently RUNNING, or nil
func (s *Saga) RunningStep() *SagaStep {
	for _, step := range s.Steps {
		if step.Status == StepStatusRunning {
			return step
		}
	}
	return nil
}

// CompensatingStep returns the step currently COMPENSATING, or nil
func (s *Saga) CompensatingStep() *SagaStep {
	for _, step := range s.Steps {
		if step.Status == StepStatusCompensating {
			return step
		}
	}
	return nil
}

// CompleteStep records a step completion and arms the next step. It returns
// the next step to dispatch, or nil when the saga just completed.
// Redelivered completions and completions for steps not currently running
// are rejected with ErrStaleEvent.
func (s *Saga) CompleteStep(name string) (*SagaStep, error) {
	step := s.Step(name)
	if step == nil {
		return nil, errors.Errorf("unknown step %s", name)
	}
	if step.Status != StepStatusRunning || s.Status != SagaStatusRunning {
		return nil, errors.Wrapf(ErrStaleEvent, "completion for step %s in status %s", name, step.Status)
	}

	now := time.Now()
	step.Status = StepStatusCompleted
	step.CompletedAt = &now
	step.LastError = ""

	next := s.nextPendingStep()
	if next != nil {
		s.armStep(next)
	} else {
		s.Status = SagaStatusCompleted
		s.recordLifecycleEvent(events.SagaCompletedTopic, "")
	}

	s.touch()
	return next, nil
}

// FailureOutcome is the decision taken on a step failure
type FailureOutcome string

const (
	// FailureOutcomeRetry re-dispatches the step within its budget
	FailureOutcomeRetry FailureOutcome = "retry"
	// FailureOutcomeCompensate exhausted the budget and moved the saga into
	// compensation; CompensatingStep tells what to dispatch (nil when the
	// saga went straight to COMPENSATED because nothing needs undoing)
	FailureOutcomeCompensate FailureOutcome = "compensate"
)

// FailStep records a step failure. Within the attempt budget the step stays
// RUNNING and the attempt counter advances; on exhaustion the saga fails and
// compensation begins in reverse completion order.
func (s *Saga) FailStep(name, cause string) (FailureOutcome, error) {
	step := s.Step(name)
	if step == nil {
		return "", errors.Errorf("unknown step %s", name)
	}
	if step.Status != StepStatusRunning || s.Status != SagaStatusRunning {
		return "", errors.Wrapf(ErrStaleEvent, "failure for step %s in status %s", name, step.Status)
	}

	step.LastError = cause

	if step.Attempts < step.MaxAttempts {
		step.Attempts++
		// The retry is dispatched after the backoff delay, so the timeout
		// window opens at dispatch time, not at the failure that scheduled it.
		restart := time.Now().Add(step.Backoff.Delay(step.Attempts))
		step.StartedAt = &restart
		s.touch()
		return FailureOutcomeRetry, nil
	}

	step.Status = StepStatusFailed
	s.LastError = cause
	s.Status = SagaStatusFailed
	s.recordLifecycleEvent(events.SagaFailedTopic, cause)

	s.enterCompensation()
	s.touch()
	return FailureOutcomeCompensate, nil
}

// CompleteCompensation records a finished compensation and arms the next
// earlier completed step, skipping steps without a compensation. Returns the
// next step to compensate, or nil when the saga just reached COMPENSATED.
func (s *Saga) CompleteCompensation(name string) (*SagaStep, error) {
	step := s.Step(name)
	if step == nil {
		return nil, errors.Errorf("unknown step %s", name)
	}
	if step.Status != StepStatusCompensating || s.Status != SagaStatusCompensating {
		return nil, errors.Wrapf(ErrStaleEvent, "compensation completion for step %s in status %s", name, step.Status)
	}

	step.Status = StepStatusCompensated
	step.LastError = ""

	next := s.armNextCompensation()
	s.touch()
	return next, nil
}

// CompensationOutcome is the decision taken on a compensation failure
type CompensationOutcome string

const (
	CompensationOutcomeRetry CompensationOutcome = "retry"
	// CompensationOutcomeStuck marks the saga operator-visible stuck: some
	// compensations are not safely retriable without bound
	CompensationOutcomeStuck CompensationOutcome = "stuck"
)

// FailCompensation records a failed compensation attempt
func (s *Saga) FailCompensation(name, cause string) (CompensationOutcome, error) {
	step := s.Step(name)
	if step == nil {
		return "", errors.Errorf("unknown step %s", name)
	}
	if step.Status != StepStatusCompensating || s.Status != SagaStatusCompensating {
		return "", errors.Wrapf(ErrStaleEvent, "compensation failure for step %s in status %s", name, step.Status)
	}

	step.LastError = cause

	if step.CompensationAttempts < step.MaxCompensationAttempts {
		step.CompensationAttempts++
		// Same dispatch-time deadline as a step retry.
		restart := time.Now().Add(step.Backoff.Delay(step.CompensationAttempts))
		step.StartedAt = &restart
		s.touch()
		return CompensationOutcomeRetry, nil
	}

	s.Stuck = true
	s.LastError = cause
	s.recordLifecycleEvent(events.SagaCompensationStuckTopic, cause)
	s.touch()
	return CompensationOutcomeStuck, nil
}

// ForceCompensate pushes a RUNNING or FAILED saga into compensation,
// bypassing the current step's remaining retry budget. Used for operator
// cancellation; the running step is recorded FAILED, never compensated.
func (s *Saga) ForceCompensate(reason string) error {
	switch s.Status {
	case SagaStatusRunning:
		step := s.RunningStep()
		if step != nil {
			step.Status = StepStatusFailed
			step.LastError = reason
		}
		s.LastError = reason
		s.Status = SagaStatusFailed
		s.recordLifecycleEvent(events.SagaFailedTopic, reason)
		s.enterCompensation()
	case SagaStatusFailed:
		s.enterCompensation()
	default:
		return faults.Transition("only running or failed sagas can be compensated")
	}

	s.touch()
	return nil
}

// StepDeadline returns when the in-flight step (running or compensating)
// times out, or nil when nothing is in flight. The timeout sweep queries on
// the persisted deadline.
func (s *Saga) StepDeadline() *time.Time {
	var step *SagaStep
	switch s.Status {
	case SagaStatusRunning:
		step = s.RunningStep()
	case SagaStatusCompensating:
		step = s.CompensatingStep()
	}

	if step == nil || step.StartedAt == nil || step.TimeoutSeconds <= 0 {
		return nil
	}

	deadline := step.StartedAt.Add(time.Duration(step.TimeoutSeconds) * time.Second)
	return &deadline
}

func (s *Saga) armStep(step *SagaStep) {
	now := time.Now()
	step.Status = StepStatusRunning
	step.Attempts = 1
	step.StartedAt = &now
}

func (s *Saga) nextPendingStep() *SagaStep {
	for _, step := range s.Steps {
		if step.Status == StepStatusPending {
			return step
		}
	}
	return nil
}

// enterCompensation moves the saga into COMPENSATING and arms the most
// recently completed compensatable step; when none exists the saga is
// COMPENSATED immediately.
func (s *Saga) enterCompensation() {
	s.Status = SagaStatusCompensating
	s.armNextCompensation()
}

// armNextCompensation walks completed steps in reverse declared order (steps
// run strictly sequentially, so declared order is completion order), arming
// the next one that defines a compensation. Completed steps without a
// compensation stay COMPLETED and are skipped.
func (s *Saga) armNextCompensation() *SagaStep {
	for i := len(s.Steps) - 1; i >= 0; i-- {
		step := s.Steps[i]
		if step.Status != StepStatusCompleted {
			continue
		}
		if !step.HasCompensation() {
			continue
		}

		now := time.Now()
		step.Status = StepStatusCompensating
		step.CompensationAttempts = 1
		step.StartedAt = &now
		return step
	}

	s.Status = SagaStatusCompensated
	s.recordLifecycleEvent(events.SagaCompensatedTopic, s.LastError)
	return nil
}

func (s *Saga) touch() {
	s.Timestamps = s.Timestamps.Update()
	s.Version = s.Version.Update()
}

// Events returns recorded lifecycle events
func (s *Saga) Events() []*events.Event {
	return s.events
}

// ClearEvents clears recorded lifecycle events
func (s *Saga) ClearEvents() {
	s.events = make([]*events.Event, 0)
}

func (s *Saga) recordLifecycleEvent(topic events.Topic, reason string) {
	s.StreamVersion++
	s.events = append(s.events, events.NewEvent(s.ID, topic, SagaLifecycleData{
		SagaID:    s.ID,
		SagaType:  s.SagaType,
		PaymentID: s.PaymentID,
		TenantID:  s.TenantID,
		Status:    s.Status,
		Reason:    reason,
		At:        time.Now(),
	}).WithCorrelationID(s.CorrelationID).
		WithMetadata(events.MetadataSagaID, s.ID.String()).
		WithMetadata(events.MetadataTenantID, s.TenantID))
}

// SagaLifecycleData is the payload of saga lifecycle events
type SagaLifecycleData struct {
	SagaID    models.ID  `json:"saga_id"`
	SagaType  string     `json:"saga_type"`
	PaymentID models.ID  `json:"payment_id"`
	TenantID  string     `json:"tenant_id"`
	Status    SagaStatus `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	At        time.Time  `json:"at"`
}

// SagaStore is the durable keyed storage for saga instances, the sole source
// of truth for orchestration state.
type SagaStore interface {
	// Save inserts a new saga or updates an existing one, failing with
	// faults.ErrOptimisticLockConflict when the stored version moved.
	Save(ctx context.Context, saga *Saga) error
	// FindByID returns a saga or faults.ErrNotFound
	FindByID(ctx context.Context, id models.ID) (*Saga, error)
	// FindByPaymentAndType returns the saga for a (payment, saga type) pair
	// or faults.ErrNotFound
	FindByPaymentAndType(ctx context.Context, paymentID models.ID, sagaType string) (*Saga, error)
	// FindExpired returns sagas whose in-flight step passed its deadline
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*Saga, error)
}

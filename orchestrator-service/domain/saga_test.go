package domain

import (
	"testing"
	"time"

	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transferDefinition() *SagaDefinition {
	return &SagaDefinition{
		SagaType:    "standard_transfer",
		TenantID:    "acme",
		PaymentType: "bank_transfer",
		Steps: []StepDefinition{
			{
				Name:                    "validate",
				Command:                 "payment.validate",
				Compensation:            "payment.validate.undo",
				Timeout:                 30 * time.Second,
				MaxAttempts:             3,
				MaxCompensationAttempts: 2,
				Backoff:                 DefaultBackoffPolicy,
			},
			{
				Name:                    "clear",
				Command:                 "payment.clear",
				Compensation:            "payment.clear.undo",
				Timeout:                 60 * time.Second,
				MaxAttempts:             3,
				MaxCompensationAttempts: 2,
				Backoff:                 DefaultBackoffPolicy,
			},
			{
				Name:        "settle",
				Command:     "payment.settle",
				Timeout:     60 * time.Second,
				MaxAttempts: 3,
				Backoff:     DefaultBackoffPolicy,
			},
		},
	}
}

func startedSaga(t *testing.T) *Saga {
	saga := NewSaga(transferDefinition(), models.GenerateUUID(), "acme", "treasury", models.GenerateUUID())
	require.Equal(t, SagaStatusStarted, saga.Status)
	saga.ClearEvents()
	return saga
}

func runningSaga(t *testing.T) *Saga {
	saga := startedSaga(t)
	first, err := saga.Begin()
	require.NoError(t, err)
	require.Equal(t, "validate", first.Name)
	return saga
}

func TestNewSaga(t *testing.T) {
	paymentID := models.GenerateUUID()
	saga := NewSaga(transferDefinition(), paymentID, "acme", "treasury", models.GenerateUUID())

	assert.Equal(t, SagaStatusStarted, saga.Status)
	assert.Equal(t, paymentID, saga.PaymentID)
	assert.Equal(t, 1, saga.Version.Value)
	require.Len(t, saga.Steps, 3)
	for _, step := range saga.Steps {
		assert.Equal(t, StepStatusPending, step.Status)
		assert.Zero(t, step.Attempts)
	}
	assert.Equal(t, 30, saga.Steps[0].TimeoutSeconds)

	require.Len(t, saga.Events(), 1)
	assert.Equal(t, events.Topic(events.SagaStartedTopic), saga.Events()[0].Topic)
	assert.Equal(t, 1, saga.StreamVersion)
}

func TestSaga_Begin(t *testing.T) {
	saga := startedSaga(t)

	first, err := saga.Begin()
	require.NoError(t, err)

	assert.Equal(t, SagaStatusRunning, saga.Status)
	assert.Equal(t, "validate", first.Name)
	assert.Equal(t, StepStatusRunning, first.Status)
	assert.Equal(t, 1, first.Attempts)
	assert.NotNil(t, first.StartedAt)
	// A begun saga has never been saved; it must keep the fresh version so
	// the store inserts it instead of updating a row that does not exist.
	assert.Equal(t, 1, saga.Version.Value)

	_, err = saga.Begin()
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrInvalidStateTransition))
}

func TestSaga_CompleteStep(t *testing.T) {
	t.Run("advances through all steps to completed", func(t *testing.T) {
		saga := runningSaga(t)

		next, err := saga.CompleteStep("validate")
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, "clear", next.Name)
		assert.Equal(t, StepStatusRunning, next.Status)
		assert.Equal(t, SagaStatusRunning, saga.Status)

		next, err = saga.CompleteStep("clear")
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, "settle", next.Name)

		next, err = saga.CompleteStep("settle")
		require.NoError(t, err)
		assert.Nil(t, next)
		assert.Equal(t, SagaStatusCompleted, saga.Status)

		require.Len(t, saga.Events(), 1)
		assert.Equal(t, events.Topic(events.SagaCompletedTopic), saga.Events()[0].Topic)
	})

	t.Run("redelivered completion is stale", func(t *testing.T) {
		saga := runningSaga(t)

		_, err := saga.CompleteStep("validate")
		require.NoError(t, err)
		versionBefore := saga.Version.Value

		_, err = saga.CompleteStep("validate")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStaleEvent))
		assert.Equal(t, versionBefore, saga.Version.Value)
	})

	t.Run("completion for step never started is stale", func(t *testing.T) {
		saga := runningSaga(t)

		_, err := saga.CompleteStep("settle")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStaleEvent))
	})

	t.Run("unknown step", func(t *testing.T) {
		saga := runningSaga(t)

		_, err := saga.CompleteStep("refund")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown step")
	})
}

func TestSaga_FailStep(t *testing.T) {
	t.Run("retries within the attempt budget", func(t *testing.T) {
		saga := runningSaga(t)

		outcome, err := saga.FailStep("validate", "executor timeout")
		require.NoError(t, err)
		assert.Equal(t, FailureOutcomeRetry, outcome)

		step := saga.Step("validate")
		assert.Equal(t, StepStatusRunning, step.Status)
		assert.Equal(t, 2, step.Attempts)
		assert.Equal(t, "executor timeout", step.LastError)
		assert.Equal(t, SagaStatusRunning, saga.Status)
		assert.Empty(t, saga.Events())
	})

	t.Run("exhaustion enters compensation in reverse order", func(t *testing.T) {
		saga := runningSaga(t)
		_, err := saga.CompleteStep("validate")
		require.NoError(t, err)
		_, err = saga.CompleteStep("clear")
		require.NoError(t, err)
		saga.ClearEvents()

		var outcome FailureOutcome
		for i := 0; i < 3; i++ {
			outcome, err = saga.FailStep("settle", "clearing rejected")
			require.NoError(t, err)
		}
		assert.Equal(t, FailureOutcomeCompensate, outcome)

		assert.Equal(t, SagaStatusCompensating, saga.Status)
		assert.Equal(t, StepStatusFailed, saga.Step("settle").Status)
		assert.Equal(t, "clearing rejected", saga.LastError)

		// clear completed after validate, so it compensates first
		comp := saga.CompensatingStep()
		require.NotNil(t, comp)
		assert.Equal(t, "clear", comp.Name)
		assert.Equal(t, 1, comp.CompensationAttempts)

		require.Len(t, saga.Events(), 1)
		assert.Equal(t, events.Topic(events.SagaFailedTopic), saga.Events()[0].Topic)
	})

	t.Run("first step exhaustion with nothing to undo goes straight to compensated", func(t *testing.T) {
		saga := runningSaga(t)
		saga.ClearEvents()

		var outcome FailureOutcome
		var err error
		for i := 0; i < 3; i++ {
			outcome, err = saga.FailStep("validate", "account blocked")
			require.NoError(t, err)
		}
		assert.Equal(t, FailureOutcomeCompensate, outcome)
		assert.Equal(t, SagaStatusCompensated, saga.Status)
		assert.Nil(t, saga.CompensatingStep())

		require.Len(t, saga.Events(), 2)
		assert.Equal(t, events.Topic(events.SagaFailedTopic), saga.Events()[0].Topic)
		assert.Equal(t, events.Topic(events.SagaCompensatedTopic), saga.Events()[1].Topic)
	})

	t.Run("retry deadline opens at dispatch time, after the backoff delay", func(t *testing.T) {
		saga := runningSaga(t)
		before := time.Now()

		outcome, err := saga.FailStep("validate", "executor timeout")
		require.NoError(t, err)
		require.Equal(t, FailureOutcomeRetry, outcome)

		step := saga.Step("validate")
		deadline := saga.StepDeadline()
		require.NotNil(t, deadline)

		// The retry command is published only after the backoff delay; the
		// executor must still get the full timeout window after that.
		earliest := before.Add(step.Backoff.Delay(step.Attempts) + time.Duration(step.TimeoutSeconds)*time.Second)
		assert.False(t, deadline.Before(earliest))
	})

	t.Run("failure for completed step is stale", func(t *testing.T) {
		saga := runningSaga(t)
		_, err := saga.CompleteStep("validate")
		require.NoError(t, err)

		_, err = saga.FailStep("validate", "late failure")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStaleEvent))
	})
}

func compensatingSaga(t *testing.T) *Saga {
	saga := runningSaga(t)
	_, err := saga.CompleteStep("validate")
	require.NoError(t, err)
	_, err = saga.CompleteStep("clear")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = saga.FailStep("settle", "clearing rejected")
		require.NoError(t, err)
	}
	require.Equal(t, SagaStatusCompensating, saga.Status)
	saga.ClearEvents()
	return saga
}

func TestSaga_CompleteCompensation(t *testing.T) {
	t.Run("walks compensations in reverse and reaches compensated", func(t *testing.T) {
		saga := compensatingSaga(t)

		next, err := saga.CompleteCompensation("clear")
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, "validate", next.Name)
		assert.Equal(t, StepStatusCompensating, next.Status)
		assert.Equal(t, StepStatusCompensated, saga.Step("clear").Status)

		next, err = saga.CompleteCompensation("validate")
		require.NoError(t, err)
		assert.Nil(t, next)
		assert.Equal(t, SagaStatusCompensated, saga.Status)

		require.Len(t, saga.Events(), 1)
		assert.Equal(t, events.Topic(events.SagaCompensatedTopic), saga.Events()[0].Topic)
	})

	t.Run("redelivered compensation completion is stale", func(t *testing.T) {
		saga := compensatingSaga(t)

		_, err := saga.CompleteCompensation("clear")
		require.NoError(t, err)

		_, err = saga.CompleteCompensation("clear")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStaleEvent))
	})
}

func TestSaga_FailCompensation(t *testing.T) {
	t.Run("retries within the compensation budget", func(t *testing.T) {
		saga := compensatingSaga(t)

		outcome, err := saga.FailCompensation("clear", "reversal rejected")
		require.NoError(t, err)
		assert.Equal(t, CompensationOutcomeRetry, outcome)

		step := saga.Step("clear")
		assert.Equal(t, StepStatusCompensating, step.Status)
		assert.Equal(t, 2, step.CompensationAttempts)
		assert.False(t, saga.Stuck)
	})

	t.Run("exhaustion marks the saga stuck and keeps it compensating", func(t *testing.T) {
		saga := compensatingSaga(t)

		var outcome CompensationOutcome
		var err error
		for i := 0; i < 2; i++ {
			outcome, err = saga.FailCompensation("clear", "reversal rejected")
			require.NoError(t, err)
		}
		assert.Equal(t, CompensationOutcomeStuck, outcome)
		assert.True(t, saga.Stuck)
		assert.Equal(t, SagaStatusCompensating, saga.Status)
		assert.Equal(t, StepStatusCompensating, saga.Step("clear").Status)

		require.Len(t, saga.Events(), 1)
		assert.Equal(t, events.Topic(events.SagaCompensationStuckTopic), saga.Events()[0].Topic)
	})
}

func TestSaga_ForceCompensate(t *testing.T) {
	t.Run("cancels a running saga", func(t *testing.T) {
		saga := runningSaga(t)
		_, err := saga.CompleteStep("validate")
		require.NoError(t, err)
		saga.ClearEvents()

		require.NoError(t, saga.ForceCompensate("cancelled by operator"))

		assert.Equal(t, SagaStatusCompensating, saga.Status)
		assert.Equal(t, StepStatusFailed, saga.Step("clear").Status)

		comp := saga.CompensatingStep()
		require.NotNil(t, comp)
		assert.Equal(t, "validate", comp.Name)

		require.Len(t, saga.Events(), 1)
		assert.Equal(t, events.Topic(events.SagaFailedTopic), saga.Events()[0].Topic)
	})

	t.Run("rejected on terminal saga", func(t *testing.T) {
		saga := runningSaga(t)
		_, err := saga.CompleteStep("validate")
		require.NoError(t, err)
		_, err = saga.CompleteStep("clear")
		require.NoError(t, err)
		_, err = saga.CompleteStep("settle")
		require.NoError(t, err)
		require.Equal(t, SagaStatusCompleted, saga.Status)

		err = saga.ForceCompensate("too late")
		require.Error(t, err)
		assert.True(t, errors.Is(err, faults.ErrInvalidStateTransition))
	})
}

func TestSaga_StepDeadline(t *testing.T) {
	saga := startedSaga(t)
	assert.Nil(t, saga.StepDeadline(), "no deadline before the saga begins")

	first, err := saga.Begin()
	require.NoError(t, err)

	deadline := saga.StepDeadline()
	require.NotNil(t, deadline)
	assert.Equal(t, first.StartedAt.Add(30*time.Second), *deadline)

	_, err = saga.CompleteStep("validate")
	require.NoError(t, err)
	deadline = saga.StepDeadline()
	require.NotNil(t, deadline)
	assert.Equal(t, saga.Step("clear").StartedAt.Add(60*time.Second), *deadline)
}

func TestBackoffPolicy_Delay(t *testing.T) {
	policy := BackoffPolicy{
		InitialInterval: 2 * time.Second,
		Multiplier:      2.0,
		MaxInterval:     10 * time.Second,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 0},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{9, 10 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, policy.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

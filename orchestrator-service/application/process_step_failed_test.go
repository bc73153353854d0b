package application

import (
	"context"
	"testing"

	"github.com/draftea/payment-hub/orchestrator-service/domain"
	"github.com/draftea/payment-hub/orchestrator-service/mocks"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/draftea/payment-hub/shared/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// exhaustAttempts burns all but the last attempt of the running step
func exhaustAttempts(t *testing.T, instance *domain.Saga, name string) {
	step := instance.Step(name)
	for step.Attempts < step.MaxAttempts {
		outcome, err := instance.FailStep(name, "executor timeout")
		require.NoError(t, err)
		require.Equal(t, domain.FailureOutcomeRetry, outcome)
	}
	instance.ClearEvents()
}

func TestProcessStepFailed_Execute(t *testing.T) {
	tests := []struct {
		name        string
		stepName    string
		setupMocks  func(*mocks.MockSagaStore) *domain.Saga
		assertState func(*testing.T, *domain.Saga, []*events.Event)
	}{
		{
			name:     "failure within the budget redispatches the step",
			stepName: "validate",
			setupMocks: func(store *mocks.MockSagaStore) *domain.Saga {
				instance := newRunningSaga(t)
				store.EXPECT().FindByID(mock.Anything, instance.ID).Return(instance, nil)
				store.EXPECT().Save(mock.Anything, instance).Return(nil)
				return instance
			},
			assertState: func(t *testing.T, instance *domain.Saga, published []*events.Event) {
				assert.Equal(t, domain.SagaStatusRunning, instance.Status)
				assert.Equal(t, 2, instance.Step("validate").Attempts)
				assert.Contains(t, instance.Step("validate").LastError, faults.ErrStepExecutionFailed.Error())

				require.Len(t, published, 1)
				assert.Equal(t, events.Topic(events.StepExecuteTopic), published[0].Topic)
				var cmd saga.StepCommand
				require.NoError(t, published[0].UnmarshalPayload(&cmd))
				assert.Equal(t, 2, cmd.Attempt)
			},
		},
		{
			name:     "exhausted budget turns the saga into compensation",
			stepName: "settle",
			setupMocks: func(store *mocks.MockSagaStore) *domain.Saga {
				instance := newRunningSaga(t, "validate", "clear")
				exhaustAttempts(t, instance, "settle")
				store.EXPECT().FindByID(mock.Anything, instance.ID).Return(instance, nil)
				store.EXPECT().Save(mock.Anything, instance).Return(nil)
				return instance
			},
			assertState: func(t *testing.T, instance *domain.Saga, published []*events.Event) {
				assert.Equal(t, domain.SagaStatusCompensating, instance.Status)
				assert.Equal(t, domain.StepStatusCompensating, instance.Step("clear").Status)

				require.Len(t, published, 2)
				assert.Equal(t, events.Topic(events.SagaFailedTopic), published[0].Topic)
				assert.Equal(t, events.Topic(events.StepCompensateTopic), published[1].Topic)
				assert.Equal(t, "payment.clear.undo", published[1].Metadata["command"])
			},
		},
		{
			name:     "exhausted first step with nothing to undo dispatches no compensation",
			stepName: "validate",
			setupMocks: func(store *mocks.MockSagaStore) *domain.Saga {
				instance := newRunningSaga(t)
				exhaustAttempts(t, instance, "validate")
				store.EXPECT().FindByID(mock.Anything, instance.ID).Return(instance, nil)
				store.EXPECT().Save(mock.Anything, instance).Return(nil)
				return instance
			},
			assertState: func(t *testing.T, instance *domain.Saga, published []*events.Event) {
				assert.Equal(t, domain.SagaStatusCompensated, instance.Status)

				require.Len(t, published, 2)
				assert.Equal(t, events.Topic(events.SagaFailedTopic), published[0].Topic)
				assert.Equal(t, events.Topic(events.SagaCompensatedTopic), published[1].Topic)
			},
		},
		{
			name:     "failure for a completed step is absorbed",
			stepName: "validate",
			setupMocks: func(store *mocks.MockSagaStore) *domain.Saga {
				instance := newRunningSaga(t, "validate")
				store.EXPECT().FindByID(mock.Anything, instance.ID).Return(instance, nil)
				return instance
			},
			assertState: func(t *testing.T, instance *domain.Saga, published []*events.Event) {
				assert.Equal(t, domain.StepStatusCompleted, instance.Step("validate").Status)
				assert.Empty(t, published)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMockSagaStore(t)
			publisher := mocks.NewMockPublisher(t)
			published := capturePublished(publisher)

			instance := tt.setupMocks(store)

			uc := NewProcessStepFailed(store, stubAuditStream(t), publisher, NewDispatcher(publisher))
			err := uc.Execute(context.Background(), &saga.StepResult{
				SagaID:       instance.ID,
				StepName:     tt.stepName,
				PaymentID:    instance.PaymentID,
				ErrorCode:    "step_execution_failed",
				ErrorMessage: "executor timeout",
			})

			require.NoError(t, err)
			tt.assertState(t, instance, *published)
		})
	}
}

func TestProcessStepFailed_UsesErrorCodeWhenMessageMissing(t *testing.T) {
	store := mocks.NewMockSagaStore(t)
	publisher := mocks.NewMockPublisher(t)
	capturePublished(publisher)

	instance := newRunningSaga(t)
	store.EXPECT().FindByID(mock.Anything, instance.ID).Return(instance, nil)
	store.EXPECT().Save(mock.Anything, instance).Return(nil)

	uc := NewProcessStepFailed(store, stubAuditStream(t), publisher, NewDispatcher(publisher))
	err := uc.Execute(context.Background(), &saga.StepResult{
		SagaID:    instance.ID,
		StepName:  "validate",
		PaymentID: models.GenerateUUID(),
		ErrorCode: "step_timeout",
	})

	require.NoError(t, err)
	assert.Equal(t, "step_timeout: "+faults.ErrStepExecutionFailed.Error(), instance.Step("validate").LastError)
}

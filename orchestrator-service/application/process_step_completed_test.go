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

// newRunningSaga builds a saga advanced past the given completed steps, with
// the following step armed
func newRunningSaga(t *testing.T, completedSteps ...string) *domain.Saga {
	instance := domain.NewSaga(testDefinition(), models.GenerateUUID(), "acme", "", models.GenerateUUID())
	_, err := instance.Begin()
	require.NoError(t, err)
	for _, name := range completedSteps {
		_, err = instance.CompleteStep(name)
		require.NoError(t, err)
	}
	instance.ClearEvents()
	return instance
}

func TestProcessStepCompleted_Execute(t *testing.T) {
	tests := []struct {
		name          string
		result        *saga.StepResult
		setupMocks    func(*mocks.MockSagaStore) *domain.Saga
		expectedError string
		assertState   func(*testing.T, *domain.Saga, []*events.Event)
	}{
		{
			name: "mid-saga completion dispatches the next step",
			setupMocks: func(store *mocks.MockSagaStore) *domain.Saga {
				instance := newRunningSaga(t)
				store.EXPECT().FindByID(mock.Anything, instance.ID).Return(instance, nil)
				store.EXPECT().Save(mock.Anything, instance).Return(nil)
				return instance
			},
			result: &saga.StepResult{StepName: "validate"},
			assertState: func(t *testing.T, instance *domain.Saga, published []*events.Event) {
				assert.Equal(t, domain.StepStatusCompleted, instance.Step("validate").Status)
				assert.Equal(t, domain.StepStatusRunning, instance.Step("clear").Status)
				require.Len(t, published, 1)
				assert.Equal(t, events.Topic(events.StepExecuteTopic), published[0].Topic)
				assert.Equal(t, "payment.clear", published[0].Metadata["command"])
			},
		},
		{
			name: "final completion finishes the saga without dispatching",
			setupMocks: func(store *mocks.MockSagaStore) *domain.Saga {
				instance := newRunningSaga(t, "validate", "clear")
				store.EXPECT().FindByID(mock.Anything, instance.ID).Return(instance, nil)
				store.EXPECT().Save(mock.Anything, instance).Return(nil)
				return instance
			},
			result: &saga.StepResult{StepName: "settle"},
			assertState: func(t *testing.T, instance *domain.Saga, published []*events.Event) {
				assert.Equal(t, domain.SagaStatusCompleted, instance.Status)
				require.Len(t, published, 1)
				assert.Equal(t, events.Topic(events.SagaCompletedTopic), published[0].Topic)
			},
		},
		{
			name: "redelivered completion is absorbed",
			setupMocks: func(store *mocks.MockSagaStore) *domain.Saga {
				instance := newRunningSaga(t, "validate")
				store.EXPECT().FindByID(mock.Anything, instance.ID).Return(instance, nil)
				return instance
			},
			result: &saga.StepResult{StepName: "validate"},
			assertState: func(t *testing.T, instance *domain.Saga, published []*events.Event) {
				assert.Empty(t, published)
			},
		},
		{
			name: "unknown saga",
			setupMocks: func(store *mocks.MockSagaStore) *domain.Saga {
				store.EXPECT().FindByID(mock.Anything, mock.Anything).Return(nil, faults.ErrNotFound)
				return nil
			},
			result:        &saga.StepResult{SagaID: models.GenerateUUID(), StepName: "validate"},
			expectedError: "failed to load saga",
		},
		{
			name:          "missing step name",
			setupMocks:    func(store *mocks.MockSagaStore) *domain.Saga { return nil },
			result:        &saga.StepResult{SagaID: models.GenerateUUID()},
			expectedError: "saga ID and step name are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMockSagaStore(t)
			publisher := mocks.NewMockPublisher(t)
			published := capturePublished(publisher)

			instance := tt.setupMocks(store)
			result := tt.result
			if instance != nil {
				result.SagaID = instance.ID
				result.PaymentID = instance.PaymentID
			}

			uc := NewProcessStepCompleted(store, stubAuditStream(t), publisher, NewDispatcher(publisher))
			err := uc.Execute(context.Background(), result)

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}

			require.NoError(t, err)
			tt.assertState(t, instance, *published)
		})
	}
}

func TestProcessStepCompleted_RetriesOnConflict(t *testing.T) {
	store := mocks.NewMockSagaStore(t)
	publisher := mocks.NewMockPublisher(t)
	published := capturePublished(publisher)

	template := newRunningSaga(t)
	// A fresh instance per load, the way a store returns one
	store.EXPECT().FindByID(mock.Anything, template.ID).RunAndReturn(
		func(ctx context.Context, id models.ID) (*domain.Saga, error) {
			fresh := newRunningSaga(t)
			fresh.ID = template.ID
			return fresh, nil
		})
	store.EXPECT().Save(mock.Anything, mock.Anything).Return(faults.ErrOptimisticLockConflict).Once()
	store.EXPECT().Save(mock.Anything, mock.Anything).Return(nil).Once()

	uc := NewProcessStepCompleted(store, stubAuditStream(t), publisher, NewDispatcher(publisher))
	err := uc.Execute(context.Background(), &saga.StepResult{SagaID: template.ID, StepName: "validate"})

	require.NoError(t, err)
	require.Len(t, *published, 1)
	assert.Equal(t, events.Topic(events.StepExecuteTopic), (*published)[0].Topic)
}

func TestProcessStepCompleted_AppendsCompletionToAuditStream(t *testing.T) {
	store := mocks.NewMockSagaStore(t)
	publisher := mocks.NewMockPublisher(t)
	capturePublished(publisher)
	eventStore := mocks.NewMockEventStore(t)

	instance := newRunningSaga(t, "validate", "clear")
	store.EXPECT().FindByID(mock.Anything, instance.ID).Return(instance, nil)
	store.EXPECT().Save(mock.Anything, instance).Return(nil)
	// The started event was appended at creation; the completion follows it
	eventStore.EXPECT().SaveEvents(mock.Anything, instance.ID, mock.Anything, 1).RunAndReturn(
		func(ctx context.Context, id models.ID, evts []*events.Event, expectedVersion int) error {
			require.Len(t, evts, 1)
			assert.Equal(t, events.Topic(events.SagaCompletedTopic), evts[0].Topic)
			return nil
		})

	uc := NewProcessStepCompleted(store, eventStore, publisher, NewDispatcher(publisher))
	err := uc.Execute(context.Background(), &saga.StepResult{SagaID: instance.ID, StepName: "settle"})

	require.NoError(t, err)
}

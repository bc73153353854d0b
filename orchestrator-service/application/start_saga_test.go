package application

import (
	"context"
	"testing"
	"time"

	"github.com/draftea/payment-hub/orchestrator-service/domain"
	"github.com/draftea/payment-hub/orchestrator-service/mocks"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// testDefinition uses a zero backoff so retry dispatches publish synchronously
func testDefinition() *domain.SagaDefinition {
	return &domain.SagaDefinition{
		SagaType:    "standard_transfer",
		TenantID:    "acme",
		PaymentType: "bank_transfer",
		Steps: []domain.StepDefinition{
			{
				Name:                    "validate",
				Command:                 "payment.validate",
				Compensation:            "payment.validate.undo",
				Timeout:                 30 * time.Second,
				MaxAttempts:             3,
				MaxCompensationAttempts: 2,
			},
			{
				Name:                    "clear",
				Command:                 "payment.clear",
				Compensation:            "payment.clear.undo",
				Timeout:                 60 * time.Second,
				MaxAttempts:             3,
				MaxCompensationAttempts: 2,
			},
			{
				Name:        "settle",
				Command:     "payment.settle",
				Timeout:     60 * time.Second,
				MaxAttempts: 3,
			},
		},
	}
}

// capturePublished makes the publisher mock accept every publish, recording
// events by topic
func capturePublished(publisher *mocks.MockPublisher) *[]*events.Event {
	published := make([]*events.Event, 0)
	record := func(ctx context.Context, evts ...*events.Event) error {
		published = append(published, evts...)
		return nil
	}
	publisher.EXPECT().Publish(mock.Anything).Return(nil).Maybe()
	publisher.EXPECT().Publish(mock.Anything, mock.Anything).RunAndReturn(record).Maybe()
	publisher.EXPECT().Publish(mock.Anything, mock.Anything, mock.Anything).RunAndReturn(record).Maybe()
	return &published
}

// stubAuditStream accepts every append to the audit stream
func stubAuditStream(t *testing.T) *mocks.MockEventStore {
	eventStore := mocks.NewMockEventStore(t)
	eventStore.EXPECT().SaveEvents(mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return eventStore
}

func topicsOf(published []*events.Event) []string {
	topics := make([]string, len(published))
	for i, evt := range published {
		topics[i] = evt.Topic.String()
	}
	return topics
}

func TestStartSaga_Execute(t *testing.T) {
	paymentID := models.GenerateUUID()

	validCommand := func() *StartSagaCommand {
		return &StartSagaCommand{
			PaymentID:   paymentID,
			TenantID:    "acme",
			PaymentType: "bank_transfer",
		}
	}

	tests := []struct {
		name          string
		command       *StartSagaCommand
		setupMocks    func(*mocks.MockSagaStore, *mocks.MockDefinitionRegistry, *mocks.MockPublisher)
		expectedError string
		assertResult  func(*testing.T, *StartSagaResponse, []*events.Event)
	}{
		{
			name:    "successful start dispatches the first step",
			command: validCommand(),
			setupMocks: func(store *mocks.MockSagaStore, registry *mocks.MockDefinitionRegistry, publisher *mocks.MockPublisher) {
				registry.EXPECT().Resolve("acme", "bank_transfer").Return(testDefinition(), nil)
				store.EXPECT().FindByPaymentAndType(mock.Anything, paymentID, "standard_transfer").
					Return(nil, faults.ErrNotFound)
				store.EXPECT().Save(mock.Anything, mock.Anything).RunAndReturn(
					func(ctx context.Context, instance *domain.Saga) error {
						assert.Equal(t, domain.SagaStatusRunning, instance.Status)
						assert.Equal(t, domain.StepStatusRunning, instance.Steps[0].Status)
						// The first save carries the fresh version; the store
						// must insert, not update a row that is not there yet.
						assert.Equal(t, 1, instance.Version.Value)
						return nil
					})
			},
			assertResult: func(t *testing.T, resp *StartSagaResponse, published []*events.Event) {
				assert.False(t, resp.Existed)
				assert.Equal(t, domain.SagaStatusRunning, resp.Status)
				assert.Equal(t, []string{events.SagaStartedTopic, events.StepExecuteTopic}, topicsOf(published))
				assert.Equal(t, "payment.validate", published[1].Metadata["command"])
			},
		},
		{
			name:    "redelivered trigger returns the existing saga",
			command: validCommand(),
			setupMocks: func(store *mocks.MockSagaStore, registry *mocks.MockDefinitionRegistry, publisher *mocks.MockPublisher) {
				registry.EXPECT().Resolve("acme", "bank_transfer").Return(testDefinition(), nil)
				existing := domain.NewSaga(testDefinition(), paymentID, "acme", "", models.GenerateUUID())
				store.EXPECT().FindByPaymentAndType(mock.Anything, paymentID, "standard_transfer").
					Return(existing, nil)
			},
			assertResult: func(t *testing.T, resp *StartSagaResponse, published []*events.Event) {
				assert.True(t, resp.Existed)
				assert.Empty(t, published)
			},
		},
		{
			name:    "missing definition is fatal",
			command: validCommand(),
			setupMocks: func(store *mocks.MockSagaStore, registry *mocks.MockDefinitionRegistry, publisher *mocks.MockPublisher) {
				registry.EXPECT().Resolve("acme", "bank_transfer").
					Return(nil, errors.Wrap(faults.ErrConfigurationNotFound, "no definition for acme/bank_transfer"))
			},
			expectedError: "configuration not found",
		},
		{
			name: "missing payment ID",
			command: &StartSagaCommand{
				TenantID:    "acme",
				PaymentType: "bank_transfer",
			},
			setupMocks:    func(*mocks.MockSagaStore, *mocks.MockDefinitionRegistry, *mocks.MockPublisher) {},
			expectedError: "payment ID is required",
		},
		{
			name:    "lost concurrent create reuses the winner",
			command: validCommand(),
			setupMocks: func(store *mocks.MockSagaStore, registry *mocks.MockDefinitionRegistry, publisher *mocks.MockPublisher) {
				registry.EXPECT().Resolve("acme", "bank_transfer").Return(testDefinition(), nil)
				store.EXPECT().FindByPaymentAndType(mock.Anything, paymentID, "standard_transfer").
					Return(nil, faults.ErrNotFound).Once()
				store.EXPECT().Save(mock.Anything, mock.Anything).Return(faults.ErrOptimisticLockConflict)
				winner := domain.NewSaga(testDefinition(), paymentID, "acme", "", models.GenerateUUID())
				store.EXPECT().FindByPaymentAndType(mock.Anything, paymentID, "standard_transfer").
					Return(winner, nil).Once()
			},
			assertResult: func(t *testing.T, resp *StartSagaResponse, published []*events.Event) {
				assert.True(t, resp.Existed)
				assert.Empty(t, published)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMockSagaStore(t)
			registry := mocks.NewMockDefinitionRegistry(t)
			publisher := mocks.NewMockPublisher(t)
			published := capturePublished(publisher)

			tt.setupMocks(store, registry, publisher)

			uc := NewStartSaga(store, registry, stubAuditStream(t), publisher, NewDispatcher(publisher))
			resp, err := uc.Execute(context.Background(), tt.command)

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				assert.Nil(t, resp)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, resp)
			tt.assertResult(t, resp, *published)
		})
	}
}

func TestStartSaga_AppendsStartedEventToAuditStream(t *testing.T) {
	store := mocks.NewMockSagaStore(t)
	registry := mocks.NewMockDefinitionRegistry(t)
	publisher := mocks.NewMockPublisher(t)
	capturePublished(publisher)
	eventStore := mocks.NewMockEventStore(t)

	registry.EXPECT().Resolve("acme", "bank_transfer").Return(testDefinition(), nil)
	store.EXPECT().FindByPaymentAndType(mock.Anything, mock.Anything, "standard_transfer").
		Return(nil, faults.ErrNotFound)
	store.EXPECT().Save(mock.Anything, mock.Anything).Return(nil)
	eventStore.EXPECT().SaveEvents(mock.Anything, mock.Anything, mock.Anything, 0).RunAndReturn(
		func(ctx context.Context, id models.ID, evts []*events.Event, expectedVersion int) error {
			require.Len(t, evts, 1)
			assert.Equal(t, events.Topic(events.SagaStartedTopic), evts[0].Topic)
			return nil
		})

	uc := NewStartSaga(store, registry, eventStore, publisher, NewDispatcher(publisher))
	_, err := uc.Execute(context.Background(), &StartSagaCommand{
		PaymentID:   models.GenerateUUID(),
		TenantID:    "acme",
		PaymentType: "bank_transfer",
	})

	require.NoError(t, err)
}

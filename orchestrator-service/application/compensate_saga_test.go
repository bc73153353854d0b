package application

import (
	"context"
	"testing"

	"github.com/draftea/payment-hub/orchestrator-service/domain"
	"github.com/draftea/payment-hub/orchestrator-service/mocks"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCompensateSaga_Execute(t *testing.T) {
	t.Run("cancels a running saga and dispatches the first compensation", func(t *testing.T) {
		store := mocks.NewMockSagaStore(t)
		publisher := mocks.NewMockPublisher(t)
		published := capturePublished(publisher)

		instance := newRunningSaga(t, "validate")
		store.EXPECT().FindByID(mock.Anything, instance.ID).Return(instance, nil)
		store.EXPECT().Save(mock.Anything, instance).Return(nil)

		uc := NewCompensateSaga(store, stubAuditStream(t), publisher, NewDispatcher(publisher))
		result, err := uc.Execute(context.Background(), &CompensateSagaCommand{
			SagaID: instance.ID,
			Reason: "fraud review",
		})

		require.NoError(t, err)
		assert.Equal(t, domain.SagaStatusCompensating, result.Status)
		assert.Equal(t, domain.StepStatusFailed, result.Step("clear").Status)
		assert.Equal(t, "fraud review", result.Step("clear").LastError)

		require.Len(t, *published, 2)
		assert.Equal(t, events.Topic(events.SagaFailedTopic), (*published)[0].Topic)
		assert.Equal(t, events.Topic(events.StepCompensateTopic), (*published)[1].Topic)
		assert.Equal(t, "payment.validate.undo", (*published)[1].Metadata["command"])
	})

	t.Run("rejected on a completed saga", func(t *testing.T) {
		store := mocks.NewMockSagaStore(t)
		publisher := mocks.NewMockPublisher(t)
		capturePublished(publisher)

		instance := newRunningSaga(t, "validate", "clear", "settle")
		require.Equal(t, domain.SagaStatusCompleted, instance.Status)
		store.EXPECT().FindByID(mock.Anything, instance.ID).Return(instance, nil)

		uc := NewCompensateSaga(store, stubAuditStream(t), publisher, NewDispatcher(publisher))
		_, err := uc.Execute(context.Background(), &CompensateSagaCommand{SagaID: instance.ID})

		require.Error(t, err)
		assert.True(t, errors.Is(err, faults.ErrInvalidStateTransition))
	})

	t.Run("missing saga ID", func(t *testing.T) {
		store := mocks.NewMockSagaStore(t)
		publisher := mocks.NewMockPublisher(t)

		uc := NewCompensateSaga(store, stubAuditStream(t), publisher, NewDispatcher(publisher))
		_, err := uc.Execute(context.Background(), &CompensateSagaCommand{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "saga ID is required")
	})
}

package application

import (
	"context"
	"testing"
	"time"

	"github.com/draftea/payment-hub/orchestrator-service/domain"
	"github.com/draftea/payment-hub/orchestrator-service/mocks"
	"github.com/draftea/payment-hub/shared/events"
	"github.com/draftea/payment-hub/shared/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTimeoutSweep(t *testing.T, store *mocks.MockSagaStore, publisher *mocks.MockPublisher) *TimeoutSweep {
	dispatcher := NewDispatcher(publisher)
	eventStore := stubAuditStream(t)
	return NewTimeoutSweep(
		store,
		NewProcessStepFailed(store, eventStore, publisher, dispatcher),
		NewProcessCompensationFailed(store, eventStore, publisher, dispatcher),
	)
}

func TestTimeoutSweep_Sweep(t *testing.T) {
	t.Run("expired running step goes through the failure path", func(t *testing.T) {
		store := mocks.NewMockSagaStore(t)
		publisher := mocks.NewMockPublisher(t)
		published := capturePublished(publisher)

		instance := newRunningSaga(t)
		store.EXPECT().FindExpired(mock.Anything, mock.Anything, defaultSweepBatchSize).
			Return([]*domain.Saga{instance}, nil)
		store.EXPECT().FindByID(mock.Anything, instance.ID).Return(instance, nil)
		store.EXPECT().Save(mock.Anything, instance).Return(nil)

		err := newTimeoutSweep(t, store, publisher).Sweep(context.Background())

		require.NoError(t, err)
		step := instance.Step("validate")
		assert.Equal(t, 2, step.Attempts)
		assert.Contains(t, step.LastError, "timed out")

		require.Len(t, *published, 1)
		assert.Equal(t, events.Topic(events.StepExecuteTopic), (*published)[0].Topic)
		var cmd saga.StepCommand
		require.NoError(t, (*published)[0].UnmarshalPayload(&cmd))
		assert.Equal(t, 2, cmd.Attempt)
	})

	t.Run("expired compensation goes through the compensation failure path", func(t *testing.T) {
		store := mocks.NewMockSagaStore(t)
		publisher := mocks.NewMockPublisher(t)
		published := capturePublished(publisher)

		instance := newCompensatingSaga(t)
		store.EXPECT().FindExpired(mock.Anything, mock.Anything, defaultSweepBatchSize).
			Return([]*domain.Saga{instance}, nil)
		store.EXPECT().FindByID(mock.Anything, instance.ID).Return(instance, nil)
		store.EXPECT().Save(mock.Anything, instance).Return(nil)

		err := newTimeoutSweep(t, store, publisher).Sweep(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 2, instance.Step("clear").CompensationAttempts)

		require.Len(t, *published, 1)
		assert.Equal(t, events.Topic(events.StepCompensateTopic), (*published)[0].Topic)
	})

	t.Run("saga that raced to a terminal status is skipped", func(t *testing.T) {
		store := mocks.NewMockSagaStore(t)
		publisher := mocks.NewMockPublisher(t)

		instance := newRunningSaga(t, "validate", "clear", "settle")
		require.Equal(t, domain.SagaStatusCompleted, instance.Status)
		store.EXPECT().FindExpired(mock.Anything, mock.Anything, defaultSweepBatchSize).
			Return([]*domain.Saga{instance}, nil)

		err := newTimeoutSweep(t, store, publisher).Sweep(context.Background())

		require.NoError(t, err)
	})
}

func TestTimeoutSweep_Run(t *testing.T) {
	store := mocks.NewMockSagaStore(t)
	publisher := mocks.NewMockPublisher(t)

	store.EXPECT().FindExpired(mock.Anything, mock.Anything, defaultSweepBatchSize).
		Return(nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newTimeoutSweep(t, store, publisher).WithInterval(5 * time.Millisecond).Run(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep did not stop on context cancellation")
	}
}

package application

import (
	"context"
	"testing"

	"github.com/draftea/payment-hub/payments-service/domain"
	"github.com/draftea/payment-hub/payments-service/mocks"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestPayment(t *testing.T) *domain.Payment {
	payment, err := domain.CreatePayment(domain.CreatePaymentParams{
		TenantID:           "acme",
		Amount:             models.NewMoney(10000, "ZAR"),
		SourceAccount:      "ZA-001-123",
		DestinationAccount: "ZA-002-456",
		PaymentType:        "bank_transfer",
		Initiator:          "api-client-7",
		IdempotencyKey:     "key-1",
	})
	require.NoError(t, err)
	return payment
}

func TestInitiatePayment_Execute(t *testing.T) {
	validCommand := func() *InitiatePaymentCommand {
		return &InitiatePaymentCommand{
			TenantID:           "acme",
			Amount:             models.NewMoney(10000, "ZAR"),
			SourceAccount:      "ZA-001-123",
			DestinationAccount: "ZA-002-456",
			PaymentType:        "bank_transfer",
			Initiator:          "api-client-7",
			IdempotencyKey:     "key-1",
		}
	}

	tests := []struct {
		name          string
		command       *InitiatePaymentCommand
		setupMocks    func(*mocks.MockPaymentRepository, *mocks.MockEventStore, *mocks.MockPublisher)
		expectedError string
		assertResult  func(*testing.T, *InitiatePaymentResponse)
	}{
		{
			name:    "successful initiation persists the payment and the event stream",
			command: validCommand(),
			setupMocks: func(repo *mocks.MockPaymentRepository, store *mocks.MockEventStore, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByIdempotencyKey(mock.Anything, "acme", "key-1").
					Return(nil, faults.ErrNotFound)
				repo.EXPECT().Save(mock.Anything, mock.Anything).RunAndReturn(
					func(ctx context.Context, payment *domain.Payment) error {
						assert.Equal(t, domain.PaymentStatusInitiated, payment.Status)
						assert.Equal(t, 1, payment.Version.Value)
						return nil
					})
				store.EXPECT().SaveEvents(mock.Anything, mock.Anything, mock.Anything, 0).Return(nil)
				publisher.EXPECT().Publish(mock.Anything, mock.Anything).Return(nil)
			},
			assertResult: func(t *testing.T, resp *InitiatePaymentResponse) {
				assert.False(t, resp.Existed)
				assert.Equal(t, domain.PaymentStatusInitiated, resp.Status)
				assert.False(t, resp.PaymentID.IsZero())
			},
		},
		{
			name:    "known idempotency key returns the existing payment",
			command: validCommand(),
			setupMocks: func(repo *mocks.MockPaymentRepository, store *mocks.MockEventStore, publisher *mocks.MockPublisher) {
				existing := newTestPayment(t)
				repo.EXPECT().FindByIdempotencyKey(mock.Anything, "acme", "key-1").
					Return(existing, nil)
			},
			assertResult: func(t *testing.T, resp *InitiatePaymentResponse) {
				assert.True(t, resp.Existed)
			},
		},
		{
			name: "invalid payment is rejected before any persistence",
			command: &InitiatePaymentCommand{
				TenantID:           "acme",
				Amount:             models.NewMoney(-100, "ZAR"),
				SourceAccount:      "ZA-001-123",
				DestinationAccount: "ZA-002-456",
				PaymentType:        "bank_transfer",
				Initiator:          "api-client-7",
				IdempotencyKey:     "key-1",
			},
			setupMocks: func(repo *mocks.MockPaymentRepository, store *mocks.MockEventStore, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByIdempotencyKey(mock.Anything, "acme", "key-1").
					Return(nil, faults.ErrNotFound)
			},
			expectedError: "amount must be positive",
		},
		{
			name:    "lost concurrent create reuses the winner",
			command: validCommand(),
			setupMocks: func(repo *mocks.MockPaymentRepository, store *mocks.MockEventStore, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByIdempotencyKey(mock.Anything, "acme", "key-1").
					Return(nil, faults.ErrNotFound).Once()
				repo.EXPECT().Save(mock.Anything, mock.Anything).Return(faults.ErrOptimisticLockConflict)
				winner := newTestPayment(t)
				repo.EXPECT().FindByIdempotencyKey(mock.Anything, "acme", "key-1").
					Return(winner, nil).Once()
			},
			assertResult: func(t *testing.T, resp *InitiatePaymentResponse) {
				assert.True(t, resp.Existed)
			},
		},
		{
			name:    "event stream append failure surfaces",
			command: validCommand(),
			setupMocks: func(repo *mocks.MockPaymentRepository, store *mocks.MockEventStore, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByIdempotencyKey(mock.Anything, "acme", "key-1").
					Return(nil, faults.ErrNotFound)
				repo.EXPECT().Save(mock.Anything, mock.Anything).Return(nil)
				store.EXPECT().SaveEvents(mock.Anything, mock.Anything, mock.Anything, 0).
					Return(faults.ErrOptimisticLockConflict)
			},
			expectedError: "failed to append payment events",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewMockPaymentRepository(t)
			store := mocks.NewMockEventStore(t)
			publisher := mocks.NewMockPublisher(t)

			tt.setupMocks(repo, store, publisher)

			uc := NewInitiatePayment(repo, store, publisher)
			resp, err := uc.Execute(context.Background(), tt.command)

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				assert.Nil(t, resp)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, resp)
			tt.assertResult(t, resp)
		})
	}
}

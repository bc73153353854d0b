package application

import (
	"context"
	"testing"

	"github.com/draftea/payment-hub/payments-service/domain"
	"github.com/draftea/payment-hub/payments-service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestFinalizePayment_Execute(t *testing.T) {
	tests := []struct {
		name           string
		command        *FinalizePaymentCommand
		startingStatus domain.PaymentStatus
		expectPersist  bool
		expectedStatus domain.PaymentStatus
		expectedReason string
	}{
		{
			name:           "completes a cleared payment",
			command:        &FinalizePaymentCommand{Success: true},
			startingStatus: domain.PaymentStatusCleared,
			expectPersist:  true,
			expectedStatus: domain.PaymentStatusCompleted,
		},
		{
			name:           "fails a payment mid-flight",
			command:        &FinalizePaymentCommand{Success: false, Reason: "saga compensated"},
			startingStatus: domain.PaymentStatusSubmittedToClearing,
			expectPersist:  true,
			expectedStatus: domain.PaymentStatusFailed,
			expectedReason: "saga compensated",
		},
		{
			name:           "duplicate finalization of a completed payment is absorbed",
			command:        &FinalizePaymentCommand{Success: false, Reason: "late failure"},
			startingStatus: domain.PaymentStatusCompleted,
			expectPersist:  false,
			expectedStatus: domain.PaymentStatusCompleted,
		},
		{
			name:           "duplicate finalization of a failed payment is absorbed",
			command:        &FinalizePaymentCommand{Success: true},
			startingStatus: domain.PaymentStatusFailed,
			expectPersist:  false,
			expectedStatus: domain.PaymentStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewMockPaymentRepository(t)
			store := mocks.NewMockEventStore(t)
			publisher := mocks.NewMockPublisher(t)

			payment := terminalCapablePayment(t, tt.startingStatus)
			repo.EXPECT().FindByID(mock.Anything, payment.ID).Return(payment, nil)
			if tt.expectPersist {
				repo.EXPECT().Save(mock.Anything, payment).Return(nil)
				store.EXPECT().SaveEvents(mock.Anything, payment.ID, mock.Anything, payment.Version.Value).Return(nil)
				publisher.EXPECT().Publish(mock.Anything, mock.Anything).Return(nil)
			}

			command := tt.command
			command.PaymentID = payment.ID

			uc := NewFinalizePayment(repo, store, publisher)
			err := uc.Execute(context.Background(), command)

			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, payment.Status)
			if tt.expectedReason != "" {
				assert.Equal(t, tt.expectedReason, payment.FailureReason)
			}
		})
	}
}

func terminalCapablePayment(t *testing.T, status domain.PaymentStatus) *domain.Payment {
	switch status {
	case domain.PaymentStatusCompleted:
		payment := paymentInStatus(t, domain.PaymentStatusCleared)
		require.NoError(t, payment.Complete("orchestrator"))
		payment.ClearEvents()
		return payment
	case domain.PaymentStatusFailed:
		payment := paymentInStatus(t, domain.PaymentStatusInitiated)
		require.NoError(t, payment.Fail("boom", "orchestrator"))
		payment.ClearEvents()
		return payment
	default:
		return paymentInStatus(t, status)
	}
}

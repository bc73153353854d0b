package events

import (
	"testing"

	"github.com/draftea/payment-hub/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic_Matches(t *testing.T) {
	tests := []struct {
		topic    Topic
		pattern  Topic
		expected bool
	}{
		{"payment.initiated", "payment.initiated", true},
		{"payment.initiated", "payment.validated", false},
		{"payment.initiated", "payment.*", true},
		{"saga.step.completed", "saga.*.completed", true},
		{"saga.step.completed", "saga.*.failed", false},
		{"saga.step.completed", "#", true},
		{"saga.compensation.stuck", "saga.#", true},
		{"payment.failed", "#.failed", true},
		{"saga.step.completed", "#step#", true},
		{"payment.initiated", "saga.#", false},
		{"payment.initiated", "payment", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.topic)+" vs "+string(tt.pattern), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.topic.Matches(tt.pattern))
		})
	}
}

func TestEvent_PayloadRoundTrip(t *testing.T) {
	type payload struct {
		SagaID models.ID `json:"saga_id"`
		Reason string    `json:"reason"`
	}

	aggregateID := models.GenerateUUID()
	sagaID := models.GenerateUUID()
	event := NewEvent(aggregateID, SagaFailedTopic, payload{SagaID: sagaID, Reason: "step exhausted"}).
		WithCorrelationID(models.GenerateUUID()).
		WithMetadata(MetadataSagaID, sagaID.String())

	assert.Equal(t, aggregateID, event.AggregateID)
	assert.Equal(t, "1.0", event.Version)
	assert.Equal(t, sagaID.String(), event.Metadata[MetadataSagaID])

	raw, err := event.MarshalPayload()
	require.NoError(t, err)
	event.Data = raw

	var decoded payload
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, sagaID, decoded.SagaID)
	assert.Equal(t, "step exhausted", decoded.Reason)
}

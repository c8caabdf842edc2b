package out_amqp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/mq"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/out"
)

func TestOperationEventEnvelope(t *testing.T) {
	data := out.OperationEventData{
		OperationID:    "op-1",
		OrganizationID: "org-1",
		Status:         "IN_PROGRESS",
		AdditionalData: map[string]interface{}{"user_id": "user-1"},
	}

	event := newOperationEvent("PASSENGER_BOARDED", data)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "op-1", event.OperationID)
	assert.Equal(t, "org-1", event.OrganizationID)
	assert.Equal(t, "PASSENGER_BOARDED", event.EventType)
	assert.Equal(t, data, event.EventData)
	assert.WithinDuration(t, time.Now().UTC(), event.CreatedAt, time.Minute)

	// Каждый конверт получает собственный ID
	other := newOperationEvent("PASSENGER_BOARDED", data)
	require.NotEqual(t, event.ID, other.ID)
}

func TestRoutingKeys(t *testing.T) {
	cases := map[string]string{
		"OPERATION_STARTED":   mq.KeyOperationStarted,
		"OPERATION_COMPLETED": mq.KeyOperationCompleted,
		"OPERATION_CANCELLED": mq.KeyOperationCancelled,
		"PASSENGER_BOARDED":   mq.KeyPassengerBoarded,
		"PASSENGER_ALIGHTED":  mq.KeyPassengerAlighted,
		"SOMETHING_ELSE":      "operation.event",
	}
	for eventType, want := range cases {
		assert.Equal(t, want, getRoutingKey(eventType), eventType)
	}
}

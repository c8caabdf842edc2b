package domain

import "time"

// OperationEvent — событие жизненного цикла рейса, которое
// отправляется в RabbitMQ.
type OperationEvent struct {
	ID             string    `json:"id"`
	OperationID    string    `json:"operation_id"`
	OrganizationID string    `json:"organization_id"`
	EventType      string    `json:"event_type"`
	EventData      any       `json:"event_data,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

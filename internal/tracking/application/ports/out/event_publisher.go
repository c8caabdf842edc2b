package out

import (
	"context"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// OperationEventData — данные события рейса
type OperationEventData struct {
	OperationID    string                 `json:"operation_id"`
	OrganizationID string                 `json:"organization_id"`
	BusID          string                 `json:"bus_id,omitempty"`
	DriverID       string                 `json:"driver_id,omitempty"`
	Status         string                 `json:"status"`
	AdditionalData map[string]interface{} `json:"additional_data,omitempty"`
}

// EventPublisher — интерфейс для публикации событий в RabbitMQ
type EventPublisher interface {
	// PublishOperationEvent публикует событие жизненного цикла рейса
	// eventType: OPERATION_STARTED | OPERATION_COMPLETED | OPERATION_CANCELLED |
	// PASSENGER_BOARDED | PASSENGER_ALIGHTED
	PublishOperationEvent(ctx context.Context, eventType string, data OperationEventData) error

	// PublishLocation публикует точку в fanout для внешних потребителей
	PublishLocation(ctx context.Context, status domain.BusStatus) error
}

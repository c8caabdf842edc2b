package out_amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/mq"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/utils"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/out"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// OperationEventPublisher публикует события рейсов в RabbitMQ
type OperationEventPublisher struct {
	mq  *mq.RabbitMQ
	log *logger.Logger
}

// NewOperationEventPublisher создает новый publisher
func NewOperationEventPublisher(mqConn *mq.RabbitMQ, log *logger.Logger) *OperationEventPublisher {
	return &OperationEventPublisher{
		mq:  mqConn,
		log: log,
	}
}

// PublishOperationEvent публикует событие жизненного цикла рейса.
// На проводе событие идет в конверте OperationEvent с собственным ID
// и временем создания, чтобы потребители могли дедуплицировать.
func (p *OperationEventPublisher) PublishOperationEvent(ctx context.Context, eventType string, data out.OperationEventData) error {
	payload, err := json.Marshal(newOperationEvent(eventType, data))
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	routingKey := getRoutingKey(eventType)

	if err := p.mq.Publish(ctx, mq.ExchangeOperations, routingKey, payload); err != nil {
		p.log.Error(logger.Entry{
			Action:      "publish_operation_event_failed",
			Message:     err.Error(),
			OperationID: data.OperationID,
			Error:       &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{
				"event_type":  eventType,
				"routing_key": routingKey,
			},
		})
		return fmt.Errorf("publish to rabbitmq: %w", err)
	}

	p.log.Debug(logger.Entry{
		Action:      "operation_event_published",
		Message:     eventType,
		OperationID: data.OperationID,
		Additional: map[string]any{
			"routing_key": routingKey,
		},
	})

	return nil
}

// PublishLocation публикует точку в fanout для внешних потребителей
func (p *OperationEventPublisher) PublishLocation(ctx context.Context, status domain.BusStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal bus status: %w", err)
	}

	if err := p.mq.Publish(ctx, mq.ExchangeLocations, "", payload); err != nil {
		return fmt.Errorf("publish location to rabbitmq: %w", err)
	}
	return nil
}

// newOperationEvent оборачивает данные события в конверт для RabbitMQ
func newOperationEvent(eventType string, data out.OperationEventData) domain.OperationEvent {
	return domain.OperationEvent{
		ID:             utils.NewUUID(),
		OperationID:    data.OperationID,
		OrganizationID: data.OrganizationID,
		EventType:      eventType,
		EventData:      data,
		CreatedAt:      time.Now().UTC(),
	}
}

// getRoutingKey возвращает routing key для события
func getRoutingKey(eventType string) string {
	switch eventType {
	case "OPERATION_STARTED":
		return mq.KeyOperationStarted
	case "OPERATION_COMPLETED":
		return mq.KeyOperationCompleted
	case "OPERATION_CANCELLED":
		return mq.KeyOperationCancelled
	case "PASSENGER_BOARDED":
		return mq.KeyPassengerBoarded
	case "PASSENGER_ALIGHTED":
		return mq.KeyPassengerAlighted
	default:
		return "operation.event"
	}
}

package mq

import (
	"fmt"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
)

// Имена exchanges/очередей трекинга
const (
	ExchangeOperations = "operation_topic"
	ExchangeLocations  = "location_fanout"

	KeyOperationStarted   = "operation.started"
	KeyOperationCompleted = "operation.completed"
	KeyOperationCancelled = "operation.cancelled"
	KeyPassengerBoarded   = "passenger.boarded"
	KeyPassengerAlighted  = "passenger.alighted"
)

// SetupTopology создает exchanges, queues и bindings (идемпотентно)
func SetupTopology(mq *RabbitMQ, log *logger.Logger) error {
	ch := mq.Channel()
	if ch == nil {
		return fmt.Errorf("rabbitmq channel not available")
	}

	// 1. Exchange: operation_topic (topic)
	if err := ch.ExchangeDeclare(
		ExchangeOperations, // name
		"topic",            // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // args
	); err != nil {
		return fmt.Errorf("declare %s: %w", ExchangeOperations, err)
	}

	// 2. Exchange: location_fanout (fanout)
	if err := ch.ExchangeDeclare(
		ExchangeLocations,
		"fanout",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare %s: %w", ExchangeLocations, err)
	}

	// 3. Очереди для operation_topic
	operationQueues := []string{
		KeyOperationStarted,
		KeyOperationCompleted,
		KeyOperationCancelled,
		KeyPassengerBoarded,
		KeyPassengerAlighted,
	}
	for _, q := range operationQueues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := ch.QueueBind(q, q, ExchangeOperations, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}

	// 4. Очередь для location_fanout (потребители обычно создают свои
	// эксклюзивные очереди при consume; общая остается для отладки)
	if _, err := ch.QueueDeclare("location.broadcast", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare location.broadcast: %w", err)
	}
	if err := ch.QueueBind("location.broadcast", "", ExchangeLocations, false, nil); err != nil {
		return fmt.Errorf("bind location.broadcast: %w", err)
	}

	log.Info(logger.Entry{
		Action:  "topology_setup_complete",
		Message: "all exchanges and queues created",
	})

	return nil
}

package in

import "context"

// AdjustPassengersInput — изменение счетчика пассажиров рейса.
// Единственная точка мутации счетчика: через нее проходят и ручные,
// и автоматически обнаруженные посадки/высадки.
type AdjustPassengersInput struct {
	OperationID string `json:"operation_id"`
	Delta       int    `json:"delta"` // +1 посадка, -1 высадка
}

// AdjustPassengersUseCase — интерфейс изменения счетчика пассажиров
type AdjustPassengersUseCase interface {
	// Execute возвращает новое значение счетчика
	Execute(ctx context.Context, input AdjustPassengersInput) (int, error)
}

package in

import (
	"context"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// StartOperationInput — входные данные для старта рейса водителем
type StartOperationInput struct {
	OperationID    string  `json:"operation_id"`
	DriverID       string  `json:"driver_id"`
	OrganizationID string  `json:"organization_id"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	EarlyStart     bool    `json:"early_start"` // запрошен досрочный старт
}

// StartOperationUseCase — интерфейс use-case для старта рейса
type StartOperationUseCase interface {
	Execute(ctx context.Context, input StartOperationInput) (*domain.OperationSnapshot, error)
}

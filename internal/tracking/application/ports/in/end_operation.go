package in

import (
	"context"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// EndOperationInput — входные данные для завершения рейса водителем
type EndOperationInput struct {
	OperationID    string  `json:"operation_id"`
	DriverID       string  `json:"driver_id"`
	OrganizationID string  `json:"organization_id"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	EndReason      string  `json:"end_reason,omitempty"`
}

// EndOperationUseCase — интерфейс use-case для завершения рейса
type EndOperationUseCase interface {
	Execute(ctx context.Context, input EndOperationInput) (*domain.OperationSnapshot, error)
}

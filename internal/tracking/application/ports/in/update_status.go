package in

import (
	"context"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// UpdateStatusInput — административный перевод статуса рейса.
// Используется вне основного водительского потока (принудительная отмена,
// авто-закрытие заброшенных рейсов).
type UpdateStatusInput struct {
	OperationID        string                 `json:"operation_id"`
	NewStatus          domain.OperationStatus `json:"new_status"`
	PassengerCountHint *int                   `json:"passenger_count_hint,omitempty"`
	StopsCompletedHint *int                   `json:"stops_completed_hint,omitempty"`
	Reason             string                 `json:"reason,omitempty"`
}

// UpdateStatusUseCase — интерфейс административного перевода статуса
type UpdateStatusUseCase interface {
	Execute(ctx context.Context, input UpdateStatusInput) (*domain.Operation, error)
}

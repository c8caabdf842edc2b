package in

import (
	"context"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// IngestLocationUseCase — прием GPS-точки от водителя.
// Точка отклоняется без каких-либо мутаций, если рейс не IN_PROGRESS.
type IngestLocationUseCase interface {
	Execute(ctx context.Context, sample domain.DriverLocationSample) (*domain.BusStatus, error)
}

package out

import (
	"context"
	"time"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// OperationRepository — интерфейс репозитория рейсов
type OperationRepository interface {
	// Create создает новый рейс
	Create(ctx context.Context, op *domain.Operation) error

	// FindByID возвращает рейс по ID
	FindByID(ctx context.Context, operationID string) (*domain.Operation, error)

	// Update обновляет существующий рейс
	Update(ctx context.Context, op *domain.Operation) error

	// FindByOrganizationAndStatus возвращает рейсы организации в заданном статусе
	FindByOrganizationAndStatus(ctx context.Context, organizationID string, status domain.OperationStatus) ([]*domain.Operation, error)

	// FindByDriver возвращает рейсы водителя
	FindByDriver(ctx context.Context, driverID string, limit int) ([]*domain.Operation, error)

	// FindInProgressByBusNumber резолвит активный рейс по номеру автобуса
	// внутри организации (ручная посадка/высадка)
	FindInProgressByBusNumber(ctx context.Context, organizationID, busNumber string) (*domain.Operation, error)

	// FindAbandoned возвращает рейсы со scheduled_end раньше cutoff,
	// статусом SCHEDULED или IN_PROGRESS и без обновлений после staleBefore
	FindAbandoned(ctx context.Context, cutoff, staleBefore time.Time) ([]*domain.Operation, error)

	// AdjustPassengerCount атомарно изменяет счетчик пассажиров.
	// Возвращает новое значение; CAPACITY при выходе за [0, totalSeats],
	// WRONG_STATE если рейс не IN_PROGRESS.
	AdjustPassengerCount(ctx context.Context, operationID string, delta int) (int, error)
}

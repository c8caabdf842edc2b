package in

import (
	"context"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// OperationQueriesUseCase — read-only запросы рейсов для
// WebSocket-клиентов: активные рейсы организации и расписание водителя.
type OperationQueriesUseCase interface {
	// ActiveOperations возвращает рейсы организации в статусе IN_PROGRESS
	ActiveOperations(ctx context.Context, organizationID string) ([]*domain.Operation, error)

	// DriverOperations возвращает рейсы водителя, не больше limit
	DriverOperations(ctx context.Context, driverID string, limit int) ([]*domain.Operation, error)
}

package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OperationPgRepository — PostgreSQL репозиторий рейсов.
// Методы Find* возвращают (nil, nil), если строки нет.
type OperationPgRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewOperationPgRepository создает новый экземпляр репозитория
func NewOperationPgRepository(pool *pgxpool.Pool, log *logger.Logger) *OperationPgRepository {
	return &OperationPgRepository{
		pool: pool,
		log:  log,
	}
}

const operationColumns = `
	operation_id, bus_id, driver_id, route_id, organization_id, status,
	scheduled_start, scheduled_end, actual_start, actual_end,
	total_passengers, total_stops_completed, created_at, updated_at
`

func scanOperation(row pgx.Row) (*domain.Operation, error) {
	op := &domain.Operation{}
	err := row.Scan(
		&op.OperationID,
		&op.BusID,
		&op.DriverID,
		&op.RouteID,
		&op.OrganizationID,
		&op.Status,
		&op.ScheduledStart,
		&op.ScheduledEnd,
		&op.ActualStart,
		&op.ActualEnd,
		&op.TotalPassengers,
		&op.TotalStopsCompleted,
		&op.CreatedAt,
		&op.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return op, nil
}

// Create создает новый рейс
func (r *OperationPgRepository) Create(ctx context.Context, op *domain.Operation) error {
	query := `
		INSERT INTO operations (` + operationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.pool.Exec(ctx, query,
		op.OperationID,
		op.BusID,
		op.DriverID,
		op.RouteID,
		op.OrganizationID,
		op.Status,
		op.ScheduledStart,
		op.ScheduledEnd,
		op.ActualStart,
		op.ActualEnd,
		op.TotalPassengers,
		op.TotalStopsCompleted,
		op.CreatedAt,
		op.UpdatedAt,
	)
	if err != nil {
		r.log.Error(logger.Entry{
			Action:      "db_create_operation_failed",
			Message:     err.Error(),
			OperationID: op.OperationID,
			Error:       &logger.ErrObj{Msg: err.Error()},
		})
		return fmt.Errorf("insert operation: %w", err)
	}

	return nil
}

// FindByID возвращает рейс по ID
func (r *OperationPgRepository) FindByID(ctx context.Context, operationID string) (*domain.Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM operations WHERE operation_id = $1`

	op, err := scanOperation(r.pool.QueryRow(ctx, query, operationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error(logger.Entry{
			Action:      "db_find_operation_failed",
			Message:     err.Error(),
			OperationID: operationID,
			Error:       &logger.ErrObj{Msg: err.Error()},
		})
		return nil, fmt.Errorf("query operation by id: %w", err)
	}

	return op, nil
}

// Update обновляет существующий рейс
func (r *OperationPgRepository) Update(ctx context.Context, op *domain.Operation) error {
	query := `
		UPDATE operations SET
			status = $2,
			actual_start = $3,
			actual_end = $4,
			total_passengers = $5,
			total_stops_completed = $6,
			updated_at = $7
		WHERE operation_id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		op.OperationID,
		op.Status,
		op.ActualStart,
		op.ActualEnd,
		op.TotalPassengers,
		op.TotalStopsCompleted,
		op.UpdatedAt,
	)
	if err != nil {
		r.log.Error(logger.Entry{
			Action:      "db_update_operation_failed",
			Message:     err.Error(),
			OperationID: op.OperationID,
			Error:       &logger.ErrObj{Msg: err.Error()},
		})
		return fmt.Errorf("update operation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("operation %s not found", op.OperationID)
	}

	return nil
}

// FindByOrganizationAndStatus возвращает рейсы организации в заданном статусе
func (r *OperationPgRepository) FindByOrganizationAndStatus(ctx context.Context, organizationID string, status domain.OperationStatus) ([]*domain.Operation, error) {
	query := `
		SELECT ` + operationColumns + `
		FROM operations
		WHERE organization_id = $1 AND status = $2
		ORDER BY scheduled_start
	`

	rows, err := r.pool.Query(ctx, query, organizationID, status)
	if err != nil {
		return nil, fmt.Errorf("query operations by org/status: %w", err)
	}
	defer rows.Close()

	return collectOperations(rows)
}

// FindByDriver возвращает рейсы водителя, свежие первыми
func (r *OperationPgRepository) FindByDriver(ctx context.Context, driverID string, limit int) ([]*domain.Operation, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + operationColumns + `
		FROM operations
		WHERE driver_id = $1
		ORDER BY scheduled_start DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, driverID, limit)
	if err != nil {
		return nil, fmt.Errorf("query operations by driver: %w", err)
	}
	defer rows.Close()

	return collectOperations(rows)
}

// FindInProgressByBusNumber резолвит активный рейс по номеру автобуса
func (r *OperationPgRepository) FindInProgressByBusNumber(ctx context.Context, organizationID, busNumber string) (*domain.Operation, error) {
	query := `
		SELECT ` + qualifiedOperationColumns("o") + `
		FROM operations o
		JOIN buses b ON b.id = o.bus_id
		WHERE o.organization_id = $1
		  AND b.bus_number = $2
		  AND o.status = 'IN_PROGRESS'
		LIMIT 1
	`

	op, err := scanOperation(r.pool.QueryRow(ctx, query, organizationID, busNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query in-progress operation by bus number: %w", err)
	}

	return op, nil
}

// FindAbandoned возвращает рейсы со scheduled_end раньше cutoff,
// статусом SCHEDULED/IN_PROGRESS и без обновлений после staleBefore
func (r *OperationPgRepository) FindAbandoned(ctx context.Context, cutoff, staleBefore time.Time) ([]*domain.Operation, error) {
	query := `
		SELECT ` + operationColumns + `
		FROM operations
		WHERE scheduled_end < $1
		  AND status IN ('SCHEDULED', 'IN_PROGRESS')
		  AND updated_at < $2
		ORDER BY scheduled_end
	`

	rows, err := r.pool.Query(ctx, query, cutoff, staleBefore)
	if err != nil {
		return nil, fmt.Errorf("query abandoned operations: %w", err)
	}
	defer rows.Close()

	return collectOperations(rows)
}

// AdjustPassengerCount атомарно изменяет счетчик пассажиров.
// Conditional UPDATE с RETURNING: конкурентные +1/-1 по одному рейсу
// сериализуются на уровне строки, потерянных инкрементов нет.
func (r *OperationPgRepository) AdjustPassengerCount(ctx context.Context, operationID string, delta int) (int, error) {
	query := `
		UPDATE operations o
		SET total_passengers = o.total_passengers + $2,
		    updated_at = now()
		FROM buses b
		WHERE o.operation_id = $1
		  AND b.id = o.bus_id
		  AND o.status = 'IN_PROGRESS'
		  AND o.total_passengers + $2 >= 0
		  AND o.total_passengers + $2 <= b.total_seats
		RETURNING o.total_passengers
	`

	var newCount int
	err := r.pool.QueryRow(ctx, query, operationID, delta).Scan(&newCount)
	if err == nil {
		return newCount, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.log.Error(logger.Entry{
			Action:      "db_adjust_passenger_count_failed",
			Message:     err.Error(),
			OperationID: operationID,
			Error:       &logger.ErrObj{Msg: err.Error()},
		})
		return 0, fmt.Errorf("adjust passenger count: %w", err)
	}

	// Условие не прошло — выясняем, какое именно
	op, ferr := r.FindByID(ctx, operationID)
	if ferr != nil {
		return 0, ferr
	}
	if op == nil {
		return 0, domain.ErrNotFound("operation %s not found", operationID)
	}
	if op.Status != domain.StatusInProgress {
		return 0, domain.ErrWrongState("operation %s is %s, passenger count is frozen", operationID, op.Status)
	}
	if delta < 0 {
		return 0, domain.ErrCapacity("passenger count cannot go below zero")
	}
	return 0, domain.ErrCapacity("bus is full")
}

func qualifiedOperationColumns(alias string) string {
	return alias + `.operation_id, ` + alias + `.bus_id, ` + alias + `.driver_id, ` +
		alias + `.route_id, ` + alias + `.organization_id, ` + alias + `.status, ` +
		alias + `.scheduled_start, ` + alias + `.scheduled_end, ` + alias + `.actual_start, ` +
		alias + `.actual_end, ` + alias + `.total_passengers, ` + alias + `.total_stops_completed, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}

func collectOperations(rows pgx.Rows) ([]*domain.Operation, error) {
	var ops []*domain.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return ops, nil
}

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

// BusPgRepository — PostgreSQL репозиторий автобусов.
// Методы Find* возвращают (nil, nil), если строки нет.
type BusPgRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewBusPgRepository создает новый экземпляр репозитория
func NewBusPgRepository(pool *pgxpool.Pool, log *logger.Logger) *BusPgRepository {
	return &BusPgRepository{
		pool: pool,
		log:  log,
	}
}

const busColumns = `
	id, bus_number, bus_real_number, organization_id, route_id,
	total_seats, occupied_seats, is_operating, prev_station_idx,
	last_latitude, last_longitude, last_location_update, created_at, updated_at
`

func scanBus(row pgx.Row) (*domain.Bus, error) {
	bus := &domain.Bus{}
	err := row.Scan(
		&bus.ID,
		&bus.BusNumber,
		&bus.BusRealNumber,
		&bus.OrganizationID,
		&bus.RouteID,
		&bus.TotalSeats,
		&bus.OccupiedSeats,
		&bus.IsOperating,
		&bus.PrevStationIdx,
		&bus.LastLatitude,
		&bus.LastLongitude,
		&bus.LastLocationUpdate,
		&bus.CreatedAt,
		&bus.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return bus, nil
}

// FindByID возвращает автобус по ID
func (r *BusPgRepository) FindByID(ctx context.Context, busID string) (*domain.Bus, error) {
	query := `SELECT ` + busColumns + ` FROM buses WHERE id = $1`

	bus, err := scanBus(r.pool.QueryRow(ctx, query, busID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error(logger.Entry{
			Action:  "db_find_bus_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return nil, fmt.Errorf("query bus by id: %w", err)
	}

	return bus, nil
}

// FindByNumber возвращает автобус по номеру внутри организации
func (r *BusPgRepository) FindByNumber(ctx context.Context, organizationID, busNumber string) (*domain.Bus, error) {
	query := `SELECT ` + busColumns + ` FROM buses WHERE organization_id = $1 AND bus_number = $2`

	bus, err := scanBus(r.pool.QueryRow(ctx, query, organizationID, busNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query bus by number: %w", err)
	}

	return bus, nil
}

// Update обновляет автобус
func (r *BusPgRepository) Update(ctx context.Context, bus *domain.Bus) error {
	query := `
		UPDATE buses SET
			total_seats = $2,
			occupied_seats = $3,
			is_operating = $4,
			prev_station_idx = $5,
			route_id = $6,
			updated_at = $7
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		bus.ID,
		bus.TotalSeats,
		bus.OccupiedSeats,
		bus.IsOperating,
		bus.PrevStationIdx,
		bus.RouteID,
		bus.UpdatedAt,
	)
	if err != nil {
		r.log.Error(logger.Entry{
			Action:  "db_update_bus_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return fmt.Errorf("update bus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("bus %s not found", bus.ID)
	}

	return nil
}

// UpdateLocation обновляет последнюю известную точку автобуса
func (r *BusPgRepository) UpdateLocation(ctx context.Context, busID string, lat, lon float64, at time.Time) error {
	query := `
		UPDATE buses SET
			last_latitude = $2,
			last_longitude = $3,
			last_location_update = $4,
			updated_at = $4
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, busID, lat, lon, at)
	if err != nil {
		return fmt.Errorf("update bus location: %w", err)
	}
	return nil
}

// SetOccupiedSeats выставляет занятые места, зажимая в [0, total_seats]
func (r *BusPgRepository) SetOccupiedSeats(ctx context.Context, busID string, occupied int) error {
	query := `
		UPDATE buses SET
			occupied_seats = GREATEST(0, LEAST($2, total_seats)),
			updated_at = now()
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, busID, occupied)
	if err != nil {
		return fmt.Errorf("set occupied seats: %w", err)
	}
	return nil
}

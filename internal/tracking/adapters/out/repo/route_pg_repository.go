package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoutePgRepository — PostgreSQL репозиторий маршрутов
type RoutePgRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewRoutePgRepository создает новый экземпляр репозитория
func NewRoutePgRepository(pool *pgxpool.Pool, log *logger.Logger) *RoutePgRepository {
	return &RoutePgRepository{
		pool: pool,
		log:  log,
	}
}

// FindByID возвращает маршрут вместе с упорядоченными остановками.
// (nil, nil) если маршрута нет.
func (r *RoutePgRepository) FindByID(ctx context.Context, routeID string) (*domain.Route, error) {
	route := &domain.Route{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, organization_id, created_at FROM routes WHERE id = $1`,
		routeID,
	).Scan(&route.ID, &route.Name, &route.OrganizationID, &route.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error(logger.Entry{
			Action:  "db_find_route_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return nil, fmt.Errorf("query route by id: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.name, s.organization_id, s.latitude, s.longitude, rs.sequence
		FROM route_stations rs
		JOIN stations s ON s.id = rs.station_id
		WHERE rs.route_id = $1
		ORDER BY rs.sequence
	`, routeID)
	if err != nil {
		return nil, fmt.Errorf("query route stations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st domain.Station
		if err := rows.Scan(&st.ID, &st.Name, &st.OrganizationID, &st.Latitude, &st.Longitude, &st.Sequence); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		route.Stations = append(route.Stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stations: %w", err)
	}

	return route, nil
}

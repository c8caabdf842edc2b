package repo

import (
	"context"
	"fmt"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TrackingEventPgRepository — аудит трекинга в PostgreSQL
type TrackingEventPgRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewTrackingEventPgRepository создает новый экземпляр репозитория
func NewTrackingEventPgRepository(pool *pgxpool.Pool, log *logger.Logger) *TrackingEventPgRepository {
	return &TrackingEventPgRepository{
		pool: pool,
		log:  log,
	}
}

// Save пишет строку аудита
func (r *TrackingEventPgRepository) Save(ctx context.Context, event *domain.TrackingEvent) error {
	query := `
		INSERT INTO tracking_events (
			id, operation_id, organization_id, event_type, user_id,
			latitude, longitude, occupied_seats, total_seats, occurred_at
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.OperationID,
		event.OrganizationID,
		event.EventType,
		event.UserID,
		event.Latitude,
		event.Longitude,
		event.OccupiedSeats,
		event.TotalSeats,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert tracking event: %w", err)
	}
	return nil
}

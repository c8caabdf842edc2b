package out

import (
	"context"
	"time"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// BusRepository — интерфейс репозитория автобусов
type BusRepository interface {
	// FindByID возвращает автобус по ID
	FindByID(ctx context.Context, busID string) (*domain.Bus, error)

	// FindByNumber возвращает автобус по номеру внутри организации
	FindByNumber(ctx context.Context, organizationID, busNumber string) (*domain.Bus, error)

	// Update обновляет автобус (is_operating, места, prev_station_idx)
	Update(ctx context.Context, bus *domain.Bus) error

	// UpdateLocation обновляет последнюю известную точку автобуса
	UpdateLocation(ctx context.Context, busID string, lat, lon float64, at time.Time) error

	// SetOccupiedSeats выставляет занятые места (зеркалирование счетчика рейса)
	SetOccupiedSeats(ctx context.Context, busID string, occupied int) error
}

// RouteRepository — интерфейс репозитория маршрутов
type RouteRepository interface {
	// FindByID возвращает маршрут вместе с упорядоченными остановками
	FindByID(ctx context.Context, routeID string) (*domain.Route, error)
}

// TrackingEventRepository — аудит трекинга. Запись best-effort:
// ошибка логируется вызывающим, мутация не откатывается.
type TrackingEventRepository interface {
	Save(ctx context.Context, event *domain.TrackingEvent) error
}

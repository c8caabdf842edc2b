package domain

import "time"

// Bus — снимок физического автобуса.
// Инвариант: occupied + available = total; is_operating истинно тогда и
// только тогда, когда по автобусу есть рейс в статусе IN_PROGRESS.
type Bus struct {
	ID                 string     `json:"id" db:"id"`
	BusNumber          string     `json:"bus_number" db:"bus_number"`
	BusRealNumber      string     `json:"bus_real_number,omitempty" db:"bus_real_number"`
	OrganizationID     string     `json:"organization_id" db:"organization_id"`
	RouteID            string     `json:"route_id" db:"route_id"`
	TotalSeats         int        `json:"total_seats" db:"total_seats"`
	OccupiedSeats      int        `json:"occupied_seats" db:"occupied_seats"`
	IsOperating        bool       `json:"is_operating" db:"is_operating"`
	PrevStationIdx     int        `json:"prev_station_idx" db:"prev_station_idx"`
	LastLatitude       *float64   `json:"last_latitude,omitempty" db:"last_latitude"`
	LastLongitude      *float64   `json:"last_longitude,omitempty" db:"last_longitude"`
	LastLocationUpdate *time.Time `json:"last_location_update,omitempty" db:"last_location_update"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// AvailableSeats — производное число свободных мест
func (b *Bus) AvailableSeats() int {
	return b.TotalSeats - b.OccupiedSeats
}

// Route — маршрут: упорядоченный список остановок.
type Route struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Stations       []Station `json:"stations"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// FirstStation возвращает начальную остановку маршрута, nil если пусто
func (r *Route) FirstStation() *Station {
	if len(r.Stations) == 0 {
		return nil
	}
	return &r.Stations[0]
}

// LastStation возвращает конечную остановку маршрута, nil если пусто
func (r *Route) LastStation() *Station {
	if len(r.Stations) == 0 {
		return nil
	}
	return &r.Stations[len(r.Stations)-1]
}

// Station — остановка.
type Station struct {
	ID             string  `json:"id" db:"id"`
	Name           string  `json:"name" db:"name"`
	OrganizationID string  `json:"organization_id" db:"organization_id"`
	Latitude       float64 `json:"latitude" db:"latitude"`
	Longitude      float64 `json:"longitude" db:"longitude"`
	Sequence       int     `json:"sequence" db:"sequence"`
}

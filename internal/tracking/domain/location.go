package domain

import "time"

// DriverLocationSample — одна GPS-точка от приложения водителя.
// Транзитное событие: не хранится нигде кроме кэша местоположений.
type DriverLocationSample struct {
	OperationID       string   `json:"operationId"`
	BusNumber         string   `json:"busNumber,omitempty"` // фоллбек для легаси-клиентов
	OrganizationID    string   `json:"organizationId,omitempty"`
	Latitude          float64  `json:"latitude"`
	Longitude         float64  `json:"longitude"`
	CurrentPassengers int      `json:"currentPassengers"`
	Timestamp         int64    `json:"timestamp"` // клиентское время, миллисекунды
	Speed             *float64 `json:"speed,omitempty"`
	Heading           *float64 `json:"heading,omitempty"`
}

// LocationCacheEntry — последняя известная точка рейса.
// Свежесть отслеживается по серверному ReceivedAt, last-write-wins.
type LocationCacheEntry struct {
	Sample     DriverLocationSample
	ReceivedAt time.Time
}

// BusStatus — payload для busUpdate-рассылки пассажирам.
type BusStatus struct {
	OperationID        string  `json:"operationId"`
	BusNumber          string  `json:"busNumber"`
	BusRealNumber      string  `json:"busRealNumber,omitempty"`
	RouteName          string  `json:"routeName,omitempty"`
	OrganizationID     string  `json:"organizationId"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	TotalSeats         int     `json:"totalSeats"`
	CurrentPassengers  int     `json:"currentPassengers"`
	AvailableSeats     int     `json:"availableSeats"`
	CurrentStationName string  `json:"currentStationName,omitempty"`
	DriverName         string  `json:"driverName,omitempty"`
	LastUpdateTime     int64   `json:"lastUpdateTime"`
	IsActive           bool    `json:"isActive"`
}

// BoardingAction — тип действия посадки/высадки
type BoardingAction string

const (
	ActionBoard  BoardingAction = "BOARD"
	ActionAlight BoardingAction = "ALIGHT"
)

// BoardingDetectionResult — результат авто- или ручной посадки/высадки,
// отправляется пассажиру.
type BoardingDetectionResult struct {
	UserID            string         `json:"userId"`
	OperationID       string         `json:"operationId"`
	BusNumber         string         `json:"busNumber,omitempty"`
	Action            BoardingAction `json:"action"`
	AutoDetected      bool           `json:"autoDetected"`
	DetectionDistance float64        `json:"detectionDistance,omitempty"`
	Timestamp         int64          `json:"timestamp"`
	Successful        bool           `json:"successful"`
	Message           string         `json:"message,omitempty"`
}

// TrackingEventType — тип строки аудита трекинга
type TrackingEventType string

const (
	EventLocationUpdate TrackingEventType = "LOCATION_UPDATE"
	EventBoard          TrackingEventType = "BOARD"
	EventAlight         TrackingEventType = "ALIGHT"
)

// TrackingEvent — строка аудита. Пишется best-effort: сбой записи
// логируется и не откатывает вызвавшую мутацию.
type TrackingEvent struct {
	ID             string            `json:"id" db:"id"`
	OperationID    string            `json:"operation_id" db:"operation_id"`
	OrganizationID string            `json:"organization_id" db:"organization_id"`
	EventType      TrackingEventType `json:"event_type" db:"event_type"`
	UserID         string            `json:"user_id,omitempty" db:"user_id"`
	Latitude       float64           `json:"latitude" db:"latitude"`
	Longitude      float64           `json:"longitude" db:"longitude"`
	OccupiedSeats  int               `json:"occupied_seats" db:"occupied_seats"`
	TotalSeats     int               `json:"total_seats" db:"total_seats"`
	OccurredAt     time.Time         `json:"occurred_at" db:"occurred_at"`
}

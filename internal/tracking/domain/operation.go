package domain

import "time"

// OperationStatus — статус рейса.
// Переходы строго вперед: SCHEDULED → IN_PROGRESS → COMPLETED,
// отмена возможна только из SCHEDULED.
type OperationStatus string

const (
	StatusScheduled  OperationStatus = "SCHEDULED"
	StatusInProgress OperationStatus = "IN_PROGRESS"
	StatusCompleted  OperationStatus = "COMPLETED"
	StatusCancelled  OperationStatus = "CANCELLED"
)

// IsValid проверяет, что статус входит в перечисление
func (s OperationStatus) IsValid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal — COMPLETED и CANCELLED конечны
func (s OperationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// allowedTransitions — таблица разрешенных переходов статуса.
// Любой переход вне таблицы — WRONG_STATE.
var allowedTransitions = map[OperationStatus][]OperationStatus{
	StatusScheduled:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// CanTransition отвечает, разрешен ли переход from → to
func CanTransition(from, to OperationStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Operation представляет один рейс автобуса по маршруту.
type Operation struct {
	OperationID         string          `json:"operation_id" db:"operation_id"`
	BusID               string          `json:"bus_id" db:"bus_id"`
	DriverID            string          `json:"driver_id" db:"driver_id"`
	RouteID             string          `json:"route_id" db:"route_id"`
	OrganizationID      string          `json:"organization_id" db:"organization_id"`
	Status              OperationStatus `json:"status" db:"status"`
	ScheduledStart      time.Time       `json:"scheduled_start" db:"scheduled_start"`
	ScheduledEnd        time.Time       `json:"scheduled_end" db:"scheduled_end"`
	ActualStart         *time.Time      `json:"actual_start,omitempty" db:"actual_start"`
	ActualEnd           *time.Time      `json:"actual_end,omitempty" db:"actual_end"`
	TotalPassengers     int             `json:"total_passengers" db:"total_passengers"`
	TotalStopsCompleted int             `json:"total_stops_completed" db:"total_stops_completed"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// Transition проверяет и применяет переход статуса.
// Возвращает WRONG_STATE для недопустимого перехода.
func (o *Operation) Transition(to OperationStatus, now time.Time) error {
	if !to.IsValid() {
		return ErrWrongState("unknown status %q", to)
	}
	if !CanTransition(o.Status, to) {
		return ErrWrongState("cannot transition operation %s from %s to %s", o.OperationID, o.Status, to)
	}

	o.Status = to
	o.UpdatedAt = now
	switch to {
	case StatusInProgress:
		t := now
		o.ActualStart = &t
	case StatusCompleted:
		t := now
		o.ActualEnd = &t
	}
	return nil
}

// OperationSnapshot — то, что возвращается водителю при старте/завершении рейса.
type OperationSnapshot struct {
	OperationID     string          `json:"operation_id"`
	BusID           string          `json:"bus_id"`
	BusNumber       string          `json:"bus_number"`
	BusRealNumber   string          `json:"bus_real_number,omitempty"`
	RouteID         string          `json:"route_id"`
	RouteName       string          `json:"route_name,omitempty"`
	OriginName      string          `json:"origin_name,omitempty"`
	DestinationName string          `json:"destination_name,omitempty"`
	Status          OperationStatus `json:"status"`
	ActualStart     *time.Time      `json:"actual_start,omitempty"`
	ActualEnd       *time.Time      `json:"actual_end,omitempty"`
	TotalPassengers int             `json:"total_passengers"`
	Message         string          `json:"message,omitempty"`
}

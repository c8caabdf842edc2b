package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/config"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/in"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/out"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// StartOperationService реализует StartOperationUseCase.
//
// Старт рейса проверяет все предусловия до первой мутации: при любом
// отказе состояние не меняется.
type StartOperationService struct {
	operationRepo out.OperationRepository
	busRepo       out.BusRepository
	routeRepo     out.RouteRepository
	publisher     out.EventPublisher
	tracking      config.TrackingConfig
	log           *logger.Logger
	now           func() time.Time
}

// NewStartOperationService создает сервис старта рейса
func NewStartOperationService(
	operationRepo out.OperationRepository,
	busRepo out.BusRepository,
	routeRepo out.RouteRepository,
	publisher out.EventPublisher,
	tracking config.TrackingConfig,
	log *logger.Logger,
) *StartOperationService {
	return &StartOperationService{
		operationRepo: operationRepo,
		busRepo:       busRepo,
		routeRepo:     routeRepo,
		publisher:     publisher,
		tracking:      tracking,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Execute выполняет старт рейса водителем
func (s *StartOperationService) Execute(ctx context.Context, input in.StartOperationInput) (*domain.OperationSnapshot, error) {
	if !domain.ValidCoordinates(input.Latitude, input.Longitude) {
		return nil, domain.ErrOutOfRange("invalid coordinates %.6f, %.6f", input.Latitude, input.Longitude)
	}

	op, err := s.operationRepo.FindByID(ctx, input.OperationID)
	if err != nil {
		return nil, fmt.Errorf("find operation: %w", err)
	}
	if op == nil || op.OrganizationID != input.OrganizationID {
		// Чужая организация неотличима от несуществующего рейса
		return nil, domain.ErrNotFound("operation %s not found", input.OperationID)
	}

	if op.Status != domain.StatusScheduled {
		return nil, domain.ErrWrongState("operation %s is %s, expected SCHEDULED", op.OperationID, op.Status)
	}

	if op.DriverID != input.DriverID {
		return nil, domain.ErrAuthz("driver %s is not assigned to operation %s", input.DriverID, op.OperationID)
	}

	bus, err := s.busRepo.FindByID(ctx, op.BusID)
	if err != nil {
		return nil, fmt.Errorf("find bus: %w", err)
	}
	if bus == nil {
		return nil, domain.ErrNotFound("bus %s not found", op.BusID)
	}
	if bus.IsOperating {
		return nil, domain.ErrWrongState("bus %s is already operating", bus.BusNumber)
	}

	// Временная политика: обычный старт — не раньше расписания,
	// досрочный — не раньше чем за EarlyStartAllowance до него
	now := s.now()
	earliest := op.ScheduledStart
	if input.EarlyStart {
		earliest = op.ScheduledStart.Add(-s.tracking.EarlyStartAllowance)
	}
	if now.Before(earliest) {
		return nil, domain.ErrOutOfWindow(
			"operation %s starts at %s, too early by %s",
			op.OperationID, op.ScheduledStart.Format(time.RFC3339), earliest.Sub(now).Round(time.Second),
		)
	}

	// Геозабор: водитель должен быть у начальной остановки маршрута
	route, err := s.routeRepo.FindByID(ctx, op.RouteID)
	if err != nil {
		return nil, fmt.Errorf("find route: %w", err)
	}
	if route == nil || route.FirstStation() == nil {
		return nil, domain.ErrNotFound("route %s has no stations", op.RouteID)
	}
	origin := route.FirstStation()
	dist := domain.DistanceMeters(input.Latitude, input.Longitude, origin.Latitude, origin.Longitude)
	if dist > s.tracking.OriginRadiusMeters {
		return nil, domain.ErrOutOfRange(
			"driver is %.0f m away from origin station %q (allowed %.0f m)",
			dist, origin.Name, s.tracking.OriginRadiusMeters,
		)
	}

	// Все предусловия выполнены — мутируем
	if err := op.Transition(domain.StatusInProgress, now); err != nil {
		return nil, err
	}
	if err := s.operationRepo.Update(ctx, op); err != nil {
		return nil, fmt.Errorf("update operation: %w", err)
	}

	bus.IsOperating = true
	bus.PrevStationIdx = 0
	bus.UpdatedAt = now
	if err := s.busRepo.Update(ctx, bus); err != nil {
		return nil, fmt.Errorf("update bus: %w", err)
	}

	s.log.Info(logger.Entry{
		Action:      "operation_started",
		Message:     op.OperationID,
		OperationID: op.OperationID,
		Additional: map[string]any{
			"driver_id":  op.DriverID,
			"bus_number": bus.BusNumber,
			"distance_m": dist,
		},
	})

	if err := s.publisher.PublishOperationEvent(ctx, "OPERATION_STARTED", out.OperationEventData{
		OperationID:    op.OperationID,
		OrganizationID: op.OrganizationID,
		BusID:          op.BusID,
		DriverID:       op.DriverID,
		Status:         string(op.Status),
	}); err != nil {
		// Публикация события не откатывает старт
		s.log.Error(logger.Entry{
			Action:      "publish_operation_started_failed",
			Message:     err.Error(),
			OperationID: op.OperationID,
			Error:       &logger.ErrObj{Msg: err.Error()},
		})
	}

	snapshot := &domain.OperationSnapshot{
		OperationID:     op.OperationID,
		BusID:           bus.ID,
		BusNumber:       bus.BusNumber,
		BusRealNumber:   bus.BusRealNumber,
		RouteID:         route.ID,
		RouteName:       route.Name,
		OriginName:      origin.Name,
		Status:          op.Status,
		ActualStart:     op.ActualStart,
		TotalPassengers: op.TotalPassengers,
		Message:         "operation started",
	}
	if last := route.LastStation(); last != nil {
		snapshot.DestinationName = last.Name
	}
	return snapshot, nil
}

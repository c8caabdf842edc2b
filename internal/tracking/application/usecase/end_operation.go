package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/config"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/in"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/out"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/cache"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// EndOperationService реализует EndOperationUseCase.
//
// Близость к конечной остановке только подсказка водителю, завершить
// рейс можно из любой точки.
type EndOperationService struct {
	operationRepo out.OperationRepository
	busRepo       out.BusRepository
	routeRepo     out.RouteRepository
	publisher     out.EventPublisher
	locations     *cache.LocationCache
	tracking      config.TrackingConfig
	log           *logger.Logger
	now           func() time.Time
}

// NewEndOperationService создает сервис завершения рейса
func NewEndOperationService(
	operationRepo out.OperationRepository,
	busRepo out.BusRepository,
	routeRepo out.RouteRepository,
	publisher out.EventPublisher,
	locations *cache.LocationCache,
	tracking config.TrackingConfig,
	log *logger.Logger,
) *EndOperationService {
	return &EndOperationService{
		operationRepo: operationRepo,
		busRepo:       busRepo,
		routeRepo:     routeRepo,
		publisher:     publisher,
		locations:     locations,
		tracking:      tracking,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Execute выполняет завершение рейса водителем
func (s *EndOperationService) Execute(ctx context.Context, input in.EndOperationInput) (*domain.OperationSnapshot, error) {
	op, err := s.operationRepo.FindByID(ctx, input.OperationID)
	if err != nil {
		return nil, fmt.Errorf("find operation: %w", err)
	}
	if op == nil || op.OrganizationID != input.OrganizationID {
		return nil, domain.ErrNotFound("operation %s not found", input.OperationID)
	}

	if op.Status != domain.StatusInProgress {
		return nil, domain.ErrWrongState("operation %s is %s, expected IN_PROGRESS", op.OperationID, op.Status)
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

	now := s.now()
	if err := op.Transition(domain.StatusCompleted, now); err != nil {
		return nil, err
	}
	if err := s.operationRepo.Update(ctx, op); err != nil {
		return nil, fmt.Errorf("update operation: %w", err)
	}

	bus.IsOperating = false
	bus.OccupiedSeats = 0
	bus.UpdatedAt = now
	if err := s.busRepo.Update(ctx, bus); err != nil {
		return nil, fmt.Errorf("update bus: %w", err)
	}

	// Рейс завершен — точка больше не нужна
	s.locations.Evict(op.OperationID)

	snapshot := &domain.OperationSnapshot{
		OperationID:     op.OperationID,
		BusID:           bus.ID,
		BusNumber:       bus.BusNumber,
		BusRealNumber:   bus.BusRealNumber,
		RouteID:         op.RouteID,
		Status:          op.Status,
		ActualStart:     op.ActualStart,
		ActualEnd:       op.ActualEnd,
		TotalPassengers: op.TotalPassengers,
		Message:         "operation completed",
	}

	// Совещательная проверка близости к конечной остановке
	if route, rerr := s.routeRepo.FindByID(ctx, op.RouteID); rerr == nil && route != nil {
		snapshot.RouteName = route.Name
		if last := route.LastStation(); last != nil {
			snapshot.DestinationName = last.Name
			dist := domain.DistanceMeters(input.Latitude, input.Longitude, last.Latitude, last.Longitude)
			if dist > s.tracking.OriginRadiusMeters {
				snapshot.Message = fmt.Sprintf("operation completed %.0f m away from destination %q", dist, last.Name)
			}
		}
	}

	s.log.Info(logger.Entry{
		Action:      "operation_completed",
		Message:     op.OperationID,
		OperationID: op.OperationID,
		Additional: map[string]any{
			"driver_id":  op.DriverID,
			"bus_number": bus.BusNumber,
			"end_reason": input.EndReason,
		},
	})

	if err := s.publisher.PublishOperationEvent(ctx, "OPERATION_COMPLETED", out.OperationEventData{
		OperationID:    op.OperationID,
		OrganizationID: op.OrganizationID,
		BusID:          op.BusID,
		DriverID:       op.DriverID,
		Status:         string(op.Status),
		AdditionalData: map[string]interface{}{"end_reason": input.EndReason},
	}); err != nil {
		s.log.Error(logger.Entry{
			Action:      "publish_operation_completed_failed",
			Message:     err.Error(),
			OperationID: op.OperationID,
			Error:       &logger.ErrObj{Msg: err.Error()},
		})
	}

	return snapshot, nil
}

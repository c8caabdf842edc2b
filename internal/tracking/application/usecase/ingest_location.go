package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/utils"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/out"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/cache"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// IngestLocationService реализует IngestLocationUseCase.
//
// Поток данных: точка водителя → кэш → рассылка пассажирам организации
// и fanout в RabbitMQ. Если рейс не IN_PROGRESS, точка отклоняется до
// любых мутаций: ни записи в кэш, ни рассылки.
type IngestLocationService struct {
	operationRepo out.OperationRepository
	busRepo       out.BusRepository
	routeRepo     out.RouteRepository
	eventRepo     out.TrackingEventRepository
	locations     *cache.LocationCache
	broadcaster   out.StatusBroadcaster
	publisher     out.EventPublisher
	log           *logger.Logger
	now           func() time.Time
}

// NewIngestLocationService создает сервис приема точек водителя
func NewIngestLocationService(
	operationRepo out.OperationRepository,
	busRepo out.BusRepository,
	routeRepo out.RouteRepository,
	eventRepo out.TrackingEventRepository,
	locations *cache.LocationCache,
	broadcaster out.StatusBroadcaster,
	publisher out.EventPublisher,
	log *logger.Logger,
) *IngestLocationService {
	return &IngestLocationService{
		operationRepo: operationRepo,
		busRepo:       busRepo,
		routeRepo:     routeRepo,
		eventRepo:     eventRepo,
		locations:     locations,
		broadcaster:   broadcaster,
		publisher:     publisher,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Execute принимает одну GPS-точку от водителя
func (s *IngestLocationService) Execute(ctx context.Context, sample domain.DriverLocationSample) (*domain.BusStatus, error) {
	if !domain.ValidCoordinates(sample.Latitude, sample.Longitude) {
		return nil, domain.ErrOutOfRange("invalid coordinates %.6f, %.6f", sample.Latitude, sample.Longitude)
	}

	op, err := s.operationRepo.FindByID(ctx, sample.OperationID)
	if err != nil {
		return nil, fmt.Errorf("find operation: %w", err)
	}
	if op == nil {
		return nil, domain.ErrNotFound("operation %s not found", sample.OperationID)
	}
	if op.Status != domain.StatusInProgress {
		return nil, domain.ErrWrongState("operation %s is %s, location ignored", op.OperationID, op.Status)
	}

	bus, err := s.busRepo.FindByID(ctx, op.BusID)
	if err != nil {
		return nil, fmt.Errorf("find bus: %w", err)
	}
	if bus == nil {
		return nil, domain.ErrNotFound("bus %s not found", op.BusID)
	}

	now := s.now()
	sample.OrganizationID = op.OrganizationID
	sample.BusNumber = bus.BusNumber

	// Отчет водителя не может превышать вместимость автобуса
	if sample.CurrentPassengers > bus.TotalSeats {
		s.log.Warn(logger.Entry{
			Action:      "passenger_count_clamped",
			Message:     fmt.Sprintf("reported %d passengers, bus %s has %d seats", sample.CurrentPassengers, bus.BusNumber, bus.TotalSeats),
			OperationID: op.OperationID,
		})
		sample.CurrentPassengers = bus.TotalSeats
	}

	s.locations.Put(sample, now)

	// Счетчик пассажиров рейса берется из отчета водителя
	if sample.CurrentPassengers >= 0 && sample.CurrentPassengers != op.TotalPassengers {
		op.TotalPassengers = sample.CurrentPassengers
		op.UpdatedAt = now
		if uerr := s.operationRepo.Update(ctx, op); uerr != nil {
			s.log.Error(logger.Entry{
				Action:      "update_passenger_count_failed",
				Message:     uerr.Error(),
				OperationID: op.OperationID,
				Error:       &logger.ErrObj{Msg: uerr.Error()},
			})
		} else if serr := s.busRepo.SetOccupiedSeats(ctx, bus.ID, sample.CurrentPassengers); serr == nil {
			bus.OccupiedSeats = sample.CurrentPassengers
		}
	}

	if uerr := s.busRepo.UpdateLocation(ctx, bus.ID, sample.Latitude, sample.Longitude, now); uerr != nil {
		s.log.Error(logger.Entry{
			Action:      "update_bus_location_failed",
			Message:     uerr.Error(),
			OperationID: op.OperationID,
			Error:       &logger.ErrObj{Msg: uerr.Error()},
		})
	}

	// Аудит best-effort
	if aerr := s.eventRepo.Save(ctx, &domain.TrackingEvent{
		ID:             utils.NewUUID(),
		OperationID:    op.OperationID,
		OrganizationID: op.OrganizationID,
		EventType:      domain.EventLocationUpdate,
		Latitude:       sample.Latitude,
		Longitude:      sample.Longitude,
		OccupiedSeats:  op.TotalPassengers,
		TotalSeats:     bus.TotalSeats,
		OccurredAt:     now,
	}); aerr != nil {
		s.log.Warn(logger.Entry{
			Action:      "save_tracking_event_failed",
			Message:     aerr.Error(),
			OperationID: op.OperationID,
		})
	}

	status := domain.BusStatus{
		OperationID:       op.OperationID,
		BusNumber:         bus.BusNumber,
		BusRealNumber:     bus.BusRealNumber,
		OrganizationID:    op.OrganizationID,
		Latitude:          sample.Latitude,
		Longitude:         sample.Longitude,
		TotalSeats:        bus.TotalSeats,
		CurrentPassengers: op.TotalPassengers,
		AvailableSeats:    bus.TotalSeats - op.TotalPassengers,
		LastUpdateTime:    now.UnixMilli(),
		IsActive:          true,
	}
	if route, rerr := s.routeRepo.FindByID(ctx, op.RouteID); rerr == nil && route != nil {
		status.RouteName = route.Name
		if bus.PrevStationIdx >= 0 && bus.PrevStationIdx < len(route.Stations) {
			status.CurrentStationName = route.Stations[bus.PrevStationIdx].Name
		}
	}

	// Fire-and-forget: сбой рассылки или fanout не влияет на прием точки
	s.broadcaster.BroadcastToOrganization(op.OrganizationID, status)
	if perr := s.publisher.PublishLocation(ctx, status); perr != nil {
		s.log.Warn(logger.Entry{
			Action:      "publish_location_failed",
			Message:     perr.Error(),
			OperationID: op.OperationID,
		})
	}

	return &status, nil
}

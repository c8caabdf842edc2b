package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/in"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/out"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// AdjustPassengersService реализует AdjustPassengersUseCase.
//
// Единственная точка мутации счетчика пассажиров: сюда приходят и ручные,
// и автоматически обнаруженные посадки/высадки. Само изменение атомарно
// внутри репозитория (conditional update), поэтому гонка авто-детекции
// с ручным действием не теряет инкременты.
type AdjustPassengersService struct {
	operationRepo out.OperationRepository
	busRepo       out.BusRepository
	broadcaster   out.StatusBroadcaster
	log           *logger.Logger
	now           func() time.Time
}

// NewAdjustPassengersService создает сервис изменения счетчика пассажиров
func NewAdjustPassengersService(
	operationRepo out.OperationRepository,
	busRepo out.BusRepository,
	broadcaster out.StatusBroadcaster,
	log *logger.Logger,
) *AdjustPassengersService {
	return &AdjustPassengersService{
		operationRepo: operationRepo,
		busRepo:       busRepo,
		broadcaster:   broadcaster,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Execute атомарно изменяет счетчик, возвращает новое значение
func (s *AdjustPassengersService) Execute(ctx context.Context, input in.AdjustPassengersInput) (int, error) {
	if input.Delta == 0 {
		return 0, domain.ErrCapacity("delta must be non-zero")
	}

	newCount, err := s.operationRepo.AdjustPassengerCount(ctx, input.OperationID, input.Delta)
	if err != nil {
		return 0, err
	}

	s.log.Info(logger.Entry{
		Action:      "passenger_count_adjusted",
		Message:     fmt.Sprintf("delta=%+d count=%d", input.Delta, newCount),
		OperationID: input.OperationID,
	})

	// Зеркалируем занятые места на автобус; сбой не откатывает счетчик,
	// следующая корректировка выровняет
	op, ferr := s.operationRepo.FindByID(ctx, input.OperationID)
	if ferr != nil || op == nil {
		return newCount, nil
	}
	if serr := s.busRepo.SetOccupiedSeats(ctx, op.BusID, newCount); serr != nil {
		s.log.Error(logger.Entry{
			Action:      "mirror_occupied_seats_failed",
			Message:     serr.Error(),
			OperationID: input.OperationID,
			Error:       &logger.ErrObj{Msg: serr.Error()},
		})
	}

	// Fire-and-forget рассылка нового состояния мест
	if bus, berr := s.busRepo.FindByID(ctx, op.BusID); berr == nil && bus != nil {
		status := domain.BusStatus{
			OperationID:       op.OperationID,
			BusNumber:         bus.BusNumber,
			BusRealNumber:     bus.BusRealNumber,
			OrganizationID:    op.OrganizationID,
			TotalSeats:        bus.TotalSeats,
			CurrentPassengers: newCount,
			AvailableSeats:    bus.TotalSeats - newCount,
			LastUpdateTime:    s.now().UnixMilli(),
			IsActive:          op.Status == domain.StatusInProgress,
		}
		if bus.LastLatitude != nil && bus.LastLongitude != nil {
			status.Latitude = *bus.LastLatitude
			status.Longitude = *bus.LastLongitude
		}
		s.broadcaster.BroadcastToOrganization(op.OrganizationID, status)
	}

	return newCount, nil
}

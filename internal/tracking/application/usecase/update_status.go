package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/in"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/out"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/cache"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// UpdateStatusService реализует UpdateStatusUseCase — административный
// перевод статуса в обход водительского потока (принудительная отмена,
// авто-закрытие). Таблица переходов та же: перевести завершенный или
// отмененный рейс куда-либо нельзя.
type UpdateStatusService struct {
	operationRepo out.OperationRepository
	busRepo       out.BusRepository
	publisher     out.EventPublisher
	locations     *cache.LocationCache
	log           *logger.Logger
	now           func() time.Time
}

// NewUpdateStatusService создает сервис административного перевода статуса
func NewUpdateStatusService(
	operationRepo out.OperationRepository,
	busRepo out.BusRepository,
	publisher out.EventPublisher,
	locations *cache.LocationCache,
	log *logger.Logger,
) *UpdateStatusService {
	return &UpdateStatusService{
		operationRepo: operationRepo,
		busRepo:       busRepo,
		publisher:     publisher,
		locations:     locations,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Execute выполняет перевод статуса рейса
func (s *UpdateStatusService) Execute(ctx context.Context, input in.UpdateStatusInput) (*domain.Operation, error) {
	op, err := s.operationRepo.FindByID(ctx, input.OperationID)
	if err != nil {
		return nil, fmt.Errorf("find operation: %w", err)
	}
	if op == nil {
		return nil, domain.ErrNotFound("operation %s not found", input.OperationID)
	}

	wasInProgress := op.Status == domain.StatusInProgress

	now := s.now()
	if err := op.Transition(input.NewStatus, now); err != nil {
		return nil, err
	}

	if input.PassengerCountHint != nil {
		op.TotalPassengers = *input.PassengerCountHint
	}
	if input.StopsCompletedHint != nil {
		op.TotalStopsCompleted = *input.StopsCompletedHint
	}

	if err := s.operationRepo.Update(ctx, op); err != nil {
		return nil, fmt.Errorf("update operation: %w", err)
	}

	// Рейс ушел из IN_PROGRESS — гасим автобус и убираем точку из кэша
	if wasInProgress && op.Status != domain.StatusInProgress {
		s.locations.Evict(op.OperationID)

		if bus, berr := s.busRepo.FindByID(ctx, op.BusID); berr == nil && bus != nil {
			bus.IsOperating = false
			bus.OccupiedSeats = 0
			bus.UpdatedAt = now
			if uerr := s.busRepo.Update(ctx, bus); uerr != nil {
				s.log.Error(logger.Entry{
					Action:      "release_bus_failed",
					Message:     uerr.Error(),
					OperationID: op.OperationID,
					Error:       &logger.ErrObj{Msg: uerr.Error()},
				})
			}
		}
	}

	s.log.Info(logger.Entry{
		Action:      "operation_status_updated",
		Message:     fmt.Sprintf("%s -> %s", op.OperationID, op.Status),
		OperationID: op.OperationID,
		Additional: map[string]any{
			"reason": input.Reason,
		},
	})

	eventType := "OPERATION_COMPLETED"
	if op.Status == domain.StatusCancelled {
		eventType = "OPERATION_CANCELLED"
	} else if op.Status == domain.StatusInProgress {
		eventType = "OPERATION_STARTED"
	}
	if err := s.publisher.PublishOperationEvent(ctx, eventType, out.OperationEventData{
		OperationID:    op.OperationID,
		OrganizationID: op.OrganizationID,
		BusID:          op.BusID,
		DriverID:       op.DriverID,
		Status:         string(op.Status),
		AdditionalData: map[string]interface{}{"reason": input.Reason},
	}); err != nil {
		s.log.Error(logger.Entry{
			Action:      "publish_status_update_failed",
			Message:     err.Error(),
			OperationID: op.OperationID,
			Error:       &logger.ErrObj{Msg: err.Error()},
		})
	}

	return op, nil
}

package usecase

import (
	"context"
	"fmt"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/out"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// Потолок выдачи расписания водителя за один запрос
const maxDriverOperations = 20

// OperationQueryService реализует OperationQueriesUseCase поверх
// репозитория рейсов
type OperationQueryService struct {
	operationRepo out.OperationRepository
	log           *logger.Logger
}

// NewOperationQueryService создает сервис запросов рейсов
func NewOperationQueryService(operationRepo out.OperationRepository, log *logger.Logger) *OperationQueryService {
	return &OperationQueryService{
		operationRepo: operationRepo,
		log:           log,
	}
}

// ActiveOperations возвращает рейсы организации в статусе IN_PROGRESS
func (s *OperationQueryService) ActiveOperations(ctx context.Context, organizationID string) ([]*domain.Operation, error) {
	ops, err := s.operationRepo.FindByOrganizationAndStatus(ctx, organizationID, domain.StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("find active operations: %w", err)
	}
	return ops, nil
}

// DriverOperations возвращает рейсы водителя
func (s *OperationQueryService) DriverOperations(ctx context.Context, driverID string, limit int) ([]*domain.Operation, error) {
	if limit <= 0 || limit > maxDriverOperations {
		limit = maxDriverOperations
	}
	ops, err := s.operationRepo.FindByDriver(ctx, driverID, limit)
	if err != nil {
		return nil, fmt.Errorf("find driver operations: %w", err)
	}
	return ops, nil
}

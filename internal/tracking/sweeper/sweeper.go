// Фоновые чистки: протухшие точки в кэше, простаивающие состояния
// пассажиров, авто-закрытие брошенных рейсов.
//
// Свипы идут теми же путями мутации, что и интерактивный API (никакого
// теневого состояния), поэтому инварианты не расходятся. Гонка с
// интерактивной мутацией по тому же ключу разрешается повторной
// проверкой статуса перед принудительным закрытием.
package sweeper

import (
	"context"
	"time"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/config"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	portsin "github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/in"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/out"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/cache"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/detector"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// Sweeper периодически чистит кэши и закрывает брошенные рейсы.
type Sweeper struct {
	locations     *cache.LocationCache
	engine        *detector.Engine
	operationRepo out.OperationRepository
	updateStatus  portsin.UpdateStatusUseCase
	tracking      config.TrackingConfig
	log           *logger.Logger
	now           func() time.Time
}

// NewSweeper создает свипер
func NewSweeper(
	locations *cache.LocationCache,
	engine *detector.Engine,
	operationRepo out.OperationRepository,
	updateStatus portsin.UpdateStatusUseCase,
	tracking config.TrackingConfig,
	log *logger.Logger,
) *Sweeper {
	return &Sweeper{
		locations:     locations,
		engine:        engine,
		operationRepo: operationRepo,
		updateStatus:  updateStatus,
		tracking:      tracking,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Run запускает оба цикла чистки до отмены контекста
func (s *Sweeper) Run(ctx context.Context) {
	cacheTicker := time.NewTicker(s.tracking.CacheSweepInterval)
	closeTicker := time.NewTicker(s.tracking.AutoCloseInterval)
	defer cacheTicker.Stop()
	defer closeTicker.Stop()

	s.log.Info(logger.Entry{Action: "sweeper_started", Message: "maintenance sweeper running"})

	for {
		select {
		case <-ctx.Done():
			s.log.Info(logger.Entry{Action: "sweeper_stopped", Message: "maintenance sweeper stopped"})
			return
		case <-cacheTicker.C:
			s.SweepCaches()
		case <-closeTicker.C:
			s.CloseAbandoned(ctx)
		}
	}
}

// SweepCaches удаляет точки старше LocationTTL (приложение водителя
// считается отключившимся) и состояния пассажиров без обновлений
// дольше PassengerIdleTTL
func (s *Sweeper) SweepCaches() {
	now := s.now()
	evictedLocations := s.locations.EvictExpired(s.tracking.LocationTTL, now)
	evictedPassengers := s.engine.EvictIdle(s.tracking.PassengerIdleTTL)

	if evictedLocations > 0 || evictedPassengers > 0 {
		s.log.Info(logger.Entry{
			Action:  "cache_swept",
			Message: "stale entries evicted",
			Additional: map[string]any{
				"locations":  evictedLocations,
				"passengers": evictedPassengers,
			},
		})
	}
}

// CloseAbandoned принудительно завершает рейсы, у которых scheduled_end
// в прошлом, статус SCHEDULED или IN_PROGRESS и не было обновлений
// дольше AbandonAfter
func (s *Sweeper) CloseAbandoned(ctx context.Context) {
	now := s.now()
	abandoned, err := s.operationRepo.FindAbandoned(ctx, now, now.Add(-s.tracking.AbandonAfter))
	if err != nil {
		s.log.Error(logger.Entry{
			Action:  "find_abandoned_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return
	}

	for _, op := range abandoned {
		// Между выборкой и закрытием рейс мог завершить водитель
		if op.Status != domain.StatusScheduled && op.Status != domain.StatusInProgress {
			continue
		}

		// SCHEDULED нельзя перевести в COMPLETED напрямую: брошенный
		// так и не начатый рейс отменяется
		target := domain.StatusCompleted
		if op.Status == domain.StatusScheduled {
			target = domain.StatusCancelled
		}

		if _, err := s.updateStatus.Execute(ctx, portsin.UpdateStatusInput{
			OperationID: op.OperationID,
			NewStatus:   target,
			Reason:      "auto-closed: abandoned operation",
		}); err != nil {
			// WRONG_STATE здесь означает проигранную гонку, это нормально
			s.log.Warn(logger.Entry{
				Action:      "auto_close_failed",
				Message:     err.Error(),
				OperationID: op.OperationID,
			})
			continue
		}

		// UpdateStatus уже убрал точку из кэша при уходе из IN_PROGRESS;
		// подстраховка для SCHEDULED-веток
		s.locations.Evict(op.OperationID)

		s.log.Info(logger.Entry{
			Action:      "operation_auto_closed",
			Message:     op.OperationID,
			OperationID: op.OperationID,
			Additional: map[string]any{
				"previous_status": string(op.Status),
				"scheduled_end":   op.ScheduledEnd,
			},
		})
	}
}

// Движок автоматического определения посадки и высадки пассажиров.
//
// Машина состояний на пассажира: OFF_BUS и ON_BUS, с дебаунс-счетчиками
// против одиночных шумных сэмплов (GPS-дрожание, прохожий рядом со
// стоящим автобусом). Одиночная близость ненадежна; несколько подряд
// идущих сэмплов при типичном интервале обновления мобильного клиента
// дают несколько секунд нахождения рядом, что уже коррелирует с
// реальной посадкой.
package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/config"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/utils"
	portsin "github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/in"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/out"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/cache"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// Engine потребляет GPS-сэмплы пассажиров и кэш позиций автобусов,
// выдавая дебаунсированные события посадки/высадки. Фиксация события
// идет через общий AdjustPassengersUseCase — тот же путь, что и у
// ручных действий.
type Engine struct {
	locations     *cache.LocationCache
	adjuster      portsin.AdjustPassengersUseCase
	operationRepo out.OperationRepository
	eventRepo     out.TrackingEventRepository
	publisher     out.EventPublisher
	states        *stateTable
	tracking      config.TrackingConfig
	log           *logger.Logger
	now           func() time.Time
}

// NewEngine создает движок обнаружения посадки
func NewEngine(
	locations *cache.LocationCache,
	adjuster portsin.AdjustPassengersUseCase,
	operationRepo out.OperationRepository,
	eventRepo out.TrackingEventRepository,
	publisher out.EventPublisher,
	tracking config.TrackingConfig,
	log *logger.Logger,
) *Engine {
	return &Engine{
		locations:     locations,
		adjuster:      adjuster,
		operationRepo: operationRepo,
		eventRepo:     eventRepo,
		publisher:     publisher,
		states:        newStateTable(),
		tracking:      tracking,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ProcessLocation обрабатывает один GPS-сэмпл пассажира.
// Возвращает результат только при фиксации события (посадка, высадка,
// принудительная высадка), иначе nil.
func (e *Engine) ProcessLocation(ctx context.Context, userID, organizationID string, lat, lon float64) (*domain.BoardingDetectionResult, error) {
	if !domain.ValidCoordinates(lat, lon) {
		return nil, domain.ErrOutOfRange("invalid coordinates %.6f, %.6f", lat, lon)
	}

	now := e.now()

	for {
		cur := e.states.loadOrInit(userID, organizationID, now)

		// Фильтр GPS-скачков: телепортация на сотни метров за секунды —
		// недостоверный сэмпл, игнорируем целиком
		if e.tracking.GPSJumpMeters > 0 && !cur.LastUpdate.IsZero() && cur.Latitude != 0 {
			jump := domain.DistanceMeters(cur.Latitude, cur.Longitude, lat, lon)
			if jump > e.tracking.GPSJumpMeters && now.Sub(cur.LastUpdate) < e.tracking.GPSJumpWindow {
				e.log.Debug(logger.Entry{
					Action:  "gps_jump_ignored",
					Message: userID,
					Additional: map[string]any{
						"jump_m": jump,
					},
				})
				return nil, nil
			}
		}

		next := cur.clone()
		next.Latitude = lat
		next.Longitude = lon
		next.LastUpdate = now

		if !cur.OnBus {
			commit, dist := e.evaluateBoarding(next)
			if !e.states.compareAndSwap(cur, next) {
				continue // конкурентный сэмпл того же пассажира, пересчитываем
			}
			if !commit {
				return nil, nil
			}
			return e.commitBoard(ctx, next, dist)
		}

		action, dist := e.evaluateAlighting(next)
		if !e.states.compareAndSwap(cur, next) {
			continue
		}
		switch action {
		case alightCommit:
			return e.commitAlight(ctx, next, cur.CurrentOperationID, dist, "alighting detected")
		case alightForced:
			// Рейс закончился без ручной высадки: без дебаунса, счетчик
			// рейса не трогаем (он уже не IN_PROGRESS)
			return &domain.BoardingDetectionResult{
				UserID:       userID,
				OperationID:  cur.CurrentOperationID,
				Action:       domain.ActionAlight,
				AutoDetected: true,
				Timestamp:    now.UnixMilli(),
				Successful:   true,
				Message:      "operation ended, passenger marked off bus",
			}, nil
		}
		return nil, nil
	}
}

// evaluateBoarding выполняет оценку кандидата на посадку для OFF_BUS.
// Модифицирует next in-place; true — счетчик дошел до порога и next уже
// переведен в ON_BUS (фиксация остается за commitBoard).
func (e *Engine) evaluateBoarding(next *PassengerState) (commit bool, distance float64) {
	snapshot := e.locations.SnapshotByOrganization(next.OrganizationID)

	// Ближайший автобус организации с закэшированной точкой
	bestID := ""
	bestDist := 0.0
	for opID, entry := range snapshot {
		d := domain.DistanceMeters(next.Latitude, next.Longitude, entry.Sample.Latitude, entry.Sample.Longitude)
		if bestID == "" || d < bestDist {
			bestID = opID
			bestDist = d
		}
	}

	if bestID == "" || bestDist > e.tracking.BoardingRadiusMeters {
		// Никого рядом — пассажир остается OFF_BUS, дебаунс с нуля
		next.PendingOperationID = ""
		next.BoardingCount = 0
		return false, 0
	}

	if bestID != next.PendingOperationID {
		// Сменился ближайший кандидат — счетчик заново
		next.PendingOperationID = bestID
		next.BoardingCount = 1
		return false, 0
	}

	next.BoardingCount++
	if next.BoardingCount < e.tracking.DetectionSamples {
		return false, 0
	}

	// Порог достигнут: оптимистично переводим в ON_BUS, откат при
	// CAPACITY сделает commitBoard
	boardedAt := next.LastUpdate
	next.OnBus = true
	next.CurrentOperationID = bestID
	next.PendingOperationID = ""
	next.BoardingCount = 0
	next.AlightingCount = 0
	next.BoardedAt = &boardedAt
	return true, bestDist
}

type alightAction int

const (
	alightNone alightAction = iota
	alightCommit
	alightForced
)

// evaluateAlighting выполняет оценку высадки для ON_BUS.
// Модифицирует next in-place.
func (e *Engine) evaluateAlighting(next *PassengerState) (alightAction, float64) {
	entry, ok := e.locations.Get(next.CurrentOperationID)
	if !ok {
		// Точки рейса больше нет — рейс точно закончился, высаживаем
		// немедленно без дебаунса
		next.OnBus = false
		next.CurrentOperationID = ""
		next.PendingOperationID = ""
		next.BoardingCount = 0
		next.AlightingCount = 0
		next.BoardedAt = nil
		return alightForced, 0
	}

	dist := domain.DistanceMeters(next.Latitude, next.Longitude, entry.Sample.Latitude, entry.Sample.Longitude)
	if dist <= e.tracking.AlightingRadiusMeters {
		// Все еще рядом с автобусом
		next.AlightingCount = 0
		return alightNone, dist
	}

	next.AlightingCount++
	if next.AlightingCount < e.tracking.DetectionSamples {
		return alightNone, dist
	}

	next.OnBus = false
	next.CurrentOperationID = ""
	next.AlightingCount = 0
	next.BoardedAt = nil
	return alightCommit, dist
}

// commitBoard фиксирует посадку: +1 к счетчику рейса.
// CAPACITY не переводит пассажира в ON_BUS: автобус полон, дебаунс
// начнется заново — вдруг место освободится.
func (e *Engine) commitBoard(ctx context.Context, state *PassengerState, distance float64) (*domain.BoardingDetectionResult, error) {
	operationID := state.CurrentOperationID
	now := e.now()

	newCount, err := e.adjuster.Execute(ctx, portsin.AdjustPassengersInput{
		OperationID: operationID,
		Delta:       +1,
	})
	if err != nil {
		// Откат в OFF_BUS одним CAS-ом: если между оптимистичным
		// переходом и откатом успел ручной переход, он побеждает
		rolled := state.clone()
		rolled.OnBus = false
		rolled.CurrentOperationID = ""
		rolled.PendingOperationID = ""
		rolled.BoardingCount = 0
		rolled.BoardedAt = nil
		e.states.compareAndSwap(state, rolled)

		if domain.KindOf(err) == domain.KindCapacity {
			return &domain.BoardingDetectionResult{
				UserID:            state.UserID,
				OperationID:       operationID,
				Action:            domain.ActionBoard,
				AutoDetected:      true,
				DetectionDistance: distance,
				Timestamp:         now.UnixMilli(),
				Successful:        false,
				Message:           "bus is full",
			}, nil
		}
		return nil, err
	}

	e.log.Info(logger.Entry{
		Action:      "boarding_detected",
		Message:     state.UserID,
		OperationID: operationID,
		Additional: map[string]any{
			"distance_m":      distance,
			"passenger_count": newCount,
		},
	})
	e.recordEvent(ctx, operationID, state, domain.EventBoard, newCount)
	e.publishEvent(ctx, "PASSENGER_BOARDED", operationID, state, newCount)

	busNumber := ""
	if entry, ok := e.locations.Get(operationID); ok {
		busNumber = entry.Sample.BusNumber
	}
	return &domain.BoardingDetectionResult{
		UserID:            state.UserID,
		OperationID:       operationID,
		BusNumber:         busNumber,
		Action:            domain.ActionBoard,
		AutoDetected:      true,
		DetectionDistance: distance,
		Timestamp:         now.UnixMilli(),
		Successful:        true,
		Message:           fmt.Sprintf("boarding detected at %.0f m", distance),
	}, nil
}

// commitAlight фиксирует высадку: -1 к счетчику рейса
func (e *Engine) commitAlight(ctx context.Context, state *PassengerState, operationID string, distance float64, message string) (*domain.BoardingDetectionResult, error) {
	now := e.now()

	newCount, err := e.adjuster.Execute(ctx, portsin.AdjustPassengersInput{
		OperationID: operationID,
		Delta:       -1,
	})
	if err != nil {
		// Рейс мог закончиться между сэмплами; пассажир в любом случае
		// уже OFF_BUS, счетчик чинить нечем
		e.log.Warn(logger.Entry{
			Action:      "alight_adjust_failed",
			Message:     err.Error(),
			OperationID: operationID,
		})
	} else {
		e.recordEvent(ctx, operationID, state, domain.EventAlight, newCount)
		e.publishEvent(ctx, "PASSENGER_ALIGHTED", operationID, state, newCount)
	}

	e.log.Info(logger.Entry{
		Action:      "alighting_detected",
		Message:     state.UserID,
		OperationID: operationID,
		Additional: map[string]any{
			"distance_m": distance,
		},
	})

	busNumber := ""
	if entry, ok := e.locations.Get(operationID); ok {
		busNumber = entry.Sample.BusNumber
	}
	return &domain.BoardingDetectionResult{
		UserID:            state.UserID,
		OperationID:       operationID,
		BusNumber:         busNumber,
		Action:            domain.ActionAlight,
		AutoDetected:      true,
		DetectionDistance: distance,
		Timestamp:         now.UnixMilli(),
		Successful:        true,
		Message:           message,
	}, nil
}

// ManualBoard — ручная посадка. Резолвит активный рейс по номеру
// автобуса, минует дебаунс целиком; счетчики сбрасываются, чтобы
// следующий сэмпл не дал немедленной конфликтующей авто-детекции.
func (e *Engine) ManualBoard(ctx context.Context, userID, organizationID, busNumber string) (*domain.BoardingDetectionResult, error) {
	op, err := e.operationRepo.FindInProgressByBusNumber(ctx, organizationID, busNumber)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, domain.ErrNotFound("no active operation for bus %s", busNumber)
	}

	now := e.now()
	newCount, err := e.adjuster.Execute(ctx, portsin.AdjustPassengersInput{
		OperationID: op.OperationID,
		Delta:       +1,
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindCapacity {
			return &domain.BoardingDetectionResult{
				UserID:      userID,
				OperationID: op.OperationID,
				BusNumber:   busNumber,
				Action:      domain.ActionBoard,
				Timestamp:   now.UnixMilli(),
				Successful:  false,
				Message:     "bus is full",
			}, nil
		}
		return nil, err
	}

	state := e.states.loadOrInit(userID, organizationID, now).clone()
	state.OnBus = true
	state.CurrentOperationID = op.OperationID
	state.PendingOperationID = ""
	state.BoardingCount = 0
	state.AlightingCount = 0
	state.BoardedAt = &now
	state.LastUpdate = now
	e.states.put(state)

	e.recordEvent(ctx, op.OperationID, state, domain.EventBoard, newCount)
	e.publishEvent(ctx, "PASSENGER_BOARDED", op.OperationID, state, newCount)
	return &domain.BoardingDetectionResult{
		UserID:      userID,
		OperationID: op.OperationID,
		BusNumber:   busNumber,
		Action:      domain.ActionBoard,
		Timestamp:   now.UnixMilli(),
		Successful:  true,
		Message:     "manual boarding recorded",
	}, nil
}

// ManualAlight — ручная высадка, симметрично ManualBoard
func (e *Engine) ManualAlight(ctx context.Context, userID, organizationID, busNumber string) (*domain.BoardingDetectionResult, error) {
	op, err := e.operationRepo.FindInProgressByBusNumber(ctx, organizationID, busNumber)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, domain.ErrNotFound("no active operation for bus %s", busNumber)
	}

	now := e.now()
	newCount, err := e.adjuster.Execute(ctx, portsin.AdjustPassengersInput{
		OperationID: op.OperationID,
		Delta:       -1,
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindCapacity {
			return &domain.BoardingDetectionResult{
				UserID:      userID,
				OperationID: op.OperationID,
				BusNumber:   busNumber,
				Action:      domain.ActionAlight,
				Timestamp:   now.UnixMilli(),
				Successful:  false,
				Message:     "passenger count is already zero",
			}, nil
		}
		return nil, err
	}

	state := e.states.loadOrInit(userID, organizationID, now).clone()
	state.OnBus = false
	state.CurrentOperationID = ""
	state.PendingOperationID = ""
	state.BoardingCount = 0
	state.AlightingCount = 0
	state.BoardedAt = nil
	state.LastUpdate = now
	e.states.put(state)

	e.recordEvent(ctx, op.OperationID, state, domain.EventAlight, newCount)
	e.publishEvent(ctx, "PASSENGER_ALIGHTED", op.OperationID, state, newCount)
	return &domain.BoardingDetectionResult{
		UserID:      userID,
		OperationID: op.OperationID,
		BusNumber:   busNumber,
		Action:      domain.ActionAlight,
		Timestamp:   now.UnixMilli(),
		Successful:  true,
		Message:     "manual alighting recorded",
	}, nil
}

// State возвращает текущее состояние пассажира (для тестов и отладки)
func (e *Engine) State(userID string) *PassengerState {
	return e.states.get(userID)
}

// EvictIdle удаляет состояния пассажиров без обновлений дольше ttl
func (e *Engine) EvictIdle(ttl time.Duration) int {
	return e.states.evictIdle(ttl, e.now())
}

// publishEvent шлет PASSENGER_BOARDED/PASSENGER_ALIGHTED в RabbitMQ
// best-effort: сбой публикации не отменяет уже зафиксированную посадку
func (e *Engine) publishEvent(ctx context.Context, eventType, operationID string, state *PassengerState, count int) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishOperationEvent(ctx, eventType, out.OperationEventData{
		OperationID:    operationID,
		OrganizationID: state.OrganizationID,
		Status:         string(domain.StatusInProgress),
		AdditionalData: map[string]interface{}{
			"user_id":         state.UserID,
			"passenger_count": count,
		},
	}); err != nil {
		e.log.Warn(logger.Entry{
			Action:      "publish_boarding_event_failed",
			Message:     err.Error(),
			OperationID: operationID,
		})
	}
}

// recordEvent пишет строку аудита best-effort
func (e *Engine) recordEvent(ctx context.Context, operationID string, state *PassengerState, eventType domain.TrackingEventType, count int) {
	if e.eventRepo == nil {
		return
	}
	if err := e.eventRepo.Save(ctx, &domain.TrackingEvent{
		ID:             utils.NewUUID(),
		OperationID:    operationID,
		OrganizationID: state.OrganizationID,
		EventType:      eventType,
		UserID:         state.UserID,
		Latitude:       state.Latitude,
		Longitude:      state.Longitude,
		OccupiedSeats:  count,
		OccurredAt:     e.now(),
	}); err != nil {
		e.log.Warn(logger.Entry{
			Action:      "save_tracking_event_failed",
			Message:     err.Error(),
			OperationID: operationID,
		})
	}
}

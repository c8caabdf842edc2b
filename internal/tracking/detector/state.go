package detector

import (
	"sync"
	"time"
)

// PassengerState — состояние одного пассажира в машине состояний
// OFF_BUS / ON_BUS. Значение неизменяемое: любое обновление создает
// новую копию и подменяет ее CAS-ом, чтобы конкурентные сэмплы одного
// пользователя не теряли инкременты счетчиков.
type PassengerState struct {
	UserID         string
	OrganizationID string
	Latitude       float64
	Longitude      float64
	LastUpdate     time.Time

	OnBus              bool
	CurrentOperationID string // непустой тогда и только тогда, когда OnBus

	// Дебаунс посадки: кандидат и число подряд идущих сэмплов рядом с ним
	PendingOperationID string
	BoardingCount      int

	// Дебаунс высадки: число подряд идущих сэмплов дальше порога
	AlightingCount int

	BoardedAt *time.Time
}

// stateTable — потокобезопасная таблица userID → *PassengerState.
// Создается лениво на первом сэмпле пользователя, чистится свипером.
type stateTable struct {
	states sync.Map
}

func newStateTable() *stateTable {
	return &stateTable{}
}

// get возвращает текущее состояние пассажира, nil если его еще нет
func (t *stateTable) get(userID string) *PassengerState {
	if v, ok := t.states.Load(userID); ok {
		return v.(*PassengerState)
	}
	return nil
}

// loadOrInit возвращает состояние пассажира, создавая пустое OFF_BUS при
// первом обращении
func (t *stateTable) loadOrInit(userID, organizationID string, now time.Time) *PassengerState {
	fresh := &PassengerState{
		UserID:         userID,
		OrganizationID: organizationID,
		LastUpdate:     now,
	}
	actual, _ := t.states.LoadOrStore(userID, fresh)
	return actual.(*PassengerState)
}

// compareAndSwap подменяет old на next; false если кто-то успел раньше
func (t *stateTable) compareAndSwap(old, next *PassengerState) bool {
	return t.states.CompareAndSwap(old.UserID, old, next)
}

// put безусловно записывает состояние (ручные переходы всегда побеждают)
func (t *stateTable) put(state *PassengerState) {
	t.states.Store(state.UserID, state)
}

// evictIdle удаляет состояния без обновлений дольше ttl, возвращает
// число удаленных
func (t *stateTable) evictIdle(ttl time.Duration, now time.Time) int {
	evicted := 0
	t.states.Range(func(key, value any) bool {
		state := value.(*PassengerState)
		if now.Sub(state.LastUpdate) > ttl {
			t.states.Delete(key)
			evicted++
		}
		return true
	})
	return evicted
}

// clone возвращает копию состояния для модификации
func (s *PassengerState) clone() *PassengerState {
	next := *s
	return &next
}

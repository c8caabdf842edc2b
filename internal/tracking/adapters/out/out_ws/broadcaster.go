// Реестр подписок и fan-out состояния автобусов.
//
// Пассажирские соединения группируются по организации, на которую
// соединение явно подписалось; водительское соединение привязывается к
// своему рейсу. Рассылка best-effort: сбой на одном соединении
// логируется и пропускается, остальные получают сообщение.
package out_ws

import (
	"sync"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/ws"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// Conn — минимум, который реестру нужен от WebSocket соединения.
// Реализуется shared/ws.Client.
type Conn interface {
	ConnID() string
	SendJSON(data interface{}) error
}

type passengerEntry struct {
	conn           Conn
	organizationID string
	userID         string
}

// Broadcaster реализует StatusBroadcaster поверх WebSocket-хаба.
type Broadcaster struct {
	hub *ws.Hub
	log *logger.Logger

	mu         sync.RWMutex
	passengers map[string]passengerEntry  // connID → подписка
	byOrg      map[string]map[string]Conn // orgID → connID → соединение
	drivers    map[string]Conn            // operationID → водитель
	driverOps  map[string]string          // connID → operationID
}

// NewBroadcaster создает реестр подписок. Hub можно передать nil и
// привязать позже через AttachHub: пассажирский handler создает свой
// hub сам, а broadcaster нужен ему в конструкторе.
func NewBroadcaster(hub *ws.Hub, log *logger.Logger) *Broadcaster {
	return &Broadcaster{
		hub:        hub,
		log:        log,
		passengers: make(map[string]passengerEntry),
		byOrg:      make(map[string]map[string]Conn),
		drivers:    make(map[string]Conn),
		driverOps:  make(map[string]string),
	}
}

// AttachHub привязывает пассажирский hub для адресных уведомлений
func (b *Broadcaster) AttachHub(hub *ws.Hub) {
	b.mu.Lock()
	b.hub = hub
	b.mu.Unlock()
}

// RegisterPassenger подписывает соединение на рассылку организации.
// Идемпотентна: повторная регистрация того же соединения ничего не
// меняет, первая подписка живет до отключения.
func (b *Broadcaster) RegisterPassenger(conn Conn, organizationID, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.passengers[conn.ConnID()]; exists {
		return
	}
	b.passengers[conn.ConnID()] = passengerEntry{
		conn:           conn,
		organizationID: organizationID,
		userID:         userID,
	}
	if b.byOrg[organizationID] == nil {
		b.byOrg[organizationID] = make(map[string]Conn)
	}
	b.byOrg[organizationID][conn.ConnID()] = conn
}

// RegisterDriver привязывает соединение водителя к рейсу, идемпотентна
func (b *Broadcaster) RegisterDriver(conn Conn, operationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.driverOps[conn.ConnID()]; ok && existing == operationID {
		return
	}
	b.drivers[operationID] = conn
	b.driverOps[conn.ConnID()] = operationID
}

// Unregister убирает все записи соединения; вызывается при отключении
func (b *Broadcaster) Unregister(conn Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if entry, ok := b.passengers[conn.ConnID()]; ok {
		delete(b.passengers, conn.ConnID())
		if conns := b.byOrg[entry.organizationID]; conns != nil {
			delete(conns, conn.ConnID())
			if len(conns) == 0 {
				delete(b.byOrg, entry.organizationID)
			}
		}
	}

	if opID, ok := b.driverOps[conn.ConnID()]; ok {
		delete(b.driverOps, conn.ConnID())
		// За рейсом могло закрепиться уже другое соединение
		if existing, ok := b.drivers[opID]; ok && existing.ConnID() == conn.ConnID() {
			delete(b.drivers, opID)
		}
	}
}

// BroadcastToOrganization рассылает busUpdate всем подпискам организации
func (b *Broadcaster) BroadcastToOrganization(organizationID string, status domain.BusStatus) {
	b.mu.RLock()
	conns := make([]Conn, 0, len(b.byOrg[organizationID]))
	for _, conn := range b.byOrg[organizationID] {
		conns = append(conns, conn)
	}
	b.mu.RUnlock()

	message := map[string]any{
		"type": "busUpdate",
		"data": status,
	}
	for _, conn := range conns {
		if err := conn.SendJSON(message); err != nil {
			// Сбой одного соединения не мешает остальным
			b.log.Warn(logger.Entry{
				Action:      "broadcast_send_failed",
				Message:     err.Error(),
				OperationID: status.OperationID,
				Additional: map[string]any{
					"client_id": conn.ConnID(),
				},
			})
		}
	}
}

// NotifyPassenger отправляет типизированное сообщение конкретному пассажиру
func (b *Broadcaster) NotifyPassenger(userID, msgType string, data any) {
	b.mu.RLock()
	hub := b.hub
	b.mu.RUnlock()
	if hub == nil {
		return
	}
	if err := hub.SendTypedMessage(userID, msgType, data); err != nil {
		b.log.Warn(logger.Entry{
			Action:  "notify_passenger_failed",
			Message: err.Error(),
			Additional: map[string]any{
				"user_id":  userID,
				"msg_type": msgType,
			},
		})
	}
}

// SendToDriver отправляет сообщение водителю рейса, no-op если
// соединения нет
func (b *Broadcaster) SendToDriver(operationID string, payload any) {
	b.mu.RLock()
	conn := b.drivers[operationID]
	b.mu.RUnlock()

	if conn == nil {
		return
	}
	if err := conn.SendJSON(payload); err != nil {
		b.log.Warn(logger.Entry{
			Action:      "send_to_driver_failed",
			Message:     err.Error(),
			OperationID: operationID,
		})
	}
}

// PassengerCount возвращает число подписок организации (для тестов)
func (b *Broadcaster) PassengerCount(organizationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byOrg[organizationID])
}

package out

import (
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// StatusBroadcaster — fan-out состояния автобусов подписанным клиентам.
// Все методы best-effort: сбой отправки в одно соединение логируется
// и пропускается, никогда не поднимается вызывающему.
type StatusBroadcaster interface {
	// BroadcastToOrganization рассылает busUpdate всем пассажирским
	// подпискам организации
	BroadcastToOrganization(organizationID string, status domain.BusStatus)

	// NotifyPassenger отправляет типизированное сообщение конкретному пассажиру
	NotifyPassenger(userID, msgType string, data any)

	// SendToDriver отправляет сообщение водителю рейса; no-op если
	// соединения нет
	SendToDriver(operationID string, payload any)
}

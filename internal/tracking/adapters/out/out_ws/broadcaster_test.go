package out_ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

type fakeConn struct {
	id   string
	sent []any
	fail bool
}

func (c *fakeConn) ConnID() string { return c.id }

func (c *fakeConn) SendJSON(data interface{}) error {
	if c.fail {
		return assert.AnError
	}
	c.sent = append(c.sent, data)
	return nil
}

func newTestBroadcaster() *Broadcaster {
	return NewBroadcaster(nil, logger.NewLogger("test"))
}

func TestRegisterPassengerIdempotent(t *testing.T) {
	b := newTestBroadcaster()
	conn := &fakeConn{id: "conn-1"}

	b.RegisterPassenger(conn, "org-1", "user-1")
	// Повторная регистрация даже с другой организацией не меняет подписку
	b.RegisterPassenger(conn, "org-2", "user-1")

	assert.Equal(t, 1, b.PassengerCount("org-1"))
	assert.Equal(t, 0, b.PassengerCount("org-2"))
}

func TestBroadcastToOrganization(t *testing.T) {
	b := newTestBroadcaster()
	a := &fakeConn{id: "conn-a"}
	c := &fakeConn{id: "conn-b"}
	other := &fakeConn{id: "conn-other"}

	b.RegisterPassenger(a, "org-1", "user-a")
	b.RegisterPassenger(c, "org-1", "user-b")
	b.RegisterPassenger(other, "org-2", "user-c")

	b.BroadcastToOrganization("org-1", domain.BusStatus{OperationID: "op-1", BusNumber: "101"})

	require.Len(t, a.sent, 1)
	require.Len(t, c.sent, 1)
	assert.Empty(t, other.sent)

	msg, ok := a.sent[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "busUpdate", msg["type"])
	status, ok := msg["data"].(domain.BusStatus)
	require.True(t, ok)
	assert.Equal(t, "101", status.BusNumber)
}

func TestBroadcastSkipsFailingConn(t *testing.T) {
	b := newTestBroadcaster()
	broken := &fakeConn{id: "conn-broken", fail: true}
	healthy := &fakeConn{id: "conn-healthy"}

	b.RegisterPassenger(broken, "org-1", "user-a")
	b.RegisterPassenger(healthy, "org-1", "user-b")

	// Сбой одного соединения не мешает доставке остальным
	b.BroadcastToOrganization("org-1", domain.BusStatus{OperationID: "op-1"})
	assert.Len(t, healthy.sent, 1)
}

func TestUnregisterRemovesAllEntries(t *testing.T) {
	b := newTestBroadcaster()
	conn := &fakeConn{id: "conn-1"}

	b.RegisterPassenger(conn, "org-1", "user-1")
	b.RegisterDriver(conn, "op-1")

	b.Unregister(conn)

	assert.Equal(t, 0, b.PassengerCount("org-1"))
	b.SendToDriver("op-1", map[string]any{"type": "ping"})
	assert.Empty(t, conn.sent)

	// Повторный Unregister безопасен
	b.Unregister(conn)
}

func TestUnregisterKeepsNewerDriverConn(t *testing.T) {
	b := newTestBroadcaster()
	old := &fakeConn{id: "conn-old"}
	fresh := &fakeConn{id: "conn-fresh"}

	// Водитель переподключился: за рейсом закреплено новое соединение,
	// отключение старого не должно его снести
	b.RegisterDriver(old, "op-1")
	b.RegisterDriver(fresh, "op-1")
	b.Unregister(old)

	b.SendToDriver("op-1", map[string]any{"type": "ping"})
	assert.Len(t, fresh.sent, 1)
	assert.Empty(t, old.sent)
}

func TestSendToDriverNoopWhenAbsent(t *testing.T) {
	b := newTestBroadcaster()
	// Нет соединения — тихий no-op
	b.SendToDriver("op-absent", map[string]any{"type": "ping"})
}

func TestNotifyPassengerWithoutHub(t *testing.T) {
	b := newTestBroadcaster()
	// Hub не привязан — no-op, не паника
	b.NotifyPassenger("user-1", "boardingDetected", map[string]any{})
}

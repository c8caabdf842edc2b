package ws

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	log := logger.NewLogger("test")
	t.Cleanup(log.Close)
	return NewHub(nil, log)
}

func addClient(h *Hub, id string, queue int) *Client {
	client := &Client{
		ID:   id,
		send: make(chan []byte, queue),
		hub:  h,
		log:  h.log,
	}
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	return client
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func TestHubBroadcastDeliversToAll(t *testing.T) {
	h := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	a := addClient(h, "conn-a", 4)
	b := addClient(h, "conn-b", 4)

	h.Broadcast([]byte("hello"))

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			assert.Equal(t, "hello", string(msg))
		case <-time.After(time.Second):
			t.Fatalf("client %s did not receive broadcast", c.ID)
		}
	}
	assert.Equal(t, 2, h.clientCount())
}

// Отстающий клиент с переполненной очередью отключается прямо при
// рассылке; остальные продолжают получать сообщения.
func TestHubBroadcastDropsSlowClient(t *testing.T) {
	h := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	fast := addClient(h, "conn-fast", 4)
	slow := addClient(h, "conn-slow", 1)
	slow.send <- []byte("backlog") // очередь забита

	h.Broadcast([]byte("update"))

	require.Eventually(t, func() bool {
		return h.clientCount() == 1
	}, time.Second, 5*time.Millisecond)

	h.mu.RLock()
	_, slowPresent := h.clients["conn-slow"]
	_, fastPresent := h.clients["conn-fast"]
	h.mu.RUnlock()
	assert.False(t, slowPresent)
	assert.True(t, fastPresent)

	select {
	case msg := <-fast.send:
		assert.Equal(t, "update", string(msg))
	case <-time.After(time.Second):
		t.Fatal("fast client did not receive broadcast")
	}

	// Канал отстающего закрыт ровно один раз
	slow.sendMu.Lock()
	closed := slow.closed
	slow.sendMu.Unlock()
	assert.True(t, closed)
}

package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encorequiz/encore/go/internal/events"
)

func (cm *ConnectionManager) registerForTest(conn *Connection) {
	cm.mu.Lock()
	cm.conns[conn] = true
	cm.mu.Unlock()
}

func broadcastEvent(t *testing.T) *events.RoomEvent {
	t.Helper()
	ev, err := events.New(uuid.Nil, events.EventRoomCreated, events.RoomCreatedPayload{
		RoomID:   uuid.New(),
		RoomName: "abc",
	}, time.Now())
	require.NoError(t, err)
	return ev
}

func TestConnectionManager_BroadcastRacesDisconnect(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	ev := broadcastEvent(t)

	// A disconnect landing mid-broadcast must never panic the fan-out with a
	// send on the closed Send channel.
	for i := 0; i < 100; i++ {
		conn := &Connection{SID: uuid.NewString(), Send: make(chan []byte, 4), Manager: cm}
		cm.registerForTest(conn)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			cm.handleBroadcast(ev)
		}()
		go func() {
			defer wg.Done()
			cm.unregister(conn)
		}()
		wg.Wait()
	}

	total, _ := cm.Stats()
	assert.Zero(t, total)
}

func TestConnectionManager_SendEventAfterUnregister(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	conn := &Connection{SID: uuid.NewString(), Send: make(chan []byte, 1), Manager: cm}
	cm.registerForTest(conn)
	cm.unregister(conn)

	// Send must be a no-op once the connection is gone, not a closed-channel
	// panic.
	cm.SendEvent(conn, broadcastEvent(t))

	total, _ := cm.Stats()
	assert.Zero(t, total)
}

func TestConnectionManager_UnregisterIsIdempotent(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	conn := &Connection{SID: uuid.NewString(), Send: make(chan []byte, 1), Manager: cm}
	cm.registerForTest(conn)

	cm.unregister(conn)
	cm.unregister(conn)

	total, _ := cm.Stats()
	assert.Zero(t, total)
}

// Package gateway is the transport edge: websocket connections with room
// fan-out, inbound command decoding, and the HTTP routes for rooms, topics
// and leaderboards.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/encorequiz/encore/go/internal/events"
)

// ConnectionManager owns all websocket connections and their room
// subscriptions. A connection subscribes to rooms by sending join_room
// commands; events addressed to a room reach its subscribers, events addressed
// to no room reach everyone.
type ConnectionManager struct {
	mu        sync.RWMutex
	conns     map[*Connection]bool
	roomConns map[uuid.UUID]map[*Connection]bool

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan *events.RoomEvent

	// onDisconnect runs after a connection is unregistered, with the rooms it
	// had joined. Wired to the command service so a drop behaves as leave.
	onDisconnect func(conn *Connection, joined []uuid.UUID)
}

// Connection is one websocket client. UserID and Username are set by the
// first successful join_room.
type Connection struct {
	SID      string
	UserID   uuid.UUID
	Username string

	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds websocket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		conns:     make(map[*Connection]bool),
		roomConns: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan *events.RoomEvent, 1000),
	}
}

// SetDisconnectHandler registers the drop callback. Must be called before
// connections are accepted.
func (cm *ConnectionManager) SetDisconnectHandler(fn func(conn *Connection, joined []uuid.UUID)) {
	cm.onDisconnect = fn
}

// Start processes the broadcast queue until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case ev := <-cm.broadcastCh:
			cm.handleBroadcast(ev)
		}
	}
}

// Enqueue queues an event for fan-out. Delivery is best-effort: a full queue
// drops the event.
func (cm *ConnectionManager) Enqueue(ev *events.RoomEvent) {
	select {
	case cm.broadcastCh <- ev:
	default:
		log.Warn().Str("event", ev.Event).Msg("broadcast channel full, dropping event")
	}
}

// UpgradeConnection upgrades an HTTP request to a websocket connection,
// registers it and starts its pumps.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, handler func(conn *Connection, message []byte)) (*Connection, error) {
	ws, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	conn := &Connection{
		SID:         uuid.New().String(),
		Conn:        ws,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.mu.Lock()
	cm.conns[conn] = true
	cm.mu.Unlock()

	go conn.writePump()
	go conn.readPump(handler)

	log.Info().Str("sid", conn.SID).Msg("websocket connection established")
	return conn, nil
}

// JoinRoom subscribes the connection to a room's events.
func (cm *ConnectionManager) JoinRoom(conn *Connection, roomID uuid.UUID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.roomConns[roomID] == nil {
		cm.roomConns[roomID] = make(map[*Connection]bool)
	}
	cm.roomConns[roomID][conn] = true
	log.Debug().
		Str("sid", conn.SID).
		Str("room_id", roomID.String()).
		Int("subscribers", len(cm.roomConns[roomID])).
		Msg("connection joined room")
}

// LeaveRoom unsubscribes the connection from a room.
func (cm *ConnectionManager) LeaveRoom(conn *Connection, roomID uuid.UUID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if pool, ok := cm.roomConns[roomID]; ok {
		delete(pool, conn)
		if len(pool) == 0 {
			delete(cm.roomConns, roomID)
		}
	}
}

// JoinedRooms lists the rooms the connection is subscribed to.
func (cm *ConnectionManager) JoinedRooms(conn *Connection) []uuid.UUID {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	var out []uuid.UUID
	for roomID, pool := range cm.roomConns {
		if pool[conn] {
			out = append(out, roomID)
		}
	}
	return out
}

// unregister drops the connection from every pool and notifies the disconnect
// handler with the rooms it had joined.
func (cm *ConnectionManager) unregister(conn *Connection) {
	cm.mu.Lock()
	if !cm.conns[conn] {
		cm.mu.Unlock()
		return
	}
	delete(cm.conns, conn)
	close(conn.Send)

	var joined []uuid.UUID
	for roomID, pool := range cm.roomConns {
		if pool[conn] {
			joined = append(joined, roomID)
			delete(pool, conn)
			if len(pool) == 0 {
				delete(cm.roomConns, roomID)
			}
		}
	}
	cm.mu.Unlock()

	log.Info().Str("sid", conn.SID).Int("rooms", len(joined)).Msg("connection unregistered")

	if cm.onDisconnect != nil {
		cm.onDisconnect(conn, joined)
	}
}

// SendEvent delivers an event to one connection, bypassing room fan-out. Used
// for connection_established and per-caller error events. The send happens
// under the read lock: unregister closes Send under the write lock, so a
// concurrent disconnect can never turn this into a send on a closed channel.
func (cm *ConnectionManager) SendEvent(conn *Connection, ev *events.RoomEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event", ev.Event).Msg("failed to marshal event")
		return
	}

	cm.mu.RLock()
	full := false
	if cm.conns[conn] {
		select {
		case conn.Send <- data:
		default:
			full = true
		}
	}
	cm.mu.RUnlock()

	if full {
		log.Warn().Str("sid", conn.SID).Msg("send buffer full, closing connection")
		cm.unregister(conn)
		conn.Conn.Close()
	}
}

// handleBroadcast fans one event out to its audience. Slow connections are
// evicted rather than blocking the queue. Sends run under the read lock for
// the same closed-channel guarantee as SendEvent; eviction needs the write
// lock and so happens after.
func (cm *ConnectionManager) handleBroadcast(ev *events.RoomEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event", ev.Event).Msg("failed to marshal event for broadcast")
		return
	}

	cm.mu.RLock()
	pool := cm.roomConns[ev.RoomID]
	if ev.Broadcast() {
		pool = cm.conns
	}
	delivered := 0
	var slow []*Connection
	for conn := range pool {
		select {
		case conn.Send <- data:
			delivered++
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().Str("sid", conn.SID).Msg("send buffer full, closing connection")
		cm.unregister(conn)
		conn.Conn.Close()
	}

	if delivered == 0 {
		return
	}
	log.Debug().
		Str("event", ev.Event).
		Str("room_id", ev.RoomID.String()).
		Int("connections", delivered).
		Msg("event broadcasted")
}

// Stats reports connection counts, for the stats endpoint.
func (cm *ConnectionManager) Stats() (total int, roomsWithSubscribers int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.conns), len(cm.roomConns)
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("sid", c.SID).Msg("failed to write message")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

func (c *Connection) readPump(handler func(conn *Connection, message []byte)) {
	defer func() {
		c.Manager.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("sid", c.SID).Msg("unexpected websocket close")
			}
			break
		}
		if handler != nil {
			handler(c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

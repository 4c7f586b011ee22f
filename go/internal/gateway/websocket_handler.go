package gateway

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/encorequiz/encore/go/internal/events"
)

// WebSocketHandler accepts websocket upgrades and greets each client with its
// session id.
type WebSocketHandler struct {
	manager *ConnectionManager
	service *CommandService
	clock   clockwork.Clock
}

func NewWebSocketHandler(manager *ConnectionManager, service *CommandService, clk clockwork.Clock) *WebSocketHandler {
	return &WebSocketHandler{manager: manager, service: service, clock: clk}
}

// HandleConnection upgrades the request and confirms the session.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.manager.UpgradeConnection(w, r, h.service.HandleMessage)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	ev, err := events.New(uuid.Nil, events.EventConnectionEstablished,
		events.ConnectionEstablishedPayload{SID: conn.SID}, h.clock.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("failed to build connection_established event")
		return
	}
	h.manager.SendEvent(conn, ev)
}

// HandleConnectionStats reports active connection counts.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	total, roomCount := h.manager.Stats()
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"total_connections":%d,"subscribed_rooms":%d}`, total, roomCount)
}

// RegisterRoutes registers the websocket routes.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}

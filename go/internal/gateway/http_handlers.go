package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/encorequiz/encore/go/internal/game"
	"github.com/encorequiz/encore/go/internal/providers"
	"github.com/encorequiz/encore/go/internal/rooms"
	"github.com/encorequiz/encore/go/internal/scores"
	"github.com/encorequiz/encore/go/internal/topics"
	"github.com/encorequiz/encore/go/internal/users"
)

// HTTPHandler serves the REST side of the API: room directory, topic catalog,
// leaderboards and the HTTP fallbacks for the game commands.
type HTTPHandler struct {
	coord   *game.Coordinator
	ledger  scores.Ledger
	catalog *topics.Catalog
	users   users.Repository
	tracks  providers.TrackPicker
}

func NewHTTPHandler(coord *game.Coordinator, ledger scores.Ledger, catalog *topics.Catalog, userRepo users.Repository, tracks providers.TrackPicker) *HTTPHandler {
	return &HTTPHandler{coord: coord, ledger: ledger, catalog: catalog, users: userRepo, tracks: tracks}
}

// RegisterRoutes registers the REST routes.
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)

	mux.HandleFunc("GET /api/rooms", h.handleListRooms)
	mux.HandleFunc("POST /api/rooms", h.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms/{id}", h.handleGetRoom)

	mux.HandleFunc("GET /api/game/topics", h.handleTopics)
	mux.HandleFunc("POST /api/game/subtopics", h.handleSubtopics)
	mux.HandleFunc("GET /api/game/countries", h.handleCountries)
	mux.HandleFunc("POST /api/game/{room_id}/start", h.handleStartGame)
	mux.HandleFunc("POST /api/game/{room_id}/answer", h.handleSubmitAnswer)
	mux.HandleFunc("POST /api/game/{room_id}/end", h.handleForceEnd)

	mux.HandleFunc("GET /api/leaderboard/global", h.handleGlobalLeaderboard)
	mux.HandleFunc("GET /api/leaderboard/room/{id}", h.handleRoomLeaderboard)
	mux.HandleFunc("GET /api/leaderboard/game/{id}", h.handleGameLeaderboard)

	mux.HandleFunc("GET /api/music/get_song", h.handleGetSong)
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) handleListRooms(w http.ResponseWriter, r *http.Request) {
	list, err := h.coord.ListRooms(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": list})
}

func (h *HTTPHandler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Genre string `json:"genre"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}
	room, err := h.coord.CreateRoom(r.Context(), req.Name, req.Genre)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *HTTPHandler) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	room, err := h.coord.Room(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := map[string]any{"room": room}
	if g, err := h.coord.CurrentGame(r.Context(), roomID); err == nil {
		out["game_id"] = g.ID
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) handleTopics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"topics": h.catalog.TopicNames()})
}

func (h *HTTPHandler) handleSubtopics(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic string `json:"topic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}
	subs, ok := h.catalog.Subtopics(req.Topic)
	if !ok {
		writeBadRequest(w, "unknown topic")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subtopics": subs})
}

func (h *HTTPHandler) handleCountries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"countries": h.catalog.Countries})
}

func (h *HTTPHandler) handleStartGame(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathUUID(w, r, "room_id")
	if !ok {
		return
	}
	var req startGameData
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}
	req.RoomID = roomID

	sel, err := buildSelection(r.Context(), h.coord, h.catalog, req)
	if err != nil {
		writeError(w, err)
		return
	}
	g, err := h.coord.StartGame(r.Context(), roomID, sel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"game_id": g.ID})
}

func (h *HTTPHandler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathUUID(w, r, "room_id")
	if !ok {
		return
	}
	var req struct {
		Username string `json:"username"`
		Answer   string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}
	user, err := h.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.coord.SubmitAnswer(r.Context(), roomID, user.ID, req.Answer); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (h *HTTPHandler) handleForceEnd(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathUUID(w, r, "room_id")
	if !ok {
		return
	}
	if err := h.coord.ForceEnd(r.Context(), roomID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func (h *HTTPHandler) handleGlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := scores.GlobalLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, "invalid limit")
			return
		}
		if n < limit {
			limit = n
		}
	}
	lb, err := h.ledger.GlobalLeaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": lb})
}

func (h *HTTPHandler) handleRoomLeaderboard(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	room, err := h.coord.Room(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	lb, err := h.ledger.RoomLeaderboard(r.Context(), roomID, scores.RoomLeaderboardLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room_name":   room.Name,
		"room_genre":  room.Genre,
		"leaderboard": lb,
	})
}

func (h *HTTPHandler) handleGameLeaderboard(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	lb, err := h.ledger.GameLeaderboard(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id":     gameID,
		"leaderboard": lb,
	})
}

func (h *HTTPHandler) handleGetSong(w http.ResponseWriter, r *http.Request) {
	genre := r.URL.Query().Get("genre")
	if genre == "" {
		writeBadRequest(w, "genre is required")
		return
	}
	track, err := h.tracks.RandomTrack(r.Context(), genre)
	if err != nil {
		writeError(w, errors.Join(game.ErrUpstreamUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"song_title":   track.Title,
		"song_artist":  track.Artist,
		"song_preview": track.PreviewURL,
	})
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeBadRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// writeError maps domain errors onto status codes: absent entities are 404,
// duplicates and concurrent starts are 409, provider outages are 502 and
// everything validation-shaped is 400.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, rooms.ErrRoomNotFound),
		errors.Is(err, game.ErrGameNotFound),
		errors.Is(err, users.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, rooms.ErrRoomNameTaken),
		errors.Is(err, game.ErrGameInProgress):
		status = http.StatusConflict
	case errors.Is(err, game.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

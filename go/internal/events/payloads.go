// Package events defines the room event envelope and payloads broadcast to
// clients, plus the publishers that move them from the game coordinator to the
// gateway. Event names and payload field names are a client compatibility
// contract; do not rename them.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/encorequiz/encore/go/internal/models"
)

// Outbound event names.
const (
	EventConnectionEstablished = "connection_established"
	EventRoomCreated           = "room_created"
	EventRoomDeleted           = "room_deleted"
	EventJoinConfirmation      = "join_confirmation"
	EventGameStarted           = "game_started"
	EventNewRound              = "new_round"
	EventUpdateScores          = "update_scores"
	EventGameOver              = "game_over"
	EventLeaderboardUpdate     = "leaderboard_update"
	EventError                 = "error"
)

// RoomEvent is the envelope every broadcast travels in. RoomID uuid.Nil means
// the event goes to every connected client (room directory changes).
type RoomEvent struct {
	ID        uuid.UUID       `json:"id"`
	RoomID    uuid.UUID       `json:"room_id"`
	Event     string          `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Broadcast reports whether the event targets all connections rather than one
// room.
func (e *RoomEvent) Broadcast() bool {
	return e.RoomID == uuid.Nil
}

// New builds an envelope, marshalling the payload. A payload that fails to
// marshal is a programming error; the caller gets it back as an error.
func New(roomID uuid.UUID, name string, payload any, now time.Time) (*RoomEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &RoomEvent{
		ID:        uuid.New(),
		RoomID:    roomID,
		Event:     name,
		Timestamp: now,
		Data:      data,
	}, nil
}

type ConnectionEstablishedPayload struct {
	SID string `json:"sid"`
}

type RoomCreatedPayload struct {
	RoomID   uuid.UUID `json:"room_id"`
	RoomName string    `json:"room_name"`
}

type RoomDeletedPayload struct {
	RoomID uuid.UUID `json:"room_id"`
}

type JoinConfirmationPayload struct {
	RoomID   uuid.UUID `json:"room_id"`
	Username string    `json:"username"`
}

// GameStartedPayload tells the room a game launched, ahead of the first
// new_round (which waits on the content fetch).
type GameStartedPayload struct {
	RoomID uuid.UUID `json:"room_id"`
}

// NewRoundPayload announces a round. Trivia rounds carry only the question;
// music rounds add the track fields.
type NewRoundPayload struct {
	Question    string `json:"question"`
	SongTitle   string `json:"song_title,omitempty"`
	SongArtist  string `json:"song_artist,omitempty"`
	SongPreview string `json:"song_preview,omitempty"`
}

type ScoreEntry struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

type UpdateScoresPayload struct {
	Scores []ScoreEntry `json:"scores"`
}

// GameOverPayload ends a game. Winner is empty for a forced end with no
// winner; Score is the winner's ledger total for the game, never a user
// attribute.
type GameOverPayload struct {
	Winner         string `json:"winner,omitempty"`
	Score          int    `json:"score,omitempty"`
	LeaderboardURL string `json:"leaderboard_url"`
}

type LeaderboardUpdatePayload struct {
	Leaderboard []models.RankedScore `json:"leaderboard"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

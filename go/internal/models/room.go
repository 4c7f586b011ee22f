package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus defines the lifecycle status of a room.
type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "waiting"
	RoomStatusActive  RoomStatus = "active"
	RoomStatusEmpty   RoomStatus = "empty"
)

// Room represents a named lobby grouping the players of a shared game.
type Room struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Genre     string     `json:"genre,omitempty"`
	Status    RoomStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// RoomSummary is the room listing shape served to clients. Members and the
// current game id are ephemeral state owned by the registry, not the room row.
type RoomSummary struct {
	ID      uuid.UUID   `json:"id"`
	Name    string      `json:"name"`
	Genre   string      `json:"genre,omitempty"`
	Status  RoomStatus  `json:"status"`
	Players []uuid.UUID `json:"players"`
	GameID  *uuid.UUID  `json:"game_id"`
}

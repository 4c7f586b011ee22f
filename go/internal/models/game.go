package models

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus defines the status of a game. A game is a chain of rounds bounded
// by the winning score; finished is terminal.
type GameStatus string

const (
	GameStatusWaiting  GameStatus = "waiting"
	GameStatusPlaying  GameStatus = "playing"
	GameStatusFinished GameStatus = "finished"
)

// Game represents one play session within a room.
type Game struct {
	ID              uuid.UUID  `json:"id"`
	RoomID          uuid.UUID  `json:"room_id"`
	Status          GameStatus `json:"status"`
	CurrentQuestion *string    `json:"current_question,omitempty"`
	QuestionType    *string    `json:"question_type,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	WinnerID        *uuid.UUID `json:"winner_id,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

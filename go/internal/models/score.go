package models

import (
	"time"

	"github.com/google/uuid"
)

// Score is a ledger entry for one (user, game) pair. The value only ever
// increases, by fixed award amounts.
type Score struct {
	UserID    uuid.UUID `json:"user_id"`
	GameID    uuid.UUID `json:"game_id"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// RankedScore is one row of a leaderboard query.
type RankedScore struct {
	Rank        int       `json:"rank"`
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	Score       int       `json:"score"`
	GamesPlayed int       `json:"games_played,omitempty"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a player identity. Registration, credentials and profiles are owned
// by an external service; the game core only needs id and username.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

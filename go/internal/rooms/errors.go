package rooms

import "errors"

var (
	// ErrRoomNotFound is returned when a room id or name does not resolve.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomNameTaken is returned when creating a room whose name exists.
	ErrRoomNameTaken = errors.New("room name already taken")
)

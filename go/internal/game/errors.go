package game

import "errors"

var (
	// ErrGameNotFound means the game id (or the room's playing game) is absent.
	ErrGameNotFound = errors.New("game not found")

	// ErrGameInProgress rejects a start while the room already has a playing
	// game.
	ErrGameInProgress = errors.New("game already in progress")

	// ErrNoActiveRound rejects submissions while no answer window is open.
	ErrNoActiveRound = errors.New("no active round")

	// ErrUpstreamUnavailable wraps content provider failures. The round is
	// aborted and not retried.
	ErrUpstreamUnavailable = errors.New("content provider unavailable")
)

package game

import (
	"context"

	"github.com/encorequiz/encore/go/internal/models"
)

// ContentSource supplies one round's worth of content: a question plus answer
// key for trivia selections, a track for music selections. A failure aborts
// the round; the coordinator never retries.
type ContentSource interface {
	NextRound(ctx context.Context, sel models.RoundSelection) (*models.RoundContent, error)
}

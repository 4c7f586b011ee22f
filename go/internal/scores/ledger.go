// Package scores is the authoritative ledger of per-user-per-game points.
// Entries are created lazily on first award and only ever incremented, so the
// award path is the hottest write in the system and must tolerate concurrent
// submissions for the same (user, game) pair without losing updates.
package scores

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/encorequiz/encore/go/internal/models"
)

// AwardAmount is the fixed number of points for a correct answer.
const AwardAmount = 10

// Default result bounds, matching the read routes.
const (
	GlobalLeaderboardLimit = 100
	RoomLeaderboardLimit   = 10
)

// Ledger is the score store. Rankings are descending by score with ties broken
// by ascending user id, so repeated queries are deterministic.
type Ledger interface {
	Award(ctx context.Context, userID, gameID uuid.UUID, amount int) (int, error)
	GameLeaderboard(ctx context.Context, gameID uuid.UUID) ([]models.RankedScore, error)
	RoomLeaderboard(ctx context.Context, roomID uuid.UUID, limit int) ([]models.RankedScore, error)
	GlobalLeaderboard(ctx context.Context, limit int) ([]models.RankedScore, error)
}

// UserResolver supplies usernames for leaderboard rows.
type UserResolver interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// GameLister maps a room to the games played in it, for room-scoped
// aggregation.
type GameLister interface {
	ListGameIDsByRoom(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error)
}

type pairKey struct {
	userID uuid.UUID
	gameID uuid.UUID
}

// MemoryLedger is the in-process implementation. A single mutex serializes
// awards; the read paths copy under RLock and rank outside it.
type MemoryLedger struct {
	clock clockwork.Clock
	users UserResolver
	games GameLister

	mu      sync.RWMutex
	entries map[pairKey]*models.Score
}

func NewMemoryLedger(clk clockwork.Clock, userResolver UserResolver, gameLister GameLister) *MemoryLedger {
	return &MemoryLedger{
		clock:   clk,
		users:   userResolver,
		games:   gameLister,
		entries: make(map[pairKey]*models.Score),
	}
}

func (l *MemoryLedger) Award(ctx context.Context, userID, gameID uuid.UUID, amount int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := pairKey{userID: userID, gameID: gameID}
	entry, ok := l.entries[key]
	if !ok {
		entry = &models.Score{
			UserID:    userID,
			GameID:    gameID,
			CreatedAt: l.clock.Now().UTC(),
		}
		l.entries[key] = entry
	}
	entry.Score += amount
	return entry.Score, nil
}

func (l *MemoryLedger) GameLeaderboard(ctx context.Context, gameID uuid.UUID) ([]models.RankedScore, error) {
	totals := make(map[uuid.UUID]int)
	l.mu.RLock()
	for key, entry := range l.entries {
		if key.gameID == gameID {
			totals[key.userID] += entry.Score
		}
	}
	l.mu.RUnlock()
	return l.rank(ctx, totals, nil, 0)
}

func (l *MemoryLedger) RoomLeaderboard(ctx context.Context, roomID uuid.UUID, limit int) ([]models.RankedScore, error) {
	gameIDs, err := l.games.ListGameIDsByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	inRoom := make(map[uuid.UUID]bool, len(gameIDs))
	for _, id := range gameIDs {
		inRoom[id] = true
	}

	totals := make(map[uuid.UUID]int)
	played := make(map[uuid.UUID]map[uuid.UUID]bool)
	l.mu.RLock()
	for key, entry := range l.entries {
		if !inRoom[key.gameID] {
			continue
		}
		totals[key.userID] += entry.Score
		if played[key.userID] == nil {
			played[key.userID] = make(map[uuid.UUID]bool)
		}
		played[key.userID][key.gameID] = true
	}
	l.mu.RUnlock()
	return l.rank(ctx, totals, played, limit)
}

func (l *MemoryLedger) GlobalLeaderboard(ctx context.Context, limit int) ([]models.RankedScore, error) {
	totals := make(map[uuid.UUID]int)
	played := make(map[uuid.UUID]map[uuid.UUID]bool)
	l.mu.RLock()
	for key, entry := range l.entries {
		totals[key.userID] += entry.Score
		if played[key.userID] == nil {
			played[key.userID] = make(map[uuid.UUID]bool)
		}
		played[key.userID][key.gameID] = true
	}
	l.mu.RUnlock()
	return l.rank(ctx, totals, played, limit)
}

// rank orders totals descending, user id ascending on ties, and fills in
// usernames and ranks.
func (l *MemoryLedger) rank(ctx context.Context, totals map[uuid.UUID]int, played map[uuid.UUID]map[uuid.UUID]bool, limit int) ([]models.RankedScore, error) {
	out := make([]models.RankedScore, 0, len(totals))
	for userID, total := range totals {
		row := models.RankedScore{UserID: userID, Score: total}
		if played != nil {
			row.GamesPlayed = len(played[userID])
		}
		if user, err := l.users.GetByID(ctx, userID); err == nil {
			row.Username = user.Username
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID.String() < out[j].UserID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

var _ Ledger = (*MemoryLedger)(nil)

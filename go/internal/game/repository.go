package game

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/encorequiz/encore/go/internal/models"
)

// Repository stores game rows. Finished games stay around as append-only
// history for the room and global leaderboards.
type Repository interface {
	Create(ctx context.Context, g *models.Game) error
	Get(ctx context.Context, id uuid.UUID) (*models.Game, error)
	Update(ctx context.Context, g *models.Game) error
	GetPlayingByRoom(ctx context.Context, roomID uuid.UUID) (*models.Game, error)
	ListGameIDsByRoom(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error)
}

// MemoryRepository is the in-process implementation used by default and in
// tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	games map[uuid.UUID]*models.Game
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{games: make(map[uuid.UUID]*models.Game)}
}

func (r *MemoryRepository) Create(ctx context.Context, g *models.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *g
	r.games[g.ID] = &cp
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *MemoryRepository) Update(ctx context.Context, g *models.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[g.ID]; !ok {
		return ErrGameNotFound
	}
	cp := *g
	r.games[g.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetPlayingByRoom(ctx context.Context, roomID uuid.UUID) (*models.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.games {
		if g.RoomID == roomID && g.Status == models.GameStatusPlaying {
			cp := *g
			return &cp, nil
		}
	}
	return nil, ErrGameNotFound
}

func (r *MemoryRepository) ListGameIDsByRoom(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uuid.UUID, 0)
	for id, g := range r.games {
		if g.RoomID == roomID {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

var _ Repository = (*MemoryRepository)(nil)

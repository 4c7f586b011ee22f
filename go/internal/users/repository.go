package users

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/encorequiz/encore/go/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// Repository resolves player identities. Account management lives elsewhere;
// the game layer only needs lookup plus lazy creation on first join.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetOrCreate(ctx context.Context, username string) (*models.User, error)
}

// MemoryRepository is the in-process implementation used by default and in
// tests.
type MemoryRepository struct {
	clock clockwork.Clock

	mu     sync.RWMutex
	byID   map[uuid.UUID]*models.User
	byName map[string]*models.User
}

func NewMemoryRepository(clk clockwork.Clock) *MemoryRepository {
	return &MemoryRepository{
		clock:  clk,
		byID:   make(map[uuid.UUID]*models.User),
		byName: make(map[string]*models.User),
	}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byName[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) GetOrCreate(ctx context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byName[username]; ok {
		cp := *u
		return &cp, nil
	}
	u := &models.User{
		ID:        uuid.New(),
		Username:  username,
		CreatedAt: r.clock.Now().UTC(),
	}
	r.byID[u.ID] = u
	r.byName[u.Username] = u
	cp := *u
	return &cp, nil
}

var _ Repository = (*MemoryRepository)(nil)

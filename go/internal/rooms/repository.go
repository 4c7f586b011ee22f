package rooms

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/encorequiz/encore/go/internal/models"
)

// Repository persists room rows. Membership is not persisted; it is ephemeral
// state owned by the Registry.
type Repository interface {
	Create(ctx context.Context, room *models.Room) error
	Get(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetByName(ctx context.Context, name string) (*models.Room, error)
	List(ctx context.Context) ([]models.Room, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.RoomStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// MemoryRepository is the in-process room store.
type MemoryRepository struct {
	clock clockwork.Clock

	mu     sync.RWMutex
	byID   map[uuid.UUID]*models.Room
	byName map[string]uuid.UUID
}

func NewMemoryRepository(clk clockwork.Clock) *MemoryRepository {
	return &MemoryRepository{
		clock:  clk,
		byID:   make(map[uuid.UUID]*models.Room),
		byName: make(map[string]uuid.UUID),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, room *models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[room.Name]; ok {
		return ErrRoomNameTaken
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = r.clock.Now().UTC()
	}
	cp := *room
	r.byID[room.ID] = &cp
	r.byName[room.Name] = room.ID
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.byID[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	cp := *room
	return &cp, nil
}

func (r *MemoryRepository) GetByName(ctx context.Context, name string) (*models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, ErrRoomNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Room, 0, len(r.byID))
	for _, room := range r.byID {
		out = append(out, *room)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.RoomStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.byID[id]
	if !ok {
		return ErrRoomNotFound
	}
	room.Status = status
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.byID[id]
	if !ok {
		return ErrRoomNotFound
	}
	delete(r.byName, room.Name)
	delete(r.byID, id)
	return nil
}

var _ Repository = (*MemoryRepository)(nil)

package rooms

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/encorequiz/encore/go/internal/clock"
	"github.com/encorequiz/encore/go/internal/models"
)

// DeletionGrace is how long an empty room survives before it is deleted. A
// rejoin within the window cancels the deletion.
const DeletionGrace = 300 * time.Second

// Registry owns the set of live rooms and their ephemeral member sets. Rows go
// through the Repository; membership exists only in process memory, mirroring
// socket connections.
type Registry struct {
	repo  Repository
	sched *clock.Scheduler
	grace time.Duration

	// onDeleted runs after the deferred deletion of an empty room, outside
	// the registry lock.
	onDeleted func(room models.Room)

	mu      sync.RWMutex
	members map[uuid.UUID]map[uuid.UUID]struct{}
}

func NewRegistry(repo Repository, sched *clock.Scheduler, onDeleted func(models.Room)) *Registry {
	return &Registry{
		repo:      repo,
		sched:     sched,
		grace:     DeletionGrace,
		onDeleted: onDeleted,
		members:   make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// SetGrace overrides the empty-room deletion window.
func (r *Registry) SetGrace(d time.Duration) { r.grace = d }

// CreateRoom creates a uniquely named room in waiting status.
func (r *Registry) CreateRoom(ctx context.Context, name, genre string) (*models.Room, error) {
	room := &models.Room{
		ID:     uuid.New(),
		Name:   name,
		Genre:  genre,
		Status: models.RoomStatusWaiting,
	}
	if err := r.repo.Create(ctx, room); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.members[room.ID] = make(map[uuid.UUID]struct{})
	r.mu.Unlock()

	log.Info().Str("room_id", room.ID.String()).Str("name", name).Str("genre", genre).Msg("room created")
	return room, nil
}

// Join adds a member to the room and cancels any pending deletion.
func (r *Registry) Join(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, error) {
	room, err := r.repo.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	set, ok := r.members[roomID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		r.members[roomID] = set
	}
	set[userID] = struct{}{}
	r.mu.Unlock()

	r.sched.Cancel(deletionKey(roomID))

	if room.Status == models.RoomStatusEmpty {
		if err := r.repo.UpdateStatus(ctx, roomID, models.RoomStatusWaiting); err != nil {
			log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to reset room status on join")
		} else {
			room.Status = models.RoomStatusWaiting
		}
	}

	log.Info().Str("room_id", roomID.String()).Str("user_id", userID.String()).Msg("member joined room")
	return room, nil
}

// Leave removes a member. If the room empties, deletion is scheduled after the
// grace window; the callback re-checks emptiness so a rejoin wins the race.
func (r *Registry) Leave(ctx context.Context, roomID, userID uuid.UUID) error {
	r.mu.Lock()
	set, ok := r.members[roomID]
	if ok {
		delete(set, userID)
	}
	empty := ok && len(set) == 0
	r.mu.Unlock()

	if !ok {
		return ErrRoomNotFound
	}

	log.Info().Str("room_id", roomID.String()).Str("user_id", userID.String()).Msg("member left room")

	if empty {
		if err := r.repo.UpdateStatus(ctx, roomID, models.RoomStatusEmpty); err != nil {
			log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to mark room empty")
		}
		log.Info().
			Str("room_id", roomID.String()).
			Dur("grace", r.grace).
			Msg("room empty, scheduling deletion")
		r.sched.Schedule(deletionKey(roomID), r.grace, func() {
			r.deleteIfEmpty(roomID)
		})
	}
	return nil
}

// deleteIfEmpty is the deferred-deletion callback.
func (r *Registry) deleteIfEmpty(roomID uuid.UUID) {
	r.mu.Lock()
	set, ok := r.members[roomID]
	if !ok || len(set) > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.members, roomID)
	r.mu.Unlock()

	ctx := context.Background()
	room, err := r.repo.Get(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("deferred deletion: room lookup failed")
		return
	}
	if err := r.repo.Delete(ctx, roomID); err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("deferred deletion failed")
		return
	}
	log.Info().Str("room_id", roomID.String()).Str("name", room.Name).Msg("empty room deleted")

	if r.onDeleted != nil {
		r.onDeleted(*room)
	}
}

// Get returns the room row.
func (r *Registry) Get(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	return r.repo.Get(ctx, roomID)
}

// Members returns the current member ids of a room, sorted for determinism.
func (r *Registry) Members(roomID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.members[roomID]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// MemberCount reports how many members a room currently has.
func (r *Registry) MemberCount(roomID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[roomID])
}

// List returns all rooms with their current member sets.
func (r *Registry) List(ctx context.Context) ([]models.RoomSummary, error) {
	roomRows, err := r.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	out := make([]models.RoomSummary, 0, len(roomRows))
	for _, room := range roomRows {
		out = append(out, models.RoomSummary{
			ID:      room.ID,
			Name:    room.Name,
			Genre:   room.Genre,
			Status:  room.Status,
			Players: r.Members(room.ID),
		})
	}
	return out, nil
}

// MarkStatus updates the lifecycle status of a room.
func (r *Registry) MarkStatus(ctx context.Context, roomID uuid.UUID, status models.RoomStatus) error {
	return r.repo.UpdateStatus(ctx, roomID, status)
}

func deletionKey(roomID uuid.UUID) string {
	return "room-delete:" + roomID.String()
}

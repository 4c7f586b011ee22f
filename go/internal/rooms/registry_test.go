package rooms

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encorequiz/encore/go/internal/clock"
	"github.com/encorequiz/encore/go/internal/models"
)

type registryFixture struct {
	clk     *clockwork.FakeClock
	reg     *Registry
	mu      sync.Mutex
	deleted []models.Room
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	f := &registryFixture{clk: clockwork.NewFakeClock()}
	sched := clock.NewScheduler(f.clk)
	t.Cleanup(sched.Stop)
	f.reg = NewRegistry(NewMemoryRepository(f.clk), sched, func(room models.Room) {
		f.mu.Lock()
		f.deleted = append(f.deleted, room)
		f.mu.Unlock()
	})
	return f
}

func (f *registryFixture) deletedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deleted)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRegistry_CreateRoomDuplicateName(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	_, err := f.reg.CreateRoom(ctx, "abc", "pop")
	require.NoError(t, err)

	_, err = f.reg.CreateRoom(ctx, "abc", "rock")
	assert.ErrorIs(t, err, ErrRoomNameTaken)
}

func TestRegistry_JoinUnknownRoom(t *testing.T) {
	f := newRegistryFixture(t)
	_, err := f.reg.Join(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRegistry_JoinLeaveMembership(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	room, err := f.reg.CreateRoom(ctx, "abc", "pop")
	require.NoError(t, err)

	alice, bob := uuid.New(), uuid.New()
	_, err = f.reg.Join(ctx, room.ID, alice)
	require.NoError(t, err)
	_, err = f.reg.Join(ctx, room.ID, bob)
	require.NoError(t, err)

	assert.Equal(t, 2, f.reg.MemberCount(room.ID))
	assert.Len(t, f.reg.Members(room.ID), 2)

	require.NoError(t, f.reg.Leave(ctx, room.ID, alice))
	assert.Equal(t, 1, f.reg.MemberCount(room.ID))
}

func TestRegistry_EmptyRoomDeletedAfterGrace(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	room, err := f.reg.CreateRoom(ctx, "abc", "pop")
	require.NoError(t, err)

	alice := uuid.New()
	_, err = f.reg.Join(ctx, room.ID, alice)
	require.NoError(t, err)
	require.NoError(t, f.reg.Leave(ctx, room.ID, alice))

	got, err := f.reg.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusEmpty, got.Status)

	f.clk.Advance(DeletionGrace)
	waitFor(t, func() bool { return f.deletedCount() == 1 })

	_, err = f.reg.Get(ctx, room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRegistry_RejoinCancelsDeletion(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	room, err := f.reg.CreateRoom(ctx, "abc", "pop")
	require.NoError(t, err)

	alice := uuid.New()
	_, err = f.reg.Join(ctx, room.ID, alice)
	require.NoError(t, err)
	require.NoError(t, f.reg.Leave(ctx, room.ID, alice))

	f.clk.Advance(DeletionGrace - time.Second)
	_, err = f.reg.Join(ctx, room.ID, alice)
	require.NoError(t, err)

	f.clk.Advance(DeletionGrace)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 0, f.deletedCount())
	got, err := f.reg.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusWaiting, got.Status)
}

func TestRegistry_ConcurrentJoinsAndLeaves(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	room, err := f.reg.CreateRoom(ctx, "abc", "pop")
	require.NoError(t, err)

	const n = 50
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.reg.Join(ctx, room.ID, id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()
	assert.Equal(t, n, f.reg.MemberCount(room.ID))

	for _, id := range ids[:n/2] {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			assert.NoError(t, f.reg.Leave(ctx, room.ID, id))
		}(id)
	}
	wg.Wait()
	assert.Equal(t, n/2, f.reg.MemberCount(room.ID))
}

func TestRegistry_ListIncludesMembers(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	a, err := f.reg.CreateRoom(ctx, "first", "pop")
	require.NoError(t, err)
	_, err = f.reg.CreateRoom(ctx, "second", "rock")
	require.NoError(t, err)

	alice := uuid.New()
	_, err = f.reg.Join(ctx, a.ID, alice)
	require.NoError(t, err)

	list, err := f.reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Name)
	assert.Equal(t, []uuid.UUID{alice}, list[0].Players)
	assert.Empty(t, list[1].Players)
}

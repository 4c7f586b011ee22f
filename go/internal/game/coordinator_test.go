package game

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encorequiz/encore/go/internal/clock"
	"github.com/encorequiz/encore/go/internal/events"
	"github.com/encorequiz/encore/go/internal/models"
	"github.com/encorequiz/encore/go/internal/rooms"
	"github.com/encorequiz/encore/go/internal/scores"
	"github.com/encorequiz/encore/go/internal/users"
)

type stubSource struct {
	mu      sync.Mutex
	content *models.RoundContent
	err     error
	calls   int
}

func (s *stubSource) NextRound(ctx context.Context, sel models.RoundSelection) (*models.RoundContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.content
	return &cp, nil
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.RoomEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev *events.RoomEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Event == name {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) last(name string) *events.RoomEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Event == name {
			return p.events[i]
		}
	}
	return nil
}

type coordinatorFixture struct {
	clk    *clockwork.FakeClock
	sched  *clock.Scheduler
	reg    *rooms.Registry
	users  *users.MemoryRepository
	games  *MemoryRepository
	ledger *scores.MemoryLedger
	pub    *recordingPublisher
	source *stubSource
	coord  *Coordinator
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()
	f := &coordinatorFixture{
		clk: clockwork.NewFakeClock(),
		pub: &recordingPublisher{},
		source: &stubSource{content: &models.RoundContent{
			Kind:      models.QuestionKindTrivia,
			Question:  "Capital of France?",
			AnswerKey: "Paris",
		}},
	}
	f.sched = clock.NewScheduler(f.clk)
	t.Cleanup(f.sched.Stop)
	f.users = users.NewMemoryRepository(f.clk)
	f.games = NewMemoryRepository()
	f.ledger = scores.NewMemoryLedger(f.clk, f.users, f.games)
	f.reg = rooms.NewRegistry(rooms.NewMemoryRepository(f.clk), f.sched, func(room models.Room) {
		f.coord.RoomDeleted(room)
	})
	f.coord = NewCoordinator(f.reg, f.games, f.ledger, f.users, f.source, f.sched, f.pub, f.clk)
	return f
}

func (f *coordinatorFixture) startRound(t *testing.T, roomID uuid.UUID) *models.Game {
	t.Helper()
	g, err := f.coord.StartGame(context.Background(), roomID, models.RoundSelection{
		Kind: models.QuestionKindTrivia, Topic: "Geography", Country: "France",
	})
	require.NoError(t, err)
	waitFor(t, func() bool { return f.pub.count(events.EventNewRound) >= 1 })
	return g
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

func TestCoordinator_ConcurrentStartsOneWinner(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	room, err := f.coord.CreateRoom(ctx, "abc", "pop")
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	var successes, conflicts atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coord.StartGame(ctx, room.ID, models.RoundSelection{Kind: models.QuestionKindTrivia})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrGameInProgress):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(n-1), conflicts.Load())
}

func TestCoordinator_StartUnknownRoom(t *testing.T) {
	f := newCoordinatorFixture(t)
	_, err := f.coord.StartGame(context.Background(), uuid.New(), models.RoundSelection{})
	assert.ErrorIs(t, err, rooms.ErrRoomNotFound)
}

func TestCoordinator_RoundScenario(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	room, err := f.coord.CreateRoom(ctx, "abc", "pop")
	require.NoError(t, err)
	alice, err := f.coord.Join(ctx, room.ID, "alice")
	require.NoError(t, err)
	bob, err := f.coord.Join(ctx, room.ID, "bob")
	require.NoError(t, err)

	f.startRound(t, room.ID)

	// game_started reaches the room before the first round's content arrives.
	require.Equal(t, 1, f.pub.count(events.EventGameStarted))
	var started events.GameStartedPayload
	require.NoError(t, json.Unmarshal(f.pub.last(events.EventGameStarted).Data, &started))
	assert.Equal(t, room.ID, started.RoomID)
	assert.Equal(t, room.ID, f.pub.last(events.EventGameStarted).RoomID)

	var round events.NewRoundPayload
	require.NoError(t, json.Unmarshal(f.pub.last(events.EventNewRound).Data, &round))
	assert.Equal(t, "Capital of France?", round.Question)
	assert.Empty(t, round.SongTitle)

	require.NoError(t, f.coord.SubmitAnswer(ctx, room.ID, alice.ID, "paris"))
	require.NoError(t, f.coord.SubmitAnswer(ctx, room.ID, bob.ID, "Paris!"))

	var tally events.UpdateScoresPayload
	require.NoError(t, json.Unmarshal(f.pub.last(events.EventUpdateScores).Data, &tally))
	require.Len(t, tally.Scores, 2)
	assert.Equal(t, 10, tally.Scores[0].Score)
	assert.Equal(t, 10, tally.Scores[1].Score)

	// Deadline passes with nobody at the threshold: a new round starts in the
	// same game.
	f.clk.Advance(RoundDuration)
	waitFor(t, func() bool { return f.pub.count(events.EventNewRound) >= 2 })
	assert.Equal(t, 2, f.source.callCount())
	assert.Zero(t, f.pub.count(events.EventGameOver))
}

func TestCoordinator_WinOnAwardCrossingThreshold(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	room, err := f.coord.CreateRoom(ctx, "abc", "pop")
	require.NoError(t, err)
	alice, err := f.coord.Join(ctx, room.ID, "alice")
	require.NoError(t, err)

	g := f.startRound(t, room.ID)

	// 90 points banked: the next correct answer crosses the threshold.
	_, err = f.ledger.Award(ctx, alice.ID, g.ID, 90)
	require.NoError(t, err)
	assert.Zero(t, f.pub.count(events.EventGameOver))

	require.NoError(t, f.coord.SubmitAnswer(ctx, room.ID, alice.ID, "paris"))

	require.Equal(t, 1, f.pub.count(events.EventGameOver))
	var over events.GameOverPayload
	require.NoError(t, json.Unmarshal(f.pub.last(events.EventGameOver).Data, &over))
	assert.Equal(t, "alice", over.Winner)
	assert.Equal(t, 100, over.Score)
	assert.Contains(t, over.LeaderboardURL, g.ID.String())

	got, err := f.games.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusFinished, got.Status)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, alice.ID, *got.WinnerID)

	// The answer window is closed.
	err = f.coord.SubmitAnswer(ctx, room.ID, alice.ID, "paris")
	assert.ErrorIs(t, err, ErrNoActiveRound)
}

func TestCoordinator_DeadlineDeclaresLeader(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	room, err := f.coord.CreateRoom(ctx, "abc", "pop")
	require.NoError(t, err)
	alice, err := f.coord.Join(ctx, room.ID, "alice")
	require.NoError(t, err)

	g := f.startRound(t, room.ID)
	_, err = f.ledger.Award(ctx, alice.ID, g.ID, 100)
	require.NoError(t, err)

	f.clk.Advance(RoundDuration)
	waitFor(t, func() bool { return f.pub.count(events.EventGameOver) == 1 })

	var over events.GameOverPayload
	require.NoError(t, json.Unmarshal(f.pub.last(events.EventGameOver).Data, &over))
	assert.Equal(t, "alice", over.Winner)
	assert.Equal(t, 100, over.Score)
}

func TestCoordinator_ForceEndThenStaleDeadline(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	room, err := f.coord.CreateRoom(ctx, "abc", "pop")
	require.NoError(t, err)
	g := f.startRound(t, room.ID)

	require.NoError(t, f.coord.ForceEnd(ctx, room.ID))

	require.Equal(t, 1, f.pub.count(events.EventGameOver))
	var over events.GameOverPayload
	require.NoError(t, json.Unmarshal(f.pub.last(events.EventGameOver).Data, &over))
	assert.Empty(t, over.Winner)
	assert.Zero(t, over.Score)

	got, err := f.games.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusFinished, got.Status)
	assert.Nil(t, got.WinnerID)

	// The original deadline firing late must not resurrect the game.
	f.clk.Advance(RoundDuration)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.pub.count(events.EventGameOver))
	assert.Equal(t, 1, f.source.callCount())

	// The room is free for a fresh game.
	_, err = f.coord.StartGame(ctx, room.ID, models.RoundSelection{Kind: models.QuestionKindTrivia})
	assert.NoError(t, err)
}

func TestCoordinator_ForceEndWithoutGame(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	room, err := f.coord.CreateRoom(ctx, "abc", "pop")
	require.NoError(t, err)

	assert.ErrorIs(t, f.coord.ForceEnd(ctx, room.ID), ErrGameNotFound)
}

func TestCoordinator_UpstreamFailureAbortsGame(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	room, err := f.coord.CreateRoom(ctx, "abc", "pop")
	require.NoError(t, err)

	f.source.mu.Lock()
	f.source.err = errors.New("provider down")
	f.source.mu.Unlock()

	g, err := f.coord.StartGame(ctx, room.ID, models.RoundSelection{Kind: models.QuestionKindTrivia})
	require.NoError(t, err)

	waitFor(t, func() bool { return f.pub.count(events.EventError) == 1 })
	waitFor(t, func() bool {
		got, err := f.games.Get(ctx, g.ID)
		return err == nil && got.Status == models.GameStatusFinished
	})
	assert.Zero(t, f.pub.count(events.EventNewRound))

	// The room survives the failed round.
	_, err = f.coord.Join(ctx, room.ID, "alice")
	assert.NoError(t, err)
}

func TestCoordinator_SubmitWithoutRound(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	room, err := f.coord.CreateRoom(ctx, "abc", "pop")
	require.NoError(t, err)
	alice, err := f.coord.Join(ctx, room.ID, "alice")
	require.NoError(t, err)

	err = f.coord.SubmitAnswer(ctx, room.ID, alice.ID, "paris")
	assert.ErrorIs(t, err, ErrNoActiveRound)
}

func TestCoordinator_MusicRoundPayload(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	f.source.mu.Lock()
	f.source.content = &models.RoundContent{
		Kind:      models.QuestionKindTrack,
		Question:  "Guess the song title",
		AnswerKey: "Bohemian Rhapsody",
		Track: &models.Track{
			Title:      "Bohemian Rhapsody",
			Artist:     "Queen",
			PreviewURL: "https://example.com/preview.mp3",
		},
	}
	f.source.mu.Unlock()

	room, err := f.coord.CreateRoom(ctx, "abc", "rock")
	require.NoError(t, err)
	alice, err := f.coord.Join(ctx, room.ID, "alice")
	require.NoError(t, err)
	f.startRound(t, room.ID)

	var round events.NewRoundPayload
	require.NoError(t, json.Unmarshal(f.pub.last(events.EventNewRound).Data, &round))
	assert.Equal(t, "Bohemian Rhapsody", round.SongTitle)
	assert.Equal(t, "Queen", round.SongArtist)
	assert.NotEmpty(t, round.SongPreview)

	require.NoError(t, f.coord.SubmitAnswer(ctx, room.ID, alice.ID, "bohemian rhapsody"))
	var tally events.UpdateScoresPayload
	require.NoError(t, json.Unmarshal(f.pub.last(events.EventUpdateScores).Data, &tally))
	require.Len(t, tally.Scores, 1)
	assert.Equal(t, 10, tally.Scores[0].Score)
}

func TestCoordinator_RoomDeletionEndsGameAndBroadcasts(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	room, err := f.coord.CreateRoom(ctx, "abc", "pop")
	require.NoError(t, err)
	alice, err := f.coord.Join(ctx, room.ID, "alice")
	require.NoError(t, err)
	f.startRound(t, room.ID)

	require.NoError(t, f.coord.Leave(ctx, room.ID, alice.ID))
	f.clk.Advance(rooms.DeletionGrace)
	waitFor(t, func() bool { return f.pub.count(events.EventRoomDeleted) == 1 })

	ev := f.pub.last(events.EventRoomDeleted)
	assert.True(t, ev.Broadcast())
	assert.Equal(t, 1, f.pub.count(events.EventGameOver))
}

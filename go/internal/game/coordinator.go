// Package game drives the round lifecycle: one coordinator owns every room's
// game state, serializes mutations per room, and chains timed rounds until a
// score reaches the winning threshold.
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/encorequiz/encore/go/internal/clock"
	"github.com/encorequiz/encore/go/internal/events"
	"github.com/encorequiz/encore/go/internal/models"
	"github.com/encorequiz/encore/go/internal/rooms"
	"github.com/encorequiz/encore/go/internal/scores"
	"github.com/encorequiz/encore/go/internal/users"
)

const (
	// RoundDuration is the answer window of one round.
	RoundDuration = 30 * time.Second

	// WinThreshold ends the game on the award that reaches it.
	WinThreshold = 100
)

// roomState is the per-room serialization region. Every mutation of a room's
// game (start, submit, force end, deadline fire) runs under mu. The epoch
// counter invalidates pending deadline callbacks: each scheduled fire carries
// the epoch current when it was armed and is ignored if the room has moved on.
type roomState struct {
	mu        sync.Mutex
	gameID    uuid.UUID
	epoch     uint64
	selection models.RoundSelection
	kind      models.QuestionKind
	answerKey string
	awaiting  bool
}

// Coordinator orchestrates all rooms' games. Constructed once at startup and
// injected into the transport handlers; tests build a fresh one per case.
type Coordinator struct {
	registry *rooms.Registry
	games    Repository
	ledger   scores.Ledger
	users    users.Repository
	source   ContentSource
	sched    *clock.Scheduler
	pub      events.Publisher
	clock    clockwork.Clock

	roundDuration time.Duration

	mu    sync.Mutex
	rooms map[uuid.UUID]*roomState
}

func NewCoordinator(
	registry *rooms.Registry,
	games Repository,
	ledger scores.Ledger,
	userRepo users.Repository,
	source ContentSource,
	sched *clock.Scheduler,
	pub events.Publisher,
	clk clockwork.Clock,
) *Coordinator {
	return &Coordinator{
		registry:      registry,
		games:         games,
		ledger:        ledger,
		users:         userRepo,
		source:        source,
		sched:         sched,
		pub:           pub,
		clock:         clk,
		roundDuration: RoundDuration,
		rooms:         make(map[uuid.UUID]*roomState),
	}
}

// SetRoundDuration overrides the answer window, used by tests.
func (c *Coordinator) SetRoundDuration(d time.Duration) { c.roundDuration = d }

func (c *Coordinator) state(roomID uuid.UUID) *roomState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.rooms[roomID]
	if !ok {
		st = &roomState{}
		c.rooms[roomID] = st
	}
	return st
}

// CreateRoom creates a room and announces it to every connected client.
func (c *Coordinator) CreateRoom(ctx context.Context, name, genre string) (*models.Room, error) {
	room, err := c.registry.CreateRoom(ctx, name, genre)
	if err != nil {
		return nil, err
	}
	c.emit(ctx, uuid.Nil, events.EventRoomCreated, events.RoomCreatedPayload{
		RoomID:   room.ID,
		RoomName: room.Name,
	})
	return room, nil
}

// Join resolves the username to a user (creating one on first join), adds it
// to the room and confirms to the room's members.
func (c *Coordinator) Join(ctx context.Context, roomID uuid.UUID, username string) (*models.User, error) {
	user, err := c.users.GetOrCreate(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user %q: %w", username, err)
	}
	if _, err := c.registry.Join(ctx, roomID, user.ID); err != nil {
		return nil, err
	}
	c.emit(ctx, roomID, events.EventJoinConfirmation, events.JoinConfirmationPayload{
		RoomID:   roomID,
		Username: user.Username,
	})
	return user, nil
}

// Leave removes the member; the registry handles empty-room deletion.
func (c *Coordinator) Leave(ctx context.Context, roomID, userID uuid.UUID) error {
	return c.registry.Leave(ctx, roomID, userID)
}

// RoomDeleted is the registry's deferred-deletion callback. The deletion is
// broadcast to everyone so lobby lists stay current, and any game the room
// still had playing is finished.
func (c *Coordinator) RoomDeleted(room models.Room) {
	ctx := context.Background()
	st := c.state(room.ID)
	st.mu.Lock()
	if g, err := c.games.GetPlayingByRoom(ctx, room.ID); err == nil {
		c.finishLocked(ctx, st, g, nil)
	}
	st.mu.Unlock()

	c.mu.Lock()
	delete(c.rooms, room.ID)
	c.mu.Unlock()

	c.emit(ctx, uuid.Nil, events.EventRoomDeleted, events.RoomDeletedPayload{RoomID: room.ID})
}

// StartGame creates a game for the room and kicks off its first round. At most
// one game is playing per room; a concurrent second start loses with
// ErrGameInProgress.
func (c *Coordinator) StartGame(ctx context.Context, roomID uuid.UUID, sel models.RoundSelection) (*models.Game, error) {
	if _, err := c.registry.Get(ctx, roomID); err != nil {
		return nil, err
	}

	st := c.state(roomID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, err := c.games.GetPlayingByRoom(ctx, roomID); err == nil {
		return nil, ErrGameInProgress
	}

	g := &models.Game{
		ID:        uuid.New(),
		RoomID:    roomID,
		Status:    models.GameStatusPlaying,
		StartedAt: c.clock.Now().UTC(),
	}
	if err := c.games.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	if err := c.registry.MarkStatus(ctx, roomID, models.RoomStatusActive); err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to mark room active")
	}

	st.gameID = g.ID
	st.selection = sel
	st.awaiting = false
	st.epoch++
	epoch := st.epoch

	log.Info().
		Str("room_id", roomID.String()).
		Str("game_id", g.ID.String()).
		Str("kind", string(sel.Kind)).
		Msg("game started")

	c.emit(ctx, roomID, events.EventGameStarted, events.GameStartedPayload{RoomID: roomID})

	go c.beginRound(roomID, g.ID, epoch)
	return g, nil
}

// beginRound fetches round content and opens the answer window. It runs on its
// own goroutine so a slow provider never blocks other rooms; the epoch check
// on re-entry discards the fetch if the game moved on meanwhile.
func (c *Coordinator) beginRound(roomID, gameID uuid.UUID, epoch uint64) {
	ctx := context.Background()
	st := c.state(roomID)

	st.mu.Lock()
	if st.gameID != gameID || st.epoch != epoch {
		st.mu.Unlock()
		return
	}
	sel := st.selection
	st.mu.Unlock()

	content, err := c.source.NextRound(ctx, sel)

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.gameID != gameID || st.epoch != epoch {
		return
	}

	if err != nil {
		log.Error().Err(err).
			Str("room_id", roomID.String()).
			Str("game_id", gameID.String()).
			Msg("round content fetch failed, aborting game")
		c.emit(ctx, roomID, events.EventError, events.ErrorPayload{
			Error: fmt.Sprintf("%v: %v", ErrUpstreamUnavailable, err),
		})
		if g, getErr := c.games.Get(ctx, gameID); getErr == nil && g.Status == models.GameStatusPlaying {
			c.finishLocked(ctx, st, g, nil)
		}
		return
	}

	g, err := c.games.Get(ctx, gameID)
	if err != nil || g.Status != models.GameStatusPlaying {
		return
	}

	deadline := c.clock.Now().UTC().Add(c.roundDuration)
	question := content.Question
	kind := string(content.Kind)
	g.CurrentQuestion = &question
	g.QuestionType = &kind
	g.Deadline = &deadline
	if err := c.games.Update(ctx, g); err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("failed to store round on game")
	}

	st.kind = content.Kind
	st.answerKey = content.AnswerKey
	st.awaiting = true

	c.sched.Schedule(roundKey(roomID), c.roundDuration, func() {
		c.handleDeadline(roomID, gameID, epoch)
	})

	payload := events.NewRoundPayload{Question: content.Question}
	if content.Track != nil {
		payload.SongTitle = content.Track.Title
		payload.SongArtist = content.Track.Artist
		payload.SongPreview = content.Track.PreviewURL
	}
	c.emit(ctx, roomID, events.EventNewRound, payload)

	log.Info().
		Str("room_id", roomID.String()).
		Str("game_id", gameID.String()).
		Time("deadline", deadline).
		Msg("round started")
}

// SubmitAnswer checks a submission against the open round. Correct answers
// award points; every submission rebroadcasts the game's running tally. The
// award that lifts the submitter to the winning threshold ends the game on the
// spot.
func (c *Coordinator) SubmitAnswer(ctx context.Context, roomID, userID uuid.UUID, answer string) error {
	st := c.state(roomID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.awaiting {
		return ErrNoActiveRound
	}
	gameID := st.gameID

	correct := CorrectAnswer(st.kind, st.answerKey, answer)
	var total int
	if correct {
		var err error
		total, err = c.ledger.Award(ctx, userID, gameID, scores.AwardAmount)
		if err != nil {
			return fmt.Errorf("failed to award score: %w", err)
		}
	}

	lb, err := c.ledger.GameLeaderboard(ctx, gameID)
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("failed to load game leaderboard")
	} else {
		tally := make([]events.ScoreEntry, 0, len(lb))
		for _, row := range lb {
			tally = append(tally, events.ScoreEntry{Username: row.Username, Score: row.Score})
		}
		c.emit(ctx, roomID, events.EventUpdateScores, events.UpdateScoresPayload{Scores: tally})
	}

	if correct {
		c.emitRoomLeaderboard(ctx, roomID)
	}

	if correct && total >= WinThreshold {
		g, err := c.games.Get(ctx, gameID)
		if err != nil {
			return fmt.Errorf("failed to load game: %w", err)
		}
		winner := &models.RankedScore{UserID: userID, Score: total}
		if user, err := c.users.GetByID(ctx, userID); err == nil {
			winner.Username = user.Username
		}
		c.finishLocked(ctx, st, g, winner)
	}
	return nil
}

// ForceEnd finishes the room's playing game without a winner and invalidates
// the pending deadline.
func (c *Coordinator) ForceEnd(ctx context.Context, roomID uuid.UUID) error {
	st := c.state(roomID)
	st.mu.Lock()
	defer st.mu.Unlock()

	g, err := c.games.GetPlayingByRoom(ctx, roomID)
	if err != nil {
		return ErrGameNotFound
	}
	c.finishLocked(ctx, st, g, nil)
	log.Info().Str("room_id", roomID.String()).Str("game_id", g.ID.String()).Msg("game force ended")
	return nil
}

// handleDeadline resolves a round when its timer fires. Stale fires, where the
// game was force-ended or a newer round armed the key, fail the epoch check
// and do nothing.
func (c *Coordinator) handleDeadline(roomID, gameID uuid.UUID, epoch uint64) {
	ctx := context.Background()
	st := c.state(roomID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.gameID != gameID || st.epoch != epoch {
		log.Debug().Str("room_id", roomID.String()).Msg("stale deadline fire ignored")
		return
	}

	g, err := c.games.Get(ctx, gameID)
	if err != nil || g.Status != models.GameStatusPlaying {
		return
	}

	lb, err := c.ledger.GameLeaderboard(ctx, gameID)
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("failed to evaluate winner at deadline")
	}
	if len(lb) > 0 && lb[0].Score >= WinThreshold {
		winner := lb[0]
		c.finishLocked(ctx, st, g, &winner)
		return
	}

	// No winner: chain the next round with the same selection.
	st.awaiting = false
	st.answerKey = ""
	st.epoch++
	next := st.epoch

	g.CurrentQuestion = nil
	g.Deadline = nil
	if err := c.games.Update(ctx, g); err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("failed to clear round on game")
	}

	log.Info().
		Str("room_id", roomID.String()).
		Str("game_id", gameID.String()).
		Msg("round ended without winner, starting next round")

	go c.beginRound(roomID, gameID, next)
}

// Room returns the room row.
func (c *Coordinator) Room(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	return c.registry.Get(ctx, roomID)
}

// CurrentGame returns the room's playing game, if any.
func (c *Coordinator) CurrentGame(ctx context.Context, roomID uuid.UUID) (*models.Game, error) {
	return c.games.GetPlayingByRoom(ctx, roomID)
}

// ListRooms lists rooms with their current game ids filled in.
func (c *Coordinator) ListRooms(ctx context.Context) ([]models.RoomSummary, error) {
	list, err := c.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if g, err := c.games.GetPlayingByRoom(ctx, list[i].ID); err == nil {
			id := g.ID
			list[i].GameID = &id
		}
	}
	return list, nil
}

// finishLocked ends a game under the room lock: marks it finished, cancels the
// pending deadline, bumps the epoch so late fires are no-ops, and broadcasts
// game_over. The winner's score comes from the ledger row, never the user.
func (c *Coordinator) finishLocked(ctx context.Context, st *roomState, g *models.Game, winner *models.RankedScore) {
	st.awaiting = false
	st.answerKey = ""
	st.epoch++
	c.sched.Cancel(roundKey(g.RoomID))

	now := c.clock.Now().UTC()
	g.Status = models.GameStatusFinished
	g.CurrentQuestion = nil
	g.Deadline = nil
	g.FinishedAt = &now
	payload := events.GameOverPayload{LeaderboardURL: leaderboardURL(g.ID)}
	if winner != nil {
		g.WinnerID = &winner.UserID
		payload.Winner = winner.Username
		payload.Score = winner.Score
	}
	if err := c.games.Update(ctx, g); err != nil {
		log.Error().Err(err).Str("game_id", g.ID.String()).Msg("failed to finish game")
	}
	if err := c.registry.MarkStatus(ctx, g.RoomID, models.RoomStatusWaiting); err != nil {
		log.Error().Err(err).Str("room_id", g.RoomID.String()).Msg("failed to reset room status")
	}

	c.emit(ctx, g.RoomID, events.EventGameOver, payload)
	c.emitRoomLeaderboard(ctx, g.RoomID)

	log.Info().
		Str("room_id", g.RoomID.String()).
		Str("game_id", g.ID.String()).
		Bool("has_winner", winner != nil).
		Msg("game over")
}

func (c *Coordinator) emitRoomLeaderboard(ctx context.Context, roomID uuid.UUID) {
	lb, err := c.ledger.RoomLeaderboard(ctx, roomID, scores.RoomLeaderboardLimit)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to load room leaderboard")
		return
	}
	c.emit(ctx, roomID, events.EventLeaderboardUpdate, events.LeaderboardUpdatePayload{Leaderboard: lb})
}

func (c *Coordinator) emit(ctx context.Context, roomID uuid.UUID, name string, payload any) {
	ev, err := events.New(roomID, name, payload, c.clock.Now().UTC())
	if err != nil {
		log.Error().Err(err).Str("event", name).Msg("failed to build event")
		return
	}
	if err := c.pub.Publish(ctx, ev); err != nil {
		log.Error().Err(err).Str("event", name).Msg("failed to publish event")
	}
}

func roundKey(roomID uuid.UUID) string {
	return "round:" + roomID.String()
}

func leaderboardURL(gameID uuid.UUID) string {
	return "/api/leaderboard/game/" + gameID.String()
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/encorequiz/encore/go/internal/events"
	"github.com/encorequiz/encore/go/internal/game"
	"github.com/encorequiz/encore/go/internal/models"
	"github.com/encorequiz/encore/go/internal/rooms"
	"github.com/encorequiz/encore/go/internal/topics"
)

// Inbound command names.
const (
	CommandJoinRoom     = "join_room"
	CommandLeaveRoom    = "leave_room"
	CommandStartGame    = "start_game"
	CommandSubmitAnswer = "submit_answer"
	CommandForceEnd     = "force_end"
)

// Command is the inbound wire envelope.
type Command struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinRoomData struct {
	RoomID   uuid.UUID `json:"room_id"`
	Username string    `json:"username"`
}

type leaveRoomData struct {
	RoomID uuid.UUID `json:"room_id"`
}

type startGameData struct {
	RoomID   uuid.UUID `json:"room_id"`
	Kind     string    `json:"kind"`
	Topic    string    `json:"topic"`
	Subtopic string    `json:"subtopic"`
	Country  string    `json:"country"`
	Genre    string    `json:"genre"`
}

type submitAnswerData struct {
	RoomID uuid.UUID `json:"room_id"`
	Answer string    `json:"answer"`
}

type forceEndData struct {
	RoomID uuid.UUID `json:"room_id"`
}

// CommandService decodes inbound socket commands, validates them and calls the
// coordinator. Failures go back to the sending connection as error events;
// they never reach the room.
type CommandService struct {
	coord   *game.Coordinator
	catalog *topics.Catalog
	manager *ConnectionManager
	clock   clockwork.Clock
}

func NewCommandService(coord *game.Coordinator, catalog *topics.Catalog, manager *ConnectionManager, clk clockwork.Clock) *CommandService {
	s := &CommandService{coord: coord, catalog: catalog, manager: manager, clock: clk}
	manager.SetDisconnectHandler(s.handleDisconnect)
	return s
}

// HandleMessage is the read-pump callback for one inbound frame.
func (s *CommandService) HandleMessage(conn *Connection, message []byte) {
	ctx := context.Background()

	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.sendError(conn, fmt.Errorf("malformed command: %w", err))
		return
	}

	var err error
	switch cmd.Event {
	case CommandJoinRoom:
		err = s.joinRoom(ctx, conn, cmd.Data)
	case CommandLeaveRoom:
		err = s.leaveRoom(ctx, conn, cmd.Data)
	case CommandStartGame:
		err = s.startGame(ctx, conn, cmd.Data)
	case CommandSubmitAnswer:
		err = s.submitAnswer(ctx, conn, cmd.Data)
	case CommandForceEnd:
		err = s.forceEnd(ctx, conn, cmd.Data)
	default:
		err = fmt.Errorf("unknown command %q", cmd.Event)
	}
	if err != nil {
		log.Debug().Err(err).Str("command", cmd.Event).Str("sid", conn.SID).Msg("command rejected")
		s.sendError(conn, err)
	}
}

func (s *CommandService) joinRoom(ctx context.Context, conn *Connection, data json.RawMessage) error {
	var d joinRoomData
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("malformed join_room payload: %w", err)
	}
	if d.Username == "" {
		return errors.New("username is required")
	}
	user, err := s.coord.Join(ctx, d.RoomID, d.Username)
	if err != nil {
		return err
	}
	conn.UserID = user.ID
	conn.Username = user.Username
	s.manager.JoinRoom(conn, d.RoomID)
	return nil
}

func (s *CommandService) leaveRoom(ctx context.Context, conn *Connection, data json.RawMessage) error {
	var d leaveRoomData
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("malformed leave_room payload: %w", err)
	}
	if conn.UserID == uuid.Nil {
		return errors.New("not joined")
	}
	s.manager.LeaveRoom(conn, d.RoomID)
	return s.coord.Leave(ctx, d.RoomID, conn.UserID)
}

func (s *CommandService) startGame(ctx context.Context, conn *Connection, data json.RawMessage) error {
	var d startGameData
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("malformed start_game payload: %w", err)
	}
	sel, err := buildSelection(ctx, s.coord, s.catalog, d)
	if err != nil {
		return err
	}
	_, err = s.coord.StartGame(ctx, d.RoomID, sel)
	return err
}

// buildSelection validates a start request against the catalog. Music rounds
// take their genre from the request or fall back to the room's genre tag.
func buildSelection(ctx context.Context, coord *game.Coordinator, catalog *topics.Catalog, d startGameData) (models.RoundSelection, error) {
	if models.QuestionKind(d.Kind) == models.QuestionKindTrack {
		genre := d.Genre
		if genre == "" {
			room, err := coord.Room(ctx, d.RoomID)
			if err != nil {
				return models.RoundSelection{}, err
			}
			genre = room.Genre
		}
		if genre == "" {
			return models.RoundSelection{}, errors.New("genre is required for music rounds")
		}
		return models.RoundSelection{Kind: models.QuestionKindTrack, Genre: genre}, nil
	}

	subtopic, err := catalog.NormalizeSelection(d.Topic, d.Subtopic, d.Country)
	if err != nil {
		return models.RoundSelection{}, err
	}
	return models.RoundSelection{
		Kind:     models.QuestionKindTrivia,
		Topic:    d.Topic,
		Subtopic: subtopic,
		Country:  d.Country,
	}, nil
}

func (s *CommandService) submitAnswer(ctx context.Context, conn *Connection, data json.RawMessage) error {
	var d submitAnswerData
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("malformed submit_answer payload: %w", err)
	}
	if conn.UserID == uuid.Nil {
		return errors.New("join a room before answering")
	}
	return s.coord.SubmitAnswer(ctx, d.RoomID, conn.UserID, d.Answer)
}

func (s *CommandService) forceEnd(ctx context.Context, conn *Connection, data json.RawMessage) error {
	var d forceEndData
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("malformed force_end payload: %w", err)
	}
	return s.coord.ForceEnd(ctx, d.RoomID)
}

// handleDisconnect treats a dropped connection as leave_room for every room it
// had joined.
func (s *CommandService) handleDisconnect(conn *Connection, joined []uuid.UUID) {
	if conn.UserID == uuid.Nil {
		return
	}
	ctx := context.Background()
	for _, roomID := range joined {
		if err := s.coord.Leave(ctx, roomID, conn.UserID); err != nil && !errors.Is(err, rooms.ErrRoomNotFound) {
			log.Error().Err(err).
				Str("room_id", roomID.String()).
				Str("user_id", conn.UserID.String()).
				Msg("failed to leave room on disconnect")
		}
	}
}

func (s *CommandService) sendError(conn *Connection, cause error) {
	ev, err := events.New(uuid.Nil, events.EventError, events.ErrorPayload{Error: cause.Error()}, s.clock.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("failed to build error event")
		return
	}
	s.manager.SendEvent(conn, ev)
}

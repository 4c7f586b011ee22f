package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/encorequiz/encore/go/clients/spotify_client"
	"github.com/encorequiz/encore/go/clients/trivia_client"
	"github.com/encorequiz/encore/go/internal/clock"
	"github.com/encorequiz/encore/go/internal/events"
	"github.com/encorequiz/encore/go/internal/game"
	"github.com/encorequiz/encore/go/internal/gateway"
	"github.com/encorequiz/encore/go/internal/models"
	"github.com/encorequiz/encore/go/internal/providers"
	"github.com/encorequiz/encore/go/internal/rooms"
	"github.com/encorequiz/encore/go/internal/scores"
	"github.com/encorequiz/encore/go/internal/topics"
	"github.com/encorequiz/encore/go/internal/users"
)

// Services wires the whole process: repositories, coordinator, event fan-out
// and the transport handlers.
type Services struct {
	Scheduler   *clock.Scheduler
	Registry    *rooms.Registry
	Users       users.Repository
	Games       game.Repository
	Ledger      scores.Ledger
	Coordinator *game.Coordinator
	Manager     *gateway.ConnectionManager
	Commands    *gateway.CommandService
	WebSocket   *gateway.WebSocketHandler
	HTTP        *gateway.HTTPHandler

	// Dispatcher is the in-process event path to the connection manager. When
	// JetStream is configured the same events are mirrored onto the stream for
	// external gateway processes.
	Dispatcher *events.Dispatcher
	JetStream  *events.JetStreamPublisher
}

func setupServices(cfg Config, db *sql.DB, clk clockwork.Clock) (*Services, error) {
	s := &Services{
		Scheduler:  clock.NewScheduler(clk),
		Dispatcher: events.NewDispatcher(),
	}

	if cfg.Storage == "postgres" {
		s.Users = users.NewPostgresRepository(db)
		s.Games = game.NewPostgresRepository(db)
		s.Ledger = scores.NewPostgresLedger(db)
	} else {
		memUsers := users.NewMemoryRepository(clk)
		memGames := game.NewMemoryRepository()
		s.Users = memUsers
		s.Games = memGames
		s.Ledger = scores.NewMemoryLedger(clk, memUsers, memGames)
	}

	catalog := topics.Default()
	if cfg.CatalogPath != "" {
		loaded, err := topics.Load(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load topic catalog: %w", err)
		}
		catalog = loaded
		log.Info().Str("path", cfg.CatalogPath).Msg("loaded topic catalog")
	}

	trivia := trivia_client.NewTriviaClient(cfg.OpenAIAPIKey)
	spotify := spotify_client.NewSpotifyClient(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
	provider := providers.New(trivia, spotify)

	var pub events.Publisher = s.Dispatcher
	if cfg.NATSURL != "" {
		jsCfg := events.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATSURL
		jsPub, err := events.NewJetStreamPublisher(jsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to set up JetStream publisher: %w", err)
		}
		s.JetStream = jsPub
		pub = teePublisher{s.Dispatcher, jsPub}
		log.Info().Str("url", cfg.NATSURL).Msg("mirroring events to JetStream")
	}

	var roomRepo rooms.Repository
	if cfg.Storage == "postgres" {
		roomRepo = rooms.NewPostgresRepository(db)
	} else {
		roomRepo = rooms.NewMemoryRepository(clk)
	}
	s.Registry = rooms.NewRegistry(roomRepo, s.Scheduler, func(room models.Room) {
		s.Coordinator.RoomDeleted(room)
	})

	s.Coordinator = game.NewCoordinator(s.Registry, s.Games, s.Ledger, s.Users, provider, s.Scheduler, pub, clk)

	s.Manager = gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	s.Dispatcher.Subscribe(s.Manager.Enqueue)

	s.Commands = gateway.NewCommandService(s.Coordinator, catalog, s.Manager, clk)
	s.WebSocket = gateway.NewWebSocketHandler(s.Manager, s.Commands, clk)
	s.HTTP = gateway.NewHTTPHandler(s.Coordinator, s.Ledger, catalog, s.Users, spotify)

	return s, nil
}

// teePublisher publishes to every wrapped publisher. A JetStream failure is
// returned after the in-process dispatch already ran, so local clients are
// never starved by relay trouble.
type teePublisher []events.Publisher

func (t teePublisher) Publish(ctx context.Context, event *events.RoomEvent) error {
	var firstErr error
	for _, p := range t {
		if err := p.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

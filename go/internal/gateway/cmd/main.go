// Standalone websocket gateway: consumes room events from JetStream instead
// of the in-process dispatcher, for deployments that split the gateway from
// the game server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/encorequiz/encore/go/internal/events"
	"github.com/encorequiz/encore/go/internal/gateway"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	port := os.Getenv("GATEWAY_PORT")
	if port == "" {
		port = "8081"
	}

	jsCfg := events.DefaultJetStreamConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		jsCfg.URL = url
	}

	manager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	consumer, err := events.NewJetStreamConsumer(jsCfg, manager.Enqueue)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up JetStream consumer")
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go manager.Start(ctx)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("consumer failed")
		}
	}()

	// Relay-only process: clients receive events here but send commands to the
	// game server, so upgrades take no message handler.
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if _, err := manager.UpgradeConnection(w, r, nil); err != nil {
			log.Error().Err(err).Msg("failed to upgrade websocket connection")
		}
	})

	server := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("gateway listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("gateway failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("gateway shutting down")
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

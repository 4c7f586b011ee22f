package main

import "os"

// Config is the process configuration, read from the environment after
// godotenv has loaded .env.
type Config struct {
	Port    string
	Storage string // "memory" or "postgres"

	OpenAIAPIKey        string
	SpotifyClientID     string
	SpotifyClientSecret string

	// CatalogPath optionally overrides the built-in topic catalog with a yaml
	// file.
	CatalogPath string

	// NATSURL, when set, mirrors every room event onto JetStream so the
	// websocket gateway can run as a separate process.
	NATSURL string
}

func loadConfig() Config {
	return Config{
		Port:                getEnv("PORT", "8080"),
		Storage:             getEnv("STORAGE", "memory"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		SpotifyClientID:     getEnv("SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret: getEnv("SPOTIFY_CLIENT_SECRET", ""),
		CatalogPath:         getEnv("CATALOG_PATH", ""),
		NATSURL:             getEnv("NATS_URL", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

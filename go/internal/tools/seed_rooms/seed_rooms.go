package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/encorequiz/encore/go/internal/dbconfig"
)

// Room mirrors the JSON snapshot of demo lobbies.
type Room struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Genre  string `json:"genre"`
	Status string `json:"status"`
}

func main() {
	// 1) Load the JSON snapshot
	data, err := os.ReadFile("go/internal/assets/rooms.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var seedRooms []Room
	if err := json.Unmarshal(data, &seedRooms); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Upsert and count
	var (
		total    = len(seedRooms)
		inserted int
		skipped  int
		errs     int
	)

	for _, r := range seedRooms {
		cmdTag, err := pool.Exec(context.Background(), `
            INSERT INTO rooms (id, name, genre, status)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (name) DO NOTHING
        `, r.ID, r.Name, r.Genre, r.Status)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting room %s: %v\n", r.Name, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Rooms seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}

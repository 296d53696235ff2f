package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/earnplay/cardbattle/go/internal/dbconfig"
	"github.com/earnplay/cardbattle/go/internal/game/repository"
)

// SeedPlayer mirrors the players.json layout.
type SeedPlayer struct {
	Username    string `json:"username"`
	PhoneNumber string `json:"phone_number"`
	Coins       int64  `json:"coins"`
}

func main() {
	path := flag.String("file", "go/internal/assets/players.json", "path to players.json")
	flag.Parse()

	ctx := context.Background()

	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *path, err)
		os.Exit(1)
	}
	var players []SeedPlayer
	if err := json.Unmarshal(data, &players); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal players: %v\n", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, dbconfig.NewConfigFromEnv().DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repository.EnsureSchema(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "ensure schema: %v\n", err)
		os.Exit(1)
	}

	const upsert = `
		INSERT INTO players (username, phone_number, coins)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE SET coins = EXCLUDED.coins`

	seeded := 0
	for _, p := range players {
		if _, err := pool.Exec(ctx, upsert, p.Username, p.PhoneNumber, p.Coins); err != nil {
			fmt.Fprintf(os.Stderr, "seed player %s: %v\n", p.Username, err)
			continue
		}
		seeded++
	}
	fmt.Printf("Seeded %d/%d players\n", seeded, len(players))
}

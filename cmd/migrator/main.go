package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"authsvc/internal/app"
	"authsvc/internal/config"
	"authsvc/internal/lib/jwt"
	"authsvc/internal/services/auth"
)

func main() {
	var configPath, seedPath string
	flag.StringVar(&configPath, "config", "", "path to config file (or use CONFIG_PATH env)")
	flag.StringVar(&seedPath, "seed", "", "YAML file with users to create (defaults to seed_path from config)")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	cfg := config.LoadConfig(configPath)
	if seedPath == "" {
		seedPath = cfg.SeedPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Printf("Applying schema (driver=%s)...", cfg.Storage.Driver)

	storage, closeStorage, err := app.OpenStorage(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer closeStorage(ctx)

	log.Println("Schema is up to date")

	if seedPath != "" {
		log.Printf("Seeding users from %s...", seedPath)

		// seeding never issues tokens, any key will do
		key, err := jwt.NewGeneratedKey()
		if err != nil {
			log.Fatalf("failed to generate key: %v", err)
		}
		signer := jwt.NewSigner(key, cfg.Tokens.AccessTTL, cfg.Tokens.RefreshTTL)

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		authService := auth.New(logger, storage, storage, storage, signer, cfg.BcryptCost, cfg.Tokens.RefreshStoreTTL)

		n, err := authService.SeedUsersFromFile(ctx, seedPath)
		if err != nil {
			log.Fatalf("failed to seed users: %v", err)
		}
		log.Printf("Users seeded (created=%d)", n)
	}

	fmt.Println("Database initialization completed successfully")
}

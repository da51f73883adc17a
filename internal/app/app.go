package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	httpapp "authsvc/internal/app/http"
	"authsvc/internal/config"
	"authsvc/internal/lib/jwt"
	"authsvc/internal/lib/sl"
	"authsvc/internal/services/auth"
	"authsvc/internal/storage/mongodb"
	"authsvc/internal/storage/postgres"
	"authsvc/internal/storage/sqlite"
)

const startupTimeout = 30 * time.Second

type App struct {
	HTTPSrv *httpapp.App

	logger       *slog.Logger
	closeStorage func(ctx context.Context) error
}

// CredentialStore is the method set every storage driver provides.
type CredentialStore interface {
	auth.UserSaver
	auth.UserProvider
	auth.RefreshTokenProvider
}

func New(logger *slog.Logger, cfg *config.Config) *App {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	storage, closeStorage, err := OpenStorage(ctx, cfg.Storage)
	if err != nil {
		panic(err)
	}

	keys, err := keyProvider(cfg.Tokens)
	if err != nil {
		panic(err)
	}

	signer := jwt.NewSigner(keys, cfg.Tokens.AccessTTL, cfg.Tokens.RefreshTTL)
	authService := auth.New(
		logger,
		storage,
		storage,
		storage,
		signer,
		cfg.BcryptCost,
		cfg.Tokens.RefreshStoreTTL,
	)

	if cfg.SeedPath != "" {
		if _, err := authService.SeedUsersFromFile(ctx, cfg.SeedPath); err != nil {
			panic(err)
		}
	}

	httpApp := httpapp.New(logger, authService, signer, cfg.HTTP)

	return &App{
		HTTPSrv:      httpApp,
		logger:       logger,
		closeStorage: closeStorage,
	}
}

// Stop shuts the HTTP server down first, then releases storage.
func (a *App) Stop(ctx context.Context) {
	const op = "app.Stop"
	log := a.logger.With(slog.String("op", op))

	if err := a.HTTPSrv.Stop(); err != nil {
		log.Error("failed to stop HTTP server", sl.Err(err))
	}

	if err := a.closeStorage(ctx); err != nil {
		log.Error("failed to close storage", sl.Err(err))
	}
}

// OpenStorage connects the configured driver and applies its schema.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (CredentialStore, func(context.Context) error, error) {
	const op = "app.OpenStorage"

	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, func(context.Context) error { return s.Close() }, nil
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, func(context.Context) error { return s.Close() }, nil
	case config.DriverMongoDB:
		s, err := mongodb.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("%s: unknown storage driver %q", op, cfg.Driver)
	}
}

func keyProvider(cfg config.TokensConfig) (jwt.KeyProvider, error) {
	if cfg.SigningKey != "" {
		return jwt.StaticKey(cfg.SigningKey), nil
	}

	key, err := jwt.NewGeneratedKey()
	if err != nil {
		return nil, fmt.Errorf("app.keyProvider: %w", err)
	}

	return key, nil
}

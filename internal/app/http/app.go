package httpapp

import (
	"fmt"
	"log/slog"

	"authsvc/internal/config"
	authhttp "authsvc/internal/http/auth"
	"authsvc/internal/http/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

type App struct {
	logger  *slog.Logger
	fiber   *fiber.App
	address string
}

func New(
	logger *slog.Logger,
	authService authhttp.Auth,
	validator middleware.TokenValidator,
	cfg config.HTTPConfig,
) *App {
	app := fiber.New(fiber.Config{
		AppName:               "authsvc",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(logger))
	app.Use(middleware.AccessGate(validator, cfg.PublicPaths...))

	authhttp.Register(app, authService)

	return &App{
		logger:  logger,
		fiber:   app,
		address: cfg.Address,
	}
}

// Handler exposes the fiber application, mainly for app.Test in tests.
func (a *App) Handler() *fiber.App {
	return a.fiber
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	const op = "httpapp.Run"

	log := a.logger.With(
		slog.String("op", op),
		slog.String("address", a.address),
	)

	log.Info("HTTP server is running")

	if err := a.fiber.Listen(a.address); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (a *App) Stop() error {
	const op = "httpapp.Stop"
	log := a.logger.With(slog.String("op", op))
	log.Info("stopping HTTP server", slog.String("address", a.address))

	if err := a.fiber.Shutdown(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

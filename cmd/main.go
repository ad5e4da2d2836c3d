package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"movie-interactions-service/docs"
	"movie-interactions-service/internal/config"
	"movie-interactions-service/internal/database"
	"movie-interactions-service/internal/handler"
	"movie-interactions-service/internal/repository"
	"movie-interactions-service/internal/service"
)

const startupTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})))

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.DB)
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := database.NewRedis(ctx, cfg.Redis)
	switch {
	case errors.Is(err, database.ErrCacheDisabled):
		slog.Info("REDIS_ADDR not set, running without cache")
	case err != nil:
		slog.Warn("Redis unavailable, running without cache", "error", err)
	default:
		defer rdb.Close()
	}

	repo := repository.NewInteractionRepository(db)
	svc := service.NewInteractionService(repo, rdb, cfg.Redis.TTL)
	h := handler.NewInteractionHandler(svc)

	app := fiber.New(fiber.Config{
		AppName:      "Movie Interactions Service",
		ServerHeader: "Movie-Interactions-Service",
		ErrorHandler: handler.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	handler.RegisterDocs(app, docs.OpenAPI)
	h.RegisterRoutes(app)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutting down movie interactions service...")
		_ = app.Shutdown()
	}()

	addr := ":" + cfg.Port
	slog.Info("starting movie interactions service", "addr", addr)
	if err := app.Listen(addr); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v3"

	"movie-interactions-service/internal/apperr"
	"movie-interactions-service/internal/models"
	"movie-interactions-service/internal/service"
)

const healthTimeout = 2 * time.Second

// InteractionHandler serves the registration, like and watchlist routes.
type InteractionHandler struct {
	svc *service.InteractionService
}

func NewInteractionHandler(svc *service.InteractionService) *InteractionHandler {
	return &InteractionHandler{svc: svc}
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RegisterRoutes mounts every route on r.
func (h *InteractionHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/health", h.Health)
	r.Post("/register", h.Register)

	api := r.Group("/api")

	// Likes
	api.Post("/like", h.Like)
	api.Post("/unlike", h.Unlike)
	api.Get("/liked-movies/:username", h.LikedMovies)

	// Watchlist
	api.Post("/watchlist", h.AddToWatchlist)
	api.Post("/unwatchlist", h.RemoveFromWatchlist)
	api.Get("/watchlist-movies/:username", h.WatchlistMovies)
}

// Health returns service health status, including database reachability.
func (h *InteractionHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), healthTimeout)
	defer cancel()

	if err := h.svc.Ping(ctx); err != nil {
		slog.Error("health check failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unavailable",
			"service": "movie-interactions-service",
		})
	}

	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "movie-interactions-service",
	})
}

// Register creates a user.
func (h *InteractionHandler) Register(c fiber.Ctx) error {
	var req models.RegisterRequest
	if err := bindJSON(c, &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid request body"})
	}

	msg, err := h.svc.Register(c.Context(), req)
	return respond(c, "register", msg, err)
}

// Like adds a movie to the user's liked movies.
func (h *InteractionHandler) Like(c fiber.Ctx) error {
	return h.mutate(c, "like", h.svc.Like)
}

// Unlike removes a movie from the user's liked movies.
func (h *InteractionHandler) Unlike(c fiber.Ctx) error {
	return h.mutate(c, "unlike", h.svc.Unlike)
}

// AddToWatchlist adds a movie to the user's watchlist.
func (h *InteractionHandler) AddToWatchlist(c fiber.Ctx) error {
	return h.mutate(c, "watchlist", h.svc.AddToWatchlist)
}

// RemoveFromWatchlist removes a movie from the user's watchlist.
func (h *InteractionHandler) RemoveFromWatchlist(c fiber.Ctx) error {
	return h.mutate(c, "unwatchlist", h.svc.RemoveFromWatchlist)
}

// LikedMovies returns the user's liked movie ids as a bare array.
func (h *InteractionHandler) LikedMovies(c fiber.Ctx) error {
	username, err := usernameParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid username"})
	}

	ids, err := h.svc.LikedMovies(c.Context(), username)
	if err != nil {
		return respond(c, "liked-movies", "", err)
	}
	return c.JSON(ids)
}

// WatchlistMovies returns the user's watchlist movie ids as a bare array.
func (h *InteractionHandler) WatchlistMovies(c fiber.Ctx) error {
	username, err := usernameParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid username"})
	}

	ids, err := h.svc.WatchlistMovies(c.Context(), username)
	if err != nil {
		return respond(c, "watchlist-movies", "", err)
	}
	return c.JSON(ids)
}

func (h *InteractionHandler) mutate(c fiber.Ctx, op string, fn func(context.Context, models.MovieRequest) (string, error)) error {
	var req models.MovieRequest
	if err := bindJSON(c, &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid request body"})
	}

	msg, err := fn(c.Context(), req)
	return respond(c, op, msg, err)
}

// usernameParam returns the percent-decoded :username segment. Routing runs
// on the raw path, so an encoded slash stays inside the segment.
func usernameParam(c fiber.Ctx) (string, error) {
	return url.PathUnescape(c.Params("username"))
}

// bindJSON decodes the body into out. An empty body leaves out zeroed so
// that field validation reports what is missing.
func bindJSON(c fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return c.Bind().JSON(out)
}

// respond writes {"message": msg} on success. Client errors carry their own
// message; anything else is logged and hidden behind a fixed 500.
func respond(c fiber.Ctx, op, msg string, err error) error {
	if err == nil {
		return c.JSON(models.MessageResponse{Message: msg})
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Code < fiber.StatusInternalServerError {
		return c.Status(appErr.Code).JSON(ErrorResponse{Error: appErr.Message})
	}

	slog.Error("database error", "op", op, "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: apperr.InternalMessage})
}

// ErrorHandler renders errors that escape a handler, such as unknown routes.
func ErrorHandler(c fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message})
	}

	slog.Error("unhandled error", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: apperr.InternalMessage})
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"movie-interactions-service/internal/apperr"
	"movie-interactions-service/internal/models"
	"movie-interactions-service/internal/repository"
	"movie-interactions-service/internal/validation"
)

const defaultCacheTTL = 10 * time.Minute

// Store is the persistence the service needs. *repository.InteractionRepository
// implements it against PostgreSQL.
type Store interface {
	Ping(ctx context.Context) error
	UserExists(ctx context.Context, username string) (bool, error)
	CreateUser(ctx context.Context, username string) error
	HasMovie(ctx context.Context, list models.MovieList, username, movieID string, requireUser bool) (bool, error)
	AddMovie(ctx context.Context, list models.MovieList, username, movieID string) error
	RemoveMovie(ctx context.Context, list models.MovieList, username, movieID string) (bool, error)
	ListMovies(ctx context.Context, list models.MovieList, username string) ([]string, error)
}

// listMessages holds the client-facing texts for one movie list.
type listMessages struct {
	addMissing    string
	removeMissing string
	duplicate     string
	added         string
	absent        string
	removed       string
}

var messages = map[models.MovieList]listMessages{
	models.LikedList: {
		addMissing:    "User ID and Movie ID are required",
		removeMissing: "Username and Movie ID are required",
		duplicate:     "Movie is already liked by the user",
		added:         "Movie liked successfully",
		absent:        "Movie is not liked by the user",
		removed:       "Movie unliked successfully",
	},
	models.WatchlistList: {
		addMissing:    "User ID and Movie ID are required",
		removeMissing: "Username and Movie ID are required",
		duplicate:     "Movie is already in the user's watchlist",
		added:         "Movie added to watchlist successfully",
		absent:        "Movie is not in the user's watchlist",
		removed:       "Movie removed from watchlist successfully",
	},
}

const (
	msgUsernameRequired = "Username is required"
	msgUsernameTaken    = "Username already exists"
	msgRegistered       = "User registered successfully"
)

// InteractionService implements registration and the per-user movie lists.
type InteractionService struct {
	store     Store
	redis     *redis.Client
	validator *validation.Validator
	cacheTTL  time.Duration
}

// NewInteractionService wires the service. rdb may be nil, in which case
// list reads go straight to the store.
func NewInteractionService(store Store, rdb *redis.Client, cacheTTL time.Duration) *InteractionService {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &InteractionService{
		store:     store,
		redis:     rdb,
		validator: validation.New(),
		cacheTTL:  cacheTTL,
	}
}

// Ping reports whether the store is reachable.
func (s *InteractionService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Register creates a user. Registering an existing username is a conflict.
func (s *InteractionService) Register(ctx context.Context, req models.RegisterRequest) (string, error) {
	if err := s.validator.Validate(req, msgUsernameRequired); err != nil {
		return "", err
	}

	exists, err := s.store.UserExists(ctx, req.Username)
	if err != nil {
		return "", internal(err)
	}
	if exists {
		return "", apperr.ErrConflict.WithMessage(msgUsernameTaken)
	}

	if err := s.store.CreateUser(ctx, req.Username); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return "", apperr.ErrConflict.WithMessage(msgUsernameTaken).WithCause(err)
		}
		return "", internal(err)
	}

	return msgRegistered, nil
}

func (s *InteractionService) Like(ctx context.Context, req models.MovieRequest) (string, error) {
	return s.addMovie(ctx, models.LikedList, req)
}

func (s *InteractionService) Unlike(ctx context.Context, req models.MovieRequest) (string, error) {
	return s.removeMovie(ctx, models.LikedList, req)
}

func (s *InteractionService) LikedMovies(ctx context.Context, username string) ([]string, error) {
	return s.listMovies(ctx, models.LikedList, username)
}

func (s *InteractionService) AddToWatchlist(ctx context.Context, req models.MovieRequest) (string, error) {
	return s.addMovie(ctx, models.WatchlistList, req)
}

func (s *InteractionService) RemoveFromWatchlist(ctx context.Context, req models.MovieRequest) (string, error) {
	return s.removeMovie(ctx, models.WatchlistList, req)
}

func (s *InteractionService) WatchlistMovies(ctx context.Context, username string) ([]string, error) {
	return s.listMovies(ctx, models.WatchlistList, username)
}

func (s *InteractionService) addMovie(ctx context.Context, list models.MovieList, req models.MovieRequest) (string, error) {
	msgs := messages[list]
	if err := s.validator.Validate(req, msgs.addMissing); err != nil {
		return "", err
	}
	movieID := string(req.MovieID)

	exists, err := s.store.HasMovie(ctx, list, req.Username, movieID, false)
	if err != nil {
		return "", internal(err)
	}
	if exists {
		return "", apperr.ErrConflict.WithMessage(msgs.duplicate)
	}

	if err := s.store.AddMovie(ctx, list, req.Username, movieID); err != nil {
		// Lost the race against a concurrent identical insert.
		if errors.Is(err, repository.ErrDuplicate) {
			return "", apperr.ErrConflict.WithMessage(msgs.duplicate).WithCause(err)
		}
		return "", internal(err)
	}

	s.invalidate(ctx, list, req.Username)
	return msgs.added, nil
}

func (s *InteractionService) removeMovie(ctx context.Context, list models.MovieList, req models.MovieRequest) (string, error) {
	msgs := messages[list]
	if err := s.validator.Validate(req, msgs.removeMissing); err != nil {
		return "", err
	}
	movieID := string(req.MovieID)

	exists, err := s.store.HasMovie(ctx, list, req.Username, movieID, true)
	if err != nil {
		return "", internal(err)
	}
	if !exists {
		return "", apperr.ErrNotFound.WithMessage(msgs.absent)
	}

	removed, err := s.store.RemoveMovie(ctx, list, req.Username, movieID)
	if err != nil {
		return "", internal(err)
	}
	if !removed {
		return "", apperr.ErrNotFound.WithMessage(msgs.absent)
	}

	s.invalidate(ctx, list, req.Username)
	return msgs.removed, nil
}

// listMovies serves the list from the cache when possible. Entries are keyed
// by the list's generation as read before the store query, so a snapshot
// taken before a concurrent mutation is written under a generation that
// readers no longer use.
func (s *InteractionService) listMovies(ctx context.Context, list models.MovieList, username string) ([]string, error) {
	gen, cached := s.generation(ctx, list, username)
	key := cacheKey(list, username, gen)
	if cached {
		if data, err := s.getFromCache(ctx, key); err == nil {
			var ids []string
			if json.Unmarshal([]byte(data), &ids) == nil && ids != nil {
				return ids, nil
			}
		}
	}

	ids, err := s.store.ListMovies(ctx, list, username)
	if err != nil {
		return nil, internal(err)
	}
	if ids == nil {
		ids = []string{}
	}

	if cached {
		if data, err := json.Marshal(ids); err == nil {
			s.setCache(ctx, key, string(data))
		}
	}
	return ids, nil
}

func internal(err error) error {
	return apperr.ErrInternal.WithCause(err)
}

func generationKey(list models.MovieList, username string) string {
	return fmt.Sprintf("movies:%s:%s:gen", list, username)
}

func cacheKey(list models.MovieList, username string, gen int64) string {
	return fmt.Sprintf("movies:%s:%s:v%d", list, username, gen)
}

// Redis helpers

// generation returns the current generation of the list. A missing counter
// is generation 0. ok is false when the cache is unusable.
func (s *InteractionService) generation(ctx context.Context, list models.MovieList, username string) (gen int64, ok bool) {
	if s.redis == nil {
		return 0, false
	}
	gen, err := s.redis.Get(ctx, generationKey(list, username)).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, true
	case err != nil:
		slog.Error("failed to read cache generation", "list", list, "username", username, "error", err)
		return 0, false
	}
	return gen, true
}

// invalidate moves the list to a new generation and drops the entry of the
// one it replaces.
func (s *InteractionService) invalidate(ctx context.Context, list models.MovieList, username string) {
	if s.redis == nil {
		return
	}
	gen, err := s.redis.Incr(ctx, generationKey(list, username)).Result()
	if err != nil {
		slog.Error("failed to invalidate cache", "list", list, "username", username, "error", err)
		return
	}
	s.delCache(ctx, cacheKey(list, username, gen-1))
}

func (s *InteractionService) getFromCache(ctx context.Context, key string) (string, error) {
	return s.redis.Get(ctx, key).Result()
}

func (s *InteractionService) setCache(ctx context.Context, key, value string) {
	if err := s.redis.Set(ctx, key, value, s.cacheTTL).Err(); err != nil {
		slog.Error("failed to set cache", "key", key, "error", err)
	}
}

func (s *InteractionService) delCache(ctx context.Context, key string) {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		slog.Error("failed to invalidate cache", "key", key, "error", err)
	}
}

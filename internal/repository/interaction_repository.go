package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"movie-interactions-service/internal/models"
)

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate row")

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = pq.ErrorCode("23505")

// InteractionRepository runs the queries behind registration, likes and
// the watchlist against a shared connection pool.
type InteractionRepository struct {
	db *sql.DB
}

func NewInteractionRepository(db *sql.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// TableFor maps a movie list to its table. Only these names are ever
// interpolated into SQL.
func TableFor(list models.MovieList) (string, error) {
	switch list {
	case models.LikedList:
		return "liked_movies", nil
	case models.WatchlistList:
		return "watchlist_movies", nil
	}
	return "", fmt.Errorf("unknown movie list %q", list)
}

// Ping checks that the pool can reach the database.
func (r *InteractionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// UserExists reports whether username is registered.
func (r *InteractionRepository) UserExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up user: %w", err)
	}
	return exists, nil
}

// CreateUser inserts a user row.
func (r *InteractionRepository) CreateUser(ctx context.Context, username string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (username) VALUES ($1)`, username)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", classify(err))
	}
	return nil
}

// HasMovie reports whether the (username, movieID) pair is on list.
// With requireUser set the username must also be registered, which is how
// the removal routes resolve users.
func (r *InteractionRepository) HasMovie(ctx context.Context, list models.MovieList, username, movieID string, requireUser bool) (bool, error) {
	table, err := TableFor(list)
	if err != nil {
		return false, err
	}

	var exists bool
	err = r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s AND movie_id = $2)`, table, userClause(requireUser)),
		username, movieID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", table, err)
	}
	return exists, nil
}

// AddMovie inserts the pair into list.
func (r *InteractionRepository) AddMovie(ctx context.Context, list models.MovieList, username, movieID string) error {
	table, err := TableFor(list)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (username, movie_id) VALUES ($1, $2)`, table),
		username, movieID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, classify(err))
	}
	return nil
}

// RemoveMovie deletes the pair from list for a registered username and
// reports whether a row was removed.
func (r *InteractionRepository) RemoveMovie(ctx context.Context, list models.MovieList, username, movieID string) (bool, error) {
	table, err := TableFor(list)
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s AND movie_id = $2`, table, userClause(true)),
		username, movieID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// ListMovies returns the movie ids on list for username. The result is
// never nil.
func (r *InteractionRepository) ListMovies(ctx context.Context, list models.MovieList, username string) ([]string, error) {
	table, err := TableFor(list)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT movie_id FROM %s WHERE username = $1`, table),
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}
	return ids, nil
}

func userClause(requireUser bool) string {
	if requireUser {
		return `username = (SELECT username FROM users WHERE username = $1)`
	}
	return `username = $1`
}

// classify turns a unique violation into ErrDuplicate and leaves every
// other error untouched.
func classify(err error) error {
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Package testutil provides an in-memory stand-in for the PostgreSQL store.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"movie-interactions-service/internal/models"
	"movie-interactions-service/internal/repository"
)

type row struct {
	username string
	movieID  string
}

// MemStore mimics the repository. Lists hold rows the way a table does, so
// duplicates are representable; AddMovie enforces UNIQUE (username, movie_id)
// unless the store was built by NewUnconstrainedMemStore.
type MemStore struct {
	mu      sync.Mutex
	users   map[string]bool
	lists   map[models.MovieList][]row
	checked bool
	err     error
	calls   int
}

func NewMemStore() *MemStore {
	m := NewUnconstrainedMemStore()
	m.checked = true
	return m
}

// NewUnconstrainedMemStore returns a store whose lists accept duplicate
// rows, like tables created without the unique constraint.
func NewUnconstrainedMemStore() *MemStore {
	return &MemStore{
		users: make(map[string]bool),
		lists: map[models.MovieList][]row{
			models.LikedList:     nil,
			models.WatchlistList: nil,
		},
	}
}

// called records a round-trip. The caller holds mu.
func (m *MemStore) called() error {
	m.calls++
	return m.err
}

func (m *MemStore) rows(list models.MovieList) ([]row, error) {
	rows, ok := m.lists[list]
	if !ok {
		return nil, fmt.Errorf("unknown movie list %q", list)
	}
	return rows, nil
}

// count returns how many rows match. The caller holds mu.
func (m *MemStore) count(list models.MovieList, username, movieID string) int {
	n := 0
	for _, r := range m.lists[list] {
		if r.username == username && r.movieID == movieID {
			n++
		}
	}
	return n
}

func (m *MemStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.called()
}

func (m *MemStore) UserExists(ctx context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.called(); err != nil {
		return false, err
	}
	return m.users[username], nil
}

func (m *MemStore) CreateUser(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.called(); err != nil {
		return err
	}
	if m.users[username] {
		return fmt.Errorf("failed to create user: %w", repository.ErrDuplicate)
	}
	m.users[username] = true
	return nil
}

func (m *MemStore) HasMovie(ctx context.Context, list models.MovieList, username, movieID string, requireUser bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.called(); err != nil {
		return false, err
	}
	if _, err := m.rows(list); err != nil {
		return false, err
	}
	if requireUser && !m.users[username] {
		return false, nil
	}
	return m.count(list, username, movieID) > 0, nil
}

func (m *MemStore) AddMovie(ctx context.Context, list models.MovieList, username, movieID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.called(); err != nil {
		return err
	}
	rows, err := m.rows(list)
	if err != nil {
		return err
	}
	if m.checked && m.count(list, username, movieID) > 0 {
		return fmt.Errorf("failed to insert: %w", repository.ErrDuplicate)
	}
	m.lists[list] = append(rows, row{username, movieID})
	return nil
}

// RemoveMovie deletes every matching row, as DELETE does.
func (m *MemStore) RemoveMovie(ctx context.Context, list models.MovieList, username, movieID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.called(); err != nil {
		return false, err
	}
	rows, err := m.rows(list)
	if err != nil {
		return false, err
	}
	if !m.users[username] {
		return false, nil
	}
	kept := rows[:0]
	for _, r := range rows {
		if r.username != username || r.movieID != movieID {
			kept = append(kept, r)
		}
	}
	m.lists[list] = kept
	return len(kept) < len(rows), nil
}

// ListMovies returns ids in insertion order.
func (m *MemStore) ListMovies(ctx context.Context, list models.MovieList, username string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.called(); err != nil {
		return nil, err
	}
	rows, err := m.rows(list)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0)
	for _, r := range rows {
		if r.username == username {
			ids = append(ids, r.movieID)
		}
	}
	return ids, nil
}

// Count returns the number of rows on list for the pair.
func (m *MemStore) Count(list models.MovieList, username, movieID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count(list, username, movieID)
}

// SetErr makes every following call fail with err.
func (m *MemStore) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// CallCount returns the number of store calls made so far.
func (m *MemStore) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

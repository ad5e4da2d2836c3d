package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// RegisterRequest is the request body for POST /register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
}

// MovieRequest is the request body shared by the like and watchlist routes.
type MovieRequest struct {
	Username string  `json:"username" validate:"required"`
	MovieID  MovieID `json:"movieId" validate:"required"`
}

// MessageResponse is returned by every successful mutation.
type MessageResponse struct {
	Message string `json:"message"`
}

// MovieID is an opaque movie identifier. Clients may send it as a JSON
// string or number; it is always stored and returned as a string.
type MovieID string

// UnmarshalJSON accepts strings, numbers and null.
func (m *MovieID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*m = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = MovieID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("movieId must be a string or a number")
	}
	*m = MovieID(n.String())
	return nil
}

// MovieList names one of the per-user movie collections.
type MovieList string

const (
	LikedList     MovieList = "liked"
	WatchlistList MovieList = "watchlist"
)

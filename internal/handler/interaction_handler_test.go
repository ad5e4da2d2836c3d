package handler_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie-interactions-service/docs"
	"movie-interactions-service/internal/handler"
	"movie-interactions-service/internal/models"
	"movie-interactions-service/internal/service"
	"movie-interactions-service/internal/testutil"
)

func newTestApp(t *testing.T) (*fiber.App, *testutil.MemStore) {
	t.Helper()
	store := testutil.NewMemStore()
	h := handler.NewInteractionHandler(service.NewInteractionService(store, nil, 0))

	app := fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler})
	h.RegisterRoutes(app)
	handler.RegisterDocs(app, docs.OpenAPI)
	return app, store
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func decodeMovieIDs(t *testing.T, body string) []string {
	t.Helper()
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(body), &ids))
	return ids
}

func TestEndToEndScenario(t *testing.T) {
	app, _ := newTestApp(t)

	code, body := do(t, app, http.MethodPost, "/register", `{"username":"alice"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"message":"User registered successfully"}`, body)

	code, body = do(t, app, http.MethodPost, "/api/like", `{"username":"alice","movieId":"42"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"message":"Movie liked successfully"}`, body)

	code, body = do(t, app, http.MethodGet, "/api/liked-movies/alice", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `["42"]`, body)

	code, body = do(t, app, http.MethodPost, "/api/unlike", `{"username":"alice","movieId":"42"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"message":"Movie unliked successfully"}`, body)

	code, body = do(t, app, http.MethodGet, "/api/liked-movies/alice", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, body)
}

func TestRegister_Responses(t *testing.T) {
	app, store := newTestApp(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantBody string
	}{
		{"first", `{"username":"bob"}`, http.StatusOK, `{"message":"User registered successfully"}`},
		{"duplicate", `{"username":"bob"}`, http.StatusConflict, `{"error":"Username already exists"}`},
		{"empty username", `{"username":""}`, http.StatusBadRequest, `{"error":"Username is required"}`},
		{"missing username", `{}`, http.StatusBadRequest, `{"error":"Username is required"}`},
		{"no body", ``, http.StatusBadRequest, `{"error":"Username is required"}`},
		{"malformed", `{"username":`, http.StatusBadRequest, `{"error":"Invalid request body"}`},
		{"numeric username", `{"username":5}`, http.StatusBadRequest, `{"error":"Invalid request body"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, app, http.MethodPost, "/register", tt.body)
			assert.Equal(t, tt.wantCode, code)
			assert.JSONEq(t, tt.wantBody, body)
		})
	}

	// Only the two existence checks and one insert reached the store.
	assert.Equal(t, 3, store.CallCount())
}

func TestMovieRoutes_Responses(t *testing.T) {
	app, _ := newTestApp(t)
	code, _ := do(t, app, http.MethodPost, "/register", `{"username":"carol"}`)
	require.Equal(t, http.StatusOK, code)

	steps := []struct {
		path     string
		body     string
		wantCode int
		wantBody string
	}{
		{"/api/like", `{"username":"carol"}`, http.StatusBadRequest, `{"error":"User ID and Movie ID are required"}`},
		{"/api/unlike", `{"movieId":"1"}`, http.StatusBadRequest, `{"error":"Username and Movie ID are required"}`},
		{"/api/watchlist", `{"username":"","movieId":"1"}`, http.StatusBadRequest, `{"error":"User ID and Movie ID are required"}`},
		{"/api/unwatchlist", `{}`, http.StatusBadRequest, `{"error":"Username and Movie ID are required"}`},
		{"/api/like", `{"username":"carol","movieId":true}`, http.StatusBadRequest, `{"error":"Invalid request body"}`},
		{"/api/watchlist", `{"username":5,"movieId":"1"}`, http.StatusBadRequest, `{"error":"Invalid request body"}`},

		{"/api/unlike", `{"username":"carol","movieId":"7"}`, http.StatusNotFound, `{"error":"Movie is not liked by the user"}`},
		{"/api/like", `{"username":"carol","movieId":7}`, http.StatusOK, `{"message":"Movie liked successfully"}`},
		{"/api/like", `{"username":"carol","movieId":"7"}`, http.StatusConflict, `{"error":"Movie is already liked by the user"}`},

		{"/api/unwatchlist", `{"username":"carol","movieId":"7"}`, http.StatusNotFound, `{"error":"Movie is not in the user's watchlist"}`},
		{"/api/watchlist", `{"username":"carol","movieId":"7"}`, http.StatusOK, `{"message":"Movie added to watchlist successfully"}`},
		{"/api/watchlist", `{"username":"carol","movieId":"7"}`, http.StatusConflict, `{"error":"Movie is already in the user's watchlist"}`},
		{"/api/unwatchlist", `{"username":"carol","movieId":"7"}`, http.StatusOK, `{"message":"Movie removed from watchlist successfully"}`},
	}

	for _, s := range steps {
		code, body := do(t, app, http.MethodPost, s.path, s.body)
		assert.Equal(t, s.wantCode, code, "%s %s", s.path, s.body)
		assert.JSONEq(t, s.wantBody, body, "%s %s", s.path, s.body)
	}

	// The like survives the watchlist round-trip, and numeric ids list as strings.
	_, body := do(t, app, http.MethodGet, "/api/liked-movies/carol", "")
	assert.Equal(t, []string{"7"}, decodeMovieIDs(t, body))
	_, body = do(t, app, http.MethodGet, "/api/watchlist-movies/carol", "")
	assert.Empty(t, decodeMovieIDs(t, body))
}

func TestListRoutes_EmptyArray(t *testing.T) {
	app, _ := newTestApp(t)

	for _, path := range []string{"/api/liked-movies/nobody", "/api/watchlist-movies/nobody"} {
		code, body := do(t, app, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "[]", body)
	}
}

func TestStoreFailureHidesDetails(t *testing.T) {
	app, store := newTestApp(t)
	store.SetErr(errors.New("pq: password authentication failed for user \"postgres\""))

	requests := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/register", `{"username":"dave"}`},
		{http.MethodPost, "/api/like", `{"username":"dave","movieId":"1"}`},
		{http.MethodPost, "/api/unwatchlist", `{"username":"dave","movieId":"1"}`},
		{http.MethodGet, "/api/liked-movies/dave", ""},
		{http.MethodGet, "/api/watchlist-movies/dave", ""},
	}

	for _, r := range requests {
		code, body := do(t, app, r.method, r.path, r.body)
		assert.Equal(t, http.StatusInternalServerError, code, r.path)
		assert.JSONEq(t, `{"error":"Internal server error"}`, body, r.path)
		assert.NotContains(t, body, "password")
	}

	code, body := do(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "unavailable")
}

func TestConcurrentIdenticalLikes(t *testing.T) {
	app, store := newTestApp(t)
	const workers = 8

	codes := make([]int, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/like",
				strings.NewReader(`{"username":"erin","movieId":"99"}`))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			if err != nil {
				return
			}
			_ = resp.Body.Close()
			codes[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	var ok, conflict int
	for _, c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			conflict++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflict)
	assert.Equal(t, 1, store.Count(models.LikedList, "erin", "99"))
}

func TestHealthAndDocs(t *testing.T) {
	app, _ := newTestApp(t)

	code, body := do(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","service":"movie-interactions-service"}`, body)

	code, body = do(t, app, http.MethodGet, "/docs/openapi.yaml", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "/api/liked-movies/{username}")

	code, body = do(t, app, http.MethodGet, "/docs", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "swagger-ui")
}

func TestUnknownRoute(t *testing.T) {
	app, _ := newTestApp(t)

	code, body := do(t, app, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, code)

	var resp handler.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.NotEmpty(t, resp.Error)
}

func TestListRoutes_DecodeUsername(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		username string
		path     string
	}{
		{"john doe", "/api/liked-movies/john%20doe"},
		{"é", "/api/liked-movies/%C3%A9"},
		{"a/b", "/api/liked-movies/a%2Fb"},
		{"john doe", "/api/watchlist-movies/john%20doe"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			route := "/api/like"
			if strings.HasPrefix(tt.path, "/api/watchlist-movies/") {
				route = "/api/watchlist"
			}
			body, err := json.Marshal(map[string]string{"username": tt.username, "movieId": "42"})
			require.NoError(t, err)
			code, _ := do(t, app, http.MethodPost, route, string(body))
			require.Equal(t, http.StatusOK, code)

			code, resp := do(t, app, http.MethodGet, tt.path, "")
			assert.Equal(t, http.StatusOK, code)
			assert.JSONEq(t, `["42"]`, resp)
		})
	}
}

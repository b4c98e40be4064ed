package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorbot/tutorbot/internal/config"
	"github.com/tutorbot/tutorbot/internal/database"
	"github.com/tutorbot/tutorbot/internal/server"
)

func newStore(t *testing.T) database.Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "server.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	return database.NewStore(db, 1000, nil)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func do(t *testing.T, h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRootAndHealth(t *testing.T) {
	t.Parallel()

	h := server.New(config.HTTPConfig{Port: 8080}, newStore(t), nil, discard()).Handler()

	rec := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingStore struct {
	database.Store
}

func (failingStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth_DatabaseDown(t *testing.T) {
	t.Parallel()

	h := server.New(config.HTTPConfig{}, failingStore{}, nil, discard()).Handler()
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDashboard(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertUser(ctx, &database.User{ID: 1, FirstName: "Ana"}))
	require.NoError(t, store.UpsertUser(ctx, &database.User{ID: 2, FirstName: "Ben"}))
	require.NoError(t, store.SetUserActive(ctx, 2, false))

	h := server.New(config.HTTPConfig{AdminToken: "secret"}, store, nil, discard()).Handler()

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/count", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/users", "wrong").Code)

	rec := do(t, h, http.MethodGet, "/count", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":2,"active":1}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/users", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Users []struct {
			ID     int64 `json:"id"`
			Active bool  `json:"active"`
		} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Users, 2)
}

func TestDashboard_NotMountedWithoutToken(t *testing.T) {
	t.Parallel()

	h := server.New(config.HTTPConfig{}, newStore(t), nil, discard()).Handler()
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/users", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/count", "").Code)
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	called := false
	webhook := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	h := server.New(config.HTTPConfig{}, newStore(t), webhook, discard()).Handler()
	rec := do(t, h, http.MethodPost, "/webhook", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)

	h = server.New(config.HTTPConfig{}, newStore(t), nil, discard()).Handler()
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/webhook", "").Code)
}

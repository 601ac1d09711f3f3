package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStubServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "u1", "email": req["email"], "displayName": "Stub", "token": "tok123",
		})
	})
	mux.HandleFunc("GET /api/games", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{"id": 1, "name": "Stub Quest", "price": 4.5}},
			"total": 1,
		})
	})
	mux.HandleFunc("GET /api/games/1/download", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("zip-bytes"))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestLoginStoresToken(t *testing.T) {
	ts := newStubServer(t)
	api := NewAPI(ts.URL, "")

	_, err := api.Login(context.Background(), "a@b.c", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")

	p, err := api.Login(context.Background(), "a@b.c", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok123", p.Token)
	assert.Equal(t, "tok123", api.token)
}

func TestListGames(t *testing.T) {
	ts := newStubServer(t)
	api := NewAPI(ts.URL, "")

	games, total, err := api.ListGames(context.Background(), GameQuery{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, games, 1)
	assert.Equal(t, "Stub Quest", games[0].Name)
}

func TestDownloadWritesFileAndReportsProgress(t *testing.T) {
	ts := newStubServer(t)
	api := NewAPI(ts.URL, "tok123")

	dest := filepath.Join(t.TempDir(), "game.zip")
	var lastWritten int64
	err := api.Download(context.Background(), 1, dest, func(written, total int64) {
		lastWritten = written
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len("zip-bytes")), lastWritten)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(data))
}

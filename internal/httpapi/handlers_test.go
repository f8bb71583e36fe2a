package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/last-life-backend/internal/hub"
	"github.com/DoyleJ11/last-life-backend/internal/lobby"
	"github.com/DoyleJ11/last-life-backend/internal/store"
)

func newTestAPI(t *testing.T) (http.Handler, *store.MemoryStore) {
	t.Helper()
	log := zaptest.NewLogger(t)
	mem := store.NewMemoryStore()
	h := hub.NewHub(context.Background(), hub.Options{Lobby: lobby.Config{Store: mem, Log: log}})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return SetupRoutes(h, mem, log, Options{LobbyTTL: time.Hour, PublicLimit: 20}), mem
}

func do(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	api, _ := newTestAPI(t)
	assert.Equal(t, http.StatusOK, do(t, api, http.MethodGet, "/healthz", "").Code)
}

func TestCreateLobby(t *testing.T) {
	api, mem := newTestAPI(t)

	rec := do(t, api, http.MethodPost, "/lobbies",
		`{"name":"Open night","settings":{"isPublic":true,"lives":5},"playerId":"p1","username":"Ann"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp createLobbyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Code, hub.CodeLength)
	assert.Equal(t, "p1", resp.PlayerID)

	require.Eventually(t, func() bool {
		_, ok := mem.Lobby(resp.Code)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	list := do(t, api, http.MethodGet, "/lobbies", "")
	require.Equal(t, http.StatusOK, list.Code)
	assert.NotContains(t, list.Body.String(), "hostPlayerId")
	assert.NotContains(t, list.Body.String(), `"p1"`, "host id is not exposed")
	var recs []store.LobbyRecord
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, resp.Code, recs[0].Code)
	assert.Equal(t, 5, recs[0].Settings.Lives)
	assert.Equal(t, 1, recs[0].PlayerCount)
}

func TestCreateLobby_BadRequests(t *testing.T) {
	api, _ := newTestAPI(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"name":`},
		{"missing name", `{"playerId":"p1","username":"Ann"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, api, http.MethodPost, "/lobbies", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestCreateLobby_GeneratesPlayerID(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := do(t, api, http.MethodPost, "/lobbies", `{"name":"x","username":"Ann"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp createLobbyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.PlayerID)
}

func TestListLobbies_EmptyIsArray(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := do(t, api, http.MethodGet, "/lobbies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestStatsAndLeaderboard(t *testing.T) {
	api, mem := newTestAPI(t)
	ctx := context.Background()
	require.NoError(t, mem.UpsertPlayerStats(ctx, store.StatsDelta{PlayerID: "a", Username: "Ann", LobbyWin: true, GameCompleted: true, MinigameWins: 4}))
	require.NoError(t, mem.UpsertPlayerStats(ctx, store.StatsDelta{PlayerID: "b", Username: "Bo", GameCompleted: true, MinigameWins: 7}))

	rec := do(t, api, http.MethodGet, "/players/a/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats store.PlayerStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.GamesWon)
	assert.Equal(t, 4, stats.MinigamesWon)

	assert.Equal(t, http.StatusNotFound, do(t, api, http.MethodGet, "/players/nobody/stats", "").Code)

	rec = do(t, api, http.MethodGet, "/leaderboard?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []store.PlayerStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].PlayerID)

	assert.Equal(t, http.StatusBadRequest, do(t, api, http.MethodGet, "/leaderboard?limit=zero", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, api, http.MethodGet, "/leaderboard?limit=-3", "").Code)
}

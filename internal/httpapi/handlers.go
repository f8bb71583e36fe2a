package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/last-life-backend/internal/engine"
	"github.com/DoyleJ11/last-life-backend/internal/hub"
	"github.com/DoyleJ11/last-life-backend/internal/store"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

type createLobbyRequest struct {
	Name     string          `json:"name"`
	Settings engine.Settings `json:"settings"`
	Password string          `json:"password"`
	PlayerID string          `json:"playerId"`
	Username string          `json:"username"`
}

type createLobbyResponse struct {
	Code     string `json:"code"`
	PlayerID string `json:"playerId"`
}

// CreateLobby registers a session with the caller as host. The host attaches
// over the websocket afterwards with joinLobby.
func CreateLobby(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createLobbyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		playerID := strings.TrimSpace(req.PlayerID)
		if playerID == "" {
			playerID = uuid.NewString()
		}

		code, _, err := h.Create(r.Context(), hub.CreateParams{
			Name:     req.Name,
			Settings: req.Settings,
			Password: req.Password,
			HostID:   playerID,
			HostName: req.Username,
		})
		switch {
		case errors.Is(err, engine.ErrInvalidSettings):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			log.Error("create lobby", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create lobby")
			return
		}

		writeJSON(w, http.StatusCreated, createLobbyResponse{Code: code, PlayerID: playerID})
	}
}

// ListLobbies serves the public lobby browser from the persisted records.
func ListLobbies(st store.Store, ttl time.Duration, limit int, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := st.ListPublicLobbies(r.Context(), time.Now().Add(-ttl), limit)
		if err != nil {
			log.Error("list lobbies", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list lobbies")
			return
		}
		if recs == nil {
			recs = []store.LobbyRecord{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func PlayerStats(st store.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := st.GetPlayerStats(r.Context(), chi.URLParam(r, "id"))
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "player not found")
			return
		case err != nil:
			log.Error("player stats", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load stats")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func Leaderboard(st store.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultLeaderboardLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxLeaderboardLimit)
		}

		rows, err := st.Leaderboard(r.Context(), limit)
		if err != nil {
			log.Error("leaderboard", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
			return
		}
		if rows == nil {
			rows = []store.PlayerStats{}
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}

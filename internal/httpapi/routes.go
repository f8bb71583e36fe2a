package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/last-life-backend/internal/hub"
	"github.com/DoyleJ11/last-life-backend/internal/store"
	"github.com/DoyleJ11/last-life-backend/internal/ws"
)

type Options struct {
	LobbyTTL    time.Duration
	PublicLimit int
	WS          ws.Options
}

func SetupRoutes(h *hub.Hub, st store.Store, log *zap.Logger, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, log.Named("ws"), opts.WS))

	r.Post("/lobbies", CreateLobby(h, log))
	r.Get("/lobbies", ListLobbies(st, opts.LobbyTTL, opts.PublicLimit, log))
	r.Get("/players/{id}/stats", PlayerStats(st, log))
	r.Get("/leaderboard", Leaderboard(st, log))
	return r
}

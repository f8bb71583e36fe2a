package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/last-life-backend/internal/config"
	"github.com/DoyleJ11/last-life-backend/internal/httpapi"
	"github.com/DoyleJ11/last-life-backend/internal/hub"
	"github.com/DoyleJ11/last-life-backend/internal/jobs"
	"github.com/DoyleJ11/last-life-backend/internal/lobby"
	"github.com/DoyleJ11/last-life-backend/internal/store"
	"github.com/DoyleJ11/last-life-backend/internal/ws"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		panic(err)
	}
	cfg := config.Load()

	log, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Development() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg config.Config, log *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeStore()) }()

	timings := lobby.DefaultTimings()
	timings.InterRoundPause = cfg.InterRoundPause()
	timings.GameOverPause = cfg.GameOverPause()
	timings.PersistTimeout = cfg.StatsTimeout()
	timings.IdleTimeout = cfg.LobbyIdleTimeout()

	// Build the hub *without* the signal context so shutdown can be ordered.
	h := hub.NewHub(context.Background(), hub.Options{
		Lobby: lobby.Config{
			Timings: timings,
			Store:   st,
			Log:     log.Named("lobby"),
		},
	})

	sched, err := jobs.Start(&jobs.Cleanup{
		Store:  st,
		Active: h,
		TTL:    cfg.LobbyTTL(),
		Log:    log.Named("jobs"),
	}, cfg.CleanupInterval())
	if err != nil {
		return err
	}

	wsOpts := ws.DefaultOptions()
	if cfg.AllowedOrigins != "" {
		wsOpts.OriginPatterns = strings.Split(cfg.AllowedOrigins, ",")
	}
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(h, st, log.Named("http"), httpapi.Options{
			LobbyTTL:    cfg.LobbyTTL(),
			PublicLimit: cfg.PublicLobbyLimit,
			WS:          wsOpts,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.Bool("persistent", cfg.DatabaseURL != ""))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return multierr.Combine(err, sched.Shutdown())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return multierr.Combine(
		srv.Shutdown(shutdownCtx),
		h.Shutdown(shutdownCtx),
		sched.Shutdown(),
	)
}

// openStore uses Postgres when DATABASE_URL is set and falls back to the
// in-memory store otherwise.
func openStore(cfg config.Config, log *zap.Logger) (store.Store, func() error, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		return store.NewMemoryStore(), func() error { return nil }, nil
	}
	db, err := store.Open(cfg.DatabaseURL, store.PoolConfig{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return store.NewGormStore(db, log.Named("store")), sqlDB.Close, nil
}

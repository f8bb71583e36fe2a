package lobby

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/last-life-backend/internal/engine"
	"github.com/DoyleJ11/last-life-backend/internal/store"
)

const statsConcurrency = 4

type job struct {
	name string
	run  func(ctx context.Context, s store.Store) error
}

// persistWorker runs store calls one at a time off the lobby goroutine.
// Failures are logged; gameplay never waits on the store.
func (l *Lobby) persistWorker() {
	defer close(l.workerDone)
	for j := range l.jobs {
		if l.cfg.Store == nil {
			continue
		}
		timeout := l.cfg.Timings.PersistTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := j.run(ctx, l.cfg.Store); err != nil {
			l.log.Warn("persistence failed", zap.String("op", j.name), zap.Error(err))
		}
		cancel()
	}
}

func (l *Lobby) enqueue(name string, run func(ctx context.Context, s store.Store) error) {
	if l.cfg.Store == nil {
		return
	}
	select {
	case l.jobs <- job{name: name, run: run}:
	default:
		l.log.Warn("persistence queue full, dropping", zap.String("op", name))
	}
}

func (l *Lobby) persistCreate() {
	meta := l.state.Lobby
	rec := store.LobbyRecord{
		Code:         meta.Code,
		Name:         meta.Name,
		HostPlayerID: meta.HostID,
		Status:       meta.Status,
		Settings:     meta.Settings,
		PlayerCount:  len(l.state.Players),
		MaxPlayers:   engine.MaxPlayers,
		CreatedAt:    meta.CreatedAt,
	}
	l.enqueue("createLobby", func(ctx context.Context, s store.Store) error {
		return s.CreateLobby(ctx, rec)
	})
}

func (l *Lobby) persistDelete() {
	code := l.code
	l.enqueue("deleteLobby", func(ctx context.Context, s store.Store) error {
		return s.DeleteLobby(ctx, code)
	})
}

func (l *Lobby) persistStatus(status engine.Status) {
	code := l.code
	l.enqueue("updateStatus", func(ctx context.Context, s store.Store) error {
		return s.UpdateLobbyStatus(ctx, code, status)
	})
}

func (l *Lobby) persistPlayerCount() {
	code, n := l.code, len(l.state.Players)
	l.enqueue("updatePlayerCount", func(ctx context.Context, s store.Store) error {
		return s.UpdateLobbyPlayerCount(ctx, code, n)
	})
}

// persistStats records every player's game totals. Spectators are counted
// as present but not as having completed the game.
func (l *Lobby) persistStats(s engine.State, winnerID string, endedAt time.Time) {
	seconds := 0
	if !s.Lobby.GameStartedAt.IsZero() {
		seconds = int(endedAt.Sub(s.Lobby.GameStartedAt).Seconds())
	}
	deltas := make([]store.StatsDelta, 0, len(s.Players))
	for _, p := range s.Players {
		deltas = append(deltas, store.StatsDelta{
			PlayerID:      p.ID,
			Username:      p.Name,
			MinigameWins:  p.MinigameWins,
			LobbyWin:      winnerID != "" && p.ID == winnerID,
			LivesLost:     p.LivesLost,
			GameCompleted: !p.Spectator,
			SecondsPlayed: seconds,
		})
	}

	l.enqueue("recordStats", func(ctx context.Context, st store.Store) error {
		// One failing player must not cancel the others.
		var g errgroup.Group
		g.SetLimit(statsConcurrency)
		for _, d := range deltas {
			g.Go(func() error {
				if err := st.UpsertPlayerStats(ctx, d); err != nil {
					return fmt.Errorf("player %s: %w", d.PlayerID, err)
				}
				return nil
			})
		}
		return g.Wait()
	})
}

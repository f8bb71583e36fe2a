// Package store is the persistence boundary for lobby records and player
// statistics. Sessions keep their live state in memory; nothing here is read
// back during a game.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/last-life-backend/internal/engine"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicate = errors.New("record already exists")

type LobbyRecord struct {
	ID           string          `json:"id"`
	Code         string          `json:"lobbyCode"`
	Name         string          `json:"name"`
	// Never served publicly: a player id is enough to reattach as that player.
	HostPlayerID string          `json:"-"`
	Status       engine.Status   `json:"status"`
	Settings     engine.Settings `json:"settings"`
	PlayerCount  int             `json:"playerCount"`
	MaxPlayers   int             `json:"maxPlayers"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// StatsDelta is one player's contribution from a finished game.
type StatsDelta struct {
	PlayerID      string
	Username      string
	MinigameWins  int
	LobbyWin      bool
	LivesLost     int
	GameCompleted bool
	SecondsPlayed int
}

type PlayerStats struct {
	PlayerID          string    `json:"playerId"`
	Username          string    `json:"username"`
	GamesPlayed       int       `json:"gamesPlayed"`
	GamesWon          int       `json:"gamesWon"`
	MinigamesWon      int       `json:"minigamesWon"`
	LivesLost         int       `json:"totalLivesLost"`
	TimePlayedSeconds int       `json:"totalTimePlayedSeconds"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type Store interface {
	CreateLobby(ctx context.Context, rec LobbyRecord) error
	DeleteLobby(ctx context.Context, code string) error
	UpdateLobbyStatus(ctx context.Context, code string, status engine.Status) error
	UpdateLobbyPlayerCount(ctx context.Context, code string, count int) error
	UpsertPlayerStats(ctx context.Context, delta StatsDelta) error

	// ListPublicLobbies returns public waiting or running lobbies created at or
	// after since, waiting lobbies first and newest first within each status.
	ListPublicLobbies(ctx context.Context, since time.Time, limit int) ([]LobbyRecord, error)
	// DeleteStaleLobbies removes records created before cutoff whose code is
	// not in active and reports how many were removed.
	DeleteStaleLobbies(ctx context.Context, cutoff time.Time, active []string) (int64, error)
	GetPlayerStats(ctx context.Context, playerID string) (PlayerStats, error)
	Leaderboard(ctx context.Context, limit int) ([]PlayerStats, error)
}

func applyDelta(s *PlayerStats, d StatsDelta) {
	if d.Username != "" {
		s.Username = d.Username
	}
	s.MinigamesWon += d.MinigameWins
	s.LivesLost += d.LivesLost
	s.TimePlayedSeconds += d.SecondsPlayed
	if d.LobbyWin {
		s.GamesWon++
	}
	if d.GameCompleted {
		s.GamesPlayed++
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DoyleJ11/last-life-backend/internal/engine"
)

// MemoryStore keeps records in process. It backs the server when no database
// is configured and doubles as the persistence fake in tests.
type MemoryStore struct {
	mu      sync.Mutex
	lobbies map[string]LobbyRecord
	stats   map[string]PlayerStats
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lobbies: make(map[string]LobbyRecord),
		stats:   make(map[string]PlayerStats),
		now:     time.Now,
	}
}

func (s *MemoryStore) CreateLobby(_ context.Context, rec LobbyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[rec.Code]; ok {
		return ErrDuplicate
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.lobbies[rec.Code] = rec
	return nil
}

func (s *MemoryStore) DeleteLobby(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, code)
	return nil
}

func (s *MemoryStore) UpdateLobbyStatus(_ context.Context, code string, status engine.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.lobbies[code]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	s.lobbies[code] = rec
	return nil
}

func (s *MemoryStore) UpdateLobbyPlayerCount(_ context.Context, code string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.lobbies[code]
	if !ok {
		return ErrNotFound
	}
	rec.PlayerCount = count
	s.lobbies[code] = rec
	return nil
}

func (s *MemoryStore) UpsertPlayerStats(_ context.Context, d StatsDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[d.PlayerID]
	st.PlayerID = d.PlayerID
	applyDelta(&st, d)
	st.UpdatedAt = s.now()
	s.stats[d.PlayerID] = st
	return nil
}

func (s *MemoryStore) ListPublicLobbies(_ context.Context, since time.Time, limit int) ([]LobbyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []LobbyRecord
	for _, rec := range s.lobbies {
		if !rec.Settings.IsPublic || rec.CreatedAt.Before(since) {
			continue
		}
		if rec.Status != engine.StatusWaiting && rec.Status != engine.StatusInProgress {
			continue
		}
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b LobbyRecord) int {
		if a.Status != b.Status {
			if a.Status == engine.StatusWaiting {
				return -1
			}
			return 1
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) DeleteStaleLobbies(_ context.Context, cutoff time.Time, active []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for code, rec := range s.lobbies {
		if rec.CreatedAt.Before(cutoff) && !slices.Contains(active, code) {
			delete(s.lobbies, code)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) GetPlayerStats(_ context.Context, playerID string) (PlayerStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[playerID]
	if !ok {
		return PlayerStats{}, ErrNotFound
	}
	return st, nil
}

func (s *MemoryStore) Leaderboard(_ context.Context, limit int) ([]PlayerStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlayerStats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b PlayerStats) int {
		return cmp.Or(
			cmp.Compare(b.GamesWon, a.GamesWon),
			cmp.Compare(b.MinigamesWon, a.MinigamesWon),
			cmp.Compare(a.PlayerID, b.PlayerID),
		)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Lobby returns a stored record; used by tests.
func (s *MemoryStore) Lobby(code string) (LobbyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.lobbies[code]
	return rec, ok
}

package engine

import (
	"strings"
	"time"
)

// NewState builds a waiting session whose only roster entry is the host. The
// host counts as disconnected until a connection attaches for them.
func NewState(code, name string, settings Settings, hostID, hostName string, now time.Time) (State, error) {
	name = strings.TrimSpace(name)
	if code == "" || hostID == "" || name == "" {
		return State{}, ErrInvalidSettings
	}
	s := State{
		Lobby: Meta{
			Code:      code,
			Name:      name,
			HostID:    hostID,
			Status:    StatusWaiting,
			Settings:  settings,
			CreatedAt: now,
		},
		Players: []Player{{
			ID:       hostID,
			Name:     NormalizeName(hostName),
			Lives:    settings.Lives,
			JoinedAt: now,
		}},
	}
	return s, nil
}

// IsLiving reports whether a roster entry takes part in rounds.
func IsLiving(p Player) bool {
	return !p.Eliminated && !p.Spectator
}

func Living(s State) []Player {
	out := make([]Player, 0, len(s.Players))
	for _, p := range s.Players {
		if IsLiving(p) {
			out = append(out, p)
		}
	}
	return out
}

func LivingCount(s State) int {
	n := 0
	for _, p := range s.Players {
		if IsLiving(p) {
			n++
		}
	}
	return n
}

// Winner returns the last living player, if exactly one remains.
func Winner(s State) (Player, bool) {
	living := Living(s)
	if len(living) != 1 {
		return Player{}, false
	}
	return living[0], true
}

func Find(s State, playerID string) (Player, bool) {
	idx := indexOf(s, playerID)
	if idx < 0 {
		return Player{}, false
	}
	return s.Players[idx], true
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

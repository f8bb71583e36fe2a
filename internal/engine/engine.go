package engine

import (
	"errors"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
)

var ErrNotFound = errors.New("lobby not found")
var ErrLobbyFull = errors.New("lobby is full")
var ErrBadPassword = errors.New("incorrect password")
var ErrNotHost = errors.New("only the host can do that")
var ErrNotEnoughPlayers = errors.New("need at least 2 players to start")
var ErrNotAllReady = errors.New("not all players are ready")
var ErrUnknownPlayer = errors.New("player not in lobby")
var ErrGameInProgress = errors.New("game already in progress")
var ErrInvalidSettings = errors.New("invalid lobby settings")
var ErrUnsupportedCommand = errors.New("unsupported command")

const MaxPlayers = 16

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in-progress"
)

type Meta struct {
	Code          string    `json:"lobbyCode"`
	Name          string    `json:"name"`
	HostID        string    `json:"hostPlayerId"`
	Status        Status    `json:"status"`
	Settings      Settings  `json:"settings"`
	CreatedAt     time.Time `json:"createdAt"`
	GameStartedAt time.Time `json:"gameStartedAt,omitzero"`
}

// Player is one roster entry. MinigameWins and LivesLost tally the current game only.
type Player struct {
	ID           string    `json:"playerId"`
	Name         string    `json:"username"`
	Lives        int       `json:"currentLives"`
	Eliminated   bool      `json:"isEliminated"`
	Ready        bool      `json:"isReady"`
	Connected    bool      `json:"isConnected"`
	Spectator    bool      `json:"isSpectator"`
	JoinedAt     time.Time `json:"joinedAt"`
	MinigameWins int       `json:"minigameWins"`
	LivesLost    int       `json:"livesLost"`
}

// State is the authoritative session state. Players stay in join order.
type State struct {
	Lobby   Meta
	Players []Player
	Round   int
}

type CommandType string

const (
	CmdJoin         CommandType = "Join"
	CmdLeave        CommandType = "Leave"
	CmdSetConnected CommandType = "SetConnected"
	CmdToggleReady  CommandType = "ToggleReady"
	CmdStartGame    CommandType = "StartGame"
	CmdKick         CommandType = "Kick"
)

type Command struct {
	Type       CommandType
	PlayerID   string
	PlayerName string
	TargetID   string
	Password   string
	Connected  bool
	At         time.Time
}

type EventType string

const (
	EvtPlayerJoined      EventType = "PlayerJoined"
	EvtPlayerReconnected EventType = "PlayerReconnected"
	EvtPlayerLeft        EventType = "PlayerLeft"
	EvtPlayerKicked      EventType = "PlayerKicked"
	EvtHostTransferred   EventType = "HostTransferred"
	EvtConnectionChanged EventType = "ConnectionChanged"
	EvtPlayerReady       EventType = "PlayerReady"
	EvtGameStarted       EventType = "GameStarted"
	EvtLobbyEmpty        EventType = "LobbyEmpty"
	EvtLifeLost          EventType = "LifeLost"
	EvtPlayerEliminated  EventType = "PlayerEliminated"
)

type Event struct {
	Type     EventType
	PlayerID string
	Player   Player
	Ready    bool
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	newState := s
	newState.Players = slices.Clone(s.Players)

	switch cmd.Type {
	case CmdJoin:
		if idx := indexOf(s, cmd.PlayerID); idx >= 0 {
			// Known id: reconnect, never a second entry.
			newState.Players[idx].Connected = true
			return []Event{{Type: EvtPlayerReconnected, PlayerID: cmd.PlayerID, Player: newState.Players[idx]}}, newState, nil
		}
		if cmd.PlayerID == "" {
			return nil, s, ErrUnknownPlayer
		}
		if len(s.Players) >= MaxPlayers {
			return nil, s, ErrLobbyFull
		}
		if !checkPassword(s.Lobby.Settings.PasswordHash, cmd.Password) {
			return nil, s, ErrBadPassword
		}

		p := Player{
			ID:        cmd.PlayerID,
			Name:      NormalizeName(cmd.PlayerName),
			Lives:     s.Lobby.Settings.Lives,
			Connected: true,
			Spectator: s.Lobby.Status != StatusWaiting,
			JoinedAt:  cmd.At,
		}
		newState.Players = append(newState.Players, p)
		return []Event{{Type: EvtPlayerJoined, PlayerID: p.ID, Player: p}}, newState, nil

	case CmdLeave, CmdKick:
		target := cmd.PlayerID
		evt := EvtPlayerLeft
		if cmd.Type == CmdKick {
			if cmd.PlayerID != s.Lobby.HostID {
				return nil, s, ErrNotHost
			}
			if cmd.TargetID == cmd.PlayerID {
				return nil, s, ErrUnsupportedCommand
			}
			target = cmd.TargetID
			evt = EvtPlayerKicked
		}

		idx := indexOf(s, target)
		if idx < 0 {
			return nil, s, ErrUnknownPlayer
		}
		newState.Players = slices.Delete(newState.Players, idx, idx+1)
		events := []Event{{Type: evt, PlayerID: target}}

		if len(newState.Players) == 0 {
			return append(events, Event{Type: EvtLobbyEmpty}), newState, nil
		}
		if s.Lobby.HostID == target {
			// Roster is in join order, so the first entry joined earliest.
			newState.Lobby.HostID = newState.Players[0].ID
			newState.Players[0].Ready = false
			events = append(events, Event{Type: EvtHostTransferred, PlayerID: newState.Lobby.HostID})
		}
		return events, newState, nil

	case CmdSetConnected:
		idx := indexOf(s, cmd.PlayerID)
		if idx < 0 {
			return nil, s, ErrUnknownPlayer
		}
		if newState.Players[idx].Connected == cmd.Connected {
			return nil, s, nil
		}
		newState.Players[idx].Connected = cmd.Connected
		return []Event{{Type: EvtConnectionChanged, PlayerID: cmd.PlayerID, Player: newState.Players[idx]}}, newState, nil

	case CmdToggleReady:
		idx := indexOf(s, cmd.PlayerID)
		if idx < 0 {
			return nil, s, ErrUnknownPlayer
		}
		// Host is implicitly ready.
		if cmd.PlayerID == s.Lobby.HostID {
			return nil, s, nil
		}
		newState.Players[idx].Ready = !newState.Players[idx].Ready
		return []Event{{Type: EvtPlayerReady, PlayerID: cmd.PlayerID, Ready: newState.Players[idx].Ready}}, newState, nil

	case CmdStartGame:
		if cmd.PlayerID != s.Lobby.HostID {
			return nil, s, ErrNotHost
		}
		if s.Lobby.Status != StatusWaiting {
			return nil, s, ErrGameInProgress
		}
		if len(s.Players) < 2 {
			return nil, s, ErrNotEnoughPlayers
		}
		for _, p := range s.Players {
			if p.ID != s.Lobby.HostID && !p.Ready {
				return nil, s, ErrNotAllReady
			}
		}

		newState.Lobby.Status = StatusInProgress
		newState.Lobby.GameStartedAt = cmd.At
		newState.Round = 0
		for i := range newState.Players {
			newState.Players[i].MinigameWins = 0
			newState.Players[i].LivesLost = 0
		}
		return []Event{{Type: EvtGameStarted}}, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// ApplyOutcome takes one life from every listed player who is still alive and
// eliminates anyone reaching zero. Survivors among the living get a minigame win.
func ApplyOutcome(s State, lostLife []string) ([]Event, State) {
	newState := s
	newState.Players = slices.Clone(s.Players)
	newState.Round++

	var events []Event
	for i := range newState.Players {
		p := &newState.Players[i]
		if !IsLiving(*p) {
			continue
		}
		if !slices.Contains(lostLife, p.ID) {
			p.MinigameWins++
			continue
		}

		p.Lives--
		p.LivesLost++
		events = append(events, Event{Type: EvtLifeLost, PlayerID: p.ID, Player: *p})
		if p.Lives <= 0 {
			p.Lives = 0
			p.Eliminated = true
			events = append(events, Event{Type: EvtPlayerEliminated, PlayerID: p.ID, Player: *p})
		}
	}
	return events, newState
}

// Reset returns the session to the lobby after a game: lives restored, ready
// flags cleared and spectators promoted to regular players.
func Reset(s State) State {
	newState := s
	newState.Players = slices.Clone(s.Players)
	newState.Lobby.Status = StatusWaiting
	newState.Lobby.GameStartedAt = time.Time{}
	for i := range newState.Players {
		p := &newState.Players[i]
		p.Lives = s.Lobby.Settings.Lives
		p.Eliminated = false
		p.Ready = false
		p.Spectator = false
	}
	return newState
}

func indexOf(s State, playerID string) int {
	return slices.IndexFunc(s.Players, func(p Player) bool { return p.ID == playerID })
}

func checkPassword(hash, password string) bool {
	if hash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NormalizeName trims and NFC-normalizes a display name.
func NormalizeName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return "Player"
	}
	return name
}

// Package types holds the JSON shapes exchanged over the websocket.
//
// Client -> Server (every request may carry requestId; the reply is an ack)
// createLobby:   name, settings{lives, isPublic, minigameDuration}, password?, playerId?, username
// joinLobby:     lobbyCode, playerId?, username, password?
// leaveLobby:    {}
// toggleReady:   {}
// startGame:     {} (host only)
// kickPlayer:    targetPlayerId (host only)
// minigameInput: input (shape depends on the running minigame)
//
// Server -> Client
// lobbyState:     state{version, lobby, players, round, currentMinigame?, minigameStartTime?, timeRemaining?}
// playerJoined:   player
// playerLeft:     playerId
// playerReady:    playerId, isReady
// gameStarted:    {}
// minigameStart:  minigame{id, name, config, durationSeconds, ...}
// minigameUpdate: update
// minigameEnd:    outcome{minigameId, results, playersLostLife, playersEliminated, details?}
// gameOver:       winnerId?, winnerUsername?
// returnToLobby:  {}
// kicked:         {}
// ack:            requestId, success, lobbyCode?, playerId?, error?
// error:          error
package types

import (
	"encoding/json"

	"github.com/DoyleJ11/last-life-backend/internal/engine"
	"github.com/DoyleJ11/last-life-backend/internal/minigame"
)

// Client -> server message types.
const (
	MsgCreateLobby   = "createLobby"
	MsgJoinLobby     = "joinLobby"
	MsgLeaveLobby    = "leaveLobby"
	MsgToggleReady   = "toggleReady"
	MsgStartGame     = "startGame"
	MsgMinigameInput = "minigameInput"
	MsgKickPlayer    = "kickPlayer"
)

// Server -> client message types.
const (
	MsgLobbyState     = "lobbyState"
	MsgPlayerJoined   = "playerJoined"
	MsgPlayerLeft     = "playerLeft"
	MsgPlayerReady    = "playerReady"
	MsgGameStarted    = "gameStarted"
	MsgMinigameStart  = "minigameStart"
	MsgMinigameUpdate = "minigameUpdate"
	MsgMinigameEnd    = "minigameEnd"
	MsgGameOver       = "gameOver"
	MsgReturnToLobby  = "returnToLobby"
	MsgError          = "error"
	MsgKicked         = "kicked"
	MsgAck            = "ack"
)

type ClientMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`

	LobbyCode string           `json:"lobbyCode,omitempty"`
	Name      string           `json:"name,omitempty"`
	Settings  *engine.Settings `json:"settings,omitempty"`
	Password  string           `json:"password,omitempty"`
	PlayerID  string           `json:"playerId,omitempty"`
	Username  string           `json:"username,omitempty"`

	TargetPlayerID string          `json:"targetPlayerId,omitempty"`
	Input          json.RawMessage `json:"input,omitempty"`
}

// LobbyState is the snapshot every member receives after a mutation.
type LobbyState struct {
	Version           int                  `json:"version"`
	Lobby             engine.Meta          `json:"lobby"`
	Players           []engine.Player      `json:"players"`
	Round             int                  `json:"round"`
	CurrentMinigame   *minigame.Descriptor `json:"currentMinigame,omitempty"`
	MinigameStartTime int64                `json:"minigameStartTime,omitempty"` // unix ms
	TimeRemaining     *int                 `json:"timeRemaining,omitempty"`     // seconds
}

type ServerMessage struct {
	Type string `json:"type"`

	State    *LobbyState          `json:"state,omitempty"`
	Player   *engine.Player       `json:"player,omitempty"`
	PlayerID string               `json:"playerId,omitempty"`
	IsReady  *bool                `json:"isReady,omitempty"`
	Minigame *minigame.Descriptor `json:"minigame,omitempty"`
	Update   any                  `json:"update,omitempty"`
	Outcome  *minigame.Outcome    `json:"outcome,omitempty"`

	WinnerID       string `json:"winnerId,omitempty"`
	WinnerUsername string `json:"winnerUsername,omitempty"`

	RequestID string `json:"requestId,omitempty"`
	Success   *bool  `json:"success,omitempty"`
	LobbyCode string `json:"lobbyCode,omitempty"`
	Error     string `json:"error,omitempty"`
}

func ErrorMessage(err error) ServerMessage {
	return ServerMessage{Type: MsgError, Error: err.Error()}
}

// Ack answers a request that carried a requestId.
func Ack(requestID, lobbyCode string, err error) ServerMessage {
	ok := err == nil
	msg := ServerMessage{Type: MsgAck, RequestID: requestID, Success: &ok, LobbyCode: lobbyCode}
	if err != nil {
		msg.Error = err.Error()
	}
	return msg
}

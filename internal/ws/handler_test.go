package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"nhooyr.io/websocket"

	"github.com/DoyleJ11/last-life-backend/internal/engine"
	"github.com/DoyleJ11/last-life-backend/internal/hub"
	"github.com/DoyleJ11/last-life-backend/internal/lobby"
	"github.com/DoyleJ11/last-life-backend/internal/types"
)

func newServer(t *testing.T) string {
	t.Helper()
	log := zaptest.NewLogger(t)
	h := hub.NewHub(context.Background(), hub.Options{Lobby: lobby.Config{Log: log}})
	srv := httptest.NewServer(Handler(h, log, Options{}))
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func sendJSON(t *testing.T, c *websocket.Conn, msg types.ClientMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

// readUntil skips messages until one of the wanted type arrives.
func readUntil(t *testing.T, c *websocket.Conn, msgType string) types.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, data, err := c.Read(ctx)
		require.NoError(t, err, "waiting for %s", msgType)
		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &raw))
		var got string
		require.NoError(t, json.Unmarshal(raw["type"], &got))
		if got != msgType {
			continue
		}
		var msg types.ServerMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}
}

func TestHandler_CreateAndJoin(t *testing.T) {
	url := newServer(t)
	host := dial(t, url)

	sendJSON(t, host, types.ClientMessage{
		Type:      types.MsgCreateLobby,
		RequestID: "r1",
		Name:      "Friday",
		PlayerID:  "host",
		Username:  "Host",
	})
	ack := readUntil(t, host, types.MsgAck)
	require.NotNil(t, ack.Success)
	require.True(t, *ack.Success, ack.Error)
	assert.Equal(t, "r1", ack.RequestID)
	assert.Equal(t, "host", ack.PlayerID)
	require.Len(t, ack.LobbyCode, hub.CodeLength)

	guest := dial(t, url)
	sendJSON(t, guest, types.ClientMessage{
		Type:      types.MsgJoinLobby,
		RequestID: "r2",
		LobbyCode: strings.ToLower(ack.LobbyCode),
		Username:  "Guest",
	})
	joinAck := readUntil(t, guest, types.MsgAck)
	require.True(t, *joinAck.Success, joinAck.Error)
	assert.NotEmpty(t, joinAck.PlayerID, "a player id is generated when none is sent")

	joined := readUntil(t, host, types.MsgPlayerJoined)
	require.NotNil(t, joined.Player)
	assert.Equal(t, "Guest", joined.Player.Name)

	sendJSON(t, guest, types.ClientMessage{Type: types.MsgToggleReady})
	ready := readUntil(t, host, types.MsgPlayerReady)
	assert.Equal(t, joinAck.PlayerID, ready.PlayerID)
	require.NotNil(t, ready.IsReady)
	assert.True(t, *ready.IsReady)

	sendJSON(t, host, types.ClientMessage{Type: types.MsgStartGame, RequestID: "r3"})
	readUntil(t, guest, types.MsgGameStarted)
}

func TestHandler_Errors(t *testing.T) {
	url := newServer(t)
	c := dial(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("{not json")))
	assert.Equal(t, errBadJSON.Error(), readUntil(t, c, types.MsgError).Error)

	sendJSON(t, c, types.ClientMessage{Type: "dance"})
	assert.Equal(t, errUnknownType.Error(), readUntil(t, c, types.MsgError).Error)

	sendJSON(t, c, types.ClientMessage{Type: types.MsgToggleReady, RequestID: "x"})
	ack := readUntil(t, c, types.MsgAck)
	assert.False(t, *ack.Success)
	assert.Equal(t, errNoLobby.Error(), ack.Error)

	sendJSON(t, c, types.ClientMessage{Type: types.MsgJoinLobby, LobbyCode: "ZZZZZZ"})
	assert.Equal(t, engine.ErrNotFound.Error(), readUntil(t, c, types.MsgError).Error)
}

func TestHandler_PasswordAndKick(t *testing.T) {
	url := newServer(t)
	host := dial(t, url)

	sendJSON(t, host, types.ClientMessage{
		Type:      types.MsgCreateLobby,
		RequestID: "c",
		Name:      "Locked",
		Password:  "pw",
		PlayerID:  "host",
		Username:  "Host",
	})
	code := readUntil(t, host, types.MsgAck).LobbyCode

	guest := dial(t, url)
	sendJSON(t, guest, types.ClientMessage{Type: types.MsgJoinLobby, RequestID: "j1", LobbyCode: code, PlayerID: "g", Username: "G"})
	bad := readUntil(t, guest, types.MsgAck)
	assert.False(t, *bad.Success)
	assert.Equal(t, engine.ErrBadPassword.Error(), bad.Error)

	sendJSON(t, guest, types.ClientMessage{Type: types.MsgJoinLobby, RequestID: "j2", LobbyCode: code, PlayerID: "g", Username: "G", Password: "pw"})
	require.True(t, *readUntil(t, guest, types.MsgAck).Success)

	sendJSON(t, host, types.ClientMessage{Type: types.MsgKickPlayer, TargetPlayerID: "g"})
	readUntil(t, guest, types.MsgKicked)

	left := readUntil(t, host, types.MsgPlayerLeft)
	assert.Equal(t, "g", left.PlayerID)

	// The kicked connection is hung up.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		if _, _, err := guest.Read(ctx); err != nil {
			assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
			break
		}
	}
}

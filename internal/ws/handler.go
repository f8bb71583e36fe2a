package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/DoyleJ11/last-life-backend/internal/engine"
	"github.com/DoyleJ11/last-life-backend/internal/hub"
	"github.com/DoyleJ11/last-life-backend/internal/lobby"
	"github.com/DoyleJ11/last-life-backend/internal/types"
)

var (
	errBadJSON     = errors.New("bad json")
	errUnknownType = errors.New("unknown message type")
	errNoLobby     = errors.New("not in a lobby")
)

type Options struct {
	// OriginPatterns loosens the same-origin check, e.g. "localhost:*" in dev.
	OriginPatterns []string
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
	OutboxSize     int
}

func DefaultOptions() Options {
	return Options{
		PingInterval: 20 * time.Second,
		WriteTimeout: 3 * time.Second,
		ReadLimit:    64 << 10,
		OutboxSize:   32,
	}
}

// Handler upgrades the request and serves one client for the lifetime of the
// socket. A client can create, join and leave sessions over the same socket.
func Handler(h *hub.Hub, log *zap.Logger, opts Options) http.HandlerFunc {
	def := DefaultOptions()
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = def.ReadLimit
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = def.OutboxSize
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(opts.ReadLimit)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		s := &session{ws: conn, hub: h, log: log, opts: opts, ctx: ctx}
		go s.keepalive(cancel)
		s.readLoop()
		s.detach()
	}
}

type session struct {
	ws   *websocket.Conn
	hub  *hub.Hub
	log  *zap.Logger
	opts Options
	ctx  context.Context

	mu       sync.Mutex
	lb       *lobby.Lobby
	playerID string
	connID   string
}

func (s *session) current() (*lobby.Lobby, string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lb, s.playerID, s.connID
}

func (s *session) setCurrent(lb *lobby.Lobby, playerID, connID string) {
	s.mu.Lock()
	s.lb, s.playerID, s.connID = lb, playerID, connID
	s.mu.Unlock()
}

func (s *session) readLoop() {
	for {
		_, data, err := s.ws.Read(s.ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				s.log.Debug("websocket read ended", zap.Error(err))
			}
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			s.write(types.ErrorMessage(errBadJSON))
			continue
		}

		code, err := s.handle(cm)
		switch {
		case cm.RequestID != "":
			ack := types.Ack(cm.RequestID, code, err)
			if err == nil {
				_, ack.PlayerID, _ = s.current()
			}
			s.write(ack)
		case err != nil:
			s.write(types.ErrorMessage(err))
		}
	}
}

// handle dispatches one client message and returns the session code for
// create and join requests.
func (s *session) handle(cm types.ClientMessage) (string, error) {
	switch cm.Type {
	case types.MsgCreateLobby:
		playerID := orNewID(cm.PlayerID)
		var settings engine.Settings
		if cm.Settings != nil {
			settings = *cm.Settings
		}
		code, lb, err := s.hub.Create(s.ctx, hub.CreateParams{
			Name:     cm.Name,
			Settings: settings,
			Password: cm.Password,
			HostID:   playerID,
			HostName: cm.Username,
		})
		if err != nil {
			return "", err
		}
		s.leave()
		return code, s.attach(lb, engine.Command{Type: engine.CmdJoin, PlayerID: playerID, PlayerName: cm.Username})

	case types.MsgJoinLobby:
		code := strings.ToUpper(strings.TrimSpace(cm.LobbyCode))
		lb := s.hub.Get(s.ctx, code)
		if lb == nil {
			return "", engine.ErrNotFound
		}
		playerID := orNewID(cm.PlayerID)
		if cur, pid, _ := s.current(); cur == lb && pid == playerID {
			s.detach()
		} else {
			s.leave()
		}
		return code, s.attach(lb, engine.Command{
			Type:       engine.CmdJoin,
			PlayerID:   playerID,
			PlayerName: cm.Username,
			Password:   cm.Password,
		})

	case types.MsgLeaveLobby:
		lb, _, _ := s.current()
		if lb == nil {
			return "", errNoLobby
		}
		code := lb.Code()
		s.leave()
		return code, nil

	case types.MsgToggleReady:
		return s.command(engine.Command{Type: engine.CmdToggleReady})

	case types.MsgStartGame:
		return s.command(engine.Command{Type: engine.CmdStartGame})

	case types.MsgKickPlayer:
		return s.command(engine.Command{Type: engine.CmdKick, TargetID: cm.TargetPlayerID})

	case types.MsgMinigameInput:
		lb, playerID, _ := s.current()
		if lb == nil {
			return "", errNoLobby
		}
		lb.Send(lobby.Input{PlayerID: playerID, Payload: cm.Input})
		return lb.Code(), nil

	default:
		return "", errUnknownType
	}
}

// attach registers a fresh outbox with lb and starts its writer.
func (s *session) attach(lb *lobby.Lobby, cmd engine.Command) error {
	connID := uuid.NewString()
	out := make(chan types.ServerMessage, s.opts.OutboxSize)
	reply := make(chan error, 1)
	if !lb.Send(lobby.Attach{ConnID: connID, Cmd: cmd, Outbox: out, Reply: reply}) {
		return engine.ErrNotFound
	}
	select {
	case err := <-reply:
		if err != nil {
			return err
		}
	case <-lb.Done():
		return engine.ErrNotFound
	case <-s.ctx.Done():
		lb.Send(lobby.Detach{ConnID: connID})
		return s.ctx.Err()
	}
	s.setCurrent(lb, cmd.PlayerID, connID)
	go s.writeLoop(connID, out)
	return nil
}

func (s *session) command(cmd engine.Command) (string, error) {
	lb, playerID, connID := s.current()
	if lb == nil {
		return "", errNoLobby
	}
	cmd.PlayerID = playerID
	reply := make(chan error, 1)
	if !lb.Send(lobby.FromClient{ConnID: connID, Cmd: cmd, Reply: reply}) {
		s.setCurrent(nil, "", "")
		return "", engine.ErrNotFound
	}
	select {
	case err := <-reply:
		return lb.Code(), err
	case <-lb.Done():
		return "", engine.ErrNotFound
	case <-s.ctx.Done():
		return "", s.ctx.Err()
	}
}

// leave removes the player from the current session, if any. The session
// closes the outbox, which ends its writer.
func (s *session) leave() {
	lb, playerID, connID := s.current()
	if lb == nil {
		return
	}
	s.setCurrent(nil, "", "")
	lb.Send(lobby.FromClient{ConnID: connID, Cmd: engine.Command{Type: engine.CmdLeave, PlayerID: playerID}})
}

// detach drops this connection but keeps the player in the roster so they
// can reconnect.
func (s *session) detach() {
	lb, _, connID := s.current()
	if lb == nil {
		return
	}
	s.setCurrent(nil, "", "")
	lb.Send(lobby.Detach{ConnID: connID})
}

func (s *session) writeLoop(connID string, out <-chan types.ServerMessage) {
	for msg := range out {
		s.write(msg)
	}
	// The outbox was closed by the session itself: kicked, too slow, or
	// shutting down. If this is still our live attachment, hang up.
	s.mu.Lock()
	removed := s.connID == connID
	if removed {
		s.lb, s.playerID, s.connID = nil, "", ""
	}
	s.mu.Unlock()
	if removed {
		s.ws.Close(websocket.StatusGoingAway, "removed from lobby")
	}
}

func (s *session) write(msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("marshal server message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.WriteTimeout)
	defer cancel()
	if err := s.ws.Write(ctx, websocket.MessageText, payload); err != nil {
		s.log.Debug("websocket write failed", zap.String("type", msg.Type), zap.Error(err))
	}
}

func (s *session) keepalive(cancel context.CancelFunc) {
	t := time.NewTicker(s.opts.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			ctx, pingCancel := context.WithTimeout(s.ctx, s.opts.PingInterval)
			err := s.ws.Ping(ctx)
			pingCancel()
			if err != nil {
				s.log.Debug("websocket ping failed", zap.Error(err))
				cancel()
				return
			}
		}
	}
}

func orNewID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}

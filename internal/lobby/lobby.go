package lobby

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/last-life-backend/internal/engine"
	"github.com/DoyleJ11/last-life-backend/internal/minigame"
	"github.com/DoyleJ11/last-life-backend/internal/orchestrator"
	"github.com/DoyleJ11/last-life-backend/internal/store"
	"github.com/DoyleJ11/last-life-backend/internal/types"
)

type Msg interface{ isLobbyMsg() }

// Attach joins (or rejoins) the session on behalf of one connection. Cmd must
// be a Join command. Reply receives nil once the outbox is registered.
type Attach struct {
	ConnID string
	Cmd    engine.Command
	Outbox chan types.ServerMessage
	Reply  chan error
}

func (Attach) isLobbyMsg() {}

// Detach reports a closed connection. The player stays in the roster.
type Detach struct{ ConnID string }

func (Detach) isLobbyMsg() {}

type FromClient struct {
	ConnID string
	Cmd    engine.Command
	Reply  chan error // optional
}

func (FromClient) isLobbyMsg() {}

type Input struct {
	PlayerID string
	Payload  json.RawMessage
}

func (Input) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type timerFired struct{ gen int }

func (timerFired) isLobbyMsg() {}

type resendFired struct{ gen int }

func (resendFired) isLobbyMsg() {}

type idleFired struct{ gen int }

func (idleFired) isLobbyMsg() {}

type View struct {
	Version    int
	NumClients int
	State      engine.State
	Phase      Phase
	Current    *minigame.Descriptor
}

// Rounds is the round orchestrator as seen by a session.
type Rounds interface {
	SelectNext(settings engine.Settings, living []minigame.Participant, emit minigame.Emitter) minigame.Descriptor
	Input(playerID string, payload json.RawMessage)
	Finish() minigame.Outcome
	Active() bool
}

type Timings struct {
	InterRoundPause time.Duration
	GameOverPause   time.Duration
	// RoundUnit is the length of one challenge second.
	RoundUnit time.Duration
	// Resends are the offsets after game start at which the snapshot is sent
	// again for clients that attach late.
	Resends        []time.Duration
	PersistTimeout time.Duration
	// IdleTimeout tears the session down once no connection has been
	// attached for that long. Zero disables it.
	IdleTimeout time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		InterRoundPause: 3 * time.Second,
		GameOverPause:   2 * time.Second,
		RoundUnit:       time.Second,
		Resends:         []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second},
		PersistTimeout:  5 * time.Second,
		IdleTimeout:     2 * time.Minute,
	}
}

type Config struct {
	Timings Timings
	Store   store.Store
	Rounds  Rounds
	Log     *zap.Logger
	// OnEmpty runs on the lobby goroutine once the session is torn down,
	// either because the last player left or because it sat idle.
	OnEmpty func(code string)
	Now     func() time.Time
}

type client struct {
	playerID string
	out      chan types.ServerMessage
}

type Lobby struct {
	code    string
	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]client
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	cfg    Config
	log    *zap.Logger
	rounds Rounds

	phase       Phase
	timerGen    int
	timer       *time.Timer
	current     *minigame.Descriptor
	startedAt   time.Time
	resendGen   int
	resendTimer *time.Timer
	resendAt    time.Duration
	resends     []time.Duration

	idleGen   int
	idleTimer *time.Timer

	jobs       chan job
	workerDone chan struct{}
}

func NewLobby(parent context.Context, initial engine.State, cfg Config) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Timings.RoundUnit == 0 {
		cfg.Timings = DefaultTimings()
	}
	log := cfg.Log.With(zap.String("code", initial.Lobby.Code))
	if cfg.Rounds == nil {
		cfg.Rounds = orchestrator.New(nil, log)
	}

	l := &Lobby{
		code:       initial.Lobby.Code,
		inbox:      make(chan Msg, 64),
		state:      initial,
		clients:    make(map[string]client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		cfg:        cfg,
		log:        log,
		rounds:     cfg.Rounds,
		jobs:       make(chan job, 64),
		workerDone: make(chan struct{}),
	}

	go l.persistWorker()
	l.persistCreate()
	go l.loop()
	return l
}

func (l *Lobby) loop() {
	defer close(l.done)
	l.watchIdle()
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Attach:
				l.attach(msg)

			case Detach:
				l.detach(msg.ConnID)

			case FromClient:
				err := l.handleCommand(msg.ConnID, msg.Cmd)
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case Input:
				if l.phase == PhaseChallenge {
					l.rounds.Input(msg.PlayerID, msg.Payload)
				}

			case timerFired:
				if msg.gen == l.timerGen {
					l.advance()
				}

			case idleFired:
				if msg.gen == l.idleGen && len(l.clients) == 0 {
					l.log.Info("no connections, reaping idle lobby", zap.Stringer("phase", l.phase))
					l.teardown()
					return
				}

			case resendFired:
				if msg.gen == l.resendGen {
					l.broadcastState()
					l.scheduleResend()
				}

			case GetState:
				// test-only: reflect internal state without data races
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					State:      l.state,
					Phase:      l.phase,
					Current:    l.current,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
		if len(l.state.Players) == 0 {
			l.teardown()
			return
		}
		l.watchIdle()
	}
}

// watchIdle keeps the idle timer armed exactly while no connection is attached.
func (l *Lobby) watchIdle() {
	switch {
	case len(l.clients) > 0 && l.idleTimer != nil:
		l.stopIdle()
	case len(l.clients) == 0 && l.idleTimer == nil && l.cfg.Timings.IdleTimeout > 0:
		l.idleGen++
		gen := l.idleGen
		l.idleTimer = time.AfterFunc(l.cfg.Timings.IdleTimeout, func() {
			select {
			case l.inbox <- idleFired{gen: gen}:
			case <-l.ctx.Done():
			}
		})
	}
}

func (l *Lobby) stopIdle() {
	if l.idleTimer != nil {
		l.idleTimer.Stop()
		l.idleTimer = nil
	}
	l.idleGen++
}

func (l *Lobby) attach(msg Attach) {
	if msg.Cmd.At.IsZero() {
		msg.Cmd.At = l.cfg.Now()
	}
	events, newState, err := engine.Apply(l.state, msg.Cmd)
	if err != nil {
		msg.Reply <- err
		return
	}
	l.clients[msg.ConnID] = client{playerID: msg.Cmd.PlayerID, out: msg.Outbox}
	msg.Reply <- nil
	l.commit(newState)

	if engine.ContainsEvent(events, engine.EvtPlayerReconnected) {
		// The joining connection is already registered, so it gets this too.
		l.broadcastState()
		return
	}
	l.emitEvents(events)
	l.broadcastState()
	l.persistPlayerCount()
}

func (l *Lobby) detach(connID string) {
	c, ok := l.clients[connID]
	if !ok {
		return
	}
	close(c.out)
	delete(l.clients, connID)
	l.markDisconnected(c.playerID)
}

// markDisconnected flips the connected flag once a player has no connection left.
func (l *Lobby) markDisconnected(playerID string) {
	for _, c := range l.clients {
		if c.playerID == playerID {
			return
		}
	}
	events, newState, err := engine.Apply(l.state, engine.Command{Type: engine.CmdSetConnected, PlayerID: playerID, Connected: false})
	if err != nil || len(events) == 0 {
		return
	}
	l.commit(newState)
	l.broadcastState()
}

func (l *Lobby) handleCommand(connID string, cmd engine.Command) error {
	if cmd.At.IsZero() {
		cmd.At = l.cfg.Now()
	}
	events, newState, err := engine.Apply(l.state, cmd)
	if err != nil {
		l.log.Debug("command rejected", zap.String("conn", connID), zap.String("cmd", string(cmd.Type)), zap.Error(err))
		return err
	}
	if len(events) == 0 {
		return nil
	}
	l.commit(newState)
	l.emitEvents(events)

	switch {
	case engine.ContainsEvent(events, engine.EvtLobbyEmpty):
		return nil
	case engine.ContainsEvent(events, engine.EvtGameStarted):
		l.startGame()
		return nil
	}
	l.broadcastState()
	if engine.ContainsEvent(events, engine.EvtPlayerLeft) || engine.ContainsEvent(events, engine.EvtPlayerKicked) {
		l.persistPlayerCount()
	}
	return nil
}

func (l *Lobby) commit(s engine.State) {
	l.state = s
	l.version++
}

// emitEvents fans roster events out as their wire messages.
func (l *Lobby) emitEvents(events []engine.Event) {
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtPlayerJoined:
			p := ev.Player
			l.broadcast(types.ServerMessage{Type: types.MsgPlayerJoined, Player: &p})
		case engine.EvtPlayerReady:
			ready := ev.Ready
			l.broadcast(types.ServerMessage{Type: types.MsgPlayerReady, PlayerID: ev.PlayerID, IsReady: &ready})
		case engine.EvtPlayerLeft:
			l.dropPlayer(ev.PlayerID, nil)
			l.broadcast(types.ServerMessage{Type: types.MsgPlayerLeft, PlayerID: ev.PlayerID})
		case engine.EvtPlayerKicked:
			l.dropPlayer(ev.PlayerID, &types.ServerMessage{Type: types.MsgKicked})
			l.broadcast(types.ServerMessage{Type: types.MsgPlayerLeft, PlayerID: ev.PlayerID})
		case engine.EvtHostTransferred:
			l.log.Info("host transferred", zap.String("host", ev.PlayerID))
		}
	}
}

// dropPlayer closes every connection of a player who is no longer in the
// roster, optionally sending a final message first.
func (l *Lobby) dropPlayer(playerID string, last *types.ServerMessage) {
	for id, c := range l.clients {
		if c.playerID != playerID {
			continue
		}
		if last != nil {
			select {
			case c.out <- *last:
			default:
			}
		}
		close(c.out)
		delete(l.clients, id)
	}
}

func (l *Lobby) snapshot() *types.LobbyState {
	snap := &types.LobbyState{
		Version:         l.version,
		Lobby:           l.state.Lobby,
		Players:         append([]engine.Player(nil), l.state.Players...),
		Round:           l.state.Round,
		CurrentMinigame: l.current,
	}
	if l.current != nil {
		snap.MinigameStartTime = l.startedAt.UnixMilli()
		elapsed := int(l.cfg.Now().Sub(l.startedAt) / l.cfg.Timings.RoundUnit)
		remaining := max(0, l.current.DurationSeconds-elapsed)
		snap.TimeRemaining = &remaining
	}
	return snap
}

func (l *Lobby) broadcastState() {
	l.broadcast(types.ServerMessage{Type: types.MsgLobbyState, State: l.snapshot()})
}

func (l *Lobby) broadcast(msg types.ServerMessage) {
	slow := make(map[string]client)
	for id, c := range l.clients {
		select {
		case c.out <- msg:
			//ok
		default:
			// Client is slow/full - drop them.
			slow[id] = c
		}
	}
	if len(slow) > 0 {
		l.dropSlow(slow)
	}
}

func (l *Lobby) dropSlow(slow map[string]client) {
	for id, c := range slow {
		l.log.Debug("dropping slow client", zap.String("conn", id), zap.String("player", c.playerID))
		close(c.out)
		delete(l.clients, id)
	}
	for _, c := range slow {
		l.markDisconnected(c.playerID)
	}
}

// teardown runs after the last player left or the idle timer fired: timers
// stop, the record is removed and the hub is told.
func (l *Lobby) teardown() {
	l.stopTimers()
	if l.rounds.Active() {
		l.rounds.Finish()
	}
	l.phase = PhaseIdle
	l.persistDelete()
	if l.cfg.OnEmpty != nil {
		l.cfg.OnEmpty(l.code)
	}
	l.log.Info("lobby torn down")
	l.shutdown()
}

func (l *Lobby) shutdown() {
	l.stopTimers()
	l.stopIdle()
	for id, c := range l.clients {
		close(c.out) // Tell client no more messages
		delete(l.clients, id)
	}
	close(l.jobs)
	<-l.workerDone
	l.cancel()
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Send delivers a message unless the lobby has already stopped.
func (l *Lobby) Send(m Msg) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.inbox <- m:
		return true
	case <-l.done:
		return false
	}
}

// Done is closed once the lobby goroutine has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

func (l *Lobby) Code() string { return l.code }

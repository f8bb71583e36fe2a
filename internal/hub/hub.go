package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/last-life-backend/internal/engine"
	"github.com/DoyleJ11/last-life-backend/internal/lobby"
)

// CodeAlphabet leaves out characters that are easy to misread (0/O, 1/I).
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const CodeLength = 6

const maxCodeAttempts = 32

var ErrNoCode = errors.New("could not allocate a lobby code")
var ErrClosed = errors.New("hub is shut down")

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Name     string
	Settings engine.Settings // already normalized
	HostID   string
	HostName string
	Reply    chan Created
}

type Created struct {
	Code  string
	Lobby *lobby.Lobby
	Err   error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type RemoveLobby struct {
	Code string
}

type ListCodes struct {
	Reply chan []string
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (RemoveLobby) isHubMsg() {}
func (ListCodes) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

// Options configure every lobby the hub creates. Leave Lobby.Rounds nil so
// each lobby gets its own orchestrator.
type Options struct {
	Lobby   lobby.Config
	NewCode func() (string, error)
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	opts    Options
	log     *zap.Logger
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.NewCode == nil {
		opts.NewCode = GenerateCode
	}
	if opts.Lobby.Log == nil {
		opts.Lobby.Log = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		opts:    opts,
		log:     opts.Lobby.Log,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				msg.Reply <- h.create(msg)

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case RemoveLobby:
				delete(h.lobbies, msg.Code)
				h.log.Debug("lobby removed", zap.String("code", msg.Code), zap.Int("active", len(h.lobbies)))

			case ListCodes:
				codes := make([]string, 0, len(h.lobbies))
				for code := range h.lobbies {
					codes = append(codes, code)
				}
				slices.Sort(codes)
				msg.Reply <- codes

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(msg CreateLobby) Created {
	code, err := h.freeCode()
	if err != nil {
		return Created{Err: err}
	}
	state, err := engine.NewState(code, msg.Name, msg.Settings, msg.HostID, msg.HostName, time.Now())
	if err != nil {
		return Created{Err: err}
	}

	cfg := h.opts.Lobby
	cfg.OnEmpty = h.onEmpty
	lb := lobby.NewLobby(h.ctx, state, cfg)
	h.lobbies[code] = lb
	h.log.Info("lobby created", zap.String("code", code), zap.String("host", msg.HostID))
	return Created{Code: code, Lobby: lb}
}

func (h *Hub) freeCode() (string, error) {
	for range maxCodeAttempts {
		code, err := h.opts.NewCode()
		if err != nil {
			return "", err
		}
		if _, taken := h.lobbies[code]; !taken {
			return code, nil
		}
		h.log.Debug("collision on code, regenerating", zap.String("code", code))
	}
	return "", ErrNoCode
}

// onEmpty is called from a lobby goroutine; it must not block on a hub that
// is itself waiting for that lobby.
func (h *Hub) onEmpty(code string) {
	select {
	case h.inbox <- RemoveLobby{Code: code}:
	case <-h.ctx.Done():
	}
}

// shutdown cancels the shared context, which stops every lobby, then waits
// for each one to close its connections and drain its store queue.
func (h *Hub) shutdown() {
	h.cancel()
	for code, lb := range h.lobbies {
		<-lb.Done()
		delete(h.lobbies, code)
	}
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case <-h.done:
		return ErrClosed
	default:
	}
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreateParams is a lobby creation request as received from a client.
type CreateParams struct {
	Name     string
	Settings engine.Settings
	Password string
	HostID   string
	HostName string
}

// Create normalizes settings (hashing the password off the hub goroutine)
// and registers a new lobby with the host as its only player.
func (h *Hub) Create(ctx context.Context, p CreateParams) (string, *lobby.Lobby, error) {
	settings, err := engine.NormalizeSettings(p.Settings, p.Password)
	if err != nil {
		return "", nil, err
	}
	reply := make(chan Created, 1)
	if err := h.send(ctx, CreateLobby{Name: p.Name, Settings: settings, HostID: p.HostID, HostName: p.HostName, Reply: reply}); err != nil {
		return "", nil, err
	}
	select {
	case c := <-reply:
		return c.Code, c.Lobby, c.Err
	case <-h.done:
		return "", nil, ErrClosed
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}

// Get returns the live lobby for code, or nil.
func (h *Hub) Get(ctx context.Context, code string) *lobby.Lobby {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, GetLobby{Code: code, Reply: reply}); err != nil {
		return nil
	}
	select {
	case lb := <-reply:
		return lb
	case <-h.done:
		return nil
	case <-ctx.Done():
		return nil
	}
}

// ActiveCodes lists the codes of every live lobby.
func (h *Hub) ActiveCodes(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := h.send(ctx, ListCodes{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case codes := <-reply:
		return codes, nil
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops every lobby and waits for the hub to exit.
func (h *Hub) Shutdown(ctx context.Context) error {
	if err := h.send(ctx, ShutdownHub{}); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func GenerateCode() (string, error) {
	code := make([]byte, CodeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(CodeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = CodeAlphabet[num.Int64()]
	}
	return string(code), nil
}

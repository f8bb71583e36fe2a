package lobby

import (
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/last-life-backend/internal/engine"
	"github.com/DoyleJ11/last-life-backend/internal/minigame"
	"github.com/DoyleJ11/last-life-backend/internal/types"
)

// Phase is where the round loop stands. Only PhaseIdle accepts a new game.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseIntermission
	PhaseChallenge
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseIntermission:
		return "intermission"
	case PhaseChallenge:
		return "challenge"
	case PhaseGameOver:
		return "gameOver"
	default:
		return "idle"
	}
}

func (l *Lobby) startGame() {
	l.log.Info("game started", zap.Int("players", len(l.state.Players)))
	l.broadcast(types.ServerMessage{Type: types.MsgGameStarted})
	l.broadcastState()
	l.persistStatus(engine.StatusInProgress)

	l.resends = append([]time.Duration(nil), l.cfg.Timings.Resends...)
	l.resendAt = 0
	l.scheduleResend()

	l.nextRound()
}

// nextRound either opens the pause before another challenge or, once at most
// one living player is left, the pause before game over.
func (l *Lobby) nextRound() {
	if engine.LivingCount(l.state) > 1 {
		l.phase = PhaseIntermission
		l.arm(l.cfg.Timings.InterRoundPause)
		return
	}
	l.phase = PhaseGameOver
	l.arm(l.cfg.Timings.GameOverPause)
}

func (l *Lobby) advance() {
	l.log.Debug("round timer fired", zap.Stringer("phase", l.phase), zap.Int("round", l.state.Round))
	switch l.phase {
	case PhaseIntermission:
		l.beginChallenge()
	case PhaseChallenge:
		l.endChallenge()
	case PhaseGameOver:
		l.endGame()
	}
}

func (l *Lobby) beginChallenge() {
	living := engine.Living(l.state)
	if len(living) <= 1 {
		// Players left during the pause.
		l.nextRound()
		return
	}
	roster := make([]minigame.Participant, len(living))
	for i, p := range living {
		roster[i] = minigame.Participant{ID: p.ID, Name: p.Name}
	}

	desc := l.rounds.SelectNext(l.state.Lobby.Settings, roster, l.emitUpdate)
	l.current = &desc
	l.startedAt = l.cfg.Now()
	l.phase = PhaseChallenge
	l.log.Debug("challenge started", zap.String("kind", string(desc.ID)), zap.Int("round", l.state.Round+1))

	l.broadcast(types.ServerMessage{Type: types.MsgMinigameStart, Minigame: &desc})
	l.broadcastState()
	l.arm(time.Duration(desc.DurationSeconds) * l.cfg.Timings.RoundUnit)
}

// emitUpdate relays interim challenge state. Challenges only call it from
// Input, which runs on the lobby goroutine.
func (l *Lobby) emitUpdate(payload any) {
	l.broadcast(types.ServerMessage{Type: types.MsgMinigameUpdate, Update: payload})
}

func (l *Lobby) endChallenge() {
	outcome := l.rounds.Finish()
	events, newState := engine.ApplyOutcome(l.state, outcome.PlayersLostLife)

	eliminated := []string{}
	for _, ev := range events {
		if ev.Type == engine.EvtPlayerEliminated {
			eliminated = append(eliminated, ev.PlayerID)
		}
	}
	outcome.PlayersEliminated = eliminated

	l.current = nil
	l.commit(newState)
	l.log.Debug("challenge ended",
		zap.String("kind", string(outcome.MinigameID)),
		zap.Strings("lostLife", outcome.PlayersLostLife),
		zap.Strings("eliminated", eliminated))

	l.broadcast(types.ServerMessage{Type: types.MsgMinigameEnd, Outcome: &outcome})
	l.broadcastState()
	l.nextRound()
}

func (l *Lobby) endGame() {
	winner, _ := engine.Winner(l.state)
	l.broadcast(types.ServerMessage{
		Type:           types.MsgGameOver,
		WinnerID:       winner.ID,
		WinnerUsername: winner.Name,
	})
	l.log.Info("game over", zap.String("winner", winner.ID), zap.Int("rounds", l.state.Round))

	l.persistStats(l.state, winner.ID, l.cfg.Now())

	l.phase = PhaseIdle
	l.stopTimers()
	l.commit(engine.Reset(l.state))
	l.persistStatus(engine.StatusWaiting)
	l.broadcastState()
	l.broadcast(types.ServerMessage{Type: types.MsgReturnToLobby})
}

// arm replaces the round timer. A fire from an older generation is ignored.
func (l *Lobby) arm(d time.Duration) {
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timerGen++
	gen := l.timerGen
	l.timer = time.AfterFunc(d, func() {
		select {
		case l.inbox <- timerFired{gen: gen}:
		case <-l.ctx.Done():
		}
	})
}

func (l *Lobby) scheduleResend() {
	if len(l.resends) == 0 {
		l.resendTimer = nil
		return
	}
	at := l.resends[0]
	l.resends = l.resends[1:]
	wait := max(at-l.resendAt, 0)
	l.resendAt = at

	l.resendGen++
	gen := l.resendGen
	l.resendTimer = time.AfterFunc(wait, func() {
		select {
		case l.inbox <- resendFired{gen: gen}:
		case <-l.ctx.Done():
		}
	})
}

func (l *Lobby) stopTimers() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.timerGen++
	if l.resendTimer != nil {
		l.resendTimer.Stop()
		l.resendTimer = nil
	}
	l.resendGen++
	l.resends = nil
}

// Package orchestrator picks each round's challenge and owns the active instance
// while the round runs. It is not safe for concurrent use; the owning lobby
// goroutine serializes every call.
package orchestrator

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/last-life-backend/internal/engine"
	"github.com/DoyleJ11/last-life-backend/internal/minigame"
)

// RecentWindow is how many past selections are kept out of the candidate pool.
const RecentWindow = 3

type Orchestrator struct {
	catalog []minigame.Entry
	rng     *rand.Rand
	log     *zap.Logger

	recent []minigame.Kind
	active minigame.Challenge
}

func New(rng *rand.Rand, log *zap.Logger) *Orchestrator {
	return NewWithCatalog(minigame.Catalog(), rng, log)
}

func NewWithCatalog(catalog []minigame.Entry, rng *rand.Rand, log *zap.Logger) *Orchestrator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{catalog: catalog, rng: rng, log: log}
}

// SelectNext chooses and starts the next challenge for the living roster.
// A previously active challenge is discarded.
func (o *Orchestrator) SelectNext(settings engine.Settings, living []minigame.Participant, emit minigame.Emitter) minigame.Descriptor {
	entry := o.pick(len(living))

	o.recent = append(o.recent, entry.Kind)
	if len(o.recent) > RecentWindow {
		o.recent = o.recent[len(o.recent)-RecentWindow:]
	}

	lo, hi := settings.Duration.Range()
	duration := lo + o.rng.IntN(hi-lo+1)

	o.active = entry.New(minigame.Params{
		DurationSeconds: duration,
		Players:         slices.Clone(living),
		Rand:            o.rng,
		Emit:            emit,
	})
	o.log.Debug("challenge selected",
		zap.String("kind", string(entry.Kind)),
		zap.Int("duration", duration),
		zap.Int("players", len(living)),
		zap.Any("recent", o.Recent()))

	return minigame.Describe(entry, duration, o.active)
}

func (o *Orchestrator) pick(livingCount int) minigame.Entry {
	candidates := make([]minigame.Entry, 0, len(o.catalog))
	for _, e := range o.catalog {
		if e.TeamBased && livingCount%2 != 0 {
			continue
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		candidates = o.catalog
	}

	fresh := make([]minigame.Entry, 0, len(candidates))
	for _, e := range candidates {
		if !slices.Contains(o.recent, e.Kind) {
			fresh = append(fresh, e)
		}
	}
	if len(fresh) == 0 {
		fresh = candidates
	}
	return fresh[o.rng.IntN(len(fresh))]
}

// Input forwards one player's payload to the active challenge. A panicking
// handler is logged and otherwise ignored.
func (o *Orchestrator) Input(playerID string, payload json.RawMessage) {
	if o.active == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.log.Warn("challenge input handler panicked",
				zap.String("kind", string(o.active.Kind())),
				zap.String("player", playerID),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	o.active.HandleInput(playerID, payload)
}

// Finish returns the active challenge's outcome and clears it. With no active
// challenge it returns an empty outcome.
func (o *Orchestrator) Finish() (out minigame.Outcome) {
	c := o.active
	o.active = nil
	if c == nil {
		return minigame.EmptyOutcome()
	}
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("challenge outcome panicked",
				zap.String("kind", string(c.Kind())),
				zap.String("panic", fmt.Sprint(r)))
			out = minigame.EmptyOutcome()
			out.MinigameID = c.Kind()
		}
	}()
	return c.Outcome()
}

func (o *Orchestrator) Active() bool { return o.active != nil }

// Recent returns the rolling window of selected kinds, oldest first.
func (o *Orchestrator) Recent() []minigame.Kind {
	return slices.Clone(o.recent)
}

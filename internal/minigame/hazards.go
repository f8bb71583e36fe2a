package minigame

import (
	"encoding/json"
	"fmt"
)

// hazard is shared by the dodge kinds. Any well-formed action counts as
// taking part; a "hit" fails the player for the rest of the round.
type hazard struct {
	round
	actions map[string]bool
}

func newHazard(kind Kind, p Params, actions ...string) hazard {
	h := hazard{round: newRound(kind, p), actions: map[string]bool{"hit": true, "alive": true}}
	for _, a := range actions {
		h.actions[a] = true
	}
	return h
}

func (h *hazard) HandleInput(playerID string, payload json.RawMessage) {
	if _, ok := h.result(playerID); !ok {
		return
	}
	in, ok := decode[struct {
		Action string `json:"action"`
	}](payload)
	if !ok || !h.actions[in.Action] {
		return
	}
	h.submitted[playerID] = true
	if in.Action == "hit" {
		h.hit(playerID)
	}
}

func (h *hazard) hit(playerID string) {
	if h.submitted[playerID] {
		h.results[playerID].Metric = ptr(1)
	}
}

func (h *hazard) Outcome() Outcome {
	for _, pl := range h.players {
		res := h.results[pl.ID]
		res.Passed = h.submitted[pl.ID] && res.Metric == nil
	}
	return h.outcome(Failed(h.ordered()), nil)
}

type fallingObject struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Speed float64 `json:"speed"`
}

type stickmanDodgefall struct {
	hazard
	objects []fallingObject
}

func newStickmanDodgefall(p Params) Challenge {
	g := &stickmanDodgefall{hazard: newHazard(KindStickmanDodgefall, p, "move")}
	for i := range 20 {
		g.objects = append(g.objects, fallingObject{
			ID:    fmt.Sprintf("obj-%d", i),
			X:     p.Rand.Float64() * 100,
			Y:     p.Rand.Float64() * -200,
			Speed: 2 + p.Rand.Float64()*3,
		})
	}
	return g
}

func (g *stickmanDodgefall) Config() any {
	starts := make(map[string]float64, len(g.players))
	for _, pl := range g.players {
		starts[pl.ID] = 50
	}
	return map[string]any{
		"fallingObjects":       g.objects,
		"playerStartPositions": starts,
	}
}

type bullet struct {
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	VX   float64 `json:"vx"`
	VY   float64 `json:"vy"`
	Type string  `json:"type"`
}

type bulletHell struct {
	hazard
	bullets []bullet
}

func newBulletHell(p Params) Challenge {
	g := &bulletHell{hazard: newHazard(KindBulletHell, p, "move")}
	edge := func() float64 {
		if p.Rand.IntN(2) == 0 {
			return -10
		}
		return 110
	}
	toward := func(from, speed float64) float64 {
		if from < 50 {
			return speed
		}
		return -speed
	}
	for i := range 30 {
		b := bullet{ID: fmt.Sprintf("bullet-%d", i)}
		switch p.Rand.IntN(3) {
		case 0:
			b.Type = "horizontal"
			b.X, b.Y = edge(), p.Rand.Float64()*100
			b.VX = toward(b.X, 3)
		case 1:
			b.Type = "vertical"
			b.X, b.Y = p.Rand.Float64()*100, edge()
			b.VY = toward(b.Y, 3)
		default:
			b.Type = "diagonal"
			b.X, b.Y = edge(), edge()
			b.VX, b.VY = toward(b.X, 2), toward(b.Y, 2)
		}
		g.bullets = append(g.bullets, b)
	}
	return g
}

func (g *bulletHell) Config() any {
	return map[string]any{"bullets": g.bullets}
}

type ball struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Radius float64 `json:"radius"`
}

type cursorChainReaction struct {
	hazard
	initial ball
}

func newCursorChainReaction(p Params) Challenge {
	return &cursorChainReaction{
		hazard: newHazard(KindCursorChainReaction, p, "move"),
		initial: ball{
			ID:     "ball-0",
			X:      50,
			Y:      50,
			VX:     2 + p.Rand.Float64()*2,
			VY:     2 + p.Rand.Float64()*2,
			Radius: 30,
		},
	}
}

func (g *cursorChainReaction) Config() any {
	return map[string]any{
		"initialBall":   g.initial,
		"explosionTime": 3000,
	}
}

type cannonball struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Speed float64 `json:"speed"`
}

type stickmanCannonJump struct {
	hazard
	shots []cannonball
}

func newStickmanCannonJump(p Params) Challenge {
	g := &stickmanCannonJump{hazard: newHazard(KindStickmanCannonJump, p, "jump")}
	// One shot every two seconds, each faster than the last.
	for i := range p.DurationSeconds / 2 {
		g.shots = append(g.shots, cannonball{
			ID:    fmt.Sprintf("cannon-%d", i),
			Y:     80,
			Speed: 3 + float64(i)*0.5,
		})
	}
	return g
}

func (g *stickmanCannonJump) Config() any {
	return map[string]any{
		"cannonballs":  g.shots,
		"fireInterval": 2000,
	}
}

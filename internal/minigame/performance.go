package minigame

import (
	"encoding/json"
	"math"
	"slices"
	"strings"
)

type perfectStopwatch struct {
	round
	targetSeconds int
}

func newPerfectStopwatch(p Params) Challenge {
	return &perfectStopwatch{
		round:         newRound(KindPerfectStopwatch, p),
		targetSeconds: between(p.Rand, 5, 10),
	}
}

func (g *perfectStopwatch) Config() any {
	return map[string]any{"targetSeconds": g.targetSeconds}
}

func (g *perfectStopwatch) HandleInput(playerID string, payload json.RawMessage) {
	res, ok := g.result(playerID)
	if !ok || res.CompletionTime != nil {
		return
	}
	in, ok := decode[struct {
		ClickTime *float64 `json:"clickTime"`
	}](payload)
	if !ok || in.ClickTime == nil || !finite(*in.ClickTime) || *in.ClickTime < 0 {
		return
	}

	accuracy := math.Abs(*in.ClickTime-float64(g.targetSeconds*1000)) / 1000
	res.Metric = ptr(accuracy)
	res.CompletionTime = ptr(*in.ClickTime)
	res.Passed = true
}

func (g *perfectStopwatch) Outcome() Outcome {
	results := g.ordered()
	return g.outcome(WorstPerformers(results, true), map[string]any{"targetSeconds": g.targetSeconds})
}

var mashKeys = []string{"A", "S", "D", "F", "J", "K", "L", "Q", "W", "E", "R", "T", "Y", "U", "I", "O", "P"}

const (
	mashSegmentMs     = 2000
	mashMaxPerSegment = 40
)

type adaptiveMash struct {
	round
	keySequence []string
	presses     map[string][]int
}

func newAdaptiveMash(p Params) Challenge {
	g := &adaptiveMash{
		round:   newRound(KindAdaptiveMash, p),
		presses: make(map[string][]int, len(p.Players)),
	}
	segments := max(p.DurationSeconds/2, 1)
	for range segments {
		g.keySequence = append(g.keySequence, mashKeys[p.Rand.IntN(len(mashKeys))])
	}
	for _, pl := range p.Players {
		g.results[pl.ID].Metric = ptr(0)
		g.presses[pl.ID] = make([]int, segments)
	}
	return g
}

func (g *adaptiveMash) Config() any {
	return map[string]any{
		"keySequence":     g.keySequence,
		"segmentDuration": mashSegmentMs,
	}
}

func (g *adaptiveMash) HandleInput(playerID string, payload json.RawMessage) {
	res, ok := g.result(playerID)
	if !ok {
		return
	}
	in, ok := decode[struct {
		Key          string `json:"key"`
		SegmentIndex int    `json:"segmentIndex"`
	}](payload)
	if !ok || in.SegmentIndex < 0 || in.SegmentIndex >= len(g.keySequence) {
		return
	}

	res.Passed = true
	if !strings.EqualFold(in.Key, g.keySequence[in.SegmentIndex]) {
		return
	}
	// A flood of repeated events cannot pump one segment past a human rate.
	if g.presses[playerID][in.SegmentIndex] >= mashMaxPerSegment {
		return
	}
	g.presses[playerID][in.SegmentIndex]++
	*res.Metric++
}

func (g *adaptiveMash) Outcome() Outcome {
	return g.outcome(WorstPerformers(g.ordered(), false), nil)
}

type circlePoint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp int     `json:"timestamp"`
}

type stayInCircle struct {
	round
	path []circlePoint
}

func newStayInCircle(p Params) Challenge {
	g := &stayInCircle{round: newRound(KindStayInCircle, p)}
	for i := range p.DurationSeconds * 2 {
		g.path = append(g.path, circlePoint{
			X:         30 + p.Rand.Float64()*40,
			Y:         30 + p.Rand.Float64()*40,
			Timestamp: i * 500,
		})
	}
	for _, pl := range p.Players {
		g.results[pl.ID].Metric = ptr(0)
	}
	return g
}

func (g *stayInCircle) Config() any {
	return map[string]any{
		"circlePositions": g.path,
		"circleRadius":    50,
	}
}

func (g *stayInCircle) HandleInput(playerID string, payload json.RawMessage) {
	res, ok := g.result(playerID)
	if !ok {
		return
	}
	in, ok := decode[struct {
		TimeInside *float64 `json:"timeInside"`
	}](payload)
	if !ok || in.TimeInside == nil || !finite(*in.TimeInside) {
		return
	}
	// Latest report wins; the client sends a running total.
	v := min(max(*in.TimeInside, 0), float64(g.duration*1000))
	res.Metric = ptr(v)
	res.Passed = true
}

func (g *stayInCircle) Outcome() Outcome {
	return g.outcome(WorstPerformers(g.ordered(), false), nil)
}

const memoryGridSize = 5

type memoryGrid struct {
	round
	litTiles []int
}

func newMemoryGrid(p Params) Challenge {
	g := &memoryGrid{round: newRound(KindMemoryGrid, p)}
	numLit := between(p.Rand, 8, 12)
	g.litTiles = slices.Clone(p.Rand.Perm(memoryGridSize * memoryGridSize)[:numLit])
	return g
}

func (g *memoryGrid) Config() any {
	return map[string]any{
		"gridSize":      memoryGridSize,
		"litTiles":      g.litTiles,
		"flashDuration": 1000,
	}
}

func (g *memoryGrid) HandleInput(playerID string, payload json.RawMessage) {
	res, ok := g.result(playerID)
	if !ok || g.submitted[playerID] {
		return
	}
	in, ok := decode[struct {
		ClickedTiles []int `json:"clickedTiles"`
	}](payload)
	if !ok {
		return
	}

	seen := make(map[int]bool, len(in.ClickedTiles))
	score := 0
	for _, tile := range in.ClickedTiles {
		if tile < 0 || tile >= memoryGridSize*memoryGridSize || seen[tile] {
			continue
		}
		seen[tile] = true
		if slices.Contains(g.litTiles, tile) {
			score++
		} else {
			score--
		}
	}
	g.submitted[playerID] = true
	res.Metric = ptr(float64(score))
	res.Passed = true
}

func (g *memoryGrid) Outcome() Outcome {
	return g.outcome(WorstPerformers(g.ordered(), false), map[string]any{"litTiles": g.litTiles})
}

const territoryGridSize = 10

var territoryColors = []string{"#ef4444", "#3b82f6", "#10b981", "#f59e0b", "#8b5cf6", "#ec4899", "#14b8a6", "#f97316"}

type territoryGrab struct {
	round
	claims map[int]string
	emit   Emitter
}

func newTerritoryGrab(p Params) Challenge {
	g := &territoryGrab{
		round:  newRound(KindTerritoryGrab, p),
		claims: make(map[int]string),
		emit:   p.Emit,
	}
	for _, pl := range p.Players {
		g.results[pl.ID].Metric = ptr(0)
	}
	return g
}

func (g *territoryGrab) Config() any {
	colors := make(map[string]string, len(g.players))
	for i, pl := range g.players {
		colors[pl.ID] = territoryColors[i%len(territoryColors)]
	}
	return map[string]any{
		"gridSize":     territoryGridSize,
		"playerColors": colors,
	}
}

func (g *territoryGrab) HandleInput(playerID string, payload json.RawMessage) {
	res, ok := g.result(playerID)
	if !ok {
		return
	}
	in, ok := decode[struct {
		TileIndex *int `json:"tileIndex"`
	}](payload)
	if !ok || in.TileIndex == nil || *in.TileIndex < 0 || *in.TileIndex >= territoryGridSize*territoryGridSize {
		return
	}

	tile := *in.TileIndex
	if prev, taken := g.claims[tile]; taken {
		if prev == playerID {
			return
		}
		*g.results[prev].Metric--
	}
	// Last click wins the tile.
	g.claims[tile] = playerID
	*res.Metric++
	res.Passed = true

	if g.emit != nil {
		g.emit(map[string]any{"tileIndex": tile, "playerId": playerID})
	}
}

func (g *territoryGrab) Outcome() Outcome {
	return g.outcome(WorstPerformers(g.ordered(), false), nil)
}

type averageBait struct {
	round
	choices map[string]int
}

func newAverageBait(p Params) Challenge {
	return &averageBait{
		round:   newRound(KindAverageBait, p),
		choices: make(map[string]int, len(p.Players)),
	}
}

func (g *averageBait) Config() any {
	return map[string]any{"minNumber": 1, "maxNumber": 100}
}

func (g *averageBait) HandleInput(playerID string, payload json.RawMessage) {
	if _, ok := g.result(playerID); !ok {
		return
	}
	in, ok := decode[struct {
		Number *int `json:"number"`
	}](payload)
	if !ok || in.Number == nil || *in.Number < 1 || *in.Number > 100 {
		return
	}
	g.choices[playerID] = *in.Number
}

func (g *averageBait) Outcome() Outcome {
	sum := 0
	for _, c := range g.choices {
		sum += c
	}
	average := 50.0
	if len(g.choices) > 0 {
		average = float64(sum) / float64(len(g.choices))
	}

	for _, pl := range g.players {
		choice, ok := g.choices[pl.ID]
		if !ok {
			continue
		}
		res := g.results[pl.ID]
		res.Metric = ptr(math.Abs(float64(choice) - average))
		res.Passed = true
	}
	return g.outcome(WorstPerformers(g.ordered(), true), map[string]any{"average": average})
}

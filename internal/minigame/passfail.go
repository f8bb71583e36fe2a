package minigame

import (
	"encoding/json"
	"slices"
)

type Team string

const (
	TeamLeft  Team = "left"
	TeamRight Team = "right"
)

type teamTugOfWar struct {
	round
	teams   map[string]Team
	scores  map[Team]int
	pressed map[string]bool
	emit    Emitter
}

func newTeamTugOfWar(p Params) Challenge {
	g := &teamTugOfWar{
		round:   newRound(KindTeamTugOfWar, p),
		teams:   make(map[string]Team, len(p.Players)),
		scores:  map[Team]int{TeamLeft: 0, TeamRight: 0},
		pressed: make(map[string]bool, len(p.Players)),
		emit:    p.Emit,
	}
	order := shuffled(p.Rand, p.Players)
	mid := len(order) / 2
	for i, pl := range order {
		if i < mid {
			g.teams[pl.ID] = TeamLeft
		} else {
			g.teams[pl.ID] = TeamRight
		}
	}
	return g
}

func (g *teamTugOfWar) Config() any {
	return map[string]any{"teams": g.teams}
}

func (g *teamTugOfWar) HandleInput(playerID string, payload json.RawMessage) {
	team, ok := g.teams[playerID]
	if !ok {
		return
	}
	in, ok := decode[struct {
		Action string `json:"action"`
	}](payload)
	if !ok || in.Action != "press" {
		return
	}

	g.pressed[playerID] = true
	g.scores[team]++
	if g.emit != nil {
		g.emit(map[string]any{
			"leftScore":    g.scores[TeamLeft],
			"rightScore":   g.scores[TeamRight],
			"ropePosition": g.scores[TeamRight] - g.scores[TeamLeft],
		})
	}
}

func (g *teamTugOfWar) losingTeam() Team {
	if g.scores[TeamLeft] > g.scores[TeamRight] {
		return TeamRight
	}
	return TeamLeft
}

func (g *teamTugOfWar) Outcome() Outcome {
	losing := g.losingTeam()
	for _, pl := range g.players {
		g.results[pl.ID].Passed = g.teams[pl.ID] != losing && g.pressed[pl.ID]
		g.results[pl.ID].Metric = ptr(float64(g.scores[g.teams[pl.ID]]))
	}
	return g.outcome(Failed(g.ordered()), map[string]any{
		"leftScore":  g.scores[TeamLeft],
		"rightScore": g.scores[TeamRight],
		"losingTeam": losing,
	})
}

var cornerNames = []string{"A", "B", "C", "D"}

type deadlyCorners struct {
	round
	chosen map[string]string
	lethal string
}

func newDeadlyCorners(p Params) Challenge {
	return &deadlyCorners{
		round:  newRound(KindDeadlyCorners, p),
		chosen: make(map[string]string, len(p.Players)),
		lethal: cornerNames[p.Rand.IntN(len(cornerNames))],
	}
}

func (g *deadlyCorners) Config() any {
	return map[string]any{"corners": cornerNames}
}

func (g *deadlyCorners) HandleInput(playerID string, payload json.RawMessage) {
	if _, ok := g.result(playerID); !ok {
		return
	}
	in, ok := decode[struct {
		Corner string `json:"corner"`
	}](payload)
	if !ok || !slices.Contains(cornerNames, in.Corner) {
		return
	}
	g.chosen[playerID] = in.Corner
}

func (g *deadlyCorners) Outcome() Outcome {
	for _, pl := range g.players {
		corner, ok := g.chosen[pl.ID]
		g.results[pl.ID].Passed = ok && corner != g.lethal
	}
	return g.outcome(Failed(g.ordered()), map[string]any{"lethalCorner": g.lethal})
}

type groupCoinflip struct {
	round
	choices map[string]string
	side    string
}

func newGroupCoinflip(p Params) Challenge {
	side := "heads"
	if p.Rand.IntN(2) == 1 {
		side = "tails"
	}
	return &groupCoinflip{
		round:   newRound(KindGroupCoinflip, p),
		choices: make(map[string]string, len(p.Players)),
		side:    side,
	}
}

func (g *groupCoinflip) Config() any {
	return map[string]any{}
}

func (g *groupCoinflip) HandleInput(playerID string, payload json.RawMessage) {
	if _, ok := g.result(playerID); !ok {
		return
	}
	in, ok := decode[struct {
		Choice string `json:"choice"`
	}](payload)
	if !ok || (in.Choice != "heads" && in.Choice != "tails") {
		return
	}
	g.choices[playerID] = in.Choice
}

func (g *groupCoinflip) Outcome() Outcome {
	for _, pl := range g.players {
		g.results[pl.ID].Passed = g.choices[pl.ID] == g.side
	}
	return g.outcome(Failed(g.ordered()), map[string]any{"result": g.side})
}

type voteToKill struct {
	round
	votes map[string]string
}

func newVoteToKill(p Params) Challenge {
	return &voteToKill{
		round: newRound(KindVoteToKill, p),
		votes: make(map[string]string, len(p.Players)),
	}
}

func (g *voteToKill) Config() any {
	return map[string]any{"players": g.players}
}

func (g *voteToKill) HandleInput(playerID string, payload json.RawMessage) {
	if _, ok := g.result(playerID); !ok {
		return
	}
	in, ok := decode[struct {
		TargetPlayerID string `json:"targetPlayerId"`
	}](payload)
	if !ok || in.TargetPlayerID == playerID {
		return
	}
	if _, ok := g.result(in.TargetPlayerID); !ok {
		return
	}
	g.votes[playerID] = in.TargetPlayerID
}

// mostVoted returns the players with the highest vote count; nobody when no
// votes were cast.
func (g *voteToKill) mostVoted() ([]string, map[string]int) {
	counts := make(map[string]int, len(g.players))
	for _, target := range g.votes {
		counts[target]++
	}
	top := 0
	var most []string
	for _, pl := range g.players {
		n := counts[pl.ID]
		switch {
		case n == 0:
		case n > top:
			top = n
			most = append(most[:0], pl.ID)
		case n == top:
			most = append(most, pl.ID)
		}
	}
	return most, counts
}

func (g *voteToKill) Outcome() Outcome {
	most, counts := g.mostVoted()
	for _, pl := range g.players {
		_, voted := g.votes[pl.ID]
		g.results[pl.ID].Passed = voted && !slices.Contains(most, pl.ID)
		g.results[pl.ID].Metric = ptr(float64(counts[pl.ID]))
	}
	return g.outcome(Failed(g.ordered()), map[string]any{"voteCounts": counts})
}

// Package minigame holds the closed set of challenge kinds played each round.
//
// Every kind is generated once from Params at round start, accepts player input
// while the round runs and computes an Outcome when the round ends. Input
// handlers ignore anything they cannot decode; they never fail the round.
package minigame

import (
	"encoding/json"
	"math/rand/v2"
)

type Kind string

const (
	KindPerfectStopwatch    Kind = "perfect-stopwatch"
	KindAdaptiveMash        Kind = "adaptive-mash"
	KindSpeedTypist         Kind = "speed-typist"
	KindTeamTugOfWar        Kind = "team-tug-of-war"
	KindPrecisionMaze       Kind = "precision-maze"
	KindStickmanDodgefall   Kind = "stickman-dodgefall"
	KindStickmanParkour     Kind = "stickman-parkour"
	KindStayInCircle        Kind = "stay-in-circle"
	KindMemoryGrid          Kind = "memory-grid"
	KindTerritoryGrab       Kind = "territory-grab"
	KindAverageBait         Kind = "average-bait"
	KindVoteToKill          Kind = "vote-to-kill"
	KindBulletHell          Kind = "bullet-hell"
	KindReverseAPM          Kind = "reverse-apm"
	KindDeadlyCorners       Kind = "deadly-corners"
	KindGroupCoinflip       Kind = "group-coinflip"
	KindCursorChainReaction Kind = "cursor-chain-reaction"
	KindStickmanCannonJump  Kind = "stickman-cannon-jump"
	KindMathFlashRush       Kind = "math-flash-rush"
)

// ScoringModel decides how the loss list is derived from the results.
type ScoringModel string

const (
	ModelPerformance ScoringModel = "performance"
	ModelPassFail    ScoringModel = "passFail"
	ModelHybrid      ScoringModel = "hybrid"
)

type Participant struct {
	ID   string `json:"playerId"`
	Name string `json:"username"`
}

// Emitter pushes interim state to the session while a round is running.
type Emitter func(payload any)

type Params struct {
	DurationSeconds int
	Players         []Participant
	Rand            *rand.Rand
	Emit            Emitter
}

type Challenge interface {
	Kind() Kind
	Config() any
	HandleInput(playerID string, payload json.RawMessage)
	Outcome() Outcome
}

type Constructor func(p Params) Challenge

// Entry describes one kind in the catalog.
type Entry struct {
	Kind        Kind
	Name        string
	Description string
	Model       ScoringModel
	TeamBased   bool
	New         Constructor
}

// Descriptor is the public, immutable view of one round's challenge.
type Descriptor struct {
	ID              Kind         `json:"id"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	DurationSeconds int          `json:"durationSeconds"`
	Type            ScoringModel `json:"type"`
	Config          any          `json:"config,omitempty"`
}

type Result struct {
	PlayerID       string   `json:"playerId"`
	Passed         bool     `json:"passed"`
	Metric         *float64 `json:"performanceMetric,omitempty"`
	CompletionTime *float64 `json:"completionTime,omitempty"`
}

type Outcome struct {
	MinigameID        Kind     `json:"minigameId"`
	Results           []Result `json:"results"`
	PlayersLostLife   []string `json:"playersLostLife"`
	PlayersEliminated []string `json:"playersEliminated"`
	Details           any      `json:"details,omitempty"`
}

// Catalog lists every kind in selection order.
func Catalog() []Entry {
	return []Entry{
		{KindPerfectStopwatch, "Perfect Stopwatch", "Click at exactly the target time", ModelPerformance, false, newPerfectStopwatch},
		{KindAdaptiveMash, "Adaptive Mash Challenge", "Press the changing keys as fast as you can", ModelPerformance, false, newAdaptiveMash},
		{KindSpeedTypist, "Speed Typist", "Type the sentence as fast as you can", ModelHybrid, false, newSpeedTypist},
		{KindTeamTugOfWar, "Team Tug-of-War", "Spam spacebar to pull the rope to your side", ModelPassFail, true, newTeamTugOfWar},
		{KindPrecisionMaze, "Precision Maze", "Navigate through the maze without touching walls", ModelHybrid, false, newPrecisionMaze},
		{KindStickmanDodgefall, "Stickman Dodgefall", "Dodge falling objects", ModelPassFail, false, newStickmanDodgefall},
		{KindStickmanParkour, "Stickman Parkour", "Complete the obstacle course", ModelHybrid, false, newStickmanParkour},
		{KindStayInCircle, "Stay in the Circle", "Keep your cursor inside the moving circle", ModelPerformance, false, newStayInCircle},
		{KindMemoryGrid, "One-Second Memory Grid", "Remember and click the lit tiles", ModelPerformance, false, newMemoryGrid},
		{KindTerritoryGrab, "Territory Grab", "Claim the most tiles by clicking them", ModelPerformance, false, newTerritoryGrab},
		{KindAverageBait, "Average Bait", "Choose a number - furthest from average loses", ModelPerformance, false, newAverageBait},
		{KindVoteToKill, "Vote to Kill", "Vote for someone to lose a life", ModelPassFail, false, newVoteToKill},
		{KindBulletHell, "Bullet Hell Cursor Fight", "Dodge bullets with your cursor", ModelPassFail, false, newBulletHell},
		{KindReverseAPM, "Reverse APM Test", "Click buttons in descending order: 20 to 0", ModelHybrid, false, newReverseAPM},
		{KindDeadlyCorners, "Deadly Corners", "Move to a safe corner", ModelPassFail, false, newDeadlyCorners},
		{KindGroupCoinflip, "Group Coinflip", "Guess heads or tails", ModelPassFail, false, newGroupCoinflip},
		{KindCursorChainReaction, "Cursor Chain Reaction", "Avoid the bouncing balls that multiply", ModelPassFail, false, newCursorChainReaction},
		{KindStickmanCannonJump, "Stickman Cannon Jump", "Jump over the cannonballs", ModelPassFail, false, newStickmanCannonJump},
		{KindMathFlashRush, "Math Flash Rush", "Solve math equations quickly", ModelHybrid, false, newMathFlashRush},
	}
}

// Describe builds the public descriptor for a freshly generated challenge.
func Describe(e Entry, durationSeconds int, c Challenge) Descriptor {
	return Descriptor{
		ID:              e.Kind,
		Name:            e.Name,
		Description:     e.Description,
		DurationSeconds: durationSeconds,
		Type:            e.Model,
		Config:          c.Config(),
	}
}

// EmptyOutcome is returned when a round is finished without an active challenge.
func EmptyOutcome() Outcome {
	return Outcome{
		MinigameID:        "unknown",
		Results:           []Result{},
		PlayersLostLife:   []string{},
		PlayersEliminated: []string{},
	}
}

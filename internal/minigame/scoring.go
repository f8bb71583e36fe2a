package minigame

import (
	"encoding/json"
	"math"
	"math/rand/v2"
)

// round holds the per-player bookkeeping every kind shares. Results are kept
// in roster order so outcomes are deterministic.
type round struct {
	kind      Kind
	duration  int
	players   []Participant
	results   map[string]*Result
	submitted map[string]bool
}

func newRound(kind Kind, p Params) round {
	r := round{
		kind:      kind,
		duration:  p.DurationSeconds,
		players:   p.Players,
		results:   make(map[string]*Result, len(p.Players)),
		submitted: make(map[string]bool, len(p.Players)),
	}
	for _, pl := range p.Players {
		r.results[pl.ID] = &Result{PlayerID: pl.ID}
	}
	return r
}

func (r *round) Kind() Kind { return r.kind }

func (r *round) result(playerID string) (*Result, bool) {
	res, ok := r.results[playerID]
	return res, ok
}

func (r *round) ordered() []Result {
	out := make([]Result, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *r.results[p.ID])
	}
	return out
}

func (r *round) outcome(lost []string, details any) Outcome {
	if lost == nil {
		lost = []string{}
	}
	return Outcome{
		MinigameID:        r.kind,
		Results:           r.ordered(),
		PlayersLostLife:   lost,
		PlayersEliminated: []string{},
		Details:           details,
	}
}

// decode unmarshals an input payload; ok is false for anything malformed.
func decode[T any](payload json.RawMessage) (T, bool) {
	var out T
	if len(payload) == 0 {
		return out, false
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, false
	}
	return out, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func ptr(v float64) *float64 { return &v }

// WorstPerformers returns every player sharing the single worst metric. A nil
// metric means the player never submitted and always ranks worst.
func WorstPerformers(results []Result, higherIsWorse bool) []string {
	var worst []string
	var worstVal float64
	haveNil := false

	for _, r := range results {
		if r.Metric == nil {
			if !haveNil {
				haveNil = true
				worst = worst[:0]
			}
			worst = append(worst, r.PlayerID)
			continue
		}
		if haveNil {
			continue
		}
		v := *r.Metric
		switch {
		case len(worst) == 0:
			worstVal = v
			worst = append(worst, r.PlayerID)
		case v == worstVal:
			worst = append(worst, r.PlayerID)
		case (higherIsWorse && v > worstVal) || (!higherIsWorse && v < worstVal):
			worstVal = v
			worst = append(worst[:0], r.PlayerID)
		}
	}
	if worst == nil {
		return []string{}
	}
	return worst
}

// Failed returns every player whose result did not pass.
func Failed(results []Result) []string {
	out := []string{}
	for _, r := range results {
		if !r.Passed {
			out = append(out, r.PlayerID)
		}
	}
	return out
}

// SlowestFinishers applies the hybrid rule: failures lose first; when nobody
// failed the latest completion time (ties included) loses instead.
func SlowestFinishers(results []Result) []string {
	if failed := Failed(results); len(failed) > 0 {
		return failed
	}

	var slowest []string
	var slowestTime float64
	for _, r := range results {
		if r.CompletionTime == nil {
			continue
		}
		t := *r.CompletionTime
		switch {
		case len(slowest) == 0 || t > slowestTime:
			slowestTime = t
			slowest = append(slowest[:0], r.PlayerID)
		case t == slowestTime:
			slowest = append(slowest, r.PlayerID)
		}
	}
	if slowest == nil {
		return []string{}
	}
	return slowest
}

func shuffled[T any](rng *rand.Rand, in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// between draws a uniform integer in [lo, hi].
func between(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}

package minigame

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams(ids ...string) Params {
	players := make([]Participant, len(ids))
	for i, id := range ids {
		players[i] = Participant{ID: id, Name: "name-" + id}
	}
	return Params{
		DurationSeconds: 10,
		Players:         players,
		Rand:            rand.New(rand.NewPCG(7, 11)),
	}
}

func input(t *testing.T, c Challenge, playerID string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	c.HandleInput(playerID, b)
}

func metrics(vals ...float64) []Result {
	out := make([]Result, len(vals))
	for i, v := range vals {
		out[i] = Result{PlayerID: string(rune('a' + i)), Metric: ptr(v), Passed: true}
	}
	return out
}

func TestWorstPerformers(t *testing.T) {
	cases := []struct {
		name          string
		results       []Result
		higherIsWorse bool
		want          []string
	}{
		{"single lowest", metrics(3, 5, 5, 1), false, []string{"d"}},
		{"tied highest", metrics(3, 5, 5, 1), true, []string{"b", "c"}},
		{"all tied", metrics(2, 2, 2), false, []string{"a", "b", "c"}},
		{"empty", nil, false, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, WorstPerformers(tc.results, tc.higherIsWorse))
		})
	}
}

func TestWorstPerformersMissingMetricLoses(t *testing.T) {
	results := metrics(0, 9, 4)
	results[1].Metric = nil
	assert.Equal(t, []string{"b"}, WorstPerformers(results, false))
	assert.Equal(t, []string{"b"}, WorstPerformers(results, true))
}

func TestFailedAllPassed(t *testing.T) {
	assert.Empty(t, Failed(metrics(1, 2, 3)))
	assert.NotNil(t, Failed(nil))
}

func TestSlowestFinishers(t *testing.T) {
	results := []Result{
		{PlayerID: "a", Passed: true, CompletionTime: ptr(120)},
		{PlayerID: "b", Passed: true, CompletionTime: ptr(300)},
		{PlayerID: "c", Passed: true, CompletionTime: ptr(300)},
		{PlayerID: "d", Passed: true, CompletionTime: ptr(90)},
	}
	assert.Equal(t, []string{"b", "c"}, SlowestFinishers(results))

	results[3].Passed = false
	assert.Equal(t, []string{"d"}, SlowestFinishers(results))
}

func TestCatalog(t *testing.T) {
	seen := map[Kind]bool{}
	for _, e := range Catalog() {
		require.False(t, seen[e.Kind], "duplicate kind %s", e.Kind)
		seen[e.Kind] = true
		assert.Equal(t, e.Kind == KindTeamTugOfWar, e.TeamBased, e.Kind)
		assert.NotEmpty(t, e.Name, e.Kind)
	}
	assert.Len(t, seen, 19)
}

func TestEveryKindSurvivesGarbageAndScores(t *testing.T) {
	for _, e := range Catalog() {
		t.Run(string(e.Kind), func(t *testing.T) {
			c := e.New(testParams("a", "b", "c"))
			require.Equal(t, e.Kind, c.Kind())

			d := Describe(e, 10, c)
			assert.Equal(t, e.Model, d.Type)
			_, err := json.Marshal(d)
			require.NoError(t, err)

			c.HandleInput("a", json.RawMessage(`not json`))
			c.HandleInput("a", nil)
			c.HandleInput("a", json.RawMessage(`{"action":42,"clickTime":"x"}`))
			c.HandleInput("stranger", json.RawMessage(`{"action":"completed","timestamp":1}`))

			out := c.Outcome()
			assert.Equal(t, e.Kind, out.MinigameID)
			assert.Len(t, out.Results, 3)
			assert.NotNil(t, out.PlayersLostLife)
			assert.Empty(t, out.PlayersEliminated)
			for _, id := range out.PlayersLostLife {
				assert.Contains(t, []string{"a", "b", "c"}, id)
			}
		})
	}
}

func TestPerfectStopwatch(t *testing.T) {
	c := newPerfectStopwatch(testParams("a", "b", "c"))
	target := float64(c.(*perfectStopwatch).targetSeconds * 1000)

	input(t, c, "a", map[string]any{"clickTime": target + 100})
	input(t, c, "a", map[string]any{"clickTime": target})
	input(t, c, "b", map[string]any{"clickTime": target - 900})

	out := c.Outcome()
	assert.InDelta(t, 0.1, *out.Results[0].Metric, 1e-9, "first click counts")
	// c never clicked.
	assert.Equal(t, []string{"c"}, out.PlayersLostLife)
}

func TestAdaptiveMash(t *testing.T) {
	c := newAdaptiveMash(testParams("a", "b"))
	key := c.(*adaptiveMash).keySequence[0]

	for range 50 {
		input(t, c, "a", map[string]any{"key": key, "segmentIndex": 0})
	}
	input(t, c, "b", map[string]any{"key": "?", "segmentIndex": 0})
	input(t, c, "b", map[string]any{"key": key, "segmentIndex": 99})

	out := c.Outcome()
	assert.Equal(t, float64(mashMaxPerSegment), *out.Results[0].Metric)
	assert.Equal(t, []string{"b"}, out.PlayersLostLife)
}

func TestMemoryGrid(t *testing.T) {
	c := newMemoryGrid(testParams("a", "b"))
	lit := c.(*memoryGrid).litTiles

	input(t, c, "a", map[string]any{"clickedTiles": lit})
	input(t, c, "b", map[string]any{"clickedTiles": []int{lit[0], lit[0], -1, 99}})
	input(t, c, "b", map[string]any{"clickedTiles": lit})

	out := c.Outcome()
	assert.Equal(t, float64(len(lit)), *out.Results[0].Metric)
	assert.Equal(t, 1.0, *out.Results[1].Metric, "later submissions are ignored")
	assert.Equal(t, []string{"b"}, out.PlayersLostLife)
}

func TestTerritoryGrabSteal(t *testing.T) {
	p := testParams("a", "b")
	var emitted []any
	p.Emit = func(v any) { emitted = append(emitted, v) }
	c := newTerritoryGrab(p)

	input(t, c, "a", map[string]any{"tileIndex": 1})
	input(t, c, "a", map[string]any{"tileIndex": 2})
	input(t, c, "b", map[string]any{"tileIndex": 2})
	input(t, c, "b", map[string]any{"tileIndex": 2})

	out := c.Outcome()
	assert.Equal(t, 1.0, *out.Results[0].Metric)
	assert.Equal(t, 1.0, *out.Results[1].Metric)
	assert.Equal(t, []string{"a", "b"}, out.PlayersLostLife)
	assert.Len(t, emitted, 3)
}

func TestAverageBait(t *testing.T) {
	c := newAverageBait(testParams("a", "b", "c", "d"))
	input(t, c, "a", map[string]any{"number": 10})
	input(t, c, "b", map[string]any{"number": 20})
	input(t, c, "c", map[string]any{"number": 90})
	input(t, c, "c", map[string]any{"number": 30})
	input(t, c, "d", map[string]any{"number": 500})

	out := c.Outcome()
	assert.Equal(t, 20.0, out.Details.(map[string]any)["average"])
	// d submitted nothing valid.
	assert.Equal(t, []string{"d"}, out.PlayersLostLife)
}

func TestTeamTugOfWar(t *testing.T) {
	p := testParams("a", "b", "c", "d")
	var updates int
	p.Emit = func(any) { updates++ }
	c := newTeamTugOfWar(p)
	g := c.(*teamTugOfWar)

	var left, right []string
	for _, pl := range p.Players {
		if g.teams[pl.ID] == TeamLeft {
			left = append(left, pl.ID)
		} else {
			right = append(right, pl.ID)
		}
	}
	require.Len(t, left, 2)
	require.Len(t, right, 2)

	input(t, c, right[0], map[string]any{"action": "press"})
	input(t, c, right[0], map[string]any{"action": "press"})
	input(t, c, left[0], map[string]any{"action": "press"})
	assert.Equal(t, 3, updates)

	out := c.Outcome()
	assert.ElementsMatch(t, append(left, right[1]), out.PlayersLostLife)
}

func TestTeamTugOfWarTieLeftLoses(t *testing.T) {
	c := newTeamTugOfWar(testParams("a", "b"))
	assert.Equal(t, TeamLeft, c.(*teamTugOfWar).losingTeam())
}

func TestDeadlyCorners(t *testing.T) {
	c := newDeadlyCorners(testParams("a", "b", "c"))
	lethal := c.(*deadlyCorners).lethal
	safe := "A"
	if lethal == safe {
		safe = "B"
	}
	input(t, c, "a", map[string]any{"corner": lethal})
	input(t, c, "b", map[string]any{"corner": safe})
	input(t, c, "c", map[string]any{"corner": "Z"})

	out := c.Outcome()
	assert.Equal(t, []string{"a", "c"}, out.PlayersLostLife)
}

func TestGroupCoinflip(t *testing.T) {
	c := newGroupCoinflip(testParams("a", "b", "c"))
	side := c.(*groupCoinflip).side
	other := "heads"
	if side == other {
		other = "tails"
	}
	input(t, c, "a", map[string]any{"choice": side})
	input(t, c, "b", map[string]any{"choice": other})

	out := c.Outcome()
	assert.Equal(t, []string{"b", "c"}, out.PlayersLostLife)
	assert.Equal(t, side, out.Details.(map[string]any)["result"])
}

func TestVoteToKill(t *testing.T) {
	c := newVoteToKill(testParams("a", "b", "c", "d"))
	input(t, c, "a", map[string]any{"targetPlayerId": "b"})
	input(t, c, "b", map[string]any{"targetPlayerId": "c"})
	input(t, c, "c", map[string]any{"targetPlayerId": "b"})
	input(t, c, "d", map[string]any{"targetPlayerId": "d"})

	out := c.Outcome()
	// b is most voted; d's self vote does not count.
	assert.Equal(t, []string{"b", "d"}, out.PlayersLostLife)
}

func TestVoteToKillNoVotes(t *testing.T) {
	c := newVoteToKill(testParams("a", "b"))
	out := c.Outcome()
	assert.Equal(t, []string{"a", "b"}, out.PlayersLostLife)
}

func TestHazardHitIsFinal(t *testing.T) {
	c := newBulletHell(testParams("a", "b", "c"))
	input(t, c, "a", map[string]any{"action": "alive"})
	input(t, c, "b", map[string]any{"action": "hit"})
	input(t, c, "b", map[string]any{"action": "alive"})
	input(t, c, "c", map[string]any{"action": "dance"})

	out := c.Outcome()
	assert.Equal(t, []string{"b", "c"}, out.PlayersLostLife)
}

func TestCannonJumpShots(t *testing.T) {
	c := newStickmanCannonJump(testParams("a"))
	shots := c.(*stickmanCannonJump).shots
	require.Len(t, shots, 5)
	assert.Equal(t, 5.0, shots[4].Speed)
}

func TestSpeedTypist(t *testing.T) {
	c := newSpeedTypist(testParams("a", "b", "c"))
	sentence := c.(*speedTypist).sentence

	input(t, c, "a", map[string]any{"text": sentence, "timestamp": 4000})
	input(t, c, "a", map[string]any{"text": sentence, "timestamp": 9000})
	input(t, c, "b", map[string]any{"text": sentence, "timestamp": 5000})
	input(t, c, "c", map[string]any{"text": sentence, "timestamp": 2000})

	out := c.Outcome()
	assert.Equal(t, 4000.0, *out.Results[0].CompletionTime)
	assert.Equal(t, []string{"b"}, out.PlayersLostLife)
}

func TestPrecisionMazeWallIsFinal(t *testing.T) {
	c := newPrecisionMaze(testParams("a", "b"))
	maze := c.(*precisionMaze).maze
	assert.Equal(t, 0, maze[0][0])
	assert.Equal(t, 0, maze[mazeSize-1][mazeSize-1])

	input(t, c, "a", map[string]any{"action": "touchedWall"})
	input(t, c, "a", map[string]any{"action": "completed", "timestamp": 100})
	input(t, c, "b", map[string]any{"action": "completed", "timestamp": 8000})

	out := c.Outcome()
	assert.Equal(t, []string{"a"}, out.PlayersLostLife)
}

func TestReverseAPMSlowestLoses(t *testing.T) {
	c := newReverseAPM(testParams("a", "b"))
	input(t, c, "a", map[string]any{"action": "completed", "timestamp": 3000})
	input(t, c, "b", map[string]any{"action": "completed", "timestamp": 6000})
	input(t, c, "b", map[string]any{"action": "completed", "timestamp": 1000})

	out := c.Outcome()
	assert.Equal(t, []string{"b"}, out.PlayersLostLife)
}

func TestMathFlashRush(t *testing.T) {
	c := newMathFlashRush(testParams("a", "b", "c"))
	eqs := c.(*mathFlashRush).equations
	require.GreaterOrEqual(t, len(eqs), 8)
	require.LessOrEqual(t, len(eqs), 10)

	for _, eq := range eqs {
		input(t, c, "a", map[string]any{"questionId": eq.ID, "answer": eq.Answer, "timestamp": 100})
		input(t, c, "b", map[string]any{"questionId": eq.ID, "answer": eq.Answer, "timestamp": 300})
	}
	// c gets the first question wrong; the retry is ignored.
	input(t, c, "c", map[string]any{"questionId": eqs[0].ID, "answer": eqs[0].Answer + 1, "timestamp": 1})
	for _, eq := range eqs {
		input(t, c, "c", map[string]any{"questionId": eq.ID, "answer": eq.Answer, "timestamp": 1})
	}

	out := c.Outcome()
	assert.Equal(t, []string{"c"}, out.PlayersLostLife)
	assert.Equal(t, 100.0, *out.Results[0].Metric)

	cfg, err := json.Marshal(c.Config())
	require.NoError(t, err)
	assert.NotContains(t, string(cfg), "answer")
}

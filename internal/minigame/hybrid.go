package minigame

import (
	"encoding/json"
	"fmt"
)

var typistSentences = []string{
	"The quick brown fox jumps over the lazy dog",
	"Programming is the art of telling another human what one wants the computer to do",
	"A journey of a thousand miles begins with a single step",
	"Time flies like an arrow fruit flies like a banana",
	"To be or not to be that is the question",
	"The early bird catches the worm but the second mouse gets the cheese",
	"All that glitters is not gold and silence is golden",
	"Practice makes perfect but nobody is perfect so why practice",
}

type completion struct {
	Action    string   `json:"action"`
	Text      string   `json:"text"`
	Timestamp *float64 `json:"timestamp"`
}

func (c completion) at() (float64, bool) {
	if c.Timestamp == nil || !finite(*c.Timestamp) || *c.Timestamp < 0 {
		return 0, false
	}
	return *c.Timestamp, true
}

// course is the shared shape of the finish-line kinds: a player passes by
// completing, and a fail action is final.
type course struct {
	round
	failAction string
	failed     map[string]bool
}

func newCourse(kind Kind, p Params, failAction string) course {
	return course{round: newRound(kind, p), failAction: failAction, failed: make(map[string]bool)}
}

func (c *course) HandleInput(playerID string, payload json.RawMessage) {
	res, ok := c.result(playerID)
	if !ok || c.failed[playerID] {
		return
	}
	in, ok := decode[completion](payload)
	if !ok {
		return
	}
	switch {
	case c.failAction != "" && in.Action == c.failAction:
		c.failed[playerID] = true
		res.Passed = false
		res.CompletionTime = nil
	case in.Action == "completed" && !res.Passed:
		ts, ok := in.at()
		if !ok {
			return
		}
		res.Passed = true
		res.CompletionTime = ptr(ts)
	}
}

func (c *course) Outcome() Outcome {
	return c.outcome(SlowestFinishers(c.ordered()), nil)
}

type speedTypist struct {
	round
	sentence string
}

func newSpeedTypist(p Params) Challenge {
	return &speedTypist{
		round:    newRound(KindSpeedTypist, p),
		sentence: typistSentences[p.Rand.IntN(len(typistSentences))],
	}
}

func (g *speedTypist) Config() any {
	return map[string]any{"sentence": g.sentence}
}

func (g *speedTypist) HandleInput(playerID string, payload json.RawMessage) {
	res, ok := g.result(playerID)
	if !ok || res.Passed {
		return
	}
	in, ok := decode[completion](payload)
	if !ok || in.Text != g.sentence {
		return
	}
	ts, ok := in.at()
	if !ok {
		return
	}
	res.Passed = true
	res.CompletionTime = ptr(ts)
}

func (g *speedTypist) Outcome() Outcome {
	return g.outcome(SlowestFinishers(g.ordered()), nil)
}

const mazeSize = 10

type precisionMaze struct {
	course
	maze [][]int
}

func newPrecisionMaze(p Params) Challenge {
	g := &precisionMaze{course: newCourse(KindPrecisionMaze, p, "touchedWall")}
	g.maze = make([][]int, mazeSize)
	for i := range g.maze {
		g.maze[i] = make([]int, mazeSize)
		for j := range g.maze[i] {
			start := i == 0 && j == 0
			end := i == mazeSize-1 && j == mazeSize-1
			if !start && !end && p.Rand.Float64() < 0.25 {
				g.maze[i][j] = 1
			}
		}
	}
	return g
}

func (g *precisionMaze) Config() any {
	return map[string]any{"maze": g.maze}
}

type obstacle struct {
	Type  string `json:"type"`
	X     int    `json:"x"`
	Y     int    `json:"y,omitempty"`
	Width int    `json:"width,omitempty"`
}

var parkourCourse = []obstacle{
	{Type: "gap", X: 200, Width: 100},
	{Type: "platform", X: 350, Y: 150, Width: 100},
	{Type: "gap", X: 500, Width: 120},
	{Type: "spikes", X: 700, Width: 80},
	{Type: "goal", X: 900},
}

type stickmanParkour struct {
	course
}

func newStickmanParkour(p Params) Challenge {
	return &stickmanParkour{course: newCourse(KindStickmanParkour, p, "died")}
}

func (g *stickmanParkour) Config() any {
	return map[string]any{"obstacles": parkourCourse}
}

type reverseAPM struct {
	course
}

func newReverseAPM(p Params) Challenge {
	return &reverseAPM{course: newCourse(KindReverseAPM, p, "")}
}

func (g *reverseAPM) Config() any {
	return map[string]any{"buttonCount": 21}
}

type equation struct {
	ID       int    `json:"id"`
	Equation string `json:"equation"`
	Answer   int    `json:"answer"`
}

type answer struct {
	value int
	at    float64
}

type mathFlashRush struct {
	round
	equations []equation
	answers   map[string]map[int]answer
}

func newMathFlashRush(p Params) Challenge {
	g := &mathFlashRush{
		round:   newRound(KindMathFlashRush, p),
		answers: make(map[string]map[int]answer, len(p.Players)),
	}
	for i := range between(p.Rand, 8, 10) {
		g.equations = append(g.equations, newEquation(p, i))
	}
	for _, pl := range p.Players {
		g.answers[pl.ID] = make(map[int]answer)
	}
	return g
}

func newEquation(p Params, id int) equation {
	switch p.Rand.IntN(3) {
	case 0:
		a, b := between(p.Rand, 1, 50), between(p.Rand, 1, 50)
		return equation{ID: id, Equation: fmt.Sprintf("%d + %d", a, b), Answer: a + b}
	case 1:
		a := between(p.Rand, 20, 69)
		b := between(p.Rand, 1, a-1)
		return equation{ID: id, Equation: fmt.Sprintf("%d - %d", a, b), Answer: a - b}
	default:
		a, b := between(p.Rand, 1, 12), between(p.Rand, 1, 12)
		return equation{ID: id, Equation: fmt.Sprintf("%d × %d", a, b), Answer: a * b}
	}
}

func (g *mathFlashRush) Config() any {
	// Answers are not sent with the public config.
	public := make([]map[string]any, len(g.equations))
	for i, eq := range g.equations {
		public[i] = map[string]any{"id": eq.ID, "equation": eq.Equation}
	}
	return map[string]any{
		"equations":       public,
		"timePerEquation": 700,
	}
}

func (g *mathFlashRush) HandleInput(playerID string, payload json.RawMessage) {
	answers, ok := g.answers[playerID]
	if !ok {
		return
	}
	in, ok := decode[struct {
		QuestionID *int     `json:"questionId"`
		Answer     *int     `json:"answer"`
		Timestamp  *float64 `json:"timestamp"`
	}](payload)
	if !ok || in.QuestionID == nil || in.Answer == nil || in.Timestamp == nil || !finite(*in.Timestamp) {
		return
	}
	if *in.QuestionID < 0 || *in.QuestionID >= len(g.equations) {
		return
	}
	if _, dup := answers[*in.QuestionID]; dup {
		return
	}
	answers[*in.QuestionID] = answer{value: *in.Answer, at: *in.Timestamp}
}

func (g *mathFlashRush) Outcome() Outcome {
	for _, pl := range g.players {
		res := g.results[pl.ID]
		answers := g.answers[pl.ID]
		total := 0.0
		allCorrect := true
		for _, eq := range g.equations {
			a, ok := answers[eq.ID]
			if !ok || a.value != eq.Answer {
				allCorrect = false
				break
			}
			total += a.at
		}
		if !allCorrect {
			continue
		}
		avg := total / float64(len(g.equations))
		res.Passed = true
		res.Metric = ptr(avg)
		res.CompletionTime = ptr(avg)
	}
	return g.outcome(SlowestFinishers(g.ordered()), nil)
}

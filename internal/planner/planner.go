// internal/planner/planner.go
package planner

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim/internal/analyzer"
	"github.com/xkilldash9x/trafficsim/internal/humanoid"
)

const maxFormFields = 3

// Weight is the selection weight of one action type.
type Weight struct {
	Type   ActionType
	Weight float64
}

// HistoryEntry records one decision.
type HistoryEntry struct {
	Type      ActionType       `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Summary   analyzer.Summary `json:"summary"`
}

// Memory is a copy of the planner's learning state.
type Memory struct {
	Successes map[ActionType]int
	Failures  map[ActionType]int
	History   []HistoryEntry
}

type scrollPattern struct {
	weight           float64
	direction        Direction // empty means a coin flip
	minDist, maxDist int
	smooth           bool
	pauseProbability float64
}

var scrollPatterns = []scrollPattern{
	{0.4, Down, 150, 400, true, 0.2},
	{0.3, Down, 400, 800, true, 0.4},
	{0.2, Up, 100, 300, true, 0.3},
	{0.1, "", 200, 600, false, 0.1},
}

var fakeData = map[string][]string{
	"text":     {"John Doe", "Test User", "Sample Text", "Hello World"},
	"email":    {"test@example.com", "user@test.com", "sample@domain.com"},
	"password": {"TestPass123", "SecurePass456", "MyPassword789"},
	"search":   {"test query", "sample search", "example term"},
	"tel":      {"+1234567890", "555-0123", "123-456-7890"},
	"url":      {"https://example.com", "https://test.com", "https://sample.org"},
}

// Planner picks the next action for one page and adapts its weights to the
// outcomes reported through RecordResult. It is owned by a single page and
// is not safe for concurrent use.
type Planner struct {
	pacer     *humanoid.Pacer
	logger    *zap.Logger
	scrolling bool

	successes map[ActionType]int
	failures  map[ActionType]int
	history   []HistoryEntry
}

// New creates a planner. scrolling=false removes scroll from the table.
func New(pacer *humanoid.Pacer, logger *zap.Logger, scrolling bool) *Planner {
	return &Planner{
		pacer:     pacer,
		logger:    logger.Named("planner"),
		scrolling: scrolling,
		successes: make(map[ActionType]int),
		failures:  make(map[ActionType]int),
	}
}

// Weights computes the adjusted weight table for snap in declaration order.
func (p *Planner) Weights(snap analyzer.Snapshot) []Weight {
	hasLinks, hasButtons := len(snap.Links) > 0, len(snap.Buttons) > 0
	eligible := func(ok bool, w float64) float64 {
		if ok && !snap.Fallback {
			return w
		}
		return 0
	}

	weights := []Weight{
		{ClickButton, eligible(hasButtons, 0.3)},
		{ClickLink, eligible(hasLinks, 0.2)},
		{FillForm, eligible(len(snap.Inputs) > 0, 0.25)},
		{Scroll, 0.6},
		{Hover, eligible(hasLinks || hasButtons, 0.15)},
		{NavigateBack, eligible(true, 0.1)},
		{Idle, 0.2},
		{ClickRandom, eligible(true, 0.3)},
	}
	if !p.scrolling {
		weights[3].Weight = 0
	}

	for i, w := range weights {
		s, f := p.successes[w.Type], p.failures[w.Type]
		if s+f > 0 {
			weights[i].Weight = w.Weight * (0.5 + float64(s)/float64(s+f))
		}
	}
	return weights
}

// WeightedChoice walks weights in order and returns the first type whose
// cumulative weight reaches draw. Non-positive weights are never chosen and
// an all-zero table yields Idle.
func WeightedChoice(weights []Weight, draw float64) ActionType {
	var cumulative float64
	last := Idle
	for _, w := range weights {
		if w.Weight <= 0 {
			continue
		}
		cumulative += w.Weight
		last = w.Type
		if cumulative >= draw {
			return w.Type
		}
	}
	// Only reachable through floating point drift at the top of the range.
	return last
}

func total(weights []Weight) float64 {
	var sum float64
	for _, w := range weights {
		if w.Weight > 0 {
			sum += w.Weight
		}
	}
	return sum
}

// Decide picks and materializes the next action. It never fails; an internal
// error degrades to a short idle.
func (p *Planner) Decide(snap analyzer.Snapshot) (action Action) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Action planning failed", zap.Any("panic", r))
			action = IdleAction(p.pacer.Between(1, 3))
		}
	}()

	weights := p.Weights(snap)
	chosen := Idle
	if sum := total(weights); sum > 0 {
		chosen = WeightedChoice(weights, p.pacer.Float64()*sum)
	}
	action = p.materialize(chosen, snap)

	p.history = append(p.history, HistoryEntry{
		Type:      action.Type,
		Timestamp: p.pacer.Now(),
		Summary:   snap.Summary(),
	})
	p.logger.Debug("Action decided", zap.String("chosen", string(chosen)), zap.String("type", string(action.Type)))
	return action
}

func (p *Planner) materialize(t ActionType, snap analyzer.Snapshot) Action {
	switch t {
	case ClickButton:
		if buttons := snap.VisibleButtons(); len(buttons) > 0 {
			b := buttons[p.pacer.Intn(len(buttons))]
			return Action{Type: ClickButton, Button: &b, WaitAfter: p.pacer.Between(1, 3)}
		}
	case ClickLink:
		if len(snap.Links) > 0 {
			l := snap.Links[p.pacer.Intn(len(snap.Links))]
			return Action{Type: ClickLink, Link: &l, NewTab: p.pacer.Chance(0.5), WaitAfter: p.pacer.Between(2, 4)}
		}
	case FillForm:
		if inputs := snap.VisibleInputs(); len(inputs) > 0 {
			if len(inputs) > maxFormFields {
				inputs = inputs[:maxFormFields]
			}
			return Action{Type: FillForm, Fields: p.formData(inputs), Submit: p.pacer.Chance(0.5)}
		}
	case Scroll:
		return p.scroll()
	case Hover:
		n := len(snap.Links) + len(snap.Buttons)
		if n > 0 {
			a := Action{Type: Hover, Duration: p.pacer.Between(0.5, 2.0)}
			if i := p.pacer.Intn(n); i < len(snap.Links) {
				l := snap.Links[i]
				a.Link = &l
			} else {
				b := snap.Buttons[i-len(snap.Links)]
				a.Button = &b
			}
			return a
		}
	case NavigateBack:
		return Action{Type: NavigateBack, WaitAfter: p.pacer.Between(1, 2)}
	case ClickRandom:
		return Action{Type: ClickRandom, Count: p.pacer.IntRange(1, 3), DelayBetween: p.pacer.Between(0.5, 2.0)}
	}
	return IdleAction(p.pacer.Between(1, 4))
}

func (p *Planner) scroll() Action {
	draw := p.pacer.Float64()
	pattern := scrollPatterns[len(scrollPatterns)-1]
	var cumulative float64
	for _, sp := range scrollPatterns {
		cumulative += sp.weight
		if draw < cumulative {
			pattern = sp
			break
		}
	}
	dir := pattern.direction
	if dir == "" {
		dir = Down
		if p.pacer.Chance(0.5) {
			dir = Up
		}
	}
	return Action{
		Type:             Scroll,
		Direction:        dir,
		Distance:         p.pacer.IntRange(pattern.minDist, pattern.maxDist),
		Smooth:           pattern.smooth,
		PauseProbability: pattern.pauseProbability,
	}
}

func (p *Planner) formData(inputs []analyzer.Input) []FormField {
	fields := make([]FormField, 0, len(inputs))
	for _, in := range inputs {
		kind := strings.ToLower(in.Type)
		values, ok := fakeData[kind]
		if !ok {
			values = fakeData["text"]
		}
		fields = append(fields, FormField{Name: in.Name, Type: kind, Value: values[p.pacer.Intn(len(values))]})
	}
	return fields
}

// RecordResult feeds an executed action's outcome back into the weights.
func (p *Planner) RecordResult(t ActionType, success bool) {
	if success {
		p.successes[t]++
	} else {
		p.failures[t]++
	}
}

// Memory returns a copy of the learning state.
func (p *Planner) Memory() Memory {
	m := Memory{
		Successes: make(map[ActionType]int, len(p.successes)),
		Failures:  make(map[ActionType]int, len(p.failures)),
		History:   append([]HistoryEntry(nil), p.history...),
	}
	for k, v := range p.successes {
		m.Successes[k] = v
	}
	for k, v := range p.failures {
		m.Failures[k] = v
	}
	return m
}

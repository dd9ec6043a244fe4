// internal/planner/action.go
package planner

import (
	"time"

	"github.com/xkilldash9x/trafficsim/internal/analyzer"
)

// ActionType identifies one simulated user behavior.
type ActionType string

const (
	ClickButton  ActionType = "click_button"
	ClickLink    ActionType = "click_link"
	FillForm     ActionType = "fill_form"
	Scroll       ActionType = "scroll"
	Hover        ActionType = "hover"
	NavigateBack ActionType = "navigate_back"
	ClickRandom  ActionType = "click_random"
	Idle         ActionType = "idle"

	// RandomClick is accepted by the executor as an alias of ClickRandom.
	RandomClick ActionType = "random_click"
)

// Direction is a vertical scroll direction.
type Direction string

const (
	Down Direction = "down"
	Up   Direction = "up"
)

// FormField is one input to fill and the value to type into it.
type FormField struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Action is a fully materialized behavior. Only the fields relevant to Type
// are set.
type Action struct {
	Type ActionType `json:"type"`

	// scroll
	Direction        Direction `json:"direction,omitempty"`
	Distance         int       `json:"distance,omitempty"`
	Smooth           bool      `json:"smooth,omitempty"`
	PauseProbability float64   `json:"pauseProbability,omitempty"`

	// click_button, click_link and hover targets
	Button *analyzer.Button `json:"button,omitempty"`
	Link   *analyzer.Link   `json:"link,omitempty"`
	NewTab bool             `json:"newTab,omitempty"`

	// fill_form
	Fields []FormField `json:"fields,omitempty"`
	Submit bool        `json:"submit,omitempty"`

	// click_random
	Count        int           `json:"count,omitempty"`
	DelayBetween time.Duration `json:"delayBetween,omitempty"`

	// Duration is how long idle and hover last.
	Duration  time.Duration `json:"duration,omitempty"`
	WaitAfter time.Duration `json:"waitAfter,omitempty"`
}

// IdleAction returns an idle of the given length.
func IdleAction(d time.Duration) Action {
	return Action{Type: Idle, Duration: d}
}

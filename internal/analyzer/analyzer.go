// internal/analyzer/analyzer.go
package analyzer

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
	"github.com/xkilldash9x/trafficsim/internal/humanoid"
	"github.com/xkilldash9x/trafficsim/internal/overlay"
)

const (
	domContentTimeout  = 10 * time.Second
	networkIdleTimeout = 5 * time.Second
	stabilityFallback  = 2 * time.Second
)

// Link is an anchor with a navigable href.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Button is an enabled button or button-like input.
type Button struct {
	Text    string `json:"text"`
	Tag     string `json:"tag"`
	Type    string `json:"type"`
	Visible bool   `json:"visible"`
}

// Input is an enabled form control.
type Input struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Placeholder string `json:"placeholder"`
	Required    bool   `json:"required"`
	Visible     bool   `json:"visible"`
}

// Form is a form element with its submission target.
type Form struct {
	Action string `json:"action"`
	Method string `json:"method"`
	ID     string `json:"id"`
}

// Media is an image, video or audio element.
type Media struct {
	Tag string `json:"tag"`
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// NavLink is a link inside a navigation region.
type NavLink struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Snapshot is the interactable surface of a page captured once per tick.
// Fallback marks a snapshot produced after the analysis itself failed.
type Snapshot struct {
	Links      []Link
	Buttons    []Button
	Inputs     []Input
	Forms      []Form
	Media      []Media
	Navigation []NavLink
	Timestamp  time.Time
	URL        string
	Fallback   bool
}

// Summary is the per-category count kept in planner history.
type Summary struct {
	Links   int `json:"links"`
	Buttons int `json:"buttons"`
	Inputs  int `json:"inputs"`
	Forms   int `json:"forms"`
}

// Summary counts the snapshot's links, buttons, inputs and forms.
func (s Snapshot) Summary() Summary {
	return Summary{Links: len(s.Links), Buttons: len(s.Buttons), Inputs: len(s.Inputs), Forms: len(s.Forms)}
}

// VisibleButtons filters Buttons down to the rendered ones.
func (s Snapshot) VisibleButtons() []Button {
	var out []Button
	for _, b := range s.Buttons {
		if b.Visible {
			out = append(out, b)
		}
	}
	return out
}

// VisibleInputs filters Inputs down to the rendered ones.
func (s Snapshot) VisibleInputs() []Input {
	var out []Input
	for _, in := range s.Inputs {
		if in.Visible {
			out = append(out, in)
		}
	}
	return out
}

type extractor struct {
	name     string
	selector string
	fn       string
	out      interface{}
}

// Analyzer builds page snapshots. It clears overlays through the page's
// overlay engine before every capture.
type Analyzer struct {
	page     surface.Page
	overlays *overlay.Engine
	pacer    *humanoid.Pacer
	logger   *zap.Logger
}

// New returns an Analyzer for page. Overlays are dismissed before every
// analysis.
func New(page surface.Page, overlays *overlay.Engine, pacer *humanoid.Pacer, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		page:     page,
		overlays: overlays,
		pacer:    pacer,
		logger:   logger.Named("analyzer"),
	}
}

// Analyze captures a snapshot of the page. It never fails: an extractor that
// errors leaves its category empty, and a failure of the whole analysis
// yields a fallback snapshot.
func (a *Analyzer) Analyze(ctx context.Context) (snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Page analysis failed", zap.Any("panic", r))
			snap = a.fallback()
		}
	}()

	a.overlays.HandleAll(ctx)
	a.waitForStability(ctx)

	snap, err := a.extract(ctx)
	if err != nil {
		a.logger.Error("Page analysis failed", zap.Error(err))
		return a.fallback()
	}
	a.logger.Info("Page analysis complete",
		zap.Int("links", len(snap.Links)),
		zap.Int("buttons", len(snap.Buttons)),
		zap.Int("inputs", len(snap.Inputs)))
	return snap
}

func (a *Analyzer) waitForStability(ctx context.Context) {
	wait := func(state surface.LoadState, timeout time.Duration) error {
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return a.page.WaitForLoad(waitCtx, state)
	}
	if err := wait(surface.LoadDOMContent, domContentTimeout); err == nil {
		if err = wait(surface.LoadNetworkIdle, networkIdleTimeout); err == nil {
			return
		}
	}
	_ = a.pacer.Sleep(ctx, stabilityFallback)
}

func (a *Analyzer) extract(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Timestamp: a.pacer.Now(), URL: a.page.URL()}
	extractors := []extractor{
		{"links", linkSelector, linkFn, &snap.Links},
		{"buttons", buttonSelector, buttonFn, &snap.Buttons},
		{"inputs", inputSelector, inputFn, &snap.Inputs},
		{"forms", formSelector, formFn, &snap.Forms},
		{"media", mediaSelector, mediaFn, &snap.Media},
		{"navigation", navSelector, navFn, &snap.Navigation},
	}

	var g errgroup.Group
	for _, ex := range extractors {
		ex := ex
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					a.logger.Debug("Extractor panicked", zap.String("extractor", ex.name), zap.Any("panic", r))
					resetSlice(ex.out)
				}
			}()
			if err := a.page.EvalAll(ctx, ex.selector, ex.fn, ex.out); err != nil {
				a.logger.Debug("Extractor failed", zap.String("extractor", ex.name), zap.Error(err))
				resetSlice(ex.out)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// resetSlice empties a category whose extractor failed part way through
// decoding.
func resetSlice(out interface{}) {
	switch v := out.(type) {
	case *[]Link:
		*v = nil
	case *[]Button:
		*v = nil
	case *[]Input:
		*v = nil
	case *[]Form:
		*v = nil
	case *[]Media:
		*v = nil
	case *[]NavLink:
		*v = nil
	}
}

func (a *Analyzer) fallback() Snapshot {
	return Snapshot{Timestamp: a.pacer.Now(), URL: a.page.URL(), Fallback: true}
}

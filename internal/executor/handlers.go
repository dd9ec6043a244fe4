// internal/executor/handlers.go
package executor

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
	"github.com/xkilldash9x/trafficsim/internal/planner"
)

const (
	clickTimeout       = 5 * time.Second
	randomClickTimeout = 3 * time.Second
	backTimeout        = 10 * time.Second
)

// Fallback selectors for click_button, tried after a text match.
var buttonSelectors = []string{
	"button[type='submit']",
	"input[type='submit']",
	"button",
	"input[type='button']",
}

var clickableSelectors = []string{
	"a:not([href^='javascript:']):not([href^='#'])",
	"button:not([disabled])",
	"input[type='button']:not([disabled])",
	"input[type='submit']:not([disabled])",
	"[role='button']",
	"[onclick]",
}

const submitSelector = "input[type='submit'], button[type='submit']"

// -- Scrolling --

func (e *Executor) scroll(ctx context.Context, a planner.Action) Result {
	dir := a.Direction
	if dir == "" {
		dir = planner.Down
	}
	distance := a.Distance
	if distance <= 0 {
		distance = 300
	}
	signed := float64(distance)
	if dir == planner.Up {
		signed = -signed
	}

	if !a.Smooth {
		if err := e.scrollBy(ctx, signed); err != nil {
			return fail("Scroll failed: %v", err)
		}
		return ok("Scrolled %s by %dpx", dir, distance)
	}

	for _, step := range e.pacer.ScrollSteps(signed) {
		if err := e.scrollBy(ctx, step); err != nil {
			return fail("Scroll failed: %v", err)
		}
		var err error
		if e.pacer.Chance(a.PauseProbability) {
			err = e.pacer.Pause(ctx, 0.5, 1.5)
		} else {
			err = e.pacer.Pause(ctx, 0.05, 0.2)
		}
		if err != nil {
			return fail("Scroll failed: %v", err)
		}
	}
	return ok("Scrolled %s by %dpx", dir, distance)
}

func (e *Executor) scrollBy(ctx context.Context, dy float64) error {
	return e.page.Evaluate(ctx, fmt.Sprintf("window.scrollBy(0, %.2f)", dy), nil)
}

// -- Clicking --

func (e *Executor) clickButton(ctx context.Context, a planner.Action) Result {
	text := ""
	if a.Button != nil {
		text = strings.TrimSpace(a.Button.Text)
	}

	if text != "" {
		if el := e.buttonByText(ctx, text); el != nil {
			if err := e.scrollAndClick(ctx, el, clickTimeout); err == nil {
				e.waitAfter(ctx, a.WaitAfter)
				return ok("Clicked button: %s", text)
			}
		}
	}
	for _, sel := range buttonSelectors {
		el, err := surface.First(ctx, e.page, sel)
		if err != nil || el == nil {
			continue
		}
		if visible, err := el.IsVisible(ctx); err != nil || !visible {
			continue
		}
		if err := e.scrollAndClick(ctx, el, clickTimeout); err != nil {
			continue
		}
		e.waitAfter(ctx, a.WaitAfter)
		return ok("Clicked button: %s", sel)
	}
	return fail("No clickable button found")
}

// buttonByText returns the first visible button whose text is text.
func (e *Executor) buttonByText(ctx context.Context, text string) surface.Element {
	els, err := e.page.QueryAll(ctx, "button")
	if err != nil {
		return nil
	}
	for _, el := range els {
		t, err := el.InnerText(ctx)
		if err != nil || strings.TrimSpace(t) != text {
			continue
		}
		if visible, err := el.IsVisible(ctx); err == nil && visible {
			return el
		}
	}
	return nil
}

func (e *Executor) scrollAndClick(ctx context.Context, el surface.Element, timeout time.Duration) error {
	if err := el.ScrollIntoView(ctx); err != nil {
		return err
	}
	clickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return el.Click(clickCtx, surface.ClickOptions{})
}

func (e *Executor) clickLink(ctx context.Context, a planner.Action) Result {
	if a.Link == nil || a.Link.Href == "" {
		return fail("No valid link found")
	}
	href := a.Link.Href
	if u, err := url.Parse(href); err != nil || u.Scheme == "" {
		return fail("Invalid URL")
	}

	el, err := surface.First(ctx, e.page, fmt.Sprintf("a[href=%q]", href))
	if err != nil || el == nil {
		return fail("No valid link found")
	}
	if err := el.ScrollIntoView(ctx); err != nil {
		return fail("Link click failed: %v", err)
	}

	if a.NewTab {
		err = e.page.ClickInNewTab(ctx, el)
	} else {
		clickCtx, cancel := context.WithTimeout(ctx, clickTimeout)
		err = el.Click(clickCtx, surface.ClickOptions{})
		cancel()
	}
	if err != nil {
		return fail("Link click failed: %v", err)
	}
	e.waitAfter(ctx, a.WaitAfter)
	return ok("Clicked link: %s", href)
}

func (e *Executor) clickRandom(ctx context.Context, a planner.Action) Result {
	count := a.Count
	if count <= 0 {
		count = 1
	}

	var candidates []surface.Element
	for _, sel := range clickableSelectors {
		els, err := e.page.QueryAll(ctx, sel)
		if err != nil {
			continue
		}
		candidates = append(candidates, els...)
	}
	if len(candidates) == 0 {
		return fail("No clickable elements found")
	}

	e.pacer.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > count {
		candidates = candidates[:count]
	}

	clicked := 0
	for _, el := range candidates {
		if visible, err := el.IsVisible(ctx); err != nil || !visible {
			continue
		}
		if err := e.scrollAndClick(ctx, el, randomClickTimeout); err != nil {
			e.logger.Debug("Failed to click random element.", zap.Error(err))
			continue
		}
		clicked++
		// A click can open a new overlay.
		e.overlays.HandleAll(ctx)
		if clicked < count {
			if err := e.pacer.Sleep(ctx, a.DelayBetween); err != nil {
				break
			}
		}
	}
	return Result{Success: clicked > 0, Message: fmt.Sprintf("Clicked %d random elements", clicked)}
}

// -- Forms --

func (e *Executor) fillForm(ctx context.Context, a planner.Action) Result {
	filled := 0
	for _, f := range a.Fields {
		if f.Name == "" {
			continue
		}
		sel := fmt.Sprintf("input[name=%q], textarea[name=%q], select[name=%q]", f.Name, f.Name, f.Name)
		el, err := surface.First(ctx, e.page, sel)
		if err != nil || el == nil {
			continue
		}
		if err := el.ScrollIntoView(ctx); err != nil {
			e.logger.Debug("Failed to fill field.", zap.String("field", f.Name), zap.Error(err))
			continue
		}
		if err := el.Fill(ctx, f.Value); err != nil {
			e.logger.Debug("Failed to fill field.", zap.String("field", f.Name), zap.Error(err))
			continue
		}
		filled++
		if err := e.pacer.Pause(ctx, 0.2, 0.8); err != nil {
			break
		}
	}

	if a.Submit && filled > 0 {
		if btn, err := surface.First(ctx, e.page, submitSelector); err == nil && btn != nil {
			clickCtx, cancel := context.WithTimeout(ctx, clickTimeout)
			err = btn.Click(clickCtx, surface.ClickOptions{})
			cancel()
			if err == nil {
				return ok("Filled %d fields and submitted form", filled)
			}
		}
	}
	return Result{Success: filled > 0, Message: fmt.Sprintf("Filled %d form fields", filled)}
}

// -- Pointer and navigation --

func (e *Executor) hover(ctx context.Context, a planner.Action) Result {
	var el surface.Element
	switch {
	case a.Link != nil && a.Link.Href != "":
		el, _ = surface.First(ctx, e.page, fmt.Sprintf("a[href=%q]", a.Link.Href))
	case a.Button != nil && strings.TrimSpace(a.Button.Text) != "":
		el = e.buttonByText(ctx, strings.TrimSpace(a.Button.Text))
	default:
		if els, err := e.page.QueryAll(ctx, "a, button"); err == nil && len(els) > 0 {
			el = els[e.pacer.Intn(len(els))]
		}
	}
	if el == nil {
		return fail("No element to hover")
	}

	if err := el.ScrollIntoView(ctx); err != nil {
		return fail("Hover failed: %v", err)
	}
	if err := el.Hover(ctx); err != nil {
		return fail("Hover failed: %v", err)
	}
	d := a.Duration
	if d <= 0 {
		d = time.Second
	}
	if err := e.pacer.Sleep(ctx, d); err != nil {
		return fail("Hover failed: %v", err)
	}
	return ok("Hovered over element")
}

func (e *Executor) navigateBack(ctx context.Context, a planner.Action) Result {
	backCtx, cancel := context.WithTimeout(ctx, backTimeout)
	err := e.page.GoBack(backCtx)
	cancel()
	if err != nil {
		return fail("Back navigation failed: %v", err)
	}
	e.waitAfter(ctx, a.WaitAfter)
	return ok("Navigated back")
}

func (e *Executor) idle(ctx context.Context, a planner.Action) Result {
	d := a.Duration
	if d <= 0 {
		d = e.pacer.Between(1, 3)
	}
	if err := e.pacer.Sleep(ctx, d); err != nil {
		return fail("Idle failed: %v", err)
	}
	return ok("Idled for %.2f seconds", d.Seconds())
}

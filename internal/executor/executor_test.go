// internal/executor/executor_test.go
package executor

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/trafficsim/internal/analyzer"
	"github.com/xkilldash9x/trafficsim/internal/browser/surface/surfacetest"
	"github.com/xkilldash9x/trafficsim/internal/humanoid"
	"github.com/xkilldash9x/trafficsim/internal/overlay"
	"github.com/xkilldash9x/trafficsim/internal/planner"
)

func setup(t *testing.T, opts ...Option) (*Executor, *surfacetest.Page, *humanoid.FakeClock) {
	t.Helper()
	clock := humanoid.NewFakeClock(time.Unix(1700000000, 0))
	pacer := humanoid.NewPacer(clock, rand.New(rand.NewSource(11)))
	page := surfacetest.NewPage("https://example.com/")
	logger := zaptest.NewLogger(t)
	return New(page, overlay.New(page, pacer, logger), pacer, logger, opts...), page, clock
}

func TestExecuteUnknownType(t *testing.T) {
	e, _, _ := setup(t)
	res := e.Execute(context.Background(), planner.Action{Type: "teleport"})
	assert.Equal(t, Result{Message: "Unknown action type: teleport"}, res)
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	calls := 0
	flaky := func(ctx context.Context, a planner.Action) Result {
		calls++
		if calls < 3 {
			return fail("not yet")
		}
		return ok("done")
	}
	e, _, clock := setup(t, WithHandler(planner.Idle, flaky))

	res := e.Execute(context.Background(), planner.IdleAction(time.Second))

	assert.Equal(t, Result{Success: true, Message: "done"}, res)
	assert.Equal(t, 3, calls)
	require.Len(t, clock.Sleeps(), 2)
	assert.GreaterOrEqual(t, clock.Total(), time.Second)
	assert.LessOrEqual(t, clock.Total(), 3500*time.Millisecond)
}

func TestExecuteGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	e, _, clock := setup(t, WithHandler(planner.Scroll, func(context.Context, planner.Action) Result {
		calls++
		return fail("blocked")
	}))

	res := e.Execute(context.Background(), planner.Action{Type: planner.Scroll})

	assert.False(t, res.Success)
	assert.Equal(t, "Action scroll failed after 3 attempts", res.Message)
	assert.Equal(t, MaxAttempts, calls)
	assert.Len(t, clock.Sleeps(), 2, "no backoff after the last attempt")
}

func TestExecuteRecoversPanics(t *testing.T) {
	calls := 0
	e, _, clock := setup(t, WithHandler(planner.Hover, func(context.Context, planner.Action) Result {
		calls++
		if calls == 1 {
			panic("node detached")
		}
		return ok("hovered")
	}))

	res := e.Execute(context.Background(), planner.Action{Type: planner.Hover})

	assert.True(t, res.Success)
	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 1)
	assert.GreaterOrEqual(t, sleeps[0], time.Second)
	assert.Less(t, sleeps[0], 2*time.Second)
}

func TestRandomClickAlias(t *testing.T) {
	e, page, _ := setup(t)
	btn := surfacetest.NewElement("button", "More")
	page.Add("button:not([disabled])", btn)

	res := e.Execute(context.Background(), planner.Action{Type: planner.RandomClick, Count: 1})
	assert.True(t, res.Success)
	assert.Equal(t, "Clicked 1 random elements", res.Message)
	assert.Equal(t, 1, btn.Clicks())
}

func TestScroll(t *testing.T) {
	ctx := context.Background()

	t.Run("smooth", func(t *testing.T) {
		e, page, clock := setup(t)
		res := e.scroll(ctx, planner.Action{Type: planner.Scroll, Direction: planner.Down, Distance: 400, Smooth: true})
		assert.Equal(t, Result{Success: true, Message: "Scrolled down by 400px"}, res)

		steps := page.Evaluated()
		assert.GreaterOrEqual(t, len(steps), 5)
		assert.LessOrEqual(t, len(steps), 15)
		for _, s := range steps {
			assert.True(t, strings.HasPrefix(s, "window.scrollBy(0, "), s)
		}
		assert.Len(t, clock.Sleeps(), len(steps), "one pause per step")
	})

	t.Run("jump", func(t *testing.T) {
		e, page, clock := setup(t)
		res := e.scroll(ctx, planner.Action{Type: planner.Scroll, Direction: planner.Up, Distance: 250})
		assert.Equal(t, "Scrolled up by 250px", res.Message)
		assert.Equal(t, []string{"window.scrollBy(0, -250.00)"}, page.Evaluated())
		assert.Empty(t, clock.Sleeps())
	})
}

func TestClickButton(t *testing.T) {
	ctx := context.Background()

	t.Run("text match wins", func(t *testing.T) {
		e, page, clock := setup(t)
		other := surfacetest.NewElement("button", "Cancel")
		target := surfacetest.NewElement("button", " Subscribe ")
		page.Add("button", other, target)

		res := e.clickButton(ctx, planner.Action{Button: &analyzer.Button{Text: "Subscribe"}, WaitAfter: 2 * time.Second})
		assert.Equal(t, Result{Success: true, Message: "Clicked button: Subscribe"}, res)
		assert.Equal(t, 1, target.Clicks())
		assert.Equal(t, 0, other.Clicks())
		assert.Equal(t, []time.Duration{2 * time.Second}, clock.Sleeps())
	})

	t.Run("selector fallback skips hidden", func(t *testing.T) {
		e, page, _ := setup(t)
		page.Add("button[type='submit']", surfacetest.NewElement("button", "hidden").Hidden())
		input := surfacetest.NewElement("input", "")
		page.Add("input[type='submit']", input)

		res := e.clickButton(ctx, planner.Action{Button: &analyzer.Button{Text: "Missing"}})
		assert.Equal(t, "Clicked button: input[type='submit']", res.Message)
		assert.Equal(t, 1, input.Clicks())
	})

	t.Run("nothing to click", func(t *testing.T) {
		e, _, _ := setup(t)
		res := e.clickButton(ctx, planner.Action{})
		assert.Equal(t, Result{Message: "No clickable button found"}, res)
	})
}

func TestClickLink(t *testing.T) {
	ctx := context.Background()
	const href = "https://example.com/pricing"
	sel := `a[href="https://example.com/pricing"]`

	t.Run("in place", func(t *testing.T) {
		e, page, _ := setup(t)
		link := surfacetest.NewElement("a", "Pricing")
		page.Add(sel, link)
		res := e.clickLink(ctx, planner.Action{Link: &analyzer.Link{Href: href}})
		assert.Equal(t, Result{Success: true, Message: "Clicked link: " + href}, res)
		assert.Equal(t, 1, link.Clicks())
		assert.Zero(t, page.NewTabClicks())
	})

	t.Run("new tab", func(t *testing.T) {
		e, page, _ := setup(t)
		page.Add(sel, surfacetest.NewElement("a", "Pricing"))
		res := e.clickLink(ctx, planner.Action{Link: &analyzer.Link{Href: href}, NewTab: true})
		assert.True(t, res.Success)
		assert.Equal(t, 1, page.NewTabClicks())
	})

	t.Run("relative href is rejected", func(t *testing.T) {
		e, _, _ := setup(t)
		res := e.clickLink(ctx, planner.Action{Link: &analyzer.Link{Href: "/pricing"}})
		assert.Equal(t, Result{Message: "Invalid URL"}, res)
	})

	t.Run("missing element", func(t *testing.T) {
		e, _, _ := setup(t)
		res := e.clickLink(ctx, planner.Action{Link: &analyzer.Link{Href: href}})
		assert.Equal(t, Result{Message: "No valid link found"}, res)
	})
}

func TestFillForm(t *testing.T) {
	ctx := context.Background()
	e, page, _ := setup(t)
	email := surfacetest.NewElement("input", "")
	page.Add(`input[name="email"], textarea[name="email"], select[name="email"]`, email)
	submit := surfacetest.NewElement("button", "Send")
	page.Add(submitSelector, submit)

	res := e.fillForm(ctx, planner.Action{
		Fields: []planner.FormField{
			{Name: "email", Type: "email", Value: "test@example.com"},
			{Name: "absent", Type: "text", Value: "Hello World"},
			{Name: "", Type: "text", Value: "ignored"},
		},
		Submit: true,
	})

	assert.Equal(t, Result{Success: true, Message: "Filled 1 fields and submitted form"}, res)
	assert.Equal(t, []string{"test@example.com"}, email.Filled())
	assert.Equal(t, 1, submit.Clicks())

	none := e.fillForm(ctx, planner.Action{Fields: []planner.FormField{{Name: "absent"}}, Submit: true})
	assert.Equal(t, Result{Message: "Filled 0 form fields"}, none)
	assert.Equal(t, 1, submit.Clicks(), "never submits an empty form")
}

func TestHover(t *testing.T) {
	ctx := context.Background()
	e, page, clock := setup(t)
	link := surfacetest.NewElement("a", "Docs")
	page.Add(`a[href="https://example.com/docs"]`, link)

	res := e.hover(ctx, planner.Action{Link: &analyzer.Link{Href: "https://example.com/docs"}, Duration: 1500 * time.Millisecond})
	assert.True(t, res.Success)
	assert.Equal(t, 1, link.Hovers())
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, clock.Sleeps())

	res = e.hover(ctx, planner.Action{})
	assert.Equal(t, Result{Message: "No element to hover"}, res)
}

func TestClickRandomClearsOverlays(t *testing.T) {
	ctx := context.Background()
	e, page, clock := setup(t)

	modal := surfacetest.NewElement("div", "Newsletter").Hidden()
	closeBtn := surfacetest.NewElement("button", "x")
	closeBtn.OnClick = func(*surfacetest.Element, bool) { modal.Hide() }
	modal.WithChild(".close", closeBtn)
	page.Add(".modal", modal)

	a := surfacetest.NewElement("a", "one")
	b := surfacetest.NewElement("button", "two")
	b.OnClick = func(*surfacetest.Element, bool) { modal.Show() }
	page.Add("a:not([href^='javascript:']):not([href^='#'])", a)
	page.Add("button:not([disabled])", b)

	res := e.clickRandom(ctx, planner.Action{Count: 2, DelayBetween: 700 * time.Millisecond})

	assert.Equal(t, Result{Success: true, Message: "Clicked 2 random elements"}, res)
	assert.Equal(t, 1, a.Clicks())
	assert.Equal(t, 1, b.Clicks())
	assert.Equal(t, 1, closeBtn.Clicks(), "overlay spawned by a click is dismissed")
	assert.Contains(t, clock.Sleeps(), 700*time.Millisecond)

	empty, _, _ := setup(t)
	assert.Equal(t, Result{Message: "No clickable elements found"}, empty.clickRandom(ctx, planner.Action{Count: 1}))
}

func TestNavigateBackAndIdle(t *testing.T) {
	ctx := context.Background()
	e, page, clock := setup(t)

	res := e.navigateBack(ctx, planner.Action{WaitAfter: 1200 * time.Millisecond})
	assert.Equal(t, Result{Success: true, Message: "Navigated back"}, res)
	assert.Equal(t, 1, page.Backs())

	page.BackErr = errors.New("no history")
	res = e.navigateBack(ctx, planner.Action{})
	assert.Equal(t, "Back navigation failed: no history", res.Message)

	clock.Reset()
	res = e.idle(ctx, planner.IdleAction(2500*time.Millisecond))
	assert.Equal(t, Result{Success: true, Message: "Idled for 2.50 seconds"}, res)
	assert.Equal(t, []time.Duration{2500 * time.Millisecond}, clock.Sleeps())
}

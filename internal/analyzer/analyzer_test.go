// internal/analyzer/analyzer_test.go
package analyzer

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
	"github.com/xkilldash9x/trafficsim/internal/browser/surface/surfacetest"
	"github.com/xkilldash9x/trafficsim/internal/humanoid"
	"github.com/xkilldash9x/trafficsim/internal/overlay"
)

func setup(t *testing.T) (*Analyzer, *surfacetest.Page, *humanoid.FakeClock) {
	t.Helper()
	clock := humanoid.NewFakeClock(time.Unix(1700000000, 0))
	pacer := humanoid.NewPacer(clock, rand.New(rand.NewSource(3)))
	page := surfacetest.NewPage("https://shop.example.com/")
	logger := zaptest.NewLogger(t)
	return New(page, overlay.New(page, pacer, logger), pacer, logger), page, clock
}

func TestAnalyze(t *testing.T) {
	a, page, clock := setup(t)
	page.SetEval(linkSelector, []Link{{Href: "https://shop.example.com/a", Text: "A"}, {Href: "https://shop.example.com/b", Text: "B"}})
	page.SetEval(buttonSelector, []Button{{Text: "Buy", Tag: "BUTTON", Type: "submit", Visible: true}, {Text: "Hidden", Tag: "BUTTON", Visible: false}})
	page.SetEval(inputSelector, []Input{{Name: "email", Type: "email", Visible: true}})
	page.SetEval(formSelector, []Form{{Action: "/subscribe", Method: "post"}})
	page.SetEval(mediaSelector, []Media{{Tag: "IMG", Src: "https://cdn.example.com/x.png"}})
	page.SetEval(navSelector, []NavLink{{Href: "https://shop.example.com/", Text: "Home"}})

	snap := a.Analyze(context.Background())

	assert.False(t, snap.Fallback)
	assert.Equal(t, "https://shop.example.com/", snap.URL)
	assert.Len(t, snap.Links, 2)
	assert.Len(t, snap.Buttons, 2)
	assert.Len(t, snap.VisibleButtons(), 1)
	assert.Len(t, snap.VisibleInputs(), 1)
	assert.Len(t, snap.Forms, 1)
	assert.Len(t, snap.Media, 1)
	assert.Len(t, snap.Navigation, 1)
	assert.Equal(t, Summary{Links: 2, Buttons: 2, Inputs: 1, Forms: 1}, snap.Summary())

	assert.Equal(t, []surface.LoadState{surface.LoadDOMContent, surface.LoadNetworkIdle}, page.Loads())
	assert.Empty(t, clock.Sleeps(), "a stable page needs no fallback wait")
}

func TestAnalyzeIsolatesFailingExtractor(t *testing.T) {
	a, page, _ := setup(t)
	page.SetEval(linkSelector, []Link{{Href: "https://shop.example.com/a"}})
	page.FailEval(buttonSelector, errors.New("execution context destroyed"))
	page.SetEval(inputSelector, []Input{{Name: "q", Type: "search", Visible: true}})

	snap := a.Analyze(context.Background())

	assert.False(t, snap.Fallback)
	assert.Len(t, snap.Links, 1)
	assert.Empty(t, snap.Buttons)
	assert.Len(t, snap.Inputs, 1)
}

func TestAnalyzeStabilityFallbackWait(t *testing.T) {
	a, page, clock := setup(t)
	page.LoadErr = errors.New("timeout")

	a.Analyze(context.Background())

	assert.Equal(t, []surface.LoadState{surface.LoadDOMContent}, page.Loads())
	assert.Equal(t, []time.Duration{2 * time.Second}, clock.Sleeps())
}

func TestAnalyzeClearsOverlaysFirst(t *testing.T) {
	a, page, _ := setup(t)
	modal := surfacetest.NewElement("div", "Sign up")
	btn := surfacetest.NewElement("button", "x")
	btn.OnClick = func(*surfacetest.Element, bool) { modal.Hide() }
	modal.WithChild(".close", btn)
	page.Add(".modal", modal)

	a.Analyze(context.Background())
	assert.Equal(t, 1, btn.Clicks())
}

func TestAnalyzeFallbackOnCancelledContext(t *testing.T) {
	a, page, _ := setup(t)
	page.SetEval(linkSelector, []Link{{Href: "https://shop.example.com/a"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap := a.Analyze(ctx)
	require.True(t, snap.Fallback)
	assert.Empty(t, snap.Links)
	assert.Equal(t, "https://shop.example.com/", snap.URL)
	assert.Equal(t, Summary{}, snap.Summary())
}

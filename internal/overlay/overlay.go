// internal/overlay/overlay.go
package overlay

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
	"github.com/xkilldash9x/trafficsim/internal/humanoid"
)

// Selectors match elements that usually block the page.
var Selectors = []string{
	"div[class*='overlay']", "div[class*='modal']", "div[class*='popup']",
	"div[id*='overlay']", "div[id*='modal']", "div[id*='popup']",
	"div[class*='lightbox']", "div[class*='dialog']", "div[class*='banner']",
	"div[role='dialog']", "div[aria-modal='true']", "[data-testid*='modal']",
	".modal", ".popup", ".overlay", ".lightbox", ".banner-ad",
}

// CloseSelectors match dismiss controls inside an overlay, most specific first.
var CloseSelectors = []string{
	"button[class*='close']", "button[class*='dismiss']", "button[aria-label*='close']",
	"span[class*='close']", "svg[class*='close']", "[aria-label*='close']",
	"[title*='close']", "[data-dismiss]", ".close", ".dismiss",
	"button[type='button'][aria-label*='Close']", "i[class*='close']",
}

const (
	closeButtonTimeout = 3 * time.Second
	directClickTimeout = 2 * time.Second
	escapeSettle       = 500 * time.Millisecond
	cornerSettle       = 200 * time.Millisecond
	clickSettle        = 500 * time.Millisecond
	cornerInset        = 10.0
)

// Identifier names one overlay instance as "selector[index]".
type Identifier string

// NewIdentifier builds the identifier of the index-th match of selector.
func NewIdentifier(selector string, index int) Identifier {
	return Identifier(fmt.Sprintf("%s[%d]", selector, index))
}

var indexSuffix = regexp.MustCompile(`\[\d+\]$`)

// BaseSelector strips the trailing "[index]" from id. Attribute brackets
// inside the selector itself are kept.
func BaseSelector(id Identifier) string {
	return indexSuffix.ReplaceAllString(string(id), "")
}

// Engine detects and dismisses overlays on one page. It is not safe for
// concurrent use; a page is only ever driven by one goroutine at a time.
type Engine struct {
	page   surface.Page
	pacer  *humanoid.Pacer
	logger *zap.Logger
	closed map[Identifier]struct{}
}

// New creates an overlay engine bound to page.
func New(page surface.Page, pacer *humanoid.Pacer, logger *zap.Logger) *Engine {
	return &Engine{
		page:   page,
		pacer:  pacer,
		logger: logger.Named("overlay"),
		closed: make(map[Identifier]struct{}),
	}
}

// Closed reports whether id was dismissed earlier on this page.
func (e *Engine) Closed(id Identifier) bool {
	_, ok := e.closed[id]
	return ok
}

// DetectOverlays lists the visible overlays currently on the page. A
// selector whose query fails is skipped.
func (e *Engine) DetectOverlays(ctx context.Context) []Identifier {
	var found []Identifier
	for _, sel := range Selectors {
		els, err := e.page.QueryAll(ctx, sel)
		if err != nil {
			e.logger.Debug("Overlay query failed", zap.String("selector", sel), zap.Error(err))
			continue
		}
		for i, el := range els {
			if visible, err := el.IsVisible(ctx); err == nil && visible {
				found = append(found, NewIdentifier(sel, i))
			}
		}
	}
	return found
}

// CloseOverlay tries each dismissal strategy in turn and reports whether the
// overlay ended up hidden. Failures are never returned as errors.
func (e *Engine) CloseOverlay(ctx context.Context, id Identifier) bool {
	if e.Closed(id) {
		return true
	}
	el, err := surface.First(ctx, e.page, BaseSelector(id))
	if err != nil || el == nil {
		return false
	}

	strategies := []struct {
		name string
		run  func(context.Context, surface.Element) bool
	}{
		{"close_button", e.viaCloseButton},
		{"escape", e.viaEscape},
		{"corner_click", e.viaCorners},
		{"direct_click", e.viaDirectClick},
	}
	for _, s := range strategies {
		if ctx.Err() != nil {
			return false
		}
		if s.run(ctx, el) {
			e.closed[id] = struct{}{}
			e.logger.Debug("Overlay closed", zap.String("overlay", string(id)), zap.String("strategy", s.name))
			_ = e.pacer.Pause(ctx, 0.5, 1.5)
			return true
		}
	}
	e.logger.Debug("Overlay could not be closed", zap.String("overlay", string(id)))
	return false
}

// HandleAll closes every visible overlay not already closed and returns how
// many were dismissed.
func (e *Engine) HandleAll(ctx context.Context) int {
	closed := 0
	for _, id := range e.DetectOverlays(ctx) {
		if e.Closed(id) {
			continue
		}
		if e.CloseOverlay(ctx, id) {
			closed++
		}
	}
	if closed > 0 {
		e.logger.Info("Closed overlays", zap.Int("count", closed))
	}
	return closed
}

func (e *Engine) viaCloseButton(ctx context.Context, el surface.Element) bool {
	for _, sel := range CloseSelectors {
		btn, err := surface.First(ctx, el, sel)
		if err != nil || btn == nil {
			continue
		}
		if visible, err := btn.IsVisible(ctx); err != nil || !visible {
			continue
		}
		_ = btn.ScrollIntoView(ctx)
		clickCtx, cancel := context.WithTimeout(ctx, closeButtonTimeout)
		err = btn.Click(clickCtx, surface.ClickOptions{})
		cancel()
		if err == nil {
			return true
		}
	}
	return false
}

func (e *Engine) viaEscape(ctx context.Context, el surface.Element) bool {
	if err := e.page.PressKey(ctx, "Escape"); err != nil {
		return false
	}
	if err := e.pacer.Sleep(ctx, escapeSettle); err != nil {
		return false
	}
	return gone(ctx, el)
}

func (e *Engine) viaCorners(ctx context.Context, el surface.Element) bool {
	w, h := e.page.Viewport()
	corners := [][2]float64{
		{cornerInset, cornerInset},
		{float64(w) - cornerInset, cornerInset},
		{cornerInset, float64(h) - cornerInset},
		{float64(w) - cornerInset, float64(h) - cornerInset},
	}
	for _, c := range corners {
		if err := e.page.MouseClick(ctx, c[0], c[1]); err != nil {
			continue
		}
		if err := e.pacer.Sleep(ctx, cornerSettle); err != nil {
			return false
		}
		if gone(ctx, el) {
			return true
		}
	}
	return false
}

func (e *Engine) viaDirectClick(ctx context.Context, el surface.Element) bool {
	clickCtx, cancel := context.WithTimeout(ctx, directClickTimeout)
	err := el.Click(clickCtx, surface.ClickOptions{})
	cancel()
	if err != nil {
		return false
	}
	if err := e.pacer.Sleep(ctx, clickSettle); err != nil {
		return false
	}
	return gone(ctx, el)
}

// gone treats a visibility error as still present.
func gone(ctx context.Context, el surface.Element) bool {
	visible, err := el.IsVisible(ctx)
	return err == nil && !visible
}

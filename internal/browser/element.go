// internal/browser/element.go
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
)

const (
	jsIsVisible = `function() {
		const r = this.getBoundingClientRect();
		const s = window.getComputedStyle(this);
		return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none';
	}`
	jsIsEnabled      = `function() { return !this.disabled; }`
	jsForceClick     = `function() { this.click(); }`
	jsScrollIntoView = `function() { this.scrollIntoView({block: 'center', inline: 'nearest'}); }`
	jsBoundingBox    = `function() {
		const r = this.getBoundingClientRect();
		if (r.width === 0 && r.height === 0) { return null; }
		return {x: r.x, y: r.y, width: r.width, height: r.height};
	}`
	jsInnerText = `function() { return this.innerText || this.textContent || ''; }`
	jsTagName   = `function() { return this.tagName; }`
	jsOuterHTML = `function() { return this.outerHTML; }`
	jsClear     = `function() {
		this.focus();
		if ('value' in this) { this.value = ''; }
		this.dispatchEvent(new Event('input', {bubbles: true}));
		return this.tagName;
	}`
	jsChanged = `function() { this.dispatchEvent(new Event('change', {bubbles: true})); }`
)

// Element is a DOM node in a Page.
type Element struct {
	page   *Page
	nodeID cdp.NodeID
}

var _ surface.Element = (*Element)(nil)

// call runs fn with the node bound to this and decodes its result into out.
func (e *Element) call(ctx context.Context, fn string, out interface{}) error {
	return e.page.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.nodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to resolve node: %w", err)
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if out == nil || res == nil || len(res.Value) == 0 {
			return nil
		}
		return json.Unmarshal(res.Value, out)
	}))
}

func (e *Element) IsVisible(ctx context.Context) (bool, error) {
	var visible bool
	err := e.call(ctx, jsIsVisible, &visible)
	return visible, err
}

func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := e.call(ctx, jsIsEnabled, &enabled)
	return enabled, err
}

// Click moves the mouse to the element and clicks its center. A forced
// click dispatches a DOM click instead and ignores visibility.
func (e *Element) Click(ctx context.Context, opts surface.ClickOptions) error {
	if opts.Force {
		return e.call(ctx, jsForceClick, nil)
	}
	visible, err := e.IsVisible(ctx)
	if err != nil {
		return err
	}
	if !visible {
		return surface.ErrNotVisible
	}
	if err := e.ScrollIntoView(ctx); err != nil {
		return err
	}
	x, y, err := e.center(ctx)
	if err != nil {
		return err
	}
	if err := e.page.moveMouse(ctx, x, y); err != nil {
		return err
	}
	return e.page.run(ctx, chromedp.MouseClickXY(x, y))
}

func (e *Element) Hover(ctx context.Context) error {
	x, y, err := e.center(ctx)
	if err != nil {
		return err
	}
	return e.page.moveMouse(ctx, x, y)
}

func (e *Element) center(ctx context.Context) (float64, float64, error) {
	box, err := e.BoundingBox(ctx)
	if err != nil {
		return 0, 0, err
	}
	if box == nil {
		return 0, 0, surface.ErrNotVisible
	}
	return box.X + box.Width/2, box.Y + box.Height/2, nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	return e.call(ctx, jsScrollIntoView, nil)
}

func (e *Element) BoundingBox(ctx context.Context) (*surface.Box, error) {
	var raw *struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := e.call(ctx, jsBoundingBox, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return &surface.Box{X: raw.X, Y: raw.Y, Width: raw.Width, Height: raw.Height}, nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	quoted, err := json.MarshalToString(name)
	if err != nil {
		return "", err
	}
	var v string
	err = e.call(ctx, fmt.Sprintf("function() { return this.getAttribute(%s) || ''; }", quoted), &v)
	return v, err
}

func (e *Element) InnerText(ctx context.Context) (string, error) {
	var v string
	err := e.call(ctx, jsInnerText, &v)
	return v, err
}

func (e *Element) TagName(ctx context.Context) (string, error) {
	var v string
	err := e.call(ctx, jsTagName, &v)
	return v, err
}

func (e *Element) OuterHTML(ctx context.Context) (string, error) {
	var v string
	err := e.call(ctx, jsOuterHTML, &v)
	return v, err
}

func (e *Element) QueryAll(ctx context.Context, selector string) ([]surface.Element, error) {
	var ids []cdp.NodeID
	err := e.page.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		ids, err = dom.QuerySelectorAll(e.nodeID, selector).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	els := make([]surface.Element, 0, len(ids))
	for _, id := range ids {
		els = append(els, &Element{page: e.page, nodeID: id})
	}
	return els, nil
}

// Fill clears the control and inserts value. Select elements take the value
// directly.
func (e *Element) Fill(ctx context.Context, value string) error {
	var tag string
	if err := e.call(ctx, jsClear, &tag); err != nil {
		return err
	}
	if strings.EqualFold(tag, "select") {
		quoted, err := json.MarshalToString(value)
		if err != nil {
			return err
		}
		return e.call(ctx, fmt.Sprintf("function() { this.value = %s; this.dispatchEvent(new Event('change', {bubbles: true})); }", quoted), nil)
	}
	if err := e.page.run(ctx, input.InsertText(value)); err != nil {
		return err
	}
	return e.call(ctx, jsChanged, nil)
}

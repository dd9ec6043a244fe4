// internal/browser/surface/surface.go
package surface

import (
	"context"
	"errors"

	"github.com/xkilldash9x/trafficsim/internal/device"
)

// ErrNotVisible is returned by a non-forced click on a hidden element.
var ErrNotVisible = errors.New("element is not visible")

// LoadState names a page lifecycle milestone to wait for.
type LoadState string

const (
	LoadDOMContent  LoadState = "domcontentloaded"
	LoadNetworkIdle LoadState = "networkidle"
)

// Box is an element's bounding rectangle in viewport pixels.
type Box struct {
	X, Y, Width, Height float64
}

// LaunchOptions configures a browser launch for one session.
type LaunchOptions struct {
	Profile  device.Profile
	Headless bool
	Proxy    string
}

// ClickOptions tunes Element.Click. Force skips the visibility check and
// dispatches a synthetic DOM click.
type ClickOptions struct {
	Force bool
}

// Launcher starts browsers.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is an isolated browser context owned by one session.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close(ctx context.Context) error
}

// Page is one tab. Every blocking call honors the context's deadline; a
// timed-out call simply returns an error.
type Page interface {
	URL() string
	Goto(ctx context.Context, url string) error
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// EvalAll runs the JS function fn over the array of elements matching
	// selector and decodes its JSON-serializable return value into out.
	EvalAll(ctx context.Context, selector, fn string, out interface{}) error
	// Evaluate runs expr in the page. out may be nil.
	Evaluate(ctx context.Context, expr string, out interface{}) error
	PressKey(ctx context.Context, key string) error
	MouseClick(ctx context.Context, x, y float64) error
	Viewport() (width, height int)
	GoBack(ctx context.Context) error
	BringToFront(ctx context.Context) error
	SetExtraHeaders(ctx context.Context, headers map[string]string) error
	WaitForLoad(ctx context.Context, state LoadState) error
	// ClickInNewTab opens el with a modifier click and closes whatever tab
	// that click spawned.
	ClickInNewTab(ctx context.Context, el Element) error
	Close(ctx context.Context) error
}

// Element is a handle to a DOM node. Handles are only valid until the page
// navigates.
type Element interface {
	IsVisible(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)
	Click(ctx context.Context, opts ClickOptions) error
	Hover(ctx context.Context) error
	ScrollIntoView(ctx context.Context) error
	// BoundingBox returns nil when the element has no layout box.
	BoundingBox(ctx context.Context) (*Box, error)
	// Attribute returns "" when the attribute is absent.
	Attribute(ctx context.Context, name string) (string, error)
	InnerText(ctx context.Context) (string, error)
	TagName(ctx context.Context) (string, error)
	OuterHTML(ctx context.Context) (string, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// Fill clears the control and types value into it.
	Fill(ctx context.Context, value string) error
}

// First returns the first element matching selector, or nil.
func First(ctx context.Context, q interface {
	QueryAll(ctx context.Context, selector string) ([]Element, error)
}, selector string) (Element, error) {
	els, err := q.QueryAll(ctx, selector)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

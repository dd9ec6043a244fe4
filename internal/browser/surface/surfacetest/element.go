// internal/browser/surface/surfacetest/element.go
package surfacetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
)

// Element is an in-memory surface.Element. Configure it through the
// exported fields before handing it to the code under test; read the
// recorded interactions through the accessor methods.
type Element struct {
	Tag      string
	Text     string
	HTML     string
	Attrs    map[string]string
	Box      *surface.Box
	Disabled bool
	Children map[string][]*Element

	// ClickErrs are returned by successive non-forced clicks; once they run
	// out ClickErr is returned.
	ClickErrs     []error
	ClickErr      error
	ForceClickErr error
	VisibleErr    error
	ScrollErr     error
	HoverErr      error
	// OnClick runs after every successful click.
	OnClick func(e *Element, force bool)

	mu          sync.Mutex
	hidden      bool
	clicks      int
	forceClicks int
	hovers      int
	scrolls     int
	filled      []string
}

// NewElement returns a visible element with the given tag and text.
func NewElement(tag, text string) *Element {
	return &Element{Tag: tag, Text: text, Attrs: map[string]string{}}
}

// WithAttr sets an attribute and returns e.
func (e *Element) WithAttr(name, value string) *Element {
	if e.Attrs == nil {
		e.Attrs = map[string]string{}
	}
	e.Attrs[name] = value
	return e
}

// WithBox sets the bounding box and returns e.
func (e *Element) WithBox(x, y, w, h float64) *Element {
	e.Box = &surface.Box{X: x, Y: y, Width: w, Height: h}
	return e
}

// WithChild registers a descendant matched by selector and returns e.
func (e *Element) WithChild(selector string, child *Element) *Element {
	if e.Children == nil {
		e.Children = map[string][]*Element{}
	}
	e.Children[selector] = append(e.Children[selector], child)
	return e
}

// Hidden makes the element invisible and returns it.
func (e *Element) Hidden() *Element {
	e.Hide()
	return e
}

func (e *Element) Hide() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hidden = true
}

func (e *Element) Show() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hidden = false
}

func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

func (e *Element) ForceClicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.forceClicks
}

func (e *Element) Hovers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hovers
}

func (e *Element) Scrolls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scrolls
}

func (e *Element) Filled() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.filled...)
}

func (e *Element) IsVisible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.VisibleErr != nil {
		return false, e.VisibleErr
	}
	return !e.hidden, nil
}

func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return !e.Disabled, nil
}

func (e *Element) Click(ctx context.Context, opts surface.ClickOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	var err error
	switch {
	case opts.Force:
		err = e.ForceClickErr
		if err == nil {
			e.forceClicks++
		}
	case e.hidden:
		err = surface.ErrNotVisible
	default:
		if len(e.ClickErrs) > 0 {
			err, e.ClickErrs = e.ClickErrs[0], e.ClickErrs[1:]
		} else {
			err = e.ClickErr
		}
		if err == nil {
			e.clicks++
		}
	}
	hook := e.OnClick
	e.mu.Unlock()

	if err == nil && hook != nil {
		hook(e, opts.Force)
	}
	return err
}

func (e *Element) Hover(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.HoverErr != nil {
		return e.HoverErr
	}
	e.hovers++
	return nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ScrollErr != nil {
		return e.ScrollErr
	}
	e.scrolls++
	return nil
}

func (e *Element) BoundingBox(ctx context.Context) (*surface.Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.Box == nil {
		return nil, nil
	}
	b := *e.Box
	return &b, nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.Attrs[name], nil
}

func (e *Element) InnerText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.Text, nil
}

func (e *Element) TagName(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.ToLower(e.Tag), nil
}

func (e *Element) OuterHTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.HTML != "" {
		return e.HTML, nil
	}
	names := make([]string, 0, len(e.Attrs))
	for name := range e.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("<" + e.Tag)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%q", name, e.Attrs[name])
	}
	fmt.Fprintf(&b, ">%s</%s>", e.Text, e.Tag)
	return b.String(), nil
}

func (e *Element) QueryAll(ctx context.Context, selector string) ([]surface.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return toSurface(e.Children[selector]), nil
}

func (e *Element) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filled = append(e.filled, value)
	return nil
}

func toSurface(els []*Element) []surface.Element {
	out := make([]surface.Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out
}

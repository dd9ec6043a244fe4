// internal/browser/surface/surfacetest/page.go
package surfacetest

import (
	"context"
	"errors"
	"sync"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
)

// Point is a recorded mouse click.
type Point struct{ X, Y float64 }

// Page is an in-memory surface.Page. Selectors are matched literally: a
// query returns exactly the elements registered under that selector string.
type Page struct {
	// GotoErrs are returned by successive Goto calls, then GotoErr.
	GotoErrs []error
	GotoErr  error
	BackErr  error
	FrontErr error
	LoadErr  error
	// OnKey and OnMouseClick run after the input is recorded.
	OnKey        func(key string)
	OnMouseClick func(x, y float64)

	mu          sync.Mutex
	url         string
	width       int
	height      int
	elements    map[string][]*Element
	queryErrs   map[string]error
	evals       map[string]interface{}
	evalErrs    map[string]error
	exprResults map[string]interface{}
	evaluated   []string
	keys        []string
	clicks      []Point
	headers     map[string]string
	visits      []string
	loads       []surface.LoadState
	backs       int
	fronts      int
	newTabs     int
	closed      bool
}

// NewPage returns an empty 1366x768 page at url.
func NewPage(url string) *Page {
	return &Page{
		url:         url,
		width:       1366,
		height:      768,
		elements:    map[string][]*Element{},
		queryErrs:   map[string]error{},
		evals:       map[string]interface{}{},
		evalErrs:    map[string]error{},
		exprResults: map[string]interface{}{},
		headers:     map[string]string{},
	}
}

// Add registers elements under selector and returns p.
func (p *Page) Add(selector string, els ...*Element) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = append(p.elements[selector], els...)
	return p
}

// FailQuery makes queries for selector fail with err.
func (p *Page) FailQuery(selector string, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queryErrs[selector] = err
	return p
}

// SetEval sets the value EvalAll decodes for selector.
func (p *Page) SetEval(selector string, v interface{}) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evals[selector] = v
	return p
}

// FailEval makes EvalAll for selector fail with err.
func (p *Page) FailEval(selector string, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evalErrs[selector] = err
	return p
}

// SetExpr sets the value Evaluate decodes for an exact expression. A value
// of type error makes the evaluation fail.
func (p *Page) SetExpr(expr string, v interface{}) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exprResults[expr] = v
	return p
}

// SetViewport changes the reported viewport size.
func (p *Page) SetViewport(w, h int) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.width, p.height = w, h
	return p
}

func (p *Page) Evaluated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.evaluated...)
}

func (p *Page) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func (p *Page) MouseClicks() []Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Point(nil), p.clicks...)
}

func (p *Page) Headers() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.headers))
	for k, v := range p.headers {
		out[k] = v
	}
	return out
}

func (p *Page) Visits() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visits...)
}

func (p *Page) Loads() []surface.LoadState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]surface.LoadState(nil), p.loads...)
}

func (p *Page) Backs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backs
}

func (p *Page) Fronts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fronts
}

func (p *Page) NewTabClicks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.newTabs
}

func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visits = append(p.visits, url)
	var err error
	if len(p.GotoErrs) > 0 {
		err, p.GotoErrs = p.GotoErrs[0], p.GotoErrs[1:]
	} else {
		err = p.GotoErr
	}
	if err == nil {
		p.url = url
	}
	return err
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]surface.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.queryErrs[selector]; err != nil {
		return nil, err
	}
	return toSurface(p.elements[selector]), nil
}

func (p *Page) EvalAll(ctx context.Context, selector, fn string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	err := p.evalErrs[selector]
	v, ok := p.evals[selector]
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return roundTrip(v, out)
}

func (p *Page) Evaluate(ctx context.Context, expr string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.evaluated = append(p.evaluated, expr)
	v, ok := p.exprResults[expr]
	p.mu.Unlock()
	if !ok || out == nil {
		return nil
	}
	if err, isErr := v.(error); isErr {
		return err
	}
	return roundTrip(v, out)
}

func (p *Page) PressKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.keys = append(p.keys, key)
	hook := p.OnKey
	p.mu.Unlock()
	if hook != nil {
		hook(key)
	}
	return nil
}

func (p *Page) MouseClick(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.clicks = append(p.clicks, Point{X: x, Y: y})
	hook := p.OnMouseClick
	p.mu.Unlock()
	if hook != nil {
		hook(x, y)
	}
	return nil
}

func (p *Page) Viewport() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

func (p *Page) GoBack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.BackErr != nil {
		return p.BackErr
	}
	p.backs++
	return nil
}

func (p *Page) BringToFront(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FrontErr != nil {
		return p.FrontErr
	}
	p.fronts++
	return nil
}

func (p *Page) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range headers {
		p.headers[k] = v
	}
	return nil
}

func (p *Page) WaitForLoad(ctx context.Context, state surface.LoadState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads = append(p.loads, state)
	return p.LoadErr
}

func (p *Page) ClickInNewTab(ctx context.Context, el surface.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fake, ok := el.(*Element)
	if !ok {
		return errors.New("surfacetest: foreign element")
	}
	if err := fake.Click(ctx, surface.ClickOptions{}); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newTabs++
	return nil
}

func (p *Page) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func roundTrip(v, out interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

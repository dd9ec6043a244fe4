// internal/browser/page.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim/internal/browser/stealth"
	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
	"github.com/xkilldash9x/trafficsim/internal/humanoid"
)

const (
	readyPollInterval = 100 * time.Millisecond
	newTabSettle      = time.Second
)

var namedKeys = map[string]string{
	"Escape":    kb.Escape,
	"Enter":     kb.Enter,
	"Tab":       kb.Tab,
	"Backspace": kb.Backspace,
	"PageDown":  kb.PageDown,
	"PageUp":    kb.PageUp,
}

// Page is one Chrome tab.
type Page struct {
	b        *Browser
	ctx      context.Context
	cancel   context.CancelFunc
	targetID target.ID
	logger   *zap.Logger
	idle     *idleTracker
	blocked  map[network.ResourceType]bool

	mu      sync.Mutex
	url     string
	headers map[string]string
	mouse   humanoid.Vector2D
	closed  bool
}

var _ surface.Page = (*Page)(nil)

func newPage(ctx context.Context, b *Browser) (*Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create target: %w", err)
	}

	p := &Page{
		b:        b,
		ctx:      tabCtx,
		cancel:   cancel,
		targetID: chromedp.FromContext(tabCtx).Target.TargetID,
		idle:     newIdleTracker(),
		blocked:  blockedTypes(b.cfg),
		url:      "about:blank",
		headers:  make(map[string]string),
		mouse:    humanoid.Vector2D{X: float64(b.persona.Width) / 2, Y: float64(b.persona.Height) / 2},
	}
	p.logger = b.logger.With(zap.String("target_id", string(p.targetID)))

	if lang := b.persona.AcceptLanguage(); lang != "" {
		p.headers["Accept-Language"] = lang
	}
	for k, v := range b.headers {
		p.headers[k] = v
	}

	p.listen()

	tasks := chromedp.Tasks{network.Enable(), page.Enable()}
	tasks = append(tasks, stealth.Apply(b.persona, p.logger)...)
	tasks = append(tasks, network.SetExtraHTTPHeaders(toNetworkHeaders(p.headers)))

	authRequired := b.proxy.Username != ""
	if len(p.blocked) > 0 || authRequired {
		tasks = append(tasks, fetch.Enable().
			WithPatterns([]*fetch.RequestPattern{{URLPattern: "*"}}).
			WithHandleAuthRequests(authRequired))
	}

	if err := p.run(ctx, tasks); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize page: %w", err)
	}
	return p, nil
}

func toNetworkHeaders(h map[string]string) network.Headers {
	out := make(network.Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// run executes actions bounded by both the tab lifetime and ctx.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// -- Event handling --

func (p *Page) listen() {
	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			p.idle.start(e.RequestID)
		case *network.EventLoadingFinished:
			p.idle.done(e.RequestID)
		case *network.EventLoadingFailed:
			p.idle.done(e.RequestID)
		case *network.EventResponseReceived:
			if e.Response != nil && e.Response.Status >= 400 {
				p.logger.Debug("HTTP error response.",
					zap.Int64("status", e.Response.Status),
					zap.String("url", e.Response.URL))
			}
		case *page.EventFrameNavigated:
			if e.Frame != nil && e.Frame.ParentID == "" {
				p.mu.Lock()
				p.url = e.Frame.URL
				p.mu.Unlock()
			}
		case *fetch.EventRequestPaused:
			// Commands cannot be issued from inside the listener.
			go p.handlePaused(e)
		case *fetch.EventAuthRequired:
			go p.handleAuth(e)
		}
	})
}

func (p *Page) executorCtx() context.Context {
	c := chromedp.FromContext(p.ctx)
	return cdp.WithExecutor(p.ctx, c.Target)
}

func (p *Page) handlePaused(e *fetch.EventRequestPaused) {
	ctx := p.executorCtx()
	if p.blocked[e.ResourceType] {
		if err := fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(ctx); err != nil {
			p.logger.Debug("Failed to block request.", zap.Error(err))
			return
		}
		p.logger.Debug("Blocked request.", zap.String("type", string(e.ResourceType)), zap.String("url", e.Request.URL))
		return
	}
	if err := fetch.ContinueRequest(e.RequestID).Do(ctx); err != nil {
		p.logger.Debug("Failed to continue request.", zap.Error(err))
	}
}

func (p *Page) handleAuth(e *fetch.EventAuthRequired) {
	resp := &fetch.AuthChallengeResponse{Response: fetch.AuthChallengeResponseResponseDefault}
	if e.AuthChallenge != nil && e.AuthChallenge.Source == fetch.AuthChallengeSourceProxy {
		resp = &fetch.AuthChallengeResponse{
			Response: fetch.AuthChallengeResponseResponseProvideCredentials,
			Username: p.b.proxy.Username,
			Password: p.b.proxy.Password,
		}
	}
	if err := fetch.ContinueWithAuth(e.RequestID, resp).Do(p.executorCtx()); err != nil {
		p.logger.Debug("Failed to answer auth challenge.", zap.Error(err))
	}
}

// -- surface.Page --

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return err
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]surface.Element, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	els := make([]surface.Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &Element{page: p, nodeID: n.NodeID})
	}
	return els, nil
}

func (p *Page) EvalAll(ctx context.Context, selector, fn string, out interface{}) error {
	sel, err := json.MarshalToString(selector)
	if err != nil {
		return err
	}
	expr := fmt.Sprintf("(%s)(Array.from(document.querySelectorAll(%s)))", fn, sel)
	return p.Evaluate(ctx, expr, out)
}

func (p *Page) Evaluate(ctx context.Context, expr string, out interface{}) error {
	if out == nil {
		return p.run(ctx, chromedp.Evaluate(expr, nil))
	}
	var raw []byte
	if err := p.run(ctx, chromedp.Evaluate(expr, &raw)); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (p *Page) PressKey(ctx context.Context, key string) error {
	if named, ok := namedKeys[key]; ok {
		key = named
	}
	return p.run(ctx, chromedp.KeyEvent(key))
}

func (p *Page) MouseClick(ctx context.Context, x, y float64) error {
	if err := p.moveMouse(ctx, x, y); err != nil {
		return err
	}
	return p.run(ctx, chromedp.MouseClickXY(x, y))
}

// moveMouse glides the cursor from its last position to (x, y) along a
// humanlike path.
func (p *Page) moveMouse(ctx context.Context, x, y float64) error {
	p.mu.Lock()
	from := p.mouse
	p.mu.Unlock()
	to := humanoid.Vector2D{X: x, Y: y}

	pacer := p.b.pacer
	d := pacer.MoveDuration(from.Dist(to))
	steps := humanoid.PathSteps(d)
	interval := d / time.Duration(steps)

	for _, pt := range pacer.Path(from, to, steps) {
		if err := p.run(ctx, input.DispatchMouseEvent(input.MouseMoved, pt.X, pt.Y)); err != nil {
			return err
		}
		if err := pacer.Sleep(ctx, interval); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.mouse = to
	p.mu.Unlock()
	return nil
}

func (p *Page) Viewport() (int, int) {
	return p.b.persona.Width, p.b.persona.Height
}

func (p *Page) GoBack(ctx context.Context) error {
	return p.run(ctx, chromedp.NavigateBack())
}

func (p *Page) BringToFront(ctx context.Context) error {
	return p.run(ctx, page.BringToFront())
}

func (p *Page) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	p.mu.Lock()
	for k, v := range headers {
		p.headers[k] = v
	}
	merged := toNetworkHeaders(p.headers)
	p.mu.Unlock()
	return p.run(ctx, network.SetExtraHTTPHeaders(merged))
}

func (p *Page) WaitForLoad(ctx context.Context, state surface.LoadState) error {
	switch state {
	case surface.LoadNetworkIdle:
		return p.idle.wait(ctx, networkIdleQuiet)
	case surface.LoadDOMContent:
		for {
			var ready string
			if err := p.Evaluate(ctx, "document.readyState", &ready); err == nil && ready != "loading" {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(readyPollInterval):
			}
		}
	default:
		return fmt.Errorf("unsupported load state %q", state)
	}
}

// ClickInNewTab ctrl-clicks el and closes every tab that click opened.
func (p *Page) ClickInNewTab(ctx context.Context, el surface.Element) error {
	e, ok := el.(*Element)
	if !ok {
		return fmt.Errorf("element of type %T does not belong to a chromedp page", el)
	}
	x, y, err := e.center(ctx)
	if err != nil {
		return err
	}
	if err := p.moveMouse(ctx, x, y); err != nil {
		return err
	}
	if err := p.run(ctx, chromedp.MouseClickXY(x, y, chromedp.ButtonModifiers(input.ModifierCtrl))); err != nil {
		return err
	}
	if err := p.b.pacer.Sleep(ctx, newTabSettle); err != nil {
		return err
	}
	return p.closeOpenedTabs(ctx)
}

func (p *Page) closeOpenedTabs(ctx context.Context) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()

	infos, err := chromedp.Targets(runCtx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}
	c := chromedp.FromContext(runCtx)
	for _, info := range infos {
		if info.OpenerID != p.targetID || info.Type != "page" {
			continue
		}
		if err := target.CloseTarget(info.TargetID).Do(cdp.WithExecutor(runCtx, c.Browser)); err != nil {
			p.logger.Debug("Failed to close spawned tab.", zap.Error(err))
			continue
		}
		p.logger.Debug("Closed spawned tab.", zap.String("url", info.URL))
	}
	return nil
}

// Close closes the tab. It is idempotent.
func (p *Page) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}

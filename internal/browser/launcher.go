// internal/browser/launcher.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim/internal/browser/stealth"
	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
	"github.com/xkilldash9x/trafficsim/internal/config"
	"github.com/xkilldash9x/trafficsim/internal/humanoid"
)

const shutdownGracePeriod = 15 * time.Second

// Launcher starts one Chrome process per session.
type Launcher struct {
	cfg    *config.Config
	pacer  *humanoid.Pacer
	logger *zap.Logger
}

var _ surface.Launcher = (*Launcher)(nil)

// NewLauncher creates a launcher. pacer drives mouse movement timing for
// every page it opens.
func NewLauncher(cfg *config.Config, pacer *humanoid.Pacer, logger *zap.Logger) *Launcher {
	return &Launcher{cfg: cfg, pacer: pacer, logger: logger.Named("browser")}
}

// Launch starts the browser process, seeds cookies and grants the
// geolocation permission. The process outlives ctx; it is torn down by
// Browser.Close.
func (l *Launcher) Launch(ctx context.Context, opts surface.LaunchOptions) (surface.Browser, error) {
	persona := stealth.FromProfile(opts.Profile, l.cfg.Browser)
	mode := "headless"
	if !opts.Headless {
		mode = "headful"
	}
	l.logger.Info("Launching browser.",
		zap.String("mode", mode),
		zap.String("device", string(opts.Profile.Kind)),
		zap.Bool("proxy", opts.Proxy != ""))
	l.logger.Debug("Resource loading.",
		zap.Bool("css", l.cfg.Browser.LoadCSS),
		zap.Bool("fonts", l.cfg.Browser.LoadFonts),
		zap.Bool("media", l.cfg.Browser.LoadMedia))

	allocOpts := AllocatorOptions(l.cfg.Browser, opts.Headless, opts.Proxy, persona.Width, persona.Height)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	sugar := l.logger.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	b := &Browser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		persona:     persona,
		cfg:         l.cfg.Browser,
		proxy:       l.cfg.Network.Proxy,
		headers:     l.cfg.Network.Headers,
		pacer:       l.pacer,
		logger:      l.logger,
	}

	// The first Run allocates the process; it must use browserCtx itself so
	// a caller deadline cannot kill the browser later.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()
	select {
	case err := <-started:
		if err != nil {
			b.teardown()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-ctx.Done():
		b.teardown()
		return nil, ctx.Err()
	}

	if err := b.prepare(ctx); err != nil {
		b.teardown()
		return nil, err
	}
	l.logger.Info("Browser initialized successfully.")
	return b, nil
}

// Browser is one Chrome process and the pages opened in it.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	persona stealth.Persona
	cfg     config.BrowserConfig
	proxy   config.ProxyConfig
	headers map[string]string
	pacer   *humanoid.Pacer
	logger  *zap.Logger

	mu     sync.Mutex
	pages  []*Page
	closed bool
}

var _ surface.Browser = (*Browser)(nil)

func (b *Browser) prepare(ctx context.Context) error {
	runCtx, cancel := CombineContext(b.ctx, ctx)
	defer cancel()

	tasks := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			c := chromedp.FromContext(ctx)
			grant := browser.GrantPermissions([]browser.PermissionType{browser.PermissionTypeGeolocation})
			return grant.Do(cdp.WithExecutor(ctx, c.Browser))
		}),
	}
	if len(b.cfg.Cookies) > 0 {
		tasks = append(tasks, network.SetCookies(cookieParams(b.cfg.Cookies)))
	}
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return fmt.Errorf("failed to prepare browser context: %w", err)
	}
	if len(b.cfg.Cookies) > 0 {
		b.logger.Debug("Injected cookies.", zap.Int("count", len(b.cfg.Cookies)))
	}
	return nil
}

func cookieParams(cookies []config.CookieConfig) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			URL:      c.URL,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if p.Path == "" {
			p.Path = "/"
		}
		switch c.SameSite {
		case "Strict", "strict":
			p.SameSite = network.CookieSameSiteStrict
		case "Lax", "lax":
			p.SameSite = network.CookieSameSiteLax
		case "None", "none":
			p.SameSite = network.CookieSameSiteNone
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}
	return params
}

// NewPage opens a new tab with the persona, interception and headers
// applied.
func (b *Browser) NewPage(ctx context.Context) (surface.Page, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("browser is closed")
	}
	b.mu.Unlock()

	p, err := newPage(ctx, b)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.pages = append(b.pages, p)
	b.mu.Unlock()
	return p, nil
}

// Close closes every page and then the browser process. It is idempotent.
func (b *Browser) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	pages := b.pages
	b.pages = nil
	b.mu.Unlock()

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGracePeriod)
	defer cancel()
	for _, p := range pages {
		if err := p.Close(closeCtx); err != nil {
			b.logger.Debug("Failed to close page.", zap.Error(err))
		}
	}

	b.teardown()
	b.logger.Info("Browser closed.")
	return nil
}

func (b *Browser) teardown() {
	if err := chromedp.Cancel(b.ctx); err != nil {
		b.logger.Debug("Browser cancel returned an error.", zap.Error(err))
	}
	b.cancel()
	b.allocCancel()
}

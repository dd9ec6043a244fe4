// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/trafficsim/api/schemas"
	"github.com/xkilldash9x/trafficsim/internal/ads"
	"github.com/xkilldash9x/trafficsim/internal/analyzer"
	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
	"github.com/xkilldash9x/trafficsim/internal/config"
	"github.com/xkilldash9x/trafficsim/internal/device"
	"github.com/xkilldash9x/trafficsim/internal/executor"
	"github.com/xkilldash9x/trafficsim/internal/humanoid"
	"github.com/xkilldash9x/trafficsim/internal/observability"
	"github.com/xkilldash9x/trafficsim/internal/overlay"
	"github.com/xkilldash9x/trafficsim/internal/planner"
	"github.com/xkilldash9x/trafficsim/internal/traffic"
)

// Fatal session errors. They end the session before the interaction loop.
var (
	ErrNoURLs             = errors.New("no URLs provided")
	ErrNoValidURLs        = errors.New("no valid URLs provided")
	ErrInvalidDuration    = errors.New("duration must be greater than 0")
	ErrBrowserUnavailable = errors.New("browser initialization failed")
	ErrNoPages            = errors.New("No pages were created successfully")
)

// State is a stage of the session lifecycle.
type State string

const (
	StateInit         State = "init"
	StateBrowserReady State = "browser_ready"
	StatePagesCreated State = "pages_created"
	StateLooping      State = "looping"
	StateFinalizing   State = "finalizing"
	StateCleanup      State = "cleanup"
	StateDone         State = "done"
)

const (
	defaultVisitMin = 30
	cleanupTimeout  = 30 * time.Second
)

// PageContext is one opened page and the components bound to it. Nothing in
// it is shared with other pages.
type PageContext struct {
	URL   string
	Page  surface.Page
	Visit traffic.Visit

	Overlays *overlay.Engine
	Analyzer *analyzer.Analyzer
	Planner  *planner.Planner
	Executor *executor.Executor
	Ads      *ads.Engine
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPacer sets the randomness and clock the session and all of its
// components use.
func WithPacer(p *humanoid.Pacer) Option {
	return func(o *Orchestrator) { o.pacer = p }
}

// WithExecutorOptions passes opts to every page's executor.
func WithExecutorOptions(opts ...executor.Option) Option {
	return func(o *Orchestrator) { o.execOpts = append(o.execOpts, opts...) }
}

// Orchestrator runs one browsing session from launch to cleanup.
type Orchestrator struct {
	cfg      *config.Config
	launcher surface.Launcher
	pacer    *humanoid.Pacer
	logger   *zap.Logger
	execOpts []executor.Option

	reporter *ads.Reporter
	opener   *traffic.Opener
	limiter  *rate.Limiter

	mu      sync.Mutex
	state   State
	browser surface.Browser
	pages   []*PageContext
	result  schemas.SessionResult
	budget  time.Duration
}

// New creates an orchestrator for the session described by cfg.
func New(cfg *config.Config, launcher surface.Launcher, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		launcher: launcher,
		logger:   logger,
		state:    StateInit,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.pacer == nil {
		o.pacer = humanoid.NewPacer(humanoid.RealClock(), rand.New(rand.NewSource(time.Now().UnixNano())))
	}

	id := cfg.Session.ID
	if id == "" {
		id = uuid.NewString()
	}
	o.logger = logger.Named("session").With(observability.SessionFields(id, cfg.Session.CampaignID, cfg.Session.UserEmail)...)
	o.result = schemas.SessionResult{
		SessionID:       id,
		CampaignID:      cfg.Session.CampaignID,
		UserEmail:       cfg.Session.UserEmail,
		DurationSeconds: cfg.Session.DurationSeconds,
		Proxy:           cfg.Network.Proxy.Address(),
		Errors:          []string{},
	}
	o.reporter = ads.NewReporter(o.pacer.Now)
	o.opener = traffic.NewOpener(cfg.Traffic, cfg.Network, o.pacer, o.logger)
	if perMinute := cfg.Session.MaxActionsPerMinute; perMinute > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(perMinute/60), 1)
	}
	return o
}

// ID returns the session id.
func (o *Orchestrator) ID() string { return o.result.SessionID }

// State returns the current lifecycle stage.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.logger.Debug("Session state changed.", zap.String("state", string(s)))
}

// Run executes the whole session. It never returns an error: fatal failures
// are reported through the result's Success, Error and Errors fields.
// Cleanup always runs.
func (o *Orchestrator) Run(ctx context.Context) schemas.SessionResult {
	o.result.StartTime = o.pacer.Now()
	o.logger.Info("Starting session.", zap.Int("duration_seconds", o.cfg.Session.DurationSeconds))

	err := o.execute(ctx)
	if err != nil {
		o.logger.Error("Session failed.", zap.Error(err))
		o.result.Error = err.Error()
		o.result.Errors = append(o.result.Errors, err.Error())
	}
	o.result.Success = err == nil

	o.setState(StateFinalizing)
	o.finalize()

	o.setState(StateCleanup)
	o.cleanup(ctx)

	o.setState(StateDone)
	return o.result
}

func (o *Orchestrator) execute(ctx context.Context) error {
	urls, err := o.validate()
	if err != nil {
		return err
	}
	o.result.URLs = urls

	kind := device.Pick(o.cfg.Session.Device, o.cfg.Session.DesktopPercentage, o.pacer)
	profile := device.Select(kind, o.pacer)
	o.result.Device = string(kind)

	o.budget = time.Duration(o.cfg.Session.DurationSeconds) * time.Second
	if o.pacer.Float64()*100 < o.cfg.Session.BounceRate {
		visitMin := o.cfg.Session.VisitDurationMin
		if visitMin <= 0 {
			visitMin = defaultVisitMin
		}
		o.budget = humanoid.Seconds(o.pacer.Uniform(0.2*float64(visitMin), 0.5*float64(visitMin)))
		o.result.Bounced = true
		o.logger.Info("Session will bounce.", zap.Duration("budget", o.budget))
	}
	o.result.EffectiveDuration = o.budget.Seconds()

	headful := o.cfg.Browser.ShouldBeHeadful || o.pacer.Float64()*100 < o.cfg.Browser.HeadfulPercentage
	o.result.Headful = headful || !o.cfg.Browser.Headless

	b, err := o.launcher.Launch(ctx, surface.LaunchOptions{
		Profile:  profile,
		Headless: !o.result.Headful,
		Proxy:    o.result.Proxy,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}
	o.mu.Lock()
	o.browser = b
	o.mu.Unlock()
	o.setState(StateBrowserReady)

	if err := o.openPages(ctx, b, urls); err != nil {
		return err
	}
	o.setState(StatePagesCreated)

	o.setState(StateLooping)
	o.loop(ctx)
	return nil
}

// validate returns the well-formed absolute URLs of the session. Malformed
// entries are skipped.
func (o *Orchestrator) validate() ([]string, error) {
	if len(o.cfg.Session.URLs) == 0 {
		return nil, ErrNoURLs
	}
	var valid []string
	for _, raw := range o.cfg.Session.URLs {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Scheme == "" || u.Host == "" {
			o.logger.Warn("Skipping invalid URL.", zap.String("url", raw))
			continue
		}
		valid = append(valid, u.String())
	}
	if len(valid) == 0 {
		return nil, ErrNoValidURLs
	}
	if o.cfg.Session.DurationSeconds <= 0 {
		return nil, ErrInvalidDuration
	}
	return valid, nil
}

func (o *Orchestrator) openPages(ctx context.Context, b surface.Browser, urls []string) error {
	for i, target := range urls {
		page, visit, err := o.opener.Open(ctx, b, target)
		if err != nil {
			o.logger.Error("Failed to open page.", zap.String("url", target), zap.Error(err))
			o.result.Errors = append(o.result.Errors, fmt.Sprintf("Navigation to %s failed: %v", target, err))
			continue
		}
		pc := o.newPageContext(target, page, visit)
		o.mu.Lock()
		o.pages = append(o.pages, pc)
		o.mu.Unlock()

		o.result.Visited = true
		o.result.Source = visit.Source
		o.result.SpecificReferrer = visit.Referrer
		o.logger.Info("Page opened.",
			zap.Int("index", i),
			zap.String("url", target),
			zap.String("source", string(visit.Source)))
	}
	o.result.PagesCreated = len(o.pages)
	if len(o.pages) == 0 {
		return ErrNoPages
	}
	return nil
}

func (o *Orchestrator) newPageContext(target string, page surface.Page, visit traffic.Visit) *PageContext {
	log := o.logger.With(zap.String("page_url", target))
	overlays := overlay.New(page, o.pacer, log)
	return &PageContext{
		URL:      target,
		Page:     page,
		Visit:    visit,
		Overlays: overlays,
		Analyzer: analyzer.New(page, overlays, o.pacer, log),
		Planner:  planner.New(o.pacer, log, o.cfg.Session.Scrolling),
		Executor: executor.New(page, overlays, o.pacer, log, o.execOpts...),
		Ads: ads.NewEngine(page, o.reporter, o.pacer, log, ads.Options{
			MaxPerPage:  o.cfg.Ads.MaxPerPage,
			SettleDelay: o.cfg.Ads.SettleDelay,
			LoadTimeout: o.cfg.Ads.LoadTimeout,
		}),
	}
}

func (o *Orchestrator) finalize() {
	end := o.pacer.Now()
	o.result.EndTime = end
	o.result.DurationSeconds = int(end.Sub(o.result.StartTime).Seconds())
	if o.result.TotalActions > 0 {
		o.result.SuccessRate = float64(o.result.SuccessfulActions) / float64(o.result.TotalActions)
	}

	adInteractions := 0
	for _, pc := range o.pages {
		adInteractions += pc.Ads.AdsOpened()
	}
	o.result.AdInteractions = adInteractions

	report := o.reporter.Report()
	o.result.AdReport = &report
	o.result.Completed = o.result.Visited && !o.result.Bounced

	logReport(o.logger, report)
	o.logger.Info("Session finished.",
		zap.Int("duration_seconds", o.result.DurationSeconds),
		zap.Int("pages", o.result.PagesCreated),
		zap.Int("total_actions", o.result.TotalActions),
		zap.Int("successful_actions", o.result.SuccessfulActions),
		zap.Int("ad_interactions", o.result.AdInteractions),
		zap.Bool("bounced", o.result.Bounced),
		zap.Bool("completed", o.result.Completed))
}

// cleanup closes every page and the browser. It runs on a context detached
// from ctx so a cancelled session still releases its resources.
func (o *Orchestrator) cleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	o.mu.Lock()
	pages := o.pages
	b := o.browser
	o.mu.Unlock()

	for _, pc := range pages {
		if err := pc.Page.Close(cleanupCtx); err != nil {
			o.logger.Debug("Failed to close page.", zap.String("url", pc.URL), zap.Error(err))
		}
	}
	if b != nil {
		if err := b.Close(cleanupCtx); err != nil {
			o.logger.Warn("Failed to close browser.", zap.Error(err))
		}
	}
	o.logger.Debug("Cleanup completed.")
}

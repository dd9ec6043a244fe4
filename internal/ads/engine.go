// internal/ads/engine.go
package ads

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/trafficsim/api/schemas"
	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
	"github.com/xkilldash9x/trafficsim/internal/humanoid"
)

// Category is the kind of ad a candidate was detected as.
type Category string

const (
	Iframe  Category = "iframe"
	Display Category = "display"
	Video   Category = "video"
	Popup   Category = "popup"
	Native  Category = "native"
	Social  Category = "social"
)

// Categories lists every category in detection order.
var Categories = []Category{Iframe, Display, Video, Popup, Native, Social}

// Ignore reasons recorded with the reporter.
const (
	ReasonNoElement   = "No element available"
	ReasonLimit       = "Ad limit reached"
	ReasonDuplicate   = "Already interacted"
	ReasonNotVisible  = "Element not visible"
	ReasonSuccess     = "Successful interaction"
	ReasonClickFailed = "Click failed"
)

const (
	clickTimeout      = 3 * time.Second
	forceClickTimeout = 2 * time.Second
	popupClickTimeout = 2 * time.Second
	iframeSettle      = time.Second
	maxTextLength     = 100
	sizeTolerance     = 10.0
)

type delayRange struct{ lo, hi float64 }

var interactionDelays = map[Category]delayRange{
	Iframe:  {1.0, 3.0},
	Display: {0.5, 2.0},
	Video:   {2.0, 4.0},
	Popup:   {0.3, 1.0},
	Native:  {1.0, 2.5},
	Social:  {0.8, 2.2},
}

var defaultDelay = delayRange{1.0, 2.0}

var adKeywords = []string{"ad", "advertisement", "sponsored", "promo", "offer", "deal", "buy now", "shop", "click here"}

var standardSizes = [][2]float64{{728, 90}, {300, 250}, {336, 280}, {320, 50}, {970, 250}}

var popupCloseSelectors = []string{`[aria-label*="close"]`, `.close`, `[title*="close"]`, `button[type="button"]`}

// Candidate is one detected ad.
type Candidate struct {
	Category Category
	Selector string
	Index    int
	Element  surface.Element
	Info     schemas.ElementInfo
}

// Outcome is the result of interacting with one candidate.
type Outcome struct {
	Category Category
	Success  bool
	Reason   string
}

// Tally summarises one detect and interact pass.
type Tally struct {
	TotalDetected   int
	TotalInteracted int
	Results         []Outcome
}

// Options tunes the engine.
type Options struct {
	// MaxPerPage caps successful interactions per page.
	MaxPerPage  int
	SettleDelay time.Duration
	LoadTimeout time.Duration
}

// Engine detects ads on one page and interacts with them. The interaction
// counter and the set of already-clicked ads live as long as the page.
type Engine struct {
	page     surface.Page
	reporter *Reporter
	pacer    *humanoid.Pacer
	logger   *zap.Logger
	opts     Options

	adsOpened  int
	interacted map[string]struct{}
}

// NewEngine creates an ad engine for page that reports into reporter.
func NewEngine(page surface.Page, reporter *Reporter, pacer *humanoid.Pacer, logger *zap.Logger, opts Options) *Engine {
	return &Engine{
		page:       page,
		reporter:   reporter,
		pacer:      pacer,
		logger:     logger.Named("ads"),
		opts:       opts,
		interacted: make(map[string]struct{}),
	}
}

// AdsOpened returns the number of successful interactions on this page.
func (e *Engine) AdsOpened() int { return e.adsOpened }

// DetectAndInteract waits for the page to settle, detects every ad and then
// interacts with each candidate in order.
func (e *Engine) DetectAndInteract(ctx context.Context) Tally {
	if e.opts.LoadTimeout > 0 {
		loadCtx, cancel := context.WithTimeout(ctx, e.opts.LoadTimeout)
		if err := e.page.WaitForLoad(loadCtx, surface.LoadDOMContent); err != nil {
			e.logger.Debug("Page did not reach DOM content loaded", zap.Error(err))
		}
		cancel()
	}
	if err := e.pacer.Sleep(ctx, e.opts.SettleDelay); err != nil {
		return Tally{}
	}

	candidates := e.Detect(ctx)
	e.logger.Info("Ads detected", zap.Int("count", len(candidates)))

	tally := Tally{TotalDetected: len(candidates)}
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		out := e.Interact(ctx, c)
		tally.Results = append(tally.Results, out)
		if out.Success {
			tally.TotalInteracted++
		}
		if err := e.pacer.Pause(ctx, 1.0, 3.0); err != nil {
			break
		}
	}
	return tally
}

// Detect runs one detector per category concurrently. A failing detector
// contributes nothing; the others are unaffected.
func (e *Engine) Detect(ctx context.Context) []Candidate {
	found := make([][]Candidate, len(Categories))
	pageURL := e.page.URL()

	g, gctx := errgroup.WithContext(ctx)
	for i, cat := range Categories {
		i, cat := i, cat
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Debug("Ad detector panicked", zap.String("category", string(cat)), zap.Any("panic", r))
					found[i] = nil
				}
			}()
			found[i] = e.detect(gctx, cat, pageURL)
			return nil
		})
	}
	_ = g.Wait()

	var all []Candidate
	for _, cs := range found {
		all = append(all, cs...)
	}
	return all
}

func (e *Engine) detect(ctx context.Context, cat Category, pageURL string) []Candidate {
	var out []Candidate
	for _, sel := range selectorsFor(cat) {
		if ctx.Err() != nil {
			return out
		}
		els, err := e.page.QueryAll(ctx, sel)
		if err != nil {
			e.logger.Debug("Ad selector query failed",
				zap.String("category", string(cat)),
				zap.String("selector", sel),
				zap.Error(err))
			continue
		}
		for i, el := range els {
			visible, err := el.IsVisible(ctx)
			if err != nil || !visible {
				continue
			}
			if (cat == Display || cat == Native) && !IsLikelyAd(ctx, el) {
				continue
			}
			info := elementInfo(ctx, el, cat)
			out = append(out, Candidate{Category: cat, Selector: sel, Index: i, Element: el, Info: info})
			e.reporter.LogDetection(cat, sel, info, pageURL)
		}
	}
	return out
}

// Interact applies the category-specific interaction to c, subject to the
// per-page cap and the already-interacted set.
func (e *Engine) Interact(ctx context.Context, c Candidate) Outcome {
	pageURL := e.page.URL()
	ignore := func(reason string) Outcome {
		e.reporter.LogIgnored(c.Category, c.Info, reason, pageURL)
		return Outcome{Category: c.Category, Reason: reason}
	}

	if c.Element == nil || c.Info.Error != "" {
		return ignore(ReasonNoElement)
	}
	if e.adsOpened >= e.opts.MaxPerPage {
		return ignore(ReasonLimit)
	}
	hash := ContentHash(c.Info)
	if _, seen := e.interacted[hash]; seen {
		return ignore(ReasonDuplicate)
	}
	if visible, err := c.Element.IsVisible(ctx); err != nil || !visible {
		return ignore(ReasonNotVisible)
	}

	if err := c.Element.ScrollIntoView(ctx); err != nil {
		reason := fmt.Sprintf("Interaction error: %v", err)
		e.reporter.LogClick(c.Category, c.Info, false, pageURL, reason)
		return Outcome{Category: c.Category, Reason: reason}
	}
	if err := e.pacer.Pause(ctx, 0.3, 0.8); err != nil {
		return Outcome{Category: c.Category, Reason: err.Error()}
	}

	var ok bool
	switch c.Category {
	case Iframe:
		ok = e.clickIframe(ctx, c, pageURL)
	case Popup:
		ok = e.clickPopup(ctx, c, pageURL)
	case Video:
		ok = e.clickVideo(ctx, c, pageURL)
	default:
		ok = e.clickStandard(ctx, c)
	}

	d, known := interactionDelays[c.Category]
	if !known {
		d = defaultDelay
	}
	_ = e.pacer.Pause(ctx, d.lo, d.hi)

	reason := ReasonClickFailed
	if ok {
		reason = ReasonSuccess
		e.adsOpened++
		e.interacted[hash] = struct{}{}
	}
	e.reporter.LogClick(c.Category, c.Info, ok, pageURL, reason)
	return Outcome{Category: c.Category, Success: ok, Reason: reason}
}

func (e *Engine) click(ctx context.Context, el surface.Element, timeout time.Duration, force bool) error {
	clickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return el.Click(clickCtx, surface.ClickOptions{Force: force})
}

func (e *Engine) clickStandard(ctx context.Context, c Candidate) bool {
	err := e.click(ctx, c.Element, clickTimeout, false)
	if err == nil {
		e.logger.Info("Clicked ad", zap.String("category", string(c.Category)))
		return true
	}
	e.logger.Debug("Standard click failed", zap.Error(err))
	if err := e.click(ctx, c.Element, forceClickTimeout, true); err != nil {
		e.logger.Debug("Force click also failed", zap.String("category", string(c.Category)), zap.Error(err))
		return false
	}
	e.logger.Info("Force-clicked ad", zap.String("category", string(c.Category)))
	return true
}

func (e *Engine) clickIframe(ctx context.Context, c Candidate, pageURL string) bool {
	if err := e.click(ctx, c.Element, clickTimeout, false); err != nil {
		e.logger.Debug("Iframe ad interaction failed", zap.Error(err))
		return false
	}
	if err := e.pacer.Sleep(ctx, iframeSettle); err != nil {
		return false
	}
	e.reporter.LogIframeInteraction(c.Info, pageURL)
	return true
}

func (e *Engine) clickPopup(ctx context.Context, c Candidate, pageURL string) bool {
	for _, sel := range popupCloseSelectors {
		btn, err := surface.First(ctx, c.Element, sel)
		if err != nil || btn == nil {
			continue
		}
		if visible, err := btn.IsVisible(ctx); err != nil || !visible {
			continue
		}
		if err := e.click(ctx, btn, popupClickTimeout, false); err != nil {
			continue
		}
		e.reporter.LogPopupClosure(c.Info, pageURL)
		e.logger.Info("Closed popup ad")
		return true
	}
	if err := e.click(ctx, c.Element, popupClickTimeout, false); err != nil {
		e.logger.Debug("Popup ad interaction failed", zap.Error(err))
		return false
	}
	return true
}

func (e *Engine) clickVideo(ctx context.Context, c Candidate, pageURL string) bool {
	e.reporter.LogVideoInteraction(c.Info, pageURL)
	if err := e.click(ctx, c.Element, clickTimeout, false); err != nil {
		e.logger.Debug("Video ad interaction failed", zap.Error(err))
		return false
	}
	return true
}

// IsLikelyAd reports whether el looks like an advertisement: an ad keyword
// in its text or markup, or a standard ad slot size. Any error means no.
func IsLikelyAd(ctx context.Context, el surface.Element) bool {
	text, err := el.InnerText(ctx)
	if err != nil {
		return false
	}
	if containsKeyword(text) {
		return true
	}
	if html, err := el.OuterHTML(ctx); err == nil && containsKeyword(html) {
		return true
	}
	box, err := el.BoundingBox(ctx)
	if err != nil || box == nil {
		return false
	}
	return MatchesStandardSize(box.Width, box.Height)
}

// MatchesStandardSize reports whether w×h is within 10px of an IAB slot.
func MatchesStandardSize(w, h float64) bool {
	for _, s := range standardSizes {
		if abs(w-s[0]) < sizeTolerance && abs(h-s[1]) < sizeTolerance {
			return true
		}
	}
	return false
}

// ContentHash identifies an ad by its captured info.
func ContentHash(info schemas.ElementInfo) string {
	b, err := json.Marshal(info)
	if err != nil {
		b = []byte(fmt.Sprintf("%+v", info))
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return fmt.Sprintf("%016x", h.Sum64())
}

func elementInfo(ctx context.Context, el surface.Element, cat Category) schemas.ElementInfo {
	fail := func(err error) schemas.ElementInfo {
		return schemas.ElementInfo{AdType: string(cat), Error: err.Error()}
	}
	info := schemas.ElementInfo{AdType: string(cat)}
	var err error
	if info.Visible, err = el.IsVisible(ctx); err != nil {
		return fail(err)
	}
	if info.Enabled, err = el.IsEnabled(ctx); err != nil {
		return fail(err)
	}
	if info.TagName, err = el.TagName(ctx); err != nil {
		return fail(err)
	}
	info.TagName = strings.ToUpper(info.TagName)
	if info.ClassName, err = el.Attribute(ctx, "class"); err != nil {
		return fail(err)
	}
	if info.ID, err = el.Attribute(ctx, "id"); err != nil {
		return fail(err)
	}
	text, err := el.InnerText(ctx)
	if err != nil {
		return fail(err)
	}
	info.TextContent = truncate(text, maxTextLength)
	if info.Href, err = el.Attribute(ctx, "href"); err != nil {
		return fail(err)
	}
	box, err := el.BoundingBox(ctx)
	if err != nil {
		return fail(err)
	}
	if box != nil {
		info.Position = &schemas.Position{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}
	}
	return info
}

func containsKeyword(s string) bool {
	s = strings.ToLower(s)
	for _, k := range adKeywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

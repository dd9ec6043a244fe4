// internal/ads/reporter.go
package ads

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/xkilldash9x/trafficsim/api/schemas"
)

const maxIgnoredExamples = 3

// Reporter is the session-wide, append-only log of ad activity. It is shared
// by every page of a session and written concurrently by the detectors.
type Reporter struct {
	now func() time.Time

	mu      sync.Mutex
	log     schemas.DetailedInteractions
	types   map[string]struct{}
	domains map[string]struct{}
}

// NewReporter creates an empty reporter. now defaults to time.Now.
func NewReporter(now func() time.Time) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{
		now:     now,
		types:   make(map[string]struct{}),
		domains: make(map[string]struct{}),
	}
}

func (r *Reporter) event(cat Category, info schemas.ElementInfo, pageURL string) schemas.AdEvent {
	return schemas.AdEvent{
		Timestamp: r.now(),
		AdType:    string(cat),
		Element:   info,
		URL:       pageURL,
		Domain:    domainOf(pageURL),
	}
}

// LogDetection records a detected candidate.
func (r *Reporter) LogDetection(cat Category, selector string, info schemas.ElementInfo, pageURL string) {
	ev := r.event(cat, info, pageURL)
	ev.Selector = selector

	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.DetectedAds = append(r.log.DetectedAds, ev)
	r.types[ev.AdType] = struct{}{}
	r.domains[ev.Domain] = struct{}{}
}

// LogClick records an attempted interaction. Successes land in the clicked
// list, failures in the failed list.
func (r *Reporter) LogClick(cat Category, info schemas.ElementInfo, success bool, pageURL, reason string) {
	ev := r.event(cat, info, pageURL)
	ev.Success = success
	ev.Reason = reason

	r.mu.Lock()
	defer r.mu.Unlock()
	if success {
		r.log.ClickedAds = append(r.log.ClickedAds, ev)
	} else {
		r.log.FailedInteractions = append(r.log.FailedInteractions, ev)
	}
}

// LogIgnored records a candidate that was skipped and why.
func (r *Reporter) LogIgnored(cat Category, info schemas.ElementInfo, reason, pageURL string) {
	ev := r.event(cat, info, pageURL)
	ev.Reason = reason

	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.IgnoredAds = append(r.log.IgnoredAds, ev)
}

// LogPopupClosure records a popup ad that was closed.
func (r *Reporter) LogPopupClosure(info schemas.ElementInfo, pageURL string) {
	ev := r.event(Popup, info, pageURL)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.PopupClosures = append(r.log.PopupClosures, ev)
}

// LogIframeInteraction records a click inside an ad iframe.
func (r *Reporter) LogIframeInteraction(info schemas.ElementInfo, pageURL string) {
	ev := r.event(Iframe, info, pageURL)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.IframeInteractions = append(r.log.IframeInteractions, ev)
}

// LogVideoInteraction records an attempted click on a video ad.
func (r *Reporter) LogVideoInteraction(info schemas.ElementInfo, pageURL string) {
	ev := r.event(Video, info, pageURL)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.VideoAdInteractions = append(r.log.VideoAdInteractions, ev)
}

// Report builds the end-of-session ad report.
func (r *Reporter) Report() schemas.AdReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	clicked := len(r.log.ClickedAds)
	failed := len(r.log.FailedInteractions)
	rate := 0.0
	if attempts := clicked + failed; attempts > 0 {
		rate = float64(clicked) / float64(attempts) * 100
	}

	summary := schemas.SessionSummary{
		TotalAdsDetected:   len(r.log.DetectedAds),
		TotalAdsClicked:    clicked,
		TotalAdsIgnored:    len(r.log.IgnoredAds),
		TotalFailedClicks:  failed,
		ClickSuccessRate:   fmt.Sprintf("%.1f%%", rate),
		AdTypesEncountered: sortedKeys(r.types),
		DomainsWithAds:     sortedKeys(r.domains),
		PopupClosures:      len(r.log.PopupClosures),
		ClickedAdsDetails:  r.clickedDetails(),
		IgnoredAdsSummary:  r.ignoredSummary(),
		AdTypeBreakdown:    r.breakdown(),
	}

	return schemas.AdReport{
		SessionSummary:       summary,
		DetailedInteractions: copyLog(r.log),
		Recommendations:      r.recommendations(rate),
	}
}

func (r *Reporter) clickedDetails() []schemas.ClickedAdDetail {
	details := make([]schemas.ClickedAdDetail, 0, len(r.log.ClickedAds))
	for _, ev := range r.log.ClickedAds {
		details = append(details, schemas.ClickedAdDetail{
			AdName:       AdName(ev.Element),
			AdType:       ev.AdType,
			ClickTime:    ev.Timestamp,
			Domain:       ev.Domain,
			AdText:       truncate(ev.Element.TextContent, 50),
			AdPosition:   ev.Element.Position,
			SelectorUsed: SelectorGuess(ev.Element),
		})
	}
	return details
}

func (r *Reporter) ignoredSummary() map[string]schemas.IgnoredSummary {
	out := make(map[string]schemas.IgnoredSummary)
	typeSets := make(map[string]map[string]struct{})
	for _, ev := range r.log.IgnoredAds {
		s := out[ev.Reason]
		s.Count++
		if len(s.Examples) < maxIgnoredExamples {
			s.Examples = append(s.Examples, schemas.IgnoredExample{
				AdName: AdName(ev.Element),
				AdText: truncate(ev.Element.TextContent, 30),
			})
		}
		out[ev.Reason] = s
		if typeSets[ev.Reason] == nil {
			typeSets[ev.Reason] = make(map[string]struct{})
		}
		typeSets[ev.Reason][ev.AdType] = struct{}{}
	}
	for reason, set := range typeSets {
		s := out[reason]
		s.AdTypes = sortedKeys(set)
		out[reason] = s
	}
	return out
}

// breakdown only counts clicks, ignores and failures for categories that
// were detected at least once.
func (r *Reporter) breakdown() map[string]schemas.TypeBreakdown {
	out := make(map[string]schemas.TypeBreakdown)
	for _, ev := range r.log.DetectedAds {
		b := out[ev.AdType]
		b.Detected++
		out[ev.AdType] = b
	}
	bump := func(events []schemas.AdEvent, inc func(*schemas.TypeBreakdown)) {
		for _, ev := range events {
			if b, ok := out[ev.AdType]; ok {
				inc(&b)
				out[ev.AdType] = b
			}
		}
	}
	bump(r.log.ClickedAds, func(b *schemas.TypeBreakdown) { b.Clicked++ })
	bump(r.log.IgnoredAds, func(b *schemas.TypeBreakdown) { b.Ignored++ })
	bump(r.log.FailedInteractions, func(b *schemas.TypeBreakdown) { b.Failed++ })
	return out
}

func (r *Reporter) recommendations(rate float64) []string {
	recs := []string{}
	if rate < 50 {
		recs = append(recs, "Low click success rate - consider updating selectors")
	}
	if len(r.log.IgnoredAds) > len(r.log.ClickedAds) {
		recs = append(recs, "Many ads ignored - review ignore criteria")
	}
	if _, ok := r.types[string(Iframe)]; ok && len(r.log.IframeInteractions) == 0 {
		recs = append(recs, "Iframe ads detected but not interacted with")
	}
	return recs
}

// AdName derives a readable label for an ad from its captured info: its
// text, then its class names, then its id, then its link target, falling
// back to the category and position.
func AdName(info schemas.ElementInfo) string {
	name := ""
	text := strings.TrimSpace(info.TextContent)
	switch {
	case len([]rune(text)) > 3:
		name = truncate(text, 50)
	case info.ClassName != "":
		var parts []string
		for _, part := range strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(info.ClassName)) {
			if len([]rune(part)) > 3 && !allDigits(part) {
				parts = append(parts, part)
			}
		}
		if len(parts) > 3 {
			parts = parts[:3]
		}
		if len(parts) > 0 {
			name = titleCase(strings.Join(parts, " "))
		}
	case info.ID != "":
		name = titleCase(strings.NewReplacer("-", " ", "_", " ").Replace(info.ID))
	case info.Href != "":
		if u, err := url.Parse(info.Href); err == nil && u.Host != "" {
			name = "Link to " + u.Host
		}
	}
	if name != "" {
		return name
	}

	adType := info.AdType
	if adType == "" {
		adType = "unknown"
	}
	if info.Position != nil {
		return fmt.Sprintf("%s Ad at (%d, %d)", titleCase(adType), int(info.Position.X), int(info.Position.Y))
	}
	return titleCase(adType) + " Ad"
}

// SelectorGuess reconstructs a plausible selector for the element.
func SelectorGuess(info schemas.ElementInfo) string {
	switch {
	case info.ID != "":
		return "#" + info.ID
	case info.ClassName != "":
		if classes := strings.Fields(info.ClassName); len(classes) > 0 {
			return "." + classes[0]
		}
	case info.TagName != "":
		return strings.ToLower(info.TagName)
	}
	return "unknown selector"
}

func domainOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "unknown"
	}
	return u.Host
}

func copyLog(l schemas.DetailedInteractions) schemas.DetailedInteractions {
	clone := func(evs []schemas.AdEvent) []schemas.AdEvent {
		return append([]schemas.AdEvent{}, evs...)
	}
	return schemas.DetailedInteractions{
		DetectedAds:         clone(l.DetectedAds),
		ClickedAds:          clone(l.ClickedAds),
		IgnoredAds:          clone(l.IgnoredAds),
		FailedInteractions:  clone(l.FailedInteractions),
		PopupClosures:       clone(l.PopupClosures),
		IframeInteractions:  clone(l.IframeInteractions),
		VideoAdInteractions: clone(l.VideoAdInteractions),
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
